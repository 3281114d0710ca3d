package pivot

import (
	"errors"
	"fmt"
	"strings"
)

// MaxFields bounds each axis. More would make the column product explode.
const MaxFields = 3

const (
	EmptySentinel = "(empty)"
	TotalSentinel = "Total"
)

var (
	ErrTooManyFields = errors.New("pivot: at most 3 fields per axis")
	ErrUnknownAgg    = errors.New("pivot: unknown aggregation")
)

// AggFunc selects how a cell's accumulator is finalized.
type AggFunc string

const (
	Sum   AggFunc = "sum"
	Count AggFunc = "count"
	Avg   AggFunc = "avg"
	Min   AggFunc = "min"
	Max   AggFunc = "max"
)

func (a AggFunc) Valid() bool {
	switch a {
	case Sum, Count, Avg, Min, Max:
		return true
	}
	return false
}

// Spec describes one pivot request.
type Spec struct {
	RowFields  []string `json:"rowFields" yaml:"rowFields"`
	ColFields  []string `json:"colFields" yaml:"colFields"`
	ValueField string   `json:"valueField,omitempty" yaml:"valueField,omitempty"`
	AggFunc    AggFunc  `json:"aggFunc" yaml:"aggFunc"`
}

// Validate reports problems an outer boundary should reject.
func (s Spec) Validate() error {
	if len(s.RowFields) > MaxFields || len(s.ColFields) > MaxFields {
		return fmt.Errorf("%w: rows=%d cols=%d", ErrTooManyFields, len(s.RowFields), len(s.ColFields))
	}
	if s.AggFunc != "" && !s.AggFunc.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAgg, s.AggFunc)
	}
	return nil
}

// Normalized returns a spec Build can always execute: blank fields dropped,
// axes truncated to MaxFields, unknown or empty aggregation mapped to sum.
func (s Spec) Normalized() Spec {
	out := Spec{
		RowFields:  clean(s.RowFields),
		ColFields:  clean(s.ColFields),
		ValueField: strings.TrimSpace(s.ValueField),
		AggFunc:    AggFunc(strings.ToLower(strings.TrimSpace(string(s.AggFunc)))),
	}
	if !out.AggFunc.Valid() {
		out.AggFunc = Sum
	}
	return out
}

func clean(fields []string) []string {
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	if len(out) > MaxFields {
		out = out[:MaxFields]
	}
	return out
}
