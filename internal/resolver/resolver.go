package resolver

import (
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"mfg-report-go/internal/record"
)

// Resolution describes how a lookup was satisfied.
type Resolution struct {
	Value     any
	Key       string // actual record key the value came from
	Candidate string // candidate that won
	Exact     bool
	// Ambiguous is set when the winning candidate loosely matched more than
	// one populated column. Alternatives lists the losing keys.
	Ambiguous    bool
	Alternatives []string
}

// Resolver maps logical field names onto inconsistently named columns.
// The zero value is usable and does not log.
type Resolver struct {
	log *logrus.Entry
}

func New(log *logrus.Entry) *Resolver {
	return &Resolver{log: log}
}

var folder = cases.Fold()

// Normalize is the key comparison form: NFKC, case folded, all whitespace removed.
func Normalize(s string) string {
	s = norm.NFKC.String(strings.TrimSpace(s))
	s = folder.String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Resolve returns the value of the first candidate present in rec.
func Resolve(rec record.Record, candidates []string) (any, bool) {
	var r Resolver
	return r.Resolve(rec, candidates)
}

func (r *Resolver) Resolve(rec record.Record, candidates []string) (any, bool) {
	res, ok := r.ResolveDetail(rec, candidates)
	if !ok {
		return nil, false
	}
	return res.Value, true
}

// String resolves and renders the value as text ("" when absent).
func (r *Resolver) String(rec record.Record, candidates []string) string {
	v, ok := r.Resolve(rec, candidates)
	if !ok {
		return ""
	}
	return record.Text(v)
}

// Number resolves and parses the value as a number.
func (r *Resolver) Number(rec record.Record, candidates []string) (float64, bool) {
	v, ok := r.Resolve(rec, candidates)
	if !ok {
		return 0, false
	}
	return record.Number(v)
}

// ResolveDetail walks candidates in priority order: exact keys first, then
// normalized equal/contains/contained-by matches. Candidate order, not column
// order, decides the winner. Within one candidate the first column wins.
func (r *Resolver) ResolveDetail(rec record.Record, candidates []string) (Resolution, bool) {
	for _, c := range candidates {
		if v, ok := rec.Get(c); ok && !record.IsEmpty(v) {
			return Resolution{Value: v, Key: c, Candidate: c, Exact: true}, true
		}
	}

	keys := rec.Keys()
	normKeys := make([]string, len(keys))
	for i, k := range keys {
		normKeys[i] = Normalize(k)
	}

	for _, c := range candidates {
		nc := Normalize(c)
		if nc == "" {
			continue
		}
		var res Resolution
		found := false
		for i, nk := range normKeys {
			if nk == "" || !looseMatch(nk, nc) {
				continue
			}
			v, _ := rec.Get(keys[i])
			if record.IsEmpty(v) {
				continue
			}
			if !found {
				res = Resolution{Value: v, Key: keys[i], Candidate: c}
				found = true
				continue
			}
			res.Ambiguous = true
			res.Alternatives = append(res.Alternatives, keys[i])
		}
		if found {
			if res.Ambiguous && r.log != nil {
				r.log.WithFields(logrus.Fields{
					"candidate":    c,
					"chosen_key":   res.Key,
					"alternatives": res.Alternatives,
				}).Warn("ambiguous field resolution")
			}
			return res, true
		}
	}
	return Resolution{}, false
}

// KeyString resolves an identifier column. Only exact or normalized-equal
// keys qualify, so a candidate never claims a longer column such as an
// alternate code whose name contains it.
func (r *Resolver) KeyString(rec record.Record, candidates []string) string {
	for _, c := range candidates {
		if v, ok := rec.Get(c); ok && !record.IsEmpty(v) {
			return record.Text(v)
		}
	}
	keys := rec.Keys()
	for _, c := range candidates {
		nc := Normalize(c)
		if nc == "" {
			continue
		}
		for _, k := range keys {
			if Normalize(k) != nc {
				continue
			}
			if v, _ := rec.Get(k); !record.IsEmpty(v) {
				return record.Text(v)
			}
		}
	}
	return ""
}

func looseMatch(key, candidate string) bool {
	return key == candidate || strings.Contains(key, candidate) || strings.Contains(candidate, key)
}
