// Package record holds the heterogeneous, column-ordered rows every dataset
// is loaded into. Schemas are not fixed; values are string, float64 or absent.
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Record is an ordered mapping from field name to a scalar value.
// Keys keep the column order of the upload they came from.
type Record struct {
	keys   []string
	values map[string]any
}

// New builds a record from alternating key/value pairs.
func New(pairs ...any) Record {
	r := Record{values: make(map[string]any, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		k, ok := pairs[i].(string)
		if !ok {
			continue
		}
		r.set(k, pairs[i+1])
	}
	return r
}

// FromColumns zips a header row with one data row. Empty cells become absent.
func FromColumns(header, row []string) Record {
	r := Record{values: make(map[string]any, len(header))}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		var v any
		if i < len(row) {
			if cell := strings.TrimSpace(row[i]); cell != "" {
				v = cell
			}
		}
		r.set(h, v)
	}
	return r
}

func (r *Record) set(key string, v any) {
	if r.values == nil {
		r.values = map[string]any{}
	}
	switch n := v.(type) {
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	case float32:
		v = float64(n)
	}
	if _, exists := r.values[key]; !exists {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
}

// With returns a copy of r with key set to v. r itself is never mutated.
func (r Record) With(key string, v any) Record {
	c := r.Clone()
	c.set(key, v)
	return c
}

// Clone returns an independent copy.
func (r Record) Clone() Record {
	c := Record{
		keys:   append([]string(nil), r.keys...),
		values: make(map[string]any, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

// Get returns the raw value stored under the exact key.
func (r Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Keys returns field names in column order.
func (r Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

func (r Record) Len() int { return len(r.keys) }

// IsEmpty reports whether a value counts as missing: absent, nil or blank text.
func IsEmpty(v any) bool {
	switch s := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(s) == ""
	}
	return false
}

// Number converts a scalar to float64. Strings may carry thousands
// separators, a trailing percent sign or a currency prefix. NaN and
// infinities are not numbers here.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if !finite(n) {
			return 0, false
		}
		return n, true
	case int:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		s = strings.TrimSuffix(s, "%")
		s = strings.TrimPrefix(s, "₩")
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || !finite(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Text renders a scalar for display and grouping keys.
func Text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// MarshalJSON writes the record as a JSON object in column order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a flat JSON object, keeping key order. Nested values
// are rejected; booleans are kept as their text form.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("record: expected object")
	}
	*r = Record{values: map[string]any{}}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		vt, err := dec.Token()
		if err != nil {
			return err
		}
		switch v := vt.(type) {
		case json.Delim:
			return fmt.Errorf("record: field %q is not a scalar", key)
		case json.Number:
			f, err := v.Float64()
			if err != nil {
				return fmt.Errorf("record: field %q: %w", key, err)
			}
			r.set(key, f)
		case bool:
			r.set(key, strconv.FormatBool(v))
		default:
			r.set(key, v)
		}
	}
	_, err = dec.Token()
	return err
}
