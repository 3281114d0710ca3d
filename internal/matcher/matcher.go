package matcher

import (
	"strings"

	"mfg-report-go/internal/record"
	"mfg-report-go/internal/resolver"
)

// KeyFields are the candidate lists for each join key type.
type KeyFields struct {
	Code    []string
	AltCode []string
	Name    []string
}

// ItemKeys returns the join keys for matching production items to a price list.
func ItemKeys(a resolver.Aliases) KeyFields {
	return KeyFields{
		Code:    a.Candidates(resolver.FieldItemCode),
		AltCode: a.Candidates(resolver.FieldAltCode),
		Name:    a.Candidates(resolver.FieldItemName),
	}
}

// MatchedBy names the key type that produced a join.
type MatchedBy string

const (
	ByNone    MatchedBy = ""
	ByCode    MatchedBy = "code"
	ByAltCode MatchedBy = "altCode"
	ByName    MatchedBy = "name"
)

// JoinStats is surfaced to callers so the UI can warn about data gaps.
// Unmatched records still count toward Total.
type JoinStats struct {
	Total     int `json:"total"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
}

func (s *JoinStats) Observe(ok bool) {
	s.Total++
	if ok {
		s.Matched++
	} else {
		s.Unmatched++
	}
}

func normalizeKey(v string) string {
	return resolver.Normalize(v)
}

// Index is a prebuilt lookup over a reference set. Within each key type the
// earliest reference record wins.
type Index struct {
	keys    KeyFields
	r       *resolver.Resolver
	code    map[string]int
	altCode map[string]int
	name    map[string]int
	refs    []record.Record
}

// NewIndex resolves every reference record's keys once.
func NewIndex(refs []record.Record, keys KeyFields, r *resolver.Resolver) *Index {
	if r == nil {
		r = &resolver.Resolver{}
	}
	idx := &Index{
		keys:    keys,
		r:       r,
		code:    map[string]int{},
		altCode: map[string]int{},
		name:    map[string]int{},
		refs:    refs,
	}
	for i, ref := range refs {
		code, alt, name := idx.keyValues(ref)
		put(idx.code, code, i)
		put(idx.altCode, alt, i)
		put(idx.name, name, i)
	}
	return idx
}

// keyValues reads the three join keys. Key columns must match a candidate
// exactly or after normalization, never by substring.
func (x *Index) keyValues(rec record.Record) (code, alt, name string) {
	code = normalizeKey(x.r.KeyString(rec, x.keys.Code))
	alt = normalizeKey(x.r.KeyString(rec, x.keys.AltCode))
	name = normalizeKey(x.r.KeyString(rec, x.keys.Name))
	return code, alt, name
}

func put(m map[string]int, k string, i int) {
	if k == "" {
		return
	}
	if _, exists := m[k]; !exists {
		m[k] = i
	}
}

// Len reports the number of reference records.
func (x *Index) Len() int { return len(x.refs) }

// Lookup finds target's counterpart: primary code, then alternate code, then name.
// A step runs only when the target has a value for that key type.
func (x *Index) Lookup(target record.Record) (record.Record, MatchedBy, bool) {
	code, alt, name := x.keyValues(target)

	if code != "" {
		if i, ok := x.code[code]; ok {
			return x.refs[i], ByCode, true
		}
	}
	if i, ok := x.lookupAlt(code, alt); ok {
		return x.refs[i], ByAltCode, true
	}
	if name != "" {
		if i, ok := x.name[name]; ok {
			return x.refs[i], ByName, true
		}
	}
	return record.Record{}, ByNone, false
}

// lookupAlt tries the target's alternate code against the reference's alternate
// and primary codes, then the target's primary code against reference alternates.
// The earliest reference among the hits wins.
func (x *Index) lookupAlt(code, alt string) (int, bool) {
	best := -1
	consider := func(m map[string]int, k string) {
		if k == "" {
			return
		}
		if i, ok := m[k]; ok && (best < 0 || i < best) {
			best = i
		}
	}
	if alt != "" {
		consider(x.altCode, alt)
		consider(x.code, alt)
	}
	consider(x.altCode, code)
	return best, best >= 0
}

// Match joins target to its counterpart in refs. It returns false when nothing
// matches and never substitutes a default record.
func Match(target record.Record, refs []record.Record, keys KeyFields) (record.Record, bool) {
	ref, _, ok := NewIndex(refs, keys, nil).Lookup(target)
	return ref, ok
}

// ExtractValue resolves a numeric field like the resolver does, then falls
// back to scanning every column whose name contains marker. Only strictly
// positive numbers are accepted.
func ExtractValue(rec record.Record, candidates []string, marker string) (float64, bool) {
	var r resolver.Resolver
	if v, ok := r.Number(rec, candidates); ok && v > 0 {
		return v, true
	}
	nm := normalizeKey(marker)
	if nm == "" {
		return 0, false
	}
	for _, k := range rec.Keys() {
		if !strings.Contains(normalizeKey(k), nm) {
			continue
		}
		v, _ := rec.Get(k)
		if n, ok := record.Number(v); ok && n > 0 {
			return n, true
		}
	}
	return 0, false
}
