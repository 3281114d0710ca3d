// Package period scopes datasets to a reporting month.
package period

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"mfg-report-go/internal/record"
	"mfg-report-go/internal/resolver"
)

// Period is a reporting month. The zero value means all time.
type Period struct {
	Year  int `json:"year" yaml:"year"`
	Month int `json:"month" yaml:"month"`
}

var ErrInvalidPeriod = errors.New("invalid period")

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

func (p Period) String() string {
	if p.IsZero() {
		return "all"
	}
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// Contains reports whether t falls inside p.
func (p Period) Contains(t time.Time) bool {
	if p.IsZero() {
		return true
	}
	return t.Year() == p.Year && int(t.Month()) == p.Month
}

// Of returns the month containing t.
func Of(t time.Time) Period {
	return Period{Year: t.Year(), Month: int(t.Month())}
}

// ParsePeriod accepts "2024-03", "2024/03", "202403" and "" or "all" for all time.
func ParsePeriod(s string) (Period, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return Period{}, nil
	}
	t, ok := ParseDate(s)
	if !ok {
		if len(s) == 6 {
			if t2, err := time.Parse("200601", s); err == nil {
				return Of(t2), nil
			}
		}
		return Period{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
	return Of(t), nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
	"20060102",
	"2006-01",
	"2006/01",
	"2006.01",
}

var koreanDate = regexp.MustCompile(`^(\d{4})\s*년\s*(\d{1,2})\s*월(?:\s*(\d{1,2})\s*일)?$`)

// Excel serials between these bounds are treated as dates (1954 through 2119).
const (
	minSerial = 20000
	maxSerial = 80000
)

// ParseDate reads the date formats seen in factory exports. Numbers are
// read as compact YYYYMMDD or as Excel serial dates.
func ParseDate(v any) (time.Time, bool) {
	switch n := v.(type) {
	case nil:
		return time.Time{}, false
	case float64:
		return fromNumber(n)
	case time.Time:
		return n, !n.IsZero()
	}
	s := strings.TrimSpace(record.Text(v))
	if s == "" {
		return time.Time{}, false
	}
	s = strings.TrimSuffix(s, ".")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if m := koreanDate.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d := 1
		if m[3] != "" {
			d, _ = strconv.Atoi(m[3])
		}
		if mo < 1 || mo > 12 || d < 1 || d > 31 {
			return time.Time{}, false
		}
		return time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC), true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return fromNumber(f)
	}
	return time.Time{}, false
}

func fromNumber(f float64) (time.Time, bool) {
	if f >= 19000101 && f <= 21001231 && f == float64(int64(f)) {
		t, err := time.Parse("20060102", strconv.FormatInt(int64(f), 10))
		return t, err == nil
	}
	if f < minSerial || f > maxSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// FilterStats describe what a period filter kept.
type FilterStats struct {
	Total    int `json:"total"`
	Included int `json:"included"`
	Undated  int `json:"undated"`
}

// Filter keeps records dated inside p. Records without a readable date are
// kept in every period and counted as Undated.
func Filter(records []record.Record, p Period, r *resolver.Resolver, dateFields []string) ([]record.Record, FilterStats) {
	st := FilterStats{Total: len(records)}
	out := make([]record.Record, 0, len(records))
	for _, rec := range records {
		t, ok := recordDate(rec, r, dateFields)
		if !ok {
			st.Undated++
			out = append(out, rec)
			continue
		}
		if p.Contains(t) {
			out = append(out, rec)
		}
	}
	st.Included = len(out)
	return out, st
}

func recordDate(rec record.Record, r *resolver.Resolver, dateFields []string) (time.Time, bool) {
	if r == nil {
		r = &resolver.Resolver{}
	}
	v, ok := r.Resolve(rec, dateFields)
	if !ok {
		return time.Time{}, false
	}
	return ParseDate(v)
}

// MergeByMonth replaces the months present in incoming and keeps every
// other existing record. Undated existing records are kept; undated
// incoming records are appended.
func MergeByMonth(existing, incoming []record.Record, r *resolver.Resolver, dateFields []string) []record.Record {
	months := map[Period]struct{}{}
	for _, rec := range incoming {
		if t, ok := recordDate(rec, r, dateFields); ok {
			months[Of(t)] = struct{}{}
		}
	}
	out := make([]record.Record, 0, len(existing)+len(incoming))
	for _, rec := range existing {
		if t, ok := recordDate(rec, r, dateFields); ok {
			if _, replaced := months[Of(t)]; replaced {
				continue
			}
		}
		out = append(out, rec)
	}
	return append(out, incoming...)
}
