// Package oee derives composite efficiency (OEE) figures from production
// totals and optional availability observations.
package oee

import (
	"math"

	"mfg-report-go/internal/types"
)

const (
	// PerformanceRate is fixed: no rated-speed source exists for these lines.
	PerformanceRate = 100.0
	// DefaultAvailability applies when no availability observation is usable.
	DefaultAvailability = 100.0
)

// AvailabilitySample is one observation (e.g. one day) for a group.
// Percent and ScheduledMinutes count only when positive. Operating and
// downtime minutes may legitimately be zero, so their presence is explicit.
type AvailabilitySample struct {
	Percent          float64 `json:"percent,omitempty"`
	OperatingMinutes float64 `json:"operatingMinutes,omitempty"`
	ScheduledMinutes float64 `json:"scheduledMinutes,omitempty"`
	DowntimeMinutes  float64 `json:"downtimeMinutes,omitempty"`
	HasOperating     bool    `json:"hasOperating,omitempty"`
	HasDowntime      bool    `json:"hasDowntime,omitempty"`
}

// Availability returns the sample's time availability in percent, trying the
// reported percentage, then operating/scheduled, then operating/(operating+downtime).
// Both derived forms need reported operating minutes.
func (s AvailabilitySample) Availability() (float64, bool) {
	if valid(s.Percent) && s.Percent > 0 && s.Percent <= 100 {
		return s.Percent, true
	}
	if !s.HasOperating || !valid(s.OperatingMinutes) || s.OperatingMinutes < 0 {
		return 0, false
	}
	if valid(s.ScheduledMinutes) && s.ScheduledMinutes > 0 {
		return clamp(s.OperatingMinutes / s.ScheduledMinutes * 100), true
	}
	if s.HasDowntime && valid(s.DowntimeMinutes) && s.DowntimeMinutes >= 0 {
		if total := s.OperatingMinutes + s.DowntimeMinutes; total > 0 {
			return clamp(s.OperatingMinutes / total * 100), true
		}
	}
	return 0, false
}

// Weight is the sample's share in a within-group mean.
func (s AvailabilitySample) Weight() float64 {
	if valid(s.ScheduledMinutes) && s.ScheduledMinutes > 0 {
		return s.ScheduledMinutes
	}
	return 1
}

// CombineAvailability is the scheduled-minutes weighted mean of the usable samples.
func CombineAvailability(samples []AvailabilitySample) (float64, bool) {
	var num, den float64
	for _, s := range samples {
		a, ok := s.Availability()
		if !ok {
			continue
		}
		w := s.Weight()
		num += a * w
		den += w
	}
	if den == 0 {
		return 0, false
	}
	return num / den, true
}

// QualityRate is good/production in percent, 0 when nothing was produced.
func QualityRate(good, production float64) float64 {
	return Ratio(good, production) * 100
}

// Ratio divides with a zero guard; never returns NaN or Inf.
func Ratio(num, den float64) float64 {
	if den == 0 || !valid(num) || !valid(den) {
		return 0
	}
	r := num / den
	if !valid(r) {
		return 0
	}
	return r
}

// Compose is A × P × Q / 10000.
func Compose(availability, performance, quality float64) float64 {
	return availability * performance * quality / 10000
}

// ComputeGroupMetric combines one group's totals with its availability samples.
func ComputeGroupMetric(totals types.ProductionTotals, samples []AvailabilitySample) types.GroupMetric {
	m := types.GroupMetric{
		Production:      totals.Production,
		Good:            totals.Good,
		Defect:          totals.Defect,
		DefectAmount:    totals.DefectAmount,
		PerformanceRate: PerformanceRate,
		QualityRate:     QualityRate(totals.Good, totals.Production),
	}
	if a, ok := CombineAvailability(samples); ok {
		m.TimeAvailability = a
		m.AvailabilityMeasured = true
	} else {
		m.TimeAvailability = DefaultAvailability
	}
	m.OEE = Compose(m.TimeAvailability, m.PerformanceRate, m.QualityRate)
	return m
}

// Rollup merges group metrics into one headline figure. Availability is the
// production-weighted mean of the groups; when nothing was produced it falls
// back to the plain mean so the figure is still defined.
func Rollup(groups []types.GroupMetric) types.GroupMetric {
	out := types.GroupMetric{PerformanceRate: PerformanceRate}
	if len(groups) == 0 {
		out.TimeAvailability = DefaultAvailability
		return out
	}
	var weighted, plain float64
	for _, g := range groups {
		out.Production += g.Production
		out.Good += g.Good
		out.Defect += g.Defect
		out.DefectAmount += g.DefectAmount
		weighted += g.TimeAvailability * g.Production
		plain += g.TimeAvailability
		out.AvailabilityMeasured = out.AvailabilityMeasured || g.AvailabilityMeasured
	}
	if out.Production > 0 {
		out.TimeAvailability = weighted / out.Production
	} else {
		out.TimeAvailability = plain / float64(len(groups))
	}
	out.QualityRate = QualityRate(out.Good, out.Production)
	out.OEE = Compose(out.TimeAvailability, out.PerformanceRate, out.QualityRate)
	return out
}

func valid(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clamp(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
