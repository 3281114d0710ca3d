package actionable

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/google/uuid"

	"mfg-report-go/internal/aggregator"
	"mfg-report-go/internal/export"
	"mfg-report-go/internal/oee"
	"mfg-report-go/internal/types"
)

// GroupValues carries one group's metric values into the detector.
// A metric missing from Values is not evaluated for that group.
type GroupValues struct {
	Process string
	Subject string
	Values  map[string]float64
}

var issueNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("mfg-report-go/issue"))

func issueID(kind, metric, process, subject string) string {
	return uuid.NewSHA1(issueNamespace, []byte(strings.Join([]string{kind, metric, process, subject}, "\x1f"))).String()
}

// Detect evaluates every threshold rule and rank rule of the profile.
// Threshold issues come first, largest diff first; rank issues follow in rule
// order, largest magnitude first.
func Detect(groups []GroupValues, profile Profile) []types.Issue {
	var threshold []types.Issue
	for _, rule := range profile.Rules {
		for _, g := range groups {
			v, ok := g.Values[rule.Metric]
			if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			violated := (rule.Direction == Below && v < rule.Threshold) ||
				(rule.Direction == Above && v > rule.Threshold)
			if !violated {
				continue
			}
			diff := math.Abs(v - rule.Threshold)
			op := "<"
			if rule.Direction == Above {
				op = ">"
			}
			threshold = append(threshold, types.Issue{
				ID:           issueID("threshold", rule.Metric, g.Process, g.Subject),
				Process:      g.Process,
				Subject:      g.Subject,
				Metric:       rule.Metric,
				CurrentValue: v,
				Threshold:    rule.Threshold,
				Diff:         diff,
				Severity:     profile.Tiers.Severity(diff),
				Detail: fmt.Sprintf("%s %s %s threshold %s (off by %s)",
					metricLabels[rule.Metric], export.FormatNumber(v), op,
					export.FormatNumber(rule.Threshold), export.FormatNumber(diff)),
			})
		}
	}
	sort.SliceStable(threshold, func(i, j int) bool {
		return threshold[i].Diff > threshold[j].Diff
	})

	out := threshold
	for _, rule := range profile.RankRules {
		out = append(out, rank(groups, rule)...)
	}
	return out
}

// rank emits up to TopK groups with a positive value, regardless of any threshold.
func rank(groups []GroupValues, rule RankRule) []types.Issue {
	type entry struct {
		g GroupValues
		v float64
	}
	var entries []entry
	for _, g := range groups {
		v, ok := g.Values[rule.Metric]
		if !ok || !(v > 0) || math.IsInf(v, 0) {
			continue
		}
		entries = append(entries, entry{g, v})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].v > entries[j].v })
	if rule.TopK > 0 && len(entries) > rule.TopK {
		entries = entries[:rule.TopK]
	}

	out := make([]types.Issue, 0, len(entries))
	for i, e := range entries {
		out = append(out, types.Issue{
			ID:           issueID("rank", rule.Metric, e.g.Process, e.g.Subject),
			Process:      e.g.Process,
			Subject:      e.g.Subject,
			Metric:       rule.Metric,
			CurrentValue: e.v,
			Diff:         e.v,
			Severity:     rankSeverity(i),
			Detail:       fmt.Sprintf("#%d %s: %s", i+1, metricLabels[rule.Metric], export.FormatNumber(e.v)),
			RankBased:    true,
		})
	}
	return out
}

func rankSeverity(pos int) types.Severity {
	switch {
	case pos == 0:
		return types.SeverityCritical
	case pos < 3:
		return types.SeverityWarning
	}
	return types.SeverityCaution
}

// FromInsight flattens aggregator output into detector input. Production
// groups, cycle-time groups and materials are separate subjects.
func FromInsight(ins aggregator.Insight) []GroupValues {
	out := make([]GroupValues, 0, len(ins.Groups)+len(ins.CycleTime)+len(ins.MaterialDefects))
	for _, g := range ins.Groups {
		vals := map[string]float64{
			MetricTimeAvailability: g.TimeAvailability,
			MetricQualityRate:      g.QualityRate,
			MetricOEE:              g.OEE,
			MetricDefectRate:       oee.Ratio(g.Defect, g.Production) * 100,
			MetricDefectAmount:     g.DefectAmount,
		}
		out = append(out, GroupValues{Process: g.Process, Subject: g.Equipment, Values: vals})
	}
	for _, ct := range ins.CycleTime {
		out = append(out, GroupValues{
			Process: ct.Process,
			Subject: ct.Equipment,
			Values:  map[string]float64{MetricCTExcess: ct.ExcessPct},
		})
	}
	for _, m := range ins.MaterialDefects {
		out = append(out, GroupValues{
			Subject: m.Material,
			Values:  map[string]float64{MetricMaterialDefect: m.Qty},
		})
	}
	return out
}
