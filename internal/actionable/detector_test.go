package actionable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mfg-report-go/internal/aggregator"
	"mfg-report-go/internal/types"
)

func availabilityProfile() Profile {
	return Profile{
		Name:  "test",
		Rules: []Rule{{Metric: MetricTimeAvailability, Direction: Below, Threshold: 90}},
		Tiers: DefaultTiers(),
	}
}

func TestDetect_SeverityTiers(t *testing.T) {
	groups := []GroupValues{
		{Process: "사출", Subject: "IM-01", Values: map[string]float64{MetricTimeAvailability: 82}},
		{Process: "사출", Subject: "IM-02", Values: map[string]float64{MetricTimeAvailability: 70}},
		{Process: "사출", Subject: "IM-03", Values: map[string]float64{MetricTimeAvailability: 79}},
		{Process: "사출", Subject: "IM-04", Values: map[string]float64{MetricTimeAvailability: 90}},
		{Process: "사출", Subject: "IM-05", Values: map[string]float64{}},
	}
	issues := Detect(groups, availabilityProfile())
	require.Len(t, issues, 3, "value equal to threshold is not a violation")

	assert.Equal(t, "IM-02", issues[0].Subject)
	assert.Equal(t, 20.0, issues[0].Diff)
	assert.Equal(t, types.SeverityCritical, issues[0].Severity)

	assert.Equal(t, "IM-03", issues[1].Subject)
	assert.Equal(t, types.SeverityWarning, issues[1].Severity)

	assert.Equal(t, "IM-01", issues[2].Subject)
	assert.Equal(t, 8.0, issues[2].Diff)
	assert.Equal(t, types.SeverityCaution, issues[2].Severity)
	assert.Equal(t, 90.0, issues[2].Threshold)
	assert.Equal(t, "time availability 82 < threshold 90 (off by 8)", issues[2].Detail)
}

func TestDetect_AboveDirectionAndCustomTiers(t *testing.T) {
	p := Profile{
		Name:  "t",
		Rules: []Rule{{Metric: MetricDefectRate, Direction: Above, Threshold: 2}},
		Tiers: Tiers{Critical: 3, Warning: 1},
	}
	issues := Detect([]GroupValues{
		{Subject: "a", Values: map[string]float64{MetricDefectRate: 5.5}},
		{Subject: "b", Values: map[string]float64{MetricDefectRate: 3.5}},
		{Subject: "c", Values: map[string]float64{MetricDefectRate: 1}},
	}, p)
	require.Len(t, issues, 2)
	assert.Equal(t, types.SeverityCritical, issues[0].Severity)
	assert.Equal(t, types.SeverityWarning, issues[1].Severity)
}

func TestDetect_RankRulesAlwaysEmit(t *testing.T) {
	p := Profile{
		Name:      "t",
		RankRules: []RankRule{{Metric: MetricMaterialDefect, TopK: 3}},
		Tiers:     DefaultTiers(),
	}
	groups := []GroupValues{
		{Subject: "PP", Values: map[string]float64{MetricMaterialDefect: 1}},
		{Subject: "ABS", Values: map[string]float64{MetricMaterialDefect: 40}},
		{Subject: "PC", Values: map[string]float64{MetricMaterialDefect: 2}},
		{Subject: "PE", Values: map[string]float64{MetricMaterialDefect: 7}},
		{Subject: "none", Values: map[string]float64{MetricMaterialDefect: 0}},
	}
	issues := Detect(groups, p)
	require.Len(t, issues, 3)
	assert.Equal(t, []string{"ABS", "PE", "PC"}, []string{issues[0].Subject, issues[1].Subject, issues[2].Subject})
	assert.True(t, issues[0].RankBased)
	assert.Equal(t, types.SeverityCritical, issues[0].Severity)
	assert.Equal(t, types.SeverityWarning, issues[2].Severity)

	assert.Empty(t, Detect(nil, p))
}

func TestDetect_ThresholdBeforeRankAndStableIDs(t *testing.T) {
	p := availabilityProfile()
	p.RankRules = []RankRule{{Metric: MetricDefectAmount, TopK: 1}}
	groups := []GroupValues{
		{Process: "사출", Subject: "IM-01", Values: map[string]float64{MetricTimeAvailability: 50, MetricDefectAmount: 900}},
	}
	first := Detect(groups, p)
	second := Detect(groups, p)
	require.Len(t, first, 2)
	assert.False(t, first[0].RankBased)
	assert.True(t, first[1].RankBased)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.NotEqual(t, first[0].ID, first[1].ID)
}

func TestFromInsight(t *testing.T) {
	ins := aggregator.Insight{
		Groups: []types.GroupMetric{{Process: "사출", Equipment: "IM-01", Production: 200, Defect: 10, TimeAvailability: 80, QualityRate: 95, OEE: 76}},
		CycleTime: []aggregator.CycleTimeGroup{
			{Process: "사출", Equipment: "IM-01", ExcessPct: 25},
		},
		MaterialDefects: []aggregator.MaterialDefect{{Material: "PP", Qty: 4}},
	}
	groups := FromInsight(ins)
	require.Len(t, groups, 3)
	assert.Equal(t, 5.0, groups[0].Values[MetricDefectRate])
	assert.Equal(t, 80.0, groups[0].Values[MetricTimeAvailability])

	issues := Detect(groups, Presets()["standard"])
	metrics := map[string]bool{}
	for _, is := range issues {
		metrics[is.Metric] = true
	}
	assert.True(t, metrics[MetricTimeAvailability])
	assert.True(t, metrics[MetricDefectRate])
	assert.True(t, metrics[MetricCTExcess])
	assert.True(t, metrics[MetricMaterialDefect])
}

func TestProfiles(t *testing.T) {
	for _, name := range PresetNames() {
		p, ok := Lookup(name, nil)
		require.True(t, ok, name)
		assert.NoError(t, p.Validate(), name)
	}
	assert.Equal(t, []string{"relaxed", "standard", "strict"}, PresetNames())

	_, ok := Lookup(CustomProfile, nil)
	assert.False(t, ok)

	custom := availabilityProfile()
	p, ok := Lookup(CustomProfile, &custom)
	require.True(t, ok)
	assert.Equal(t, CustomProfile, p.Name)
	assert.Equal(t, "test", custom.Name, "lookup copies the custom profile")

	_, ok = Lookup("nope", nil)
	assert.False(t, ok)
}

func TestProfile_Validate(t *testing.T) {
	bad := []Profile{
		{},
		{Name: "x", Rules: []Rule{{Metric: "bogus", Direction: Below}}},
		{Name: "x", Rules: []Rule{{Metric: MetricOEE, Direction: "sideways"}}},
		{Name: "x", RankRules: []RankRule{{Metric: MetricMaterialDefect}}},
		{Name: "x", Tiers: Tiers{Critical: 5, Warning: 10}},
	}
	for i, p := range bad {
		assert.ErrorIs(t, p.Validate(), ErrInvalidProfile, "case %d", i)
	}
}
