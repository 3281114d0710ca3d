package actionable

import (
	"errors"
	"fmt"
	"sort"

	"mfg-report-go/internal/types"
)

// Metric names understood by the detector.
const (
	MetricTimeAvailability = "timeAvailability"
	MetricQualityRate      = "qualityRate"
	MetricOEE              = "oee"
	MetricDefectRate       = "defectRate"
	MetricCTExcess         = "ctExcess"
	MetricMaterialDefect   = "materialDefect"
	MetricDefectAmount     = "defectAmount"
)

var metricLabels = map[string]string{
	MetricTimeAvailability: "time availability",
	MetricQualityRate:      "quality rate",
	MetricOEE:              "OEE",
	MetricDefectRate:       "defect rate",
	MetricCTExcess:         "cycle time excess",
	MetricMaterialDefect:   "material defect qty",
	MetricDefectAmount:     "defect amount",
}

// Direction says which side of the threshold is a violation.
type Direction string

const (
	Below Direction = "below"
	Above Direction = "above"
)

// Rule flags groups whose metric crosses Threshold in Direction.
type Rule struct {
	Metric    string    `json:"metric" yaml:"metric"`
	Direction Direction `json:"direction" yaml:"direction"`
	Threshold float64   `json:"threshold" yaml:"threshold"`
}

// RankRule always reports the TopK largest values of Metric.
type RankRule struct {
	Metric string `json:"metric" yaml:"metric"`
	TopK   int    `json:"topK" yaml:"topK"`
}

// Tiers map the distance from a threshold to a severity.
type Tiers struct {
	Critical float64 `json:"critical" yaml:"critical"`
	Warning  float64 `json:"warning" yaml:"warning"`
}

func DefaultTiers() Tiers { return Tiers{Critical: 20, Warning: 10} }

func (t Tiers) Severity(diff float64) types.Severity {
	switch {
	case diff >= t.Critical:
		return types.SeverityCritical
	case diff >= t.Warning:
		return types.SeverityWarning
	}
	return types.SeverityCaution
}

// Profile is a named, versioned threshold configuration.
type Profile struct {
	Name      string     `json:"name" yaml:"name"`
	Version   int        `json:"version" yaml:"version"`
	Rules     []Rule     `json:"rules" yaml:"rules"`
	RankRules []RankRule `json:"rankRules" yaml:"rankRules"`
	Tiers     Tiers      `json:"tiers" yaml:"tiers"`
}

const CustomProfile = "custom"

var ErrInvalidProfile = errors.New("invalid threshold profile")

func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProfile)
	}
	for _, r := range p.Rules {
		if _, ok := metricLabels[r.Metric]; !ok {
			return fmt.Errorf("%w: unknown metric %q", ErrInvalidProfile, r.Metric)
		}
		if r.Direction != Below && r.Direction != Above {
			return fmt.Errorf("%w: rule %s has direction %q", ErrInvalidProfile, r.Metric, r.Direction)
		}
	}
	for _, r := range p.RankRules {
		if _, ok := metricLabels[r.Metric]; !ok {
			return fmt.Errorf("%w: unknown metric %q", ErrInvalidProfile, r.Metric)
		}
		if r.TopK <= 0 {
			return fmt.Errorf("%w: rank rule %s needs topK > 0", ErrInvalidProfile, r.Metric)
		}
	}
	if p.Tiers.Critical < p.Tiers.Warning || p.Tiers.Warning < 0 {
		return fmt.Errorf("%w: tiers must satisfy critical >= warning >= 0", ErrInvalidProfile)
	}
	return nil
}

func defaultRankRules() []RankRule {
	return []RankRule{
		{Metric: MetricMaterialDefect, TopK: 5},
		{Metric: MetricDefectAmount, TopK: 5},
	}
}

// Presets returns the built-in profiles keyed by name.
func Presets() map[string]Profile {
	return map[string]Profile{
		"standard": {
			Name:    "standard",
			Version: 1,
			Rules: []Rule{
				{Metric: MetricTimeAvailability, Direction: Below, Threshold: 90},
				{Metric: MetricDefectRate, Direction: Above, Threshold: 3},
				{Metric: MetricCTExcess, Direction: Above, Threshold: 10},
			},
			RankRules: defaultRankRules(),
			Tiers:     DefaultTiers(),
		},
		"strict": {
			Name:    "strict",
			Version: 1,
			Rules: []Rule{
				{Metric: MetricTimeAvailability, Direction: Below, Threshold: 95},
				{Metric: MetricOEE, Direction: Below, Threshold: 85},
				{Metric: MetricDefectRate, Direction: Above, Threshold: 1},
				{Metric: MetricCTExcess, Direction: Above, Threshold: 5},
			},
			RankRules: defaultRankRules(),
			Tiers:     Tiers{Critical: 15, Warning: 5},
		},
		"relaxed": {
			Name:    "relaxed",
			Version: 1,
			Rules: []Rule{
				{Metric: MetricTimeAvailability, Direction: Below, Threshold: 80},
				{Metric: MetricDefectRate, Direction: Above, Threshold: 5},
				{Metric: MetricCTExcess, Direction: Above, Threshold: 20},
			},
			RankRules: []RankRule{{Metric: MetricMaterialDefect, TopK: 3}, {Metric: MetricDefectAmount, TopK: 3}},
			Tiers:     DefaultTiers(),
		},
	}
}

// PresetNames lists preset names in stable order.
func PresetNames() []string {
	p := Presets()
	names := make([]string, 0, len(p))
	for n := range p {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup resolves a profile name. "custom" returns the caller's edited profile.
func Lookup(name string, custom *Profile) (Profile, bool) {
	if name == CustomProfile {
		if custom == nil {
			return Profile{}, false
		}
		c := *custom
		c.Name = CustomProfile
		return c, true
	}
	p, ok := Presets()[name]
	return p, ok
}
