package types

// ProductionTotals are the summed volumes for one group.
type ProductionTotals struct {
	Production   float64 `json:"production"`
	Good         float64 `json:"good"`
	Defect       float64 `json:"defect"`
	DefectAmount float64 `json:"defectAmount"`
}

// Add accumulates other into t.
func (t *ProductionTotals) Add(other ProductionTotals) {
	t.Production += other.Production
	t.Good += other.Good
	t.Defect += other.Defect
	t.DefectAmount += other.DefectAmount
}

// GroupMetric is the per-group composite efficiency result. Rates are percentages.
type GroupMetric struct {
	Process          string  `json:"process,omitempty"`
	Equipment        string  `json:"equipment,omitempty"`
	Production       float64 `json:"production"`
	Good             float64 `json:"good"`
	Defect           float64 `json:"defect"`
	DefectAmount     float64 `json:"defectAmount"`
	TimeAvailability float64 `json:"timeAvailability"`
	PerformanceRate  float64 `json:"performanceRate"`
	QualityRate      float64 `json:"qualityRate"`
	OEE              float64 `json:"oee"`
	// AvailabilityMeasured is false when TimeAvailability is the unmeasured default.
	AvailabilityMeasured bool `json:"availabilityMeasured"`
}

// Totals returns the volume part of the metric.
func (g GroupMetric) Totals() ProductionTotals {
	return ProductionTotals{
		Production:   g.Production,
		Good:         g.Good,
		Defect:       g.Defect,
		DefectAmount: g.DefectAmount,
	}
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityCaution  Severity = "caution"
)

// Issue is one detected problem, ready for the issue list view.
type Issue struct {
	ID           string   `json:"id"`
	Process      string   `json:"process"`
	Subject      string   `json:"subject"`
	Metric       string   `json:"metric"`
	CurrentValue float64  `json:"currentValue"`
	Threshold    float64  `json:"threshold"`
	Diff         float64  `json:"diff"`
	Severity     Severity `json:"severity"`
	Detail       string   `json:"detail"`
	RankBased    bool     `json:"rankBased,omitempty"`
}
