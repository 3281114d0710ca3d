package dataset

import (
	"mfg-report-go/internal/record"
)

// ColumnSummary describes one column of a stored dataset.
type ColumnSummary struct {
	Name    string  `json:"name"`
	Filled  int     `json:"filled"`
	Numeric int     `json:"numeric"`
	Fill    float64 `json:"fill"`
}

// Summary is the shape preview shown after an upload.
type Summary struct {
	Rows    int             `json:"rows"`
	Columns []ColumnSummary `json:"columns"`
}

// Summarize lists columns in first-seen order with how often each is filled.
func Summarize(records []record.Record) Summary {
	index := map[string]int{}
	var cols []ColumnSummary
	for _, rec := range records {
		for _, k := range rec.Keys() {
			i, ok := index[k]
			if !ok {
				i = len(cols)
				index[k] = i
				cols = append(cols, ColumnSummary{Name: k})
			}
			v, _ := rec.Get(k)
			if record.IsEmpty(v) {
				continue
			}
			cols[i].Filled++
			if _, ok := record.Number(v); ok {
				cols[i].Numeric++
			}
		}
	}
	for i := range cols {
		if len(records) > 0 {
			cols[i].Fill = float64(cols[i].Filled) / float64(len(records))
		}
	}
	return Summary{Rows: len(records), Columns: cols}
}
