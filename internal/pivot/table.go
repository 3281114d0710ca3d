package pivot

import (
	"strings"

	"mfg-report-go/internal/export"
)

// Table lays the result out as displayed: row field columns, one column per
// column combination, a row total column when columns are split, and a final
// total row. Numbers use the display rounding policy.
func (r Result) Table(title string) export.Table {
	t := export.Table{Title: title}
	if r.Empty() {
		return t
	}

	rowHeads := r.RowFields
	if len(rowHeads) == 0 {
		rowHeads = []string{""}
	}
	split := len(r.ColFields) > 0

	t.Header = append(t.Header, rowHeads...)
	for _, c := range r.Cols {
		t.Header = append(t.Header, strings.Join(c, " / "))
	}
	if split {
		t.Header = append(t.Header, TotalSentinel)
	}

	for i, rt := range r.Rows {
		line := make([]string, 0, len(t.Header))
		line = append(line, rt...)
		for _, v := range r.Matrix[i] {
			line = append(line, export.FormatNumber(v))
		}
		if split {
			line = append(line, export.FormatNumber(r.RowTotals[i]))
		}
		t.Rows = append(t.Rows, line)
	}

	total := make([]string, 0, len(t.Header))
	total = append(total, TotalSentinel)
	for i := 1; i < len(rowHeads); i++ {
		total = append(total, "")
	}
	for _, v := range r.ColTotals {
		total = append(total, export.FormatNumber(v))
	}
	if split {
		total = append(total, export.FormatNumber(r.GrandTotal))
	}
	t.Rows = append(t.Rows, total)
	return t
}
