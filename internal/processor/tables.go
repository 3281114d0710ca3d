package processor

import (
	"strconv"

	"mfg-report-go/internal/export"
	"mfg-report-go/internal/types"
)

// GroupsTable is the per-equipment OEE grid, with the overall row last.
func GroupsTable(d Dashboard) export.Table {
	t := export.Table{
		Title:  "OEE_설비별",
		Header: []string{"공정", "설비", "생산수량", "양품수량", "불량수량", "불량금액", "시간가동율", "성능가동율", "양품율", "OEE"},
	}
	row := func(process, equipment string, g types.GroupMetric) []string {
		return []string{
			process, equipment,
			export.FormatNumber(g.Production),
			export.FormatNumber(g.Good),
			export.FormatNumber(g.Defect),
			export.FormatNumber(g.DefectAmount),
			export.FormatNumber(g.TimeAvailability),
			export.FormatNumber(g.PerformanceRate),
			export.FormatNumber(g.QualityRate),
			export.FormatNumber(g.OEE),
		}
	}
	for _, g := range d.Groups {
		t.Rows = append(t.Rows, row(g.Process, g.Equipment, g))
	}
	t.Rows = append(t.Rows, row("Total", "", d.Overall))
	return t
}

// IssuesTable lists issues in detection order.
func IssuesTable(issues []types.Issue) export.Table {
	t := export.Table{
		Title:  "Issues",
		Header: []string{"id", "severity", "process", "subject", "metric", "current", "threshold", "diff", "rank", "detail"},
	}
	for _, is := range issues {
		threshold := export.FormatNumber(is.Threshold)
		if is.RankBased {
			threshold = ""
		}
		t.Rows = append(t.Rows, []string{
			is.ID,
			string(is.Severity),
			is.Process,
			is.Subject,
			is.Metric,
			export.FormatNumber(is.CurrentValue),
			threshold,
			export.FormatNumber(is.Diff),
			strconv.FormatBool(is.RankBased),
			is.Detail,
		})
	}
	return t
}
