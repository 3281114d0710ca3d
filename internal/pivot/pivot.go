package pivot

import (
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"mfg-report-go/internal/record"
	"mfg-report-go/internal/resolver"
)

// ============================================================================
// PIVOT BUILDER — rows × columns contingency table over heterogeneous records
// ============================================================================
// One pass over the records feeds cell, row, column and grand accumulators.
// Display values are derived from accumulators at finalization only, so avg
// totals are sum/count of the rolled-up population, not a mean of means.
// ============================================================================

// Result is the rectangular table handed to the UI and exporters.
// Matrix[i][j] belongs to Rows[i] × Cols[j].
type Result struct {
	RowFields  []string    `json:"rowFields"`
	ColFields  []string    `json:"colFields"`
	AggFunc    AggFunc     `json:"aggFunc"`
	Rows       [][]string  `json:"rows"`
	Cols       [][]string  `json:"cols"`
	Matrix     [][]float64 `json:"matrix"`
	RowTotals  []float64   `json:"rowTotals"`
	ColTotals  []float64   `json:"colTotals"`
	GrandTotal float64     `json:"grandTotal"`
	Records    int         `json:"records"`
}

// Empty reports whether no table was produced.
func (r Result) Empty() bool { return len(r.Rows) == 0 }

type accumulator struct {
	sum   float64
	count int
	min   float64
	max   float64
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

func (a *accumulator) value(f AggFunc) float64 {
	if a == nil || a.count == 0 {
		return 0
	}
	switch f {
	case Count:
		return float64(a.count)
	case Avg:
		return a.sum / float64(a.count)
	case Min:
		return a.min
	case Max:
		return a.max
	default:
		return a.sum
	}
}

// Builder resolves pivot fields through a Resolver so inconsistent column
// names group together.
type Builder struct {
	r       *resolver.Resolver
	aliases resolver.Aliases
	log     *logrus.Entry
}

func NewBuilder(r *resolver.Resolver, aliases resolver.Aliases, log *logrus.Entry) *Builder {
	if r == nil {
		r = &resolver.Resolver{}
	}
	if aliases == nil {
		aliases = resolver.DefaultAliases()
	}
	return &Builder{r: r, aliases: aliases, log: log}
}

// Build groups records with default aliases and no logging.
func Build(records []record.Record, spec Spec) Result {
	return NewBuilder(nil, nil, nil).Build(records, spec)
}

const keySep = "\x1f"

func (b *Builder) Build(records []record.Record, spec Spec) Result {
	if err := spec.Validate(); err != nil && b.log != nil {
		b.log.WithError(err).Warn("pivot spec normalized")
	}
	spec = spec.Normalized()
	if len(spec.RowFields) == 0 && len(spec.ColFields) == 0 {
		return Result{AggFunc: spec.AggFunc}
	}

	rowCands := b.expand(spec.RowFields)
	colCands := b.expand(spec.ColFields)
	var valueCands []string
	if spec.ValueField != "" {
		valueCands = b.aliases.Expand(spec.ValueField)
	}

	rowTuples := map[string][]string{}
	cells := map[string]map[string]*accumulator{}
	rowAcc := map[string]*accumulator{}
	colAcc := map[string]*accumulator{}
	var grand accumulator
	distinct := make([]map[string]struct{}, len(colCands))
	for i := range distinct {
		distinct[i] = map[string]struct{}{}
	}

	for _, rec := range records {
		rt := b.tuple(rec, rowCands)
		ct := b.tuple(rec, colCands)
		if len(colCands) > 0 {
			for i, v := range ct {
				distinct[i][v] = struct{}{}
			}
		}
		rk := strings.Join(rt, keySep)
		ck := strings.Join(ct, keySep)

		v := 1.0
		if valueCands != nil {
			v, _ = b.r.Number(rec, valueCands)
		}

		if _, ok := rowTuples[rk]; !ok {
			rowTuples[rk] = rt
			cells[rk] = map[string]*accumulator{}
		}
		at(cells[rk], ck).add(v)
		at(rowAcc, rk).add(v)
		at(colAcc, ck).add(v)
		grand.add(v)
	}

	res := Result{
		RowFields: spec.RowFields,
		ColFields: spec.ColFields,
		AggFunc:   spec.AggFunc,
		Records:   len(records),
	}
	if len(records) == 0 {
		return res
	}

	res.Rows = make([][]string, 0, len(rowTuples))
	for _, t := range rowTuples {
		res.Rows = append(res.Rows, t)
	}
	slices.SortFunc(res.Rows, slices.Compare[[]string])
	res.Cols = cartesian(distinct)

	res.Matrix = make([][]float64, len(res.Rows))
	res.RowTotals = make([]float64, len(res.Rows))
	res.ColTotals = make([]float64, len(res.Cols))
	colKeys := make([]string, len(res.Cols))
	for j, c := range res.Cols {
		colKeys[j] = strings.Join(c, keySep)
		res.ColTotals[j] = colAcc[colKeys[j]].value(spec.AggFunc)
	}
	for i, rt := range res.Rows {
		rk := strings.Join(rt, keySep)
		line := make([]float64, len(res.Cols))
		for j, ck := range colKeys {
			line[j] = cells[rk][ck].value(spec.AggFunc)
		}
		res.Matrix[i] = line
		res.RowTotals[i] = rowAcc[rk].value(spec.AggFunc)
	}
	res.GrandTotal = grand.value(spec.AggFunc)

	if b.log != nil {
		b.log.WithFields(logrus.Fields{
			"records": len(records),
			"rows":    len(res.Rows),
			"cols":    len(res.Cols),
			"agg":     spec.AggFunc,
		}).Debug("pivot built")
	}
	return res
}

func at(m map[string]*accumulator, k string) *accumulator {
	a, ok := m[k]
	if !ok {
		a = &accumulator{}
		m[k] = a
	}
	return a
}

func (b *Builder) expand(fields []string) [][]string {
	out := make([][]string, len(fields))
	for i, f := range fields {
		out[i] = b.aliases.Expand(f)
	}
	return out
}

// tuple resolves one grouping key. An axis without fields collapses to Total.
func (b *Builder) tuple(rec record.Record, cands [][]string) []string {
	if len(cands) == 0 {
		return []string{TotalSentinel}
	}
	t := make([]string, len(cands))
	for i, c := range cands {
		v := b.r.String(rec, c)
		if v == "" {
			v = EmptySentinel
		}
		t[i] = v
	}
	return t
}

// cartesian expands the sorted distinct values of each column field into
// every combination, first field outermost. An empty axis yields [Total].
func cartesian(distinct []map[string]struct{}) [][]string {
	if len(distinct) == 0 {
		return [][]string{{TotalSentinel}}
	}
	combos := [][]string{{}}
	for _, set := range distinct {
		vals := make([]string, 0, len(set))
		for v := range set {
			vals = append(vals, v)
		}
		slices.Sort(vals)
		next := make([][]string, 0, len(combos)*len(vals))
		for _, prefix := range combos {
			for _, v := range vals {
				c := make([]string, len(prefix), len(prefix)+1)
				copy(c, prefix)
				next = append(next, append(c, v))
			}
		}
		combos = next
	}
	return combos
}
