package aggregator

import (
	"sort"

	"github.com/sirupsen/logrus"

	"mfg-report-go/internal/matcher"
	"mfg-report-go/internal/oee"
	"mfg-report-go/internal/pivot"
	"mfg-report-go/internal/record"
	"mfg-report-go/internal/resolver"
	"mfg-report-go/internal/types"
)

// Input is one reporting period's worth of datasets, already filtered.
type Input struct {
	Production     []record.Record
	Availability   []record.Record
	CycleTime      []record.Record
	MaterialDefect []record.Record
	PriceList      []record.Record
}

// CycleTimeGroup compares average actual cycle time with the standard.
type CycleTimeGroup struct {
	Process       string  `json:"process"`
	Equipment     string  `json:"equipment"`
	StandardCT    float64 `json:"standardCT"`
	ActualCT      float64 `json:"actualCT"`
	Samples       int     `json:"samples"`
	ExcessPct     float64 `json:"excessPct"`
	EfficiencyPct float64 `json:"efficiencyPct"`
}

// MaterialDefect is the defect quantity attributed to one material or item.
type MaterialDefect struct {
	Material string  `json:"material"`
	Qty      float64 `json:"qty"`
}

type Insight struct {
	Groups          []types.GroupMetric `json:"groups"`
	Overall         types.GroupMetric   `json:"overall"`
	CycleTime       []CycleTimeGroup    `json:"cycleTime"`
	MaterialDefects []MaterialDefect    `json:"materialDefects"`
	PriceJoin       matcher.JoinStats   `json:"priceJoin"`
	TotalDefect     float64             `json:"totalDefect"`
}

type Aggregator struct {
	r       *resolver.Resolver
	aliases resolver.Aliases
	log     *logrus.Entry
}

func New(r *resolver.Resolver, aliases resolver.Aliases, log *logrus.Entry) *Aggregator {
	if r == nil {
		r = &resolver.Resolver{}
	}
	if aliases == nil {
		aliases = resolver.DefaultAliases()
	}
	return &Aggregator{r: r, aliases: aliases, log: log}
}

type groupKey struct {
	process   string
	equipment string
}

func (a *Aggregator) key(rec record.Record) groupKey {
	return groupKey{
		process:   orEmpty(a.r.String(rec, a.aliases.Candidates(resolver.FieldProcess))),
		equipment: orEmpty(a.r.String(rec, a.aliases.Candidates(resolver.FieldEquipment))),
	}
}

func orEmpty(s string) string {
	if s == "" {
		return pivot.EmptySentinel
	}
	return s
}

func (a *Aggregator) num(rec record.Record, f resolver.Field) (float64, bool) {
	return a.r.Number(rec, a.aliases.Candidates(f))
}

// Aggregate computes per-group OEE, the overall rollup, cycle-time excess and
// material defect ranking. Every ratio is zero-guarded.
func (a *Aggregator) Aggregate(in Input) Insight {
	var ins Insight

	totals, join, totalDefect := a.production(in.Production, in.PriceList)
	ins.PriceJoin = join
	ins.TotalDefect = totalDefect

	samples := map[groupKey][]oee.AvailabilitySample{}
	byEquipment := map[string][]oee.AvailabilitySample{}
	for _, rec := range in.Availability {
		k := a.key(rec)
		s := a.sample(rec)
		samples[k] = append(samples[k], s)
		if k.equipment != pivot.EmptySentinel {
			byEquipment[k.equipment] = append(byEquipment[k.equipment], s)
		}
	}

	keys := sortedKeys(totals)
	ins.Groups = make([]types.GroupMetric, 0, len(keys))
	for _, k := range keys {
		s, ok := samples[k]
		if !ok && k.equipment != pivot.EmptySentinel {
			s = byEquipment[k.equipment]
		}
		m := oee.ComputeGroupMetric(*totals[k], s)
		m.Process = k.process
		m.Equipment = k.equipment
		ins.Groups = append(ins.Groups, m)
	}
	ins.Overall = oee.Rollup(ins.Groups)
	ins.CycleTime = a.cycleTime(in.CycleTime)
	ins.MaterialDefects = a.materialDefects(in.MaterialDefect)

	if a.log != nil {
		a.log.WithFields(logrus.Fields{
			"groups":          len(ins.Groups),
			"price_matched":   join.Matched,
			"price_unmatched": join.Unmatched,
			"total_defect":    totalDefect,
		}).Info("aggregation complete")
	}
	return ins
}

// production sums volumes per group and prices defects through the price list.
// A defect row with no price-list counterpart adds zero to the amount and is
// counted as unmatched.
func (a *Aggregator) production(records, prices []record.Record) (map[groupKey]*types.ProductionTotals, matcher.JoinStats, float64) {
	idx := matcher.NewIndex(prices, matcher.ItemKeys(a.aliases), a.r)
	priceCands := a.aliases.Candidates(resolver.FieldUnitPrice)

	totals := map[groupKey]*types.ProductionTotals{}
	var join matcher.JoinStats
	var totalDefect float64

	for _, rec := range records {
		t := a.volumes(rec)
		if t.Defect > 0 {
			ref, by, ok := idx.Lookup(rec)
			join.Observe(ok)
			if ok {
				if price, found := matcher.ExtractValue(ref, priceCands, resolver.PriceMarker); found {
					t.DefectAmount = t.Defect * price
				} else if a.log != nil {
					a.log.WithField("matched_by", by).Debug("price row has no usable unit price")
				}
			}
		}
		totalDefect += t.Defect

		k := a.key(rec)
		if totals[k] == nil {
			totals[k] = &types.ProductionTotals{}
		}
		totals[k].Add(t)
	}
	return totals, join, totalDefect
}

// volumes fills whichever of production/good/defect is missing from the other two.
func (a *Aggregator) volumes(rec record.Record) types.ProductionTotals {
	prod, okP := a.num(rec, resolver.FieldProduction)
	good, okG := a.num(rec, resolver.FieldGood)
	defect, okD := a.num(rec, resolver.FieldDefect)

	switch {
	case !okP && (okG || okD):
		prod = good + defect
	case okP && !okG && okD:
		good = nonNegative(prod - defect)
	case okP && okG && !okD:
		defect = nonNegative(prod - good)
	case okP && !okG && !okD:
		good = prod
	}
	return types.ProductionTotals{Production: prod, Good: good, Defect: defect}
}

func (a *Aggregator) sample(rec record.Record) oee.AvailabilitySample {
	var s oee.AvailabilitySample
	s.Percent, _ = a.num(rec, resolver.FieldTimeAvailability)
	s.OperatingMinutes, s.HasOperating = a.num(rec, resolver.FieldOperatingMinutes)
	s.ScheduledMinutes, _ = a.num(rec, resolver.FieldScheduledMinutes)
	s.DowntimeMinutes, s.HasDowntime = a.num(rec, resolver.FieldDowntimeMinutes)
	return s
}

func (a *Aggregator) cycleTime(records []record.Record) []CycleTimeGroup {
	type acc struct {
		std, act float64
		n        int
	}
	groups := map[groupKey]*acc{}
	for _, rec := range records {
		std, okS := a.num(rec, resolver.FieldStandardCycleTime)
		act, okA := a.num(rec, resolver.FieldActualCycleTime)
		if !okS || !okA || std <= 0 || act <= 0 {
			continue
		}
		k := a.key(rec)
		g := groups[k]
		if g == nil {
			g = &acc{}
			groups[k] = g
		}
		g.std += std
		g.act += act
		g.n++
	}

	keys := sortedKeys(groups)
	out := make([]CycleTimeGroup, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		std := oee.Ratio(g.std, float64(g.n))
		act := oee.Ratio(g.act, float64(g.n))
		out = append(out, CycleTimeGroup{
			Process:       k.process,
			Equipment:     k.equipment,
			StandardCT:    std,
			ActualCT:      act,
			Samples:       g.n,
			ExcessPct:     oee.Ratio(act-std, std) * 100,
			EfficiencyPct: oee.Ratio(std, act) * 100,
		})
	}
	return out
}

func (a *Aggregator) materialDefects(records []record.Record) []MaterialDefect {
	qty := map[string]float64{}
	for _, rec := range records {
		name := a.r.String(rec, a.aliases.Candidates(resolver.FieldMaterial))
		if name == "" {
			name = a.r.String(rec, a.aliases.Candidates(resolver.FieldItemName))
		}
		q, ok := a.num(rec, resolver.FieldDefectQty)
		if !ok {
			continue
		}
		qty[orEmpty(name)] += q
	}
	out := make([]MaterialDefect, 0, len(qty))
	for name, q := range qty {
		out = append(out, MaterialDefect{Material: name, Qty: q})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Qty != out[j].Qty {
			return out[i].Qty > out[j].Qty
		}
		return out[i].Material < out[j].Material
	})
	return out
}

func sortedKeys[V any](m map[groupKey]V) []groupKey {
	keys := make([]groupKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].process != keys[j].process {
			return keys[i].process < keys[j].process
		}
		return keys[i].equipment < keys[j].equipment
	})
	return keys
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
