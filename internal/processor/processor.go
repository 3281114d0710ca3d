// Package processor recomputes the dashboard from stored datasets.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"mfg-report-go/internal/actionable"
	"mfg-report-go/internal/aggregator"
	"mfg-report-go/internal/config"
	"mfg-report-go/internal/matcher"
	"mfg-report-go/internal/period"
	"mfg-report-go/internal/pivot"
	"mfg-report-go/internal/record"
	"mfg-report-go/internal/resolver"
	"mfg-report-go/internal/store"
	"mfg-report-go/internal/types"
)

// Snapshot holds every dataset as read at one moment.
type Snapshot map[string][]record.Record

// LoadSnapshot reads all datasets from s.
func LoadSnapshot(ctx context.Context, s store.Store) (Snapshot, error) {
	snap := make(Snapshot, len(store.Datasets()))
	for _, name := range store.Datasets() {
		recs, err := s.GetAll(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		snap[name] = recs
	}
	return snap, nil
}

// Dashboard is everything the summary view shows for one period.
type Dashboard struct {
	Period          period.Period               `json:"period"`
	Profile         string                      `json:"profile"`
	Overall         types.GroupMetric           `json:"overall"`
	Groups          []types.GroupMetric         `json:"groups"`
	CycleTime       []aggregator.CycleTimeGroup `json:"cycleTime"`
	MaterialDefects []aggregator.MaterialDefect `json:"materialDefects"`
	PriceJoin       matcher.JoinStats           `json:"priceJoin"`
	TotalDefect     float64                     `json:"totalDefect"`
	Issues          []types.Issue               `json:"issues"`
	// Undated counts rows per dataset that had no readable date and were
	// included regardless of the period.
	Undated map[string]int `json:"undated,omitempty"`
}

type Processor struct {
	r        *resolver.Resolver
	aliases  resolver.Aliases
	sessions *config.Sessions
	log      *logrus.Entry
}

func New(aliases resolver.Aliases, sessions *config.Sessions, log *logrus.Entry) *Processor {
	if aliases == nil {
		aliases = resolver.DefaultAliases()
	}
	return &Processor{
		r:        resolver.New(log),
		aliases:  aliases,
		sessions: sessions,
		log:      log,
	}
}

func (p *Processor) filter(snap Snapshot, name string, per period.Period, undated map[string]int) []record.Record {
	recs, st := period.Filter(snap[name], per, p.r, p.aliases.Candidates(resolver.FieldDate))
	if st.Undated > 0 {
		undated[name] = st.Undated
		if p.log != nil {
			p.log.WithFields(logrus.Fields{
				"dataset": name,
				"period":  per.String(),
				"undated": st.Undated,
			}).Warn("rows without a readable date included in period")
		}
	}
	return recs
}

// Build runs the period filter, aggregation and issue detection for sess.
// Nothing is cached; every call recomputes from snap.
func (p *Processor) Build(snap Snapshot, sess config.Session) (Dashboard, error) {
	profile, err := p.profile(sess)
	if err != nil {
		return Dashboard{}, err
	}
	start := time.Now()
	undated := map[string]int{}
	in := aggregator.Input{
		Production:     p.filter(snap, store.Production, sess.Period, undated),
		Availability:   p.filter(snap, store.Availability, sess.Period, undated),
		CycleTime:      p.filter(snap, store.CycleTime, sess.Period, undated),
		MaterialDefect: p.filter(snap, store.MaterialDefect, sess.Period, undated),
		// The price list is master data and is never period filtered.
		PriceList: snap[store.PriceList],
	}
	ins := aggregator.New(p.r, p.aliases, p.log).Aggregate(in)
	issues := actionable.Detect(actionable.FromInsight(ins), profile)

	d := Dashboard{
		Period:          sess.Period,
		Profile:         profile.Name,
		Overall:         ins.Overall,
		Groups:          ins.Groups,
		CycleTime:       ins.CycleTime,
		MaterialDefects: ins.MaterialDefects,
		PriceJoin:       ins.PriceJoin,
		TotalDefect:     ins.TotalDefect,
		Issues:          issues,
	}
	if len(undated) > 0 {
		d.Undated = undated
	}
	if p.log != nil {
		p.log.WithFields(logrus.Fields{
			"period":      sess.Period.String(),
			"profile":     profile.Name,
			"issues":      len(issues),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("dashboard built")
	}
	return d, nil
}

func (p *Processor) profile(sess config.Session) (actionable.Profile, error) {
	if p.sessions != nil {
		return p.sessions.Profile(sess)
	}
	if prof, ok := actionable.Lookup(sess.Profile, sess.Custom); ok {
		return prof, nil
	}
	return actionable.Profile{}, fmt.Errorf("%w: %q", config.ErrUnknownProfile, sess.Profile)
}

// Pivot builds a pivot over one dataset restricted to per.
func (p *Processor) Pivot(snap Snapshot, dataset string, spec pivot.Spec, per period.Period) (pivot.Result, error) {
	if err := store.CheckDataset(dataset); err != nil {
		return pivot.Result{}, err
	}
	if err := spec.Validate(); err != nil {
		return pivot.Result{}, err
	}
	recs := p.filter(snap, dataset, per, map[string]int{})
	return pivot.NewBuilder(p.r, p.aliases, p.log).Build(recs, spec), nil
}
