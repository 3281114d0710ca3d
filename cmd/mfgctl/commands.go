package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mfg-report-go/internal/dataset"
	"mfg-report-go/internal/period"
	"mfg-report-go/internal/pivot"
	"mfg-report-go/internal/processor"
	"mfg-report-go/internal/store"
)

var pivotFlags struct {
	dataset string
	rows    string
	cols    string
	value   string
	agg     string
}

var pivotCmd = &cobra.Command{
	Use:   "pivot",
	Short: "Cross-tabulate one dataset",
	Long: `Groups one dataset by up to three row and three column fields.
Fields are raw column headers or logical names: ` + logicalFields() + `.`,
	Example: `  mfgctl pivot --production prod.csv --rows process,equipment --cols itemCode --value production
  mfgctl pivot --db mfg.db --dataset availability --rows equipment --value timeAvailability --agg avg -f csv -o avail.csv`,
	RunE: runPivot,
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Per-equipment OEE for a period",
	RunE:  runDashboard,
}

var issuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Threshold and ranking issues for a period",
	RunE:  runIssues,
}

var (
	profileFlag string
	importMonth bool
)

var importCmd = &cobra.Command{
	Use:   "import <dataset> <file>",
	Short: "Load a file into the report database",
	Args:  cobra.ExactArgs(2),
	RunE:  runImport,
}

func init() {
	f := pivotCmd.Flags()
	f.StringVar(&pivotFlags.dataset, "dataset", store.Production, "dataset to pivot")
	f.StringVar(&pivotFlags.rows, "rows", "", "comma separated row fields (max 3)")
	f.StringVar(&pivotFlags.cols, "cols", "", "comma separated column fields (max 3)")
	f.StringVar(&pivotFlags.value, "value", "", "value field; empty counts records")
	f.StringVar(&pivotFlags.agg, "agg", string(pivot.Sum), "sum, count, avg, min or max")

	for _, c := range []*cobra.Command{dashboardCmd, issuesCmd} {
		c.Flags().StringVar(&profileFlag, "profile", "", "threshold profile (default: saved session profile)")
	}
	importCmd.Flags().BoolVar(&importMonth, "month", false, "replace only the months present in the file")
}

func runPivot(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	per, err := period.ParsePeriod(opts.period)
	if err != nil {
		return err
	}
	spec := pivot.Spec{
		RowFields:  splitFields(pivotFlags.rows),
		ColFields:  splitFields(pivotFlags.cols),
		ValueField: pivotFlags.value,
		AggFunc:    pivot.AggFunc(pivotFlags.agg),
	}
	snap, err := processor.LoadSnapshot(cmd.Context(), e.store)
	if err != nil {
		return err
	}
	res, err := e.proc.Pivot(snap, pivotFlags.dataset, spec, per)
	if err != nil {
		return err
	}
	return emit(res.Table("Pivot_"+pivotFlags.dataset), res)
}

func buildDashboard(cmd *cobra.Command) (processor.Dashboard, error) {
	e, err := setup(cmd.Context())
	if err != nil {
		return processor.Dashboard{}, err
	}
	defer e.close()

	sess, err := e.sessions.Load(cmd.Context())
	if err != nil {
		return processor.Dashboard{}, err
	}
	if opts.period != "" {
		if sess.Period, err = period.ParsePeriod(opts.period); err != nil {
			return processor.Dashboard{}, err
		}
	}
	if profileFlag != "" {
		sess.Profile = profileFlag
	}
	snap, err := processor.LoadSnapshot(cmd.Context(), e.store)
	if err != nil {
		return processor.Dashboard{}, err
	}
	return e.proc.Build(snap, sess)
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	d, err := buildDashboard(cmd)
	if err != nil {
		return err
	}
	if d.PriceJoin.Unmatched > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d defect rows had no price list match\n", d.PriceJoin.Unmatched)
	}
	return emit(processor.GroupsTable(d), d)
}

func runIssues(cmd *cobra.Command, _ []string) error {
	d, err := buildDashboard(cmd)
	if err != nil {
		return err
	}
	return emit(processor.IssuesTable(d.Issues), d.Issues)
}

func runImport(cmd *cobra.Command, args []string) error {
	if opts.dbPath == "" {
		return fmt.Errorf("import needs --db")
	}
	name, path := args[0], args[1]
	if err := store.CheckDataset(name); err != nil {
		return err
	}
	recs, err := dataset.Load(path)
	if err != nil {
		return err
	}
	e, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer e.close()

	if importMonth {
		err = e.store.ReplaceMonths(cmd.Context(), name, recs)
	} else {
		err = e.store.ReplaceAll(cmd.Context(), name, recs)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows imported\n", name, len(recs))
	return nil
}
