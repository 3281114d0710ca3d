// Command mfgctl runs the report engine over local files or a report database.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mfg-report-go/internal/config"
	"mfg-report-go/internal/dataset"
	"mfg-report-go/internal/export"
	"mfg-report-go/internal/logger"
	"mfg-report-go/internal/processor"
	"mfg-report-go/internal/resolver"
	"mfg-report-go/internal/store"
)

type options struct {
	dbPath       string
	profilesPath string
	aliasesPath  string
	logLevel     string
	files        map[string]*string
	period       string
	format       string
	out          string
}

var opts = options{files: map[string]*string{}}

var rootCmd = &cobra.Command{
	Use:           "mfgctl",
	Short:         "Manufacturing report engine",
	Long:          `Builds pivots, OEE dashboards and issue lists from production exports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.dbPath, "db", "", "report database (SQLite); overrides the per-dataset file flags")
	pf.StringVar(&opts.profilesPath, "profiles", os.Getenv("PROFILES_PATH"), "YAML threshold profiles")
	pf.StringVar(&opts.aliasesPath, "aliases", os.Getenv("ALIASES_PATH"), "YAML column alias overrides")
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	pf.StringVar(&opts.period, "period", "", "reporting month, e.g. 2024-03 (default all)")
	pf.StringVarP(&opts.format, "format", "f", "table", "output format: table, json, csv or xlsx")
	pf.StringVarP(&opts.out, "out", "o", "", "output file (default stdout)")
	for _, name := range store.Datasets() {
		opts.files[name] = pf.String(name, "", fmt.Sprintf("%s file (.csv or .xlsx)", name))
	}

	rootCmd.AddCommand(pivotCmd, dashboardCmd, issuesCmd, importCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type env struct {
	log      *logger.Logger
	store    store.Store
	sessions *config.Sessions
	proc     *processor.Processor
	close    func()
}

// setup opens the store named by --db, or loads the per-dataset files into
// memory, and wires the processor around it.
func setup(ctx context.Context) (*env, error) {
	log := logger.NewWithOptions(logger.Options{Level: opts.logLevel, Output: os.Stderr})
	profiles, err := config.LoadProfiles(opts.profilesPath)
	if err != nil {
		return nil, err
	}
	aliases, err := config.LoadAliases(opts.aliasesPath)
	if err != nil {
		return nil, err
	}

	dateFields := aliases.Candidates(resolver.FieldDate)
	e := &env{log: log, close: func() {}}
	var settings store.Settings
	if opts.dbPath != "" {
		sq, err := store.OpenSQLite(opts.dbPath, log.Entry, dateFields...)
		if err != nil {
			return nil, err
		}
		e.store, settings, e.close = sq, sq, func() { sq.Close() }
	} else {
		mem := store.NewMemory(dateFields...)
		for name, path := range opts.files {
			if *path == "" {
				continue
			}
			recs, err := dataset.Load(*path)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			if err := mem.ReplaceAll(ctx, name, recs); err != nil {
				return nil, err
			}
			log.WithField("dataset", name).WithField("rows", len(recs)).Debug("loaded")
		}
		e.store, settings = mem, mem
	}
	e.sessions = config.NewSessions(settings, profiles)
	e.proc = processor.New(aliases, e.sessions, log.Component("processor"))
	return e, nil
}

func output() (io.Writer, func() error, error) {
	if opts.out == "" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(opts.out)
	if err != nil {
		return nil, nil, fmt.Errorf("create output: %w", err)
	}
	return f, f.Close, nil
}

// emit writes t in the chosen format, or v as JSON.
func emit(t export.Table, v any) error {
	w, closeOut, err := output()
	if err != nil {
		return err
	}
	switch strings.ToLower(opts.format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		err = enc.Encode(v)
	case "csv":
		err = export.WriteCSV(w, t)
	case "xlsx":
		if opts.out == "" {
			err = fmt.Errorf("xlsx output needs --out")
			break
		}
		err = export.WriteXLSX(w, t)
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(t.Header, "\t"))
		for _, row := range t.Rows {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		err = tw.Flush()
	default:
		err = fmt.Errorf("unknown format %q", opts.format)
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}

func splitFields(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// logicalFields lists the field names pivot flags accept besides raw headers.
func logicalFields() string {
	a := resolver.DefaultAliases()
	names := make([]string, 0, len(a))
	for f := range a {
		names = append(names, string(f))
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}
