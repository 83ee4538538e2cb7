package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/compgroup/internal/algo"
	"github.com/roach88/compgroup/internal/config"
	"github.com/roach88/compgroup/internal/engine"
	"github.com/roach88/compgroup/internal/ir"
	"github.com/roach88/compgroup/internal/store"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <comp-id>...",
		Short: "Reconcile group computations with single computations",
		Long: `Reconcile each listed group computation with the single computations it
supersedes. Matching single computations are archived, then deleted or
disabled; series whose single computations must stay are excluded from the
group; the group computation is enabled.

Ids that are not integers are skipped with a warning.

Example:
  convert2group convert --db hdb.db 12 13
  convert2group convert --db hdb.db --dispose delete --archive old.yaml 12
  convert2group convert --db hdb.db --test 12`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyDispose, "", "what to do with matched single computations (delete|disable)")
	flags.String(config.KeyArchive, "", "file receiving the disposed computations (.xml or .yaml)")
	flags.String(config.KeyReport, "", `report file ("-" for stdout)`)
	flags.Bool(config.KeyTest, false, "test mode: report the plan without changing the database")
	flags.String(config.KeyMetrics, "", "write Prometheus metrics to this textfile")
	for _, key := range []string{config.KeyDispose, config.KeyArchive, config.KeyReport, config.KeyTest, config.KeyMetrics} {
		_ = opts.v.BindPFlag(key, flags.Lookup(key))
	}

	return cmd
}

func runConvert(cmd *cobra.Command, opts *ConvertOptions, args []string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cmd.ErrOrStderr(), cfg.Verbose || opts.Verbose)
	out := opts.formatter(cmd)

	ids := parseIDs(args, logger)
	if len(ids) == 0 {
		return NewExitError(ExitCommandError, "no valid computation ids given").WithCode(ErrCodeBadArgs)
	}
	mode, err := engine.ParseDisposeMode(cfg.Dispose)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid dispose mode", err).WithCode(ErrCodeBadArgs)
	}

	logger.Info("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err).WithCode(ErrCodeDatabase)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if err := checkDatabaseType(ctx, st); err != nil {
		return err
	}

	report, closeReport, err := openReport(cfg.Report, cmd.OutOrStdout())
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open report", err).WithCode(ErrCodeBadArgs)
	}
	defer closeReport()

	engOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithDryRun(cfg.Test),
		engine.WithDisposeMode(mode),
		engine.WithArchivePath(cfg.Archive),
		engine.WithReportWriter(report),
	}
	if opts.RunIDs != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	var registry *prometheus.Registry
	if cfg.Metrics != "" {
		registry = prometheus.NewRegistry()
		engOpts = append(engOpts, engine.WithMetrics(engine.NewMetrics(registry)))
	}

	eng := engine.New(st, algo.NewPreparer(st, nil), engOpts...)
	run, runErr := eng.Run(ctx, ids)

	if registry != nil {
		if err := prometheus.WriteToTextfile(cfg.Metrics, registry); err != nil {
			logger.Error("cannot write metrics", "path", cfg.Metrics, "error", err)
		}
	}
	out.VerboseLog("report: %s, archive: %s", cfg.Report, cfg.Archive)
	if run != nil {
		if err := out.Success(summarize(run, cfg.Test)); err != nil {
			return WrapExitError(ExitFailure, "cannot write output", err)
		}
	}
	if runErr != nil {
		return WrapExitError(ExitFailure, "reconciliation stopped", runErr).WithCode(ErrCodeRun)
	}
	if n := run.Count(engine.OutcomeAborted); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d computation(s) aborted", n)).WithCode(ErrCodeRun)
	}
	return nil
}

// parseIDs converts the arguments to keys, skipping anything that is not a
// positive integer.
func parseIDs(args []string, logger *slog.Logger) []ir.Key {
	var ids []ir.Key
	for _, a := range args {
		n, err := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
		if err != nil || n <= 0 {
			logger.Warn("invalid computation id -- skipped", "arg", a)
			continue
		}
		ids = append(ids, ir.Key(n))
	}
	return ids
}

func checkDatabaseType(ctx context.Context, st *store.Store) error {
	ok, err := st.SupportsGroupComputations(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot read database type", err).WithCode(ErrCodeDatabase)
	}
	if !ok {
		dbType, _ := st.DatabaseType(ctx)
		return NewExitError(ExitCommandError,
			fmt.Sprintf("database type %q does not support group computations", dbType)).WithCode(ErrCodeUnsupported)
	}
	return nil
}

// openReport opens the report file; "-" selects stdout.
func openReport(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() {
		if err := f.Close(); err != nil {
			slog.Error("error closing report", "path", path, "error", err)
		}
	}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM, or when the command's
// own context is.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// ConvertSummary is the command output.
type ConvertSummary struct {
	RunID   string          `json:"run_id"`
	DryRun  bool            `json:"dry_run"`
	Results []ResultSummary `json:"results"`
}

// ResultSummary describes the outcome for one computation.
type ResultSummary struct {
	CompID   int64    `json:"comp_id"`
	Name     string   `json:"name,omitempty"`
	Outcome  string   `json:"outcome"`
	Reason   string   `json:"reason,omitempty"`
	Disposed []string `json:"disposed,omitempty"`
	Excluded []string `json:"excluded,omitempty"`
	Group    string   `json:"group,omitempty"`
	Digest   string   `json:"digest,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func summarize(run *engine.RunResult, dryRun bool) ConvertSummary {
	s := ConvertSummary{RunID: run.RunID, DryRun: dryRun}
	for _, r := range run.Results {
		rs := ResultSummary{
			CompID:  int64(r.CompID),
			Name:    r.Name,
			Outcome: string(r.Outcome),
			Reason:  r.Reason,
			Digest:  r.Digest,
		}
		for _, d := range r.Disposals {
			rs.Disposed = append(rs.Disposed, fmt.Sprintf("%d:%s", d.Comp.ID, d.Action))
		}
		if r.Outcome == engine.OutcomeCompleted && r.Plan != nil {
			for _, t := range r.Plan.Exclude {
				rs.Excluded = append(rs.Excluded, t.UniqueString())
			}
		}
		if r.Groups != nil {
			rs.Group = r.Groups.Composite.Name
		}
		if r.Err != nil {
			rs.Error = r.Err.Error()
		}
		s.Results = append(s.Results, rs)
	}
	return s
}

// String renders the summary for text output.
func (s ConvertSummary) String() string {
	var b strings.Builder
	mode := ""
	if s.DryRun {
		mode = " (test mode)"
	}
	fmt.Fprintf(&b, "Run %s%s\n", s.RunID, mode)
	for _, r := range s.Results {
		fmt.Fprintf(&b, "  %d %s: %s", r.CompID, r.Name, r.Outcome)
		if r.Reason != "" {
			fmt.Fprintf(&b, " (%s)", r.Reason)
		}
		b.WriteString("\n")
		if len(r.Disposed) > 0 {
			fmt.Fprintf(&b, "    disposed: %s\n", strings.Join(r.Disposed, ", "))
		}
		if len(r.Excluded) > 0 {
			fmt.Fprintf(&b, "    excluded: %s\n", strings.Join(r.Excluded, ", "))
		}
		if r.Group != "" {
			fmt.Fprintf(&b, "    group: %s\n", r.Group)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
