package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/compgroup/internal/archive"
	"github.com/roach88/compgroup/internal/ir"
)

// DisposeMode selects what happens to a retired single computation.
type DisposeMode string

const (
	// DisposeDisable clears the enabled flag and keeps the computation.
	DisposeDisable DisposeMode = "disable"

	// DisposeDelete deletes the computation, falling back to disable when
	// dependent data prevents deletion.
	DisposeDelete DisposeMode = "delete"
)

// ParseDisposeMode accepts "delete" or "disable" in any case.
func ParseDisposeMode(s string) (DisposeMode, error) {
	switch DisposeMode(strings.ToLower(strings.TrimSpace(s))) {
	case DisposeDisable:
		return DisposeDisable, nil
	case DisposeDelete:
		return DisposeDelete, nil
	}
	return "", fmt.Errorf("invalid dispose mode %q: must be delete or disable", s)
}

// DefaultArchivePath is where disposed computations are archived.
const DefaultArchivePath = "disposed-comps.xml"

// Engine reconciles group computations.
//
// An Engine runs one reconciliation at a time; Run must not be called
// concurrently.
type Engine struct {
	store       Store
	prep        Preparer
	archiver    Archiver
	archivePath string
	mode        DisposeMode
	dryRun      bool
	report      *Report
	reportW     io.Writer
	metrics     *Metrics
	baseLogger  *slog.Logger
	runIDs      RunIDGenerator
	now         func() time.Time

	// Per-run state, reset by RunSnapshot.
	logger     *slog.Logger
	props      *PropertyMatcher
	planner    *Planner
	snap       *Snapshot
	work       *overlay
	exclusions *ExclusionTracker
	multi      bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithDryRun computes and reports plans without writing to the store.
func WithDryRun(dryRun bool) Option {
	return func(e *Engine) { e.dryRun = dryRun }
}

// WithDisposeMode sets how retired singles are disposed of.
// Default: DisposeDisable.
func WithDisposeMode(m DisposeMode) Option {
	return func(e *Engine) { e.mode = m }
}

// WithArchiver replaces the archive exporter.
func WithArchiver(a Archiver) Option {
	return func(e *Engine) { e.archiver = a }
}

// WithArchivePath sets the archive file. Default: DefaultArchivePath.
// The extension selects the format (see package archive).
func WithArchivePath(path string) Option {
	return func(e *Engine) { e.archivePath = path }
}

// WithReport sets the report sink. Default: a report that only logs.
// WithReport takes precedence over WithReportWriter.
func WithReport(r *Report) Option {
	return func(e *Engine) { e.report = r }
}

// WithReportWriter writes the report text to w.
func WithReportWriter(w io.Writer) Option {
	return func(e *Engine) { e.reportW = w }
}

// WithMetrics records outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.baseLogger = l }
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithClock sets the time source for the report header.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over st that prepares computations with prep.
func New(st Store, prep Preparer, opts ...Option) *Engine {
	e := &Engine{
		store:       st,
		prep:        prep,
		archiver:    archive.NewExporter(),
		archivePath: DefaultArchivePath,
		mode:        DisposeDisable,
		baseLogger:  slog.Default(),
		runIDs:      UUIDv7Generator{},
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.report == nil {
		e.report = NewReport(e.reportW, e.baseLogger)
	}
	return e
}

// Outcome is the terminal state of one group computation.
type Outcome string

const (
	OutcomeSkipped   Outcome = "skipped"
	OutcomeAborted   Outcome = "aborted"
	OutcomeCompleted Outcome = "completed"
)

// State is a step of reconciling one group computation.
type State string

const (
	StateExpanding       State = "expanding"
	StateCloning         State = "cloning"
	StateMatching        State = "matching"
	StatePlanning        State = "planning"
	StateAlgebraBuilding State = "algebra-building"
	StateArchiving       State = "archiving"
	StateDisposing       State = "disposing"
	StateGroupPersisting State = "group-persisting"
	StateEnabling        State = "enabling"
)

// DisposeAction is what actually happened to a retired single.
type DisposeAction string

const (
	Deleted  DisposeAction = "deleted"
	Disabled DisposeAction = "disabled"
)

// Disposal records the retirement of one single computation.
type Disposal struct {
	// Comp is the computation as it stands after disposal.
	Comp   *ir.Computation
	Action DisposeAction

	// Fallback is true when deletion was refused and the computation was
	// disabled instead.
	Fallback bool
}

// Result is the outcome of reconciling one group computation.
type Result struct {
	CompID    ir.Key
	Name      string
	Outcome   Outcome
	Reason    string
	Expansion *Expansion
	Plan      *Plan
	Digest    string
	Groups    *CompositeGroups
	Disposals []Disposal

	// GroupsCreated counts the groups in Groups that did not exist before.
	GroupsCreated int

	// Err explains an Aborted outcome, or the failure that ended the run.
	Err error
}

// RunResult collects the results of one run.
type RunResult struct {
	RunID   string
	Started time.Time
	Results []*Result
}

// Count returns how many results ended with o.
func (r *RunResult) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Run loads a snapshot from the store and reconciles ids in order.
func (e *Engine) Run(ctx context.Context, ids []ir.Key) (*RunResult, error) {
	snap, err := LoadSnapshot(ctx, e.store, e.baseLogger)
	if err != nil {
		return nil, err
	}
	return e.RunSnapshot(ctx, snap, ids)
}

// RunSnapshot reconciles ids in order against snap.
//
// Skipped and aborted computations do not stop the run. A store failure
// does: the results so far are returned together with the error.
func (e *Engine) RunSnapshot(ctx context.Context, snap *Snapshot, ids []ir.Key) (*RunResult, error) {
	run := &RunResult{RunID: e.runIDs.Generate(), Started: e.now()}
	e.logger = e.baseLogger.With("run_id", run.RunID)
	e.props = NewPropertyMatcher(e.prep, e.logger)
	e.planner = NewPlanner(e.props)
	e.snap = snap
	e.work = newOverlay()
	e.exclusions = NewExclusionTracker()
	e.multi = len(ids) > 1

	r := e.report
	r.SetLabel("")
	r.SetIndent(0)
	r.Line("convert2group run %s started %s", run.RunID, run.Started.UTC().Format(time.RFC3339))
	mode := string(e.mode)
	if e.dryRun {
		mode += ", test mode (no changes will be written)"
	}
	r.Line("Dispose mode: %s", mode)

	var runErr error
	for _, id := range ids {
		res, err := e.reconcile(ctx, id)
		run.Results = append(run.Results, res)
		e.metrics.observe(res)
		if err != nil {
			runErr = err
			break
		}
	}

	e.logger.Info("run finished", "results", len(run.Results), "excluded_tsids", e.exclusions.Size())
	r.SetLabel("")
	r.SetIndent(0)
	r.Line("")
	r.Line("Run %s finished: %d completed, %d skipped, %d aborted.",
		run.RunID, run.Count(OutcomeCompleted), run.Count(OutcomeSkipped), run.Count(OutcomeAborted))
	if runErr != nil {
		r.Line("Run stopped: %v", runErr)
		return run, runErr
	}
	if err := r.Err(); err != nil {
		return run, fmt.Errorf("write report: %w", err)
	}
	return run, nil
}

// reconcile takes one computation from Start to a terminal outcome.
// A non-nil error means the run must stop.
func (e *Engine) reconcile(ctx context.Context, id ir.Key) (*Result, error) {
	res := &Result{CompID: id}
	r := e.report
	log := e.logger.With("comp_id", id)

	comp, ok := e.work.computation(e.snap, id)
	if !ok {
		log.Warn("no computation with this id -- skipped")
		res.Outcome, res.Reason = OutcomeSkipped, "unknown computation"
		return res, nil
	}
	res.Name = comp.Name
	label := fmt.Sprintf("Computation-%d (%s)", id, comp.Name)

	r.SetLabel("")
	r.SetIndent(0)
	r.Line("")
	r.Line("Processing %s", label)
	r.Line("")
	r.SetLabel(label)
	r.SetIndent(1)

	if !comp.IsGroupComp() {
		r.Line("%s is not a group computation -- skipped.", label)
		res.Outcome, res.Reason = OutcomeSkipped, "not a group computation"
		return res, nil
	}

	log.Debug("reconcile", "state", StateExpanding)
	x, err := e.expand(ctx, comp)
	if IsGroupNotFound(err) {
		log.Warn("invalid group id: no matching group -- skipped", "group_id", comp.GroupID)
		r.Line("Invalid group ID %d: no matching group -- skipped.", comp.GroupID)
		res.Outcome, res.Reason, res.Err = OutcomeSkipped, "group not found", err
		return res, nil
	}
	if err != nil {
		res.Outcome, res.Err = OutcomeAborted, err
		return res, err
	}
	res.Expansion = x

	r.Line("Computation IS a group computation.")
	r.Line("Group-%d (%s) has %d members.", x.Group.ID, x.Group.Name, len(x.Members))
	if len(x.Members) == 0 {
		r.Line("Group has no members. No changes will be made.")
		res.Outcome, res.Reason = OutcomeSkipped, "group has no members"
		return res, nil
	}

	log.Debug("reconcile", "state", StateCloning, "clones", len(x.Clones), "skipped_members", len(x.Skips))
	r.Line("When expanded by group, there are %d computations.", len(x.Clones))
	if len(x.Clones) == 0 {
		res.Outcome, res.Reason = OutcomeSkipped, "no concrete clones"
		return res, nil
	}

	log.Debug("reconcile", "state", StateMatching)
	r.Line("Looking for single computations that match the expanded group computation.")
	plan, err := e.planner.Plan(ctx, comp.ID, x.Clones, e.work.singles(e.snap))
	if err != nil {
		res.Outcome, res.Err = OutcomeAborted, err
		return res, err
	}
	res.Plan = plan
	e.reportDecisions(plan)

	log.Debug("reconcile", "state", StatePlanning, "dispose", len(plan.Dispose), "exclude", len(plan.Exclude))
	if digest, err := plan.Digest(); err != nil {
		log.Warn("cannot compute plan digest", "error", err)
	} else {
		res.Digest = digest
		log.Info("plan", "digest", digest, "dispose", len(plan.Dispose), "exclude", len(plan.Exclude))
	}

	if !plan.HasChanges() {
		r.SetIndent(1)
		r.Line("Group computation matched no single computation. No changes will be made.")
		res.Outcome, res.Reason = OutcomeSkipped, "no single computation to dispose"
		return res, nil
	}

	if len(plan.Exclude) > 0 {
		log.Debug("reconcile", "state", StateAlgebraBuilding)
		res.Groups = BuildGroups(comp, label, x.Group, plan.Exclude)
		e.reportGroups(comp, res.Groups)
	}

	log.Debug("reconcile", "state", StateArchiving)
	if err := e.archive(ctx, comp.ID, plan.Dispose); err != nil {
		r.SetIndent(1)
		r.Line("Cannot save '%s': %v", e.archivePathFor(comp.ID), errors.Unwrap(err))
		r.Line("Aborting!")
		log.Warn("archive failed, nothing disposed", "error", err)
		res.Outcome, res.Reason, res.Err = OutcomeAborted, "archive failed", err
		return res, nil
	}

	ch, err := e.execute(ctx, res, comp, label)
	if err != nil {
		res.Outcome, res.Err = OutcomeAborted, err
		return res, err
	}
	e.work.commit(comp.ID, ch)

	for _, t := range plan.Exclude {
		if others := e.exclusions.Record(comp.ID, t); len(others) > 0 {
			log.Warn("time series excluded by more than one group computation",
				"tsid", t.UniqueString(), "others", others)
		}
	}

	res.Outcome = OutcomeCompleted
	return res, nil
}

func (e *Engine) reportDecisions(plan *Plan) {
	r := e.report
	r.SetIndent(2)
	for _, d := range plan.Decisions {
		r.Line("Comp-%d (%s) has matching algorithm and parameters.", d.Single.ID, d.Single.Name)
		r.Indent()
		switch d.Action {
		case ActionDispose:
			r.Line("Properties also match. This computation will be disposed.")
		case ActionExclude:
			if d.Reason == reasonDisabled {
				r.Line("Computation is disabled.")
			} else {
				r.Line("Properties do NOT match: %s.", d.Reason)
			}
			r.Line("This single computation will remain and will be excluded from the group.")
		}
		r.Outdent()
	}
}

func (e *Engine) reportGroups(comp *ir.Computation, groups *CompositeGroups) {
	r := e.report
	r.SetIndent(1)
	r.Line("Creating exclusion group: %s", groups.Excluded.Name)
	r.Line("These time series identifiers will be excluded:")
	r.Indent()
	for _, m := range groups.Excluded.Members {
		r.Line("%s", m.UniqueString())
	}
	r.Outdent()
	r.Line("")
	r.Line("Creating new group '%s' just for this computation.", groups.Composite.Name)
	r.Line("The new group will include the original group and exclude the above TSIDs")
	r.Line("Comp-%d will be modified with group assignment set to '%s'", comp.ID, groups.Composite.Name)
}

// archivePathFor returns the archive file for compID. When a run handles
// several computations each gets its own file, named by inserting the
// computation id before the extension.
func (e *Engine) archivePathFor(compID ir.Key) string {
	if !e.multi {
		return e.archivePath
	}
	ext := filepath.Ext(e.archivePath)
	base := strings.TrimSuffix(e.archivePath, ext)
	return fmt.Sprintf("%s-comp-%d%s", base, compID, ext)
}
