package engine

import (
	"context"
	"errors"

	"github.com/roach88/compgroup/internal/ir"
)

// archive exports the computations about to be disposed of, together with
// the algorithms they use, before anything is changed. It runs in dry-run
// mode too so the archive can be reviewed.
func (e *Engine) archive(ctx context.Context, compID ir.Key, dispose []*ir.Computation) error {
	var algs []*ir.Algorithm
	seen := map[ir.Key]bool{}
	for _, c := range dispose {
		if seen[c.AlgorithmID] {
			continue
		}
		seen[c.AlgorithmID] = true
		if a, ok := e.snap.Algorithm(c.AlgorithmID); ok {
			algs = append(algs, a)
		}
	}

	path := e.archivePathFor(compID)
	if err := e.archiver.Export(ctx, path, dispose, algs); err != nil {
		return newArchiveError(compID, path, err)
	}
	e.logger.Info("archived computations", "comp_id", compID, "path", path,
		"computations", len(dispose), "algorithms", len(algs))
	return nil
}

// execute disposes of the planned singles, persists the exclusion and
// composite groups, then rebinds and enables the group computation.
// Store writes are skipped in dry-run mode; the returned changes describe
// the result either way.
func (e *Engine) execute(ctx context.Context, res *Result, comp *ir.Computation, label string) (*changes, error) {
	ch := &changes{comps: map[ir.Key]*ir.Computation{}}
	r := e.report

	e.logger.Debug("reconcile", "state", StateDisposing, "comp_id", comp.ID)
	r.SetIndent(1)
	r.Line("Deleting/Disabling the following computations:")
	r.Indent()
	for _, s := range res.Plan.Dispose {
		d, err := e.dispose(ctx, comp.ID, s)
		if err != nil {
			return nil, err
		}
		res.Disposals = append(res.Disposals, d)
		if d.Action == Deleted {
			ch.deleted = append(ch.deleted, s.ID)
		} else {
			ch.comps[s.ID] = d.Comp
		}
		if d.Fallback {
			r.Line("Computation(%d) '%s' (cannot delete, disabled instead)", s.ID, s.Name)
		} else {
			r.Line("Computation(%d) '%s'", s.ID, s.Name)
		}
	}
	r.Outdent()

	upd := comp.Copy()
	if g := res.Groups; g != nil {
		e.logger.Debug("reconcile", "state", StateGroupPersisting, "comp_id", comp.ID)
		for _, grp := range []*ir.Group{g.Excluded, g.Composite} {
			isNew := grp.ID.IsNull()
			if !e.dryRun {
				if err := e.store.WriteGroup(ctx, grp); err != nil {
					return nil, newPersistError(comp.ID, "write group "+grp.Name, err)
				}
			}
			if isNew {
				res.GroupsCreated++
			}
		}
		ch.bound = g.Composite
		if !g.Composite.ID.IsNull() {
			upd.GroupID = g.Composite.ID
		}
		upd.GroupName = g.Composite.Name
	}

	e.logger.Debug("reconcile", "state", StateEnabling, "comp_id", comp.ID)
	upd.Enabled = true
	r.Line("Enabling %s", label)
	if !e.dryRun {
		if err := e.store.WriteComputation(ctx, upd); err != nil {
			return nil, newPersistError(comp.ID, "write computation "+comp.Name, err)
		}
	}
	ch.comps[comp.ID] = upd
	return ch, nil
}

// dispose retires one single computation according to the dispose mode.
// A delete refused for referential integrity falls back to disable.
func (e *Engine) dispose(ctx context.Context, compID ir.Key, s *ir.Computation) (Disposal, error) {
	if e.mode == DisposeDelete {
		if e.dryRun {
			return Disposal{Comp: s, Action: Deleted}, nil
		}
		err := e.store.DeleteComputation(ctx, s.ID)
		if err == nil {
			e.logger.Info("deleted single computation", "comp_id", compID, "single_id", s.ID)
			return Disposal{Comp: s, Action: Deleted}, nil
		}
		if !errors.Is(err, ir.ErrReferentialConflict) {
			return Disposal{}, newPersistError(compID, "delete computation "+s.Name, err)
		}
		e.logger.Warn("cannot delete single computation, disabling instead",
			"comp_id", compID, "single_id", s.ID, "error", err)
		d, derr := e.disable(ctx, compID, s)
		d.Fallback = true
		return d, derr
	}
	return e.disable(ctx, compID, s)
}

func (e *Engine) disable(ctx context.Context, compID ir.Key, s *ir.Computation) (Disposal, error) {
	cp := s.Copy()
	cp.Enabled = false
	if !e.dryRun {
		if err := e.store.WriteComputation(ctx, cp); err != nil {
			return Disposal{}, newPersistError(compID, "disable computation "+s.Name, err)
		}
		e.logger.Info("disabled single computation", "comp_id", compID, "single_id", s.ID)
	}
	return Disposal{Comp: cp, Action: Disabled}, nil
}
