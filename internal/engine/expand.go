package engine

import (
	"context"
	"errors"

	"github.com/roach88/compgroup/internal/ir"
)

// Clone is a group computation resolved against one member time series.
// It is never persisted.
type Clone struct {
	// Comp is a copy of the group computation with every parameter's
	// identifying fields filled in. Comp.ID is the group computation's id.
	Comp *ir.Computation

	// Trigger is the group member the clone was built for.
	Trigger ir.TSID

	// Anchor is the transformed first input; outputs are resolved from it.
	Anchor ir.TSID
}

// SkipReason says why a member produced no clone, or why a clone was dropped.
type SkipReason string

const (
	SkipInputMissing SkipReason = "input-missing"
	SkipOutputFailed SkipReason = "output-unavailable"
	SkipNoInputs     SkipReason = "no-inputs"
	SkipDuplicate    SkipReason = "duplicate"
)

// Skip records a member that was filtered out.
type Skip struct {
	Member ir.TSID
	Role   string
	Reason SkipReason
	Err    error
}

// Expansion is the result of cloning a group computation over its group.
type Expansion struct {
	Group   *ir.Group
	Members []ir.TSID
	Clones  []*Clone
	Skips   []Skip
}

// expand resolves the bound group of tmpl and builds one clone per member
// that has all of its inputs, then drops duplicate clones.
//
// A bound group that does not resolve is a GROUP_NOT_FOUND RunError.
// Store failures other than not-found and bad-time-series are returned
// as is and end the run.
func (e *Engine) expand(ctx context.Context, tmpl *ir.Computation) (*Expansion, error) {
	g, ok := e.work.group(e.snap, tmpl)
	if !ok {
		return nil, newGroupNotFoundError(tmpl.ID, tmpl.GroupID, ir.ErrNotFound)
	}

	x := &Expansion{Group: g, Members: e.snap.Expand(g)}
	var clones []*Clone
	for _, member := range x.Members {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, skip, err := e.makeClone(ctx, tmpl, member)
		if err != nil {
			return nil, err
		}
		if skip != nil {
			e.logger.Debug("member is not a candidate",
				"comp_id", tmpl.ID, "tsid", member.UniqueString(), "role", skip.Role, "reason", skip.Reason)
			x.Skips = append(x.Skips, *skip)
			continue
		}
		clones = append(clones, c)
	}

	kept, dropped := Dedup(clones)
	for _, c := range dropped {
		e.logger.Debug("duplicate clone dropped", "comp_id", tmpl.ID, "tsid", c.Trigger.UniqueString())
		x.Skips = append(x.Skips, Skip{Member: c.Trigger, Reason: SkipDuplicate})
	}
	x.Clones = kept
	return x, nil
}

// makeClone transforms member through every input of tmpl, then the
// anchor through every output. Exactly one of the clone and the skip is
// non-nil unless err is set.
func (e *Engine) makeClone(ctx context.Context, tmpl *ir.Computation, member ir.TSID) (*Clone, *Skip, error) {
	comp := tmpl.Copy()

	var anchor *ir.TSID
	for _, parm := range comp.Parms {
		if !parm.IsInput() {
			continue
		}
		tsid, err := e.store.TransformTSID(ctx, member, parm, false, true)
		if errors.Is(err, ir.ErrNotFound) {
			return nil, &Skip{Member: member, Role: parm.RoleName, Reason: SkipInputMissing, Err: err}, nil
		}
		if err != nil {
			return nil, nil, err
		}
		if anchor == nil {
			anchor = &tsid
		}
	}
	if anchor == nil {
		return nil, &Skip{Member: member, Reason: SkipNoInputs}, nil
	}

	for _, parm := range comp.Parms {
		if !parm.IsOutput() {
			continue
		}
		_, err := e.resolveOutput(ctx, *anchor, parm)
		if errors.Is(err, ir.ErrBadTimeSeries) || errors.Is(err, ir.ErrNotFound) {
			e.logger.Warn("cannot create output time series",
				"comp_id", tmpl.ID, "tsid", anchor.UniqueString(), "role", parm.RoleName, "error", err)
			return nil, &Skip{Member: member, Role: parm.RoleName, Reason: SkipOutputFailed, Err: err}, nil
		}
		if err != nil {
			return nil, nil, err
		}
	}

	return &Clone{Comp: comp, Trigger: member, Anchor: *anchor}, nil, nil
}

// resolveOutput transforms anchor by an output parameter, creating the
// series if needed. In dry-run mode nothing is created: a missing series
// is described in memory only and carries no key.
func (e *Engine) resolveOutput(ctx context.Context, anchor ir.TSID, parm *ir.Parameter) (ir.TSID, error) {
	if !e.dryRun {
		return e.store.TransformTSID(ctx, anchor, parm, true, true)
	}
	out, err := e.store.TransformTSID(ctx, anchor, parm, false, true)
	if errors.Is(err, ir.ErrNotFound) {
		out = ir.TSID{Identity: parm.Identity.Overlay(anchor.Identity)}
		parm.Identity = out.Identity
		parm.TSKey = ir.NoKey
		return out, nil
	}
	return out, err
}
