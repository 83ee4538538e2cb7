package engine

import (
	"context"
	"fmt"

	"github.com/roach88/compgroup/internal/ir"
)

// Action is what the plan does with a structurally matched single.
type Action string

const (
	// ActionDispose retires the single computation.
	ActionDispose Action = "dispose"

	// ActionExclude keeps the single and carves its trigger out of the group.
	ActionExclude Action = "exclude"
)

// Decision records one structural match and what the planner made of it.
type Decision struct {
	Clone  *Clone
	Single *ir.Computation
	Action Action
	Reason string
}

// Plan is the reconciliation plan for one group computation.
type Plan struct {
	CompID ir.Key

	// Dispose lists the single computations to retire, without repeats.
	Dispose []*ir.Computation

	// Exclude lists member series that stay with their single computation,
	// without repeats.
	Exclude []ir.TSID

	// Decisions lists every structural match in evaluation order.
	Decisions []Decision
}

// HasChanges reports whether executing the plan would change anything.
// Exclusions alone change nothing: the group computation is only enabled
// when at least one single computation is retired.
func (p *Plan) HasChanges() bool {
	return len(p.Dispose) > 0
}

// Digest is a content hash of the plan's dispose and exclude lists.
func (p *Plan) Digest() (string, error) {
	ids := make([]ir.Key, len(p.Dispose))
	for i, c := range p.Dispose {
		ids[i] = c.ID
	}
	return ir.PlanDigest(p.CompID, ids, p.Exclude)
}

const reasonDisabled = "single computation is disabled"

// Planner matches clones against single computations.
type Planner struct {
	props *PropertyMatcher
}

// NewPlanner creates a planner that compares properties with props.
func NewPlanner(props *PropertyMatcher) *Planner {
	return &Planner{props: props}
}

// Plan scans every single computation for every clone. A structural match
// whose properties also match and whose single is enabled puts the single
// on the dispose list; any other structural match puts the clone's
// trigger on the exclude list.
//
// A single that ends up both disposable and the source of an exclusion is
// kept: it is removed from the dispose list so the two lists never
// overlap.
func (p *Planner) Plan(ctx context.Context, compID ir.Key, clones []*Clone, singles []*ir.Computation) (*Plan, error) {
	plan := &Plan{CompID: compID}
	disposed := map[ir.Key]bool{}
	excluded := map[string]bool{}
	sources := map[ir.Key]bool{}

	for _, c := range clones {
		for _, s := range singles {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if s.IsGroupComp() || !MatchesParmsAndAlgo(c.Comp, s) {
				continue
			}

			d := Decision{Clone: c, Single: s}
			pm := p.props.MatchesProps(ctx, c.Comp, s)
			switch {
			case pm.Match && s.Enabled:
				d.Action = ActionDispose
				d.Reason = "properties match"
				if !disposed[s.ID] {
					disposed[s.ID] = true
					plan.Dispose = append(plan.Dispose, s)
				}
			default:
				d.Action = ActionExclude
				switch {
				case pm.Err != nil:
					d.Reason = fmt.Sprintf("cannot prepare: %v", pm.Err)
				case !pm.Match:
					d.Reason = fmt.Sprintf("property %q differs", pm.Property)
				default:
					d.Reason = reasonDisabled
				}
				sources[s.ID] = true
				if key := c.Trigger.UniqueString(); !excluded[key] {
					excluded[key] = true
					plan.Exclude = append(plan.Exclude, c.Trigger)
				}
			}
			plan.Decisions = append(plan.Decisions, d)
		}
	}

	if len(sources) > 0 {
		kept := plan.Dispose[:0]
		for _, s := range plan.Dispose {
			if !sources[s.ID] {
				kept = append(kept, s)
			}
		}
		plan.Dispose = kept
	}
	return plan, nil
}
