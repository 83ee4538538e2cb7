package engine

import (
	"fmt"

	"github.com/roach88/compgroup/internal/ir"
)

// ExcludedGroupName is the name of the exclusion group for a computation.
func ExcludedGroupName(compID ir.Key) string {
	return fmt.Sprintf("comp-%d-excluded", compID)
}

// CompositeGroupName is the name of the composite group for a computation.
func CompositeGroupName(compID ir.Key) string {
	return fmt.Sprintf("comp-%d-group", compID)
}

// CompositeGroups are the groups built for a computation with exclusions.
type CompositeGroups struct {
	// Excluded holds exactly the excluded series.
	Excluded *ir.Group

	// Composite is the original group with Excluded subtracted.
	Composite *ir.Group

	// Base is the group Composite adds; the computation's bound group, or
	// its base when it is already bound to its own composite group. Nil if
	// that composite had no base.
	Base *ir.Group
}

// BuildGroups builds the exclusion and composite groups for comp.
//
// When comp is already bound to its composite group from an earlier run,
// that group's base is reused and the earlier exclusions are kept, so the
// composite never contains itself.
func BuildGroups(comp *ir.Computation, label string, bound *ir.Group, exclude []ir.TSID) *CompositeGroups {
	excluded := &ir.Group{
		Name: ExcludedGroupName(comp.ID),
		Type: ir.GroupTypeCompSelect,
		Description: fmt.Sprintf("These Time Series Identifiers are excluded from the execution of computation(%d) %s",
			comp.ID, comp.Name),
	}

	base := bound
	composite := &ir.Group{
		Name:        CompositeGroupName(comp.ID),
		Type:        ir.GroupTypeCompSelect,
		Description: "Special group for " + label,
	}
	if bound.Name == composite.Name {
		composite.ID = bound.ID
		base = nil
		for _, op := range bound.Operands {
			switch {
			case op.Op == ir.Union && base == nil:
				base = op.Group
			case op.Op == ir.Subtract && op.Group != nil && op.Group.Name == excluded.Name:
				excluded.ID = op.Group.ID
				for _, m := range op.Group.Members {
					excluded.AddMember(m)
				}
			}
		}
	}

	for _, t := range exclude {
		excluded.AddMember(t)
	}
	if base != nil {
		composite.AddOperand(ir.Union, base)
	}
	composite.AddOperand(ir.Subtract, excluded)

	return &CompositeGroups{Excluded: excluded, Composite: composite, Base: base}
}
