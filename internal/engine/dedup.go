package engine

import (
	"github.com/roach88/compgroup/internal/ir"
)

// Dedup keeps the first of every group of clones whose first resolved
// input is role-equal, preserving order. Clones without a resolved input
// are dropped silently; the second result lists only true duplicates.
func Dedup(clones []*Clone) (kept, dropped []*Clone) {
	for _, c := range clones {
		key := dedupKey(c.Comp)
		if key == nil {
			continue
		}
		dup := false
		for _, k := range kept {
			if ir.RoleEqual(k.Comp.Parm(key.RoleName), key) {
				dup = true
				break
			}
		}
		if dup {
			dropped = append(dropped, c)
			continue
		}
		kept = append(kept, c)
	}
	return kept, dropped
}

// dedupKey returns the first input parameter that has been resolved to a
// stored time series.
func dedupKey(c *ir.Computation) *ir.Parameter {
	for _, p := range c.Parms {
		if p.IsInput() && !p.TSKey.IsNull() {
			return p
		}
	}
	return nil
}
