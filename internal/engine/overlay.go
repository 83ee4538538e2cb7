package engine

import (
	"github.com/roach88/compgroup/internal/ir"
)

// overlay holds the working copies a run produces on top of its Snapshot.
//
// Disposals, rebinds and enables are recorded here once a group
// computation completes, so later computations in the same run see them.
// The snapshot itself is never modified.
type overlay struct {
	comps   map[ir.Key]*ir.Computation
	deleted map[ir.Key]bool
	bound   map[ir.Key]*ir.Group // group computation id -> composite group
}

func newOverlay() *overlay {
	return &overlay{
		comps:   make(map[ir.Key]*ir.Computation),
		deleted: make(map[ir.Key]bool),
		bound:   make(map[ir.Key]*ir.Group),
	}
}

// computation returns the current version of id: the working copy if one
// exists, otherwise the snapshot's. ok is false for deleted or unknown ids.
func (o *overlay) computation(snap *Snapshot, id ir.Key) (*ir.Computation, bool) {
	if o.deleted[id] {
		return nil, false
	}
	if c, ok := o.comps[id]; ok {
		return c, true
	}
	return snap.Computation(id)
}

// singles returns the current single computations in id order.
func (o *overlay) singles(snap *Snapshot) []*ir.Computation {
	var out []*ir.Computation
	for _, c := range snap.Computations() {
		cur, ok := o.computation(snap, c.ID)
		if !ok || cur.IsGroupComp() {
			continue
		}
		out = append(out, cur)
	}
	return out
}

// group returns the group currently bound to comp.
func (o *overlay) group(snap *Snapshot, comp *ir.Computation) (*ir.Group, bool) {
	if g, ok := o.bound[comp.ID]; ok {
		return g, true
	}
	return snap.Group(comp.GroupID)
}

// changes collects the updates of one group computation until it
// completes. An aborted computation's changes are dropped.
type changes struct {
	comps   map[ir.Key]*ir.Computation
	deleted []ir.Key
	bound   *ir.Group
}

func (o *overlay) commit(compID ir.Key, ch *changes) {
	for id, c := range ch.comps {
		o.comps[id] = c
	}
	for _, id := range ch.deleted {
		o.deleted[id] = true
		delete(o.comps, id)
	}
	if ch.bound != nil {
		o.bound[compID] = ch.bound
	}
}
