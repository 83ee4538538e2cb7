package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/compgroup/internal/ir"
)

// Snapshot is the immutable view of the metadata store a run works from.
//
// Computations are held in id order. Group expansions are computed once
// per group and reused, so a group expands identically for the whole run.
type Snapshot struct {
	comps      []*ir.Computation
	byID       map[ir.Key]*ir.Computation
	groups     map[ir.Key]*ir.Group
	algorithms map[ir.Key]*ir.Algorithm
	universe   []ir.TSID
	expansions map[*ir.Group][]ir.TSID
}

// NewSnapshot builds a snapshot from already-loaded objects.
func NewSnapshot(comps []*ir.Computation, groups []*ir.Group, algs []*ir.Algorithm, universe []ir.TSID) *Snapshot {
	s := &Snapshot{
		comps:      slices.Clone(comps),
		byID:       make(map[ir.Key]*ir.Computation, len(comps)),
		groups:     make(map[ir.Key]*ir.Group, len(groups)),
		algorithms: make(map[ir.Key]*ir.Algorithm, len(algs)),
		universe:   slices.Clone(universe),
		expansions: make(map[*ir.Group][]ir.TSID),
	}
	slices.SortStableFunc(s.comps, func(a, b *ir.Computation) int {
		return cmp.Compare(a.ID, b.ID)
	})
	for _, c := range s.comps {
		s.byID[c.ID] = c
	}
	for _, g := range groups {
		s.groups[g.ID] = g
	}
	for _, a := range algs {
		s.algorithms[a.ID] = a
	}
	return s
}

// LoadSnapshot reads computations, groups, algorithms and time series
// from st. A computation that cannot be read is logged and left out.
func LoadSnapshot(ctx context.Context, st Store, logger *slog.Logger) (*Snapshot, error) {
	names, err := st.ListComputationNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	comps := make([]*ir.Computation, 0, len(names))
	for _, name := range names {
		c, err := st.GetComputationByName(ctx, name)
		if errors.Is(err, ir.ErrNotFound) {
			logger.Warn("computation could not be read", "name", name, "error", err)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		comps = append(comps, c)
	}
	logger.Info("computations loaded", "count", len(comps))

	groups, err := st.ListGroups(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	algs, err := st.ListAlgorithms(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	universe, err := st.ListTimeSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	logger.Info("snapshot loaded", "groups", len(groups), "algorithms", len(algs), "time_series", len(universe))

	return NewSnapshot(comps, groups, algs, universe), nil
}

// Computation returns the computation with the given id.
func (s *Snapshot) Computation(id ir.Key) (*ir.Computation, bool) {
	c, ok := s.byID[id]
	return c, ok
}

// Computations returns all computations in id order.
func (s *Snapshot) Computations() []*ir.Computation {
	return slices.Clone(s.comps)
}

// Group returns the group with the given id.
func (s *Snapshot) Group(id ir.Key) (*ir.Group, bool) {
	g, ok := s.groups[id]
	return g, ok
}

// Algorithm returns the algorithm with the given id.
func (s *Snapshot) Algorithm(id ir.Key) (*ir.Algorithm, bool) {
	a, ok := s.algorithms[id]
	return a, ok
}

// Universe returns every time series known at load time.
func (s *Snapshot) Universe() []ir.TSID {
	return slices.Clone(s.universe)
}

// Expand returns the members of g, evaluated against the universe.
// The first expansion of a group is cached for the rest of the run; the
// returned slice is shared and must not be modified.
func (s *Snapshot) Expand(g *ir.Group) []ir.TSID {
	if members, ok := s.expansions[g]; ok {
		return members
	}
	members := g.Expand(s.universe)
	s.expansions[g] = members
	return members
}
