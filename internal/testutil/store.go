package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/compgroup/internal/ir"
	"github.com/roach88/compgroup/internal/store"
)

// OpenStore opens a store in a temp dir, closed when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// Series stores the site and time series for each unique string and
// returns them in order.
func Series(t testing.TB, s *store.Store, uniques ...string) []ir.TSID {
	t.Helper()
	ctx := context.Background()
	out := make([]ir.TSID, 0, len(uniques))
	for _, u := range uniques {
		tsid := ir.MustParseTSID(u)
		_, err := s.WriteSite(ctx, tsid.Site, "")
		require.NoError(t, err)
		stored, err := s.CreateTimeSeries(ctx, tsid.Identity)
		require.NoError(t, err)
		out = append(out, stored)
	}
	return out
}

// Algorithm stores an algorithm with one input role "input" and one output
// role "output".
func Algorithm(t testing.TB, s *store.Store, name, execClass string, props map[string]string) *ir.Algorithm {
	t.Helper()
	alg := &ir.Algorithm{
		Name:      name,
		ExecClass: execClass,
		Props:     props,
		Parms: []ir.AlgoParm{
			{RoleName: "input", Direction: ir.Input},
			{RoleName: "output", Direction: ir.Output},
		},
	}
	for k := range props {
		alg.PropNames = append(alg.PropNames, k)
	}
	require.NoError(t, s.WriteAlgorithm(context.Background(), alg))
	return alg
}

// Comp describes a computation to store with StoreComp.
type Comp struct {
	Name     string
	Alg      *ir.Algorithm
	In, Out  ir.Identity
	Group    *ir.Group
	Disabled bool
	Props    map[string]string
}

// StoreComp stores c. Parameters of a single computation must name stored
// series and are resolved to their keys; those of a group computation are
// stored as partial identities.
func StoreComp(t testing.TB, s *store.Store, c Comp) *ir.Computation {
	t.Helper()
	ctx := context.Background()
	comp := &ir.Computation{
		Name:        c.Name,
		AlgorithmID: c.Alg.ID,
		Enabled:     !c.Disabled,
		Props:       c.Props,
		Parms: []*ir.Parameter{
			{RoleName: "input", Direction: ir.Input, Identity: c.In},
			{RoleName: "output", Direction: ir.Output, Identity: c.Out},
		},
	}
	if c.Group != nil {
		comp.GroupID = c.Group.ID
	} else {
		for _, p := range comp.Parms {
			ts, err := s.LookupTimeSeries(ctx, p.Identity)
			require.NoError(t, err, "series for role %q", p.RoleName)
			p.Identity, p.TSKey = ts.Identity, ts.Key
		}
	}
	require.NoError(t, s.WriteComputation(ctx, comp))
	return comp
}

// Ident parses a unique string into an identity.
func Ident(unique string) ir.Identity {
	return ir.MustParseTSID(unique).Identity
}

// Group stores a group whose explicit members are the given series.
func Group(t testing.TB, s *store.Store, name string, members ...ir.TSID) *ir.Group {
	t.Helper()
	g := &ir.Group{Name: name, Type: "basin"}
	for _, m := range members {
		g.AddMember(m)
	}
	require.NoError(t, s.WriteGroup(context.Background(), g))
	return g
}

// FaultStore wraps a store and fails selected writes.
type FaultStore struct {
	*store.Store

	// WriteGroupErr is returned by WriteGroup when set.
	WriteGroupErr error

	// WriteComputationErr is returned by WriteComputation when set.
	WriteComputationErr error

	// Writes counts write calls that reached the store.
	Writes int
}

// WriteGroup implements engine.GroupStore.
func (f *FaultStore) WriteGroup(ctx context.Context, g *ir.Group) error {
	if f.WriteGroupErr != nil {
		return f.WriteGroupErr
	}
	f.Writes++
	return f.Store.WriteGroup(ctx, g)
}

// WriteComputation implements engine.ComputationStore.
func (f *FaultStore) WriteComputation(ctx context.Context, c *ir.Computation) error {
	if f.WriteComputationErr != nil {
		return f.WriteComputationErr
	}
	f.Writes++
	return f.Store.WriteComputation(ctx, c)
}

// DeleteComputation implements engine.ComputationStore.
func (f *FaultStore) DeleteComputation(ctx context.Context, id ir.Key) error {
	f.Writes++
	return f.Store.DeleteComputation(ctx, id)
}
