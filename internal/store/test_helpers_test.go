package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/compgroup/internal/ir"
)

// createTestStore creates a new temp-dir store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// seedSeries creates the site (if needed) and the time series for each
// unique string and returns them in order.
func seedSeries(t *testing.T, s *Store, uniques ...string) []ir.TSID {
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

// seedAlgorithm stores a two-role algorithm (input, output) with one
// declared property.
func seedAlgorithm(t *testing.T, s *Store) *ir.Algorithm {
	t.Helper()
	alg := &ir.Algorithm{
		Name:      "CopyAlgorithm",
		ExecClass: "decodes.tsdb.algo.CopyAlgorithm",
		PropNames: []string{"multiplier", "offset"},
		Props:     map[string]string{"multiplier": "1.0"},
		Parms: []ir.AlgoParm{
			{RoleName: "input", Direction: ir.Input},
			{RoleName: "output", Direction: ir.Output},
		},
	}
	require.NoError(t, s.WriteAlgorithm(context.Background(), alg))
	return alg
}

// seedSingle stores an enabled single computation reading in and writing out.
func seedSingle(t *testing.T, s *Store, name, in, out string) *ir.Computation {
	t.Helper()
	series := seedSeries(t, s, in, out)
	alg := seedAlgorithm(t, s)
	comp := &ir.Computation{
		Name:        name,
		AlgorithmID: alg.ID,
		Enabled:     true,
		Parms: []*ir.Parameter{
			{RoleName: "input", Direction: ir.Input, Identity: series[0].Identity, TSKey: series[0].Key},
			{RoleName: "output", Direction: ir.Output, Identity: series[1].Identity, TSKey: series[1].Key},
		},
		Props: map[string]string{"multiplier": "2.5"},
	}
	require.NoError(t, s.WriteComputation(context.Background(), comp))
	return comp
}
