package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/compgroup/internal/ir"
)

func TestWriteSite_Upsert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id1, err := s.WriteSite(ctx, "TESTSITE1", "first")
	require.NoError(t, err)
	id2, err := s.WriteSite(ctx, "testsite1", "second")
	require.NoError(t, err)

	assert.Equal(t, id1, id2, "site names compare case-insensitively")

	var desc string
	require.NoError(t, s.db.QueryRow(`SELECT description FROM site WHERE site_id = ?`, int64(id1)).Scan(&desc))
	assert.Equal(t, "second", desc)
}

func TestWriteAlgorithm_ReplacesByName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	alg := seedAlgorithm(t, s)
	require.False(t, alg.ID.IsNull())

	again := &ir.Algorithm{
		Name:      alg.Name,
		ExecClass: "decodes.tsdb.algo.Other",
		Parms:     []ir.AlgoParm{{RoleName: "in", Direction: ir.Input}},
	}
	require.NoError(t, s.WriteAlgorithm(ctx, again))
	assert.Equal(t, alg.ID, again.ID)

	got, err := s.GetAlgorithm(ctx, alg.ID)
	require.NoError(t, err)
	assert.Equal(t, "decodes.tsdb.algo.Other", got.ExecClass)
	assert.Equal(t, []ir.AlgoParm{{RoleName: "in", Direction: ir.Input}}, got.Parms)
	assert.Empty(t, got.PropNames)
	assert.Empty(t, got.Props)
}

func TestWriteComputation_InsertAssignsID(t *testing.T) {
	s := createTestStore(t)
	comp := seedSingle(t, s, "C1", "TESTSITE1.Stage.15Minutes.raw", "TESTSITE1.Flow.15Minutes.rev")
	assert.False(t, comp.ID.IsNull())
}

func TestWriteComputation_UpdateReplacesParmsAndProps(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	comp := seedSingle(t, s, "C1", "TESTSITE1.Stage.15Minutes.raw", "TESTSITE1.Flow.15Minutes.rev")
	id := comp.ID

	comp.Enabled = false
	comp.Parms = comp.Parms[:1]
	comp.Props = map[string]string{"offset": "3"}
	require.NoError(t, s.WriteComputation(ctx, comp))
	assert.Equal(t, id, comp.ID)

	got, err := s.GetComputation(ctx, id)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	require.Len(t, got.Parms, 1)
	assert.Equal(t, "input", got.Parms[0].RoleName)
	assert.Equal(t, map[string]string{"offset": "3"}, got.Props)
}

func TestWriteComputation_ExplicitID(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	alg := seedAlgorithm(t, s)

	comp := &ir.Computation{ID: 42, Name: "fixed", AlgorithmID: alg.ID}
	require.NoError(t, s.WriteComputation(ctx, comp))
	assert.Equal(t, ir.Key(42), comp.ID)

	got, err := s.GetComputationByName(ctx, "fixed")
	require.NoError(t, err)
	assert.Equal(t, ir.Key(42), got.ID)
}

func TestWriteComputation_GroupBinding(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	series := seedSeries(t, s, "TESTSITE1.Stage.15Minutes.raw")
	alg := seedAlgorithm(t, s)

	g := &ir.Group{Name: "stages", Type: "basin"}
	g.AddMember(series[0])
	require.NoError(t, s.WriteGroup(ctx, g))

	comp := &ir.Computation{
		Name:        "G",
		AlgorithmID: alg.ID,
		GroupID:     g.ID,
		Parms: []*ir.Parameter{
			{RoleName: "input", Direction: ir.Input, Identity: ir.Identity{DataType: "Stage"}},
			{RoleName: "output", Direction: ir.Output, Identity: ir.Identity{DataType: "Flow", TableSelector: "rev"}},
		},
	}
	require.NoError(t, s.WriteComputation(ctx, comp))

	got, err := s.GetComputation(ctx, comp.ID)
	require.NoError(t, err)
	assert.True(t, got.IsGroupComp())
	assert.Equal(t, g.ID, got.GroupID)
	assert.Equal(t, "stages", got.GroupName)
	assert.Equal(t, ir.Identity{DataType: "Stage"}, got.Parms[0].Identity)
	assert.True(t, got.Parms[0].TSKey.IsNull())
}

func TestDeleteComputation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	comp := seedSingle(t, s, "C1", "TESTSITE1.Stage.15Minutes.raw", "TESTSITE1.Flow.15Minutes.rev")

	require.NoError(t, s.DeleteComputation(ctx, comp.ID))

	_, err := s.GetComputation(ctx, comp.ID)
	assert.ErrorIs(t, err, ir.ErrNotFound)

	var parms int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM cp_comp_ts_parm WHERE computation_id = ?`, int64(comp.ID)).Scan(&parms))
	assert.Zero(t, parms, "parameters cascade with the computation")
}

func TestDeleteComputation_NotFound(t *testing.T) {
	s := createTestStore(t)
	err := s.DeleteComputation(context.Background(), 999)
	assert.ErrorIs(t, err, ir.ErrNotFound)
}

func TestDeleteComputation_ReferentialConflict(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	comp := seedSingle(t, s, "C1", "TESTSITE1.Stage.15Minutes.raw", "TESTSITE1.Flow.15Minutes.rev")
	require.NoError(t, s.RecordDerivedData(ctx, comp.Parms[1].TSKey, comp.ID, 10))

	err := s.DeleteComputation(ctx, comp.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ir.ErrReferentialConflict)

	// Nothing was removed.
	got, err := s.GetComputation(ctx, comp.ID)
	require.NoError(t, err)
	assert.Len(t, got.Parms, 2)
}

func TestWriteGroup_MembersCriteriaOperands(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	series := seedSeries(t, s,
		"TESTSITE1.Stage.15Minutes.raw",
		"TESTSITE2.Stage.15Minutes.raw",
	)

	sub := &ir.Group{Name: "sub", Type: ir.GroupTypeCompSelect}
	sub.AddMember(series[1])
	require.NoError(t, s.WriteGroup(ctx, sub))

	g := &ir.Group{
		Name:        "parent",
		Type:        "basin",
		Description: "parent group",
		Criteria:    ir.Criteria{Sites: []string{"TESTSITE1"}, DataTypes: []string{"Stage"}},
	}
	// Member given by identity only; the store resolves the key.
	g.AddMember(ir.TSID{Identity: series[0].Identity})
	g.AddOperand(ir.Union, sub)
	require.NoError(t, s.WriteGroup(ctx, g))
	require.False(t, g.ID.IsNull())

	got, err := s.GetGroup(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, "parent", got.Name)
	assert.Equal(t, "basin", got.Type)
	assert.Equal(t, "parent group", got.Description)
	require.Len(t, got.Members, 1)
	assert.Equal(t, series[0], got.Members[0])
	assert.Equal(t, []string{"TESTSITE1"}, got.Criteria.Sites)
	assert.Equal(t, []string{"Stage"}, got.Criteria.DataTypes)
	require.Len(t, got.Operands, 1)
	assert.Equal(t, ir.Union, got.Operands[0].Op)
	assert.Equal(t, sub.ID, got.Operands[0].Group.ID)
}

func TestWriteGroup_UpsertByName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	series := seedSeries(t, s, "TESTSITE1.Stage.15Minutes.raw", "TESTSITE2.Stage.15Minutes.raw")

	g1 := &ir.Group{Name: "comp-7-excluded", Type: ir.GroupTypeCompSelect}
	g1.AddMember(series[0])
	require.NoError(t, s.WriteGroup(ctx, g1))

	g2 := &ir.Group{Name: "comp-7-excluded", Type: ir.GroupTypeCompSelect}
	g2.AddMember(series[1])
	require.NoError(t, s.WriteGroup(ctx, g2))

	assert.Equal(t, g1.ID, g2.ID)
	got, err := s.GetGroupByName(ctx, "comp-7-excluded")
	require.NoError(t, err)
	require.Len(t, got.Members, 1)
	assert.Equal(t, series[1].Key, got.Members[0].Key)
}

func TestWriteGroup_UnstoredSubgroup(t *testing.T) {
	s := createTestStore(t)
	g := &ir.Group{Name: "parent"}
	g.AddOperand(ir.Subtract, &ir.Group{Name: "never-written"})

	err := s.WriteGroup(context.Background(), g)
	assert.Error(t, err)
}

func TestWriteGroup_UnknownMember(t *testing.T) {
	s := createTestStore(t)
	g := &ir.Group{Name: "g"}
	g.AddMember(ir.MustParseTSID("NOWHERE.Stage.15Minutes.raw"))

	err := s.WriteGroup(context.Background(), g)
	assert.ErrorIs(t, err, ir.ErrNotFound)

	// The transaction rolled back.
	_, err = s.GetGroupByName(context.Background(), "g")
	assert.ErrorIs(t, err, ir.ErrNotFound)
}
