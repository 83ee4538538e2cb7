package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testComp() *Computation {
	return &Computation{
		ID:          10,
		Name:        "copy-flow",
		AlgorithmID: 1,
		Enabled:     true,
		Parms: []*Parameter{
			{RoleName: "output", Direction: Output, Identity: Identity{Site: "A", DataType: "flow", Interval: "day", TableSelector: "R_"}},
			{RoleName: "input", Direction: Input, Identity: Identity{Site: "A", DataType: "flow", Interval: "1hour", TableSelector: "R_"}},
		},
		Props: map[string]string{"aggLowerBoundClosed": "true"},
	}
}

func TestComputation_ParmAccessors(t *testing.T) {
	c := testComp()

	require.NotNil(t, c.Parm("input"))
	assert.Nil(t, c.Parm("missing"))
	assert.Len(t, c.Inputs(), 1)
	assert.Len(t, c.Outputs(), 1)
	assert.Equal(t, "input", c.FirstInput().RoleName)
	assert.False(t, c.IsGroupComp())

	c.GroupID = 5
	assert.True(t, c.IsGroupComp())
}

func TestComputation_FirstInputNone(t *testing.T) {
	c := &Computation{Parms: []*Parameter{{RoleName: "output", Direction: Output}}}
	assert.Nil(t, c.FirstInput())
}

func TestComputation_PropCaseInsensitive(t *testing.T) {
	c := testComp()

	v, ok := c.Prop("AGGLOWERBOUNDCLOSED")
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	_, ok = c.Prop("interpDeltas")
	assert.False(t, ok)
}

func TestComputation_CopyIsDeep(t *testing.T) {
	c := testComp()
	cp := c.Copy()

	cp.Parms[0].Site = "B"
	cp.Props["aggLowerBoundClosed"] = "false"
	cp.Enabled = false

	assert.Equal(t, "A", c.Parms[0].Site)
	assert.Equal(t, "true", c.Props["aggLowerBoundClosed"])
	assert.True(t, c.Enabled)
}

func TestRoleEqual(t *testing.T) {
	a := &Parameter{RoleName: "input", Direction: Input, Identity: Identity{Site: "A", DataType: "flow", Interval: "day", TableSelector: "R_"}}

	b := *a
	b.TSKey = 99
	assert.True(t, RoleEqual(a, &b), "resolution key is not part of role equality")

	c := *a
	c.RoleName = "input2"
	assert.False(t, RoleEqual(a, &c))

	d := *a
	d.ModelID = 4
	assert.False(t, RoleEqual(a, &d))

	assert.False(t, RoleEqual(a, nil))
}

func TestParseDirection(t *testing.T) {
	for in, want := range map[string]Direction{"i": Input, "INPUT": Input, "o": Output, " output ": Output} {
		got, ok := ParseDirection(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := ParseDirection("x")
	assert.False(t, ok)
}
