package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/compgroup/internal/ir"
)

func TestMatchesParmsAndAlgo(t *testing.T) {
	base := func() *ir.Computation {
		return single(2, "a", "S.Stage.15Minute.raw", "S.Stage.15Minute.rev", nil)
	}

	tests := []struct {
		name   string
		mutate func(c *ir.Computation)
		want   bool
	}{
		{"identical", func(c *ir.Computation) {}, true},
		{"parameter order ignored", func(c *ir.Computation) {
			c.Parms[0], c.Parms[1] = c.Parms[1], c.Parms[0]
		}, true},
		{"resolution ignored", func(c *ir.Computation) { c.Parms[0].TSKey = 42 }, true},
		{"different algorithm", func(c *ir.Computation) { c.AlgorithmID = 9 }, false},
		{"different site", func(c *ir.Computation) { c.Parms[1].Site = "T" }, false},
		{"different role name", func(c *ir.Computation) { c.Parms[0].RoleName = "in" }, false},
		{"extra parameter", func(c *ir.Computation) {
			c.Parms = append(c.Parms, parm("extra", ir.Input, "S.Flow.15Minute.raw"))
		}, false},
		{"different model", func(c *ir.Computation) { c.Parms[1].ModelID = 3 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := base(), base()
			tt.mutate(b)
			assert.Equal(t, tt.want, MatchesParmsAndAlgo(a, b))
			assert.Equal(t, tt.want, MatchesParmsAndAlgo(b, a), "relation is symmetric")
		})
	}
}

func TestPropertyMatcher_MatchesProps(t *testing.T) {
	tests := []struct {
		name     string
		a, b     map[string]string
		want     bool
		property string
	}{
		{"equal", map[string]string{"multiplier": "2"}, map[string]string{"multiplier": "2"}, true, ""},
		{"case of value ignored", map[string]string{"multiplier": "TRUE"}, map[string]string{"multiplier": "true"}, true, ""},
		{"case of name ignored", map[string]string{"Multiplier": "2"}, map[string]string{"multiplier": "2"}, true, ""},
		{"both absent", nil, nil, true, ""},
		{"value differs", map[string]string{"multiplier": "2"}, map[string]string{"multiplier": "3"}, false, "multiplier"},
		{"one absent", map[string]string{"offset": "1"}, nil, false, "offset"},
		{"builtin differs", map[string]string{"aggregateTimeZone": "UTC"}, map[string]string{"aggregateTimeZone": "MST"}, false, "aggregateTimeZone"},
		{"undeclared ignored", map[string]string{"note": "x"}, map[string]string{"note": "y"}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewPropertyMatcher(&stubPreparer{names: []string{"multiplier", "offset"}}, quietLogger())
			a := single(1, "a", "S.Stage.15Minute.raw", "S.Stage.15Minute.rev", tt.a)
			b := single(2, "b", "S.Stage.15Minute.raw", "S.Stage.15Minute.rev", tt.b)

			got := m.MatchesProps(context.Background(), a, b)
			assert.Equal(t, tt.want, got.Match)
			assert.Equal(t, tt.property, got.Property)
			assert.NoError(t, got.Err)
		})
	}
}

func TestPropertyMatcher_PrepareFailureNeverMatches(t *testing.T) {
	prep := &stubPreparer{fail: map[string]bool{"broken": true}}
	m := NewPropertyMatcher(prep, quietLogger())
	a := single(1, "a", "S.Stage.15Minute.raw", "S.Stage.15Minute.rev", nil)
	b := single(2, "broken", "S.Stage.15Minute.raw", "S.Stage.15Minute.rev", nil)

	got := m.MatchesProps(context.Background(), a, b)
	assert.False(t, got.Match)
	assert.ErrorIs(t, got.Err, errCannotPrepare)
}

func TestPropertyMatcher_CachesExecutives(t *testing.T) {
	prep := &stubPreparer{}
	m := NewPropertyMatcher(prep, quietLogger())
	s := single(2, "s", "S.Stage.15Minute.raw", "S.Stage.15Minute.rev", nil)
	c1 := single(1, "c1", "S.Stage.15Minute.raw", "S.Stage.15Minute.rev", nil)
	c2 := single(1, "c2", "S.Stage.15Minute.raw", "S.Stage.15Minute.rev", nil)

	m.MatchesProps(context.Background(), c1, s)
	m.MatchesProps(context.Background(), c2, s)
	assert.Equal(t, 3, prep.calls, "the single is prepared once")
}
