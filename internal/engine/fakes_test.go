package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/roach88/compgroup/internal/algo"
	"github.com/roach88/compgroup/internal/ir"
)

// mapExecutive evaluates properties from the computation only.
type mapExecutive struct {
	names []string
	props map[string]string
}

func (m mapExecutive) DeclaredPropertyNames() []string { return m.names }

func (m mapExecutive) EvaluatedProperty(name string) (string, bool) {
	for k, v := range m.props {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// stubPreparer prepares every computation with the same declared names.
// Computations named in fail cannot be prepared.
type stubPreparer struct {
	names []string
	fail  map[string]bool
	calls int
}

var errCannotPrepare = errors.New("cannot prepare")

func (p *stubPreparer) Prepare(_ context.Context, c *ir.Computation) (algo.Executive, error) {
	p.calls++
	if p.fail[c.Name] {
		return nil, errCannotPrepare
	}
	return mapExecutive{names: p.names, props: c.Props}, nil
}

func parm(role string, dir ir.Direction, unique string) *ir.Parameter {
	t := ir.MustParseTSID(unique)
	return &ir.Parameter{RoleName: role, Direction: dir, Identity: t.Identity, TSKey: t.Key}
}

// single builds a single computation over in -> out.
func single(id ir.Key, name, in, out string, props map[string]string) *ir.Computation {
	return &ir.Computation{
		ID:          id,
		Name:        name,
		AlgorithmID: 1,
		Enabled:     true,
		Parms:       []*ir.Parameter{parm("input", ir.Input, in), parm("output", ir.Output, out)},
		Props:       props,
	}
}

// clone builds a clone of group computation 1 triggered by in.
func clone(in, out string, props map[string]string) *Clone {
	c := single(1, "group", in, out, props)
	c.Parms[0].TSKey = 100
	trigger := ir.MustParseTSID(in)
	return &Clone{Comp: c, Trigger: trigger, Anchor: trigger}
}
