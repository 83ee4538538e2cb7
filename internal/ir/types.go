package ir

import (
	"maps"
	"strings"
)

// Key is a surrogate database id. The zero value means "undefined".
type Key int64

// NoKey is the undefined key.
const NoKey Key = 0

// IsNull reports whether k is undefined.
func (k Key) IsNull() bool { return k == NoKey }

// Direction tells whether a parameter is read or written by the algorithm.
type Direction string

const (
	Input  Direction = "i"
	Output Direction = "o"
)

// ParseDirection accepts "i"/"input" and "o"/"output" in any case.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "i", "input":
		return Input, true
	case "o", "output":
		return Output, true
	}
	return "", false
}

// Identity holds the fields that together denote one time series.
// An empty string field (or zero ModelID) means "not specified".
type Identity struct {
	Site          string `json:"site"`
	DataType      string `json:"data_type"`
	Interval      string `json:"interval"`
	TableSelector string `json:"table_selector"`
	ModelID       int64  `json:"model_id,omitempty"`
}

// Overlay returns base with every field that is set in id replacing the
// corresponding field of base.
func (id Identity) Overlay(base Identity) Identity {
	out := base
	if id.Site != "" {
		out.Site = id.Site
	}
	if id.DataType != "" {
		out.DataType = id.DataType
	}
	if id.Interval != "" {
		out.Interval = id.Interval
	}
	if id.TableSelector != "" {
		out.TableSelector = id.TableSelector
	}
	if id.ModelID != 0 {
		out.ModelID = id.ModelID
	}
	return out
}

// Parameter is one role of a computation.
type Parameter struct {
	RoleName  string    `json:"role"`
	Direction Direction `json:"direction"`
	Identity

	// TSKey is the resolved time series, NoKey while unresolved.
	TSKey Key `json:"ts_key,omitempty"`
}

// IsInput reports whether the parameter is read by the algorithm.
func (p *Parameter) IsInput() bool { return p.Direction == Input }

// IsOutput reports whether the parameter is written by the algorithm.
func (p *Parameter) IsOutput() bool { return p.Direction == Output }

// RoleEqual reports whether a and b have the same role name and the same
// identifying fields. Resolution state (TSKey) and direction are ignored.
func RoleEqual(a, b *Parameter) bool {
	if a == nil || b == nil {
		return false
	}
	return a.RoleName == b.RoleName && a.Identity == b.Identity
}

// Computation is a named unit of work. A computation with a GroupID is a
// group computation; otherwise it is a single computation.
type Computation struct {
	ID            Key               `json:"id"`
	Name          string            `json:"name"`
	Comment       string            `json:"comment,omitempty"`
	AlgorithmID   Key               `json:"algorithm_id"`
	AlgorithmName string            `json:"algorithm_name"`
	Enabled       bool              `json:"enabled"`
	GroupID       Key               `json:"group_id,omitempty"`
	GroupName     string            `json:"group_name,omitempty"`
	Parms         []*Parameter      `json:"parms"`
	Props         map[string]string `json:"props,omitempty"`
}

// IsGroupComp reports whether the computation is bound to a group.
func (c *Computation) IsGroupComp() bool { return !c.GroupID.IsNull() }

// Parm returns the parameter with the given role, or nil.
func (c *Computation) Parm(role string) *Parameter {
	for _, p := range c.Parms {
		if p.RoleName == role {
			return p
		}
	}
	return nil
}

// Inputs returns the input parameters in declaration order.
func (c *Computation) Inputs() []*Parameter {
	var out []*Parameter
	for _, p := range c.Parms {
		if p.IsInput() {
			out = append(out, p)
		}
	}
	return out
}

// Outputs returns the output parameters in declaration order.
func (c *Computation) Outputs() []*Parameter {
	var out []*Parameter
	for _, p := range c.Parms {
		if p.IsOutput() {
			out = append(out, p)
		}
	}
	return out
}

// FirstInput returns the first input parameter, or nil if there is none.
func (c *Computation) FirstInput() *Parameter {
	for _, p := range c.Parms {
		if p.IsInput() {
			return p
		}
	}
	return nil
}

// Prop looks up a computation property ignoring the case of the name.
func (c *Computation) Prop(name string) (string, bool) {
	return lookupFold(c.Props, name)
}

// Copy returns a deep copy. Parameters and properties are not shared.
func (c *Computation) Copy() *Computation {
	cp := *c
	cp.Parms = make([]*Parameter, len(c.Parms))
	for i, p := range c.Parms {
		pp := *p
		cp.Parms[i] = &pp
	}
	cp.Props = maps.Clone(c.Props)
	return &cp
}

// AlgoParm declares a parameter role of an algorithm.
type AlgoParm struct {
	RoleName  string    `json:"role"`
	Direction Direction `json:"direction"`
}

// Algorithm describes an executable algorithm.
type Algorithm struct {
	ID        Key               `json:"id"`
	Name      string            `json:"name"`
	ExecClass string            `json:"exec_class"`
	Comment   string            `json:"comment,omitempty"`
	PropNames []string          `json:"prop_names,omitempty"`
	Props     map[string]string `json:"props,omitempty"`
	Parms     []AlgoParm        `json:"parms"`
}

// Prop looks up a default property ignoring the case of the name.
func (a *Algorithm) Prop(name string) (string, bool) {
	return lookupFold(a.Props, name)
}

func lookupFold(m map[string]string, name string) (string, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
