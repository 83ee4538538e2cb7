package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Group types written by the reconciliation engine.
const GroupTypeCompSelect = "comp-select"

// SetOp combines a subgroup into its parent group.
type SetOp string

const (
	Union     SetOp = "add"
	Subtract  SetOp = "subtract"
	Intersect SetOp = "intersect"
)

// Code returns the single-character combinator stored in the database.
func (op SetOp) Code() string {
	switch op {
	case Union:
		return "A"
	case Subtract:
		return "S"
	case Intersect:
		return "I"
	}
	return "?"
}

// ParseSetOp accepts the stored code ("A", "S", "F", "I") or the long name.
// "F" is the legacy spelling of subtract.
func ParseSetOp(s string) (SetOp, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "add", "union":
		return Union, nil
	case "s", "f", "subtract", "sub":
		return Subtract, nil
	case "i", "intersect":
		return Intersect, nil
	}
	return "", fmt.Errorf("unknown group combinator %q", s)
}

// Operand is one subgroup of a composite group together with the operator
// that combines it.
type Operand struct {
	Op    SetOp  `json:"op"`
	Group *Group `json:"group"`
}

// Criteria selects time series by attribute. An empty list places no
// restriction on that attribute; a Criteria with every list empty selects
// nothing.
type Criteria struct {
	Sites     []string `json:"sites,omitempty"`
	DataTypes []string `json:"data_types,omitempty"`
	Intervals []string `json:"intervals,omitempty"`
}

// IsEmpty reports whether no attribute list is set.
func (c Criteria) IsEmpty() bool {
	return len(c.Sites) == 0 && len(c.DataTypes) == 0 && len(c.Intervals) == 0
}

// Matches reports whether t satisfies every non-empty attribute list.
func (c Criteria) Matches(t TSID) bool {
	if c.IsEmpty() {
		return false
	}
	return matchAny(c.Sites, t.Site) && matchAny(c.DataTypes, t.DataType) && matchAny(c.Intervals, t.Interval)
}

func matchAny(list []string, v string) bool {
	if len(list) == 0 {
		return true
	}
	return slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(s, v) })
}

// Group is a named set of time series.
//
// Membership is the explicit Members plus every series in the universe that
// matches Criteria, then each Operand is applied left to right.
type Group struct {
	ID          Key       `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Members     []TSID    `json:"members,omitempty"`
	Criteria    Criteria  `json:"criteria,omitempty"`
	Operands    []Operand `json:"operands,omitempty"`
}

// AddMember appends t unless an identical series is already a member.
func (g *Group) AddMember(t TSID) {
	for _, m := range g.Members {
		if m.Same(t) {
			return
		}
	}
	g.Members = append(g.Members, t)
}

// AddOperand appends a subgroup combined with op.
func (g *Group) AddOperand(op SetOp, sub *Group) {
	g.Operands = append(g.Operands, Operand{Op: op, Group: sub})
}

// Expand evaluates the group against universe, the full list of known time
// series. The result preserves first-seen order and holds no duplicates.
// A subgroup that is already being evaluated higher up contributes nothing,
// so cyclic definitions terminate.
func (g *Group) Expand(universe []TSID) []TSID {
	return g.expand(universe, map[*Group]bool{})
}

func (g *Group) expand(universe []TSID, path map[*Group]bool) []TSID {
	if g == nil || path[g] {
		return nil
	}
	path[g] = true
	defer delete(path, g)

	var set tsidSet
	for _, m := range g.Members {
		set.add(m)
	}
	if !g.Criteria.IsEmpty() {
		for _, t := range universe {
			if g.Criteria.Matches(t) {
				set.add(t)
			}
		}
	}

	for _, op := range g.Operands {
		sub := op.Group.expand(universe, path)
		switch op.Op {
		case Union:
			for _, t := range sub {
				set.add(t)
			}
		case Subtract:
			set.remove(sub)
		case Intersect:
			set.retain(sub)
		}
	}
	return set.items
}

// tsidSet is an insertion-ordered set of TSIDs keyed by unique string.
type tsidSet struct {
	items []TSID
	seen  map[string]bool
}

func (s *tsidSet) add(t TSID) {
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	u := t.UniqueString()
	if s.seen[u] {
		return
	}
	s.seen[u] = true
	s.items = append(s.items, t)
}

func (s *tsidSet) remove(ts []TSID) {
	drop := uniqueStrings(ts)
	s.filter(func(u string) bool { return !drop[u] })
}

func (s *tsidSet) retain(ts []TSID) {
	keep := uniqueStrings(ts)
	s.filter(func(u string) bool { return keep[u] })
}

func (s *tsidSet) filter(keep func(string) bool) {
	out := s.items[:0]
	for _, t := range s.items {
		u := t.UniqueString()
		if keep(u) {
			out = append(out, t)
		} else {
			delete(s.seen, u)
		}
	}
	s.items = out
}

func uniqueStrings(ts []TSID) map[string]bool {
	m := make(map[string]bool, len(ts))
	for _, t := range ts {
		m[t.UniqueString()] = true
	}
	return m
}
