package engine

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/text/cases"

	"github.com/roach88/compgroup/internal/algo"
	"github.com/roach88/compgroup/internal/ir"
)

// MatchesParmsAndAlgo reports whether a and b reference the same algorithm
// and carry the same parameters: equal counts, and every parameter of a has
// a role-equal parameter in b. Parameter order is ignored.
//
// Role names are unique within a computation, so the relation is symmetric.
func MatchesParmsAndAlgo(a, b *ir.Computation) bool {
	if a.AlgorithmID != b.AlgorithmID {
		return false
	}
	if len(a.Parms) != len(b.Parms) {
		return false
	}
next:
	for _, pa := range a.Parms {
		for _, pb := range b.Parms {
			if ir.RoleEqual(pa, pb) {
				continue next
			}
		}
		return false
	}
	return true
}

// PropMatch is the outcome of a behavioral comparison.
type PropMatch struct {
	// Match is true when every compared property agrees.
	Match bool

	// Property names the first property that differs.
	Property string

	// Err is set when either computation could not be prepared; Match is
	// then false.
	Err error
}

// PropertyMatcher compares the evaluated properties of two computations.
//
// Executives are built lazily and kept for the life of the matcher, so a
// single computation compared against many clones is prepared once.
// Not safe for concurrent use.
type PropertyMatcher struct {
	prep   Preparer
	logger *slog.Logger
	fold   cases.Caser
	execs  map[*ir.Computation]prepared
}

type prepared struct {
	exec algo.Executive
	err  error
}

// NewPropertyMatcher creates a matcher that prepares computations with prep.
func NewPropertyMatcher(prep Preparer, logger *slog.Logger) *PropertyMatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PropertyMatcher{
		prep:   prep,
		logger: logger,
		fold:   cases.Fold(),
		execs:  make(map[*ir.Computation]prepared),
	}
}

// MatchesProps compares, ignoring case, every property the clone's
// algorithm declares plus the built-in aggregate properties. Two absent
// values are equal; an absent and a present value are not.
//
// A computation that cannot be prepared never matches.
func (m *PropertyMatcher) MatchesProps(ctx context.Context, clone, single *ir.Computation) PropMatch {
	ce, err := m.executive(ctx, clone)
	if err != nil {
		return PropMatch{Err: err}
	}
	se, err := m.executive(ctx, single)
	if err != nil {
		return PropMatch{Err: err}
	}

	names := slices.Concat(ce.DeclaredPropertyNames(), algo.BuiltinPropertyNames)
	for _, name := range names {
		cv, cok := ce.EvaluatedProperty(name)
		sv, sok := se.EvaluatedProperty(name)
		if cok != sok || m.fold.String(cv) != m.fold.String(sv) {
			return PropMatch{Property: name}
		}
	}
	return PropMatch{Match: true}
}

func (m *PropertyMatcher) executive(ctx context.Context, comp *ir.Computation) (algo.Executive, error) {
	if p, ok := m.execs[comp]; ok {
		return p.exec, p.err
	}
	exec, err := m.prep.Prepare(ctx, comp)
	if err != nil {
		m.logger.Warn("cannot initialize computation", "comp_id", comp.ID, "error", err)
	}
	m.execs[comp] = prepared{exec: exec, err: err}
	return exec, err
}
