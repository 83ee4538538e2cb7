// Package algo prepares computations for execution far enough to evaluate
// their effective properties.
//
// An Executive answers "what value would this computation actually run
// with" for every property the algorithm reads, resolving computation
// overrides, algorithm defaults and implementation defaults.
package algo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/roach88/compgroup/internal/ir"
)

// ErrUnknownClass is returned when an algorithm names an executable class
// that is not registered.
var ErrUnknownClass = errors.New("unknown algorithm class")

// ErrMissingRole is returned when a computation lacks a parameter for a
// role its algorithm declares.
var ErrMissingRole = errors.New("missing parameter role")

// Executive is a computation prepared for execution.
type Executive interface {
	// DeclaredPropertyNames returns the properties the algorithm reads,
	// excluding the built-in ones.
	DeclaredPropertyNames() []string

	// EvaluatedProperty returns the effective value of a property.
	// ok is false when the property has no value at any level.
	EvaluatedProperty(name string) (value string, ok bool)
}

// AlgorithmSource loads algorithms by id.
type AlgorithmSource interface {
	GetAlgorithm(ctx context.Context, id ir.Key) (*ir.Algorithm, error)
}

// Preparer builds executives.
type Preparer struct {
	algs     AlgorithmSource
	registry *Registry
	logger   *slog.Logger
}

// NewPreparer creates a preparer. A nil registry means DefaultRegistry.
func NewPreparer(algs AlgorithmSource, registry *Registry) *Preparer {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Preparer{algs: algs, registry: registry, logger: slog.Default()}
}

// Prepare resolves the computation's algorithm and implementation and
// returns its executive. Fails if the algorithm or its class is unknown or
// if the computation lacks a parameter for one of the algorithm's roles.
func (p *Preparer) Prepare(ctx context.Context, comp *ir.Computation) (Executive, error) {
	alg, err := p.algs.GetAlgorithm(ctx, comp.AlgorithmID)
	if err != nil {
		return nil, fmt.Errorf("prepare computation %d: %w", comp.ID, err)
	}
	class, ok := p.registry.Lookup(alg.ExecClass)
	if !ok {
		return nil, fmt.Errorf("prepare computation %d: %w: %q", comp.ID, ErrUnknownClass, alg.ExecClass)
	}
	for _, role := range alg.Parms {
		if comp.Parm(role.RoleName) == nil {
			return nil, fmt.Errorf("prepare computation %d: %w: %q", comp.ID, ErrMissingRole, role.RoleName)
		}
	}

	e := &executive{
		comp:  comp,
		alg:   alg,
		class: class,
		names: declaredNames(class, alg),
	}
	e.evalBuiltins(p.logger)
	return e, nil
}

func declaredNames(class Class, alg *ir.Algorithm) []string {
	names := slices.Clone(class.PropNames)
	for _, n := range alg.PropNames {
		if !slices.ContainsFunc(names, func(s string) bool { return strings.EqualFold(s, n) }) {
			names = append(names, n)
		}
	}
	return names
}

type executive struct {
	comp     *ir.Computation
	alg      *ir.Algorithm
	class    Class
	names    []string
	builtins map[string]string
}

func (e *executive) DeclaredPropertyNames() []string {
	return slices.Clone(e.names)
}

func (e *executive) EvaluatedProperty(name string) (string, bool) {
	for _, b := range BuiltinPropertyNames {
		if strings.EqualFold(b, name) {
			v, ok := e.builtins[b]
			return v, ok
		}
	}
	return e.raw(name)
}

// raw looks the property up on the computation, then the algorithm, then
// the implementation defaults.
func (e *executive) raw(name string) (string, bool) {
	if v, ok := e.comp.Prop(name); ok {
		return v, true
	}
	if v, ok := e.alg.Prop(name); ok {
		return v, true
	}
	for k, v := range e.class.Defaults {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

// evalBuiltins normalizes the built-in properties the way the runtime
// parses them: booleans become "true"/"false", the interval limit an
// integer, and unparseable values fall back to the default.
func (e *executive) evalBuiltins(logger *slog.Logger) {
	upper, lower := "false", "true"
	if e.class.RunningAggregate {
		upper, lower = "true", "false"
	}
	e.builtins = map[string]string{
		PropAggUpperBoundClosed: e.boolProp(PropAggUpperBoundClosed, upper),
		PropAggLowerBoundClosed: e.boolProp(PropAggLowerBoundClosed, lower),
		PropAggregateTimeZone:   "UTC",
		PropNoAggregateFill:     e.boolProp(PropNoAggregateFill, "false"),
		PropInterpDeltas:        e.boolProp(PropInterpDeltas, "false"),
		PropMaxInterpIntervals:  "10",
	}
	if v, ok := e.raw(PropAggregateTimeZone); ok && strings.TrimSpace(v) != "" {
		e.builtins[PropAggregateTimeZone] = strings.TrimSpace(v)
	}
	if v, ok := e.raw(PropAggPeriodInterval); ok {
		e.builtins[PropAggPeriodInterval] = v
	}
	if v, ok := e.raw(PropMaxInterpIntervals); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			logger.Warn("bad property value ignored",
				"comp_id", e.comp.ID, "property", PropMaxInterpIntervals, "value", v)
		} else {
			e.builtins[PropMaxInterpIntervals] = strconv.Itoa(n)
		}
	}
}

func (e *executive) boolProp(name, def string) string {
	v, ok := e.raw(name)
	if !ok {
		return def
	}
	return strconv.FormatBool(parseBool(v))
}

// parseBool accepts the spellings operators use in property sheets.
// Anything unrecognized is false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "on", "1":
		return true
	}
	return false
}
