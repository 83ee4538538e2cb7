package algo

import "sync"

// Built-in aggregate and interpolation properties every executive evaluates,
// whether or not the algorithm declares them.
const (
	PropAggUpperBoundClosed = "aggUpperBoundClosed"
	PropAggLowerBoundClosed = "aggLowerBoundClosed"
	PropAggregateTimeZone   = "aggregateTimeZone"
	PropNoAggregateFill     = "noAggregateFill"
	PropAggPeriodInterval   = "aggPeriodInterval"
	PropInterpDeltas        = "interpDeltas"
	PropMaxInterpIntervals  = "maxInterpIntervals"
)

// BuiltinPropertyNames lists the built-in properties in evaluation order.
var BuiltinPropertyNames = []string{
	PropAggUpperBoundClosed,
	PropAggLowerBoundClosed,
	PropAggregateTimeZone,
	PropNoAggregateFill,
	PropAggPeriodInterval,
	PropInterpDeltas,
	PropMaxInterpIntervals,
}

// Class describes an executable algorithm implementation.
type Class struct {
	// Name is the executable class name stored on the algorithm.
	Name string

	// PropNames are the properties the implementation reads.
	PropNames []string

	// Defaults apply when neither the computation nor the algorithm sets
	// a property.
	Defaults map[string]string

	// RunningAggregate flips the default bound closure: running
	// aggregates include the end of the period and exclude the start.
	RunningAggregate bool
}

// Registry maps executable class names to implementations.
// Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	classes map[string]Class
}

// NewRegistry returns a registry holding classes.
func NewRegistry(classes ...Class) *Registry {
	r := &Registry{classes: make(map[string]Class, len(classes))}
	for _, c := range classes {
		r.classes[c.Name] = c
	}
	return r
}

// Register adds or replaces a class.
func (r *Registry) Register(c Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[c.Name] = c
}

// Lookup returns the class registered under name.
func (r *Registry) Lookup(name string) (Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.classes[name]
	return c, ok
}

// DefaultRegistry returns the classes of the stock algorithm library.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Class{Name: "decodes.tsdb.algo.CopyAlgorithm", PropNames: []string{"multiplier", "offset"},
			Defaults: map[string]string{"multiplier": "1.0", "offset": "0.0"}},
		Class{Name: "decodes.tsdb.algo.AddToPrevious"},
		Class{Name: "decodes.tsdb.algo.AverageAlgorithm", PropNames: []string{"minSamplesNeeded", "negativeReplacement"},
			Defaults: map[string]string{"minSamplesNeeded": "1"}},
		Class{Name: "decodes.tsdb.algo.RunningAverageAlgorithm", PropNames: []string{"minSamplesNeeded", "outputFutureData"},
			Defaults: map[string]string{"minSamplesNeeded": "1", "outputFutureData": "false"}, RunningAggregate: true},
		Class{Name: "decodes.tsdb.algo.SubSample"},
		Class{Name: "decodes.tsdb.algo.Resample", PropNames: []string{"method"},
			Defaults: map[string]string{"method": "interp"}},
		Class{Name: "decodes.tsdb.algo.ScalerAdder", PropNames: []string{"coeff1", "coeff2", "coeff3", "constant"},
			Defaults: map[string]string{"coeff1": "1.0", "coeff2": "1.0", "coeff3": "1.0", "constant": "0.0"}},
		Class{Name: "decodes.tsdb.algo.DisAggregate", PropNames: []string{"method"},
			Defaults: map[string]string{"method": "fill"}},
		Class{Name: "decodes.tsdb.algo.UsgsEquation", PropNames: []string{"A", "B", "C"},
			Defaults: map[string]string{"A": "1.0", "B": "0.0", "C": "1.0"}},
		Class{Name: "decodes.hdb.algo.FlowToVolumeAlg"},
		Class{Name: "decodes.hdb.algo.InflowBasicAlg"},
	)
}
