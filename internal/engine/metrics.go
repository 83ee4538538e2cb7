package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts run outcomes. A nil *Metrics records nothing.
type Metrics struct {
	Processed     *prometheus.CounterVec
	Disposed      *prometheus.CounterVec
	Excluded      prometheus.Counter
	GroupsCreated prometheus.Counter
}

// NewMetrics registers the engine counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Processed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compgroup",
			Name:      "computations_processed_total",
			Help:      "Group computations processed, by outcome.",
		}, []string{"outcome"}),
		Disposed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "compgroup",
			Name:      "singles_disposed_total",
			Help:      "Single computations retired, by action (deleted or disabled).",
		}, []string{"action"}),
		Excluded: f.NewCounter(prometheus.CounterOpts{
			Namespace: "compgroup",
			Name:      "tsids_excluded_total",
			Help:      "Time series carved out of group computations.",
		}),
		GroupsCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: "compgroup",
			Name:      "groups_created_total",
			Help:      "Exclusion and composite groups built.",
		}),
	}
}

func (m *Metrics) observe(res *Result) {
	if m == nil || res == nil {
		return
	}
	m.Processed.WithLabelValues(string(res.Outcome)).Inc()
	if res.Outcome != OutcomeCompleted {
		return
	}
	for _, d := range res.Disposals {
		m.Disposed.WithLabelValues(string(d.Action)).Inc()
	}
	if res.Groups != nil {
		m.Excluded.Add(float64(len(res.Plan.Exclude)))
	}
	m.GroupsCreated.Add(float64(res.GroupsCreated))
}
