package engine

import (
	"github.com/roach88/compgroup/internal/ir"
)

// ExclusionTracker records which group computations excluded which time
// series during one run.
//
// Each group computation is reconciled independently, so the same series
// can be carved out of two group computations. The tracker does not change
// that outcome; it lets the engine report the overlap so an operator can
// review it.
type ExclusionTracker struct {
	history map[string][]ir.Key // unique string -> group computation ids
}

// NewExclusionTracker creates an empty tracker.
func NewExclusionTracker() *ExclusionTracker {
	return &ExclusionTracker{history: make(map[string][]ir.Key)}
}

// Record notes that compID excluded tsid and returns the other group
// computations that excluded it earlier in the run.
func (t *ExclusionTracker) Record(compID ir.Key, tsid ir.TSID) []ir.Key {
	key := tsid.UniqueString()
	var others []ir.Key
	seen := false
	for _, id := range t.history[key] {
		if id == compID {
			seen = true
			continue
		}
		others = append(others, id)
	}
	if !seen {
		t.history[key] = append(t.history[key], compID)
	}
	return others
}

// Size returns the number of distinct excluded series.
func (t *ExclusionTracker) Size() int {
	return len(t.history)
}
