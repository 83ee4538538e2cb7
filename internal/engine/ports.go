package engine

import (
	"context"

	"github.com/roach88/compgroup/internal/algo"
	"github.com/roach88/compgroup/internal/ir"
)

// ComputationStore reads and writes computations.
type ComputationStore interface {
	ListComputationNames(ctx context.Context) ([]string, error)
	GetComputationByName(ctx context.Context, name string) (*ir.Computation, error)
	WriteComputation(ctx context.Context, comp *ir.Computation) error

	// DeleteComputation returns ir.ErrReferentialConflict (wrapped) when
	// stored data still depends on the computation.
	DeleteComputation(ctx context.Context, id ir.Key) error
}

// GroupStore reads and writes groups.
type GroupStore interface {
	ListGroups(ctx context.Context) ([]*ir.Group, error)
	WriteGroup(ctx context.Context, g *ir.Group) error
}

// TimeSeriesStore resolves time series identifiers.
type TimeSeriesStore interface {
	ListTimeSeries(ctx context.Context) ([]ir.TSID, error)

	// TransformTSID returns ir.ErrNotFound (wrapped) when the transformed
	// series does not exist and createIfMissing is false, and
	// ir.ErrBadTimeSeries when it cannot be created.
	TransformTSID(ctx context.Context, tsid ir.TSID, parm *ir.Parameter, createIfMissing, fill bool) (ir.TSID, error)
}

// AlgorithmStore lists algorithms.
type AlgorithmStore interface {
	ListAlgorithms(ctx context.Context) ([]*ir.Algorithm, error)
}

// Store is everything the engine needs from the metadata store.
type Store interface {
	ComputationStore
	GroupStore
	TimeSeriesStore
	AlgorithmStore
}

// Preparer builds an executive for a computation.
type Preparer interface {
	Prepare(ctx context.Context, comp *ir.Computation) (algo.Executive, error)
}

// Archiver writes computations and the algorithms they use to path.
type Archiver interface {
	Export(ctx context.Context, path string, comps []*ir.Computation, algs []*ir.Algorithm) error
}
