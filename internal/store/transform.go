package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/compgroup/internal/ir"
)

// TransformTSID maps tsid through a computation parameter: every field set
// on parm replaces the corresponding field of tsid, unset fields are
// inherited. The resulting series is looked up; when it does not exist it
// is created if createIfMissing is true, otherwise ir.ErrNotFound is
// returned (wrapped).
//
// If fill is true, parm is updated in place with the resolved identity and
// TSKey.
func (s *Store) TransformTSID(ctx context.Context, tsid ir.TSID, parm *ir.Parameter, createIfMissing, fill bool) (ir.TSID, error) {
	target := parm.Identity.Overlay(tsid.Identity)

	out, err := s.LookupTimeSeries(ctx, target)
	if errors.Is(err, ir.ErrNotFound) && createIfMissing {
		out, err = s.CreateTimeSeries(ctx, target)
	}
	if err != nil {
		return ir.TSID{}, fmt.Errorf("transform %s by role %q: %w", tsid, parm.RoleName, err)
	}

	if fill {
		parm.Identity = out.Identity
		parm.TSKey = out.Key
	}
	return out, nil
}
