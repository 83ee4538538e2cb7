package fixture

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/compgroup/internal/ir"
)

// Store is what Seed writes to.
type Store interface {
	SetDatabaseType(ctx context.Context, t string) error
	WriteSite(ctx context.Context, name, description string) (ir.Key, error)
	CreateTimeSeries(ctx context.Context, id ir.Identity) (ir.TSID, error)
	LookupTimeSeries(ctx context.Context, id ir.Identity) (ir.TSID, error)
	WriteAlgorithm(ctx context.Context, alg *ir.Algorithm) error
	WriteGroup(ctx context.Context, g *ir.Group) error
	WriteComputation(ctx context.Context, comp *ir.Computation) error
	RecordDerivedData(ctx context.Context, tsKey, compID ir.Key, samples int64) error
}

// Seeded reports what Seed wrote, by name.
type Seeded struct {
	Series       []ir.TSID
	Algorithms   map[string]*ir.Algorithm
	Groups       map[string]*ir.Group
	Computations map[string]*ir.Computation
}

// Seed writes fx to st. Series named by groups, computations and derived
// records are created along with the declared ones. Groups are written
// twice, first without operands, so operands may refer to groups in any
// order.
func Seed(ctx context.Context, st Store, fx *Fixture, logger *slog.Logger) (*Seeded, error) {
	if logger == nil {
		logger = slog.Default()
	}
	out := &Seeded{
		Algorithms:   map[string]*ir.Algorithm{},
		Groups:       map[string]*ir.Group{},
		Computations: map[string]*ir.Computation{},
	}

	if fx.DBType != "" {
		if err := st.SetDatabaseType(ctx, fx.DBType); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(fx.Sites)) {
		if _, err := st.WriteSite(ctx, name, fx.Sites[name].Description); err != nil {
			return nil, fmt.Errorf("seed site %q: %w", name, err)
		}
	}

	seen := map[string]bool{}
	series := func(unique string) (ir.TSID, error) {
		t, err := ir.ParseTSID(unique)
		if err != nil {
			return ir.TSID{}, err
		}
		if _, err := st.WriteSite(ctx, t.Site, ""); err != nil {
			return ir.TSID{}, err
		}
		stored, err := st.CreateTimeSeries(ctx, t.Identity)
		if err != nil {
			return ir.TSID{}, err
		}
		if key := stored.UniqueString(); !seen[key] {
			seen[key] = true
			out.Series = append(out.Series, stored)
		}
		return stored, nil
	}
	for _, u := range fx.Series {
		if _, err := series(u); err != nil {
			return nil, fmt.Errorf("seed series %q: %w", u, err)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(fx.Algorithms)) {
		a := fx.Algorithms[name]
		alg := &ir.Algorithm{
			Name:      name,
			ExecClass: a.ExecClass,
			Comment:   a.Comment,
			PropNames: a.PropNames,
			Props:     a.Props,
		}
		for _, p := range a.Parms {
			alg.Parms = append(alg.Parms, ir.AlgoParm{RoleName: p.Role, Direction: ir.Direction(p.Type)})
		}
		if err := st.WriteAlgorithm(ctx, alg); err != nil {
			return nil, fmt.Errorf("seed algorithm %q: %w", name, err)
		}
		out.Algorithms[name] = alg
	}

	groupNames := slices.Sorted(maps.Keys(fx.Groups))
	for _, name := range groupNames {
		g := fx.Groups[name]
		group := &ir.Group{
			Name:        name,
			Type:        g.Type,
			Description: g.Description,
			Criteria: ir.Criteria{
				Sites:     g.Criteria.Sites,
				DataTypes: g.Criteria.DataTypes,
				Intervals: g.Criteria.Intervals,
			},
		}
		for _, u := range g.Members {
			t, err := series(u)
			if err != nil {
				return nil, fmt.Errorf("seed group %q member %q: %w", name, u, err)
			}
			group.AddMember(t)
		}
		if err := st.WriteGroup(ctx, group); err != nil {
			return nil, fmt.Errorf("seed group %q: %w", name, err)
		}
		out.Groups[name] = group
	}
	for _, name := range groupNames {
		g := fx.Groups[name]
		if len(g.Operands) == 0 {
			continue
		}
		group := out.Groups[name]
		for _, op := range g.Operands {
			setOp, err := ir.ParseSetOp(op.Op)
			if err != nil {
				return nil, fmt.Errorf("seed group %q: %w", name, err)
			}
			group.AddOperand(setOp, out.Groups[op.Group])
		}
		if err := st.WriteGroup(ctx, group); err != nil {
			return nil, fmt.Errorf("seed group %q: %w", name, err)
		}
	}

	for _, name := range computationOrder(fx.Computations) {
		c := fx.Computations[name]
		alg := out.Algorithms[c.Algorithm]
		comp := &ir.Computation{
			ID:            ir.Key(c.ID),
			Name:          name,
			Comment:       c.Comment,
			AlgorithmID:   alg.ID,
			AlgorithmName: alg.Name,
			Enabled:       c.Enabled,
			Props:         c.Props,
		}
		if c.Group != "" {
			g := out.Groups[c.Group]
			comp.GroupID, comp.GroupName = g.ID, g.Name
		}
		for _, role := range alg.Parms {
			id, ok := c.Parms[role.RoleName]
			if !ok {
				continue
			}
			p := &ir.Parameter{RoleName: role.RoleName, Direction: role.Direction}
			if id.TSID != "" {
				t, err := series(id.TSID)
				if err != nil {
					return nil, fmt.Errorf("seed computation %q role %q: %w", name, role.RoleName, err)
				}
				p.Identity, p.TSKey = t.Identity, t.Key
			} else {
				p.Identity = ir.Identity{
					Site:          id.Site,
					DataType:      id.DataType,
					Interval:      id.Interval,
					TableSelector: id.TableSelector,
					ModelID:       id.ModelID,
				}
				if t, err := st.LookupTimeSeries(ctx, p.Identity); err == nil {
					p.Identity, p.TSKey = t.Identity, t.Key
				}
			}
			comp.Parms = append(comp.Parms, p)
		}
		if err := st.WriteComputation(ctx, comp); err != nil {
			return nil, fmt.Errorf("seed computation %q: %w", name, err)
		}
		out.Computations[name] = comp
	}

	for _, d := range fx.Derived {
		t, err := series(d.TSID)
		if err != nil {
			return nil, fmt.Errorf("seed derived data for %q: %w", d.Computation, err)
		}
		comp := out.Computations[d.Computation]
		if err := st.RecordDerivedData(ctx, t.Key, comp.ID, d.Samples); err != nil {
			return nil, fmt.Errorf("seed derived data for %q: %w", d.Computation, err)
		}
	}

	logger.Info("fixture seeded",
		"series", len(out.Series),
		"algorithms", len(out.Algorithms),
		"groups", len(out.Groups),
		"computations", len(out.Computations),
		"derived", len(fx.Derived))
	return out, nil
}

// computationOrder puts computations with explicit ids first, by id, then
// the rest by name.
func computationOrder(comps map[string]Computation) []string {
	names := slices.Collect(maps.Keys(comps))
	slices.SortFunc(names, func(a, b string) int {
		ia, ib := comps[a].ID, comps[b].ID
		switch {
		case ia != 0 && ib != 0:
			return cmp.Compare(ia, ib)
		case ia != 0:
			return -1
		case ib != 0:
			return 1
		}
		return cmp.Compare(a, b)
	})
	return names
}
