package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/compgroup/internal/ir"
)

// Reads never hold a result set open while issuing another query: the
// store keeps a single connection, so nested queries would block.

// ListComputationIDs returns every computation id in ascending order.
func (s *Store) ListComputationIDs(ctx context.Context) ([]ir.Key, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT computation_id FROM cp_computation ORDER BY computation_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query computations: %w", err)
	}
	defer rows.Close()

	ids := []ir.Key{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan computation id: %w", err)
		}
		ids = append(ids, ir.Key(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate computations: %w", err)
	}
	return ids, nil
}

// ListComputationNames returns every computation name ordered by id.
func (s *Store) ListComputationNames(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT computation_name FROM cp_computation ORDER BY computation_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query computation names: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan computation name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate computation names: %w", err)
	}
	return names, nil
}

// ListComputations loads every computation ordered by id.
func (s *Store) ListComputations(ctx context.Context) ([]*ir.Computation, error) {
	ids, err := s.ListComputationIDs(ctx)
	if err != nil {
		return nil, err
	}
	comps := make([]*ir.Computation, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetComputation(ctx, id)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, nil
}

// GetComputation loads one computation with its parameters and properties.
// Returns ir.ErrNotFound (wrapped) if the id is unknown.
//
// A parameter that references a stored time series but carries no site is
// expanded from that series, so callers always see complete identities.
func (s *Store) GetComputation(ctx context.Context, id ir.Key) (*ir.Computation, error) {
	c := &ir.Computation{Props: map[string]string{}}
	var groupID sql.NullInt64
	var groupName sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT c.computation_id, c.computation_name, c.cmmnt, c.algorithm_id, a.algorithm_name,
		       c.enabled, c.group_id, g.group_name
		FROM cp_computation c
		JOIN cp_algorithm a ON a.algorithm_id = c.algorithm_id
		LEFT JOIN tsdb_group g ON g.group_id = c.group_id
		WHERE c.computation_id = ?
	`, int64(id)).Scan(&c.ID, &c.Name, &c.Comment, &c.AlgorithmID, &c.AlgorithmName,
		&c.Enabled, &groupID, &groupName)
	if err != nil {
		return nil, fmt.Errorf("read computation %d: %w", id, notFound(err))
	}
	c.GroupID = ir.Key(groupID.Int64)
	c.GroupName = groupName.String

	parms, err := s.readCompParms(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("read computation %d: %w", id, err)
	}
	c.Parms = parms

	if err := s.readProps(ctx, `SELECT prop_name, prop_value FROM cp_comp_property WHERE computation_id = ?`, c.ID, c.Props); err != nil {
		return nil, fmt.Errorf("read computation %d: %w", id, err)
	}
	return c, nil
}

// GetComputationByName loads a computation by its unique name.
func (s *Store) GetComputationByName(ctx context.Context, name string) (*ir.Computation, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT computation_id FROM cp_computation WHERE computation_name = ?`, name).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("read computation %q: %w", name, notFound(err))
	}
	return s.GetComputation(ctx, ir.Key(id))
}

func (s *Store) readCompParms(ctx context.Context, compID ir.Key) ([]*ir.Parameter, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.role_name, p.parm_type, p.site_name, p.data_type, p.interval, p.table_selector, p.model_id,
		       p.ts_id, COALESCE(st.site_name, ''), COALESCE(t.data_type, ''), COALESCE(t.interval, ''),
		       COALESCE(t.table_selector, ''), COALESCE(t.model_id, 0)
		FROM cp_comp_ts_parm p
		LEFT JOIN time_series t ON t.ts_id = p.ts_id
		LEFT JOIN site st ON st.site_id = t.site_id
		WHERE p.computation_id = ?
		ORDER BY p.seq ASC
	`, int64(compID))
	if err != nil {
		return nil, fmt.Errorf("query parms: %w", err)
	}
	defer rows.Close()

	parms := []*ir.Parameter{}
	for rows.Next() {
		var (
			p      ir.Parameter
			dir    string
			tsID   sql.NullInt64
			stored ir.Identity
		)
		err := rows.Scan(&p.RoleName, &dir, &p.Site, &p.DataType, &p.Interval, &p.TableSelector, &p.ModelID,
			&tsID, &stored.Site, &stored.DataType, &stored.Interval, &stored.TableSelector, &stored.ModelID)
		if err != nil {
			return nil, fmt.Errorf("scan parm: %w", err)
		}
		d, ok := ir.ParseDirection(dir)
		if !ok {
			return nil, fmt.Errorf("parm %q: bad direction %q", p.RoleName, dir)
		}
		p.Direction = d
		if tsID.Valid {
			// The referenced series names the parameter; its site spelling
			// is the canonical one.
			p.TSKey = ir.Key(tsID.Int64)
			p.Identity = stored
		}
		parms = append(parms, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parms: %w", err)
	}
	return parms, nil
}

func (s *Store) readProps(ctx context.Context, query string, owner ir.Key, into map[string]string) error {
	rows, err := s.db.QueryContext(ctx, query, int64(owner))
	if err != nil {
		return fmt.Errorf("query properties: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return fmt.Errorf("scan property: %w", err)
		}
		into[name] = value
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate properties: %w", err)
	}
	return nil
}

// ListAlgorithms loads every algorithm ordered by id.
func (s *Store) ListAlgorithms(ctx context.Context) ([]*ir.Algorithm, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT algorithm_id FROM cp_algorithm ORDER BY algorithm_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query algorithms: %w", err)
	}
	var ids []ir.Key
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan algorithm id: %w", err)
		}
		ids = append(ids, ir.Key(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate algorithms: %w", err)
	}

	algs := make([]*ir.Algorithm, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAlgorithm(ctx, id)
		if err != nil {
			return nil, err
		}
		algs = append(algs, a)
	}
	return algs, nil
}

// GetAlgorithm loads one algorithm with its parameter roles, declared
// property names and default properties.
func (s *Store) GetAlgorithm(ctx context.Context, id ir.Key) (*ir.Algorithm, error) {
	a := &ir.Algorithm{Props: map[string]string{}, PropNames: []string{}, Parms: []ir.AlgoParm{}}
	err := s.db.QueryRowContext(ctx, `
		SELECT algorithm_id, algorithm_name, exec_class, cmmnt FROM cp_algorithm WHERE algorithm_id = ?
	`, int64(id)).Scan(&a.ID, &a.Name, &a.ExecClass, &a.Comment)
	if err != nil {
		return nil, fmt.Errorf("read algorithm %d: %w", id, notFound(err))
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role_name, parm_type FROM cp_algo_ts_parm WHERE algorithm_id = ? ORDER BY seq ASC
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("read algorithm %d: query parms: %w", id, err)
	}
	for rows.Next() {
		var role, dir string
		if err := rows.Scan(&role, &dir); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read algorithm %d: scan parm: %w", id, err)
		}
		d, _ := ir.ParseDirection(dir)
		a.Parms = append(a.Parms, ir.AlgoParm{RoleName: role, Direction: d})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read algorithm %d: iterate parms: %w", id, err)
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT prop_name FROM cp_algo_prop_spec WHERE algorithm_id = ? ORDER BY seq ASC
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("read algorithm %d: query prop specs: %w", id, err)
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read algorithm %d: scan prop spec: %w", id, err)
		}
		a.PropNames = append(a.PropNames, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read algorithm %d: iterate prop specs: %w", id, err)
	}

	if err := s.readProps(ctx, `SELECT prop_name, prop_value FROM cp_algo_property WHERE algorithm_id = ?`, a.ID, a.Props); err != nil {
		return nil, fmt.Errorf("read algorithm %d: %w", id, err)
	}
	return a, nil
}

// GetGroup loads a group and, recursively, every subgroup it references.
// A subgroup referenced more than once is loaded once and shared, so
// cyclic definitions load without looping.
func (s *Store) GetGroup(ctx context.Context, id ir.Key) (*ir.Group, error) {
	return s.loadGroup(ctx, id, map[ir.Key]*ir.Group{})
}

// GetGroupByName loads a group by its unique name.
func (s *Store) GetGroupByName(ctx context.Context, name string) (*ir.Group, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT group_id FROM tsdb_group WHERE group_name = ?`, name).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("read group %q: %w", name, notFound(err))
	}
	return s.GetGroup(ctx, ir.Key(id))
}

// ListGroups loads every group ordered by id. Subgroups are shared
// between the returned groups.
func (s *Store) ListGroups(ctx context.Context) ([]*ir.Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id FROM tsdb_group ORDER BY group_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query groups: %w", err)
	}
	var ids []ir.Key
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group id: %w", err)
		}
		ids = append(ids, ir.Key(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}

	loaded := map[ir.Key]*ir.Group{}
	groups := make([]*ir.Group, 0, len(ids))
	for _, id := range ids {
		g, err := s.loadGroup(ctx, id, loaded)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *Store) loadGroup(ctx context.Context, id ir.Key, loaded map[ir.Key]*ir.Group) (*ir.Group, error) {
	if g, ok := loaded[id]; ok {
		return g, nil
	}

	g := &ir.Group{}
	err := s.db.QueryRowContext(ctx, `
		SELECT group_id, group_name, group_type, description FROM tsdb_group WHERE group_id = ?
	`, int64(id)).Scan(&g.ID, &g.Name, &g.Type, &g.Description)
	if err != nil {
		return nil, fmt.Errorf("read group %d: %w", id, notFound(err))
	}
	// Registered before subgroups are loaded so a cycle resolves to this pointer.
	loaded[id] = g

	members, err := s.queryTimeSeries(ctx, `
		SELECT t.ts_id, st.site_name, t.data_type, t.interval, t.table_selector, t.model_id
		FROM tsdb_group_member_ts m
		JOIN time_series t ON t.ts_id = m.ts_id
		JOIN site st ON st.site_id = t.site_id
		WHERE m.group_id = ?
		ORDER BY m.seq ASC
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("read group %d: %w", id, err)
	}
	g.Members = members

	rows, err := s.db.QueryContext(ctx, `
		SELECT attr, value FROM tsdb_group_criteria WHERE group_id = ? ORDER BY attr ASC, value ASC
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("read group %d: query criteria: %w", id, err)
	}
	for rows.Next() {
		var attr, value string
		if err := rows.Scan(&attr, &value); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read group %d: scan criteria: %w", id, err)
		}
		switch attr {
		case "site":
			g.Criteria.Sites = append(g.Criteria.Sites, value)
		case "data_type":
			g.Criteria.DataTypes = append(g.Criteria.DataTypes, value)
		case "interval":
			g.Criteria.Intervals = append(g.Criteria.Intervals, value)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read group %d: iterate criteria: %w", id, err)
	}

	type subRef struct {
		child ir.Key
		code  string
	}
	var subs []subRef
	rows, err = s.db.QueryContext(ctx, `
		SELECT child_group_id, include_group FROM tsdb_group_member_group
		WHERE parent_group_id = ? ORDER BY seq ASC
	`, int64(id))
	if err != nil {
		return nil, fmt.Errorf("read group %d: query subgroups: %w", id, err)
	}
	for rows.Next() {
		var child int64
		var code string
		if err := rows.Scan(&child, &code); err != nil {
			rows.Close()
			return nil, fmt.Errorf("read group %d: scan subgroup: %w", id, err)
		}
		subs = append(subs, subRef{child: ir.Key(child), code: code})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read group %d: iterate subgroups: %w", id, err)
	}

	for _, ref := range subs {
		op, err := ir.ParseSetOp(ref.code)
		if err != nil {
			return nil, fmt.Errorf("read group %d: %w", id, err)
		}
		sub, err := s.loadGroup(ctx, ref.child, loaded)
		if err != nil {
			return nil, fmt.Errorf("read group %d: %w", id, err)
		}
		g.AddOperand(op, sub)
	}
	return g, nil
}
