package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/compgroup/internal/ir"
)

// WriteSite inserts a site or updates the description of an existing one.
// Site names compare case-insensitively. Returns the site id.
func (s *Store) WriteSite(ctx context.Context, name, description string) (ir.Key, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO site (site_name, description) VALUES (?, ?)
		ON CONFLICT(site_name) DO UPDATE SET description = excluded.description
		RETURNING site_id
	`, name, description).Scan(&id)
	if err != nil {
		return ir.NoKey, fmt.Errorf("write site %q: %w", name, err)
	}
	return ir.Key(id), nil
}

// WriteAlgorithm inserts or replaces an algorithm, keyed by name.
// On success alg.ID holds the algorithm id.
func (s *Store) WriteAlgorithm(ctx context.Context, alg *ir.Algorithm) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write algorithm: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO cp_algorithm (algorithm_name, exec_class, cmmnt) VALUES (?, ?, ?)
		ON CONFLICT(algorithm_name) DO UPDATE SET exec_class = excluded.exec_class, cmmnt = excluded.cmmnt
		RETURNING algorithm_id
	`, alg.Name, alg.ExecClass, alg.Comment).Scan(&id)
	if err != nil {
		return fmt.Errorf("write algorithm %q: %w", alg.Name, err)
	}

	for _, table := range []string{"cp_algo_ts_parm", "cp_algo_prop_spec", "cp_algo_property"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE algorithm_id = ?", id); err != nil {
			return fmt.Errorf("write algorithm %q: clear %s: %w", alg.Name, table, err)
		}
	}

	for i, p := range alg.Parms {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cp_algo_ts_parm (algorithm_id, seq, role_name, parm_type) VALUES (?, ?, ?, ?)
		`, id, i, p.RoleName, string(p.Direction))
		if err != nil {
			return fmt.Errorf("write algorithm %q: parm %q: %w", alg.Name, p.RoleName, err)
		}
	}
	for i, name := range alg.PropNames {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cp_algo_prop_spec (algorithm_id, seq, prop_name) VALUES (?, ?, ?)
		`, id, i, name)
		if err != nil {
			return fmt.Errorf("write algorithm %q: prop spec %q: %w", alg.Name, name, err)
		}
	}
	for name, value := range alg.Props {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cp_algo_property (algorithm_id, prop_name, prop_value) VALUES (?, ?, ?)
		`, id, name, value)
		if err != nil {
			return fmt.Errorf("write algorithm %q: property %q: %w", alg.Name, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write algorithm %q: commit: %w", alg.Name, err)
	}
	alg.ID = ir.Key(id)
	return nil
}

// WriteComputation inserts or updates a computation together with its
// parameters and properties. A computation with NoKey is inserted and
// receives a new id; otherwise the row with that id is replaced (or
// created with that id).
//
// Parameters and properties are rewritten in full.
func (s *Store) WriteComputation(ctx context.Context, comp *ir.Computation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write computation: begin tx: %w", err)
	}
	defer tx.Rollback()

	groupID := nullKey(comp.GroupID)
	var id int64
	if comp.ID.IsNull() {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO cp_computation (computation_name, algorithm_id, enabled, group_id, cmmnt)
			VALUES (?, ?, ?, ?, ?)
			RETURNING computation_id
		`, comp.Name, int64(comp.AlgorithmID), comp.Enabled, groupID, comp.Comment).Scan(&id)
	} else {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO cp_computation (computation_id, computation_name, algorithm_id, enabled, group_id, cmmnt)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(computation_id) DO UPDATE SET
				computation_name = excluded.computation_name,
				algorithm_id = excluded.algorithm_id,
				enabled = excluded.enabled,
				group_id = excluded.group_id,
				cmmnt = excluded.cmmnt
			RETURNING computation_id
		`, int64(comp.ID), comp.Name, int64(comp.AlgorithmID), comp.Enabled, groupID, comp.Comment).Scan(&id)
	}
	if err != nil {
		return fmt.Errorf("write computation %q: %w", comp.Name, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cp_comp_ts_parm WHERE computation_id = ?`, id); err != nil {
		return fmt.Errorf("write computation %q: clear parms: %w", comp.Name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM cp_comp_property WHERE computation_id = ?`, id); err != nil {
		return fmt.Errorf("write computation %q: clear properties: %w", comp.Name, err)
	}

	for i, p := range comp.Parms {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cp_comp_ts_parm
			(computation_id, seq, role_name, parm_type, site_name, data_type, interval, table_selector, model_id, ts_id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, i, p.RoleName, string(p.Direction),
			p.Site, p.DataType, p.Interval, p.TableSelector, p.ModelID, nullKey(p.TSKey))
		if err != nil {
			return fmt.Errorf("write computation %q: parm %q: %w", comp.Name, p.RoleName, err)
		}
	}
	for name, value := range comp.Props {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cp_comp_property (computation_id, prop_name, prop_value) VALUES (?, ?, ?)
		`, id, name, value)
		if err != nil {
			return fmt.Errorf("write computation %q: property %q: %w", comp.Name, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write computation %q: commit: %w", comp.Name, err)
	}
	comp.ID = ir.Key(id)
	return nil
}

// DeleteComputation removes a computation with its parameters and
// properties. Returns ir.ErrReferentialConflict (wrapped) if derived data
// still references the computation, and ir.ErrNotFound if no such
// computation exists. Nothing is removed on error.
func (s *Store) DeleteComputation(ctx context.Context, id ir.Key) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cp_computation WHERE computation_id = ?`, int64(id))
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("delete computation %d: %w: %v", id, ir.ErrReferentialConflict, err)
		}
		return fmt.Errorf("delete computation %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete computation %d: rows affected: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete computation %d: %w", id, ir.ErrNotFound)
	}
	return nil
}

// WriteGroup inserts or replaces a group, its explicit members, criteria
// and subgroup operands. A group with NoKey is matched by name; a new row
// is created if the name is unused. On success g.ID holds the group id.
//
// Every operand's group must already be stored (non-null ID). Members
// without a Key are looked up by identity and must exist.
func (s *Store) WriteGroup(ctx context.Context, g *ir.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write group: begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	if g.ID.IsNull() {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO tsdb_group (group_name, group_type, description) VALUES (?, ?, ?)
			ON CONFLICT(group_name) DO UPDATE SET
				group_type = excluded.group_type,
				description = excluded.description
			RETURNING group_id
		`, g.Name, g.Type, g.Description).Scan(&id)
	} else {
		err = tx.QueryRowContext(ctx, `
			INSERT INTO tsdb_group (group_id, group_name, group_type, description) VALUES (?, ?, ?, ?)
			ON CONFLICT(group_id) DO UPDATE SET
				group_name = excluded.group_name,
				group_type = excluded.group_type,
				description = excluded.description
			RETURNING group_id
		`, int64(g.ID), g.Name, g.Type, g.Description).Scan(&id)
	}
	if err != nil {
		return fmt.Errorf("write group %q: %w", g.Name, err)
	}

	for _, table := range []string{"tsdb_group_member_ts", "tsdb_group_criteria"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE group_id = ?", id); err != nil {
			return fmt.Errorf("write group %q: clear %s: %w", g.Name, table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tsdb_group_member_group WHERE parent_group_id = ?`, id); err != nil {
		return fmt.Errorf("write group %q: clear subgroups: %w", g.Name, err)
	}

	for i, m := range g.Members {
		tsKey := m.Key
		if tsKey.IsNull() {
			found, err := lookupTimeSeries(ctx, tx, m.Identity)
			if err != nil {
				return fmt.Errorf("write group %q: member %s: %w", g.Name, m, err)
			}
			tsKey = found.Key
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tsdb_group_member_ts (group_id, seq, ts_id) VALUES (?, ?, ?)
			ON CONFLICT DO NOTHING
		`, id, i, int64(tsKey))
		if err != nil {
			return fmt.Errorf("write group %q: member %s: %w", g.Name, m, err)
		}
	}

	criteria := []struct {
		attr   string
		values []string
	}{
		{"site", g.Criteria.Sites},
		{"data_type", g.Criteria.DataTypes},
		{"interval", g.Criteria.Intervals},
	}
	for _, c := range criteria {
		for _, v := range c.values {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO tsdb_group_criteria (group_id, attr, value) VALUES (?, ?, ?)
				ON CONFLICT DO NOTHING
			`, id, c.attr, v)
			if err != nil {
				return fmt.Errorf("write group %q: criteria %s=%q: %w", g.Name, c.attr, v, err)
			}
		}
	}

	for i, op := range g.Operands {
		if op.Group == nil || op.Group.ID.IsNull() {
			return fmt.Errorf("write group %q: subgroup %d has not been stored", g.Name, i)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tsdb_group_member_group (parent_group_id, seq, child_group_id, include_group)
			VALUES (?, ?, ?, ?)
		`, id, i, int64(op.Group.ID), op.Op.Code())
		if err != nil {
			return fmt.Errorf("write group %q: subgroup %q: %w", g.Name, op.Group.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write group %q: commit: %w", g.Name, err)
	}
	g.ID = ir.Key(id)
	return nil
}

// RecordDerivedData notes that comp produced samples for the time series.
// While such a record exists the computation cannot be deleted.
func (s *Store) RecordDerivedData(ctx context.Context, tsKey, compID ir.Key, samples int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ts_derived_data (ts_id, computation_id, sample_count) VALUES (?, ?, ?)
		ON CONFLICT(ts_id, computation_id) DO UPDATE SET sample_count = sample_count + excluded.sample_count
	`, int64(tsKey), int64(compID), samples)
	if err != nil {
		return fmt.Errorf("record derived data: %w", err)
	}
	return nil
}

// nullKey converts NoKey to SQL NULL.
func nullKey(k ir.Key) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(k), Valid: !k.IsNull()}
}
