package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/compgroup/internal/ir"
)

// rowQuerier is satisfied by *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const selectTimeSeries = `
	SELECT t.ts_id, st.site_name, t.data_type, t.interval, t.table_selector, t.model_id
	FROM time_series t
	JOIN site st ON st.site_id = t.site_id
`

// ListTimeSeries returns every stored time series ordered by id.
func (s *Store) ListTimeSeries(ctx context.Context) ([]ir.TSID, error) {
	return s.queryTimeSeries(ctx, selectTimeSeries+` ORDER BY t.ts_id ASC`)
}

// GetTimeSeries loads a time series by id.
func (s *Store) GetTimeSeries(ctx context.Context, key ir.Key) (ir.TSID, error) {
	t, err := scanTimeSeries(s.db.QueryRowContext(ctx, selectTimeSeries+` WHERE t.ts_id = ?`, int64(key)))
	if err != nil {
		return ir.TSID{}, fmt.Errorf("read time series %d: %w", key, notFound(err))
	}
	return t, nil
}

// LookupTimeSeries finds the stored series with the given identity.
// Returns ir.ErrNotFound (wrapped) if there is none.
func (s *Store) LookupTimeSeries(ctx context.Context, id ir.Identity) (ir.TSID, error) {
	return lookupTimeSeries(ctx, s.db, id)
}

func lookupTimeSeries(ctx context.Context, q rowQuerier, id ir.Identity) (ir.TSID, error) {
	id = normalizeIdentity(id)
	t, err := scanTimeSeries(q.QueryRowContext(ctx, selectTimeSeries+`
		WHERE st.site_name = ? AND t.data_type = ? AND t.interval = ? AND t.table_selector = ? AND t.model_id = ?
	`, id.Site, id.DataType, id.Interval, id.TableSelector, id.ModelID))
	if err != nil {
		return ir.TSID{}, fmt.Errorf("lookup time series %s: %w", ir.TSID{Identity: id}, notFound(err))
	}
	return t, nil
}

// CreateTimeSeries stores a new time series, or returns the existing one
// with the same identity. Every identifying field except ModelID must be
// set and the site must already exist; otherwise ir.ErrBadTimeSeries is
// returned (wrapped).
func (s *Store) CreateTimeSeries(ctx context.Context, id ir.Identity) (ir.TSID, error) {
	id = normalizeIdentity(id)
	label := ir.TSID{Identity: id}.String()
	if id.Site == "" || id.DataType == "" || id.Interval == "" || id.TableSelector == "" {
		return ir.TSID{}, fmt.Errorf("create time series %s: %w: incomplete identity", label, ir.ErrBadTimeSeries)
	}

	var siteID int64
	err := s.db.QueryRowContext(ctx, `SELECT site_id FROM site WHERE site_name = ?`, id.Site).Scan(&siteID)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.TSID{}, fmt.Errorf("create time series %s: %w: unknown site %q", label, ir.ErrBadTimeSeries, id.Site)
	}
	if err != nil {
		return ir.TSID{}, fmt.Errorf("create time series %s: %w", label, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO time_series (site_id, data_type, interval, table_selector, model_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, siteID, id.DataType, id.Interval, id.TableSelector, id.ModelID)
	if err != nil {
		return ir.TSID{}, fmt.Errorf("create time series %s: %w", label, err)
	}
	return s.LookupTimeSeries(ctx, id)
}

func (s *Store) queryTimeSeries(ctx context.Context, query string, args ...any) ([]ir.TSID, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query time series: %w", err)
	}
	defer rows.Close()

	out := []ir.TSID{}
	for rows.Next() {
		t, err := scanTimeSeries(rows)
		if err != nil {
			return nil, fmt.Errorf("scan time series: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate time series: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTimeSeries(row scanner) (ir.TSID, error) {
	var t ir.TSID
	err := row.Scan(&t.Key, &t.Site, &t.DataType, &t.Interval, &t.TableSelector, &t.ModelID)
	return t, err
}

// normalizeIdentity applies NFC so that lookups match what UniqueString
// compares.
func normalizeIdentity(id ir.Identity) ir.Identity {
	id.Site = norm.NFC.String(id.Site)
	id.DataType = norm.NFC.String(id.DataType)
	id.Interval = norm.NFC.String(id.Interval)
	id.TableSelector = norm.NFC.String(id.TableSelector)
	return id
}
