package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestOpen_ReopenKeepsSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hdb.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d: %v", i, err)
		}
		s.Close()
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file: %v", err)
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open(): %v", err)
	}
	defer s.Close()

	for _, table := range []string{
		"tsdb_properties", "site", "time_series",
		"cp_algorithm", "cp_algo_ts_parm", "cp_algo_prop_spec", "cp_algo_property",
		"tsdb_group", "tsdb_group_member_ts", "tsdb_group_criteria", "tsdb_group_member_group",
		"cp_computation", "cp_comp_ts_parm", "cp_comp_property", "ts_derived_data",
	} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q missing after reopen: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/hdb.db")
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
	if !strings.Contains(err.Error(), "open store") {
		t.Errorf("error %q does not name the operation", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	want := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1", // NORMAL
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, value := range want {
		got, err := s.pragma(name)
		if err != nil {
			t.Fatal(err)
		}
		if got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
}

// Schema tests

func TestSchema_ComputationParmColumns(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "cp_comp_ts_parm")
	expected := []string{
		"computation_id", "seq", "role_name", "parm_type",
		"site_name", "data_type", "interval", "table_selector", "model_id", "ts_id",
	}
	for _, col := range expected {
		if !slices.Contains(columns, col) {
			t.Errorf("cp_comp_ts_parm table missing column %q", col)
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	if !slices.Contains(getTableIndexes(t, s.db, "cp_computation"), "idx_comp_group") {
		t.Error("cp_computation table missing index idx_comp_group")
	}
	if !slices.Contains(getTableIndexes(t, s.db, "ts_derived_data"), "idx_derived_comp") {
		t.Error("ts_derived_data table missing index idx_derived_comp")
	}
}

func TestConstraint_DerivedDataBlocksComputationDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	comp := seedSingle(t, s, "C1", "TESTSITE1.Stage.15Minutes.raw", "TESTSITE1.Flow.15Minutes.rev")

	if err := s.RecordDerivedData(ctx, comp.Parms[1].TSKey, comp.ID, 4); err != nil {
		t.Fatalf("RecordDerivedData() failed: %v", err)
	}

	_, err := s.db.Exec(`DELETE FROM cp_computation WHERE computation_id = ?`, int64(comp.ID))
	if err == nil {
		t.Fatal("expected foreign key error deleting a computation with derived data")
	}
	if !isForeignKeyViolation(err) {
		t.Errorf("isForeignKeyViolation(%v) = false, want true", err)
	}
}

// Database type tests

func TestDatabaseType_DefaultsToHDB(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	typ, err := s.DatabaseType(ctx)
	if err != nil {
		t.Fatalf("DatabaseType() failed: %v", err)
	}
	if typ != DatabaseTypeHDB {
		t.Errorf("DatabaseType() = %q, want %q", typ, DatabaseTypeHDB)
	}

	ok, err := s.SupportsGroupComputations(ctx)
	if err != nil {
		t.Fatalf("SupportsGroupComputations() failed: %v", err)
	}
	if !ok {
		t.Error("SupportsGroupComputations() = false for hdb")
	}
}

func TestDatabaseType_OtherTypeUnsupported(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.SetDatabaseType(ctx, "opentsdb"); err != nil {
		t.Fatalf("SetDatabaseType() failed: %v", err)
	}
	ok, err := s.SupportsGroupComputations(ctx)
	if err != nil {
		t.Fatalf("SupportsGroupComputations() failed: %v", err)
	}
	if ok {
		t.Error("SupportsGroupComputations() = true for opentsdb")
	}

	// Reopening must not reset the recorded type.
	path := filepath.Join(t.TempDir(), "typed.db")
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := s1.SetDatabaseType(ctx, "cwms"); err != nil {
		t.Fatalf("SetDatabaseType() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()
	typ, err := s2.DatabaseType(ctx)
	if err != nil {
		t.Fatalf("DatabaseType() failed: %v", err)
	}
	if typ != "cwms" {
		t.Errorf("DatabaseType() after reopen = %q, want cwms", typ)
	}
}

// Migration tests

func TestMigration_SchemaVersion(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	// Simulate a database created before the derived-data index existed.
	if _, err := db.Exec("DROP INDEX idx_derived_comp"); err != nil {
		t.Fatalf("failed to drop index: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}
	if !slices.Contains(getTableIndexes(t, s.db, "ts_derived_data"), "idx_derived_comp") {
		t.Error("expected idx_derived_comp after migration")
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
