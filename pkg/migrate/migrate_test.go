package migrate

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

var testMigrations = fstest.MapFS{
	"schema/001_create_datasets.up.sql":   {Data: []byte(`CREATE TABLE datasets (name TEXT PRIMARY KEY);`)},
	"schema/001_create_datasets.down.sql": {Data: []byte(`DROP TABLE datasets;`)},
	"schema/002_add_kind.up.sql":          {Data: []byte(`ALTER TABLE datasets ADD COLUMN kind TEXT;`)},
	"schema/002_add_kind.down.sql":        {Data: []byte(`CREATE TABLE datasets_old (name TEXT PRIMARY KEY); DROP TABLE datasets; ALTER TABLE datasets_old RENAME TO datasets;`)},
	"schema/README.md":                    {Data: []byte(`not a migration`)},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestMigrator(t *testing.T) *Migrator {
	return NewMigrator(openDB(t), NewFSProvider(testMigrations, "schema", "", DriverSQLite))
}

func TestGetMigrations(t *testing.T) {
	migrations, err := NewFSProvider(testMigrations, "schema", "", DriverSQLite).GetMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 2 {
		t.Fatalf("got %d migrations, expected 2", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "create datasets" {
		t.Errorf("first migration = %d %q", migrations[0].Version, migrations[0].Name)
	}
	if migrations[1].Up == "" || migrations[1].Down == "" {
		t.Error("second migration is missing up or down SQL")
	}
}

func TestPlan(t *testing.T) {
	ctx := context.Background()
	m := newTestMigrator(t)

	steps, err := m.Plan(Latest)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || !steps[0].Up || steps[0].Version != 1 || steps[1].Version != 2 {
		t.Errorf("Plan(Latest) = %v, expected 1 up then 2 up", steps)
	}

	if err := m.Up(ctx); err != nil {
		t.Fatal(err)
	}
	steps, err = m.Plan(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 || steps[0].Up || steps[0].Version != 2 || steps[1].Version != 1 {
		t.Errorf("Plan(0) = %v, expected 2 down then 1 down", steps)
	}

	if _, err := m.Plan(-5); !errors.Is(err, ErrBadTarget) {
		t.Errorf("Plan(-5) error = %v, expected ErrBadTarget", err)
	}
}

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	var applied []string
	m := NewMigrator(db, NewFSProvider(testMigrations, "schema", "", DriverSQLite)).
		WithLogger(func(template string, args ...interface{}) { applied = append(applied, template) })

	if err := m.Up(ctx); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Version(); v != 2 {
		t.Errorf("version = %d, expected 2", v)
	}
	if len(applied) != 2 {
		t.Errorf("logged %d migrations, expected 2", len(applied))
	}
	if _, err := db.Exec(`INSERT INTO datasets (name, kind) VALUES ('dem', 'tiff')`); err != nil {
		t.Fatalf("schema not migrated: %v", err)
	}

	// running again is a no-op
	if err := m.Up(ctx); err != nil {
		t.Fatal(err)
	}

	if err := m.To(ctx, 1); err != nil {
		t.Fatal(err)
	}
	st, err := m.Status()
	if err != nil {
		t.Fatal(err)
	}
	if st.Version != 1 || st.Latest != 2 {
		t.Errorf("Status() = %d/%d, expected 1/2", st.Version, st.Latest)
	}
	if len(st.Pending) != 1 || st.Pending[0].Version != 2 {
		t.Errorf("pending = %+v, expected migration 2", st.Pending)
	}

	if err := m.Down(ctx, 0); err != nil {
		t.Fatal(err)
	}
	if v, _ := m.Version(); v != 0 {
		t.Errorf("version = %d, expected 0", v)
	}
}

func TestDownRejectsHigherTarget(t *testing.T) {
	ctx := context.Background()
	m := newTestMigrator(t)
	if err := m.Up(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Down(ctx, 5); !errors.Is(err, ErrBadTarget) {
		t.Errorf("Down(5) error = %v, expected ErrBadTarget", err)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := newTestMigrator(t)
	if err := m.Up(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Up() error = %v, expected context.Canceled", err)
	}
	if v, _ := m.Version(); v != 0 {
		t.Errorf("version = %d, expected 0 after a canceled run", v)
	}
}
