// Package migrate applies versioned SQL schema migrations inside
// transactions and records the applied version in a tracking table.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// Latest targets the highest known migration.
const Latest = -1

var ErrBadTarget = errors.New("invalid migration target")

// Migration is one numbered schema change with its rollback
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB is satisfied by both *sql.DB and *sql.Tx
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider supplies migrations and tracks the applied version
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
}

// Logf receives one line per applied migration
type Logf func(template string, args ...interface{})

// Step is a migration applied in one direction
type Step struct {
	Migration
	Up bool
}

func (s Step) sql() string {
	if s.Up {
		return s.Migration.Up
	}
	return s.Migration.Down
}

// version is what the tracking table holds once the step commits
func (s Step) version() int {
	if s.Up {
		return s.Version
	}
	return s.Version - 1
}

func (s Step) String() string {
	dir := "down"
	if s.Up {
		dir = "up"
	}
	return fmt.Sprintf("%d (%s) %s", s.Version, s.Name, dir)
}

// Status reports the applied version and what remains
type Status struct {
	Version int
	Latest  int
	Pending []Migration
}

// Migrator moves a database between schema versions
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logf     Logf
}

func NewMigrator(db *sql.DB, provider MigrationProvider) *Migrator {
	return &Migrator{
		db:       db,
		provider: provider,
		logf:     func(string, ...interface{}) {},
	}
}

// WithLogger sets where applied migrations are reported
func (m *Migrator) WithLogger(logf Logf) *Migrator {
	if logf != nil {
		m.logf = logf
	}
	return m
}

// Up applies every pending migration
func (m *Migrator) Up(ctx context.Context) error {
	return m.To(ctx, Latest)
}

// Down rolls back to target, which must be below the current version
func (m *Migrator) Down(ctx context.Context, target int) error {
	current, err := m.Version()
	if err != nil {
		return err
	}
	if target < 0 || target >= current {
		return fmt.Errorf("%w: %d is not below current version %d", ErrBadTarget, target, current)
	}
	return m.To(ctx, target)
}

// To migrates up or down until target is the applied version
func (m *Migrator) To(ctx context.Context, target int) error {
	steps, err := m.Plan(target)
	if err != nil {
		return err
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.apply(ctx, step); err != nil {
			return fmt.Errorf("migration %s: %w", step, err)
		}
	}
	return nil
}

// Plan lists the steps To would run, in order
func (m *Migrator) Plan(target int) ([]Step, error) {
	current, err := m.Version()
	if err != nil {
		return nil, err
	}
	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	if target == Latest {
		target = 0
		if n := len(migrations); n > 0 {
			target = migrations[n-1].Version
		}
	}
	if target < 0 {
		return nil, fmt.Errorf("%w: %d", ErrBadTarget, target)
	}

	var steps []Step
	if target >= current {
		for _, mg := range migrations {
			if mg.Version > current && mg.Version <= target {
				steps = append(steps, Step{Migration: mg, Up: true})
			}
		}
		return steps, nil
	}
	for i := len(migrations) - 1; i >= 0; i-- {
		if mg := migrations[i]; mg.Version > target && mg.Version <= current {
			steps = append(steps, Step{Migration: mg})
		}
	}
	return steps, nil
}

// Version returns the applied version, creating the tracking table if needed
func (m *Migrator) Version() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(m.db)
}

// Status returns the applied version and the pending migrations
func (m *Migrator) Status() (*Status, error) {
	steps, err := m.Plan(Latest)
	if err != nil {
		return nil, err
	}
	current, err := m.Version()
	if err != nil {
		return nil, err
	}
	st := &Status{Version: current, Latest: current}
	for _, s := range steps {
		st.Pending = append(st.Pending, s.Migration)
		st.Latest = s.Version
	}
	return st, nil
}

func (m *Migrator) apply(ctx context.Context, step Step) error {
	body := step.sql()
	if body == "" {
		return errors.New("no SQL for this direction")
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, body); err != nil {
		return err
	}
	if err := m.provider.SetVersion(tx, step.version()); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	m.logf("applied migration %s", step)
	return nil
}
