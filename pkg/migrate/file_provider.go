package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Format: 001_migration_name.up.sql or 001_migration_name.down.sql
var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FileProvider loads migrations from a filesystem, typically an embed.FS
type FileProvider struct {
	fsys           fs.FS
	dir            string
	migrationTable string
	dbDriver       string
}

// NewFileProvider creates a provider reading dir on the local disk
func NewFileProvider(dir string, migrationTable string) *FileProvider {
	return NewFSProvider(os.DirFS(dir), ".", migrationTable, DriverSQLite)
}

// NewFSProvider creates a provider reading dir inside fsys for the given
// database driver
func NewFSProvider(fsys fs.FS, dir, migrationTable, dbDriver string) *FileProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	if dbDriver == "" {
		dbDriver = DriverSQLite
	}
	return &FileProvider{
		fsys:           fsys,
		dir:            dir,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// GetMigrations loads all migrations below dir
func (fp *FileProvider) GetMigrations() ([]Migration, error) {
	migrationFiles := make(map[int]*Migration)

	err := fs.WalkDir(fp.fsys, fp.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matches := migrationFile.FindStringSubmatch(d.Name())
		if matches == nil {
			return nil
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return fmt.Errorf("invalid version number in file %s: %w", d.Name(), err)
		}

		content, err := fs.ReadFile(fp.fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", path, err)
		}

		m := migrationFiles[version]
		if m == nil {
			m = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			migrationFiles[version] = m
		}
		if matches[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory %s: %w", fp.dir, err)
	}

	migrations := make([]Migration, 0, len(migrationFiles))
	for _, migration := range migrationFiles {
		migrations = append(migrations, *migration)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (fp *FileProvider) CreateMigrationTable(db *sql.DB) error {
	stamp := "DATETIME"
	if fp.dbDriver == DriverPostgres {
		stamp = "TIMESTAMP"
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, fp.migrationTable, stamp)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (fp *FileProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", fp.migrationTable)

	var version int
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// SetVersion records version as the current one
func (fp *FileProvider) SetVersion(db DB, version int) error {
	var err error

	switch {
	case version == 0:
		_, err = db.Exec(fmt.Sprintf("DELETE FROM %s", fp.migrationTable))
	case fp.dbDriver == DriverPostgres:
		// drop rolled-back versions above the new one
		if _, err = db.Exec(fmt.Sprintf("DELETE FROM %s WHERE version > $1", fp.migrationTable), version); err == nil {
			_, err = db.Exec(fmt.Sprintf(`
				INSERT INTO %s (version, applied_at)
				VALUES ($1, CURRENT_TIMESTAMP)
				ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
			`, fp.migrationTable), version)
		}
	default:
		if _, err = db.Exec(fmt.Sprintf("DELETE FROM %s WHERE version > ?", fp.migrationTable), version); err == nil {
			_, err = db.Exec(fmt.Sprintf(`
				INSERT OR REPLACE INTO %s (version, applied_at)
				VALUES (?, CURRENT_TIMESTAMP)
			`, fp.migrationTable), version)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
