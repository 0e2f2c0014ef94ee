package config

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chrissnell/statgis/pkg/migrate"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrDatasetNotFound is returned when a named dataset does not exist
var ErrDatasetNotFound = errors.New("dataset not found")

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider opens (creating if needed) a configuration database and
// brings its schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	m := migrate.NewMigrator(db, migrate.NewFSProvider(migrations, "migrations", "config_migrations", migrate.DriverSQLite))
	if err := m.Up(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	datasets, err := s.GetDatasets()
	if err != nil {
		return nil, fmt.Errorf("failed to load datasets: %w", err)
	}
	config.Datasets = datasets

	analysis, err := s.GetAnalysis()
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis defaults: %w", err)
	}
	config.Analysis = *analysis

	storage, err := s.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}
	config.Storage = *storage

	controllers, err := s.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("failed to load controllers: %w", err)
	}
	config.Controllers = controllers

	logging, err := s.getLogging()
	if err != nil {
		return nil, fmt.Errorf("failed to load logging config: %w", err)
	}
	config.Logging = *logging

	return config, nil
}

const datasetColumns = `name, type, path, sensor, band, variables, time_var,
	has_georef, origin_x, origin_y, pixel_size, nodata, geographic, watch`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDataset(row rowScanner) (DatasetData, error) {
	var ds DatasetData
	var variables string
	var hasGeoref bool
	var geo GeorefData
	var nodata sql.NullFloat64

	err := row.Scan(&ds.Name, &ds.Type, &ds.Path, &ds.Sensor, &ds.Band, &variables, &ds.TimeVar,
		&hasGeoref, &geo.OriginX, &geo.OriginY, &geo.PixelSize, &nodata, &geo.Geographic, &ds.Watch)
	if err != nil {
		return ds, err
	}
	if variables != "" {
		ds.Variables = strings.Split(variables, ",")
	}
	if hasGeoref {
		if nodata.Valid {
			geo.NoData = &nodata.Float64
		}
		ds.Georef = &geo
	}
	return ds, nil
}

// GetDatasets returns dataset configurations ordered by name
func (s *SQLiteProvider) GetDatasets() ([]DatasetData, error) {
	rows, err := s.db.Query(`SELECT ` + datasetColumns + ` FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	var datasets []DatasetData
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		datasets = append(datasets, ds)
	}
	return datasets, rows.Err()
}

// GetDataset returns a single dataset by name
func (s *SQLiteProvider) GetDataset(name string) (*DatasetData, error) {
	ds, err := scanDataset(s.db.QueryRow(`SELECT `+datasetColumns+` FROM datasets WHERE name = ?`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset %s: %w", name, err)
	}
	return &ds, nil
}

// GetAnalysis returns analysis defaults; an empty table yields zero values
func (s *SQLiteProvider) GetAnalysis() (*AnalysisData, error) {
	var a AnalysisData
	var roles string
	var timeoutMS int64
	err := s.db.QueryRow(`
		SELECT roles, reducer, tile_scale, scale, bands, mask, mask_threshold, apply_scale, workers, timeout_ms
		FROM analysis WHERE id = 1
	`).Scan(&roles, &a.Reducer, &a.TileScale, &a.Scale, &a.Bands, &a.Mask, &a.MaskThreshold, &a.ApplyScale, &a.Workers, &timeoutMS)
	if errors.Is(err, sql.ErrNoRows) {
		return &a, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis: %w", err)
	}
	if roles != "" {
		a.Roles = strings.Split(roles, ",")
	}
	a.Timeout = time.Duration(timeoutMS) * time.Millisecond
	return &a, nil
}

// GetStorageConfig returns the result store configuration
func (s *SQLiteProvider) GetStorageConfig() (*StorageData, error) {
	var db DatabaseData
	err := s.db.QueryRow(`SELECT driver, dsn FROM storage WHERE id = 1`).Scan(&db.Driver, &db.DSN)
	if errors.Is(err, sql.ErrNoRows) {
		return &StorageData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query storage: %w", err)
	}
	return &StorageData{Database: &db}, nil
}

// GetControllers returns controller configurations
func (s *SQLiteProvider) GetControllers() ([]ControllerData, error) {
	rows, err := s.db.Query(`SELECT type, cert, cert_key, port, listen_addr FROM controllers ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query controllers: %w", err)
	}
	defer rows.Close()

	var controllers []ControllerData
	for rows.Next() {
		var cc ControllerData
		var srv ServerData
		if err := rows.Scan(&cc.Type, &srv.Cert, &srv.Key, &srv.Port, &srv.ListenAddr); err != nil {
			return nil, fmt.Errorf("failed to scan controller: %w", err)
		}
		if cc.Type == "grpc" {
			cc.GRPCServer = &srv
		} else {
			cc.RESTServer = &srv
		}
		controllers = append(controllers, cc)
	}
	return controllers, rows.Err()
}

func (s *SQLiteProvider) getLogging() (*LoggingData, error) {
	var l LoggingData
	err := s.db.QueryRow(`
		SELECT debug, file, max_size_mb, max_backups, max_age_days, compress FROM logging WHERE id = 1
	`).Scan(&l.Debug, &l.File, &l.MaxSizeMB, &l.MaxBackups, &l.MaxAgeDays, &l.Compress)
	if errors.Is(err, sql.ErrNoRows) {
		return &l, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// IsReadOnly returns false since SQLite supports read/write operations
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"datasets", "analysis", "storage", "controllers", "logging"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for i := range configData.Datasets {
		if err := insertDataset(tx, &configData.Datasets[i]); err != nil {
			return err
		}
	}

	a := configData.Analysis
	_, err = tx.Exec(`
		INSERT INTO analysis (id, roles, reducer, tile_scale, scale, bands, mask, mask_threshold, apply_scale, workers, timeout_ms)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, strings.Join(a.Roles, ","), a.Reducer, a.TileScale, a.Scale, a.Bands, a.Mask, a.MaskThreshold, a.ApplyScale, a.Workers, a.Timeout.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	if db := configData.Storage.Database; db != nil {
		if _, err := tx.Exec(`INSERT INTO storage (id, driver, dsn) VALUES (1, ?, ?)`, db.Driver, db.DSN); err != nil {
			return fmt.Errorf("failed to insert storage: %w", err)
		}
	}

	for _, cc := range configData.Controllers {
		srv := cc.RESTServer
		if cc.Type == "grpc" {
			srv = cc.GRPCServer
		}
		if srv == nil {
			srv = &ServerData{}
		}
		_, err := tx.Exec(`INSERT INTO controllers (type, cert, cert_key, port, listen_addr) VALUES (?, ?, ?, ?, ?)`,
			cc.Type, srv.Cert, srv.Key, srv.Port, srv.ListenAddr)
		if err != nil {
			return fmt.Errorf("failed to insert controller %s: %w", cc.Type, err)
		}
	}

	l := configData.Logging
	_, err = tx.Exec(`
		INSERT INTO logging (id, debug, file, max_size_mb, max_backups, max_age_days, compress)
		VALUES (1, ?, ?, ?, ?, ?, ?)
	`, l.Debug, l.File, l.MaxSizeMB, l.MaxBackups, l.MaxAgeDays, l.Compress)
	if err != nil {
		return fmt.Errorf("failed to insert logging: %w", err)
	}

	return tx.Commit()
}

func insertDataset(tx *sql.Tx, ds *DatasetData) error {
	geo := GeorefData{}
	if ds.Georef != nil {
		geo = *ds.Georef
	}
	var nodata sql.NullFloat64
	if geo.NoData != nil {
		nodata = sql.NullFloat64{Float64: *geo.NoData, Valid: true}
	}

	_, err := tx.Exec(`INSERT INTO datasets (`+datasetColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.Name, ds.Type, ds.Path, ds.Sensor, ds.Band, strings.Join(ds.Variables, ","), ds.TimeVar,
		ds.Georef != nil, geo.OriginX, geo.OriginY, geo.PixelSize, nodata, geo.Geographic, ds.Watch)
	if err != nil {
		return fmt.Errorf("failed to insert dataset %s: %w", ds.Name, err)
	}
	return nil
}

// AddDataset stores a new dataset
func (s *SQLiteProvider) AddDataset(ds *DatasetData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertDataset(tx, ds); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteDataset removes a dataset by name
func (s *SQLiteProvider) DeleteDataset(name string) error {
	res, err := s.db.Exec(`DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete dataset %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	return nil
}
