// Package database stores analysis runs and their tabular results through
// GORM on PostgreSQL or SQLite.
package database

import (
	"context"
	"embed"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/chrissnell/statgis/internal/log"
	"github.com/chrissnell/statgis/pkg/config"
	"github.com/chrissnell/statgis/pkg/migrate"
	"go.uber.org/zap"
)

//go:embed migrations
var migrations embed.FS

// Client holds the connection to the result database
type Client struct {
	config *config.DatabaseData
	DB     *gorm.DB // Exported so it can be accessed from other packages
	logger *zap.SugaredLogger
}

// NewClient creates a new database client
func NewClient(c *config.DatabaseData, logger *zap.SugaredLogger) *Client {
	return &Client{
		config: c,
		logger: logger,
	}
}

// Connect opens the database and applies pending schema migrations
func (c *Client) Connect() error {
	var err error

	c.logger.Infof("connecting to %s result database...", c.config.Driver)
	c.DB, err = CreateConnection(c.config.Driver, c.config.DSN)
	if err != nil {
		c.logger.Warnf("warning: unable to create a %s connection: %v", c.config.Driver, err)
		return err
	}

	if err := c.Migrate(); err != nil {
		return err
	}
	c.logger.Infof("%s connection successful", c.config.Driver)

	return nil
}

// Migrate brings the schema up to the latest embedded version
func (c *Client) Migrate() error {
	m, err := c.Migrator()
	if err != nil {
		return err
	}
	if err := m.Up(context.Background()); err != nil {
		return fmt.Errorf("error migrating result database: %w", err)
	}
	return nil
}

// Migrator returns a migrator over the embedded schema of the open
// connection
func (c *Client) Migrator() (*migrate.Migrator, error) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting database handle: %w", err)
	}
	provider := migrate.NewFSProvider(migrations, "migrations/"+c.config.Driver, "schema_migrations", c.config.Driver)
	return migrate.NewMigrator(sqlDB, provider).WithLogger(c.logger.Infof), nil
}

// Open connects without migrating
func (c *Client) Open() error {
	var err error
	c.DB, err = CreateConnection(c.config.Driver, c.config.DSN)
	return err
}

// Close releases the underlying connection pool
func (c *Client) Close() error {
	if c.DB == nil {
		return nil
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case migrate.DriverPostgres:
		dialector = postgres.Open(dsn)
	case migrate.DriverSQLite:
		// foreign keys are off by default in SQLite
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dialector = sqlite.Open(dsn + sep + "_foreign_keys=on")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,
		},
	)

	return gorm.Open(dialector, &gorm.Config{Logger: dbLogger})
}
