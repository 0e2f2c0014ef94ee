// Package config loads the service configuration from YAML files or SQLite
// databases behind a common ConfigProvider interface.
package config

import "time"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetDatasets() ([]DatasetData, error)
	GetAnalysis() (*AnalysisData, error)
	GetStorageConfig() (*StorageData, error)
	GetControllers() ([]ControllerData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Datasets    []DatasetData    `json:"datasets"`
	Analysis    AnalysisData     `json:"analysis"`
	Storage     StorageData      `json:"storage,omitempty"`
	Controllers []ControllerData `json:"controllers,omitempty"`
	Logging     LoggingData      `json:"logging,omitempty"`
}

// Dataset types
const (
	DatasetNetCDF = "netcdf"
	DatasetScenes = "scenes"
	DatasetTIFF   = "tiff"
)

// DatasetData describes a named raster source served by the catalog
type DatasetData struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Path string `json:"path"`

	// Sensor selects band roles and scaling ("landsat8", "sentinel2", ...)
	Sensor string `json:"sensor,omitempty"`

	// Band names the single band of a tiff dataset
	Band string `json:"band,omitempty"`

	// Variables and TimeVar apply to netcdf datasets
	Variables []string `json:"variables,omitempty"`
	TimeVar   string   `json:"time_var,omitempty"`

	Georef *GeorefData `json:"georef,omitempty"`

	// Watch reloads the dataset when its files change
	Watch bool `json:"watch,omitempty"`
}

// GeorefData places tiff pixels on the map
type GeorefData struct {
	OriginX   float64  `json:"origin_x"`
	OriginY   float64  `json:"origin_y"`
	PixelSize float64  `json:"pixel_size"`
	NoData    *float64 `json:"nodata,omitempty"`
	// Geographic marks origin and pixel size as degrees
	Geographic bool `json:"geographic,omitempty"`
}

// AnalysisData holds the defaults applied to every analysis request
type AnalysisData struct {
	// Roles lists band names in blue, green, red, nir, swir order. Empty
	// uses the dataset sensor preset.
	Roles []string `json:"roles,omitempty"`

	// Reducer is the default single reducer for collection statistics
	Reducer string `json:"reducer,omitempty"`

	TileScale int     `json:"tile_scale,omitempty"`
	Scale     float64 `json:"scale,omitempty"`

	// Bands is "all" or a comma separated list
	Bands string `json:"bands,omitempty"`

	// Mask is a cloud mask scheme applied before analysis
	Mask          string  `json:"mask,omitempty"`
	MaskThreshold float64 `json:"mask_threshold,omitempty"`

	// ApplyScale converts digital numbers to reflectance using the sensor
	ApplyScale bool `json:"apply_scale,omitempty"`

	Workers int `json:"workers,omitempty"`

	// Timeout bounds each server request; zero uses the built-in default
	Timeout time.Duration `json:"timeout,omitempty"`
}

// StorageData holds the configuration for the result store
type StorageData struct {
	Database *DatabaseData `json:"database,omitempty"`
}

// DatabaseData configures the GORM result store
type DatabaseData struct {
	// Driver is "postgres" or "sqlite"
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

// ControllerData holds the configuration for various controller backends
type ControllerData struct {
	Type       string      `json:"type,omitempty"`
	RESTServer *ServerData `json:"rest,omitempty"`
	GRPCServer *ServerData `json:"grpc,omitempty"`
}

// ServerData configures a listening controller
type ServerData struct {
	Cert       string `json:"cert,omitempty"`
	Key        string `json:"key,omitempty"`
	Port       int    `json:"port,omitempty"`
	ListenAddr string `json:"listen_addr,omitempty"`
}

// LoggingData configures the logger
type LoggingData struct {
	Debug      bool   `json:"debug,omitempty"`
	File       string `json:"file,omitempty"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty"`
	MaxBackups int    `json:"max_backups,omitempty"`
	MaxAgeDays int    `json:"max_age_days,omitempty"`
	Compress   bool   `json:"compress,omitempty"`
}
