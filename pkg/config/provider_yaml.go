package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}
	config, err := ParseYAML(cfgFile)
	if err != nil {
		return nil, err
	}
	y.config = config
	return config, nil
}

// ParseYAML converts a YAML document into ConfigData
func ParseYAML(data []byte) (*ConfigData, error) {
	// Load into temporary struct with YAML tags
	var yamlConfig struct {
		Datasets    []DatasetYAML    `yaml:"datasets"`
		Analysis    AnalysisYAML     `yaml:"analysis,omitempty"`
		Storage     StorageYAML      `yaml:"storage,omitempty"`
		Controllers []ControllerYAML `yaml:"controllers,omitempty"`
		Logging     LoggingYAML      `yaml:"logging,omitempty"`
	}

	if err := yaml.UnmarshalStrict(data, &yamlConfig); err != nil {
		return nil, err
	}

	// Convert to our internal format
	config := &ConfigData{
		Datasets:    make([]DatasetData, len(yamlConfig.Datasets)),
		Controllers: make([]ControllerData, len(yamlConfig.Controllers)),
	}

	for i, ds := range yamlConfig.Datasets {
		config.Datasets[i] = DatasetData{
			Name:      ds.Name,
			Type:      ds.Type,
			Path:      ds.Path,
			Sensor:    ds.Sensor,
			Band:      ds.Band,
			Variables: ds.Variables,
			TimeVar:   ds.TimeVar,
			Watch:     ds.Watch,
		}
		if ds.Georef != nil {
			config.Datasets[i].Georef = &GeorefData{
				OriginX:    ds.Georef.OriginX,
				OriginY:    ds.Georef.OriginY,
				PixelSize:  ds.Georef.PixelSize,
				NoData:     ds.Georef.NoData,
				Geographic: ds.Georef.Geographic,
			}
		}
	}

	a := yamlConfig.Analysis
	config.Analysis = AnalysisData{
		Roles:         a.Roles,
		Reducer:       a.Reducer,
		TileScale:     a.TileScale,
		Scale:         a.Scale,
		Bands:         a.Bands,
		Mask:          a.Mask,
		MaskThreshold: a.MaskThreshold,
		ApplyScale:    a.ApplyScale,
		Workers:       a.Workers,
		Timeout:       a.Timeout,
	}

	if yamlConfig.Storage.Database != nil {
		config.Storage.Database = &DatabaseData{
			Driver: yamlConfig.Storage.Database.Driver,
			DSN:    yamlConfig.Storage.Database.DSN,
		}
	}

	for i, controller := range yamlConfig.Controllers {
		config.Controllers[i] = ControllerData{
			Type:       controller.Type,
			RESTServer: controller.RESTServer.data(),
			GRPCServer: controller.GRPCServer.data(),
		}
	}

	l := yamlConfig.Logging
	config.Logging = LoggingData{
		Debug:      l.Debug,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}

	return config, nil
}

func (y *YAMLProvider) loaded() (*ConfigData, error) {
	if y.config == nil {
		if _, err := y.LoadConfig(); err != nil {
			return nil, err
		}
	}
	return y.config, nil
}

// GetDatasets returns dataset configurations
func (y *YAMLProvider) GetDatasets() ([]DatasetData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return c.Datasets, nil
}

// GetAnalysis returns analysis defaults
func (y *YAMLProvider) GetAnalysis() (*AnalysisData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Analysis, nil
}

// GetStorageConfig returns storage configuration
func (y *YAMLProvider) GetStorageConfig() (*StorageData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return &c.Storage, nil
}

// GetControllers returns controller configurations
func (y *YAMLProvider) GetControllers() ([]ControllerData, error) {
	c, err := y.loaded()
	if err != nil {
		return nil, err
	}
	return c.Controllers, nil
}

// IsReadOnly returns true since YAML files are read-only through this interface
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}

// YAML-specific structs with proper YAML tags for parsing the file format
type DatasetYAML struct {
	Name      string      `yaml:"name"`
	Type      string      `yaml:"type"`
	Path      string      `yaml:"path"`
	Sensor    string      `yaml:"sensor,omitempty"`
	Band      string      `yaml:"band,omitempty"`
	Variables []string    `yaml:"variables,omitempty"`
	TimeVar   string      `yaml:"time-var,omitempty"`
	Georef    *GeorefYAML `yaml:"georef,omitempty"`
	Watch     bool        `yaml:"watch,omitempty"`
}

type GeorefYAML struct {
	OriginX    float64  `yaml:"origin-x"`
	OriginY    float64  `yaml:"origin-y"`
	PixelSize  float64  `yaml:"pixel-size"`
	NoData     *float64 `yaml:"nodata,omitempty"`
	Geographic bool     `yaml:"geographic,omitempty"`
}

type AnalysisYAML struct {
	Roles         []string      `yaml:"roles,omitempty"`
	Reducer       string        `yaml:"reducer,omitempty"`
	TileScale     int           `yaml:"tile-scale,omitempty"`
	Scale         float64       `yaml:"scale,omitempty"`
	Bands         string        `yaml:"bands,omitempty"`
	Mask          string        `yaml:"mask,omitempty"`
	MaskThreshold float64       `yaml:"mask-threshold,omitempty"`
	ApplyScale    bool          `yaml:"apply-scale,omitempty"`
	Workers       int           `yaml:"workers,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
}

type StorageYAML struct {
	Database *DatabaseYAML `yaml:"database,omitempty"`
}

type DatabaseYAML struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type ControllerYAML struct {
	Type       string      `yaml:"type,omitempty"`
	RESTServer *ServerYAML `yaml:"rest,omitempty"`
	GRPCServer *ServerYAML `yaml:"grpc,omitempty"`
}

type ServerYAML struct {
	Cert       string `yaml:"cert,omitempty"`
	Key        string `yaml:"key,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	ListenAddr string `yaml:"listen-addr,omitempty"`
}

func (s *ServerYAML) data() *ServerData {
	if s == nil {
		return nil
	}
	return &ServerData{Cert: s.Cert, Key: s.Key, Port: s.Port, ListenAddr: s.ListenAddr}
}

type LoggingYAML struct {
	Debug      bool   `yaml:"debug,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
	MaxAgeDays int    `yaml:"max-age-days,omitempty"`
	Compress   bool   `yaml:"compress,omitempty"`
}
