package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
datasets:
  - name: lake
    type: scenes
    path: /data/lake
    sensor: landsat8
    georef:
      origin-x: 500000
      origin-y: 4200000
      pixel-size: 30
      nodata: 0
    watch: true
  - name: chirps
    type: netcdf
    path: /data/chirps.nc
    variables: [precip]
    time-var: time
analysis:
  reducer: mean
  tile-scale: 2
  scale: 30
  bands: all
  mask: landsat
  apply-scale: true
  timeout: 90s
storage:
  database:
    driver: sqlite
    dsn: /tmp/statgis.db
controllers:
  - type: rest
    rest:
      port: 8080
      listen-addr: 127.0.0.1
  - type: grpc
    grpc:
      port: 9090
logging:
  debug: true
  file: /var/log/statgis.log
  max-size-mb: 10
`

func TestParseYAML(t *testing.T) {
	c, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}

	if len(c.Datasets) != 2 {
		t.Fatalf("got %d datasets, expected 2", len(c.Datasets))
	}
	lake := c.Datasets[0]
	if lake.Georef == nil || lake.Georef.PixelSize != 30 || lake.Georef.NoData == nil || *lake.Georef.NoData != 0 {
		t.Errorf("lake georef = %+v", lake.Georef)
	}
	if !lake.Watch {
		t.Error("lake should be watched")
	}
	if c.Datasets[1].TimeVar != "time" || c.Datasets[1].Georef != nil {
		t.Errorf("chirps = %+v", c.Datasets[1])
	}
	if c.Analysis.TileScale != 2 || !c.Analysis.ApplyScale || c.Analysis.Mask != "landsat" {
		t.Errorf("analysis = %+v", c.Analysis)
	}
	if c.Analysis.Timeout != 90*time.Second {
		t.Errorf("timeout = %v, expected 1m30s", c.Analysis.Timeout)
	}
	if c.Storage.Database == nil || c.Storage.Database.Driver != "sqlite" {
		t.Errorf("storage = %+v", c.Storage)
	}
	if c.Controllers[0].RESTServer == nil || c.Controllers[0].RESTServer.ListenAddr != "127.0.0.1" {
		t.Errorf("rest controller = %+v", c.Controllers[0])
	}
	if c.Controllers[1].GRPCServer == nil || c.Controllers[1].RESTServer != nil {
		t.Errorf("grpc controller = %+v", c.Controllers[1])
	}
	if c.Logging.MaxSizeMB != 10 || !c.Logging.Debug {
		t.Errorf("logging = %+v", c.Logging)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Validate() = %v, expected nil", err)
	}
}

func TestParseYAMLRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseYAML([]byte("datasets:\n  - name: x\n    colour: blue\n")); err == nil {
		t.Error("expected an error for an unknown key")
	}
}

func TestYAMLProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	p := NewYAMLProvider(path)
	defer p.Close()

	datasets, err := p.GetDatasets()
	if err != nil {
		t.Fatal(err)
	}
	if len(datasets) != 2 {
		t.Errorf("got %d datasets, expected 2", len(datasets))
	}
	if !p.IsReadOnly() {
		t.Error("YAML provider should be read-only")
	}

	if _, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).GetAnalysis(); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	geo := &GeorefData{PixelSize: 10}

	tests := []struct {
		name   string
		config ConfigData
		want   []string
	}{
		{
			name:   "empty is valid",
			config: ConfigData{},
		},
		{
			name: "dataset problems",
			config: ConfigData{Datasets: []DatasetData{
				{Name: "a", Type: DatasetTIFF, Path: "a.tif", Georef: geo},
				{Name: "a", Type: "hdf", Path: "b"},
				{Type: DatasetScenes, Georef: geo, Sensor: "modis"},
			}},
			want: []string{
				"needs a band name",
				`"a" is defined twice`,
				`unknown type "hdf"`,
				`"a" needs a georef`,
				"dataset 2 has no name",
				"has no path",
				`sensor "modis"`,
			},
		},
		{
			name: "analysis problems",
			config: ConfigData{Analysis: AnalysisData{
				Reducer:   "median",
				TileScale: -1,
				Roles:     []string{"B2", "B3"},
				Mask:      "haze",
				Timeout:   -time.Second,
			}},
			want: []string{"unsupported reducer", "tile scale", "expected 5 bands", "unknown mask scheme", "timeout must not be negative"},
		},
		{
			name: "storage and controllers",
			config: ConfigData{
				Storage:     StorageData{Database: &DatabaseData{Driver: "mysql"}},
				Controllers: []ControllerData{{Type: "rest"}, {Type: "grpc"}, {Type: "soap"}},
			},
			want: []string{
				`unsupported database driver "mysql"`,
				"dsn is empty",
				"rest controller has no rest section",
				"grpc controller has no grpc section",
				`unknown type "soap"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if len(tt.want) == 0 {
				if err != nil {
					t.Errorf("Validate() = %v, expected nil", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Validate() = nil, expected errors")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("Validate() = %q, expected it to mention %q", err, w)
				}
			}
		})
	}
}

func TestParseGeographicGeoref(t *testing.T) {
	c, err := ParseYAML([]byte(`
datasets:
  - name: lake
    type: tiff
    path: /data/lake.tif
    georef:
      origin-x: 30.0
      origin-y: 1.5
      pixel-size: 0.00028
      geographic: true
`))
	if err != nil {
		t.Fatal(err)
	}
	if geo := c.Datasets[0].Georef; geo == nil || !geo.Geographic || geo.PixelSize != 0.00028 {
		t.Errorf("georef = %+v, expected geographic 0.00028 degree pixels", geo)
	}
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	// a fresh database loads as an empty configuration
	empty, err := p.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if len(empty.Datasets) != 0 || empty.Storage.Database != nil {
		t.Errorf("fresh config = %+v", empty)
	}

	want, err := ParseYAML([]byte(sampleYAML))
	if err != nil {
		t.Fatal(err)
	}
	want.Analysis.Roles = []string{"SR_B2", "SR_B3", "SR_B4", "SR_B5", "SR_B6"}
	want.Datasets[0].Georef.Geographic = true
	if err := p.SaveConfig(want); err != nil {
		t.Fatal(err)
	}

	got, err := p.LoadConfig()
	if err != nil {
		t.Fatal(err)
	}

	// datasets come back ordered by name
	if len(got.Datasets) != 2 || got.Datasets[0].Name != "chirps" || got.Datasets[1].Name != "lake" {
		t.Fatalf("datasets = %+v", got.Datasets)
	}
	chirps, lake := got.Datasets[0], got.Datasets[1]
	if chirps.Georef != nil || len(chirps.Variables) != 1 || chirps.Variables[0] != "precip" {
		t.Errorf("chirps = %+v", chirps)
	}
	if lake.Georef == nil || lake.Georef.OriginY != 4200000 || lake.Georef.NoData == nil || !lake.Watch {
		t.Errorf("lake = %+v", lake)
	}
	if lake.Georef != nil && !lake.Georef.Geographic {
		t.Error("lake georef lost its geographic flag")
	}
	if len(got.Analysis.Roles) != 5 || got.Analysis.Roles[4] != "SR_B6" || got.Analysis.Scale != 30 {
		t.Errorf("analysis = %+v", got.Analysis)
	}
	if got.Analysis.Timeout != 90*time.Second {
		t.Errorf("timeout = %v, expected 1m30s", got.Analysis.Timeout)
	}
	if got.Storage.Database == nil || got.Storage.Database.DSN != "/tmp/statgis.db" {
		t.Errorf("storage = %+v", got.Storage)
	}
	if len(got.Controllers) != 2 || got.Controllers[0].RESTServer.Port != 8080 || got.Controllers[1].GRPCServer.Port != 9090 {
		t.Errorf("controllers = %+v", got.Controllers)
	}
	if got.Logging.File != "/var/log/statgis.log" {
		t.Errorf("logging = %+v", got.Logging)
	}
	if p.IsReadOnly() {
		t.Error("SQLite provider should be writable")
	}
}

func TestSQLiteProviderDatasets(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	if err := p.AddDataset(&DatasetData{Name: "dem", Type: DatasetTIFF, Path: "dem.tif", Band: "elevation",
		Georef: &GeorefData{PixelSize: 5}}); err != nil {
		t.Fatal(err)
	}
	if err := p.AddDataset(&DatasetData{Name: "dem", Type: DatasetTIFF, Path: "other.tif"}); err == nil {
		t.Error("expected an error for a duplicate name")
	}

	ds, err := p.GetDataset("dem")
	if err != nil {
		t.Fatal(err)
	}
	if ds.Band != "elevation" || ds.Georef == nil || ds.Georef.NoData != nil {
		t.Errorf("dem = %+v", ds)
	}

	if err := p.DeleteDataset("dem"); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetDataset("dem"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("GetDataset() after delete = %v, expected ErrDatasetNotFound", err)
	}
	if err := p.DeleteDataset("dem"); !errors.Is(err, ErrDatasetNotFound) {
		t.Errorf("DeleteDataset() twice = %v, expected ErrDatasetNotFound", err)
	}
}
