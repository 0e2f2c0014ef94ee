package config

import (
	"errors"
	"fmt"

	"github.com/chrissnell/statgis/pkg/indices"
	"github.com/chrissnell/statgis/pkg/mask"
	"github.com/chrissnell/statgis/pkg/reducer"
)

// Validate checks the configuration and reports every problem found
func (c *ConfigData) Validate() error {
	var errs []error

	seen := map[string]bool{}
	for i, ds := range c.Datasets {
		if ds.Name == "" {
			errs = append(errs, fmt.Errorf("dataset %d has no name", i))
		} else if seen[ds.Name] {
			errs = append(errs, fmt.Errorf("dataset %q is defined twice", ds.Name))
		}
		seen[ds.Name] = true

		if ds.Path == "" {
			errs = append(errs, fmt.Errorf("dataset %q has no path", ds.Name))
		}
		switch ds.Type {
		case DatasetNetCDF, DatasetScenes:
		case DatasetTIFF:
			if ds.Band == "" {
				errs = append(errs, fmt.Errorf("tiff dataset %q needs a band name", ds.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("dataset %q has unknown type %q", ds.Name, ds.Type))
		}
		if ds.Type != DatasetNetCDF && ds.Georef == nil {
			errs = append(errs, fmt.Errorf("dataset %q needs a georef", ds.Name))
		}
		if ds.Sensor != "" {
			if _, err := indices.Preset(ds.Sensor); err != nil {
				errs = append(errs, fmt.Errorf("dataset %q: %w", ds.Name, err))
			}
		}
	}

	a := c.Analysis
	if a.Reducer != "" {
		if _, err := reducer.Parse(a.Reducer); err != nil {
			errs = append(errs, err)
		}
	}
	if a.TileScale < 0 {
		errs = append(errs, fmt.Errorf("tile scale must be positive, got %d", a.TileScale))
	}
	if a.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", a.Timeout))
	}
	if a.Scale < 0 {
		errs = append(errs, fmt.Errorf("scale must not be negative, got %g", a.Scale))
	}
	if len(a.Roles) > 0 {
		if _, err := indices.FromList(a.Roles); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := mask.ParseScheme(a.Mask); err != nil {
		errs = append(errs, err)
	}

	if db := c.Storage.Database; db != nil {
		if db.Driver != "postgres" && db.Driver != "sqlite" {
			errs = append(errs, fmt.Errorf("unsupported database driver %q", db.Driver))
		}
		if db.DSN == "" {
			errs = append(errs, errors.New("database dsn is empty"))
		}
	}

	for i, cc := range c.Controllers {
		switch cc.Type {
		case "rest", "restserver":
			if cc.RESTServer == nil {
				errs = append(errs, fmt.Errorf("controller %d: rest controller has no rest section", i))
			}
		case "grpc":
			if cc.GRPCServer == nil {
				errs = append(errs, fmt.Errorf("controller %d: grpc controller has no grpc section", i))
			}
		default:
			errs = append(errs, fmt.Errorf("controller %d: unknown type %q", i, cc.Type))
		}
	}

	return errors.Join(errs...)
}
