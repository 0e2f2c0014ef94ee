// Package catalog keeps the configured datasets loaded in memory and reloads
// them when their files change.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/chrissnell/statgis/pkg/config"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/rasterio"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned for dataset names that are not configured
var ErrNotFound = errors.New("dataset not found")

// reloadDelay coalesces bursts of file events into one reload
var reloadDelay = 2 * time.Second

// Loader reads a configured dataset into a collection
type Loader func(ds config.DatasetData) (*raster.Collection, error)

// Dataset is a loaded dataset
type Dataset struct {
	Config     config.DatasetData
	Collection *raster.Collection
	LoadedAt   time.Time
}

// Info summarizes a dataset for listings
type Info struct {
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Sensor   string    `json:"sensor,omitempty"`
	Images   int       `json:"images"`
	Bands    []string  `json:"bands"`
	Start    time.Time `json:"start,omitempty"`
	End      time.Time `json:"end,omitempty"`
	LoadedAt time.Time `json:"loaded_at"`
	Error    string    `json:"error,omitempty"`
}

// Catalog holds every configured dataset
type Catalog struct {
	mu       sync.RWMutex
	configs  map[string]config.DatasetData
	datasets map[string]*Dataset
	failures map[string]error
	loader   Loader
	logger   *zap.SugaredLogger
}

// New creates a catalog for the configured datasets. A nil loader reads
// datasets from disk with Load.
func New(datasets []config.DatasetData, loader Loader, logger *zap.SugaredLogger) *Catalog {
	if loader == nil {
		loader = Load
	}
	c := &Catalog{
		configs:  make(map[string]config.DatasetData, len(datasets)),
		datasets: make(map[string]*Dataset, len(datasets)),
		failures: make(map[string]error),
		loader:   loader,
		logger:   logger,
	}
	for _, ds := range datasets {
		c.configs[ds.Name] = ds
	}
	return c
}

// Load reads a dataset according to its type
func Load(ds config.DatasetData) (*raster.Collection, error) {
	return LoadWithProgress(ds, nil)
}

// LoadWithProgress is Load with a callback after each scene of a scenes
// dataset
func LoadWithProgress(ds config.DatasetData, progress func(done, total int)) (*raster.Collection, error) {
	var geo rasterio.Georef
	if ds.Georef != nil {
		geo = rasterio.Georef{
			OriginX:    ds.Georef.OriginX,
			OriginY:    ds.Georef.OriginY,
			PixelSize:  ds.Georef.PixelSize,
			NoData:     ds.Georef.NoData,
			Geographic: ds.Georef.Geographic,
		}
	}

	switch ds.Type {
	case config.DatasetNetCDF:
		opts := rasterio.CubeOptions{Variables: ds.Variables, TimeVar: ds.TimeVar}
		if ds.Georef != nil {
			opts.Georef = &geo
		}
		return rasterio.ReadNetCDF(ds.Path, opts)
	case config.DatasetScenes:
		return rasterio.ReadScenes(ds.Path, geo, progress)
	case config.DatasetTIFF:
		r, err := rasterio.ReadTIFF(ds.Path, ds.Band, geo)
		if err != nil {
			return nil, err
		}
		return raster.NewCollection(r), nil
	}
	return nil, fmt.Errorf("unknown dataset type %q", ds.Type)
}

// LoadAll loads every dataset concurrently. Datasets that fail to load are
// logged and reported by List; the error is only returned when none loaded.
func (c *Catalog) LoadAll(ctx context.Context) error {
	names := c.Names()
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, name := range names {
		g.Go(func() error {
			if err := c.Reload(name); err != nil {
				c.logger.Errorf("error loading dataset %s: %v", name, err)
			}
			return nil
		})
	}
	g.Wait()

	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(names) > 0 && len(c.datasets) == 0 {
		return fmt.Errorf("none of the %d datasets could be loaded", len(names))
	}
	return nil
}

// Reload reads a dataset again and swaps it in
func (c *Catalog) Reload(name string) error {
	c.mu.RLock()
	cfg, ok := c.configs[name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	start := time.Now()
	col, err := c.loader(cfg)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.failures[name] = err
		return err
	}
	delete(c.failures, name)
	c.datasets[name] = &Dataset{Config: cfg, Collection: col, LoadedAt: time.Now()}
	c.logger.Infof("loaded dataset %s: %d images in %v", name, col.Len(), time.Since(start).Round(time.Millisecond))
	return nil
}

// Get returns a loaded dataset
func (c *Catalog) Get(name string) (*Dataset, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if ds, ok := c.datasets[name]; ok {
		return ds, nil
	}
	if err, ok := c.failures[name]; ok {
		return nil, fmt.Errorf("dataset %s failed to load: %w", name, err)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Names returns the configured dataset names in order
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.configs))
	for n := range c.configs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// List summarizes every configured dataset, loaded or not
func (c *Catalog) List() []Info {
	names := c.Names()

	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Info, 0, len(names))
	for _, n := range names {
		cfg := c.configs[n]
		info := Info{Name: n, Type: cfg.Type, Sensor: cfg.Sensor}
		if err, ok := c.failures[n]; ok {
			info.Error = err.Error()
		}
		if ds, ok := c.datasets[n]; ok {
			info.Images = ds.Collection.Len()
			info.LoadedAt = ds.LoadedAt
			if first := ds.Collection.First(); first != nil {
				info.Bands = first.Bands()
			}
			if dates, err := ds.Collection.Dates(); err == nil && len(dates) > 0 {
				info.Start, info.End = dates[0], dates[len(dates)-1]
			}
		}
		out = append(out, info)
	}
	return out
}

// Watch reloads datasets marked for watching whenever files under their path
// change. It blocks until ctx is cancelled.
func (c *Catalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// watched directory -> dataset names
	dirs := map[string][]string{}
	for _, n := range c.Names() {
		cfg := c.configs[n]
		if !cfg.Watch {
			continue
		}
		dir := filepath.Clean(cfg.Path)
		if cfg.Type != config.DatasetScenes {
			dir = filepath.Dir(dir)
		}
		if len(dirs[dir]) == 0 {
			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("error watching %s: %w", dir, err)
			}
		}
		dirs[dir] = append(dirs[dir], n)
	}
	if len(dirs) == 0 {
		<-ctx.Done()
		return nil
	}

	pending := map[string]bool{}
	timer := time.NewTimer(reloadDelay)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Warnf("dataset watcher error: %v", err)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			for _, n := range dirs[filepath.Dir(ev.Name)] {
				if c.affects(n, ev.Name) {
					pending[n] = true
				}
			}
			if len(pending) > 0 {
				timer.Reset(reloadDelay)
			}
		case <-timer.C:
			for n := range pending {
				c.logger.Infof("dataset %s changed on disk, reloading", n)
				if err := c.Reload(n); err != nil {
					c.logger.Errorf("error reloading dataset %s: %v", n, err)
				}
			}
			pending = map[string]bool{}
		}
	}
}

// affects reports whether a change to file is relevant to dataset name
func (c *Catalog) affects(name, file string) bool {
	cfg := c.configs[name]
	if cfg.Type == config.DatasetScenes {
		return true
	}
	return filepath.Clean(file) == filepath.Clean(cfg.Path)
}
