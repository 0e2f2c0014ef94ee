package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/statgis/internal/catalog"
	"github.com/chrissnell/statgis/pkg/config"
	"go.uber.org/zap"
)

// DatasetManager loads the configured datasets and keeps watched ones fresh
type DatasetManager struct {
	ctx     context.Context
	wg      *sync.WaitGroup
	Catalog *catalog.Catalog
	logger  *zap.SugaredLogger
}

// NewDatasetManager creates a DatasetManager for the configured datasets. A
// nil loader reads datasets from disk.
func NewDatasetManager(ctx context.Context, wg *sync.WaitGroup, datasets []config.DatasetData, loader catalog.Loader, logger *zap.SugaredLogger) *DatasetManager {
	return &DatasetManager{
		ctx:     ctx,
		wg:      wg,
		Catalog: catalog.New(datasets, loader, logger),
		logger:  logger,
	}
}

// StartDatasets loads every dataset and starts the change watcher
func (d *DatasetManager) StartDatasets() error {
	d.logger.Info("Loading datasets...")
	if err := d.Catalog.LoadAll(d.ctx); err != nil {
		return fmt.Errorf("error loading datasets: %w", err)
	}
	for _, info := range d.Catalog.List() {
		if info.Error != "" {
			d.logger.Warnf("dataset [%s] is unavailable: %s", info.Name, info.Error)
			continue
		}
		d.logger.Infof("dataset [%s] loaded: %d images, bands %v", info.Name, info.Images, info.Bands)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.Catalog.Watch(d.ctx); err != nil {
			d.logger.Errorf("dataset watcher stopped: %v", err)
		}
	}()

	return nil
}
