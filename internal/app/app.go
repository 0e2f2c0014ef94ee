package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/chrissnell/statgis/internal/log"
	"github.com/chrissnell/statgis/internal/managers"
	"github.com/chrissnell/statgis/pkg/config"
	"github.com/chrissnell/statgis/pkg/engine/local"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %v", err)
	}

	// Initialize the storage manager
	storageManager, err := managers.NewStorageManager(ctx, &wg, cfg.Storage, a.logger)
	if err != nil {
		return err
	}

	// Load datasets and start watching them
	dm := managers.NewDatasetManager(ctx, &wg, cfg.Datasets, nil, a.logger)
	if err := dm.StartDatasets(); err != nil {
		cancel()
		wg.Wait()
		return err
	}

	service := analysis.New(dm.Catalog, local.New(cfg.Analysis.Workers), storageManager.Store(), cfg.Analysis, a.logger)

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, cfg.Controllers, service, a.logger)
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}
	err = cm.StartControllers()
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
