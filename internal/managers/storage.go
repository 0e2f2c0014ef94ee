package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/chrissnell/statgis/internal/database"
	"github.com/chrissnell/statgis/pkg/config"
	"go.uber.org/zap"
)

// StorageManager holds the result store, if one is configured
type StorageManager struct {
	Client *database.Client
}

// NewStorageManager connects the configured result database. Without a
// database section the manager holds no client and results are not kept.
// The connection is closed when ctx ends.
func NewStorageManager(ctx context.Context, wg *sync.WaitGroup, c config.StorageData, logger *zap.SugaredLogger) (*StorageManager, error) {
	s := &StorageManager{}

	if c.Database == nil || c.Database.DSN == "" {
		logger.Info("no result database configured; analysis runs will not be stored")
		return s, nil
	}

	client := database.NewClient(c.Database, logger)
	if err := client.Connect(); err != nil {
		return s, fmt.Errorf("could not connect result database: %v", err)
	}
	s.Client = client

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		logger.Info("closing result database...")
		if err := client.Close(); err != nil {
			logger.Errorf("error closing result database: %v", err)
		}
	}()

	return s, nil
}

// Store returns the run store for the analysis service, nil when storage is
// disabled
func (s *StorageManager) Store() analysis.RunStore {
	if s.Client == nil {
		return nil
	}
	return s.Client
}
