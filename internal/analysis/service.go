// Package analysis runs the statgis analyses against datasets held by the
// catalog and records the results. It is shared by the REST and gRPC
// controllers and by the command line tool.
package analysis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chrissnell/statgis/internal/catalog"
	"github.com/chrissnell/statgis/internal/constants"
	"github.com/chrissnell/statgis/internal/database"
	"github.com/chrissnell/statgis/pkg/config"
	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/zonal"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Datasets looks up loaded datasets
type Datasets interface {
	Get(name string) (*catalog.Dataset, error)
	List() []catalog.Info
}

// RunStore persists analysis runs
type RunStore interface {
	SaveRun(ctx context.Context, run *database.AnalysisRun, values []database.ResultValue) error
	GetRun(ctx context.Context, id uuid.UUID) (*database.AnalysisRun, error)
	ListRuns(ctx context.Context, dataset string, limit int) ([]database.AnalysisRun, error)
}

// Service executes analysis requests
type Service struct {
	datasets Datasets
	engine   engine.Engine
	store    RunStore
	defaults config.AnalysisData
	logger   *zap.SugaredLogger
}

// New creates a service. A nil store disables result persistence.
func New(datasets Datasets, eng engine.Engine, store RunStore, defaults config.AnalysisData, logger *zap.SugaredLogger) *Service {
	return &Service{
		datasets: datasets,
		engine:   eng,
		store:    store,
		defaults: defaults,
		logger:   logger,
	}
}

// WithTimeout bounds ctx by the configured request timeout
func (s *Service) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.defaults.Timeout
	if d <= 0 {
		d = constants.DefaultAnalysisTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Datasets lists the configured datasets
func (s *Service) Datasets() []catalog.Info {
	return s.datasets.List()
}

// Run returns a stored run
func (s *Service) Run(ctx context.Context, id string) (*database.AnalysisRun, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	runID, err := uuid.Parse(id)
	if err != nil {
		return nil, invalid("run id %q: %v", id, err)
	}
	return s.store.GetRun(ctx, runID)
}

// Runs lists recent runs, newest first
func (s *Service) Runs(ctx context.Context, dataset string, limit int) ([]database.AnalysisRun, error) {
	if s.store == nil {
		return nil, ErrStorageDisabled
	}
	return s.store.ListRuns(ctx, dataset, limit)
}

func (s *Service) scale(requested float64) float64 {
	if requested != 0 {
		return requested
	}
	return s.defaults.Scale
}

func (s *Service) tileScale(requested int) int {
	switch {
	case requested > 0:
		return requested
	case s.defaults.TileScale > 0:
		return s.defaults.TileScale
	}
	return constants.DefaultTileScale
}

func (s *Service) bands(requested []string) raster.BandSelection {
	if len(requested) > 0 {
		return raster.NamedBands(requested...)
	}
	return raster.ParseBandSelection(s.defaults.Bands)
}

// record stores a finished run and returns its id. Storage failures are
// logged, not returned: the caller already has its result.
func (s *Service) record(ctx context.Context, kind, dataset string, req, res interface{}, table *zonal.Table, started time.Time) string {
	if s.store == nil {
		return ""
	}

	reqJSON, err := json.Marshal(req)
	if err != nil {
		s.logger.Errorf("error encoding %s request: %v", kind, err)
		return ""
	}
	resJSON, err := json.Marshal(res)
	if err != nil {
		s.logger.Errorf("error encoding %s result: %v", kind, err)
		return ""
	}

	run := &database.AnalysisRun{
		Dataset:    dataset,
		Kind:       kind,
		Request:    string(reqJSON),
		Result:     string(resJSON),
		DurationMS: time.Since(started).Milliseconds(),
	}
	var values []database.ResultValue
	if table != nil {
		values = database.ValuesFromTable(table)
	}
	if err := s.store.SaveRun(ctx, run, values); err != nil {
		s.logger.Errorf("error saving %s run for %s: %v", kind, dataset, err)
		return ""
	}
	s.logger.Debugf("saved %s run %s for %s", kind, run.ID, dataset)
	return run.ID.String()
}
