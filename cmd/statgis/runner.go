package main

import (
	"context"
	"fmt"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/chrissnell/statgis/internal/catalog"
	"github.com/chrissnell/statgis/internal/database"
	"github.com/chrissnell/statgis/internal/grpcutil"
	"github.com/chrissnell/statgis/internal/log"
	"github.com/chrissnell/statgis/pkg/config"
	"github.com/chrissnell/statgis/pkg/engine/local"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/schollz/progressbar/v3"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// runner executes requests in-process or on a server
type runner interface {
	Datasets(context.Context) ([]catalog.Info, error)
	Zonal(context.Context, analysis.ZonalRequest) (*analysis.TableResponse, error)
	Decompose(context.Context, analysis.DecomposeRequest) (*analysis.DecomposeResponse, error)
	Yearly(context.Context, analysis.YearlyRequest) (*analysis.TableResponse, error)
	Hypsometric(context.Context, analysis.HypsometricRequest) (*analysis.HypsometricResponse, error)
	Plume(context.Context, analysis.PlumeRequest) (*analysis.PlumeResponse, error)
	Sample(context.Context, analysis.SampleRequest) (*analysis.SampleResponse, error)
	WaterFrequency(context.Context, analysis.FrequencyRequest) (*analysis.TableResponse, error)
	Close() error
}

// newRunner connects to --remote, or loads the datasets named in only (all
// when empty) for in-process analysis
func newRunner(ctx context.Context, only ...string) (runner, error) {
	if remoteAddr != "" {
		client, err := grpcutil.NewClient(remoteAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", remoteAddr, err)
		}
		return &remoteRunner{client: client}, nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	datasets := cfg.Datasets
	if len(only) > 0 {
		datasets = nil
		for _, ds := range cfg.Datasets {
			for _, name := range only {
				if ds.Name == name {
					datasets = append(datasets, ds)
				}
			}
		}
		if len(datasets) == 0 {
			return nil, fmt.Errorf("%w: %v", catalog.ErrNotFound, only)
		}
	}

	logger := log.GetSugaredLogger()
	cat := catalog.New(datasets, progressLoader, logger)
	if err := cat.LoadAll(ctx); err != nil {
		return nil, err
	}

	lr := &localRunner{}
	var runStore analysis.RunStore
	if store {
		if cfg.Storage.Database == nil {
			return nil, fmt.Errorf("--store needs a storage.database section in the configuration")
		}
		lr.db = database.NewClient(cfg.Storage.Database, logger)
		if err := lr.db.Connect(); err != nil {
			return nil, err
		}
		runStore = lr.db
	}
	lr.service = analysis.New(cat, local.New(cfg.Analysis.Workers), runStore, cfg.Analysis, logger)
	return lr, nil
}

// progressLoader shows a progress bar while a scenes directory is read
func progressLoader(ds config.DatasetData) (*raster.Collection, error) {
	if ds.Type != config.DatasetScenes {
		return catalog.Load(ds)
	}
	var bar *progressbar.ProgressBar
	col, err := catalog.LoadWithProgress(ds, func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "Loading "+ds.Name)
		}
		bar.Set(done)
	})
	if bar != nil {
		bar.Finish()
	}
	return col, err
}

type localRunner struct {
	service *analysis.Service
	db      *database.Client
}

func (l *localRunner) Datasets(context.Context) ([]catalog.Info, error) {
	return l.service.Datasets(), nil
}

func (l *localRunner) Zonal(ctx context.Context, req analysis.ZonalRequest) (*analysis.TableResponse, error) {
	return l.service.Zonal(ctx, req)
}

func (l *localRunner) Decompose(ctx context.Context, req analysis.DecomposeRequest) (*analysis.DecomposeResponse, error) {
	return l.service.Decompose(ctx, req)
}

func (l *localRunner) Yearly(ctx context.Context, req analysis.YearlyRequest) (*analysis.TableResponse, error) {
	return l.service.Yearly(ctx, req)
}

func (l *localRunner) Hypsometric(ctx context.Context, req analysis.HypsometricRequest) (*analysis.HypsometricResponse, error) {
	return l.service.Hypsometric(ctx, req)
}

func (l *localRunner) Plume(ctx context.Context, req analysis.PlumeRequest) (*analysis.PlumeResponse, error) {
	return l.service.Plume(ctx, req)
}

func (l *localRunner) Sample(ctx context.Context, req analysis.SampleRequest) (*analysis.SampleResponse, error) {
	return l.service.Sample(ctx, req)
}

func (l *localRunner) WaterFrequency(ctx context.Context, req analysis.FrequencyRequest) (*analysis.TableResponse, error) {
	return l.service.WaterFrequency(ctx, req)
}

func (l *localRunner) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

type remoteRunner struct {
	client *grpcutil.Client
}

func (r *remoteRunner) Datasets(ctx context.Context) ([]catalog.Info, error) {
	res, err := r.client.Datasets(ctx)
	if err != nil {
		return nil, err
	}
	return res.Datasets, nil
}

func (r *remoteRunner) Zonal(ctx context.Context, req analysis.ZonalRequest) (*analysis.TableResponse, error) {
	return r.client.Zonal(ctx, &req)
}

func (r *remoteRunner) Decompose(ctx context.Context, req analysis.DecomposeRequest) (*analysis.DecomposeResponse, error) {
	return r.client.Decompose(ctx, &req)
}

func (r *remoteRunner) Yearly(ctx context.Context, req analysis.YearlyRequest) (*analysis.TableResponse, error) {
	return r.client.Yearly(ctx, &req)
}

func (r *remoteRunner) Hypsometric(ctx context.Context, req analysis.HypsometricRequest) (*analysis.HypsometricResponse, error) {
	return r.client.Hypsometric(ctx, &req)
}

func (r *remoteRunner) Plume(ctx context.Context, req analysis.PlumeRequest) (*analysis.PlumeResponse, error) {
	return r.client.Plume(ctx, &req)
}

func (r *remoteRunner) Sample(ctx context.Context, req analysis.SampleRequest) (*analysis.SampleResponse, error) {
	return r.client.Sample(ctx, &req)
}

func (r *remoteRunner) WaterFrequency(ctx context.Context, req analysis.FrequencyRequest) (*analysis.TableResponse, error) {
	return r.client.WaterFrequency(ctx, &req)
}

func (r *remoteRunner) Close() error {
	return r.client.Close()
}
