package grpcserver

import (
	"context"

	"github.com/chrissnell/statgis/internal/analysis"
	"github.com/chrissnell/statgis/internal/grpcutil"
)

// Datasets implements grpcutil.AnalysisServer
func (c *Controller) Datasets(ctx context.Context) (*grpcutil.DatasetsResponse, error) {
	return &grpcutil.DatasetsResponse{Datasets: c.service.Datasets()}, nil
}

// Zonal implements grpcutil.AnalysisServer
func (c *Controller) Zonal(ctx context.Context, req *analysis.ZonalRequest) (*analysis.TableResponse, error) {
	return c.service.Zonal(ctx, *req)
}

// Decompose implements grpcutil.AnalysisServer
func (c *Controller) Decompose(ctx context.Context, req *analysis.DecomposeRequest) (*analysis.DecomposeResponse, error) {
	return c.service.Decompose(ctx, *req)
}

// Yearly implements grpcutil.AnalysisServer
func (c *Controller) Yearly(ctx context.Context, req *analysis.YearlyRequest) (*analysis.TableResponse, error) {
	return c.service.Yearly(ctx, *req)
}

// Hypsometric implements grpcutil.AnalysisServer
func (c *Controller) Hypsometric(ctx context.Context, req *analysis.HypsometricRequest) (*analysis.HypsometricResponse, error) {
	return c.service.Hypsometric(ctx, *req)
}

// Plume implements grpcutil.AnalysisServer
func (c *Controller) Plume(ctx context.Context, req *analysis.PlumeRequest) (*analysis.PlumeResponse, error) {
	return c.service.Plume(ctx, *req)
}

// Sample implements grpcutil.AnalysisServer
func (c *Controller) Sample(ctx context.Context, req *analysis.SampleRequest) (*analysis.SampleResponse, error) {
	return c.service.Sample(ctx, *req)
}

// WaterFrequency implements grpcutil.AnalysisServer
func (c *Controller) WaterFrequency(ctx context.Context, req *analysis.FrequencyRequest) (*analysis.TableResponse, error) {
	return c.service.WaterFrequency(ctx, *req)
}
