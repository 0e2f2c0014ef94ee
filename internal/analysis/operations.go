package analysis

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/hypso"
	"github.com/chrissnell/statgis/pkg/indices"
	"github.com/chrissnell/statgis/pkg/plume"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
	"github.com/chrissnell/statgis/pkg/sample"
	"github.com/chrissnell/statgis/pkg/timeseries"
	"github.com/chrissnell/statgis/pkg/zonal"
	"github.com/paulmach/orb"
)

// Run kinds
const (
	KindZonal       = "zonal"
	KindDecompose   = "decompose"
	KindYearly      = "yearly"
	KindHypsometric = "hypsometric"
	KindPlume       = "plume"
	KindSample      = "sample"
	KindFrequency   = "water-frequency"
)

// Zonal reduces every image of a dataset over a region
func (s *Service) Zonal(ctx context.Context, req ZonalRequest) (*TableResponse, error) {
	started := time.Now()

	region, err := ParseRegion(req.Region)
	if err != nil {
		return nil, err
	}
	col, _, err := s.prepare(ctx, req.Dataset, req.Preprocess)
	if err != nil {
		return nil, err
	}

	opts := zonal.Options{
		Bands:     s.bands(req.Bands),
		Scale:     s.scale(req.Scale),
		TileScale: s.tileScale(req.TileScale),
	}

	single := req.Reducer
	if single == "" && len(req.Reducers) == 0 {
		single = s.defaults.Reducer
	}

	var table *zonal.Table
	if single != "" {
		table, err = zonal.ReduceCollectionBy(ctx, s.engine, col, region, single, opts)
	} else {
		if opts.Reducers, err = reducer.ParseList(req.Reducers); err != nil {
			return nil, err
		}
		table, err = zonal.ReduceCollection(ctx, s.engine, col, region, opts)
	}
	if err != nil {
		return nil, err
	}

	res := &TableResponse{Table: table}
	res.RunID = s.record(ctx, KindZonal, req.Dataset, req, res, table, started)
	return res, nil
}

// Decompose runs the time-series decomposition of one band and summarizes
// it over a region
func (s *Service) Decompose(ctx context.Context, req DecomposeRequest) (*DecomposeResponse, error) {
	started := time.Now()

	if req.Band == "" {
		return nil, invalid("band is required")
	}
	region, err := ParseRegion(req.Region)
	if err != nil {
		return nil, err
	}
	col, _, err := s.prepare(ctx, req.Dataset, req.Preprocess)
	if err != nil {
		return nil, err
	}

	result, err := timeseries.Process(ctx, s.engine, col, req.Band)
	if err != nil {
		return nil, err
	}

	regionOpts := engine.RegionOptions{Scale: s.scale(req.Scale), TileScale: s.tileScale(req.TileScale)}

	opts := zonal.Options{
		Bands: raster.NamedBands(req.Band, timeseries.TimeBand, timeseries.PredictedBand,
			timeseries.StationalBand, timeseries.StationalMeanBand, timeseries.AnomalyBand),
		Scale:     regionOpts.Scale,
		TileScale: regionOpts.TileScale,
	}
	series, err := zonal.ReduceCollectionBy(ctx, s.engine, result.Series, region, "mean", opts)
	if err != nil {
		return nil, err
	}

	regionOpts.Bands = []string{engine.FitScale, engine.FitOffset}
	fit, err := s.engine.ReduceRegion(ctx, result.Fit.Coefficients, region, []reducer.Kind{reducer.Mean}, regionOpts)
	if err != nil {
		return nil, err
	}

	monthly, err := s.monthlyMeans(ctx, result, region, regionOpts)
	if err != nil {
		return nil, err
	}

	res := &DecomposeResponse{
		Band:    req.Band,
		Slope:   optional(fit.Get(engine.FitScale, reducer.Mean)),
		Offset:  optional(fit.Get(engine.FitOffset, reducer.Mean)),
		Series:  series,
		Monthly: monthly,
	}
	res.RunID = s.record(ctx, KindDecompose, req.Dataset, req, res, series, started)
	return res, nil
}

func (s *Service) monthlyMeans(ctx context.Context, result *timeseries.Result, region orb.Geometry, opts engine.RegionOptions) ([]MonthlyMean, error) {
	counts := map[int]int{}
	for _, r := range result.Series.Rasters() {
		m, err := r.Month()
		if err != nil {
			return nil, err
		}
		counts[int(m)]++
	}

	opts.Bands = []string{timeseries.StationalMeanBand}
	out := make([]MonthlyMean, 0, result.Monthly.Len())
	for _, m := range result.Monthly.Rasters() {
		v, _ := m.Property(raster.PropMonth)
		mm := MonthlyMean{Month: int(v), Images: counts[int(v)]}
		if m.HasBand(timeseries.StationalMeanBand) {
			stats, err := s.engine.ReduceRegion(ctx, m, region, []reducer.Kind{reducer.Mean}, opts)
			if err != nil {
				return nil, err
			}
			mm.Mean = optional(stats.Get(timeseries.StationalMeanBand, reducer.Mean))
		}
		out = append(out, mm)
	}
	return out, nil
}

// Yearly reduces a band within each year of an inclusive range and
// summarizes each year over a region
func (s *Service) Yearly(ctx context.Context, req YearlyRequest) (*TableResponse, error) {
	started := time.Now()

	if req.Band == "" {
		return nil, invalid("band is required")
	}
	if req.Start > req.End {
		return nil, invalid("year range %d-%d is empty", req.Start, req.End)
	}
	kind := reducer.Mean
	if req.Reducer != "" {
		k, err := reducer.Parse(req.Reducer)
		if err != nil {
			return nil, err
		}
		if !k.Scalar() {
			return nil, fmt.Errorf("%w: %s cannot reduce a year", reducer.ErrUnsupportedReducer, k)
		}
		kind = k
	}
	region, err := ParseRegion(req.Region)
	if err != nil {
		return nil, err
	}
	col, _, err := s.prepare(ctx, req.Dataset, req.Preprocess)
	if err != nil {
		return nil, err
	}

	years, err := timeseries.ReduceByYear(ctx, s.engine, col, []string{req.Band}, kind, req.Start, req.End)
	if err != nil {
		return nil, err
	}

	column := engine.TemporalBand(req.Band, kind)
	opts := engine.RegionOptions{Bands: []string{column}, Scale: s.scale(req.Scale), TileScale: s.tileScale(req.TileScale)}
	table := &zonal.Table{Columns: []string{column}}
	for _, y := range years.Rasters() {
		v, _ := y.Property(raster.PropYear)
		row := zonal.Row{
			Time:   time.Date(int(v), time.January, 1, 0, 0, 0, 0, time.UTC),
			Date:   strconv.Itoa(int(v)),
			Values: map[string]float64{},
		}
		if y.HasBand(column) {
			stats, err := s.engine.ReduceRegion(ctx, y, region, []reducer.Kind{reducer.Mean}, opts)
			if err != nil {
				return nil, err
			}
			row.Values[column] = stats.Get(column, reducer.Mean)
		} else {
			row.Values[column] = math.NaN()
		}
		table.Rows = append(table.Rows, row)
	}

	res := &TableResponse{Table: table}
	res.RunID = s.record(ctx, KindYearly, req.Dataset, req, res, table, started)
	return res, nil
}

// Hypsometric computes the elevation-area curve of a catchment on the first
// image of a dataset
func (s *Service) Hypsometric(ctx context.Context, req HypsometricRequest) (*HypsometricResponse, error) {
	started := time.Now()

	catchment, err := requireRegion("catchment", req.Catchment)
	if err != nil {
		return nil, err
	}
	if req.Samples < 0 {
		return nil, invalid("samples must not be negative, got %d", req.Samples)
	}

	ds, err := s.datasets.Get(req.Dataset)
	if err != nil {
		return nil, err
	}
	dem := ds.Collection.First()
	if dem == nil {
		return nil, fmt.Errorf("dataset %s: %w", req.Dataset, raster.ErrEmptyCollection)
	}

	band := req.Band
	if band == "" {
		band = ds.Config.Band
	}
	if band == "" {
		if bands := dem.Bands(); len(bands) > 0 {
			band = bands[0]
		}
	}

	curve, err := hypso.Compute(ctx, s.engine, dem, band, catchment, hypso.Options{
		Samples:   req.Samples,
		Scale:     s.scale(req.Scale),
		TileScale: s.tileScale(req.TileScale),
	})
	if err != nil {
		return nil, err
	}

	res := &HypsometricResponse{Curve: curve}
	res.RunID = s.record(ctx, KindHypsometric, req.Dataset, req, res, nil, started)
	return res, nil
}

// Plume characterizes the plume on one image of a dataset
func (s *Service) Plume(ctx context.Context, req PlumeRequest) (*PlumeResponse, error) {
	started := time.Now()

	sampleRegion, err := requireRegion("sample_region", req.SampleRegion)
	if err != nil {
		return nil, err
	}
	minPatch, maxPatch := req.MinPatch, req.MaxPatch
	if minPatch == 0 {
		minPatch = plume.DefaultMinPatch
	}
	if maxPatch == 0 {
		maxPatch = plume.DefaultMaxPatch
	}
	if minPatch < 0 || maxPatch <= minPatch {
		return nil, invalid("patch limits %d-%d are not an increasing range", minPatch, maxPatch)
	}
	region, err := ParseRegion(req.Region)
	if err != nil {
		return nil, err
	}
	col, roles, err := s.prepare(ctx, req.Dataset, req.Preprocess)
	if err != nil {
		return nil, err
	}

	img, err := pickImage(col, req.Date)
	if err != nil {
		return nil, err
	}

	result, err := plume.Characterize(ctx, s.engine, img, sampleRegion, roles, req.Options)
	if err != nil {
		return nil, err
	}

	stats, err := s.engine.ReduceRegion(ctx, result.Raster, region, []reducer.Kind{reducer.Count, reducer.Mean},
		engine.RegionOptions{Bands: []string{plume.ScoreBand}, TileScale: s.tileScale(0)})
	if err != nil {
		return nil, err
	}

	res := &PlumeResponse{
		Time:   img.Time().UTC(),
		Limits: result.Limits,
		Pixels: stats.Get(plume.ScoreBand, reducer.Count),
		Score:  optional(stats.Get(plume.ScoreBand, reducer.Mean)),
	}
	res.RunID = s.record(ctx, KindPlume, req.Dataset, req, res, nil, started)
	return res, nil
}

// pickImage returns the image acquired on the UTC day of date, or the latest
// image when date is nil
func pickImage(col *raster.Collection, date *time.Time) (*raster.Raster, error) {
	items := col.Sort().Rasters()
	if date == nil {
		return items[len(items)-1], nil
	}
	day := date.UTC().Truncate(24 * time.Hour)
	for _, r := range items {
		if r.HasTime() && r.Time().UTC().Truncate(24*time.Hour).Equal(day) {
			return r, nil
		}
	}
	return nil, invalid("no image acquired on %s", day.Format(zonal.DateLayout))
}

// Sample reads raw band values under a region from every image
func (s *Service) Sample(ctx context.Context, req SampleRequest) (*SampleResponse, error) {
	started := time.Now()

	if req.Band == "" {
		return nil, invalid("band is required")
	}
	region, err := requireRegion("region", req.Region)
	if err != nil {
		return nil, err
	}
	col, _, err := s.prepare(ctx, req.Dataset, req.Preprocess)
	if err != nil {
		return nil, err
	}

	results, err := sample.Collection(ctx, s.engine, col, req.Band, region, sample.Options{
		Scale:     s.scale(req.Scale),
		TileScale: s.tileScale(req.TileScale),
	})
	if err != nil {
		return nil, err
	}

	res := &SampleResponse{Results: results}
	res.RunID = s.record(ctx, KindSample, req.Dataset, req, res, nil, started)
	return res, nil
}

// WaterFrequency computes per-pixel water frequency across a dataset and
// summarizes it over a region
func (s *Service) WaterFrequency(ctx context.Context, req FrequencyRequest) (*TableResponse, error) {
	started := time.Now()

	region, err := ParseRegion(req.Region)
	if err != nil {
		return nil, err
	}
	col, roles, err := s.prepare(ctx, req.Dataset, req.Preprocess)
	if err != nil {
		return nil, err
	}
	if err := roles.Validate(); err != nil {
		return nil, invalid("water frequency: %v", err)
	}

	freq, err := indices.WaterFrequency(ctx, s.engine, col, roles)
	if err != nil {
		return nil, err
	}

	table, err := zonal.ReduceImage(ctx, s.engine, freq, region, zonal.Options{
		Bands:     raster.NamedBands(indices.WaterBand),
		Scale:     s.scale(req.Scale),
		TileScale: s.tileScale(req.TileScale),
	})
	if err != nil {
		return nil, err
	}

	res := &TableResponse{Table: table}
	res.RunID = s.record(ctx, KindFrequency, req.Dataset, req, res, table, started)
	return res, nil
}
