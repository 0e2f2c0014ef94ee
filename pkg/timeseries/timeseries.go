// Package timeseries decomposes a raster time series into a linear trend, a
// de-trended ("stational") signal, a monthly climatology and anomalies.
//
// The stages run in order, each over the whole collection:
//
//	mean        per-pixel mean of the target band
//	time        years since the Unix epoch, added to every element
//	fit         per-pixel least squares of target on time (scale, offset)
//	predicted   time*scale + offset
//	stational   target - predicted + mean
//	monthly     mean of stational per calendar month
//	anomaly     stational - stational_mean of the element's month
package timeseries

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
)

// Band names added by the decomposition
const (
	TimeBand          = "time"
	PredictedBand     = "predicted"
	StationalBand     = "stational"
	StationalMeanBand = "stational_mean"
	AnomalyBand       = "anomaly"
)

// MillisPerYear converts epoch milliseconds to the time covariate. Years are
// a fixed 365 days.
const MillisPerYear = 1000 * 60 * 60 * 24 * 365

// Years returns t as fractional years since the Unix epoch
func Years(t time.Time) float64 {
	return float64(t.UnixMilli()) / MillisPerYear
}

// Fit holds the collection-wide products of the trend stage
type Fit struct {
	// Coefficients carries the per-pixel "scale" and "offset" bands
	Coefficients *raster.Raster

	// Mean carries the per-pixel mean of the target band as "<band>_mean"
	Mean *raster.Raster
}

// Result is the output of Process
type Result struct {
	// Series has one element per input raster, sorted by time, with bands
	// target, time, predicted, stational, stational_mean and anomaly
	Series *raster.Collection

	// Monthly has 12 elements tagged with the "month" property, each with a
	// stational_mean band. Months without data carry no bands.
	Monthly *raster.Collection

	Fit Fit
}

// AddTime adds the time band to r
func AddTime(r *raster.Raster) (*raster.Raster, error) {
	if !r.HasTime() {
		return nil, raster.ErrMissingTimestamp
	}
	return r.WithBand(TimeBand, r.Constant(Years(r.Time())))
}

// Trend fits the linear trend of band over the collection and returns the
// collection with time, predicted and stational bands added. Elements keep
// only band and the added bands.
func Trend(ctx context.Context, eng engine.Engine, c *raster.Collection, band string) (*raster.Collection, Fit, error) {
	if c.Len() == 0 {
		return nil, Fit{}, raster.ErrEmptyCollection
	}
	for _, r := range c.Rasters() {
		if !r.HasBand(band) {
			return nil, Fit{}, &raster.MissingBandError{Band: band, Available: r.Bands()}
		}
		if !r.HasTime() {
			return nil, Fit{}, raster.ErrMissingTimestamp
		}
	}

	mean, err := eng.ReduceTemporal(ctx, c, []string{band}, reducer.Mean)
	if err != nil {
		return nil, Fit{}, fmt.Errorf("mean of %s: %w", band, err)
	}

	timed, err := c.Map(ctx, func(r *raster.Raster) (*raster.Raster, error) {
		t, err := AddTime(r)
		if err != nil {
			return nil, err
		}
		return t.Select(band, TimeBand)
	})
	if err != nil {
		return nil, Fit{}, err
	}

	coef, err := eng.LinearFit(ctx, timed, TimeBand, band)
	if err != nil {
		return nil, Fit{}, fmt.Errorf("linear fit of %s: %w", band, err)
	}

	meanBand, err := mean.Band(engine.TemporalBand(band, reducer.Mean))
	if err != nil {
		return nil, Fit{}, err
	}
	scale, err := coef.Band(engine.FitScale)
	if err != nil {
		return nil, Fit{}, err
	}
	offset, err := coef.Band(engine.FitOffset)
	if err != nil {
		return nil, Fit{}, err
	}

	out, err := timed.Map(ctx, func(r *raster.Raster) (*raster.Raster, error) {
		return detrend(r, band, scale, offset, meanBand)
	})
	if err != nil {
		return nil, Fit{}, err
	}
	return out, Fit{Coefficients: coef, Mean: mean}, nil
}

func detrend(r *raster.Raster, band string, scale, offset, mean []float64) (*raster.Raster, error) {
	n := r.Grid().Size()
	predicted := make([]float64, n)
	stational := make([]float64, n)
	for i := 0; i < n; i++ {
		t, ok := r.Value(TimeBand, i)
		if !ok {
			predicted[i], stational[i] = math.NaN(), math.NaN()
			continue
		}
		predicted[i] = t*scale[i] + offset[i]

		v, ok := r.Value(band, i)
		if !ok {
			stational[i] = math.NaN()
			continue
		}
		stational[i] = v - predicted[i] + mean[i]
	}

	out, err := r.WithBand(PredictedBand, predicted)
	if err != nil {
		return nil, err
	}
	return out.WithBand(StationalBand, stational)
}

// ReduceByMonth partitions the collection by calendar month, independent of
// year, and reduces bands within each month. The result always has 12
// elements in month order, tagged with the "month" property; a month with no
// elements yields a raster with no bands.
func ReduceByMonth(ctx context.Context, eng engine.Engine, c *raster.Collection, bands []string, kind reducer.Kind) (*raster.Collection, error) {
	g, err := c.Grid()
	if err != nil {
		return nil, err
	}

	buckets := make(map[time.Month][]*raster.Raster, 12)
	for _, r := range c.Rasters() {
		m, err := r.Month()
		if err != nil {
			return nil, err
		}
		buckets[m] = append(buckets[m], r)
	}

	out := make([]*raster.Raster, 0, 12)
	for m := time.January; m <= time.December; m++ {
		red, err := reduceBucket(ctx, eng, g, buckets[m], bands, kind)
		if err != nil {
			return nil, fmt.Errorf("month %d: %w", m, err)
		}
		out = append(out, red.WithProperty(raster.PropMonth, float64(m)))
	}
	return raster.NewCollection(out...), nil
}

// ReduceByYear reduces bands within each calendar year of the inclusive range
// [start, end]. Elements are tagged with the "year" property; a year with no
// elements yields a raster with no bands.
func ReduceByYear(ctx context.Context, eng engine.Engine, c *raster.Collection, bands []string, kind reducer.Kind, start, end int) (*raster.Collection, error) {
	if start > end {
		return nil, fmt.Errorf("year range %d-%d is empty", start, end)
	}
	g, err := c.Grid()
	if err != nil {
		return nil, err
	}

	buckets := make(map[int][]*raster.Raster)
	for _, r := range c.Rasters() {
		y, err := r.Year()
		if err != nil {
			return nil, err
		}
		buckets[y] = append(buckets[y], r)
	}

	out := make([]*raster.Raster, 0, end-start+1)
	for y := start; y <= end; y++ {
		red, err := reduceBucket(ctx, eng, g, buckets[y], bands, kind)
		if err != nil {
			return nil, fmt.Errorf("year %d: %w", y, err)
		}
		out = append(out, red.WithProperty(raster.PropYear, float64(y)))
	}
	return raster.NewCollection(out...), nil
}

func reduceBucket(ctx context.Context, eng engine.Engine, g raster.Grid, items []*raster.Raster, bands []string, kind reducer.Kind) (*raster.Raster, error) {
	if len(items) == 0 {
		return raster.New(g, time.Time{}), nil
	}
	return eng.ReduceTemporal(ctx, raster.NewCollection(items...), bands, kind)
}

// CalcAnomalies joins each element with the stational_mean band of the
// monthly raster for its calendar month and adds anomaly = stational -
// stational_mean. The result is sorted by time. An element whose month has
// no climatology fails with a *MissingClimatologyError.
func CalcAnomalies(ctx context.Context, c *raster.Collection, monthly *raster.Collection) (*raster.Collection, error) {
	byMonth := make(map[time.Month]*raster.Raster, monthly.Len())
	for _, m := range monthly.Rasters() {
		v, ok := m.Property(raster.PropMonth)
		if !ok {
			continue
		}
		if _, dup := byMonth[time.Month(v)]; !dup {
			byMonth[time.Month(v)] = m
		}
	}

	out, err := c.Map(ctx, func(r *raster.Raster) (*raster.Raster, error) {
		month, err := r.Month()
		if err != nil {
			return nil, err
		}
		clim, ok := byMonth[month]
		if !ok || !clim.HasBand(StationalMeanBand) {
			var available []string
			if ok {
				available = clim.Bands()
			}
			return nil, &MissingClimatologyError{
				Month: month,
				Time:  r.Time(),
				Err:   &raster.MissingBandError{Band: StationalMeanBand, Available: available},
			}
		}

		joined, err := r.AddBands(clim, StationalMeanBand)
		if err != nil {
			return nil, err
		}
		return joined.Combine(AnomalyBand, []string{StationalBand, StationalMeanBand}, func(v []float64) float64 {
			return v[0] - v[1]
		})
	})
	if err != nil {
		return nil, err
	}
	return out.Sort(), nil
}

// Process runs the full decomposition of band
func Process(ctx context.Context, eng engine.Engine, c *raster.Collection, band string) (*Result, error) {
	trended, fit, err := Trend(ctx, eng, c, band)
	if err != nil {
		return nil, err
	}

	monthly, err := ReduceByMonth(ctx, eng, trended, []string{StationalBand}, reducer.Mean)
	if err != nil {
		return nil, err
	}

	series, err := CalcAnomalies(ctx, trended, monthly)
	if err != nil {
		return nil, err
	}

	return &Result{Series: series, Monthly: monthly, Fit: fit}, nil
}

// ExtractDates returns the acquisition time of every element in UTC
func ExtractDates(c *raster.Collection) ([]time.Time, error) {
	dates, err := c.Dates()
	if err != nil {
		return nil, err
	}
	for i := range dates {
		dates[i] = dates[i].UTC()
	}
	return dates, nil
}
