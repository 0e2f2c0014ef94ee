// Package hypso computes the hypsometric (elevation-area) curve of a
// catchment from a digital elevation model.
package hypso

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
	"github.com/paulmach/orb"
)

// ErrEmptyCatchment is returned when the catchment covers no valid pixel
var ErrEmptyCatchment = errors.New("catchment covers no valid pixels")

// DefaultSamples is used when Options.Samples is zero
const DefaultSamples = 20

// Options controls curve resolution
type Options struct {
	Samples   int
	Scale     float64
	TileScale int
}

// Curve holds two parallel sequences of length samples+1. Area[i] is the
// fraction of the catchment above the i-th elevation threshold and Height[i]
// the normalized height of that threshold. The first point is (1, 0).
type Curve struct {
	Area   []float64 `json:"area"`
	Height []float64 `json:"height"`

	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count float64 `json:"count"`
}

// Compute clips band of dem to catchment and walks samples evenly spaced
// elevation thresholds between its minimum and maximum.
func Compute(ctx context.Context, eng engine.Engine, dem *raster.Raster, band string, catchment orb.Geometry, opts Options) (*Curve, error) {
	samples := opts.Samples
	if samples == 0 {
		samples = DefaultSamples
	}
	if samples < 0 {
		return nil, fmt.Errorf("samples must be positive, got %d", samples)
	}

	elevation, err := dem.Select(band)
	if err != nil {
		return nil, err
	}
	clipped, err := eng.Clip(ctx, elevation, catchment)
	if err != nil {
		return nil, err
	}

	region := engine.RegionOptions{Bands: []string{band}, Scale: opts.Scale, TileScale: opts.TileScale}
	stats, err := eng.ReduceRegion(ctx, clipped, catchment, []reducer.Kind{reducer.Min, reducer.Max, reducer.Count}, region)
	if err != nil {
		return nil, err
	}

	c := &Curve{
		Area:   make([]float64, 0, samples+1),
		Height: make([]float64, 0, samples+1),
		Min:    stats.Get(band, reducer.Min),
		Max:    stats.Get(band, reducer.Max),
		Count:  stats.Get(band, reducer.Count),
	}
	if c.Count == 0 {
		return nil, fmt.Errorf("%w: no valid %s pixels", ErrEmptyCatchment, band)
	}

	c.Area = append(c.Area, 1)
	c.Height = append(c.Height, 0)

	step := (c.Max - c.Min) / float64(samples)
	for i := 0; i < samples; i++ {
		threshold := c.Min + step*float64(i+1)

		below, err := clipped.Combine(band, []string{band}, func(v []float64) float64 {
			if v[0] <= threshold {
				return v[0]
			}
			return math.NaN()
		})
		if err != nil {
			return nil, err
		}
		sub, err := eng.ReduceRegion(ctx, below, catchment, []reducer.Kind{reducer.Count}, region)
		if err != nil {
			return nil, err
		}

		c.Area = append(c.Area, 1-sub.Get(band, reducer.Count)/c.Count)
		c.Height = append(c.Height, (float64(i)+0.5)/float64(samples))
	}
	return c, nil
}
