// Package sample reads raw pixel values of a band under a point or region.
package sample

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

const collectionWorkers = 4

// Options controls the sampling resolution
type Options struct {
	Scale     float64 `json:"scale,omitempty"`
	TileScale int     `json:"tile_scale,omitempty"`
}

// Result holds the sampled values of one raster. When no valid pixel lies
// under the region Values is a single NaN and Empty is set; this is a normal
// outcome, not an error.
type Result struct {
	Time   time.Time `json:"time"`
	Values []float64 `json:"values"`
	Empty  bool      `json:"empty"`
}

// First returns the first sampled value, NaN for an empty result
func (r Result) First() float64 {
	if r.Empty || len(r.Values) == 0 {
		return math.NaN()
	}
	return r.Values[0]
}

// MarshalJSON encodes NaN values as null
func (r Result) MarshalJSON() ([]byte, error) {
	values := make([]*float64, len(r.Values))
	for i, v := range r.Values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			v := v
			values[i] = &v
		}
	}
	return json.Marshal(struct {
		Time   time.Time  `json:"time"`
		Values []*float64 `json:"values"`
		Empty  bool       `json:"empty"`
	}{r.Time, values, r.Empty})
}

// UnmarshalJSON decodes null values back to NaN
func (r *Result) UnmarshalJSON(data []byte) error {
	var in struct {
		Time   time.Time  `json:"time"`
		Values []*float64 `json:"values"`
		Empty  bool       `json:"empty"`
	}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Time, r.Empty = in.Time, in.Empty
	r.Values = make([]float64, len(in.Values))
	for i, v := range in.Values {
		if v == nil {
			r.Values[i] = math.NaN()
			continue
		}
		r.Values[i] = *v
	}
	return nil
}

// Image samples band of r under region. A missing band and any engine
// failure are returned as errors.
func Image(ctx context.Context, eng engine.Engine, r *raster.Raster, band string, region orb.Geometry, opts Options) (Result, error) {
	if _, err := r.Band(band); err != nil {
		return Result{}, err
	}

	values, err := eng.Sample(ctx, r, region, engine.RegionOptions{Bands: []string{band}, Scale: opts.Scale, TileScale: opts.TileScale})
	if err != nil {
		return Result{}, err
	}

	res := Result{Values: values[band]}
	if r.HasTime() {
		res.Time = r.Time().UTC()
	}
	if len(res.Values) == 0 {
		res.Values = []float64{math.NaN()}
		res.Empty = true
	}
	return res, nil
}

// Collection samples every element of c, in collection order
func Collection(ctx context.Context, eng engine.Engine, c *raster.Collection, band string, region orb.Geometry, opts Options) ([]Result, error) {
	out := make([]Result, c.Len())
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(collectionWorkers)
	for i, r := range c.Rasters() {
		eg.Go(func() error {
			res, err := Image(ctx, eng, r, band, region, opts)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
