// Package local is an in-memory engine.Engine over small fixed grids
package local

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// Engine evaluates everything in process
type Engine struct {
	workers int
}

var _ engine.Engine = (*Engine)(nil)

// New returns a local engine running up to workers goroutines per call.
// workers <= 0 uses GOMAXPROCS.
func New(workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{workers: workers}
}

// ReduceRegion implements engine.Engine
func (e *Engine) ReduceRegion(ctx context.Context, r *raster.Raster, region orb.Geometry, kinds []reducer.Kind, opts engine.RegionOptions) (engine.Stats, error) {
	for _, k := range kinds {
		if !k.Scalar() {
			return nil, fmt.Errorf("%w: %s cannot reduce a region", reducer.ErrUnsupportedReducer, k)
		}
	}

	values, err := e.collect(ctx, r, region, opts)
	if err != nil {
		return nil, err
	}

	stats := make(engine.Stats, len(values))
	for band, v := range values {
		res, err := reducer.ApplyAll(kinds, v)
		if err != nil {
			return nil, err
		}
		stats[band] = res
	}
	return stats, nil
}

// Sample implements engine.Engine
func (e *Engine) Sample(ctx context.Context, r *raster.Raster, region orb.Geometry, opts engine.RegionOptions) (map[string][]float64, error) {
	return e.collect(ctx, r, region, opts)
}

// collect gathers the valid values of each band under the region. Rows are
// split into opts.TileScale tiles gathered concurrently and concatenated in
// tile order, so the result does not depend on scheduling.
func (e *Engine) collect(ctx context.Context, r *raster.Raster, region orb.Geometry, opts engine.RegionOptions) (map[string][]float64, error) {
	bands := opts.Bands
	if len(bands) == 0 {
		bands = r.Bands()
	}
	if _, err := r.Select(bands...); err != nil {
		return nil, err
	}

	g := r.Grid()
	fp, err := footprint(g, region)
	if err != nil {
		return nil, engine.Wrap("reduceRegion", err)
	}
	fp = resample(g, fp, stride(g, opts.Scale))

	tiles := splitRows(g.Height, opts.TileScale)
	parts := make([]map[string][]float64, len(tiles))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for t, span := range tiles {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			part := make(map[string][]float64, len(bands))
			for row := span[0]; row < span[1]; row++ {
				for col := 0; col < g.Width; col++ {
					i := g.Index(col, row)
					if !fp[i] {
						continue
					}
					for _, b := range bands {
						if v, ok := r.Value(b, i); ok {
							part[b] = append(part[b], v)
						}
					}
				}
			}
			parts[t] = part
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, engine.Wrap("reduceRegion", err)
	}

	out := make(map[string][]float64, len(bands))
	for _, b := range bands {
		out[b] = []float64{}
		for _, part := range parts {
			out[b] = append(out[b], part[b]...)
		}
	}
	return out, nil
}

// ReduceTemporal implements engine.Engine
func (e *Engine) ReduceTemporal(ctx context.Context, c *raster.Collection, bands []string, kind reducer.Kind) (*raster.Raster, error) {
	if !kind.Scalar() {
		return nil, fmt.Errorf("%w: %s cannot reduce over time", reducer.ErrUnsupportedReducer, kind)
	}
	g, err := e.checkCollection(c, bands)
	if err != nil {
		return nil, err
	}

	items := c.Rasters()
	out := make([][]float64, len(bands))
	for b := range bands {
		out[b] = make([]float64, g.Size())
	}

	err = e.perPixel(ctx, g, func(i int, scratch []float64) error {
		for b, name := range bands {
			vals := scratch[:0]
			for _, r := range items {
				if v, ok := r.Value(name, i); ok {
					vals = append(vals, v)
				}
			}
			res, err := reducer.Apply(kind, vals)
			if err != nil {
				return err
			}
			out[b][i] = res
		}
		return nil
	}, c.Len())
	if err != nil {
		return nil, engine.Wrap("reduceTemporal", err)
	}

	res := raster.New(g, time.Time{})
	for b, name := range bands {
		if res, err = res.WithBand(engine.TemporalBand(name, kind), out[b]); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// LinearFit implements engine.Engine
func (e *Engine) LinearFit(ctx context.Context, c *raster.Collection, x, y string) (*raster.Raster, error) {
	g, err := e.checkCollection(c, []string{x, y})
	if err != nil {
		return nil, err
	}

	scale := make([]float64, g.Size())
	offset := make([]float64, g.Size())
	items := c.Rasters()
	n := len(items)

	err = e.perPixel(ctx, g, func(i int, scratch []float64) error {
		xs, ys := scratch[:n], scratch[n:2*n]
		for j, r := range items {
			xv, okx := r.Value(x, i)
			yv, oky := r.Value(y, i)
			if !okx || !oky {
				xv, yv = math.NaN(), math.NaN()
			}
			xs[j], ys[j] = xv, yv
		}
		scale[i], offset[i] = reducer.Fit(xs, ys)
		return nil
	}, 2*n)
	if err != nil {
		return nil, engine.Wrap("linearFit", err)
	}

	return raster.FromBands(g, time.Time{}, []string{engine.FitScale, engine.FitOffset}, map[string][]float64{
		engine.FitScale:  scale,
		engine.FitOffset: offset,
	})
}

// Clip implements engine.Engine
func (e *Engine) Clip(ctx context.Context, r *raster.Raster, region orb.Geometry) (*raster.Raster, error) {
	if err := ctx.Err(); err != nil {
		return nil, engine.Wrap("clip", err)
	}
	fp, err := footprint(r.Grid(), region)
	if err != nil {
		return nil, engine.Wrap("clip", err)
	}
	return r.UpdateMask(fp)
}

func (e *Engine) checkCollection(c *raster.Collection, bands []string) (raster.Grid, error) {
	g, err := c.Grid()
	if err != nil {
		return raster.Grid{}, err
	}
	for _, r := range c.Rasters() {
		if _, err := r.Select(bands...); err != nil {
			return raster.Grid{}, err
		}
	}
	return g, nil
}

// perPixel runs fn for every pixel index, one row tile per worker. Each
// worker gets its own scratch slice of scratchLen floats.
func (e *Engine) perPixel(ctx context.Context, g raster.Grid, fn func(i int, scratch []float64) error, scratchLen int) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.workers)
	for _, span := range splitRows(g.Height, e.workers) {
		eg.Go(func() error {
			scratch := make([]float64, scratchLen)
			for row := span[0]; row < span[1]; row++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				for col := 0; col < g.Width; col++ {
					if err := fn(g.Index(col, row), scratch); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	return eg.Wait()
}

// splitRows divides [0, height) into at most n contiguous spans
func splitRows(height, n int) [][2]int {
	if n < 1 {
		n = 1
	}
	if n > height {
		n = height
	}
	if n == 0 {
		return nil
	}
	spans := make([][2]int, 0, n)
	per, extra := height/n, height%n
	start := 0
	for i := 0; i < n; i++ {
		end := start + per
		if i < extra {
			end++
		}
		spans = append(spans, [2]int{start, end})
		start = end
	}
	return spans
}
