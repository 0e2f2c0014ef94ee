// Package zonal computes region statistics of rasters and collections as
// tables keyed by acquisition date.
package zonal

import (
	"context"
	"fmt"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"
)

// collectionWorkers bounds how many elements are reduced at once
const collectionWorkers = 4

// Options selects what is reduced and at which resolution
type Options struct {
	Bands raster.BandSelection

	// Reducers defaults to mean, stdDev, max, min and count
	Reducers []reducer.Kind

	// Scale is the nominal pixel size; zero is native
	Scale float64

	TileScale int
}

func (o Options) reducers() []reducer.Kind {
	if len(o.Reducers) == 0 {
		return reducer.Statistics
	}
	return o.Reducers
}

func (o Options) region(bands []string) engine.RegionOptions {
	return engine.RegionOptions{Bands: bands, Scale: o.Scale, TileScale: o.TileScale}
}

// Column names a statistic column: "<band>_<reducer>"
func Column(band string, kind reducer.Kind) string {
	return band + "_" + kind.String()
}

// single-reducer variant vocabulary
var singleReducers = map[reducer.Kind]bool{
	reducer.Mean:   true,
	reducer.Max:    true,
	reducer.Min:    true,
	reducer.Count:  true,
	reducer.StdDev: true,
}

// ReduceImage computes every reducer of opts for each selected band of r
// over region and returns a one-row table.
func ReduceImage(ctx context.Context, eng engine.Engine, r *raster.Raster, region orb.Geometry, opts Options) (*Table, error) {
	bands, err := opts.Bands.Resolve(r)
	if err != nil {
		return nil, err
	}
	kinds := opts.reducers()

	row, err := reduceRow(ctx, eng, r, region, bands, kinds, opts)
	if err != nil {
		return nil, err
	}
	return &Table{Columns: columns(bands, kinds), Rows: []Row{row}}, nil
}

// ReduceCollection computes every reducer of opts for each element of c and
// returns one row per element in collection order. Elements with no valid
// pixels in region keep their row, with NaN statistics and zero counts.
func ReduceCollection(ctx context.Context, eng engine.Engine, c *raster.Collection, region orb.Geometry, opts Options) (*Table, error) {
	kinds := opts.reducers()
	bands, err := collectionBands(c, opts.Bands)
	if err != nil {
		return nil, err
	}

	rows, err := reduceRows(ctx, c, func(ctx context.Context, r *raster.Raster) (Row, error) {
		return reduceRow(ctx, eng, r, region, bands, kinds, opts)
	})
	if err != nil {
		return nil, err
	}
	return &Table{Columns: columns(bands, kinds), Rows: rows}, nil
}

// ReduceCollectionBy reduces each element with the single reducer named by
// name, one of mean, max, min, count or stdDev. Columns are the band names.
func ReduceCollectionBy(ctx context.Context, eng engine.Engine, c *raster.Collection, region orb.Geometry, name string, opts Options) (*Table, error) {
	kind, err := reducer.Parse(name)
	if err != nil {
		return nil, err
	}
	if !singleReducers[kind] {
		return nil, fmt.Errorf("%w: %s is not available for collection statistics", reducer.ErrUnsupportedReducer, kind)
	}

	bands, err := collectionBands(c, opts.Bands)
	if err != nil {
		return nil, err
	}

	rows, err := reduceRows(ctx, c, func(ctx context.Context, r *raster.Raster) (Row, error) {
		stats, err := eng.ReduceRegion(ctx, r, region, []reducer.Kind{kind}, opts.region(present(r, bands)))
		if err != nil {
			return Row{}, err
		}
		row := newRow(r)
		for _, b := range bands {
			row.Values[b] = stats.Get(b, kind)
		}
		return row, nil
	})
	if err != nil {
		return nil, err
	}
	return &Table{Columns: append([]string(nil), bands...), Rows: rows}, nil
}

// reduceRow fills every column for bands; bands r lacks come out NaN
func reduceRow(ctx context.Context, eng engine.Engine, r *raster.Raster, region orb.Geometry, bands []string, kinds []reducer.Kind, opts Options) (Row, error) {
	stats, err := eng.ReduceRegion(ctx, r, region, kinds, opts.region(present(r, bands)))
	if err != nil {
		return Row{}, err
	}
	row := newRow(r)
	for _, b := range bands {
		for _, k := range kinds {
			row.Values[Column(b, k)] = stats.Get(b, k)
		}
	}
	return row, nil
}

func reduceRows(ctx context.Context, c *raster.Collection, fn func(context.Context, *raster.Raster) (Row, error)) ([]Row, error) {
	rows := make([]Row, c.Len())
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(collectionWorkers)
	for i, r := range c.Rasters() {
		eg.Go(func() error {
			row, err := fn(ctx, r)
			if err != nil {
				return err
			}
			rows[i] = row
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}

func newRow(r *raster.Raster) Row {
	row := Row{Values: map[string]float64{}}
	if r.HasTime() {
		row.Time = r.Time().UTC()
		row.Date = row.Time.Format(DateLayout)
	}
	return row
}

// collectionBands resolves the selection against every element. "All"
// covers the union of bands in first-seen order.
func collectionBands(c *raster.Collection, sel raster.BandSelection) ([]string, error) {
	if c.Len() == 0 {
		return nil, raster.ErrEmptyCollection
	}
	if !sel.IsAll() {
		for _, r := range c.Rasters() {
			if _, err := sel.Resolve(r); err != nil {
				return nil, err
			}
		}
		return sel.Names(), nil
	}

	var bands []string
	seen := map[string]bool{}
	for _, r := range c.Rasters() {
		for _, b := range r.Bands() {
			if !seen[b] {
				seen[b] = true
				bands = append(bands, b)
			}
		}
	}
	return bands, nil
}

func present(r *raster.Raster, bands []string) []string {
	out := make([]string, 0, len(bands))
	for _, b := range bands {
		if r.HasBand(b) {
			out = append(out, b)
		}
	}
	return out
}

func columns(bands []string, kinds []reducer.Kind) []string {
	out := make([]string, 0, len(bands)*len(kinds))
	for _, b := range bands {
		for _, k := range kinds {
			out = append(out, Column(b, k))
		}
	}
	return out
}
