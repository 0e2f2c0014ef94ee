// Package engine defines the raster engine capability the analysis packages
// are written against. An engine evaluates reductions, fits and spatial
// operations over rasters; band algebra and masking live on raster.Raster.
package engine

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
	"github.com/paulmach/orb"
)

// Engine evaluates the heavy operations of an analysis. Every call blocks
// until the result is available or ctx is done.
type Engine interface {
	// ReduceRegion reduces every selected band over the footprint of region
	// with each of the scalar reducers in kinds. A nil region covers the
	// whole grid.
	ReduceRegion(ctx context.Context, r *raster.Raster, region orb.Geometry, kinds []reducer.Kind, opts RegionOptions) (Stats, error)

	// ReduceTemporal reduces the named bands pixel by pixel across the
	// collection. Output bands are named "<band>_<reducer>".
	ReduceTemporal(ctx context.Context, c *raster.Collection, bands []string, kind reducer.Kind) (*raster.Raster, error)

	// LinearFit regresses band y on band x pixel by pixel across the
	// collection and returns a raster with "scale" and "offset" bands.
	LinearFit(ctx context.Context, c *raster.Collection, x, y string) (*raster.Raster, error)

	// Clip masks every pixel outside the footprint of region
	Clip(ctx context.Context, r *raster.Raster, region orb.Geometry) (*raster.Raster, error)

	// Sample lists the valid values of each selected band under region
	Sample(ctx context.Context, r *raster.Raster, region orb.Geometry, opts RegionOptions) (map[string][]float64, error)

	// ConnectedPixelCount replaces band with the size of the connected patch
	// of equal values each valid pixel belongs to, capped at maxSize.
	ConnectedPixelCount(ctx context.Context, r *raster.Raster, band string, maxSize int, eightConnected bool) (*raster.Raster, error)
}

// Band names produced by LinearFit
const (
	FitScale  = "scale"
	FitOffset = "offset"
)

// RegionOptions controls a region reduction or sample
type RegionOptions struct {
	// Bands to reduce; empty means every band
	Bands []string

	// Scale is the nominal pixel size in grid units. Zero uses the native
	// resolution.
	Scale float64

	// TileScale splits the work into this many tiles. Values below one are
	// treated as one.
	TileScale int
}

// Stats holds region statistics by band, then reducer
type Stats map[string]map[reducer.Kind]float64

// Get returns a statistic, NaN when absent
func (s Stats) Get(band string, kind reducer.Kind) float64 {
	if m, ok := s[band]; ok {
		if v, ok := m[kind]; ok {
			return v
		}
	}
	return math.NaN()
}

// TemporalBand names the output band of a temporal reduction
func TemporalBand(band string, kind reducer.Kind) string {
	return band + "_" + kind.String()
}

// Error is an engine-side failure, kept distinct from schema and data errors
// so callers can tell a failed evaluation from a bad request.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap returns err as an *Error for op. Nil stays nil, and errors that already
// are engine errors or missing band errors pass through unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ee *Error
	if errors.As(err, &ee) || raster.IsMissingBand(err) {
		return err
	}
	return &Error{Op: op, Err: err}
}

// IsEngineError reports whether err is, or wraps, an *Error
func IsEngineError(err error) bool {
	var ee *Error
	return errors.As(err, &ee)
}
