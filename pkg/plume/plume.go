// Package plume detects sediment plumes in water bodies by comparing visible
// reflectance against a reference sample of known plume water.
package plume

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/indices"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
	"github.com/paulmach/orb"
)

// Output band names
const (
	ScoreBand = "plume"
	PatchBand = "patch_size"
)

// ErrEmptySample is returned when the sample region holds no valid water pixel
var ErrEmptySample = errors.New("sample region holds no valid water pixels")

// Defaults. DefaultSampleScale is in metres.
const (
	DefaultSampleScale = 30
	DefaultMinPatch    = 50
	DefaultMaxPatch    = 100
)

// Options tunes the detector. Zero values take the defaults.
type Options struct {
	// SampleScale is the nominal pixel size, in metres, used to read the
	// reference sample. It is converted to degrees on geographic grids.
	SampleScale float64 `json:"sample_scale,omitempty"`

	// Patches must be strictly larger than MinPatch pixels to survive
	MinPatch int `json:"min_patch,omitempty"`

	// MaxPatch caps the connected-pixel count
	MaxPatch int `json:"max_patch,omitempty"`
}

func (o Options) withDefaults() Options {
	if o.SampleScale == 0 {
		o.SampleScale = DefaultSampleScale
	}
	if o.MinPatch == 0 {
		o.MinPatch = DefaultMinPatch
	}
	if o.MaxPatch == 0 {
		o.MaxPatch = DefaultMaxPatch
	}
	return o
}

// Limits is the reference range of one band
type Limits struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies in the closed range
func (l Limits) Contains(v float64) bool {
	return v >= l.Min && v <= l.Max
}

// Result holds the detection raster, with bands plume (fraction of visible
// bands inside their reference range) and patch_size, and the limits used.
// Pixels outside surviving patches are masked.
type Result struct {
	Raster *raster.Raster    `json:"-"`
	Limits map[string]Limits `json:"limits"`
}

// Characterize scores every water pixel of r (NDWI > 0) against the range of
// blue, green and red reflectance found inside sampleRegion, then drops
// patches of MinPatch pixels or fewer.
func Characterize(ctx context.Context, eng engine.Engine, r *raster.Raster, sampleRegion orb.Geometry, roles indices.Roles, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if opts.MaxPatch <= opts.MinPatch {
		return nil, fmt.Errorf("max patch %d must exceed min patch %d", opts.MaxPatch, opts.MinPatch)
	}

	water, err := waterOnly(r, roles)
	if err != nil {
		return nil, err
	}

	visible := []string{roles.Blue, roles.Green, roles.Red}
	stats, err := eng.ReduceRegion(ctx, water, sampleRegion, []reducer.Kind{reducer.Min, reducer.Max},
		engine.RegionOptions{Bands: visible, Scale: r.Grid().FromMetres(opts.SampleScale)})
	if err != nil {
		return nil, err
	}

	limits := make([]Limits, len(visible))
	res := &Result{Limits: make(map[string]Limits, len(visible))}
	for i, b := range visible {
		limits[i] = Limits{Min: stats.Get(b, reducer.Min), Max: stats.Get(b, reducer.Max)}
		if math.IsNaN(limits[i].Min) || math.IsNaN(limits[i].Max) {
			return nil, fmt.Errorf("%w: band %s", ErrEmptySample, b)
		}
		res.Limits[b] = limits[i]
	}

	scored, err := water.Combine(ScoreBand, visible, func(v []float64) float64 {
		var inside float64
		for i := range v {
			if limits[i].Contains(v[i]) {
				inside++
			}
		}
		return inside / float64(len(v))
	})
	if err != nil {
		return nil, err
	}
	scored, err = keepWhere(scored, ScoreBand, func(v float64) bool { return v > 0 })
	if err != nil {
		return nil, err
	}

	flagged, err := scored.Combine(PatchBand, []string{ScoreBand}, func([]float64) float64 { return 1 })
	if err != nil {
		return nil, err
	}
	counted, err := eng.ConnectedPixelCount(ctx, flagged, PatchBand, opts.MaxPatch, false)
	if err != nil {
		return nil, err
	}
	counted, err = keepWhere(counted, PatchBand, func(v float64) bool { return v > float64(opts.MinPatch) })
	if err != nil {
		return nil, err
	}

	res.Raster, err = counted.Select(ScoreBand, PatchBand)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func waterOnly(r *raster.Raster, roles indices.Roles) (*raster.Raster, error) {
	withNDWI, err := indices.Compute(r, indices.NDWI, roles)
	if err != nil {
		return nil, err
	}
	return keepWhere(withNDWI, string(indices.NDWI), func(v float64) bool { return v > 0 })
}

// keepWhere masks every pixel whose band value fails keep
func keepWhere(r *raster.Raster, band string, keep func(float64) bool) (*raster.Raster, error) {
	n := r.Grid().Size()
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		v, ok := r.Value(band, i)
		valid[i] = ok && keep(v)
	}
	return r.UpdateMask(valid)
}
