package local

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
	"github.com/paulmach/orb"
)

// 4x4 grid of unit pixels with the upper-left corner at (0, 4)
func grid4() raster.Grid {
	return raster.NewGrid(4, 4, 0, 4, 1)
}

func seq(n int, f func(i int) float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = f(i)
	}
	return out
}

func TestReduceRegionPolygon(t *testing.T) {
	g := grid4()
	r, _ := raster.FromBands(g, time.Time{}, []string{"v"}, map[string][]float64{
		"v": seq(16, func(i int) float64 { return float64(i) }),
	})

	// upper-left 2x2 block: indices 0, 1, 4, 5
	square := orb.Polygon{orb.Ring{{0, 4}, {2, 4}, {2, 2}, {0, 2}, {0, 4}}}

	tests := []struct {
		name      string
		tileScale int
	}{
		{name: "single tile", tileScale: 1},
		{name: "four tiles", tileScale: 4},
		{name: "more tiles than rows", tileScale: 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats, err := New(2).ReduceRegion(context.Background(), r, square, reducer.Statistics, engine.RegionOptions{TileScale: tt.tileScale})
			if err != nil {
				t.Fatal(err)
			}
			if got := stats.Get("v", reducer.Mean); got != 2.5 {
				t.Errorf("mean = %v, expected 2.5", got)
			}
			if got := stats.Get("v", reducer.Min); got != 0 {
				t.Errorf("min = %v, expected 0", got)
			}
			if got := stats.Get("v", reducer.Max); got != 5 {
				t.Errorf("max = %v, expected 5", got)
			}
			if got := stats.Get("v", reducer.Count); got != 4 {
				t.Errorf("count = %v, expected 4", got)
			}
		})
	}
}

func TestReduceRegionEmptyFootprint(t *testing.T) {
	r, _ := raster.FromBands(grid4(), time.Time{}, []string{"v"}, map[string][]float64{"v": seq(16, func(int) float64 { return 1 })})
	outside := orb.Polygon{orb.Ring{{10, 10}, {12, 10}, {12, 12}, {10, 12}, {10, 10}}}

	stats, err := New(0).ReduceRegion(context.Background(), r, outside, reducer.Statistics, engine.RegionOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(stats.Get("v", reducer.Mean)) {
		t.Errorf("mean = %v, expected NaN", stats.Get("v", reducer.Mean))
	}
	if stats.Get("v", reducer.Count) != 0 {
		t.Errorf("count = %v, expected 0", stats.Get("v", reducer.Count))
	}
}

func TestReduceRegionScaleAndMask(t *testing.T) {
	r, _ := raster.FromBands(grid4(), time.Time{}, []string{"v"}, map[string][]float64{
		"v": seq(16, func(i int) float64 { return float64(i) }),
	})

	// scale 2 keeps columns and rows 0 and 2: indices 0, 2, 8, 10
	stats, err := New(0).ReduceRegion(context.Background(), r, nil, []reducer.Kind{reducer.Count, reducer.Sum}, engine.RegionOptions{Scale: 2})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Get("v", reducer.Count) != 4 || stats.Get("v", reducer.Sum) != 20 {
		t.Errorf("count/sum = %v/%v, expected 4/20", stats.Get("v", reducer.Count), stats.Get("v", reducer.Sum))
	}

	mask := make([]bool, 16)
	for i := range mask {
		mask[i] = i%2 == 0
	}
	masked, _ := r.UpdateMask(mask)
	stats, _ = New(0).ReduceRegion(context.Background(), masked, nil, []reducer.Kind{reducer.Count}, engine.RegionOptions{})
	if stats.Get("v", reducer.Count) != 8 {
		t.Errorf("masked count = %v, expected 8", stats.Get("v", reducer.Count))
	}
}

func TestReduceRegionMissingBand(t *testing.T) {
	r, _ := raster.FromBands(grid4(), time.Time{}, []string{"v"}, map[string][]float64{"v": make([]float64, 16)})
	_, err := New(0).ReduceRegion(context.Background(), r, nil, reducer.Statistics, engine.RegionOptions{Bands: []string{"nir"}})
	if !raster.IsMissingBand(err) {
		t.Errorf("error = %v, expected missing band", err)
	}
}

func TestSamplePoint(t *testing.T) {
	r, _ := raster.FromBands(grid4(), time.Time{}, []string{"v"}, map[string][]float64{
		"v": seq(16, func(i int) float64 { return float64(i) * 10 }),
	})
	vals, err := New(0).Sample(context.Background(), r, orb.Point{2.5, 0.5}, engine.RegionOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(vals["v"]) != 1 || vals["v"][0] != 140 {
		t.Errorf("sample = %v, expected [140]", vals["v"])
	}
}

func TestSamplePointsAtCoarseScale(t *testing.T) {
	// six 10-unit pixels in one row; scale 30 groups them into cells {0,1,2} and {3,4,5}
	g := raster.NewGrid(6, 1, 0, 10, 10)
	r, _ := raster.FromBands(g, time.Time{}, []string{"v"}, map[string][]float64{
		"v": seq(6, func(i int) float64 { return float64(i) }),
	})
	center := func(i int) orb.Point { return orb.Point{float64(i)*10 + 5, 5} }

	tests := []struct {
		name     string
		region   orb.Geometry
		scale    float64
		expected []float64
	}{
		{name: "native scale", region: orb.MultiPoint{center(0), center(4)}, expected: []float64{0, 4}},
		{name: "points in different cells", region: orb.MultiPoint{center(0), center(4)}, scale: 30, expected: []float64{0, 4}},
		{name: "off-lattice points only", region: orb.MultiPoint{center(1), center(5)}, scale: 30, expected: []float64{1, 5}},
		{name: "points sharing a cell", region: orb.MultiPoint{center(0), center(1)}, scale: 30, expected: []float64{0}},
		{name: "single off-lattice point", region: center(4), scale: 30, expected: []float64{4}},
		{name: "whole grid", region: nil, scale: 30, expected: []float64{0, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vals, err := New(0).Sample(context.Background(), r, tt.region, engine.RegionOptions{Scale: tt.scale})
			if err != nil {
				t.Fatal(err)
			}
			got := vals["v"]
			if len(got) != len(tt.expected) {
				t.Fatalf("sample = %v, expected %v", got, tt.expected)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("sample = %v, expected %v", got, tt.expected)
					break
				}
			}
		})
	}
}

func TestReduceTemporalAndLinearFit(t *testing.T) {
	g := raster.NewGrid(2, 1, 0, 1, 1)
	var items []*raster.Raster
	for i := 0; i < 5; i++ {
		x := float64(i)
		r, _ := raster.FromBands(g, time.Unix(int64(i)*86400, 0), []string{"x", "y"}, map[string][]float64{
			"x": {x, x},
			"y": {2*x + 1, -x},
		})
		items = append(items, r)
	}
	c := raster.NewCollection(items...)
	eng := New(0)

	mean, err := eng.ReduceTemporal(context.Background(), c, []string{"y"}, reducer.Mean)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := mean.Value("y_mean", 0); v != 5 {
		t.Errorf("y_mean[0] = %v, expected 5", v)
	}
	if v, _ := mean.Value("y_mean", 1); v != -2 {
		t.Errorf("y_mean[1] = %v, expected -2", v)
	}

	fit, err := eng.LinearFit(context.Background(), c, "x", "y")
	if err != nil {
		t.Fatal(err)
	}
	expected := [][2]float64{{2, 1}, {-1, 0}}
	for i, e := range expected {
		s, _ := fit.Value(engine.FitScale, i)
		o, _ := fit.Value(engine.FitOffset, i)
		if math.Abs(s-e[0]) > 1e-9 || math.Abs(o-e[1]) > 1e-9 {
			t.Errorf("pixel %d fit = (%v, %v), expected %v", i, s, o, e)
		}
	}

	if _, err := eng.ReduceTemporal(context.Background(), raster.NewCollection(), []string{"y"}, reducer.Mean); !errors.Is(err, raster.ErrEmptyCollection) {
		t.Errorf("error = %v, expected ErrEmptyCollection", err)
	}
}

func TestCancelledContextIsEngineError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r, _ := raster.FromBands(grid4(), time.Time{}, []string{"v"}, map[string][]float64{"v": make([]float64, 16)})
	_, err := New(0).ReduceRegion(ctx, r, nil, reducer.Statistics, engine.RegionOptions{})
	if !engine.IsEngineError(err) || !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, expected engine error wrapping context.Canceled", err)
	}
}

func TestClip(t *testing.T) {
	r, _ := raster.FromBands(grid4(), time.Time{}, []string{"v"}, map[string][]float64{"v": make([]float64, 16)})
	clipped, err := New(0).Clip(context.Background(), r, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 4}})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 16; i++ {
		if want := i%4 == 0; clipped.Valid(i) != want {
			t.Errorf("pixel %d valid = %v, expected %v", i, clipped.Valid(i), want)
		}
	}
}

func TestConnectedPixelCount(t *testing.T) {
	// 1 1 0 1
	// 1 0 0 1
	// 0 0 1 0
	// 1 0 0 1
	v := []float64{
		1, 1, 0, 1,
		1, 0, 0, 1,
		0, 0, 1, 0,
		1, 0, 0, 1,
	}
	r, _ := raster.FromBands(grid4(), time.Time{}, []string{"p"}, map[string][]float64{"p": v})
	mask := make([]bool, 16)
	for i := range v {
		mask[i] = v[i] > 0
	}
	r, _ = r.UpdateMask(mask)

	four, err := New(0).ConnectedPixelCount(context.Background(), r, "p", 100, false)
	if err != nil {
		t.Fatal(err)
	}
	expected := map[int]float64{0: 3, 1: 3, 4: 3, 3: 2, 7: 2, 10: 1, 12: 1, 15: 1}
	for i, want := range expected {
		if got, _ := four.Value("p", i); got != want {
			t.Errorf("4-connected pixel %d = %v, expected %v", i, got, want)
		}
	}
	if _, ok := four.Value("p", 2); ok {
		t.Error("masked pixel should stay invalid")
	}

	eight, _ := New(0).ConnectedPixelCount(context.Background(), r, "p", 100, true)
	// 10 joins 7 and 15 diagonally, and 7 joins 3
	if got, _ := eight.Value("p", 10); got != 4 {
		t.Errorf("8-connected pixel 10 = %v, expected 4", got)
	}

	capped, _ := New(0).ConnectedPixelCount(context.Background(), r, "p", 2, false)
	if got, _ := capped.Value("p", 0); got != 2 {
		t.Errorf("capped pixel 0 = %v, expected 2", got)
	}
}
