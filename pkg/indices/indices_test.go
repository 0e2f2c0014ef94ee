package indices

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/statgis/pkg/engine/local"
	"github.com/chrissnell/statgis/pkg/raster"
)

const epsilon = 1e-12

func TestScalarFormulas(t *testing.T) {
	tests := []struct {
		name     string
		got      float64
		expected float64
	}{
		{name: "NDVI", got: NDVIValue(0.6, 0.2), expected: 0.5},
		{name: "EVI", got: EVIValue(0.6, 0.2, 0.1), expected: (0.6 - 0.2) / (0.6 + 1.2 - 0.75 + 1) * 2.5},
		{name: "mNDWI", got: MNDWIValue(0.3, 0.1), expected: 0.5},
		{name: "NDBI", got: NDBIValue(0.3, 0.1), expected: 0.5},
		{name: "NDWI", got: NDWIValue(0.1, 0.3), expected: -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if math.Abs(tt.got-tt.expected) > epsilon {
				t.Errorf("%s = %v, expected %v", tt.name, tt.got, tt.expected)
			}
		})
	}
}

func scene(t *testing.T, blue, green, red, nir, swir []float64) *raster.Raster {
	t.Helper()
	g := raster.NewGrid(len(blue), 1, 0, 1, 30)
	r, err := raster.FromBands(g, time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), Landsat8.List(), map[string][]float64{
		"SR_B2": blue, "SR_B3": green, "SR_B4": red, "SR_B5": nir, "SR_B6": swir,
	})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestComputeOnRaster(t *testing.T) {
	r := scene(t,
		[]float64{0.1, 0.1},
		[]float64{0.3, 0.3},
		[]float64{0.2, 0},
		[]float64{0.6, 0},
		[]float64{0.1, 0.1},
	)

	out, err := Compute(r, NDVI, Landsat8)
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := out.Value("NDVI", 0); !ok || math.Abs(v-0.5) > epsilon {
		t.Errorf("NDVI[0] = %v, expected 0.5", v)
	}
	if _, ok := out.Value("NDVI", 1); ok {
		t.Error("NDVI with zero denominator should be invalid")
	}
	if len(out.Bands()) != 6 {
		t.Errorf("Compute should add exactly one band, got %v", out.Bands())
	}

	s2 := Sentinel2
	if _, err := Compute(r, NDVI, s2); !raster.IsMissingBand(err) {
		t.Errorf("error = %v, expected missing band", err)
	}
}

func TestWaterDetector(t *testing.T) {
	// pixel 0 is open water, pixel 1 dense vegetation
	r := scene(t,
		[]float64{0.05, 0.03},
		[]float64{0.08, 0.06},
		[]float64{0.04, 0.04},
		[]float64{0.02, 0.40},
		[]float64{0.01, 0.15},
	)

	w, err := Water(r, Landsat8)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := w.Value(WaterBand, 0); v != 1 {
		t.Errorf("water[0] = %v, expected 1", v)
	}
	if v, _ := w.Value(WaterBand, 1); v != 0 {
		t.Errorf("water[1] = %v, expected 0", v)
	}

	veg, err := Vegetation(r, Landsat8)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := veg.Value(VegetationBand, 1); v != 1 {
		t.Errorf("vegetation[1] = %v, expected 1", v)
	}
	if v, _ := veg.Value(VegetationBand, 0); v != 0 {
		t.Errorf("vegetation[0] = %v, expected 0", v)
	}
}

func TestWaterFrequency(t *testing.T) {
	wet := scene(t, []float64{0.05}, []float64{0.08}, []float64{0.04}, []float64{0.02}, []float64{0.01})
	dry := scene(t, []float64{0.03}, []float64{0.06}, []float64{0.04}, []float64{0.40}, []float64{0.15})
	c := raster.NewCollection(wet, dry, dry, dry)

	freq, err := WaterFrequency(context.Background(), local.New(0), c, Landsat8)
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := freq.Value(WaterBand, 0); v != 0.25 {
		t.Errorf("frequency = %v, expected 0.25", v)
	}
}

func TestForCollection(t *testing.T) {
	r := scene(t, []float64{0.1}, []float64{0.3}, []float64{0.2}, []float64{0.6}, []float64{0.1})
	c := raster.NewCollection(r, r)

	only, err := ForCollection(context.Background(), c, NDBI, Landsat8, false)
	if err != nil {
		t.Fatal(err)
	}
	if got := only.At(0).Bands(); len(got) != 1 || got[0] != "NDBI" {
		t.Errorf("bands = %v, expected [NDBI]", got)
	}

	all, _ := ForCollection(context.Background(), c, NDBI, Landsat8, true)
	if got := all.At(1).Bands(); len(got) != 6 {
		t.Errorf("bands = %v, expected 6 bands", got)
	}
}

func TestRoles(t *testing.T) {
	if _, err := FromList([]string{"a", "b"}); err == nil {
		t.Error("expected error for short band list")
	}
	r, err := Preset("Sentinel2")
	if err != nil || r.SWIR != "B11" {
		t.Errorf("Preset(Sentinel2) = %v, %v", r, err)
	}
	if err := (Roles{Blue: "B2"}).Validate(); err == nil {
		t.Error("expected validation error for unset roles")
	}
}
