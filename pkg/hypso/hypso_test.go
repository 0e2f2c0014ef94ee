package hypso

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/chrissnell/statgis/pkg/engine/local"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/paulmach/orb"
)

// 4x4 DEM with elevations 1..16, row by row from the north-west corner
func dem(t *testing.T) *raster.Raster {
	t.Helper()
	g := raster.NewGrid(4, 4, 0, 4, 1)
	z := make([]float64, 16)
	for i := range z {
		z[i] = float64(i + 1)
	}
	r, err := raster.FromBands(g, time.Time{}, []string{"elevation"}, map[string][]float64{"elevation": z})
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name           string
		catchment      orb.Geometry
		samples        int
		expectedArea   []float64
		expectedHeight []float64
	}{
		{
			name:           "whole grid",
			samples:        4,
			expectedArea:   []float64{1, 0.75, 0.5, 0.25, 0},
			expectedHeight: []float64{0, 0.125, 0.375, 0.625, 0.875},
		},
		{
			// south half: elevations 9..16
			name:           "south half",
			catchment:      orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 2}},
			samples:        2,
			expectedArea:   []float64{1, 0.5, 0},
			expectedHeight: []float64{0, 0.25, 0.75},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Compute(context.Background(), local.New(0), dem(t), "elevation", tt.catchment, Options{Samples: tt.samples})
			if err != nil {
				t.Fatal(err)
			}
			if len(c.Area) != tt.samples+1 || len(c.Height) != tt.samples+1 {
				t.Fatalf("lengths = %d/%d, expected %d", len(c.Area), len(c.Height), tt.samples+1)
			}
			for i := range tt.expectedArea {
				if math.Abs(c.Area[i]-tt.expectedArea[i]) > 1e-12 {
					t.Errorf("Area[%d] = %v, expected %v", i, c.Area[i], tt.expectedArea[i])
				}
				if math.Abs(c.Height[i]-tt.expectedHeight[i]) > 1e-12 {
					t.Errorf("Height[%d] = %v, expected %v", i, c.Height[i], tt.expectedHeight[i])
				}
			}
		})
	}
}

func TestComputeMonotonic(t *testing.T) {
	c, err := Compute(context.Background(), local.New(0), dem(t), "elevation", nil, Options{Samples: 7})
	if err != nil {
		t.Fatal(err)
	}
	if c.Area[0] != 1 || c.Height[0] != 0 {
		t.Errorf("first point = (%v, %v), expected (1, 0)", c.Area[0], c.Height[0])
	}
	// the remaining area shrinks as the elevation ceiling rises
	for i := 1; i < len(c.Area); i++ {
		if c.Area[i] > c.Area[i-1] {
			t.Errorf("Area[%d] = %v rises above Area[%d] = %v", i, c.Area[i], i-1, c.Area[i-1])
		}
		if c.Height[i] <= c.Height[i-1] {
			t.Errorf("Height[%d] = %v does not rise", i, c.Height[i])
		}
	}
}

func TestComputeErrors(t *testing.T) {
	eng := local.New(0)

	if _, err := Compute(context.Background(), eng, dem(t), "dem", nil, Options{}); !raster.IsMissingBand(err) {
		t.Errorf("error = %v, expected missing band", err)
	}

	outside := orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{12, 12}}
	if _, err := Compute(context.Background(), eng, dem(t), "elevation", outside, Options{}); err == nil {
		t.Error("expected error for a catchment with no pixels")
	}

	if _, err := Compute(context.Background(), eng, dem(t), "elevation", nil, Options{Samples: -1}); err == nil {
		t.Error("expected error for negative samples")
	}
}
