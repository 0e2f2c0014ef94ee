package local

import (
	"fmt"
	"math"

	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// footprint marks the pixels of g covered by region. A pixel belongs to an
// areal geometry when its center is inside it; a point selects the pixel that
// contains it. A nil region covers the whole grid.
func footprint(g raster.Grid, region orb.Geometry) ([]bool, error) {
	fp := make([]bool, g.Size())
	if region == nil {
		for i := range fp {
			fp[i] = true
		}
		return fp, nil
	}
	if err := mark(g, region, fp); err != nil {
		return nil, err
	}
	return fp, nil
}

func mark(g raster.Grid, region orb.Geometry, fp []bool) error {
	switch geom := region.(type) {
	case orb.Point:
		if col, row, ok := g.Locate(geom); ok {
			fp[g.Index(col, row)] = true
		}
	case orb.MultiPoint:
		for _, p := range geom {
			if err := mark(g, p, fp); err != nil {
				return err
			}
		}
	case orb.Bound:
		markArea(g, geom, fp, geom.Contains)
	case orb.Ring:
		markArea(g, geom.Bound(), fp, func(p orb.Point) bool { return planar.RingContains(geom, p) })
	case orb.Polygon:
		markArea(g, geom.Bound(), fp, func(p orb.Point) bool { return planar.PolygonContains(geom, p) })
	case orb.MultiPolygon:
		markArea(g, geom.Bound(), fp, func(p orb.Point) bool { return planar.MultiPolygonContains(geom, p) })
	case orb.Collection:
		for _, child := range geom {
			if err := mark(g, child, fp); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported region geometry %s", region.GeoJSONType())
	}
	return nil
}

func markArea(g raster.Grid, b orb.Bound, fp []bool, contains func(orb.Point) bool) {
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			c := g.Center(col, row)
			if !b.Contains(c) {
				continue
			}
			if contains(c) {
				fp[g.Index(col, row)] = true
			}
		}
	}
}

// stride returns the nearest-neighbour step for a nominal pixel size
func stride(g raster.Grid, scale float64) int {
	if scale <= 0 || g.PixelWidth <= 0 {
		return 1
	}
	k := int(math.Round(scale / g.PixelWidth))
	if k < 1 {
		return 1
	}
	return k
}

// resample keeps one footprint pixel per nominal cell of k x k native
// pixels: the first covered pixel in row-major order, which is the cell's
// upper-left pixel whenever that one is covered. Every cell the region
// touches contributes exactly once.
func resample(g raster.Grid, fp []bool, k int) []bool {
	if k == 1 {
		return fp
	}
	cellsX := (g.Width + k - 1) / k
	cellsY := (g.Height + k - 1) / k
	taken := make([]bool, cellsX*cellsY)

	out := make([]bool, len(fp))
	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			i := g.Index(col, row)
			if !fp[i] {
				continue
			}
			cell := (row/k)*cellsX + col/k
			if taken[cell] {
				continue
			}
			taken[cell] = true
			out[i] = true
		}
	}
	return out
}
