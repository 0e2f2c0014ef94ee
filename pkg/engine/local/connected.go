package local

import (
	"context"
	"math"

	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/raster"
)

var (
	fourNeighbours  = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	eightNeighbours = [][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}, {1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// ConnectedPixelCount implements engine.Engine. Patches are groups of valid
// pixels holding exactly the same value; invalid pixels come out NaN.
func (e *Engine) ConnectedPixelCount(ctx context.Context, r *raster.Raster, band string, maxSize int, eightConnected bool) (*raster.Raster, error) {
	if _, err := r.Band(band); err != nil {
		return nil, err
	}

	g := r.Grid()
	n := g.Size()
	counts := make([]float64, n)
	label := make([]int, n)
	for i := range label {
		label[i] = -1
	}

	steps := fourNeighbours
	if eightConnected {
		steps = eightNeighbours
	}

	var sizes []int
	queue := make([]int, 0, 64)
	for start := 0; start < n; start++ {
		if label[start] >= 0 {
			continue
		}
		v, ok := r.Value(band, start)
		if !ok {
			counts[start] = math.NaN()
			continue
		}
		if start%g.Width == 0 {
			if err := ctx.Err(); err != nil {
				return nil, engine.Wrap("connectedPixelCount", err)
			}
		}

		id := len(sizes)
		size := 0
		label[start] = id
		queue = append(queue[:0], start)
		for len(queue) > 0 {
			p := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			size++
			col, row := p%g.Width, p/g.Width
			for _, s := range steps {
				c, rr := col+s[0], row+s[1]
				if c < 0 || rr < 0 || c >= g.Width || rr >= g.Height {
					continue
				}
				q := g.Index(c, rr)
				if label[q] >= 0 {
					continue
				}
				if w, ok := r.Value(band, q); ok && w == v {
					label[q] = id
					queue = append(queue, q)
				}
			}
		}
		sizes = append(sizes, size)
	}

	for i := range counts {
		if label[i] < 0 {
			continue
		}
		size := sizes[label[i]]
		if maxSize > 0 && size > maxSize {
			size = maxSize
		}
		counts[i] = float64(size)
	}
	return r.WithBand(band, counts)
}
