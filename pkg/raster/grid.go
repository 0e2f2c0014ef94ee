// Package raster holds the immutable multi-band raster and time-ordered
// collection types that every analysis stage consumes and produces.
package raster

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Grid describes the pixel lattice shared by every band of a Raster.
// OriginX/OriginY is the upper-left corner; rows advance southwards.
type Grid struct {
	Width       int     `json:"width" yaml:"width"`
	Height      int     `json:"height" yaml:"height"`
	OriginX     float64 `json:"origin_x" yaml:"origin-x"`
	OriginY     float64 `json:"origin_y" yaml:"origin-y"`
	PixelWidth  float64 `json:"pixel_width" yaml:"pixel-width"`
	PixelHeight float64 `json:"pixel_height" yaml:"pixel-height"`

	// Geographic grids are in degrees of longitude and latitude; all others
	// are taken to be in metres.
	Geographic bool `json:"geographic,omitempty" yaml:"geographic,omitempty"`
}

// metresPerDegree is the length of one degree of latitude
const metresPerDegree = 111320.0

// NewGrid returns a grid anchored at (originX, originY) with square pixels.
func NewGrid(width, height int, originX, originY, pixelSize float64) Grid {
	return Grid{
		Width:       width,
		Height:      height,
		OriginX:     originX,
		OriginY:     originY,
		PixelWidth:  pixelSize,
		PixelHeight: pixelSize,
	}
}

// Validate checks that the grid has a positive size and pixel dimensions
func (g Grid) Validate() error {
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("invalid grid size %dx%d", g.Width, g.Height)
	}
	if g.PixelWidth <= 0 || g.PixelHeight <= 0 {
		return fmt.Errorf("invalid pixel size %gx%g", g.PixelWidth, g.PixelHeight)
	}
	return nil
}

// Size returns the number of pixels in the grid
func (g Grid) Size() int {
	return g.Width * g.Height
}

// Index converts a column/row pair to a flat pixel index
func (g Grid) Index(col, row int) int {
	return row*g.Width + col
}

// Center returns the map coordinate of the center of pixel (col, row)
func (g Grid) Center(col, row int) orb.Point {
	return orb.Point{
		g.OriginX + (float64(col)+0.5)*g.PixelWidth,
		g.OriginY - (float64(row)+0.5)*g.PixelHeight,
	}
}

// Locate returns the pixel containing p
func (g Grid) Locate(p orb.Point) (col, row int, ok bool) {
	c := math.Floor((p[0] - g.OriginX) / g.PixelWidth)
	r := math.Floor((g.OriginY - p[1]) / g.PixelHeight)
	if c < 0 || r < 0 || c >= float64(g.Width) || r >= float64(g.Height) {
		return 0, 0, false
	}
	return int(c), int(r), true
}

// Bound returns the map extent covered by the grid
func (g Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.OriginX, g.OriginY - float64(g.Height)*g.PixelHeight},
		Max: orb.Point{g.OriginX + float64(g.Width)*g.PixelWidth, g.OriginY},
	}
}

// FromMetres converts a ground distance to grid units. Geographic grids
// measure it along the parallel through the grid's centre.
func (g Grid) FromMetres(m float64) float64 {
	if !g.Geographic {
		return m
	}
	lat := g.OriginY - float64(g.Height)*g.PixelHeight/2
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 1e-6 {
		cos = 1e-6
	}
	return m / (metresPerDegree * cos)
}

// Equal reports whether two grids describe the same lattice
func (g Grid) Equal(o Grid) bool {
	return g == o
}
