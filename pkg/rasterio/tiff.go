// Package rasterio loads rasters and collections from local files: single-band
// TIFFs, scene archives of TIFF bands and NetCDF cubes.
package rasterio

import (
	"fmt"
	"image"
	"io"
	"math"

	"golang.org/x/image/tiff"
)

// Band is one decoded image plane
type Band struct {
	Width  int
	Height int
	Values []float64
}

// DecodeBand reads a single-band TIFF. Gray and Gray16 images keep their raw
// digital numbers; any other colour model is rejected. Pixels equal to nodata
// become NaN when nodata is non-nil.
func DecodeBand(r io.Reader, nodata *float64) (Band, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return Band{}, fmt.Errorf("decoding tiff: %w", err)
	}

	b := img.Bounds()
	out := Band{Width: b.Dx(), Height: b.Dy(), Values: make([]float64, b.Dx()*b.Dy())}

	switch g := img.(type) {
	case *image.Gray16:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Values[y*out.Width+x] = float64(g.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	case *image.Gray:
		for y := 0; y < out.Height; y++ {
			for x := 0; x < out.Width; x++ {
				out.Values[y*out.Width+x] = float64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
	default:
		return Band{}, fmt.Errorf("unsupported tiff colour model %T", img)
	}

	if nodata != nil {
		for i, v := range out.Values {
			if v == *nodata {
				out.Values[i] = math.NaN()
			}
		}
	}
	return out, nil
}
