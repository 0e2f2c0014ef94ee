// Package indices computes spectral indices and the water and vegetation
// detectors built on them.
package indices

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/chrissnell/statgis/pkg/raster"
)

// Index names a spectral index. The value is also the output band name.
type Index string

const (
	NDVI  Index = "NDVI"
	EVI   Index = "EVI"
	MNDWI Index = "mNDWI"
	NDBI  Index = "NDBI"
	NDWI  Index = "NDWI"
)

// Detector band names
const (
	WaterBand      = "WATER"
	VegetationBand = "VEGETATION"
)

// Detector thresholds
const (
	WaterEVIMax       = 0.1
	VegetationNDVIMin = 0.3
	VegetationEVIMin  = 0.1
)

// All lists every supported index
var All = []Index{NDVI, EVI, MNDWI, NDBI, NDWI}

// ParseIndex matches an index name case-insensitively
func ParseIndex(name string) (Index, error) {
	for _, idx := range All {
		if strings.EqualFold(string(idx), strings.TrimSpace(name)) {
			return idx, nil
		}
	}
	return "", fmt.Errorf("unknown index %q", name)
}

// NDVIValue is (nir - red) / (nir + red)
func NDVIValue(nir, red float64) float64 {
	return (nir - red) / (nir + red)
}

// EVIValue is 2.5 * (nir - red) / (nir + 6*red - 7.5*blue + 1)
func EVIValue(nir, red, blue float64) float64 {
	return (nir - red) / (nir + 6*red - 7.5*blue + 1) * 2.5
}

// MNDWIValue is (green - swir) / (green + swir)
func MNDWIValue(green, swir float64) float64 {
	return (green - swir) / (green + swir)
}

// NDBIValue is (swir - nir) / (swir + nir)
func NDBIValue(swir, nir float64) float64 {
	return (swir - nir) / (swir + nir)
}

// NDWIValue is (green - nir) / (green + nir)
func NDWIValue(green, nir float64) float64 {
	return (green - nir) / (green + nir)
}

// IsWater applies the water rule to index values:
// EVI < 0.1 and (mNDWI > EVI or mNDWI > NDVI)
func IsWater(ndvi, evi, mndwi float64) bool {
	return evi < WaterEVIMax && (mndwi > evi || mndwi > ndvi)
}

// IsVegetation applies the vegetation rule: NDVI >= 0.3 and EVI >= 0.1
func IsVegetation(ndvi, evi float64) bool {
	return ndvi >= VegetationNDVIMin && evi >= VegetationEVIMin
}

// inputs returns the band names idx reads, in the argument order of its
// scalar formula
func inputs(idx Index, roles Roles) ([]string, func(v []float64) float64, error) {
	switch idx {
	case NDVI:
		return []string{roles.NIR, roles.Red}, func(v []float64) float64 { return NDVIValue(v[0], v[1]) }, nil
	case EVI:
		return []string{roles.NIR, roles.Red, roles.Blue}, func(v []float64) float64 { return EVIValue(v[0], v[1], v[2]) }, nil
	case MNDWI:
		return []string{roles.Green, roles.SWIR}, func(v []float64) float64 { return MNDWIValue(v[0], v[1]) }, nil
	case NDBI:
		return []string{roles.SWIR, roles.NIR}, func(v []float64) float64 { return NDBIValue(v[0], v[1]) }, nil
	case NDWI:
		return []string{roles.Green, roles.NIR}, func(v []float64) float64 { return NDWIValue(v[0], v[1]) }, nil
	}
	return nil, nil, fmt.Errorf("unknown index %q", idx)
}

// Compute adds band idx to r. Pixels with an invalid input or a zero
// denominator come out NaN; a role naming a band r does not have is an error.
func Compute(r *raster.Raster, idx Index, roles Roles) (*raster.Raster, error) {
	names, fn, err := inputs(idx, roles)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		if n == "" {
			return nil, fmt.Errorf("%s needs a band role that is not set", idx)
		}
	}
	return r.Combine(string(idx), names, fn)
}

// Water adds the WATER band: 1 where the water rule holds, 0 elsewhere and
// NaN where an input is invalid.
func Water(r *raster.Raster, roles Roles) (*raster.Raster, error) {
	return r.Combine(WaterBand, []string{roles.NIR, roles.Red, roles.Blue, roles.Green, roles.SWIR}, func(v []float64) float64 {
		nir, red, blue, green, swir := v[0], v[1], v[2], v[3], v[4]
		ndvi, evi, mndwi := NDVIValue(nir, red), EVIValue(nir, red, blue), MNDWIValue(green, swir)
		if !finite(ndvi, evi, mndwi) {
			return math.NaN()
		}
		return boolValue(IsWater(ndvi, evi, mndwi))
	})
}

// Vegetation adds the VEGETATION band, encoded like WATER
func Vegetation(r *raster.Raster, roles Roles) (*raster.Raster, error) {
	return r.Combine(VegetationBand, []string{roles.NIR, roles.Red, roles.Blue}, func(v []float64) float64 {
		ndvi, evi := NDVIValue(v[0], v[1]), EVIValue(v[0], v[1], v[2])
		if !finite(ndvi, evi) {
			return math.NaN()
		}
		return boolValue(IsVegetation(ndvi, evi))
	})
}

// ForCollection computes idx on every element. With addBands the index is
// appended to each raster; otherwise each element keeps only the index band.
func ForCollection(ctx context.Context, c *raster.Collection, idx Index, roles Roles, addBands bool) (*raster.Collection, error) {
	return c.Map(ctx, func(r *raster.Raster) (*raster.Raster, error) {
		out, err := Compute(r, idx, roles)
		if err != nil {
			return nil, err
		}
		if addBands {
			return out, nil
		}
		return out.Select(string(idx))
	})
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
