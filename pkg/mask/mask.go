// Package mask invalidates pixels flagged by sensor quality bands.
//
// Every mask is applied with raster.UpdateMask, so masks combine with AND:
// applying several in any order yields the same validity, and applying one
// twice changes nothing.
package mask

import (
	"fmt"
	"math"

	"github.com/chrissnell/statgis/pkg/raster"
)

// Quality band names
const (
	LandsatQA         = "QA_PIXEL"
	SentinelQA        = "QA60"
	SentinelCloudProb = "MSK_CLDPRB"
)

// Landsat Collection 2 QA_PIXEL bits
const (
	LandsatCirrusBit = 2
	LandsatCloudBit  = 3
	LandsatShadowBit = 4
	LandsatSnowBit   = 5
)

// Sentinel-2 QA60 bits
const (
	SentinelOpaqueCloudBit = 10
	SentinelCirrusBit      = 11
)

// DefaultProbability is the cloud probability threshold used by Sentinel
const DefaultProbability = 20

// BitsValid returns the validity map for a quality band: a pixel is valid
// when every listed bit is 0. Pixels with an invalid quality value are
// invalid.
func BitsValid(r *raster.Raster, qaBand string, bits ...uint) ([]bool, error) {
	qa, err := r.Band(qaBand)
	if err != nil {
		return nil, err
	}
	var flags uint64
	for _, b := range bits {
		flags |= 1 << b
	}

	valid := make([]bool, len(qa))
	for i, v := range qa {
		if math.IsNaN(v) || !r.Valid(i) {
			continue
		}
		valid[i] = uint64(v)&flags == 0
	}
	return valid, nil
}

// Bits masks every pixel whose quality band has any of the given bits set
func Bits(r *raster.Raster, qaBand string, bits ...uint) (*raster.Raster, error) {
	valid, err := BitsValid(r, qaBand, bits...)
	if err != nil {
		return nil, err
	}
	return r.UpdateMask(valid)
}

// Threshold masks every pixel whose band value exceeds limit
func Threshold(r *raster.Raster, band string, limit float64) (*raster.Raster, error) {
	d, err := r.Band(band)
	if err != nil {
		return nil, err
	}
	valid := make([]bool, len(d))
	for i, v := range d {
		valid[i] = !math.IsNaN(v) && v <= limit
	}
	return r.UpdateMask(valid)
}

// LandsatCloud masks Landsat Collection 2 pixels flagged in QA_PIXEL. With
// all set, cirrus, cloud, cloud shadow and snow are masked; otherwise only
// cloud.
func LandsatCloud(r *raster.Raster, all bool) (*raster.Raster, error) {
	if all {
		return Bits(r, LandsatQA, LandsatCirrusBit, LandsatCloudBit, LandsatShadowBit, LandsatSnowBit)
	}
	return Bits(r, LandsatQA, LandsatCloudBit)
}

// SentinelCloud masks Sentinel-2 pixels flagged as opaque cloud or cirrus in QA60
func SentinelCloud(r *raster.Raster) (*raster.Raster, error) {
	return Bits(r, SentinelQA, SentinelOpaqueCloudBit, SentinelCirrusBit)
}

// Probability masks Sentinel-2 pixels whose cloud probability is above
// threshold percent.
func Probability(r *raster.Raster, threshold float64) (*raster.Raster, error) {
	return Threshold(r, SentinelCloudProb, threshold)
}

// Scheme names a predefined mask for configuration files
type Scheme string

const (
	NoMask              Scheme = "none"
	LandsatAll          Scheme = "landsat"
	LandsatCloudOnly    Scheme = "landsat-cloud"
	Sentinel            Scheme = "sentinel"
	SentinelProbability Scheme = "sentinel-probability"
)

// ParseScheme validates a scheme name. An empty name means no mask.
func ParseScheme(name string) (Scheme, error) {
	switch s := Scheme(name); s {
	case "":
		return NoMask, nil
	case NoMask, LandsatAll, LandsatCloudOnly, Sentinel, SentinelProbability:
		return s, nil
	}
	return "", fmt.Errorf("unknown mask scheme %q", name)
}

// Apply masks r with the scheme. threshold is only read by
// sentinel-probability; zero selects DefaultProbability.
func (s Scheme) Apply(r *raster.Raster, threshold float64) (*raster.Raster, error) {
	switch s {
	case NoMask, "":
		return r, nil
	case LandsatAll:
		return LandsatCloud(r, true)
	case LandsatCloudOnly:
		return LandsatCloud(r, false)
	case Sentinel:
		return SentinelCloud(r)
	case SentinelProbability:
		if threshold == 0 {
			threshold = DefaultProbability
		}
		return Probability(r, threshold)
	}
	return nil, fmt.Errorf("unknown mask scheme %q", s)
}
