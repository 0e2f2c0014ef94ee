// Package scale converts raw sensor digital numbers to physical units.
package scale

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/chrissnell/statgis/pkg/raster"
)

// Group is an affine transform applied to every band whose name matches Bands
type Group struct {
	Name   string
	Bands  *regexp.Regexp
	Factor float64
	Offset float64
}

// Apply returns v*Factor + Offset
func (g Group) Apply(v float64) float64 {
	return v*g.Factor + g.Offset
}

// Sensor is a named set of band groups. Groups must select disjoint bands;
// bands no group selects are left untouched.
type Sensor struct {
	Name   string
	Groups []Group
}

var (
	// Landsat is Landsat Collection 2 Level-2 surface reflectance and
	// surface temperature
	Landsat = Sensor{
		Name: "landsat",
		Groups: []Group{
			{Name: "optical", Bands: regexp.MustCompile(`^SR_B.$`), Factor: 0.0000275, Offset: -0.2},
			{Name: "thermal", Bands: regexp.MustCompile(`^ST_B.*$`), Factor: 0.00341802, Offset: 149},
		},
	}

	// Sentinel2 is Sentinel-2 surface reflectance
	Sentinel2 = Sensor{
		Name: "sentinel2",
		Groups: []Group{
			{Name: "optical", Bands: regexp.MustCompile(`^B.*$`), Factor: 0.0001},
		},
	}
)

// Lookup returns a predefined sensor by name
func Lookup(name string) (Sensor, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "landsat", "landsat8", "landsat9", "landsat7", "landsat5":
		return Landsat, nil
	case "sentinel2", "sentinel":
		return Sentinel2, nil
	}
	return Sensor{}, fmt.Errorf("no scaling defined for sensor %q", name)
}

// Apply rescales every band selected by the sensor's groups and returns the
// new raster. The mask and band order are preserved.
func Apply(r *raster.Raster, s Sensor) (*raster.Raster, error) {
	out := r
	seen := map[string]string{}
	for _, g := range s.Groups {
		for _, band := range r.Matching(g.Bands) {
			if prev, ok := seen[band]; ok {
				return nil, fmt.Errorf("band %s selected by both %s and %s groups", band, prev, g.Name)
			}
			seen[band] = g.Name

			var err error
			out, err = out.Combine(band, []string{band}, func(v []float64) float64 {
				return g.Apply(v[0])
			})
			if err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
