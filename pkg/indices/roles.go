package indices

import (
	"fmt"
	"strings"
)

// Roles maps the spectral roles used by the index formulas to the band names
// of a particular sensor.
type Roles struct {
	Blue  string `json:"blue" yaml:"blue"`
	Green string `json:"green" yaml:"green"`
	Red   string `json:"red" yaml:"red"`
	NIR   string `json:"nir" yaml:"nir"`
	SWIR  string `json:"swir" yaml:"swir"`
}

// Role presets for the supported sensors
var (
	Landsat8  = Roles{Blue: "SR_B2", Green: "SR_B3", Red: "SR_B4", NIR: "SR_B5", SWIR: "SR_B6"}
	Landsat7  = Roles{Blue: "SR_B1", Green: "SR_B2", Red: "SR_B3", NIR: "SR_B4", SWIR: "SR_B5"}
	Sentinel2 = Roles{Blue: "B2", Green: "B3", Red: "B4", NIR: "B8", SWIR: "B11"}
)

var presets = map[string]Roles{
	"landsat8":  Landsat8,
	"landsat9":  Landsat8,
	"landsat7":  Landsat7,
	"landsat5":  Landsat7,
	"sentinel2": Sentinel2,
}

// Preset returns the roles for a sensor name such as "landsat8" or "sentinel2"
func Preset(sensor string) (Roles, error) {
	r, ok := presets[strings.ToLower(strings.TrimSpace(sensor))]
	if !ok {
		return Roles{}, fmt.Errorf("no band roles for sensor %q", sensor)
	}
	return r, nil
}

// FromList builds roles from band names in blue, green, red, nir, swir order
func FromList(bands []string) (Roles, error) {
	if len(bands) != 5 {
		return Roles{}, fmt.Errorf("expected 5 bands (blue, green, red, nir, swir), got %d", len(bands))
	}
	return Roles{Blue: bands[0], Green: bands[1], Red: bands[2], NIR: bands[3], SWIR: bands[4]}, nil
}

// List returns the band names in blue, green, red, nir, swir order
func (r Roles) List() []string {
	return []string{r.Blue, r.Green, r.Red, r.NIR, r.SWIR}
}

// Validate reports roles left unset
func (r Roles) Validate() error {
	names := []string{"blue", "green", "red", "nir", "swir"}
	for i, b := range r.List() {
		if b == "" {
			return fmt.Errorf("band role %s is not set", names[i])
		}
	}
	return nil
}
