package rasterio

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/chrissnell/statgis/pkg/raster"
)

// CubeOptions selects what is read from a NetCDF cube
type CubeOptions struct {
	// Variables to load as bands; empty loads every variable shaped
	// (time, y, x)
	Variables []string `json:"variables,omitempty" yaml:"variables,omitempty"`

	// TimeVar names the time coordinate, "time" by default
	TimeVar string `json:"time_var,omitempty" yaml:"time-var,omitempty"`

	// Georef is used when the file has no x/y (or lon/lat) coordinates
	Georef *Georef `json:"georef,omitempty" yaml:"georef,omitempty"`
}

type variable struct {
	values interface{}
	dims   []string
	attrs  map[string]interface{}
}

// source is the subset of a NetCDF group the cube reader needs
type source interface {
	names() []string
	variable(name string) (*variable, error)
}

type group struct {
	g api.Group
}

func (s group) names() []string {
	return s.g.ListVariables()
}

func (s group) variable(name string) (*variable, error) {
	v, err := s.g.GetVariable(name)
	if err != nil {
		return nil, fmt.Errorf("reading variable %s: %w", name, err)
	}
	out := &variable{values: v.Values, dims: v.Dimensions, attrs: map[string]interface{}{}}
	if v.Attributes != nil {
		for _, k := range v.Attributes.Keys() {
			if a, ok := v.Attributes.Get(k); ok {
				out.attrs[k] = a
			}
		}
	}
	return out, nil
}

// ReadNetCDF loads a (time, y, x) cube as a collection with one raster per
// time step.
func ReadNetCDF(path string, opts CubeOptions) (*raster.Collection, error) {
	nc, err := netcdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer nc.Close()

	c, err := readCube(group{g: nc}, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func readCube(src source, opts CubeOptions) (*raster.Collection, error) {
	timeVar := opts.TimeVar
	if timeVar == "" {
		timeVar = "time"
	}

	tv, err := src.variable(timeVar)
	if err != nil {
		return nil, err
	}
	times, err := decodeTimes(tv)
	if err != nil {
		return nil, err
	}

	bands := opts.Variables
	if len(bands) == 0 {
		for _, name := range src.names() {
			v, err := src.variable(name)
			if err != nil {
				return nil, err
			}
			if len(v.dims) == 3 && v.dims[0] == timeVar {
				bands = append(bands, name)
			}
		}
	}
	if len(bands) == 0 {
		return nil, fmt.Errorf("no (%s, y, x) variables found", timeVar)
	}

	cubes := make(map[string][]float64, len(bands))
	var shape []int
	var dims []string
	for _, name := range bands {
		v, err := src.variable(name)
		if err != nil {
			return nil, err
		}
		values, s, err := flatten(v.values)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		if len(s) != 3 || s[0] != len(times) {
			return nil, fmt.Errorf("variable %s has shape %v, expected (%d, y, x)", name, s, len(times))
		}
		if shape == nil {
			shape, dims = s, v.dims
		} else if !reflect.DeepEqual(shape, s) {
			return nil, fmt.Errorf("variable %s has shape %v, other bands have %v", name, s, shape)
		}
		if fill, ok := number(v.attrs["_FillValue"]); ok {
			for i, x := range values {
				if x == fill {
					values[i] = math.NaN()
				}
			}
		}
		cubes[name] = values
	}

	height, width := shape[1], shape[2]
	grid, flip, err := cubeGrid(src, dims, width, height, opts.Georef)
	if err != nil {
		return nil, err
	}

	plane := width * height
	items := make([]*raster.Raster, len(times))
	for t, at := range times {
		data := make(map[string][]float64, len(bands))
		for _, name := range bands {
			step := cubes[name][t*plane : (t+1)*plane]
			if flip {
				step = flipRows(step, width, height)
			}
			data[name] = step
		}
		r, err := raster.FromBands(grid, at, bands, data)
		if err != nil {
			return nil, err
		}
		items[t] = r
	}
	return raster.NewCollection(items...).Sort(), nil
}

// cubeGrid derives the grid from the y and x coordinate variables named by
// the last two dimensions. flip is set when y increases northwards.
func cubeGrid(src source, dims []string, width, height int, geo *Georef) (raster.Grid, bool, error) {
	if len(dims) == 3 {
		xs, xerr := coordinate(src, dims[2], width)
		ys, yerr := coordinate(src, dims[1], height)
		if xerr == nil && yerr == nil && width > 1 && height > 1 {
			dx := xs[1] - xs[0]
			dy := ys[0] - ys[1]
			flip := false
			if dy < 0 {
				flip = true
				dy = -dy
				ys[0] = ys[height-1]
			}
			if dx <= 0 {
				return raster.Grid{}, false, fmt.Errorf("x coordinate %s must increase", dims[2])
			}
			g := raster.Grid{
				Width:       width,
				Height:      height,
				OriginX:     xs[0] - dx/2,
				OriginY:     ys[0] + dy/2,
				PixelWidth:  dx,
				PixelHeight: dy,
				Geographic:  geographic(dims[2]) && geographic(dims[1]),
			}
			if geo != nil && geo.Geographic {
				g.Geographic = true
			}
			return g, flip, g.Validate()
		}
	}
	if geo == nil {
		return raster.Grid{}, false, fmt.Errorf("cube has no usable x/y coordinates and no georef was given")
	}
	return geo.grid(width, height), false, nil
}

// geographic reports whether a coordinate variable is named as longitude or
// latitude
func geographic(name string) bool {
	switch strings.ToLower(name) {
	case "lon", "long", "longitude", "lat", "latitude":
		return true
	}
	return false
}

func coordinate(src source, name string, n int) ([]float64, error) {
	v, err := src.variable(name)
	if err != nil {
		return nil, err
	}
	values, shape, err := flatten(v.values)
	if err != nil {
		return nil, err
	}
	if len(shape) != 1 || shape[0] != n {
		return nil, fmt.Errorf("coordinate %s has shape %v, expected (%d)", name, shape, n)
	}
	return values, nil
}

func flipRows(data []float64, width, height int) []float64 {
	out := make([]float64, len(data))
	for row := 0; row < height; row++ {
		copy(out[row*width:(row+1)*width], data[(height-1-row)*width:(height-row)*width])
	}
	return out
}

// flatten turns nested numeric slices into a flat row-major slice and its
// shape
func flatten(v interface{}) ([]float64, []int, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, nil, fmt.Errorf("expected an array, got %T", v)
	}

	var shape []int
	for t := rv; t.Kind() == reflect.Slice; {
		shape = append(shape, t.Len())
		if t.Len() == 0 {
			break
		}
		t = t.Index(0)
	}

	out := make([]float64, 0, product(shape))
	var walk func(reflect.Value, int) error
	walk = func(x reflect.Value, depth int) error {
		if depth < len(shape) {
			if x.Kind() != reflect.Slice || x.Len() != shape[depth] {
				return fmt.Errorf("ragged array at depth %d", depth)
			}
			for i := 0; i < x.Len(); i++ {
				if err := walk(x.Index(i), depth+1); err != nil {
					return err
				}
			}
			return nil
		}
		f, ok := number(x.Interface())
		if !ok {
			return fmt.Errorf("unsupported element type %s", x.Type())
		}
		out = append(out, f)
		return nil
	}
	if err := walk(rv, 0); err != nil {
		return nil, nil, err
	}
	return out, shape, nil
}

func product(shape []int) int {
	n := 1
	for _, s := range shape {
		n *= s
	}
	return n
}

func number(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case []float64:
		if len(x) == 1 {
			return x[0], true
		}
	case []float32:
		if len(x) == 1 {
			return float64(x[0]), true
		}
	}
	return 0, false
}

var timeUnits = map[string]time.Duration{
	"milliseconds": time.Millisecond,
	"seconds":      time.Second,
	"minutes":      time.Minute,
	"hours":        time.Hour,
	"days":         24 * time.Hour,
}

var referenceLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTimeUnits reads CF-style units such as "days since 1970-01-01"
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	unit, ref, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return 0, time.Time{}, fmt.Errorf("time units %q are not of the form '<unit> since <date>'", units)
	}
	d, ok := timeUnits[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return 0, time.Time{}, fmt.Errorf("unsupported time unit %q", unit)
	}
	ref = strings.TrimSuffix(strings.TrimSpace(ref), " UTC")
	for _, layout := range referenceLayouts {
		if t, err := time.Parse(layout, ref); err == nil {
			return d, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("cannot parse reference date %q", ref)
}

// decodeTimes converts the time coordinate. Without a units attribute values
// are taken as epoch milliseconds.
func decodeTimes(v *variable) ([]time.Time, error) {
	values, shape, err := flatten(v.values)
	if err != nil {
		return nil, fmt.Errorf("time coordinate: %w", err)
	}
	if len(shape) != 1 {
		return nil, fmt.Errorf("time coordinate has shape %v", shape)
	}

	unit, ref := time.Millisecond, time.UnixMilli(0).UTC()
	if u, ok := v.attrs["units"].(string); ok {
		unit, ref, err = parseTimeUnits(u)
		if err != nil {
			return nil, err
		}
	}

	out := make([]time.Time, len(values))
	for i, x := range values {
		out[i] = ref.Add(time.Duration(x * float64(unit)))
	}
	return out, nil
}
