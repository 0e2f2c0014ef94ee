package raster

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"time"
)

// Well-known property keys
const (
	PropMonth = "month"
	PropYear  = "year"
)

// Raster is an immutable set of named bands over a Grid. Every method that
// changes something returns a new Raster; band slices may be shared between
// rasters and must never be written to after construction.
//
// A pixel is invalid when the raster mask excludes it or when the band value
// is NaN. Masking only marks pixels invalid; the grid and band set never shrink.
type Raster struct {
	grid  Grid
	time  time.Time
	names []string
	bands map[string][]float64
	mask  []bool
	props map[string]float64
}

// New returns a raster with no bands. A zero t means the raster carries no
// acquisition timestamp.
func New(grid Grid, t time.Time) *Raster {
	return &Raster{
		grid:  grid,
		time:  t,
		bands: map[string][]float64{},
		props: map[string]float64{},
	}
}

// FromBands builds a raster from a set of bands, added in the order given by names
func FromBands(grid Grid, t time.Time, names []string, data map[string][]float64) (*Raster, error) {
	r := New(grid, t)
	var err error
	for _, name := range names {
		d, ok := data[name]
		if !ok {
			return nil, &MissingBandError{Band: name, Available: sortedKeys(data)}
		}
		r, err = r.WithBand(name, d)
		if err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Raster) clone() *Raster {
	c := &Raster{
		grid:  r.grid,
		time:  r.time,
		names: append([]string(nil), r.names...),
		bands: make(map[string][]float64, len(r.bands)),
		mask:  r.mask,
		props: make(map[string]float64, len(r.props)),
	}
	for k, v := range r.bands {
		c.bands[k] = v
	}
	for k, v := range r.props {
		c.props[k] = v
	}
	return c
}

// Grid returns the pixel lattice of the raster
func (r *Raster) Grid() Grid {
	return r.grid
}

// Time returns the acquisition timestamp, which is zero when absent
func (r *Raster) Time() time.Time {
	return r.time
}

// HasTime reports whether the raster carries an acquisition timestamp
func (r *Raster) HasTime() bool {
	return !r.time.IsZero()
}

// TimeMillis returns the acquisition time in milliseconds since the Unix epoch
func (r *Raster) TimeMillis() (int64, error) {
	if !r.HasTime() {
		return 0, ErrMissingTimestamp
	}
	return r.time.UnixMilli(), nil
}

// Month returns the calendar month of the acquisition time in UTC
func (r *Raster) Month() (time.Month, error) {
	if !r.HasTime() {
		return 0, ErrMissingTimestamp
	}
	return r.time.UTC().Month(), nil
}

// Year returns the calendar year of the acquisition time in UTC
func (r *Raster) Year() (int, error) {
	if !r.HasTime() {
		return 0, ErrMissingTimestamp
	}
	return r.time.UTC().Year(), nil
}

// Bands returns the band names in order
func (r *Raster) Bands() []string {
	return append([]string(nil), r.names...)
}

// HasBand reports whether the band exists
func (r *Raster) HasBand(name string) bool {
	_, ok := r.bands[name]
	return ok
}

// Band returns the raw values of a band. The returned slice is shared and must
// be treated as read-only. Masked pixels keep their stored value; use Value or
// ValidMask to honour the mask.
func (r *Raster) Band(name string) ([]float64, error) {
	d, ok := r.bands[name]
	if !ok {
		return nil, &MissingBandError{Band: name, Available: r.Bands()}
	}
	return d, nil
}

// Valid reports whether pixel i passes the raster mask
func (r *Raster) Valid(i int) bool {
	return r.mask == nil || r.mask[i]
}

// Value returns the value of pixel i in band name and whether it is valid
func (r *Raster) Value(name string, i int) (float64, bool) {
	d, ok := r.bands[name]
	if !ok || !r.Valid(i) {
		return math.NaN(), false
	}
	v := d[i]
	if math.IsNaN(v) {
		return v, false
	}
	return v, true
}

// ValidMask returns a fresh per-pixel validity map for band name
func (r *Raster) ValidMask(name string) ([]bool, error) {
	d, err := r.Band(name)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(d))
	for i, v := range d {
		out[i] = r.Valid(i) && !math.IsNaN(v)
	}
	return out, nil
}

// Masked returns a copy of band name with every invalid pixel set to NaN
func (r *Raster) Masked(name string) ([]float64, error) {
	d, err := r.Band(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(d))
	for i, v := range d {
		if r.Valid(i) {
			out[i] = v
		} else {
			out[i] = math.NaN()
		}
	}
	return out, nil
}

// WithBand returns a copy of r with band name set to data. An existing band of
// the same name is replaced in place; otherwise the band is appended.
func (r *Raster) WithBand(name string, data []float64) (*Raster, error) {
	if len(data) != r.grid.Size() {
		return nil, fmt.Errorf("band %q has %d pixels, grid has %d", name, len(data), r.grid.Size())
	}
	c := r.clone()
	if _, ok := c.bands[name]; !ok {
		c.names = append(c.names, name)
	}
	c.bands[name] = data
	return c, nil
}

// AddBands copies the named bands of other into r (all bands when names is
// empty). Pixels invalid in other arrive as NaN so that other's mask follows
// its bands. Existing bands are overwritten.
func (r *Raster) AddBands(other *Raster, names ...string) (*Raster, error) {
	if !r.grid.Equal(other.grid) {
		return nil, ErrGridMismatch
	}
	if len(names) == 0 {
		names = other.names
	}
	out := r
	for _, name := range names {
		d, err := other.Masked(name)
		if err != nil {
			return nil, err
		}
		out, err = out.WithBand(name, d)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Select returns a raster holding only the named bands, in the order given
func (r *Raster) Select(names ...string) (*Raster, error) {
	c := r.clone()
	c.names = make([]string, 0, len(names))
	c.bands = make(map[string][]float64, len(names))
	for _, name := range names {
		d, ok := r.bands[name]
		if !ok {
			return nil, &MissingBandError{Band: name, Available: r.Bands()}
		}
		if _, dup := c.bands[name]; dup {
			continue
		}
		c.names = append(c.names, name)
		c.bands[name] = d
	}
	return c, nil
}

// Matching returns the band names that match pattern, in band order
func (r *Raster) Matching(pattern *regexp.Regexp) []string {
	var out []string
	for _, name := range r.names {
		if pattern.MatchString(name) {
			out = append(out, name)
		}
	}
	return out
}

// Rename selects the native bands and gives them new names, pairwise
func (r *Raster) Rename(native, renamed []string) (*Raster, error) {
	if len(native) != len(renamed) {
		return nil, fmt.Errorf("rename needs matching name lists, got %d and %d", len(native), len(renamed))
	}
	sel, err := r.Select(native...)
	if err != nil {
		return nil, err
	}
	c := sel.clone()
	c.names = make([]string, len(renamed))
	c.bands = make(map[string][]float64, len(renamed))
	for i, name := range renamed {
		if _, dup := c.bands[name]; dup {
			return nil, fmt.Errorf("duplicate band name %q in rename", name)
		}
		c.names[i] = name
		c.bands[name] = sel.bands[native[i]]
	}
	return c, nil
}

// UpdateMask returns a copy of r where pixels with valid[i] == false are
// masked in addition to any pixels already masked.
func (r *Raster) UpdateMask(valid []bool) (*Raster, error) {
	if len(valid) != r.grid.Size() {
		return nil, fmt.Errorf("mask has %d pixels, grid has %d", len(valid), r.grid.Size())
	}
	mask := make([]bool, len(valid))
	for i := range valid {
		mask[i] = valid[i] && r.Valid(i)
	}
	c := r.clone()
	c.mask = mask
	return c, nil
}

// WithTime returns a copy of r with a new acquisition time
func (r *Raster) WithTime(t time.Time) *Raster {
	c := r.clone()
	c.time = t
	return c
}

// WithProperty returns a copy of r with a numeric property set
func (r *Raster) WithProperty(key string, value float64) *Raster {
	c := r.clone()
	c.props[key] = value
	return c
}

// Property returns a numeric property
func (r *Raster) Property(key string) (float64, bool) {
	v, ok := r.props[key]
	return v, ok
}

// Properties returns a copy of all numeric properties
func (r *Raster) Properties() map[string]float64 {
	out := make(map[string]float64, len(r.props))
	for k, v := range r.props {
		out[k] = v
	}
	return out
}

// Combine evaluates fn pixel by pixel over the named input bands and returns
// a copy of r with the result stored in band out. Pixels where any input is
// invalid, or where fn yields a non-finite value, become NaN.
func (r *Raster) Combine(out string, inputs []string, fn func(v []float64) float64) (*Raster, error) {
	src := make([][]float64, len(inputs))
	for i, name := range inputs {
		d, err := r.Band(name)
		if err != nil {
			return nil, err
		}
		src[i] = d
	}

	n := r.grid.Size()
	res := make([]float64, n)
	v := make([]float64, len(inputs))
	for p := 0; p < n; p++ {
		if !r.Valid(p) {
			res[p] = math.NaN()
			continue
		}
		ok := true
		for i := range src {
			v[i] = src[i][p]
			if math.IsNaN(v[i]) {
				ok = false
				break
			}
		}
		if !ok {
			res[p] = math.NaN()
			continue
		}
		x := fn(v)
		if math.IsInf(x, 0) {
			x = math.NaN()
		}
		res[p] = x
	}
	return r.WithBand(out, res)
}

// Constant returns a band filled with value, sized for r's grid
func (r *Raster) Constant(value float64) []float64 {
	d := make([]float64, r.grid.Size())
	for i := range d {
		d[i] = value
	}
	return d
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
