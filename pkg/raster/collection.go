package raster

import (
	"context"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Collection is an ordered sequence of rasters, normally ascending by
// acquisition time. Like Raster it is never modified in place.
type Collection struct {
	items []*Raster
}

// NewCollection builds a collection from rasters in the given order
func NewCollection(items ...*Raster) *Collection {
	return &Collection{items: append([]*Raster(nil), items...)}
}

// Len returns the number of rasters
func (c *Collection) Len() int {
	return len(c.items)
}

// At returns the i-th raster
func (c *Collection) At(i int) *Raster {
	return c.items[i]
}

// Rasters returns the elements in order
func (c *Collection) Rasters() []*Raster {
	return append([]*Raster(nil), c.items...)
}

// First returns the first raster, or nil for an empty collection
func (c *Collection) First() *Raster {
	if len(c.items) == 0 {
		return nil
	}
	return c.items[0]
}

// Grid returns the grid shared by every element
func (c *Collection) Grid() (Grid, error) {
	if len(c.items) == 0 {
		return Grid{}, ErrEmptyCollection
	}
	g := c.items[0].grid
	for _, r := range c.items[1:] {
		if !r.grid.Equal(g) {
			return Grid{}, ErrGridMismatch
		}
	}
	return g, nil
}

// Map applies fn to every element. Elements are processed concurrently but the
// result keeps the input order. The first error cancels the remaining work.
func (c *Collection) Map(ctx context.Context, fn func(*Raster) (*Raster, error)) (*Collection, error) {
	out := make([]*Raster, len(c.items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, r := range c.items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := fn(r)
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Collection{items: out}, nil
}

// Filter keeps the elements for which keep returns true
func (c *Collection) Filter(keep func(*Raster) bool) *Collection {
	out := make([]*Raster, 0, len(c.items))
	for _, r := range c.items {
		if keep(r) {
			out = append(out, r)
		}
	}
	return &Collection{items: out}
}

// FilterMonth keeps the elements acquired in calendar month m of any year
func (c *Collection) FilterMonth(m time.Month) (*Collection, error) {
	out := make([]*Raster, 0, len(c.items))
	for _, r := range c.items {
		month, err := r.Month()
		if err != nil {
			return nil, err
		}
		if month == m {
			out = append(out, r)
		}
	}
	return &Collection{items: out}, nil
}

// FilterYear keeps the elements acquired in calendar year y
func (c *Collection) FilterYear(y int) (*Collection, error) {
	out := make([]*Raster, 0, len(c.items))
	for _, r := range c.items {
		year, err := r.Year()
		if err != nil {
			return nil, err
		}
		if year == y {
			out = append(out, r)
		}
	}
	return &Collection{items: out}, nil
}

// FilterDate keeps the elements acquired in [start, end)
func (c *Collection) FilterDate(start, end time.Time) *Collection {
	return c.Filter(func(r *Raster) bool {
		return r.HasTime() && !r.time.Before(start) && r.time.Before(end)
	})
}

// FindProperty returns the first element whose property key equals value
func (c *Collection) FindProperty(key string, value float64) (*Raster, bool) {
	for _, r := range c.items {
		if v, ok := r.props[key]; ok && v == value {
			return r, true
		}
	}
	return nil, false
}

// Sort returns the collection ordered by ascending acquisition time. The sort
// is stable so elements with equal times keep their relative order.
func (c *Collection) Sort() *Collection {
	out := append([]*Raster(nil), c.items...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].time.Before(out[j].time)
	})
	return &Collection{items: out}
}

// Merge concatenates two collections without reordering
func (c *Collection) Merge(other *Collection) *Collection {
	out := make([]*Raster, 0, len(c.items)+len(other.items))
	out = append(out, c.items...)
	out = append(out, other.items...)
	return &Collection{items: out}
}

// Select keeps the named bands on every element
func (c *Collection) Select(names ...string) (*Collection, error) {
	out := make([]*Raster, len(c.items))
	for i, r := range c.items {
		s, err := r.Select(names...)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return &Collection{items: out}, nil
}

// Dates returns the acquisition time of every element, in collection order
func (c *Collection) Dates() ([]time.Time, error) {
	out := make([]time.Time, len(c.items))
	for i, r := range c.items {
		if !r.HasTime() {
			return nil, ErrMissingTimestamp
		}
		out[i] = r.time
	}
	return out, nil
}
