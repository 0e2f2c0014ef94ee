package raster

import (
	"strings"
)

// BandSelection picks which bands an operation works on: every band of the
// raster, or an explicit ordered list.
type BandSelection struct {
	names []string
}

// AllBands selects every band
func AllBands() BandSelection {
	return BandSelection{}
}

// NamedBands selects the given bands, in order
func NamedBands(names ...string) BandSelection {
	return BandSelection{names: append([]string(nil), names...)}
}

// ParseBandSelection accepts "all" (or an empty string) or a comma-separated list
func ParseBandSelection(s string) BandSelection {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "all") {
		return AllBands()
	}
	var names []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			names = append(names, part)
		}
	}
	return NamedBands(names...)
}

// IsAll reports whether the selection covers every band
func (s BandSelection) IsAll() bool {
	return len(s.names) == 0
}

// Names returns the explicit band names, nil for the "all" selection
func (s BandSelection) Names() []string {
	return append([]string(nil), s.names...)
}

// Resolve returns the concrete band list for r, failing on unknown names
func (s BandSelection) Resolve(r *Raster) ([]string, error) {
	if s.IsAll() {
		return r.Bands(), nil
	}
	for _, name := range s.names {
		if !r.HasBand(name) {
			return nil, &MissingBandError{Band: name, Available: r.Bands()}
		}
	}
	return s.Names(), nil
}

func (s BandSelection) String() string {
	if s.IsAll() {
		return "all"
	}
	return strings.Join(s.names, ",")
}
