package raster

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingTimestamp is returned when month or year bucketing needs an
	// acquisition time that the raster does not carry.
	ErrMissingTimestamp = errors.New("raster has no acquisition timestamp")

	// ErrGridMismatch is returned when rasters on different grids are combined
	ErrGridMismatch = errors.New("raster grids do not match")

	// ErrEmptyCollection is returned by operations that need at least one element
	ErrEmptyCollection = errors.New("collection is empty")
)

// MissingBandError reports a band name that a formula or selection referenced
// but the raster schema does not contain.
type MissingBandError struct {
	Band      string
	Available []string
}

func (e *MissingBandError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("band %q not found: raster has no bands", e.Band)
	}
	return fmt.Sprintf("band %q not found (available: %s)", e.Band, strings.Join(e.Available, ", "))
}

// IsMissingBand reports whether err is, or wraps, a MissingBandError
func IsMissingBand(err error) bool {
	var mb *MissingBandError
	return errors.As(err, &mb)
}
