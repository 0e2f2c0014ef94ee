package timeseries

import (
	"errors"
	"fmt"
	"time"
)

// MissingClimatologyError is returned when an element's calendar month has no
// stational_mean to subtract. It wraps the underlying raster.MissingBandError.
type MissingClimatologyError struct {
	Month time.Month
	Time  time.Time
	Err   error
}

func (e *MissingClimatologyError) Error() string {
	return fmt.Sprintf("no climatology for %s (element at %s): %v", e.Month, e.Time.UTC().Format(time.RFC3339), e.Err)
}

func (e *MissingClimatologyError) Unwrap() error {
	return e.Err
}

// IsMissingClimatology reports whether err is, or wraps, a MissingClimatologyError
func IsMissingClimatology(err error) bool {
	var mc *MissingClimatologyError
	return errors.As(err, &mc)
}
