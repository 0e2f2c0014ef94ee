package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/chrissnell/statgis/internal/catalog"
	"github.com/chrissnell/statgis/internal/database"
	"github.com/chrissnell/statgis/pkg/engine"
	"github.com/chrissnell/statgis/pkg/hypso"
	"github.com/chrissnell/statgis/pkg/plume"
	"github.com/chrissnell/statgis/pkg/raster"
	"github.com/chrissnell/statgis/pkg/reducer"
	"github.com/chrissnell/statgis/pkg/timeseries"
)

var (
	// ErrInvalidRequest marks requests that can never succeed as sent
	ErrInvalidRequest = errors.New("invalid request")

	// ErrStorageDisabled is returned by run lookups when no database is configured
	ErrStorageDisabled = errors.New("result storage is not configured")
)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// Kind groups errors by who has to act on them
type Kind int

const (
	// KindInternal is an engine or storage failure
	KindInternal Kind = iota
	// KindInvalid is a malformed request: bad region, unknown band or reducer
	KindInvalid
	// KindNotFound is an unknown dataset or run
	KindNotFound
	// KindUnprocessable is a well-formed request the data cannot answer,
	// such as a month without climatology
	KindUnprocessable
	// KindTimeout is a cancelled or expired request
	KindTimeout
	// KindUnavailable is a feature disabled by configuration
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindNotFound:
		return "not found"
	case KindUnprocessable:
		return "unprocessable"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	}
	return "internal"
}

// Classify maps an error returned by the service to its Kind
func Classify(err error) Kind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, database.ErrRunNotFound):
		return KindNotFound
	case errors.Is(err, ErrStorageDisabled):
		return KindUnavailable
	// a missing climatology wraps a missing band, so it is checked first
	case timeseries.IsMissingClimatology(err),
		errors.Is(err, raster.ErrMissingTimestamp),
		errors.Is(err, raster.ErrEmptyCollection),
		errors.Is(err, hypso.ErrEmptyCatchment),
		errors.Is(err, plume.ErrEmptySample):
		return KindUnprocessable
	case engine.IsEngineError(err):
		return KindInternal
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, reducer.ErrUnsupportedReducer),
		raster.IsMissingBand(err):
		return KindInvalid
	}
	return KindInternal
}
