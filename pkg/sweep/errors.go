package sweep

import (
	"errors"
	"fmt"

	"s2coreg/internal/models"
)

var (
	// ErrOutOfBoundsWindow marks a window that extends past the raster edge.
	// Such windows are skipped and their footprint keeps the no-data value.
	ErrOutOfBoundsWindow = errors.New("window exceeds raster bounds")

	// ErrInvalidOptions is returned for sweep options that violate a precondition
	ErrInvalidOptions = errors.New("invalid sweep options")
)

// WindowError attaches the offending window bounds to an error
type WindowError struct {
	Bounds models.Bounds
	Err    error
}

func (e *WindowError) Error() string {
	return fmt.Sprintf("window %s: %v", e.Bounds, e.Err)
}

func (e *WindowError) Unwrap() error { return e.Err }
