package correlation

import "errors"

var (
	// ErrShapeMismatch is returned when the reference and moving windows differ in size
	ErrShapeMismatch = errors.New("reference and moving must be the same shape")

	// ErrDegenerateWindow is returned when a window has a zero-length axis
	ErrDegenerateWindow = errors.New("window has a zero-length axis")

	// ErrNumericFailure is returned when a transform produces non-finite values
	ErrNumericFailure = errors.New("numeric failure in correlation")

	// ErrInvalidUpsample is returned for an upsample factor below 1
	ErrInvalidUpsample = errors.New("upsample factor must be >= 1")
)
