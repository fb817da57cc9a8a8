// Package correlation estimates the translation between two equally sized
// image windows by phase cross-correlation, with optional sub-pixel
// refinement by a locally upsampled DFT of the cross-power spectrum.
package correlation

import (
	"fmt"
	"math"
	"math/cmplx"

	"s2coreg/internal/models"
)

// peakTolerance is the relative margin under which two correlation
// magnitudes count as a tie. Ties resolve to the first cell in row-major
// order, so flat surfaces (e.g. constant windows) report a zero shift.
const peakTolerance = 1e-10

// Estimator computes shifts for windows of one fixed shape. It keeps its FFT
// plan and scratch buffers between calls, so it must not be shared between
// goroutines; create one per worker instead.
type Estimator struct {
	rows, cols int
	backend    Backend
	fft        Transformer

	// spectra of the reference and moving windows; ref is overwritten
	// with the cross-power spectrum
	ref []complex128
	mov []complex128

	// cross-correlation surface
	corr []complex128
}

// Option configures an Estimator
type Option func(*Estimator)

// WithBackend selects the FFT implementation
func WithBackend(b Backend) Option {
	return func(e *Estimator) { e.backend = b }
}

// NewEstimator creates an estimator for rows x cols windows
func NewEstimator(rows, cols int, opts ...Option) (*Estimator, error) {
	e := &Estimator{rows: rows, cols: cols, backend: Gonum}
	for _, opt := range opts {
		opt(e)
	}

	t, err := NewTransformer(e.backend, rows, cols)
	if err != nil {
		return nil, err
	}
	e.fft = t
	e.ref = make([]complex128, rows*cols)
	e.mov = make([]complex128, rows*cols)
	e.corr = make([]complex128, rows*cols)
	return e, nil
}

// Dims returns the window shape the estimator was built for
func (e *Estimator) Dims() (int, int) { return e.rows, e.cols }

// EstimateShift is a one-shot convenience around NewEstimator and Estimate
func EstimateShift(ref, mov models.Grid, upsample int) (models.ShiftVector, error) {
	rows, cols := ref.Dims()
	e, err := NewEstimator(rows, cols)
	if err != nil {
		return models.ShiftVector{}, err
	}
	return e.Estimate(ref, mov, upsample)
}

// Estimate returns the translation that registers mov with ref, i.e. the
// shift s for which mov(p) ~ ref(p + s). Each component is wrapped into
// [-n/2, n/2) of its axis. With upsample > 1 the integer estimate is refined
// to a precision of 1/upsample pixels.
//
// The cross-power spectrum is not normalized by its magnitude.
func (e *Estimator) Estimate(ref, mov models.Grid, upsample int) (models.ShiftVector, error) {
	rows, cols := ref.Dims()
	mRows, mCols := mov.Dims()
	if rows != mRows || cols != mCols {
		return models.ShiftVector{}, fmt.Errorf("%w: reference %dx%d, moving %dx%d",
			ErrShapeMismatch, rows, cols, mRows, mCols)
	}
	if rows <= 0 || cols <= 0 {
		return models.ShiftVector{}, fmt.Errorf("%w: %dx%d", ErrDegenerateWindow, rows, cols)
	}
	if rows != e.rows || cols != e.cols {
		return models.ShiftVector{}, fmt.Errorf("%w: estimator built for %dx%d, got %dx%d",
			ErrShapeMismatch, e.rows, e.cols, rows, cols)
	}
	if upsample < 1 {
		return models.ShiftVector{}, fmt.Errorf("%w: got %d", ErrInvalidUpsample, upsample)
	}

	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			e.ref[y*cols+x] = complex(ref.At(y, x), 0)
			e.mov[y*cols+x] = complex(mov.At(y, x), 0)
		}
	}
	e.fft.Forward(e.ref)
	e.fft.Forward(e.mov)

	// cross-power spectrum, kept in e.ref for the upsampling step
	for i := range e.ref {
		e.ref[i] *= cmplx.Conj(e.mov[i])
	}
	copy(e.corr, e.ref)
	e.fft.Inverse(e.corr)

	peak, err := argmaxAbs(e.corr)
	if err != nil {
		return models.ShiftVector{}, err
	}
	shift := [2]float64{
		wrapIndex(peak/cols, rows),
		wrapIndex(peak%cols, cols),
	}

	if upsample > 1 {
		shift, err = e.refine(shift, upsample)
		if err != nil {
			return models.ShiftVector{}, err
		}
	}

	// a length-1 axis carries no shift information
	if rows == 1 {
		shift[0] = 0
	}
	if cols == 1 {
		shift[1] = 0
	}
	return models.ShiftVector{Row: shift[0], Col: shift[1]}, nil
}

// refine evaluates the correlation on a 1/upsample grid centred on the
// coarse shift and moves the estimate to that grid's peak.
func (e *Estimator) refine(coarse [2]float64, upsample int) ([2]float64, error) {
	up := float64(upsample)
	regionSize := int(math.Ceil(up * 1.5))
	dftShift := float64(regionSize / 2)

	var offsets [2]float64
	for i := range coarse {
		coarse[i] = math.RoundToEven(coarse[i]*up) / up
		offsets[i] = dftShift - coarse[i]*up
	}

	cc, err := UpsampledDFT(e.ref, e.rows, e.cols, regionSize, upsample, offsets)
	if err != nil {
		return coarse, err
	}
	peak, err := argmaxAbs(cc)
	if err != nil {
		return coarse, err
	}

	coarse[0] += (float64(peak/regionSize) - dftShift) / up
	coarse[1] += (float64(peak%regionSize) - dftShift) / up
	return coarse, nil
}

// wrapIndex maps a raw FFT index past the midpoint of an n-point axis to a
// negative shift
func wrapIndex(idx, n int) float64 {
	if idx > n/2 {
		idx -= n
	}
	return float64(idx)
}

// argmaxAbs returns the linear index of the largest magnitude, resolving
// ties within peakTolerance to the first occurrence.
func argmaxAbs(values []complex128) (int, error) {
	best := 0.0
	for i, v := range values {
		a := cmplx.Abs(v)
		if math.IsNaN(a) || math.IsInf(a, 0) {
			return 0, fmt.Errorf("%w: non-finite correlation value at index %d", ErrNumericFailure, i)
		}
		if a > best {
			best = a
		}
	}

	threshold := best * (1 - peakTolerance)
	for i, v := range values {
		if cmplx.Abs(v) >= threshold {
			return i, nil
		}
	}
	return 0, nil
}
