package correlation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// UpsampledDFT evaluates the inverse DFT of a rows x cols spectrum on a
// regionSize x regionSize grid whose spacing is 1/upsample pixels, starting at
// -offsets[axis]/upsample pixels on each axis. Only the requested region is
// computed, as the product R * data * C of two small kernel matrices with the
// spectrum.
//
// The result is unnormalized and row-major, regionSize x regionSize.
func UpsampledDFT(data []complex128, rows, cols, regionSize, upsample int, offsets [2]float64) ([]complex128, error) {
	if rows <= 0 || cols <= 0 || regionSize <= 0 {
		return nil, fmt.Errorf("%w: upsampled DFT of %dx%d into %d", ErrDegenerateWindow, rows, cols, regionSize)
	}
	if upsample < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidUpsample, upsample)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: spectrum has %d samples, want %d", ErrShapeMismatch, len(data), rows*cols)
	}

	// R is regionSize x rows, C is cols x regionSize
	rRe, rIm := dftKernel(regionSize, rows, upsample, offsets[0], false)
	cRe, cIm := dftKernel(regionSize, cols, upsample, offsets[1], true)

	dRe := mat.NewDense(rows, cols, nil)
	dIm := mat.NewDense(rows, cols, nil)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			v := data[y*cols+x]
			dRe.Set(y, x, real(v))
			dIm.Set(y, x, imag(v))
		}
	}

	tRe, tIm := complexMul(rRe, rIm, dRe, dIm)
	oRe, oIm := complexMul(tRe, tIm, cRe, cIm)

	out := make([]complex128, regionSize*regionSize)
	for u := 0; u < regionSize; u++ {
		for v := 0; v < regionSize; v++ {
			out[u*regionSize+v] = complex(oRe.At(u, v), oIm.At(u, v))
		}
	}
	return out, nil
}

// dftKernel builds exp(+2*pi*i*(u-offset)*f[k]) where f is the DFT sample
// frequency of bin k for an n-point transform with spacing upsample. The
// matrix is regionSize x n, or n x regionSize when transposed.
func dftKernel(regionSize, n, upsample int, offset float64, transposed bool) (*mat.Dense, *mat.Dense) {
	r, c := regionSize, n
	if transposed {
		r, c = n, regionSize
	}
	re := mat.NewDense(r, c, nil)
	im := mat.NewDense(r, c, nil)
	for u := 0; u < regionSize; u++ {
		pos := float64(u) - offset
		for k := 0; k < n; k++ {
			s, co := math.Sincos(2 * math.Pi * pos * fftFreq(k, n, upsample))
			if transposed {
				re.Set(k, u, co)
				im.Set(k, u, s)
			} else {
				re.Set(u, k, co)
				im.Set(u, k, s)
			}
		}
	}
	return re, im
}

// fftFreq returns the signed sample frequency of bin k of an n-point DFT
// with sample spacing d: bins past the midpoint wrap to negative frequencies.
func fftFreq(k, n, d int) float64 {
	if k > (n-1)/2 {
		k -= n
	}
	return float64(k) / float64(n*d)
}

// complexMul multiplies (aRe + i aIm)(bRe + i bIm) using real dense products
func complexMul(aRe, aIm, bRe, bIm *mat.Dense) (*mat.Dense, *mat.Dense) {
	var rr, ii, ri, ir mat.Dense
	rr.Mul(aRe, bRe)
	ii.Mul(aIm, bIm)
	ri.Mul(aRe, bIm)
	ir.Mul(aIm, bRe)

	var re, im mat.Dense
	re.Sub(&rr, &ii)
	im.Add(&ri, &ir)
	return &re, &im
}
