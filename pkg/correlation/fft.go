package correlation

import (
	"fmt"
	"strings"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Backend names a 2D FFT implementation
type Backend string

const (
	// Gonum uses gonum's CmplxFFT along rows then columns
	Gonum Backend = "gonum"

	// GoDSP uses go-dsp's FFT2/IFFT2
	GoDSP Backend = "godsp"
)

// ParseBackend converts a config or flag value to a Backend
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case Gonum, GoDSP:
		return b, nil
	case "":
		return Gonum, nil
	}
	return "", fmt.Errorf("unknown FFT backend %q (want %s or %s)", s, Gonum, GoDSP)
}

// Transformer computes in-place 2D transforms of a row-major rows x cols buffer.
// Forward uses the exp(-i) kernel without scaling; Inverse uses exp(+i) and
// divides by rows*cols, so Inverse(Forward(x)) == x.
//
// A Transformer is not safe for concurrent use.
type Transformer interface {
	Forward(data []complex128)
	Inverse(data []complex128)
	Dims() (rows, cols int)
}

// NewTransformer creates a transformer for the given shape
func NewTransformer(backend Backend, rows, cols int) (Transformer, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: transform shape %dx%d", ErrDegenerateWindow, rows, cols)
	}
	switch backend {
	case Gonum, "":
		return newGonumFFT(rows, cols), nil
	case GoDSP:
		return newGoDSPFFT(rows, cols), nil
	}
	return nil, fmt.Errorf("unknown FFT backend %q", backend)
}

// gonumFFT performs the 2D transform as a 1D pass over every row followed by
// a 1D pass over every column.
type gonumFFT struct {
	rows, cols int
	rowFFT     *fourier.CmplxFFT
	colFFT     *fourier.CmplxFFT

	// scratch column, reused between passes
	col []complex128
}

func newGonumFFT(rows, cols int) *gonumFFT {
	return &gonumFFT{
		rows:   rows,
		cols:   cols,
		rowFFT: fourier.NewCmplxFFT(cols),
		colFFT: fourier.NewCmplxFFT(rows),
		col:    make([]complex128, rows),
	}
}

func (g *gonumFFT) Dims() (int, int) { return g.rows, g.cols }

func (g *gonumFFT) Forward(data []complex128) { g.transform(data, true) }

func (g *gonumFFT) Inverse(data []complex128) {
	g.transform(data, false)
	scale := complex(1/float64(g.rows*g.cols), 0)
	for i := range data {
		data[i] *= scale
	}
}

func (g *gonumFFT) transform(data []complex128, forward bool) {
	// rows
	for y := 0; y < g.rows; y++ {
		row := data[y*g.cols : (y+1)*g.cols]
		if forward {
			g.rowFFT.Coefficients(row, row)
		} else {
			g.rowFFT.Sequence(row, row)
		}
	}

	// cols
	for x := 0; x < g.cols; x++ {
		for y := 0; y < g.rows; y++ {
			g.col[y] = data[y*g.cols+x]
		}
		if forward {
			g.colFFT.Coefficients(g.col, g.col)
		} else {
			g.colFFT.Sequence(g.col, g.col)
		}
		for y := 0; y < g.rows; y++ {
			data[y*g.cols+x] = g.col[y]
		}
	}
}

// goDSPFFT adapts go-dsp's slice-of-rows API to the flat buffer layout
type goDSPFFT struct {
	rows, cols int
	grid       [][]complex128
}

func newGoDSPFFT(rows, cols int) *goDSPFFT {
	grid := make([][]complex128, rows)
	for y := range grid {
		grid[y] = make([]complex128, cols)
	}
	return &goDSPFFT{rows: rows, cols: cols, grid: grid}
}

func (g *goDSPFFT) Dims() (int, int) { return g.rows, g.cols }

func (g *goDSPFFT) Forward(data []complex128) {
	g.load(data)
	g.store(fft.FFT2(g.grid), data)
}

// go-dsp already normalizes the inverse by rows*cols
func (g *goDSPFFT) Inverse(data []complex128) {
	g.load(data)
	g.store(fft.IFFT2(g.grid), data)
}

func (g *goDSPFFT) load(data []complex128) {
	for y := 0; y < g.rows; y++ {
		copy(g.grid[y], data[y*g.cols:(y+1)*g.cols])
	}
}

func (g *goDSPFFT) store(out [][]complex128, data []complex128) {
	for y := 0; y < g.rows; y++ {
		copy(data[y*g.cols:(y+1)*g.cols], out[y])
	}
}
