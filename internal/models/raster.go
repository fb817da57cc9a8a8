package models

import (
	"fmt"
	"math"
)

// Grid is a read-only 2D grid of samples addressed by (row, col).
type Grid interface {
	// Dims returns the number of rows and columns of the grid
	Dims() (rows, cols int)

	// At returns the sample at the given row and column
	At(row, col int) float64
}

// Raster represents a single band of integer intensity samples
type Raster struct {
	// Data holds the samples in row-major order
	Data []int32

	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int
}

// NewRaster allocates a zero-filled raster of the given size
func NewRaster(width, height int) *Raster {
	return &Raster{
		Data:   make([]int32, width*height),
		Width:  width,
		Height: height,
	}
}

// Dims implements Grid
func (r *Raster) Dims() (int, int) { return r.Height, r.Width }

// At implements Grid
func (r *Raster) At(row, col int) float64 { return float64(r.Data[row*r.Width+col]) }

// Get returns the raw integer sample
func (r *Raster) Get(row, col int) int32 { return r.Data[row*r.Width+col] }

// Set stores a raw integer sample
func (r *Raster) Set(row, col int, v int32) { r.Data[row*r.Width+col] = v }

// SameShape reports whether both rasters have identical dimensions
func (r *Raster) SameShape(o *Raster) bool {
	return r.Width == o.Width && r.Height == o.Height
}

// Window returns a view over the half-open bounds. No data is copied.
func (r *Raster) Window(b Bounds) Window {
	return Window{raster: r, Bounds: b}
}

// SubRaster copies the half-open bounds into a new raster
func (r *Raster) SubRaster(b Bounds) *Raster {
	out := NewRaster(b.Cols(), b.Rows())
	for y := b.RowStart; y < b.RowEnd; y++ {
		copy(out.Data[(y-b.RowStart)*out.Width:], r.Data[y*r.Width+b.ColStart:y*r.Width+b.ColEnd])
	}
	return out
}

// Bounds is a half-open rectangle [RowStart, RowEnd) x [ColStart, ColEnd)
type Bounds struct {
	RowStart, RowEnd int
	ColStart, ColEnd int
}

func (b Bounds) Rows() int { return b.RowEnd - b.RowStart }
func (b Bounds) Cols() int { return b.ColEnd - b.ColStart }

// Empty reports whether either axis has no extent
func (b Bounds) Empty() bool { return b.Rows() <= 0 || b.Cols() <= 0 }

// Within reports whether the bounds lie entirely inside a height x width raster
func (b Bounds) Within(height, width int) bool {
	return b.RowStart >= 0 && b.ColStart >= 0 && b.RowEnd <= height && b.ColEnd <= width
}

func (b Bounds) String() string {
	return fmt.Sprintf("rows [%d,%d) cols [%d,%d)", b.RowStart, b.RowEnd, b.ColStart, b.ColEnd)
}

// Window is a rectangular read-only view into a Raster
type Window struct {
	raster *Raster
	Bounds Bounds
}

// Dims implements Grid
func (w Window) Dims() (int, int) { return w.Bounds.Rows(), w.Bounds.Cols() }

// At implements Grid, with coordinates relative to the window origin
func (w Window) At(row, col int) float64 {
	return w.raster.At(w.Bounds.RowStart+row, w.Bounds.ColStart+col)
}

// ShiftVector is the estimated (row, col) translation between two windows
type ShiftVector struct {
	Row float64
	Col float64
}

// Magnitude returns the Euclidean length of the shift
func (s ShiftVector) Magnitude() float64 {
	return math.Sqrt(s.Row*s.Row + s.Col*s.Col)
}

func (s ShiftVector) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", s.Row, s.Col)
}
