package models

import (
	"fmt"
	"math"
	"strings"
)

// ElementType selects how values written to an OutputRaster are stored
type ElementType int

const (
	// Float64 keeps full sub-pixel precision
	Float64 ElementType = iota

	// Int16 truncates toward zero and saturates at the int16 range,
	// so sub-pixel magnitudes lose their fractional part
	Int16
)

// DefaultNoData marks cells never covered by an evaluated window
const DefaultNoData = -9999.0

func (t ElementType) String() string {
	switch t {
	case Float64:
		return "float64"
	case Int16:
		return "int16"
	default:
		return fmt.Sprintf("ElementType(%d)", int(t))
	}
}

// ParseElementType converts a config or flag value to an ElementType
func ParseElementType(s string) (ElementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float64", "float", "f64":
		return Float64, nil
	case "int16", "i16":
		return Int16, nil
	}
	return Float64, fmt.Errorf("unknown element type %q (want float64 or int16)", s)
}

// Convert maps v into the representable set of the element type
func (t ElementType) Convert(v float64) float64 {
	if t != Int16 {
		return v
	}
	if math.IsNaN(v) {
		return 0
	}
	v = math.Trunc(v)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return v
}

// OutputRaster holds per-pixel displacement magnitudes
type OutputRaster struct {
	// Data holds the values in row-major order, already converted to Type
	Data []float64

	// Width and Height match the input rasters
	Width, Height int

	// NoData is the sentinel for cells no window covered
	NoData float64

	// Type is the storage element type
	Type ElementType
}

// NewOutputRaster allocates a raster filled with the no-data sentinel
func NewOutputRaster(width, height int, noData float64, typ ElementType) *OutputRaster {
	o := &OutputRaster{
		Data:   make([]float64, width*height),
		Width:  width,
		Height: height,
		NoData: typ.Convert(noData),
		Type:   typ,
	}
	for i := range o.Data {
		o.Data[i] = o.NoData
	}
	return o
}

// Dims implements Grid
func (o *OutputRaster) Dims() (int, int) { return o.Height, o.Width }

// At implements Grid
func (o *OutputRaster) At(row, col int) float64 { return o.Data[row*o.Width+col] }

// Set stores a single converted value
func (o *OutputRaster) Set(row, col int, v float64) { o.Data[row*o.Width+col] = o.Type.Convert(v) }

// Fill writes v into every cell of b. b must lie within the raster.
func (o *OutputRaster) Fill(b Bounds, v float64) {
	v = o.Type.Convert(v)
	for y := b.RowStart; y < b.RowEnd; y++ {
		row := o.Data[y*o.Width+b.ColStart : y*o.Width+b.ColEnd]
		for i := range row {
			row[i] = v
		}
	}
}

// IsNoData reports whether v equals the sentinel
func (o *OutputRaster) IsNoData(v float64) bool { return v == o.NoData }

// Valid returns the values of all cells that are not no-data
func (o *OutputRaster) Valid() []float64 {
	vals := make([]float64, 0, len(o.Data))
	for _, v := range o.Data {
		if !o.IsNoData(v) {
			vals = append(vals, v)
		}
	}
	return vals
}
