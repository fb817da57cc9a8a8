package models

import (
	"math"
	"testing"
)

func testRaster(width, height int) *Raster {
	r := NewRaster(width, height)
	for i := range r.Data {
		r.Data[i] = int32(i)
	}
	return r
}

func TestRasterWindow(t *testing.T) {
	r := testRaster(5, 4)
	w := r.Window(Bounds{RowStart: 1, RowEnd: 3, ColStart: 2, ColEnd: 5})

	rows, cols := w.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("Expected 2x3 window, got %dx%d", rows, cols)
	}
	if w.At(0, 0) != 7 || w.At(1, 2) != 14 {
		t.Errorf("Unexpected window values %f, %f", w.At(0, 0), w.At(1, 2))
	}

	// Views share storage with the raster
	r.Set(1, 2, 100)
	if w.At(0, 0) != 100 {
		t.Error("Window did not observe raster update")
	}
}

func TestSubRaster(t *testing.T) {
	r := testRaster(5, 4)
	sub := r.SubRaster(Bounds{RowStart: 2, RowEnd: 4, ColStart: 0, ColEnd: 2})
	if sub.Width != 2 || sub.Height != 2 {
		t.Fatalf("Expected 2x2, got %dx%d", sub.Width, sub.Height)
	}
	expected := []int32{10, 11, 15, 16}
	for i, v := range expected {
		if sub.Data[i] != v {
			t.Errorf("cell %d: expected %d, got %d", i, v, sub.Data[i])
		}
	}

	sub.Set(0, 0, -1)
	if r.Get(2, 0) != 10 {
		t.Error("SubRaster shares storage with its source")
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name   string
		b      Bounds
		empty  bool
		within bool
	}{
		{"inside", Bounds{0, 4, 0, 5}, false, true},
		{"negative start", Bounds{-1, 3, 0, 5}, false, false},
		{"past end", Bounds{0, 4, 1, 6}, false, false},
		{"empty", Bounds{2, 2, 0, 5}, true, true},
		{"inverted", Bounds{3, 1, 0, 5}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.Empty(); got != tt.empty {
				t.Errorf("Empty() = %v, expected %v", got, tt.empty)
			}
			if got := tt.b.Within(4, 5); got != tt.within {
				t.Errorf("Within() = %v, expected %v", got, tt.within)
			}
		})
	}
}

func TestShiftVectorMagnitude(t *testing.T) {
	s := ShiftVector{Row: 3, Col: -4}
	if s.Magnitude() != 5 {
		t.Errorf("Expected 5, got %f", s.Magnitude())
	}
}

func TestElementTypeConvert(t *testing.T) {
	tests := []struct {
		typ      ElementType
		in       float64
		expected float64
	}{
		{Float64, 3.6055, 3.6055},
		{Int16, 3.6055, 3},
		{Int16, -2.9, -2},
		{Int16, 40000, math.MaxInt16},
		{Int16, -40000, math.MinInt16},
		{Int16, math.NaN(), 0},
	}

	for _, tt := range tests {
		if got := tt.typ.Convert(tt.in); got != tt.expected {
			t.Errorf("%s.Convert(%f) = %f, expected %f", tt.typ, tt.in, got, tt.expected)
		}
	}
}

func TestParseElementType(t *testing.T) {
	for _, s := range []string{"float64", " Float ", "f64"} {
		if typ, err := ParseElementType(s); err != nil || typ != Float64 {
			t.Errorf("ParseElementType(%q) = %v, %v", s, typ, err)
		}
	}
	if typ, err := ParseElementType("INT16"); err != nil || typ != Int16 {
		t.Errorf("ParseElementType(INT16) = %v, %v", typ, err)
	}
	if _, err := ParseElementType("uint8"); err == nil {
		t.Error("Expected error for uint8")
	}
}

func TestOutputRasterFill(t *testing.T) {
	o := NewOutputRaster(4, 3, DefaultNoData, Int16)
	o.Fill(Bounds{RowStart: 1, RowEnd: 3, ColStart: 1, ColEnd: 3}, 2.7)

	if o.At(0, 0) != DefaultNoData {
		t.Errorf("Expected no-data at (0,0), got %f", o.At(0, 0))
	}
	if o.At(2, 2) != 2 {
		t.Errorf("Expected 2 at (2,2), got %f", o.At(2, 2))
	}

	valid := o.Valid()
	if len(valid) != 4 {
		t.Errorf("Expected 4 valid cells, got %d", len(valid))
	}
}
