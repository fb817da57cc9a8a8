package correlation

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// floatGrid is a dense row-major grid used to build test windows
type floatGrid struct {
	rows, cols int
	data       []float64
}

func (g *floatGrid) Dims() (int, int)       { return g.rows, g.cols }
func (g *floatGrid) At(row, col int) float64 { return g.data[row*g.cols+col] }

func newGrid(rows, cols int, f func(y, x int) float64) *floatGrid {
	g := &floatGrid{rows: rows, cols: cols, data: make([]float64, rows*cols)}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			g.data[y*cols+x] = f(y, x)
		}
	}
	return g
}

// randomTexture creates a reproducible integer-valued noise pattern
func randomTexture(rows, cols int, seed int64) *floatGrid {
	rng := rand.New(rand.NewSource(seed))
	return newGrid(rows, cols, func(y, x int) float64 {
		return float64(rng.Intn(4000))
	})
}

// circularShift returns m with m(y, x) = g((y+dy) mod rows, (x+dx) mod cols)
func circularShift(g *floatGrid, dy, dx int) *floatGrid {
	return newGrid(g.rows, g.cols, func(y, x int) float64 {
		yy := ((y+dy)%g.rows + g.rows) % g.rows
		xx := ((x+dx)%g.cols + g.cols) % g.cols
		return g.At(yy, xx)
	})
}

// gaussianBlob samples a smooth blob centred at (cy, cx), offset by (dy, dx)
func gaussianBlob(rows, cols int, cy, cx, sigma, dy, dx float64) *floatGrid {
	return newGrid(rows, cols, func(y, x int) float64 {
		ry := float64(y) + dy - cy
		rx := float64(x) + dx - cx
		return 1000 * math.Exp(-(ry*ry+rx*rx)/(2*sigma*sigma))
	})
}

func TestEstimateShiftIdentity(t *testing.T) {
	testCases := []struct {
		name string
		grid *floatGrid
	}{
		{"texture", randomTexture(64, 64, 1)},
		{"constant", newGrid(64, 64, func(y, x int) float64 { return 5 })},
		{"zeros", newGrid(32, 32, func(y, x int) float64 { return 0 })},
		{"non-square", randomTexture(24, 40, 2)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			shift, err := EstimateShift(tc.grid, tc.grid, 1)
			if err != nil {
				t.Fatalf("EstimateShift failed: %v", err)
			}
			if shift.Row != 0 || shift.Col != 0 {
				t.Errorf("Expected zero shift, got %s", shift)
			}
			if shift.Magnitude() != 0 {
				t.Errorf("Expected zero magnitude, got %f", shift.Magnitude())
			}
		})
	}
}

func TestEstimateShiftKnownIntegerShift(t *testing.T) {
	ref := randomTexture(64, 64, 42)

	testCases := []struct {
		dy, dx int
	}{
		{3, -2},
		{0, 5},
		{-7, 0},
		{31, -31},
		{-31, 20},
		{12, 12},
	}

	for _, backend := range []Backend{Gonum, GoDSP} {
		est, err := NewEstimator(64, 64, WithBackend(backend))
		if err != nil {
			t.Fatalf("NewEstimator(%s) failed: %v", backend, err)
		}
		for _, tc := range testCases {
			mov := circularShift(ref, tc.dy, tc.dx)
			shift, err := est.Estimate(ref, mov, 1)
			if err != nil {
				t.Fatalf("%s: Estimate failed: %v", backend, err)
			}
			if math.Abs(shift.Row-float64(tc.dy)) > 1e-6 || math.Abs(shift.Col-float64(tc.dx)) > 1e-6 {
				t.Errorf("%s: expected (%d, %d), got %s", backend, tc.dy, tc.dx, shift)
			}
		}
	}
}

func TestEstimateShiftUpsampledIntegerShift(t *testing.T) {
	ref := randomTexture(32, 32, 7)
	mov := circularShift(ref, -4, 6)

	shift, err := EstimateShift(ref, mov, 20)
	if err != nil {
		t.Fatalf("EstimateShift failed: %v", err)
	}
	// the refined estimate stays on the 1/20 pixel grid around the true shift
	if math.Abs(shift.Row+4) > 0.05+1e-9 || math.Abs(shift.Col-6) > 0.05+1e-9 {
		t.Errorf("Expected about (-4, 6), got %s", shift)
	}
}

func TestEstimateShiftSubPixelImproves(t *testing.T) {
	trueRow, trueCol := 2.337, -1.618
	ref := gaussianBlob(64, 64, 30, 34, 3, 0, 0)
	mov := gaussianBlob(64, 64, 30, 34, 3, trueRow, trueCol)

	errorFor := func(upsample int) float64 {
		shift, err := EstimateShift(ref, mov, upsample)
		if err != nil {
			t.Fatalf("EstimateShift(upsample=%d) failed: %v", upsample, err)
		}
		return math.Hypot(shift.Row-trueRow, shift.Col-trueCol)
	}

	coarse := errorFor(1)
	fine := errorFor(10)
	finer := errorFor(100)

	if !(fine < coarse) {
		t.Errorf("Expected upsample 10 error %f to be below upsample 1 error %f", fine, coarse)
	}
	if fine > 0.1 {
		t.Errorf("Expected upsample 10 error within 0.1 pixels, got %f", fine)
	}
	if !(finer < fine) {
		t.Errorf("Expected upsample 100 error %f to be below upsample 10 error %f", finer, fine)
	}
}

func TestEstimateShiftDegenerateAxis(t *testing.T) {
	row := randomTexture(1, 64, 3)
	shifted := circularShift(row, 0, 3)

	shift, err := EstimateShift(row, shifted, 1)
	if err != nil {
		t.Fatalf("EstimateShift failed: %v", err)
	}
	if shift.Row != 0 {
		t.Errorf("Expected row shift exactly 0, got %f", shift.Row)
	}
	if shift.Col != 3 {
		t.Errorf("Expected column shift 3, got %f", shift.Col)
	}

	col := randomTexture(64, 1, 4)
	shift, err = EstimateShift(col, circularShift(col, -5, 0), 4)
	if err != nil {
		t.Fatalf("EstimateShift failed: %v", err)
	}
	if shift.Col != 0 {
		t.Errorf("Expected column shift exactly 0, got %f", shift.Col)
	}
}

func TestEstimateShiftErrors(t *testing.T) {
	a := randomTexture(8, 8, 1)
	b := randomTexture(8, 6, 1)
	empty := &floatGrid{}

	testCases := []struct {
		name     string
		run      func() error
		expected error
	}{
		{"shape mismatch", func() error { _, err := EstimateShift(a, b, 1); return err }, ErrShapeMismatch},
		{"empty window", func() error { _, err := EstimateShift(empty, empty, 1); return err }, ErrDegenerateWindow},
		{"zero upsample", func() error { _, err := EstimateShift(a, a, 0); return err }, ErrInvalidUpsample},
		{"estimator shape", func() error {
			est, err := NewEstimator(4, 4)
			if err != nil {
				return err
			}
			_, err = est.Estimate(a, a, 1)
			return err
		}, ErrShapeMismatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.run()
			if !errors.Is(err, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestArgmaxAbsTies(t *testing.T) {
	values := []complex128{1, 3, 3 + 1e-14, 2}
	idx, err := argmaxAbs(values)
	if err != nil {
		t.Fatalf("argmaxAbs failed: %v", err)
	}
	if idx != 1 {
		t.Errorf("Expected first near-tie index 1, got %d", idx)
	}

	if _, err := argmaxAbs([]complex128{1, complex(math.NaN(), 0)}); !errors.Is(err, ErrNumericFailure) {
		t.Errorf("Expected ErrNumericFailure, got %v", err)
	}
}

func TestWrapIndex(t *testing.T) {
	testCases := []struct {
		idx, n   int
		expected float64
	}{
		{0, 8, 0},
		{4, 8, 4},
		{5, 8, -3},
		{7, 8, -1},
		{2, 5, 2},
		{3, 5, -2},
		{0, 1, 0},
	}
	for _, tc := range testCases {
		if got := wrapIndex(tc.idx, tc.n); got != tc.expected {
			t.Errorf("wrapIndex(%d, %d) = %f, expected %f", tc.idx, tc.n, got, tc.expected)
		}
	}
}

func BenchmarkEstimate64(b *testing.B) {
	ref := randomTexture(64, 64, 1)
	mov := circularShift(ref, 3, -2)
	est, err := NewEstimator(64, 64)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := est.Estimate(ref, mov, 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEstimate64Upsampled(b *testing.B) {
	ref := randomTexture(64, 64, 1)
	mov := circularShift(ref, 3, -2)
	est, err := NewEstimator(64, 64)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := est.Estimate(ref, mov, 100); err != nil {
			b.Fatal(err)
		}
	}
}
