// Package sweep tiles a reference/moving raster pair into square windows,
// estimates the shift of every window and paints the shift magnitude over
// the window's footprint in a full-resolution output raster.
package sweep

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"s2coreg/internal/models"
	"s2coreg/pkg/correlation"
)

// ProgressCallback receives the number of finished windows out of total.
// Calls are serialized.
type ProgressCallback func(completed, total int, message string)

// Options controls a sweep
type Options struct {
	// WindowSize is the side of every square window. Odd sizes truncate to
	// the next lower even size since windows span center-size/2..center+size/2.
	WindowSize int

	// WindowStep is the distance between consecutive window centers
	WindowStep int

	// NoData fills cells that no window covers
	NoData float64

	// UpsampleFactor > 1 enables sub-pixel refinement to 1/UpsampleFactor pixels
	UpsampleFactor int

	// OutputType is the element type of the output raster
	OutputType models.ElementType

	// Backend selects the FFT implementation
	Backend correlation.Backend

	// Workers is the number of concurrent estimators; <= 0 uses all CPUs
	Workers int

	// Progress is optional
	Progress ProgressCallback
}

// DefaultOptions returns 64 pixel windows on a 64 pixel step without upsampling
func DefaultOptions() Options {
	return Options{
		WindowSize:     64,
		WindowStep:     64,
		NoData:         models.DefaultNoData,
		UpsampleFactor: 1,
		OutputType:     models.Float64,
		Backend:        correlation.Gonum,
		Workers:        runtime.NumCPU(),
	}
}

// Result is the outcome of a sweep
type Result struct {
	// Output has the same shape as the inputs
	Output *models.OutputRaster

	// Evaluated counts windows whose shift was estimated
	Evaluated int

	// Skipped lists windows that fell outside the raster, each wrapping
	// ErrOutOfBoundsWindow
	Skipped []*WindowError
}

// Centers returns the window centers half, half+step, ... below n
func Centers(n, windowSize, step int) []int {
	var centers []int
	for c := windowSize / 2; c < n; c += step {
		centers = append(centers, c)
	}
	return centers
}

// Windows returns the bounds of every window in row-major sweep order
func Windows(height, width, windowSize, step int) []models.Bounds {
	half := windowSize / 2
	rows := Centers(height, windowSize, step)
	cols := Centers(width, windowSize, step)

	windows := make([]models.Bounds, 0, len(rows)*len(cols))
	for _, rc := range rows {
		for _, cc := range cols {
			windows = append(windows, models.Bounds{
				RowStart: rc - half,
				RowEnd:   rc + half,
				ColStart: cc - half,
				ColEnd:   cc + half,
			})
		}
	}
	return windows
}

// checkBounds returns nil when b can be evaluated on a height x width raster
func checkBounds(b models.Bounds, height, width int) *WindowError {
	if !b.Within(height, width) {
		return &WindowError{Bounds: b, Err: ErrOutOfBoundsWindow}
	}
	return nil
}

func validate(ref, mov *models.Raster, opts Options) error {
	if !ref.SameShape(mov) {
		return fmt.Errorf("%w: reference %dx%d, moving %dx%d", correlation.ErrShapeMismatch,
			ref.Height, ref.Width, mov.Height, mov.Width)
	}
	if opts.WindowSize/2 <= 0 || ref.Width <= 0 || ref.Height <= 0 {
		return fmt.Errorf("%w: window size %d on %dx%d raster", correlation.ErrDegenerateWindow,
			opts.WindowSize, ref.Height, ref.Width)
	}
	if opts.WindowStep < 1 {
		return fmt.Errorf("%w: window step must be >= 1, got %d", ErrInvalidOptions, opts.WindowStep)
	}
	if opts.UpsampleFactor < 1 {
		return fmt.Errorf("%w: upsample factor must be >= 1, got %d", ErrInvalidOptions, opts.UpsampleFactor)
	}
	if opts.WindowSize > ref.Width || opts.WindowSize > ref.Height {
		return fmt.Errorf("%w: window size %d exceeds raster %dx%d", ErrInvalidOptions,
			opts.WindowSize, ref.Height, ref.Width)
	}
	return nil
}

type job struct {
	idx    int
	bounds models.Bounds
}

// Sweep estimates the shift of every window and returns the magnitude raster.
//
// Windows are estimated concurrently, but magnitudes are written in
// row-major window order after all estimates finish, so overlapping windows
// resolve last-write-wins identically for any worker count. The first
// estimator failure aborts the sweep and no output is returned.
func Sweep(ref, mov *models.Raster, opts Options) (*Result, error) {
	if err := validate(ref, mov, opts); err != nil {
		return nil, err
	}

	side := 2 * (opts.WindowSize / 2)
	all := Windows(ref.Height, ref.Width, opts.WindowSize, opts.WindowStep)

	res := &Result{Output: models.NewOutputRaster(ref.Width, ref.Height, opts.NoData, opts.OutputType)}
	jobs := make([]job, 0, len(all))
	for _, b := range all {
		if werr := checkBounds(b, ref.Height, ref.Width); werr != nil {
			res.Skipped = append(res.Skipped, werr)
			continue
		}
		jobs = append(jobs, job{idx: len(jobs), bounds: b})
	}

	nWorkers := opts.Workers
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	if nWorkers > len(jobs) {
		nWorkers = len(jobs)
	}

	magnitudes := make([]float64, len(jobs))
	progress := newReporter(opts.Progress, len(jobs))

	g, ctx := errgroup.WithContext(context.Background())
	jobsChan := make(chan job)

	// Feed in jobs
	g.Go(func() error {
		defer close(jobsChan)
		for _, j := range jobs {
			select {
			case jobsChan <- j:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	})

	// Kick off worker pool, one estimator per worker
	for i := 0; i < nWorkers; i++ {
		g.Go(func() error {
			est, err := correlation.NewEstimator(side, side, correlation.WithBackend(opts.Backend))
			if err != nil {
				return err
			}
			for j := range jobsChan {
				shift, err := est.Estimate(ref.Window(j.bounds), mov.Window(j.bounds), opts.UpsampleFactor)
				if err != nil {
					return &WindowError{Bounds: j.bounds, Err: err}
				}
				magnitudes[j.idx] = shift.Magnitude()
				progress.done()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, j := range jobs {
		res.Output.Fill(j.bounds, magnitudes[j.idx])
	}
	res.Evaluated = len(jobs)
	return res, nil
}

// reporter serializes progress callbacks from the workers
type reporter struct {
	mu        sync.Mutex
	callback  ProgressCallback
	completed int
	total     int
}

func newReporter(cb ProgressCallback, total int) *reporter {
	return &reporter{callback: cb, total: total}
}

func (r *reporter) done() {
	if r.callback == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
	r.callback(r.completed, r.total, "estimating window shifts")
}
