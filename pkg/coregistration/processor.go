// Package coregistration runs the full displacement pipeline for one
// reference/moving image pair: validate inputs, load and crop both rasters,
// sweep the phase-correlation windows, scale the magnitudes for storage and
// write the result.
package coregistration

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"s2coreg/internal/models"
	"s2coreg/pkg/correlation"
	"s2coreg/pkg/rasterio"
	"s2coreg/pkg/sweep"
	"s2coreg/pkg/visualization"
)

// ErrInvalidPath is returned when an input or output location is unusable
var ErrInvalidPath = errors.New("invalid path")

// Summary holds the statistics reported after a run
type Summary struct {
	// RawMean is the mean of every stored cell, no-data included
	RawMean float64

	// Mean, StdDev, Min and Max describe the valid magnitudes in pixels
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64

	// Coverage is the fraction of cells holding a magnitude
	Coverage float64

	WindowsEvaluated int
	WindowsSkipped   int

	Elapsed     time.Duration
	OutputPath  string
	PreviewPath string
}

// Params holds the pipeline parameters
type Params struct {
	// ReferencePath and MovingPath are the two single-band rasters to compare.
	// Both must have the same dimensions.
	ReferencePath string
	MovingPath    string

	// OutputDir must be an existing directory
	OutputDir string

	// OutputName is sanitized; empty selects a timestamped default
	OutputName string

	// Format of the output file
	Format rasterio.Format

	// Region restricts processing to part of the rasters
	Region Region

	// Sweep configures the window sweep
	Sweep sweep.Options

	// Scale and ClampMax transform magnitudes for storage
	Scale    float64
	ClampMax float64

	// Preview writes a PNG rendering of the unscaled magnitudes
	Preview bool
}

// Processor runs the pipeline
type Processor struct {
	params *Params
	logger *log.Logger

	reference *models.Raster
	moving    *models.Raster
	region    models.Bounds

	// magnitudes in pixels, and their scaled storage form
	result *sweep.Result
	stored *models.OutputRaster

	summary Summary
}

// NewProcessor creates a processor. A nil logger discards log output.
func NewProcessor(params *Params, logger *log.Logger) *Processor {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Processor{params: params, logger: logger}
}

// Process runs the complete pipeline
func (p *Processor) Process() error {
	start := time.Now()

	// Step 1: Validate paths
	p.logger.Println("Step 1: Validating paths...")
	if err := p.validatePaths(); err != nil {
		return err
	}
	outputPath, err := p.outputPath(start)
	if err != nil {
		return err
	}

	// Step 2: Load both rasters
	p.logger.Println("Step 2: Loading rasters...")
	if err := p.loadRasters(); err != nil {
		return err
	}

	// Step 3: Crop to the region of interest
	p.logger.Println("Step 3: Cropping to region of interest...")
	if err := p.crop(); err != nil {
		return err
	}

	// Step 4: Sweep windows
	p.logger.Printf("Step 4: Estimating shifts (window %d, step %d, upsample %d)...\n",
		p.params.Sweep.WindowSize, p.params.Sweep.WindowStep, p.params.Sweep.UpsampleFactor)
	res, err := sweep.Sweep(p.reference, p.moving, p.params.Sweep)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	p.result = res
	if len(res.Skipped) > 0 {
		p.logger.Printf("Skipped %d windows beyond the raster edge\n", len(res.Skipped))
	}

	// Step 5: Scale for storage
	p.logger.Println("Step 5: Scaling magnitudes for storage...")
	p.stored = ScaleForStorage(res.Output, p.params.Scale, p.params.ClampMax)

	// Step 6: Save
	p.logger.Println("Step 6: Saving results...")
	if err := p.save(outputPath, start); err != nil {
		return err
	}

	// Step 7: Summary
	p.calculateSummary()
	p.summary.Elapsed = time.Since(start)
	p.logger.Printf("Complete in: %s\n", p.summary.Elapsed)
	return nil
}

func (p *Processor) validatePaths() error {
	for _, path := range []string{p.params.ReferencePath, p.params.MovingPath} {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("%w: %s not found: %v", ErrInvalidPath, path, err)
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%w: %s is not a file", ErrInvalidPath, path)
		}
	}

	info, err := os.Stat(p.params.OutputDir)
	if err != nil {
		return fmt.Errorf("%w: output directory %s not found: %v", ErrInvalidPath, p.params.OutputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, p.params.OutputDir)
	}
	return nil
}

func (p *Processor) outputPath(now time.Time) (string, error) {
	name := p.params.OutputName
	if name == "" {
		name = rasterio.DefaultOutputName(now)
	}
	format := p.params.Format
	if format == "" {
		format = rasterio.TIFF
	}
	path, err := rasterio.OutputPath(p.params.OutputDir, name, format)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	return path, nil
}

func (p *Processor) loadRasters() error {
	ref, err := rasterio.Load(p.params.ReferencePath)
	if err != nil {
		return fmt.Errorf("failed to load reference: %w", err)
	}
	mov, err := rasterio.Load(p.params.MovingPath)
	if err != nil {
		return fmt.Errorf("failed to load moving: %w", err)
	}
	if !ref.SameShape(mov) {
		return fmt.Errorf("%w: reference %dx%d, moving %dx%d", correlation.ErrShapeMismatch,
			ref.Height, ref.Width, mov.Height, mov.Width)
	}
	p.reference, p.moving = ref, mov
	return nil
}

func (p *Processor) crop() error {
	bounds, err := p.params.Region.Resolve(p.reference.Height, p.reference.Width)
	if err != nil {
		return err
	}
	p.region = bounds
	p.reference = Crop(p.reference, bounds)
	p.moving = Crop(p.moving, bounds)
	return nil
}

func (p *Processor) save(path string, now time.Time) error {
	meta := rasterio.Metadata{
		Scale:          p.params.Scale,
		ClampMax:       p.params.ClampMax,
		RowOffset:      p.region.RowStart,
		ColOffset:      p.region.ColStart,
		Reference:      filepath.Base(p.params.ReferencePath),
		Moving:         filepath.Base(p.params.MovingPath),
		WindowSize:     p.params.Sweep.WindowSize,
		WindowStep:     p.params.Sweep.WindowStep,
		UpsampleFactor: p.params.Sweep.UpsampleFactor,
		FFTBackend:     string(p.params.Sweep.Backend),
		Created:        now.Format(time.RFC3339),
	}
	if err := rasterio.Save(path, p.stored, meta); err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	p.summary.OutputPath = path

	if p.params.Preview {
		previewPath := strings.TrimSuffix(path, filepath.Ext(path)) + "_preview.png"
		if err := visualization.SavePreview(previewPath, p.result.Output); err != nil {
			p.logger.Printf("Warning: Failed to save preview: %v\n", err)
		} else {
			p.summary.PreviewPath = previewPath
		}
	}
	return nil
}

func (p *Processor) calculateSummary() {
	out := p.result.Output
	p.summary.WindowsEvaluated = p.result.Evaluated
	p.summary.WindowsSkipped = len(p.result.Skipped)
	p.summary.RawMean = stat.Mean(p.stored.Data, nil)

	valid := out.Valid()
	if len(out.Data) > 0 {
		p.summary.Coverage = float64(len(valid)) / float64(len(out.Data))
	}
	if len(valid) == 0 {
		return
	}
	p.summary.Mean, p.summary.StdDev = stat.MeanStdDev(valid, nil)
	p.summary.Min = floats.Min(valid)
	p.summary.Max = floats.Max(valid)
}

// GetSummary returns the statistics of the last run
func (p *Processor) GetSummary() Summary {
	return p.summary
}

// GetResult returns the unscaled magnitude raster of the last run
func (p *Processor) GetResult() *models.OutputRaster {
	if p.result == nil {
		return nil
	}
	return p.result.Output
}

// ScaleForStorage multiplies every valid magnitude by scale, then caps every
// cell at clampMax. The no-data sentinel is left untouched unless it exceeds
// clampMax.
func ScaleForStorage(out *models.OutputRaster, scale, clampMax float64) *models.OutputRaster {
	stored := models.NewOutputRaster(out.Width, out.Height, out.NoData, out.Type)
	for i, v := range out.Data {
		if !out.IsNoData(v) {
			v *= scale
		}
		if v > clampMax {
			v = clampMax
		}
		stored.Data[i] = out.Type.Convert(v)
	}
	return stored
}
