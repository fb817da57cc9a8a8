package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"s2coreg/internal/models"
	"s2coreg/pkg/config"
	"s2coreg/pkg/coregistration"
	"s2coreg/pkg/correlation"
	"s2coreg/pkg/rasterio"
	"s2coreg/pkg/sweep"
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options] <reference> <moving>\n\n", os.Args[0])
	fmt.Fprintln(flag.CommandLine.Output(), "Estimates the local displacement between two co-located band rasters.")
	fmt.Fprintln(flag.CommandLine.Output(), "\nOptions:")
	flag.PrintDefaults()
}

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "", "YAML configuration file; flags override its values")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	outDir := flag.String("out-path", ".", "Directory to write the result to")
	outName := flag.String("out-name", "", "Output file name (default: parallax_<timestamp>)")
	format := flag.String("format", "tif", "Output format: tif or bin")
	colStart := flag.Int("col-start", -1, "First column of the region of interest (-1: 0)")
	colEnd := flag.Int("col-end", -1, "End column of the region of interest, exclusive (-1: width)")
	rowStart := flag.Int("row-start", -1, "First row of the region of interest (-1: 0)")
	rowEnd := flag.Int("row-end", -1, "End row of the region of interest, exclusive (-1: height)")
	windowSize := flag.Int("window-size", 64, "Side of each correlation window in pixels")
	windowStep := flag.Int("window-step", 6, "Distance between window centers in pixels")
	upsample := flag.Int("upsample", 1, "Sub-pixel upsampling factor (1 disables refinement)")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: all available)")
	backend := flag.String("backend", "gonum", "FFT backend: gonum or godsp")
	outputType := flag.String("output-type", "float64", "Element type of the magnitudes: float64 or int16")
	noData := flag.Float64("no-data", models.DefaultNoData, "Value written to cells no window covers")
	preview := flag.Bool("preview", false, "Write a PNG preview next to the result")
	verbose := flag.Bool("verbose", true, "Log processing steps and progress")
	flag.Usage = usage
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Explicitly set flags take precedence over the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "out-path":
			cfg.Output.Dir = *outDir
		case "out-name":
			cfg.Output.Name = *outName
		case "format":
			cfg.Output.Format = *format
		case "col-start":
			cfg.Region.ColStart = *colStart
		case "col-end":
			cfg.Region.ColEnd = *colEnd
		case "row-start":
			cfg.Region.RowStart = *rowStart
		case "row-end":
			cfg.Region.RowEnd = *rowEnd
		case "window-size":
			cfg.Processing.WindowSize = *windowSize
		case "window-step":
			cfg.Processing.WindowStep = *windowStep
		case "upsample":
			cfg.Processing.UpsampleFactor = *upsample
		case "cores":
			cfg.Processing.NumCores = *numCores
		case "backend":
			cfg.Processing.FFTBackend = *backend
		case "output-type":
			cfg.Processing.OutputType = *outputType
		case "no-data":
			cfg.Processing.NoData = *noData
		case "preview":
			cfg.Output.Preview = *preview
		case "verbose":
			cfg.Output.Verbose = *verbose
		}
	})

	logger := log.New(io.Discard, "", 0)
	if cfg.Output.Verbose {
		logger = log.New(os.Stderr, "s2coreg: ", log.LstdFlags)
	}

	if err := run(cfg, flag.Arg(0), flag.Arg(1), logger); err != nil {
		log.Fatalf("Coregistration failed: %v", err)
	}
}

func run(cfg *config.Config, reference, moving string, logger *log.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	params, err := buildParams(cfg, reference, moving)
	if err != nil {
		return err
	}
	if cfg.Output.Verbose {
		params.Sweep.Progress = progressPrinter(logger)
	}

	fmt.Println("================================")
	fmt.Println("SUB-PIXEL BAND COREGISTRATION BY PHASE CORRELATION")
	fmt.Println("================================")

	processor := coregistration.NewProcessor(params, logger)
	if err := processor.Process(); err != nil {
		return err
	}

	summary := processor.GetSummary()
	fmt.Printf("\nCompleted in %.2f seconds\n", summary.Elapsed.Seconds())
	fmt.Printf("Output saved to: %s\n", summary.OutputPath)
	if summary.PreviewPath != "" {
		fmt.Printf("Preview saved to: %s\n", summary.PreviewPath)
	}

	fmt.Printf("\nDisplacement summary (pixels):\n")
	fmt.Printf("==============================\n")
	fmt.Printf("Windows evaluated: %d (skipped %d)\n", summary.WindowsEvaluated, summary.WindowsSkipped)
	fmt.Printf("Coverage: %.2f%%\n", summary.Coverage*100)
	fmt.Printf("Mean: %.4f  StdDev: %.4f\n", summary.Mean, summary.StdDev)
	fmt.Printf("Min: %.4f  Max: %.4f\n", summary.Min, summary.Max)
	fmt.Printf("Mean of stored values: %.2f\n", summary.RawMean)
	return nil
}

func buildParams(cfg *config.Config, reference, moving string) (*coregistration.Params, error) {
	typ, err := models.ParseElementType(cfg.Processing.OutputType)
	if err != nil {
		return nil, err
	}
	backend, err := correlation.ParseBackend(cfg.Processing.FFTBackend)
	if err != nil {
		return nil, err
	}
	format, err := rasterio.ParseFormat(cfg.Output.Format)
	if err != nil {
		return nil, err
	}

	opts := sweep.DefaultOptions()
	opts.WindowSize = cfg.Processing.WindowSize
	opts.WindowStep = cfg.Processing.WindowStep
	opts.UpsampleFactor = cfg.Processing.UpsampleFactor
	opts.NoData = cfg.Processing.NoData
	opts.OutputType = typ
	opts.Backend = backend
	if cfg.Processing.NumCores > 0 {
		opts.Workers = cfg.Processing.NumCores
	}

	return &coregistration.Params{
		ReferencePath: reference,
		MovingPath:    moving,
		OutputDir:     cfg.Output.Dir,
		OutputName:    cfg.Output.Name,
		Format:        format,
		Region: coregistration.Region{
			ColStart: cfg.Region.ColStart,
			ColEnd:   cfg.Region.ColEnd,
			RowStart: cfg.Region.RowStart,
			RowEnd:   cfg.Region.RowEnd,
		},
		Sweep:    opts,
		Scale:    cfg.Output.Scale,
		ClampMax: cfg.Output.ClampMax,
		Preview:  cfg.Output.Preview,
	}, nil
}

// progressPrinter logs every tenth of the sweep
func progressPrinter(logger *log.Logger) sweep.ProgressCallback {
	last := -1
	return func(completed, total int, message string) {
		if total == 0 {
			return
		}
		decile := completed * 10 / total
		if decile == last {
			return
		}
		last = decile
		logger.Printf("Progress: %d/%d windows (%d%%) %s\n", completed, total, completed*100/total, message)
	}
}
