// Package config provides configuration loading and management for s2coreg.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"s2coreg/internal/models"
	"s2coreg/pkg/correlation"
	"s2coreg/pkg/rasterio"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many window estimators run in parallel
		NumCores int `yaml:"numCores"`

		// WindowSize is the side length of each correlation window in pixels
		WindowSize int `yaml:"windowSize"`

		// WindowStep is the spacing between window centers in pixels
		WindowStep int `yaml:"windowStep"`

		// UpsampleFactor sets the sub-pixel precision to 1/UpsampleFactor; 1 disables refinement
		UpsampleFactor int `yaml:"upsampleFactor"`

		// NoData is written to cells that no window covers
		NoData float64 `yaml:"noData"`

		// OutputType is the element type of the sweep output (float64 or int16)
		OutputType string `yaml:"outputType"`

		// FFTBackend selects the transform implementation (gonum or godsp)
		FFTBackend string `yaml:"fftBackend"`
	} `yaml:"processing"`

	// Region of interest, in pixels of the source rasters; -1 means the full extent
	Region struct {
		ColStart int `yaml:"colStart"`
		ColEnd   int `yaml:"colEnd"`
		RowStart int `yaml:"rowStart"`
		RowEnd   int `yaml:"rowEnd"`
	} `yaml:"region"`

	// Output parameters
	Output struct {
		// Dir is the directory the result is written to
		Dir string `yaml:"dir"`

		// Name is the output file name; empty means a timestamped default
		Name string `yaml:"name"`

		// Format is tif or bin
		Format string `yaml:"format"`

		// Scale multiplies every valid magnitude before storage
		Scale float64 `yaml:"scale"`

		// ClampMax caps stored values
		ClampMax float64 `yaml:"clampMax"`

		// Preview writes a PNG rendering next to the result
		Preview bool `yaml:"preview"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.WindowSize = 64
	cfg.Processing.WindowStep = 6
	cfg.Processing.UpsampleFactor = 1
	cfg.Processing.NoData = models.DefaultNoData
	cfg.Processing.OutputType = models.Float64.String()
	cfg.Processing.FFTBackend = string(correlation.Gonum)

	// Full extent
	cfg.Region.ColStart = -1
	cfg.Region.ColEnd = -1
	cfg.Region.RowStart = -1
	cfg.Region.RowEnd = -1

	// Set default output parameters
	cfg.Output.Dir = "."
	cfg.Output.Format = string(rasterio.TIFF)
	cfg.Output.Scale = 1000
	cfg.Output.ClampMax = 32000
	cfg.Output.Preview = false
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig reads a YAML configuration on top of DefaultConfig, so keys
// missing from the file keep their defaults. A missing or empty file yields
// the defaults; an unknown key is an error.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories as needed
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", configPath, err)
	}
	return nil
}

// CreateDefaultConfigFile writes DefaultConfig to configPath, as a starting
// point for editing
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	p := c.Processing
	if p.WindowSize < 2 {
		return fmt.Errorf("windowSize must be at least 2, got %d", p.WindowSize)
	}
	if p.WindowStep < 1 {
		return fmt.Errorf("windowStep must be at least 1, got %d", p.WindowStep)
	}
	if p.UpsampleFactor < 1 {
		return fmt.Errorf("upsampleFactor must be at least 1, got %d", p.UpsampleFactor)
	}
	if _, err := models.ParseElementType(p.OutputType); err != nil {
		return err
	}
	if _, err := correlation.ParseBackend(p.FFTBackend); err != nil {
		return err
	}
	if _, err := rasterio.ParseFormat(c.Output.Format); err != nil {
		return err
	}
	if c.Output.Scale <= 0 {
		return fmt.Errorf("output scale must be positive, got %g", c.Output.Scale)
	}
	return nil
}
