package rasterio

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Metadata is stored next to every written raster
type Metadata struct {
	Width    int     `yaml:"width"`
	Height   int     `yaml:"height"`
	DataType string  `yaml:"dataType"`
	NoData   float64 `yaml:"noData"`

	// UnsignedTag is set for TIFF output: the int16 samples are stored as
	// their uint16 bit patterns in a file tagged unsigned 16-bit, so readers
	// other than Load see -9999 as 55537
	UnsignedTag bool `yaml:"unsignedTag,omitempty"`

	// Scale and ClampMax describe the storage transform applied to the
	// displacement magnitudes (pixels * Scale, capped at ClampMax)
	Scale    float64 `yaml:"scale,omitempty"`
	ClampMax float64 `yaml:"clampMax,omitempty"`

	// RowOffset and ColOffset locate the raster within the source images
	RowOffset int `yaml:"rowOffset"`
	ColOffset int `yaml:"colOffset"`

	Reference      string `yaml:"reference,omitempty"`
	Moving         string `yaml:"moving,omitempty"`
	WindowSize     int    `yaml:"windowSize,omitempty"`
	WindowStep     int    `yaml:"windowStep,omitempty"`
	UpsampleFactor int    `yaml:"upsampleFactor,omitempty"`
	FFTBackend     string `yaml:"fftBackend,omitempty"`
	Created        string `yaml:"created,omitempty"`
}

// ReadMetadata loads a sidecar file
func ReadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading metadata: %w", err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("error parsing metadata %s: %w", path, err)
	}
	return &meta, nil
}

// WriteMetadata stores a sidecar file atomically
func WriteMetadata(path string, meta *Metadata) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("error marshaling metadata: %w", err)
	}
	return writeAtomic(path, func(f *os.File) error {
		_, err := f.Write(data)
		return err
	})
}
