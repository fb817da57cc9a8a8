// Package rasterio reads input rasters and writes displacement rasters.
//
// Two formats are supported. TIFF files hold a single 16-bit grey band whose
// samples are interpreted as signed int16 (other grey/colour TIFFs are read
// as 8-bit luminance). Raw ".bin" files hold little-endian samples and rely
// on a YAML sidecar ("<file>.yaml") for their shape and element type. Every
// written raster gets a sidecar describing it.
package rasterio

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Format identifies a raster file format
type Format string

const (
	TIFF   Format = "tif"
	Binary Format = "bin"
)

// ParseFormat converts a config or flag value to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "tif", "tiff", "gtiff", "":
		return TIFF, nil
	case "bin", "raw":
		return Binary, nil
	}
	return "", fmt.Errorf("unknown raster format %q (want tif or bin)", s)
}

// FormatOf infers the format from a file extension
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tif", ".tiff":
		return TIFF, nil
	case ".bin":
		return Binary, nil
	}
	return "", fmt.Errorf("unsupported raster file %q: expected .tif, .tiff or .bin", path)
}

// SidecarPath returns the metadata file that accompanies a raster
func SidecarPath(path string) string { return path + ".yaml" }

var unsafeChars = regexp.MustCompile(`[^-\p{L}\p{N}_.]`)

// SanitizeFilename trims the name, replaces spaces with underscores and drops
// every character other than letters, digits, '-', '_' and '.'.
func SanitizeFilename(name string) (string, error) {
	washed := strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	washed = unsafeChars.ReplaceAllString(washed, "")
	if washed == "" || washed == "." || washed == ".." {
		return "", fmt.Errorf("could not sanitize output name %q", name)
	}
	return washed, nil
}

// DefaultOutputName returns "parallax_<timestamp>" to the minute, with the
// time separators replaced so the name is portable
func DefaultOutputName(t time.Time) string {
	return "parallax_" + t.Format("2006-01-02T15.04")
}

// OutputPath joins dir and the sanitized name, appending the format
// extension when the name does not already end with it
func OutputPath(dir, name string, format Format) (string, error) {
	clean, err := SanitizeFilename(name)
	if err != nil {
		return "", err
	}
	ext := "." + string(format)
	if !strings.HasSuffix(strings.ToLower(clean), ext) {
		clean += ext
	}
	return filepath.Join(dir, clean), nil
}
