package rasterio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"os"

	"golang.org/x/image/tiff"

	"s2coreg/internal/models"
)

// Load reads the first band of a raster file
func Load(path string) (*models.Raster, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case Binary:
		return loadBinary(path)
	default:
		return loadTIFF(path)
	}
}

func loadTIFF(path string) (*models.Raster, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, err := tiff.Decode(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return imageToRaster(img), nil
}

// imageToRaster converts a decoded image to integer samples. 16-bit grey
// samples are reinterpreted as int16.
func imageToRaster(img image.Image) *models.Raster {
	bounds := img.Bounds()
	r := models.NewRaster(bounds.Dx(), bounds.Dy())

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				r.Set(y, x, int32(int16(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)))
			}
		}
	case *image.Gray:
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				r.Set(y, x, int32(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
	default:
		for y := 0; y < r.Height; y++ {
			for x := 0; x < r.Width; x++ {
				g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				r.Set(y, x, int32(g.Y))
			}
		}
	}
	return r
}

func loadBinary(path string) (*models.Raster, error) {
	meta, err := ReadMetadata(SidecarPath(path))
	if err != nil {
		return nil, fmt.Errorf("raw raster %s needs a sidecar: %w", path, err)
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, fmt.Errorf("invalid raster shape %dx%d in sidecar for %s", meta.Height, meta.Width, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	reader := bufio.NewReader(file)

	r := models.NewRaster(meta.Width, meta.Height)
	switch meta.DataType {
	case "int16", "":
		samples := make([]int16, len(r.Data))
		if err := binary.Read(reader, binary.LittleEndian, samples); err != nil {
			return nil, fmt.Errorf("failed to read binary data: %w", err)
		}
		for i, v := range samples {
			r.Data[i] = int32(v)
		}
	case "int32":
		if err := binary.Read(reader, binary.LittleEndian, r.Data); err != nil {
			return nil, fmt.Errorf("failed to read binary data: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported input data type %q in %s", meta.DataType, path)
	}
	return r, nil
}
