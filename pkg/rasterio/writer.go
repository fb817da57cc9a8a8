package rasterio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"golang.org/x/image/tiff"

	"s2coreg/internal/models"
)

// Save writes a displacement raster and its sidecar. The raster is written to
// a temporary file and renamed into place, so a failed write never leaves a
// partial output behind.
//
// TIFF output always stores int16 samples as uint16 bit patterns, since the
// TIFF encoder only tags 16-bit grey as unsigned; the sidecar records this.
// Binary output stores int16 or float64 samples depending on the raster's
// element type.
func Save(path string, out *models.OutputRaster, meta Metadata) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	meta.Width = out.Width
	meta.Height = out.Height
	meta.NoData = out.NoData
	meta.DataType = models.Int16.String()
	meta.UnsignedTag = format == TIFF
	if format == Binary {
		meta.DataType = out.Type.String()
	}

	err = writeAtomic(path, func(f *os.File) error {
		if format == TIFF {
			return encodeTIFF(f, out)
		}
		return encodeBinary(f, out)
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return WriteMetadata(SidecarPath(path), &meta)
}

// SaveRaster writes an integer input raster, e.g. a cropped source band
func SaveRaster(path string, r *models.Raster) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	meta := Metadata{Width: r.Width, Height: r.Height, DataType: "int16"}

	err = writeAtomic(path, func(f *os.File) error {
		if format == TIFF {
			return tiff.Encode(f, rasterToGray16(r), &tiff.Options{Compression: tiff.Deflate})
		}
		w := bufio.NewWriter(f)
		samples := make([]int16, len(r.Data))
		for i, v := range r.Data {
			samples[i] = clampInt16(float64(v))
		}
		if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
			return err
		}
		return w.Flush()
	})
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return WriteMetadata(SidecarPath(path), &meta)
}

func encodeTIFF(f *os.File, out *models.OutputRaster) error {
	img := image.NewGray16(image.Rect(0, 0, out.Width, out.Height))
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(clampInt16(out.At(y, x)))})
		}
	}
	return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate})
}

func encodeBinary(f *os.File, out *models.OutputRaster) error {
	w := bufio.NewWriter(f)
	if out.Type == models.Int16 {
		samples := make([]int16, len(out.Data))
		for i, v := range out.Data {
			samples[i] = clampInt16(v)
		}
		if err := binary.Write(w, binary.LittleEndian, samples); err != nil {
			return err
		}
	} else if err := binary.Write(w, binary.LittleEndian, out.Data); err != nil {
		return err
	}
	return w.Flush()
}

func rasterToGray16(r *models.Raster) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, r.Width, r.Height))
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(clampInt16(float64(r.Get(y, x))))})
		}
	}
	return img
}

// clampInt16 truncates toward zero and saturates at the int16 range
func clampInt16(v float64) int16 {
	return int16(models.Int16.Convert(v))
}

// writeAtomic writes through a temporary file in the destination directory
func writeAtomic(path string, write func(f *os.File) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
