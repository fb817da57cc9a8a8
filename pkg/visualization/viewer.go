package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"s2coreg/internal/models"
)

// Viewer renders a displacement raster as a greyscale image. No-data cells
// are black; valid cells are stretched linearly between the smallest and
// largest valid value.
type Viewer struct {
	// raster holds the displacement magnitudes
	raster *models.OutputRaster

	// stretch limits of the valid cells
	min, max float64
}

// NewViewer creates a viewer for the given raster
func NewViewer(raster *models.OutputRaster) *Viewer {
	v := &Viewer{raster: raster, min: math.Inf(1), max: math.Inf(-1)}
	for _, val := range raster.Data {
		if raster.IsNoData(val) {
			continue
		}
		v.min = math.Min(v.min, val)
		v.max = math.Max(v.max, val)
	}
	return v
}

// Render returns the whole raster as an image
func (v *Viewer) Render() *image.Gray16 {
	img, _ := v.RenderRegion(models.Bounds{RowEnd: v.raster.Height, ColEnd: v.raster.Width})
	return img
}

// RenderRegion renders the half-open bounds of the raster
func (v *Viewer) RenderRegion(b models.Bounds) (*image.Gray16, error) {
	if b.Empty() {
		return nil, fmt.Errorf("region %s is empty", b)
	}
	if !b.Within(v.raster.Height, v.raster.Width) {
		return nil, fmt.Errorf("region %s extends beyond raster %dx%d", b, v.raster.Height, v.raster.Width)
	}

	img := image.NewGray16(image.Rect(0, 0, b.Cols(), b.Rows()))
	for y := b.RowStart; y < b.RowEnd; y++ {
		for x := b.ColStart; x < b.ColEnd; x++ {
			img.SetGray16(x-b.ColStart, y-b.RowStart, color.Gray16{Y: v.level(v.raster.At(y, x))})
		}
	}
	return img, nil
}

// level maps a value to a grey level; valid cells never map to pure black
func (v *Viewer) level(val float64) uint16 {
	if v.raster.IsNoData(val) {
		return 0
	}
	span := v.max - v.min
	if span <= 0 {
		return 65535
	}
	return uint16(1 + math.Round((val-v.min)/span*65534))
}

// SavePreview renders the raster and saves it as a PNG image
func SavePreview(filename string, raster *models.OutputRaster) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, NewViewer(raster).Render()); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	return file.Close()
}
