package coregistration

import (
	"errors"
	"fmt"

	"s2coreg/internal/models"
)

// ErrInvalidRegion is returned for a region of interest outside the rasters
var ErrInvalidRegion = errors.New("invalid region of interest")

// Region selects part of the source rasters. A value of -1 means the full
// extent: 0 for starts, the raster width or height for ends.
type Region struct {
	ColStart, ColEnd int
	RowStart, RowEnd int
}

// FullRegion covers the whole raster
func FullRegion() Region {
	return Region{ColStart: -1, ColEnd: -1, RowStart: -1, RowEnd: -1}
}

// Resolve converts the region to bounds on a height x width raster
func (r Region) Resolve(height, width int) (models.Bounds, error) {
	b := models.Bounds{
		RowStart: pick(r.RowStart, 0),
		RowEnd:   pick(r.RowEnd, height),
		ColStart: pick(r.ColStart, 0),
		ColEnd:   pick(r.ColEnd, width),
	}
	if b.Empty() || !b.Within(height, width) {
		return b, fmt.Errorf("%w: %s on %dx%d raster", ErrInvalidRegion, b, height, width)
	}
	return b, nil
}

func pick(v, full int) int {
	if v == -1 {
		return full
	}
	return v
}

// Crop copies the bounds of r into a new raster
func Crop(r *models.Raster, b models.Bounds) *models.Raster {
	if b.RowStart == 0 && b.ColStart == 0 && b.RowEnd == r.Height && b.ColEnd == r.Width {
		return r
	}
	return r.SubRaster(b)
}
