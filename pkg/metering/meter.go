// Package metering turns a grayscale frame into a single brightness value,
// either around a detected armor's light bars or over a center-weighted grid
// of the whole frame.
package metering

import (
	"image"
	"math"

	"gonum.org/v1/gonum/stat"

	"armor-exposure/pkg/types"
)

const gridSize = 3

// GridWeights is the row-major 3x3 center-weighted metering pattern.
// Center 0.4, edge-centers 0.1, corners 0.05.
var GridWeights = [gridSize * gridSize]float64{
	0.05, 0.1, 0.05,
	0.1, 0.4, 0.1,
	0.05, 0.1, 0.05,
}

// Meter measures frame brightness. The zero value meters with no ROI margin.
type Meter struct {
	// MarginFraction grows each light-bar box by this fraction of its
	// width/height on every side before sampling.
	MarginFraction float64
}

func New(marginFraction float64) *Meter {
	return &Meter{MarginFraction: marginFraction}
}

// ExpandRegion grows r by the meter margin, snaps it outward to whole pixels
// and clips it to bounds. The result may be empty.
func (m *Meter) ExpandRegion(r types.Rect, bounds image.Rectangle) image.Rectangle {
	mx := r.Width * m.MarginFraction
	my := r.Height * m.MarginFraction

	x0 := math.Floor(r.X - mx)
	y0 := math.Floor(r.Y - my)
	x1 := math.Ceil(r.X + r.Width + mx)
	y1 := math.Ceil(r.Y + r.Height + my)

	if r.Width <= 0 || r.Height <= 0 || math.IsNaN(x0+y0+x1+y1) {
		return image.Rectangle{}
	}

	// avoid overflowing int on absurd detector output
	rect := image.Rect(
		clampInt(x0, bounds.Min.X, bounds.Max.X),
		clampInt(y0, bounds.Min.Y, bounds.Max.Y),
		clampInt(x1, bounds.Min.X, bounds.Max.X),
		clampInt(y1, bounds.Min.Y, bounds.Max.Y),
	)

	return rect.Intersect(bounds)
}

// RegionBrightness returns the mean luminance of the expanded light-bar
// region. ok is false when the region has no pixels inside the frame.
func (m *Meter) RegionBrightness(r types.Rect, frame *image.Gray) (float64, bool) {
	if frame == nil {
		return 0, false
	}
	roi := m.ExpandRegion(r, frame.Bounds())
	return meanOf(frame, roi)
}

// TargetBrightness averages the two light-bar regions of target. ok is false
// if either region is invalid.
func (m *Meter) TargetBrightness(target types.Target, frame *image.Gray) (float64, bool) {
	left, ok := m.RegionBrightness(target.Left, frame)
	if !ok {
		return 0, false
	}
	right, ok := m.RegionBrightness(target.Right, frame)
	if !ok {
		return 0, false
	}

	return (left + right) / 2, true
}

// GridPatches splits bounds into a 3x3 grid, row-major. The last row and
// column absorb the remainder pixels.
func GridPatches(bounds image.Rectangle) [gridSize * gridSize]image.Rectangle {
	var patches [gridSize * gridSize]image.Rectangle
	pw := bounds.Dx() / gridSize
	ph := bounds.Dy() / gridSize

	for i := 0; i < gridSize; i++ {
		y0 := bounds.Min.Y + i*ph
		y1 := y0 + ph
		if i == gridSize-1 {
			y1 = bounds.Max.Y
		}
		for j := 0; j < gridSize; j++ {
			x0 := bounds.Min.X + j*pw
			x1 := x0 + pw
			if j == gridSize-1 {
				x1 = bounds.Max.X
			}
			patches[i*gridSize+j] = image.Rect(x0, y0, x1, y1)
		}
	}

	return patches
}

// GlobalBrightness is the center-weighted average of the nine patch means.
// Frames smaller than 3x3 pixels leave some patch empty and are rejected.
func (m *Meter) GlobalBrightness(frame *image.Gray) (float64, bool) {
	if frame == nil {
		return 0, false
	}
	patches := GridPatches(frame.Bounds())

	means := make([]float64, len(patches))
	for i, p := range patches {
		mean, ok := meanOf(frame, p)
		if !ok {
			return 0, false
		}
		means[i] = mean
	}

	return stat.Mean(means, GridWeights[:]), true
}

// SelectMode picks the metering source for a frame. A target whose light
// bars can both be sampled locks metering onto the armor; anything else falls
// back to the global grid. The returned sample is invalid only when the
// global grid cannot be sampled either.
func (m *Meter) SelectMode(target *types.Target, frame *image.Gray, armorSetpoint, globalSetpoint float64) (types.BrightnessSample, float64) {
	if target != nil {
		if v, ok := m.TargetBrightness(*target, frame); ok {
			return types.BrightnessSample{Value: v, Mode: types.TargetLocked, Valid: true}, armorSetpoint
		}
		logger.Debugf("target regions outside frame, falling back to global metering")
	}

	v, ok := m.GlobalBrightness(frame)
	return types.BrightnessSample{Value: v, Mode: types.GlobalFallback, Valid: ok}, globalSetpoint
}

func meanOf(frame *image.Gray, r image.Rectangle) (float64, bool) {
	r = r.Intersect(frame.Bounds())
	if r.Empty() {
		return 0, false
	}

	var sum uint64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := frame.PixOffset(r.Min.X, y)
		for _, v := range frame.Pix[off : off+r.Dx()] {
			sum += uint64(v)
		}
	}

	return float64(sum) / float64(r.Dx()*r.Dy()), true
}

func clampInt(v float64, lo, hi int) int {
	if v < float64(lo) {
		return lo
	}
	if v > float64(hi) {
		return hi
	}
	return int(v)
}
