// Package facematch holds the resolution-independent face region model and
// the geometry used to compare, place and pick face regions.
package facematch

import (
	"errors"
	"fmt"
	"math"
)

// regionEpsilon absorbs rounding from pixel round trips at the image edge.
const regionEpsilon = 1e-9

var (
	// ErrMalformedRegion is returned for regions with non-finite coordinates.
	ErrMalformedRegion = errors.New("malformed region")
	// ErrInvalidRegion is returned for regions outside the unit square.
	ErrInvalidRegion = errors.New("invalid region")
)

// Region is a face rectangle expressed as fractions of the image's intrinsic
// width and height. Valid regions satisfy x+width <= 1, y+height <= 1 and
// have no negative field.
type Region struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelRect is a region placed on a display surface, in display pixels.
type PixelRect struct {
	X      float64 `json:"px"`
	Y      float64 `json:"py"`
	Width  float64 `json:"pw"`
	Height float64 `json:"ph"`
}

// NewRegion builds a validated Region.
func NewRegion(x, y, width, height float64) (Region, error) {
	r := Region{X: x, Y: y, Width: width, Height: height}
	if err := r.Validate(); err != nil {
		return Region{}, err
	}
	return r, nil
}

// Validate checks the unit-square invariant.
func (r Region) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coordinates must be finite numbers", ErrMalformedRegion)
		}
	}
	switch {
	case r.X < 0 || r.Y < 0 || r.Width < 0 || r.Height < 0:
		return fmt.Errorf("%w: coordinates must not be negative", ErrInvalidRegion)
	case r.X+r.Width > 1+regionEpsilon:
		return fmt.Errorf("%w: x + width = %.4f exceeds 1", ErrInvalidRegion, r.X+r.Width)
	case r.Y+r.Height > 1+regionEpsilon:
		return fmt.Errorf("%w: y + height = %.4f exceeds 1", ErrInvalidRegion, r.Y+r.Height)
	}
	return nil
}

// Empty reports whether the region covers no area.
func (r Region) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Area returns width * height.
func (r Region) Area() float64 {
	return r.Width * r.Height
}

// Corners returns the region as [x1, y1, x2, y2].
func (r Region) Corners() []float64 {
	return []float64{r.X, r.Y, r.X + r.Width, r.Y + r.Height}
}

// ToPixels places a region on a display surface of the given size.
// The result never extends past the surface.
func ToPixels(r Region, displayWidth, displayHeight float64) PixelRect {
	p := PixelRect{
		X:      r.X * displayWidth,
		Y:      r.Y * displayHeight,
		Width:  r.Width * displayWidth,
		Height: r.Height * displayHeight,
	}
	p.Width = min(p.Width, displayWidth-p.X)
	p.Height = min(p.Height, displayHeight-p.Y)
	return p
}

// FromPixels converts a rectangle drawn on a display surface back into a
// Region. Rectangles dragged up or left (negative size) are normalised and
// the result is clamped to the unit square, so clicks a pixel past the edge
// still produce a valid region. A non-positive surface yields the zero Region.
func FromPixels(px, py, pw, ph, displayWidth, displayHeight float64) Region {
	if displayWidth <= 0 || displayHeight <= 0 {
		return Region{}
	}
	if pw < 0 {
		px, pw = px+pw, -pw
	}
	if ph < 0 {
		py, ph = py+ph, -ph
	}

	x1 := clamp01(px / displayWidth)
	y1 := clamp01(py / displayHeight)
	x2 := clamp01((px + pw) / displayWidth)
	y2 := clamp01((py + ph) / displayHeight)

	return Region{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// HitTest reports whether a click at (clickX, clickY) display pixels falls
// inside the region's rectangle. Edges count as inside.
func HitTest(r Region, clickX, clickY, displayWidth, displayHeight float64) bool {
	p := ToPixels(r, displayWidth, displayHeight)
	return clickX >= p.X && clickX <= p.X+p.Width &&
		clickY >= p.Y && clickY <= p.Y+p.Height
}

// TopmostHit resolves a click against overlapping regions. The last region in
// the slice is drawn last and therefore wins. It returns -1 and false when no
// region contains the click.
func TopmostHit(regions []Region, clickX, clickY, displayWidth, displayHeight float64) (int, bool) {
	for i := len(regions) - 1; i >= 0; i-- {
		if HitTest(regions[i], clickX, clickY, displayWidth, displayHeight) {
			return i, true
		}
	}
	return -1, false
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
