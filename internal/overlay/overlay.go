// Package overlay computes the boxes and labels drawn over an image shown at
// an arbitrary display size. It keeps no state; callers re-render whenever
// the display surface changes size.
package overlay

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/er587/wedding-gallery-application/internal/constants"
	"github.com/er587/wedding-gallery-application/internal/facematch"
)

// ErrInvalidSurface is returned for display sizes that are not positive.
var ErrInvalidSurface = errors.New("display size must be positive")

// NoSelection marks a render without a selected box.
const NoSelection = -1

// Item is a region to draw. An empty label renders as "Face N".
type Item struct {
	Region facematch.Region
	Label  string
	TagID  int64
}

// Point is a label anchor in display pixels; Y is the text baseline.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is one drawable rectangle with its label.
type Box struct {
	Index    int                 `json:"index"`
	TagID    int64               `json:"tag_id,omitempty"`
	Rect     facematch.PixelRect `json:"rect"`
	Label    string              `json:"label"`
	Anchor   Point               `json:"label_anchor"`
	Color    string              `json:"color"`
	Selected bool                `json:"selected"`
}

// Frame is everything needed to draw the overlay on one surface.
type Frame struct {
	Width     float64 `json:"width"`
	Height    float64 `json:"height"`
	LineWidth int     `json:"line_width"`
	Font      string  `json:"font"`
	Boxes     []Box   `json:"boxes"`
}

func checkSurface(width, height float64) error {
	if !(width > 0 && height > 0) || math.IsInf(width, 0) || math.IsInf(height, 0) {
		return fmt.Errorf("%w: got %vx%v", ErrInvalidSurface, width, height)
	}
	return nil
}

// Render places items on a width x height surface, in draw order.
// selected is the index of the highlighted item, or NoSelection.
func Render(items []Item, width, height float64, selected int) (*Frame, error) {
	if err := checkSurface(width, height); err != nil {
		return nil, err
	}

	frame := &Frame{
		Width:     width,
		Height:    height,
		LineWidth: constants.OverlayLineWidth,
		Font:      constants.OverlayFont,
		Boxes:     make([]Box, 0, len(items)),
	}
	for i, item := range items {
		rect := facematch.ToPixels(item.Region, width, height)
		label := item.Label
		if label == "" {
			label = "Face " + strconv.Itoa(i+1)
		}
		color := constants.OverlayStrokeColor
		if i == selected {
			color = constants.OverlaySelectedColor
		}
		frame.Boxes = append(frame.Boxes, Box{
			Index:    i,
			TagID:    item.TagID,
			Rect:     rect,
			Label:    label,
			Anchor:   labelAnchor(rect, width, height),
			Color:    color,
			Selected: i == selected,
		})
	}
	return frame, nil
}

// labelAnchor returns the baseline origin of a box's label: offset right of
// and above the top-left corner. The anchor stays on a width x height
// surface: at least one offset from the right edge and one font height
// below the top.
func labelAnchor(rect facematch.PixelRect, width, height float64) Point {
	x := min(rect.X+constants.OverlayLabelOffset, width-constants.OverlayLabelOffset)
	y := max(rect.Y-constants.OverlayLabelOffset, constants.OverlayFontSize)
	return Point{X: max(0, x), Y: min(y, height)}
}

// Pick returns the index of the topmost item under a click at display pixels
// (clickX, clickY), or NoSelection.
func Pick(items []Item, width, height, clickX, clickY float64) (int, error) {
	if err := checkSurface(width, height); err != nil {
		return NoSelection, err
	}
	regions := make([]facematch.Region, len(items))
	for i, item := range items {
		regions[i] = item.Region
	}
	if idx, ok := facematch.TopmostHit(regions, clickX, clickY, width, height); ok {
		return idx, nil
	}
	return NoSelection, nil
}
