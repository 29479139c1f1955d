// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Overlay style constants
const (
	// OverlayStrokeColor is the outline color of face boxes
	OverlayStrokeColor = "#3b82f6"

	// OverlaySelectedColor is the outline color of the selected face box
	OverlaySelectedColor = "#ef4444"

	// OverlayLineWidth is the outline width in display pixels
	OverlayLineWidth = 3

	// OverlayFontSize is the label font size in display pixels
	OverlayFontSize = 16

	// OverlayFont is the CSS font of box labels
	OverlayFont = "16px Arial"

	// OverlayLabelOffset is the distance of the label from the box's top-left corner
	OverlayLabelOffset = 5
)

// Processing constants
const (
	// MaxImageSize is the maximum dimension (width or height) sent to the detector
	MaxImageSize = 1920

	// WorkerPoolSize is the default number of parallel workers for batch suggestion
	WorkerPoolSize = 4
)
