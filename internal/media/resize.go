package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"
)

// Prepared is an image re-encoded for upload, with its actual pixel size.
type Prepared struct {
	Data   []byte
	Width  int
	Height int
}

// Downscale decodes data and re-encodes it as JPEG so that neither edge
// exceeds maxSize, keeping the aspect ratio. maxSize <= 0 disables scaling.
func Downscale(data []byte, maxSize int) (*Prepared, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has no pixels (%dx%d)", width, height)
	}

	out := img
	if maxSize > 0 && (width > maxSize || height > maxSize) {
		newWidth, newHeight := fitWithin(width, height, maxSize)
		resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &Prepared{Data: buf.Bytes(), Width: out.Bounds().Dx(), Height: out.Bounds().Dy()}, nil
}

// fitWithin scales (width, height) so the longer edge equals maxSize.
func fitWithin(width, height, maxSize int) (int, int) {
	if width >= height {
		return maxSize, max(1, height*maxSize/width)
	}
	return max(1, width*maxSize/height), maxSize
}
