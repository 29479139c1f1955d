// Package detector talks to the external face detection service, which
// locates faces in an image and returns one embedding per face.
package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/facematch"
	"github.com/er587/wedding-gallery-application/internal/media"
)

const defaultDetectorURL = "http://localhost:8000"

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels of the uploaded image
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client detects faces in gallery images using the detection server
type Client struct {
	baseURL      string
	client       *http.Client
	library      *media.Library
	maxImageSize int
}

// NewClient creates a detector client reading image bytes from library
func NewClient(cfg config.DetectorConfig, library *media.Library) *Client {
	baseURL := cfg.URL
	if baseURL == "" {
		baseURL = defaultDetectorURL
	}
	return &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       &http.Client{Timeout: cfg.Timeout},
		library:      library,
		maxImageSize: cfg.MaxImageSize,
	}
}

// postMultipartImage posts the image as the "file" field of a multipart form.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", detectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// detectMIMEType detects the MIME type from image data
func detectMIMEType(data []byte) string {
	if len(data) < 8 {
		return "application/octet-stream"
	}
	// JPEG: FF D8 FF
	if data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF {
		return "image/jpeg"
	}
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	if data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47 {
		return "image/png"
	}
	return "application/octet-stream"
}

// ComputeFaceEmbeddings detects faces in raw image bytes and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &faceResp, nil
}

// Detect loads the image from the media library, downscales it and returns
// the detected faces as fractional regions. Faces whose bounding box is
// malformed or empty are dropped.
func (c *Client) Detect(ctx context.Context, img database.Image) ([]facematch.Detection, error) {
	data, err := c.library.Read(img.StorageRef)
	if err != nil {
		return nil, err
	}
	prepared, err := media.Downscale(data, c.maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("prepare image %d: %w", img.ID, err)
	}

	resp, err := c.ComputeFaceEmbeddings(ctx, prepared.Data)
	if err != nil {
		return nil, err
	}

	detections := make([]facematch.Detection, 0, len(resp.Faces))
	for _, face := range resp.Faces {
		region, ok := facematch.RegionFromPixelBBox(face.BBox, prepared.Width, prepared.Height)
		if !ok {
			continue
		}
		detections = append(detections, facematch.Detection{
			Region:     region,
			Confidence: clampScore(face.DetScore),
			Embedding:  face.Embedding,
		})
	}
	return detections, nil
}

func clampScore(s float64) float64 {
	return max(0, min(1, s))
}
