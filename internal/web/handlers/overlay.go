package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/er587/wedding-gallery-application/internal/constants"
	"github.com/er587/wedding-gallery-application/internal/facematch"
	"github.com/er587/wedding-gallery-application/internal/overlay"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

// OverlayHandler renders face boxes for a display surface
type OverlayHandler struct {
	service *tagging.Service
}

// NewOverlayHandler creates a new overlay handler
func NewOverlayHandler(service *tagging.Service) *OverlayHandler {
	return &OverlayHandler{service: service}
}

// OverlayResponse is a rendered frame plus the result of an optional click
type OverlayResponse struct {
	*overlay.Frame
	HitIndex *int `json:"hit_index,omitempty"`
}

// OverlayRegion is a candidate region in a render request
type OverlayRegion struct {
	facematch.Region
	Label string `json:"label,omitempty"`
}

// ClickPoint is a click position in display pixels
type ClickPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OverlayRequest is the body of a render request for arbitrary regions
type OverlayRequest struct {
	Width    float64         `json:"width"`
	Height   float64         `json:"height"`
	Regions  []OverlayRegion `json:"regions"`
	Selected *int            `json:"selected,omitempty"`
	Click    *ClickPoint     `json:"click,omitempty"`
}

func checkDisplaySize(width, height float64) error {
	for _, v := range []float64{width, height} {
		if math.IsNaN(v) || v <= 0 || v > constants.MaxDisplaySize {
			return validationError("display width and height must be between 0 and %d", constants.MaxDisplaySize)
		}
	}
	return nil
}

func queryFloat(r *http.Request, name string) (float64, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, validationError("%s must be a number", name)
	}
	return v, true, nil
}

// render draws items and resolves an optional click, which also selects the
// hit box.
func render(items []overlay.Item, width, height float64, selected int, click *ClickPoint) (*OverlayResponse, error) {
	var hit *int
	if click != nil {
		idx, err := overlay.Pick(items, width, height, click.X, click.Y)
		if err != nil {
			return nil, err
		}
		hit = &idx
		if idx != overlay.NoSelection {
			selected = idx
		}
	}
	frame, err := overlay.Render(items, width, height, selected)
	if err != nil {
		return nil, err
	}
	return &OverlayResponse{Frame: frame, HitIndex: hit}, nil
}

func overlayError(err error) error {
	if errors.Is(err, overlay.ErrInvalidSurface) {
		return fmt.Errorf("%w: %v", tagging.ErrValidation, err)
	}
	return err
}

// ImageOverlay renders the approved tags of an image, labelled with person
// names, for ?width=&height=. With click_x and click_y it also reports the
// topmost box under the click.
func (h *OverlayHandler) ImageOverlay(w http.ResponseWriter, r *http.Request) {
	imageID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	width, _, errW := queryFloat(r, "width")
	height, _, errH := queryFloat(r, "height")
	if err := errors.Join(errW, errH); err != nil {
		respondDomainError(w, r, validationError("width and height must be numbers"))
		return
	}
	if err := checkDisplaySize(width, height); err != nil {
		respondDomainError(w, r, err)
		return
	}
	clickX, hasX, errX := queryFloat(r, "click_x")
	clickY, hasY, errY := queryFloat(r, "click_y")
	if err := errors.Join(errX, errY); err != nil || hasX != hasY {
		respondDomainError(w, r, validationError("click_x and click_y must be numbers given together"))
		return
	}
	var click *ClickPoint
	if hasX {
		click = &ClickPoint{X: clickX, Y: clickY}
	}

	tags, err := h.service.ListApprovedForImage(r.Context(), imageID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	items := make([]overlay.Item, len(tags))
	for i, t := range tags {
		items[i] = overlay.Item{Region: t.Region, Label: t.PersonName, TagID: t.ID}
	}

	response, err := render(items, width, height, overlay.NoSelection, click)
	if err != nil {
		respondDomainError(w, r, overlayError(err))
		return
	}
	respondJSON(w, http.StatusOK, response)
}

// Render draws arbitrary candidate regions, such as detector output
func (h *OverlayHandler) Render(w http.ResponseWriter, r *http.Request) {
	var req OverlayRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := checkDisplaySize(req.Width, req.Height); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if len(req.Regions) > constants.MaxOverlayRegions {
		respondDomainError(w, r, validationError("at most %d regions per request", constants.MaxOverlayRegions))
		return
	}

	items := make([]overlay.Item, len(req.Regions))
	for i, reg := range req.Regions {
		if err := reg.Region.Validate(); err != nil {
			respondDomainError(w, r, fmt.Errorf("region %d: %w", i, err))
			return
		}
		items[i] = overlay.Item{Region: reg.Region, Label: reg.Label}
	}
	selected := overlay.NoSelection
	if req.Selected != nil {
		if *req.Selected < 0 || *req.Selected >= len(items) {
			respondDomainError(w, r, validationError("selected must index a region"))
			return
		}
		selected = *req.Selected
	}

	response, err := render(items, req.Width, req.Height, selected, req.Click)
	if err != nil {
		respondDomainError(w, r, overlayError(err))
		return
	}
	respondJSON(w, http.StatusOK, response)
}
