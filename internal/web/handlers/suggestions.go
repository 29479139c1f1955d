package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/er587/wedding-gallery-application/internal/suggest"
)

// SuggestionsHandler handles detection and identity suggestion endpoints
type SuggestionsHandler struct {
	suggester *suggest.Suggester // nil when no detector is configured
	timeout   time.Duration
}

// NewSuggestionsHandler creates a new suggestions handler. Each request is
// bounded by the caller's context and, if positive, timeout.
func NewSuggestionsHandler(suggester *suggest.Suggester, timeout time.Duration) *SuggestionsHandler {
	return &SuggestionsHandler{suggester: suggester, timeout: timeout}
}

func (h *SuggestionsHandler) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(r.Context(), h.timeout)
	}
	return context.WithCancel(r.Context())
}

func (h *SuggestionsHandler) available(w http.ResponseWriter, r *http.Request) bool {
	if h.suggester == nil {
		respondDomainError(w, r, fmt.Errorf("%w: no face detector is configured", suggest.ErrDetectionUnavailable))
		return false
	}
	return true
}

// Detect runs the face detector on an image
func (h *SuggestionsHandler) Detect(w http.ResponseWriter, r *http.Request) {
	if _, ok := mustGetActor(w, r); !ok {
		return
	}
	imageID, ok := parseIDParam(w, r, "id")
	if !ok || !h.available(w, r) {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	faces, err := h.suggester.RequestDetection(ctx, imageID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	response := DetectionResponse{ImageID: imageID, Faces: make([]DetectedFaceResponse, len(faces))}
	for i, f := range faces {
		response.Faces[i] = DetectedFaceResponse{FaceIndex: i, Region: f.Region, Confidence: f.Confidence}
	}
	respondJSON(w, http.StatusOK, response)
}

// Suggest proposes people for the untagged faces of an image
func (h *SuggestionsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if _, ok := mustGetActor(w, r); !ok {
		return
	}
	imageID, ok := parseIDParam(w, r, "id")
	if !ok || !h.available(w, r) {
		return
	}
	ctx, cancel := h.context(r)
	defer cancel()

	suggestions, err := h.suggester.SuggestIdentities(ctx, imageID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, suggestionsToResponse(imageID, suggestions))
}
