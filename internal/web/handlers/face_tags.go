package handlers

import (
	"context"
	"net/http"

	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/facematch"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

// FaceTagsHandler handles face tag endpoints
type FaceTagsHandler struct {
	service *tagging.Service
}

// NewFaceTagsHandler creates a new face tags handler
func NewFaceTagsHandler(service *tagging.Service) *FaceTagsHandler {
	return &FaceTagsHandler{service: service}
}

// SubmitRequest is the body of a face tag submission. Exactly one of
// PersonID and PersonName must be set.
type SubmitRequest struct {
	PersonID   int64              `json:"person_id"`
	PersonName string             `json:"person_name"`
	Region     *facematch.Region  `json:"region"`
	Origin     database.TagOrigin `json:"origin"`
	Confidence *float64           `json:"confidence"`
}

// Submit proposes a new face tag; it is created pending
func (h *FaceTagsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	imageID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req SubmitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Region == nil {
		respondDomainError(w, r, validationError("region is required"))
		return
	}

	tag, err := h.service.Submit(r.Context(), tagging.SubmitRequest{
		ImageID:    imageID,
		PersonID:   req.PersonID,
		PersonName: req.PersonName,
		Region:     *req.Region,
		Origin:     req.Origin,
		Confidence: req.Confidence,
	}, actor)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, faceTagToResponse(*tag))
}

// ListForImage returns the tags of an image the caller may see
func (h *FaceTagsHandler) ListForImage(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	imageID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	status := database.TagStatus(r.URL.Query().Get("status"))

	tags, err := h.service.ListForImage(r.Context(), imageID, status, actor)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, faceTagsToResponse(tags))
}

// ListApproved returns the approved tags of an image
func (h *FaceTagsHandler) ListApproved(w http.ResponseWriter, r *http.Request) {
	imageID, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	tags, err := h.service.ListApprovedForImage(r.Context(), imageID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, faceTagsToResponse(tags))
}

// Get returns a single face tag
func (h *FaceTagsHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	tag, err := h.service.Get(r.Context(), id, actor)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, faceTagToResponse(*tag))
}

// Events returns the moderation history of a tag
func (h *FaceTagsHandler) Events(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	events, err := h.service.Events(r.Context(), id, actor)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	response := make([]ModerationEventResponse, len(events))
	for i, ev := range events {
		response[i] = ModerationEventResponse{
			ID:          ev.ID,
			BatchID:     ev.BatchID,
			TagID:       ev.TagID,
			Action:      ev.Action,
			ModeratorID: ev.ModeratorID,
			CreatedAt:   ev.CreatedAt,
		}
	}
	respondJSON(w, http.StatusOK, response)
}

// Approve moves a pending tag to approved
func (h *FaceTagsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Approve)
}

// Reject moves a pending tag to rejected
func (h *FaceTagsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.Reject)
}

func (h *FaceTagsHandler) transition(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, id int64, actor tagging.Actor) (*database.FaceTag, error),
) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	tag, err := action(r.Context(), id, actor)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, faceTagToResponse(*tag))
}
