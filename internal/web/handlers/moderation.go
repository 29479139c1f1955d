package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/er587/wedding-gallery-application/internal/constants"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

// ModerationHandler handles bulk moderation, the pending queue and index
// maintenance
type ModerationHandler struct {
	service   *tagging.Service
	queue     *tagging.Queue
	rebuilder database.HNSWRebuilder // nil when no persistent index is configured
}

// NewModerationHandler creates a new moderation handler
func NewModerationHandler(service *tagging.Service, queue *tagging.Queue, rebuilder database.HNSWRebuilder) *ModerationHandler {
	return &ModerationHandler{service: service, queue: queue, rebuilder: rebuilder}
}

// BulkRequest is the body of bulk moderation actions
type BulkRequest struct {
	TagIDs []int64 `json:"tag_ids"`
}

// BulkApprove approves each listed tag independently
func (h *ModerationHandler) BulkApprove(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.service.BulkApprove)
}

// BulkReject rejects each listed tag independently
func (h *ModerationHandler) BulkReject(w http.ResponseWriter, r *http.Request) {
	h.bulk(w, r, h.service.BulkReject)
}

func (h *ModerationHandler) bulk(
	w http.ResponseWriter,
	r *http.Request,
	action func(ctx context.Context, ids []int64, actor tagging.Actor) (*tagging.BulkResult, error),
) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	var req BulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.TagIDs) > constants.MaxBulkIDs {
		respondDomainError(w, r, validationError("at most %d tag ids per request", constants.MaxBulkIDs))
		return
	}

	result, err := action(r.Context(), req.TagIDs, actor)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bulkToResponse(result))
}

// Queue returns a page of pending tags. A page beyond the end of a shrunken
// queue falls back to the last page; the effective page is reported.
func (h *ModerationHandler) Queue(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	if !requireModerator(w, r, actor, "view the moderation queue") {
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	pageSize, err := queryInt(r, "page_size", h.queue.DefaultPageSize())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	result, err := h.queue.PageOrLast(r.Context(), page, pageSize)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, QueueResponse{
		Items:      faceTagsToResponse(result.Items),
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages,
	})
}

// RebuildIndexResponse represents the response from rebuilding the HNSW index
type RebuildIndexResponse struct {
	Success    bool  `json:"success"`
	FaceCount  int   `json:"face_count"`
	DurationMs int64 `json:"duration_ms"`
}

// RebuildIndex rebuilds the similarity index over approved faces
func (h *ModerationHandler) RebuildIndex(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	if !requireModerator(w, r, actor, "rebuild the similarity index") {
		return
	}
	if h.rebuilder == nil {
		respondDomainError(w, r, fmt.Errorf("%w: similarity index is not enabled", tagging.ErrDetectionUnavailable))
		return
	}
	startTime := time.Now()

	if err := h.rebuilder.RebuildHNSW(r.Context()); err != nil {
		respondDomainError(w, r, fmt.Errorf("rebuild face index: %w", err))
		return
	}

	// Log warning but don't fail - index is usable in memory
	if err := h.rebuilder.SaveHNSWIndex(); err != nil {
		log.Printf("warning: failed to save face HNSW index to disk: %v", err)
	}

	respondJSON(w, http.StatusOK, RebuildIndexResponse{
		Success:    true,
		FaceCount:  h.rebuilder.HNSWCount(),
		DurationMs: time.Since(startTime).Milliseconds(),
	})
}
