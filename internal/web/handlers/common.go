// Package handlers provides HTTP handlers for the face tagging API.
// Handlers are grouped by resource:
//   - people.go: person registry (list, create, get, rename, delete)
//   - face_tags.go: submitting, listing and moderating single face tags
//   - moderation.go: bulk actions, the pending queue and index maintenance
//   - suggestions.go: face detection and identity suggestions
//   - overlay.go: display-space boxes and hit testing
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/er587/wedding-gallery-application/internal/constants"
	"github.com/er587/wedding-gallery-application/internal/tagging"
	"github.com/er587/wedding-gallery-application/internal/web/middleware"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// statusForKind maps an error kind to its HTTP status.
func statusForKind(kind string) int {
	switch kind {
	case tagging.KindValidation:
		return http.StatusBadRequest
	case tagging.KindInvalidRegion:
		return http.StatusUnprocessableEntity
	case tagging.KindNotFound:
		return http.StatusNotFound
	case tagging.KindInvalidState:
		return http.StatusConflict
	case tagging.KindPermission:
		return http.StatusForbidden
	case tagging.KindDetectionUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondDomainError translates an error from the tagging layer into a
// response. Unexpected errors are logged and hidden behind a generic message.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := tagging.Kind(err)
	status := statusForKind(kind)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %s", r.Method, sanitizeForLog(r.URL.Path), sanitizeForLog(err.Error()))
		respondError(w, status, tagging.KindInternal, "internal server error")
		return
	}
	respondError(w, status, kind, err.Error())
}

// validationError builds a tagging validation error with a message.
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", tagging.ErrValidation, fmt.Sprintf(format, args...))
}

// decodeJSON reads a size-limited JSON body into dst. On failure it writes a
// validation error and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respondError(w, http.StatusRequestEntityTooLarge, tagging.KindValidation, "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, tagging.KindValidation, errInvalidRequestBody)
		return false
	}
	return true
}

// parseIDParam reads a positive integer URL parameter. On failure it writes
// a validation error and returns false.
func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, tagging.KindValidation, fmt.Sprintf("invalid %s %q", name, raw))
		return 0, false
	}
	return id, true
}

// queryInt reads an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, validationError("%s must be an integer", name)
	}
	return n, nil
}

// mustGetActor returns the identity of the authenticated caller. It writes a
// 401 response and returns false when the request carries no session.
func mustGetActor(w http.ResponseWriter, r *http.Request) (tagging.Actor, bool) {
	session := middleware.GetSessionFromContext(r.Context())
	if session == nil {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "unauthorized")
		return tagging.Actor{}, false
	}
	return session.Actor(), true
}

// requireModerator writes a permission error unless actor is a moderator.
func requireModerator(w http.ResponseWriter, r *http.Request, actor tagging.Actor, action string) bool {
	if actor.IsModerator {
		return true
	}
	respondDomainError(w, r, fmt.Errorf("%w: only moderators may %s", tagging.ErrPermission, action))
	return false
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
