package handlers

import (
	"net/http"
	"strings"

	"github.com/er587/wedding-gallery-application/internal/tagging"
)

// PeopleHandler handles person registry endpoints
type PeopleHandler struct {
	registry *tagging.Registry
}

// NewPeopleHandler creates a new people handler
func NewPeopleHandler(registry *tagging.Registry) *PeopleHandler {
	return &PeopleHandler{registry: registry}
}

// PersonRequest is the body of create and rename requests
type PersonRequest struct {
	Name string `json:"name"`
}

// List returns all people, optionally filtered by a diacritic-insensitive
// name query
func (h *PeopleHandler) List(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	people, err := h.registry.Search(r.Context(), query)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	response := make([]PersonResponse, len(people))
	for i := range people {
		response[i] = personToResponse(people[i])
	}
	respondJSON(w, http.StatusOK, response)
}

// Create returns the person with the given name, creating it when new
func (h *PeopleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	var req PersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	person, err := h.registry.FindOrCreate(r.Context(), req.Name, actor.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, personToResponse(*person))
}

// Get returns a single person
func (h *PeopleHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	person, err := h.registry.Get(r.Context(), id)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, personToResponse(*person))
}

// Rename changes a person's display name
func (h *PeopleHandler) Rename(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}
	var req PersonRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	person, err := h.registry.Rename(r.Context(), id, req.Name, actor)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, personToResponse(*person))
}

// Delete removes a person that no face tag references
func (h *PeopleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, ok := mustGetActor(w, r)
	if !ok {
		return
	}
	id, ok := parseIDParam(w, r, "id")
	if !ok {
		return
	}

	if err := h.registry.Delete(r.Context(), id, actor); err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
