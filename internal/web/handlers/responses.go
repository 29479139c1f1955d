package handlers

import (
	"time"

	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/facematch"
	"github.com/er587/wedding-gallery-application/internal/suggest"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

// PersonResponse represents a person in API responses
type PersonResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func personToResponse(p database.Person) PersonResponse {
	return PersonResponse{ID: p.ID, Name: p.Name, CreatedBy: p.CreatedBy, CreatedAt: p.CreatedAt}
}

// FaceTagResponse represents a face tag in API responses
type FaceTagResponse struct {
	ID           int64              `json:"id"`
	ImageID      int64              `json:"image_id"`
	PersonID     int64              `json:"person_id"`
	PersonName   string             `json:"person_name"`
	Region       facematch.Region   `json:"region"`
	Confidence   *float64           `json:"confidence"`
	Origin       database.TagOrigin `json:"origin"`
	Status       database.TagStatus `json:"status"`
	SubmittedBy  string             `json:"submitted_by"`
	CreatedAt    time.Time          `json:"created_at"`
	ModeratedBy  string             `json:"moderated_by,omitempty"`
	ModeratedAt  *time.Time         `json:"moderated_at,omitempty"`
	HasEmbedding bool               `json:"has_embedding"`
}

func faceTagToResponse(t database.FaceTag) FaceTagResponse {
	return FaceTagResponse{
		ID:           t.ID,
		ImageID:      t.ImageID,
		PersonID:     t.PersonID,
		PersonName:   t.PersonName,
		Region:       t.Region,
		Confidence:   t.Confidence,
		Origin:       t.Origin,
		Status:       t.Status,
		SubmittedBy:  t.SubmittedBy,
		CreatedAt:    t.CreatedAt,
		ModeratedBy:  t.ModeratedBy,
		ModeratedAt:  t.ModeratedAt,
		HasEmbedding: len(t.Embedding) > 0,
	}
}

func faceTagsToResponse(tags []database.FaceTag) []FaceTagResponse {
	out := make([]FaceTagResponse, len(tags))
	for i := range tags {
		out[i] = faceTagToResponse(tags[i])
	}
	return out
}

// ModerationEventResponse represents one audit record
type ModerationEventResponse struct {
	ID          string             `json:"id"`
	BatchID     string             `json:"batch_id,omitempty"`
	TagID       int64              `json:"tag_id"`
	Action      database.TagStatus `json:"action"`
	ModeratorID string             `json:"moderator_id"`
	CreatedAt   time.Time          `json:"created_at"`
}

// BulkFailureResponse explains a bulk item that was not transitioned
type BulkFailureResponse struct {
	ID      int64  `json:"id"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// BulkResponse is the partial-result body of bulk moderation actions
type BulkResponse struct {
	BatchID  string                `json:"batch_id"`
	Approved []int64               `json:"approved"`
	Rejected []int64               `json:"rejected"`
	Failed   []BulkFailureResponse `json:"failed"`
}

func bulkToResponse(res *tagging.BulkResult) BulkResponse {
	out := BulkResponse{
		BatchID:  res.BatchID,
		Approved: nonNil(res.Approved),
		Rejected: nonNil(res.Rejected),
		Failed:   make([]BulkFailureResponse, len(res.Failed)),
	}
	for i, f := range res.Failed {
		out.Failed[i] = BulkFailureResponse{ID: f.ID, Reason: f.Reason, Message: f.Message}
	}
	return out
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// QueueResponse is one page of the moderation queue
type QueueResponse struct {
	Items      []FaceTagResponse `json:"items"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalCount int               `json:"total_count"`
	TotalPages int               `json:"total_pages"`
}

// DetectedFaceResponse is one face found by the detector
type DetectedFaceResponse struct {
	FaceIndex  int              `json:"face_index"`
	Region     facematch.Region `json:"region"`
	Confidence float64          `json:"confidence"`
}

// DetectionResponse lists the faces found in an image
type DetectionResponse struct {
	ImageID int64                  `json:"image_id"`
	Faces   []DetectedFaceResponse `json:"faces"`
}

// SuggestionResponse proposes a person for a detected face
type SuggestionResponse struct {
	FaceIndex  int              `json:"face_index"`
	Region     facematch.Region `json:"region"`
	PersonID   int64            `json:"person_id"`
	PersonName string           `json:"person_name"`
	Confidence float64          `json:"confidence"`
}

// SuggestionsResponse lists identity suggestions for an image
type SuggestionsResponse struct {
	ImageID     int64                `json:"image_id"`
	Suggestions []SuggestionResponse `json:"suggestions"`
}

func suggestionsToResponse(imageID int64, suggestions []suggest.Suggestion) SuggestionsResponse {
	out := SuggestionsResponse{ImageID: imageID, Suggestions: make([]SuggestionResponse, len(suggestions))}
	for i, s := range suggestions {
		out.Suggestions[i] = SuggestionResponse{
			FaceIndex:  s.FaceIndex,
			Region:     s.Region,
			PersonID:   s.PersonID,
			PersonName: s.PersonName,
			Confidence: s.Confidence,
		}
	}
	return out
}
