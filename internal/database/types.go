package database

import (
	"time"

	"github.com/er587/wedding-gallery-application/internal/facematch"
)

// TagStatus is the moderation state of a face tag.
type TagStatus string

const (
	StatusPending  TagStatus = "pending"
	StatusApproved TagStatus = "approved"
	StatusRejected TagStatus = "rejected"
)

// Valid reports whether s is one of the known states.
func (s TagStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// TagOrigin records who proposed a face tag.
type TagOrigin string

const (
	OriginUserSubmitted TagOrigin = "user_submitted"
	OriginAutoSuggested TagOrigin = "auto_suggested"
)

// Valid reports whether o is one of the known origins.
func (o TagOrigin) Valid() bool {
	return o == OriginUserSubmitted || o == OriginAutoSuggested
}

// Image is the face subsystem's view of a gallery image.
type Image struct {
	ID         int64
	Width      int // intrinsic width in pixels
	Height     int // intrinsic height in pixels
	StorageRef string
	SyncedAt   time.Time
}

// Person is a named identity that face tags reference.
type Person struct {
	ID        int64
	Name      string
	CreatedBy string
	CreatedAt time.Time
}

// FaceTag binds a region of an image to a person.
type FaceTag struct {
	ID          int64
	ImageID     int64
	PersonID    int64
	PersonName  string // joined from people on reads
	Region      facematch.Region
	Confidence  *float64
	Origin      TagOrigin
	Status      TagStatus
	SubmittedBy string
	CreatedAt   time.Time
	ModeratedBy string
	ModeratedAt *time.Time
	Embedding   []float32 // face embedding donated by a matching detection, if any
}

// StoredDetection is one face found by the detector in the latest detection
// run for an image.
type StoredDetection struct {
	ImageID    int64
	FaceIndex  int
	Region     facematch.Region
	Confidence float64
	Embedding  []float32
	DetectedAt time.Time
}

// ModerationEvent is an audit record of a single approve or reject.
type ModerationEvent struct {
	ID          string
	BatchID     string // empty for single actions
	TagID       int64
	Action      TagStatus
	ModeratorID string
	CreatedAt   time.Time
}

// IndexedFace is an approved, identity-confirmed face in the similarity corpus.
type IndexedFace struct {
	TagID     int64
	PersonID  int64
	ImageID   int64
	Embedding []float32
}

// SimilarFace is a corpus face returned by a similarity search.
type SimilarFace struct {
	TagID    int64
	PersonID int64
	ImageID  int64
	Distance float64 // cosine distance to the query
}
