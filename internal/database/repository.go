package database

import (
	"context"
)

// ConflictFunc decides whether approving candidate would duplicate one of the
// already approved tags of the same person on the same image.
type ConflictFunc func(candidate FaceTag, approved []FaceTag) bool

// PersonReader provides read-only access to the person registry
type PersonReader interface {
	// GetPerson returns the person with the given id or ErrNotFound
	GetPerson(ctx context.Context, id int64) (*Person, error)
	// ListPeople returns all people ordered alphabetically by name
	ListPeople(ctx context.Context) ([]Person, error)
}

// PersonWriter mutates the person registry
type PersonWriter interface {
	// FindOrCreatePerson returns the person whose name key equals key, creating it
	// with the given display name when none exists. Concurrent calls with the same
	// key yield a single row. The bool reports whether a row was created.
	FindOrCreatePerson(ctx context.Context, name, key, createdBy string) (*Person, bool, error)
	// RenamePerson changes a display name; ErrDuplicate if another person owns key
	RenamePerson(ctx context.Context, id int64, name, key string) (*Person, error)
	// DeletePerson removes a person; ErrInUse while any face tag references it
	DeletePerson(ctx context.Context, id int64) error
}

// PersonStore combines read and write access to people
type PersonStore interface {
	PersonReader
	PersonWriter
}

// ImageReader provides read-only access to synced gallery images
type ImageReader interface {
	// GetImage returns the image with the given id or ErrNotFound
	GetImage(ctx context.Context, id int64) (*Image, error)
	// ListImageIDs returns the ids of all known images
	ListImageIDs(ctx context.Context) ([]int64, error)
	// ListImagesWithoutApprovedTags returns images nobody has been confirmed on yet
	ListImagesWithoutApprovedTags(ctx context.Context) ([]Image, error)
}

// ImageWriter mirrors the gallery's image catalogue
type ImageWriter interface {
	// UpsertImage inserts or updates an image record
	UpsertImage(ctx context.Context, img Image) error
	// DeleteImages removes images together with their tags and detections
	DeleteImages(ctx context.Context, ids []int64) (int64, error)
}

// ImageStore combines read and write access to images
type ImageStore interface {
	ImageReader
	ImageWriter
}

// FaceTagReader provides read-only access to face tags
type FaceTagReader interface {
	// GetFaceTag returns the tag with the given id or ErrNotFound
	GetFaceTag(ctx context.Context, id int64) (*FaceTag, error)
	// ListFaceTagsForImage returns an image's tags ordered by (created_at, id);
	// an empty status returns tags in every state
	ListFaceTagsForImage(ctx context.Context, imageID int64, status TagStatus) ([]FaceTag, error)
	// PendingPage returns pending tags ordered by (created_at, id) starting at
	// offset, and the total number of pending tags, from one consistent snapshot
	PendingPage(ctx context.Context, offset, limit int) ([]FaceTag, int, error)
	// ListModerationEvents returns the audit trail of a tag, oldest first
	ListModerationEvents(ctx context.Context, tagID int64) ([]ModerationEvent, error)
}

// FaceTagWriter creates tags and performs moderation transitions
type FaceTagWriter interface {
	// CreateFaceTag stores a new tag and returns it with id and created_at set.
	// Returns ErrNotFound if the image or person does not exist.
	CreateFaceTag(ctx context.Context, tag FaceTag) (*FaceTag, error)
	// ApproveFaceTag moves a pending tag to approved and records ev.
	// Returns ErrNotFound, ErrStateConflict when the tag already left pending,
	// or ErrDuplicate when conflicts reports a clash with an approved tag.
	ApproveFaceTag(ctx context.Context, id int64, ev ModerationEvent, conflicts ConflictFunc) (*FaceTag, error)
	// RejectFaceTag moves a pending tag to rejected and records ev.
	// Returns ErrNotFound or ErrStateConflict.
	RejectFaceTag(ctx context.Context, id int64, ev ModerationEvent) (*FaceTag, error)
}

// FaceTagStore combines read and write access to face tags
type FaceTagStore interface {
	FaceTagReader
	FaceTagWriter
}

// DetectionStore keeps the most recent detector output per image
type DetectionStore interface {
	// ReplaceDetections replaces all stored detections of an image
	ReplaceDetections(ctx context.Context, imageID int64, detections []StoredDetection) error
	// GetDetections returns the stored detections of an image ordered by face index
	GetDetections(ctx context.Context, imageID int64) ([]StoredDetection, error)
}

// FaceSearcher finds identity-confirmed faces close to a query embedding
type FaceSearcher interface {
	// FindSimilarFaces returns up to limit approved faces ordered by ascending distance
	FindSimilarFaces(ctx context.Context, embedding []float32, limit int) ([]SimilarFace, error)
}
