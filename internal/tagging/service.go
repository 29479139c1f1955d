package tagging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/facematch"
)

// SubmitRequest describes a proposed face tag. Exactly one of PersonID and
// PersonName identifies the person; a name is resolved through the registry
// and may create a new person.
type SubmitRequest struct {
	ImageID    int64
	PersonID   int64
	PersonName string
	Region     facematch.Region
	Origin     database.TagOrigin
	Confidence *float64
}

// BulkFailure explains why one id of a bulk action was not transitioned.
type BulkFailure struct {
	ID      int64
	Reason  string // one of the Kind* constants
	Message string
}

// BulkResult is the per-item outcome of a bulk moderation action.
type BulkResult struct {
	BatchID  string
	Approved []int64
	Rejected []int64
	Failed   []BulkFailure
}

// Service owns the face tag lifecycle. All state transitions go through it.
type Service struct {
	people     *Registry
	tags       database.FaceTagStore
	images     database.ImageReader
	detections database.DetectionStore
	policy     config.PolicyConfig

	now   func() time.Time
	newID func() string
}

// NewService creates the lifecycle service. detections may be nil, in which
// case submitted tags are stored without an embedding.
func NewService(
	people *Registry,
	tags database.FaceTagStore,
	images database.ImageReader,
	detections database.DetectionStore,
	policy config.PolicyConfig,
) *Service {
	return &Service{
		people:     people,
		tags:       tags,
		images:     images,
		detections: detections,
		policy:     policy,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Registry returns the person registry used to resolve person references.
func (s *Service) Registry() *Registry {
	return s.people
}

func validateRegion(r facematch.Region) error {
	if err := r.Validate(); err != nil {
		if errors.Is(err, facematch.ErrMalformedRegion) {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}
		return err
	}
	if r.Empty() {
		return fmt.Errorf("%w: region must have a positive width and height", ErrValidation)
	}
	return nil
}

func validateConfidence(origin database.TagOrigin, confidence *float64) error {
	if confidence == nil {
		if origin == database.OriginAutoSuggested {
			return fmt.Errorf("%w: auto-suggested tags must carry a confidence", ErrValidation)
		}
		return nil
	}
	c := *confidence
	if math.IsNaN(c) || c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrValidation)
	}
	return nil
}

func (s *Service) getImage(ctx context.Context, id int64) (*database.Image, error) {
	img, err := s.images.GetImage(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: image %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

func (s *Service) resolvePerson(ctx context.Context, req SubmitRequest, actor Actor) (*database.Person, error) {
	switch {
	case req.PersonID != 0 && req.PersonName != "":
		return nil, fmt.Errorf("%w: give either a person id or a person name, not both", ErrValidation)
	case req.PersonID != 0:
		return s.people.Get(ctx, req.PersonID)
	case req.PersonName != "":
		return s.people.FindOrCreate(ctx, req.PersonName, actor.UserID)
	}
	return nil, fmt.Errorf("%w: a person id or person name is required", ErrValidation)
}

func (s *Service) isDuplicate(candidate facematch.Region, approved []database.FaceTag) bool {
	for _, a := range approved {
		if facematch.IsDuplicate(candidate, a.Region, s.policy.DuplicateIoU) {
			return true
		}
	}
	return false
}

// Submit creates a pending face tag. Input is fully validated before the
// person is resolved, so a rejected submission never creates a person.
func (s *Service) Submit(ctx context.Context, req SubmitRequest, actor Actor) (*database.FaceTag, error) {
	if req.Origin == "" {
		req.Origin = database.OriginUserSubmitted
	}
	if !req.Origin.Valid() {
		return nil, fmt.Errorf("%w: unknown origin %q", ErrValidation, req.Origin)
	}
	if err := validateRegion(req.Region); err != nil {
		return nil, err
	}
	if err := validateConfidence(req.Origin, req.Confidence); err != nil {
		return nil, err
	}
	if req.PersonName != "" && facematch.CleanPersonName(req.PersonName) == "" {
		return nil, fmt.Errorf("%w: person name must not be empty", ErrValidation)
	}
	if _, err := s.getImage(ctx, req.ImageID); err != nil {
		return nil, err
	}

	person, err := s.resolvePerson(ctx, req, actor)
	if err != nil {
		return nil, err
	}

	approved, err := s.tags.ListFaceTagsForImage(ctx, req.ImageID, database.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved tags: %w", err)
	}
	var samePerson []database.FaceTag
	for _, t := range approved {
		if t.PersonID == person.ID {
			samePerson = append(samePerson, t)
		}
	}
	if s.isDuplicate(req.Region, samePerson) {
		return nil, fmt.Errorf("%w: %w: %s is already tagged at this position", ErrValidation, ErrDuplicate, person.Name)
	}

	tag := database.FaceTag{
		ImageID:     req.ImageID,
		PersonID:    person.ID,
		Region:      req.Region,
		Confidence:  req.Confidence,
		Origin:      req.Origin,
		Status:      database.StatusPending,
		SubmittedBy: actor.UserID,
		Embedding:   s.enrollEmbedding(ctx, req.ImageID, req.Region),
	}

	created, err := s.tags.CreateFaceTag(ctx, tag)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: image %d or person %d no longer exists", ErrNotFound, req.ImageID, person.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("create face tag: %w", err)
	}
	return created, nil
}

// enrollEmbedding returns the embedding of the stored detection that best
// matches region, or nil when there is none.
func (s *Service) enrollEmbedding(ctx context.Context, imageID int64, region facematch.Region) []float32 {
	if s.detections == nil {
		return nil
	}
	detections, err := s.detections.GetDetections(ctx, imageID)
	if err != nil {
		log.Printf("warning: failed to load detections for image %d: %v", imageID, err)
		return nil
	}
	if len(detections) == 0 {
		return nil
	}

	regions := make([]facematch.Region, len(detections))
	for i, d := range detections {
		regions[i] = d.Region
	}
	idx, _ := facematch.BestMatch(region, regions, s.policy.DetectionMatchIoU)
	if idx < 0 {
		return nil
	}
	return detections[idx].Embedding
}

func (s *Service) event(actor Actor, batchID string) database.ModerationEvent {
	return database.ModerationEvent{
		ID:          s.newID(),
		BatchID:     batchID,
		ModeratorID: actor.UserID,
		CreatedAt:   s.now().UTC(),
	}
}

func requireModerator(actor Actor, action string) error {
	if !actor.IsModerator {
		return fmt.Errorf("%w: only moderators may %s face tags", ErrPermission, action)
	}
	return nil
}

func transitionError(id int64, action string, err error) error {
	switch {
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: face tag %d", ErrNotFound, id)
	case errors.Is(err, database.ErrStateConflict):
		return fmt.Errorf("%w: face tag %d is no longer pending", ErrInvalidState, id)
	case errors.Is(err, database.ErrDuplicate):
		return fmt.Errorf("%w: %w: face tag %d", ErrInvalidState, ErrDuplicate, id)
	}
	return fmt.Errorf("%s face tag %d: %w", action, id, err)
}

// Approve moves a pending tag to approved. Approving a tag that has already
// left pending, or that duplicates an approved tag of the same person on the
// same image, fails with ErrInvalidState.
func (s *Service) Approve(ctx context.Context, id int64, actor Actor) (*database.FaceTag, error) {
	if err := requireModerator(actor, "approve"); err != nil {
		return nil, err
	}
	return s.approve(ctx, id, actor, "")
}

func (s *Service) approve(ctx context.Context, id int64, actor Actor, batchID string) (*database.FaceTag, error) {
	conflicts := func(candidate database.FaceTag, approved []database.FaceTag) bool {
		return s.isDuplicate(candidate.Region, approved)
	}
	tag, err := s.tags.ApproveFaceTag(ctx, id, s.event(actor, batchID), conflicts)
	if err != nil {
		return nil, transitionError(id, "approve", err)
	}
	return tag, nil
}

// Reject moves a pending tag to rejected.
func (s *Service) Reject(ctx context.Context, id int64, actor Actor) (*database.FaceTag, error) {
	if err := requireModerator(actor, "reject"); err != nil {
		return nil, err
	}
	return s.reject(ctx, id, actor, "")
}

func (s *Service) reject(ctx context.Context, id int64, actor Actor, batchID string) (*database.FaceTag, error) {
	tag, err := s.tags.RejectFaceTag(ctx, id, s.event(actor, batchID))
	if err != nil {
		return nil, transitionError(id, "reject", err)
	}
	return tag, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// BulkApprove approves each id independently. A failing id never undoes the
// others; it is reported in Failed with its reason.
func (s *Service) BulkApprove(ctx context.Context, ids []int64, actor Actor) (*BulkResult, error) {
	if err := requireModerator(actor, "approve"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no face tag ids given", ErrValidation)
	}

	result := &BulkResult{BatchID: s.newID(), Approved: []int64{}, Failed: []BulkFailure{}}
	for _, id := range uniqueIDs(ids) {
		if _, err := s.approve(ctx, id, actor, result.BatchID); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Reason: Kind(err), Message: err.Error()})
			continue
		}
		result.Approved = append(result.Approved, id)
	}
	return result, nil
}

// BulkReject rejects each id independently with the same partial-result
// contract as BulkApprove.
func (s *Service) BulkReject(ctx context.Context, ids []int64, actor Actor) (*BulkResult, error) {
	if err := requireModerator(actor, "reject"); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no face tag ids given", ErrValidation)
	}

	result := &BulkResult{BatchID: s.newID(), Rejected: []int64{}, Failed: []BulkFailure{}}
	for _, id := range uniqueIDs(ids) {
		if _, err := s.reject(ctx, id, actor, result.BatchID); err != nil {
			result.Failed = append(result.Failed, BulkFailure{ID: id, Reason: Kind(err), Message: err.Error()})
			continue
		}
		result.Rejected = append(result.Rejected, id)
	}
	return result, nil
}

// ListApprovedForImage returns the approved tags of an image, the only tags
// every viewer may see.
func (s *Service) ListApprovedForImage(ctx context.Context, imageID int64) ([]database.FaceTag, error) {
	if _, err := s.getImage(ctx, imageID); err != nil {
		return nil, err
	}
	tags, err := s.tags.ListFaceTagsForImage(ctx, imageID, database.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved tags: %w", err)
	}
	return tags, nil
}

// ListForImage returns the tags of an image visible to actor. Moderators see
// every state and may filter by status; everyone else sees approved tags.
func (s *Service) ListForImage(
	ctx context.Context, imageID int64, status database.TagStatus, actor Actor,
) ([]database.FaceTag, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if !actor.IsModerator {
		return s.ListApprovedForImage(ctx, imageID)
	}
	if _, err := s.getImage(ctx, imageID); err != nil {
		return nil, err
	}
	tags, err := s.tags.ListFaceTagsForImage(ctx, imageID, status)
	if err != nil {
		return nil, fmt.Errorf("list face tags: %w", err)
	}
	return tags, nil
}

// Get returns a tag if actor may see it: moderators and the submitter always,
// everyone else once it is approved. Hidden tags are reported as not found.
func (s *Service) Get(ctx context.Context, id int64, actor Actor) (*database.FaceTag, error) {
	tag, err := s.tags.GetFaceTag(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: face tag %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get face tag: %w", err)
	}
	if tag.Status != database.StatusApproved && !actor.IsModerator && tag.SubmittedBy != actor.UserID {
		return nil, fmt.Errorf("%w: face tag %d", ErrNotFound, id)
	}
	return tag, nil
}

// Events returns the moderation history of a tag. Moderators only.
func (s *Service) Events(ctx context.Context, id int64, actor Actor) ([]database.ModerationEvent, error) {
	if !actor.IsModerator {
		return nil, fmt.Errorf("%w: only moderators may view moderation history", ErrPermission)
	}
	if _, err := s.Get(ctx, id, actor); err != nil {
		return nil, err
	}
	events, err := s.tags.ListModerationEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list moderation events: %w", err)
	}
	return events, nil
}
