// Package suggest orchestrates the external face detector and the
// similarity matcher to propose identities for untagged faces.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/facematch"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

// ErrDetectionUnavailable is returned when the detector or matcher fails.
// The caller may retry or let the user draw the face by hand.
var ErrDetectionUnavailable = tagging.ErrDetectionUnavailable

// Detector finds faces in an image.
type Detector interface {
	Detect(ctx context.Context, img database.Image) ([]facematch.Detection, error)
}

// Suggestion proposes a person for one detected face.
type Suggestion struct {
	FaceIndex  int
	Region     facematch.Region
	PersonID   int64
	PersonName string
	Confidence float64
}

// Suggester runs detection and identity matching for single images.
// Nothing is retried; the caller's context bounds every call.
type Suggester struct {
	images     database.ImageReader
	tags       database.FaceTagReader
	people     database.PersonReader
	detections database.DetectionStore
	detector   Detector
	matcher    SimilarityMatcher
	policy     config.PolicyConfig

	now func() time.Time
}

// New creates a suggester. detections may be nil, in which case detector
// output is not persisted and submitted tags get no embedding.
func New(
	images database.ImageReader,
	tags database.FaceTagReader,
	people database.PersonReader,
	detections database.DetectionStore,
	detector Detector,
	matcher SimilarityMatcher,
	policy config.PolicyConfig,
) *Suggester {
	return &Suggester{
		images:     images,
		tags:       tags,
		people:     people,
		detections: detections,
		detector:   detector,
		matcher:    matcher,
		policy:     policy,
		now:        time.Now,
	}
}

func (s *Suggester) getImage(ctx context.Context, id int64) (*database.Image, error) {
	img, err := s.images.GetImage(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: image %d", tagging.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

// RequestDetection returns the faces the detector finds in an image, in
// detector order. The result replaces the image's stored detections.
func (s *Suggester) RequestDetection(ctx context.Context, imageID int64) ([]facematch.Detection, error) {
	img, err := s.getImage(ctx, imageID)
	if err != nil {
		return nil, err
	}

	faces, err := s.detector.Detect(ctx, *img)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectionUnavailable, err)
	}

	if s.detections != nil {
		detectedAt := s.now()
		stored := make([]database.StoredDetection, len(faces))
		for i, f := range faces {
			stored[i] = database.StoredDetection{
				ImageID:    imageID,
				FaceIndex:  i,
				Region:     f.Region,
				Confidence: f.Confidence,
				Embedding:  f.Embedding,
				DetectedAt: detectedAt,
			}
		}
		if err := s.detections.ReplaceDetections(ctx, imageID, stored); err != nil {
			log.Printf("warning: failed to store detections for image %d: %v", imageID, err)
		}
	}
	return faces, nil
}

// SuggestIdentities detects faces in an image and proposes people for those
// not yet covered by an approved tag. Suggestions below the confidence floor
// and people already approved on the image are dropped; each face keeps its
// best few candidates.
func (s *Suggester) SuggestIdentities(ctx context.Context, imageID int64) ([]Suggestion, error) {
	faces, err := s.RequestDetection(ctx, imageID)
	if err != nil {
		return nil, err
	}

	approved, err := s.tags.ListFaceTagsForImage(ctx, imageID, database.StatusApproved)
	if err != nil {
		return nil, fmt.Errorf("list approved tags: %w", err)
	}
	onImage := make(map[int64]bool, len(approved))
	for _, t := range approved {
		onImage[t.PersonID] = true
	}

	names := make(map[int64]string)
	suggestions := []Suggestion{}
	for i, face := range faces {
		if len(face.Embedding) == 0 || s.coveredByApproved(face.Region, approved) {
			continue
		}

		matches, err := s.matcher.Match(ctx, face)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDetectionUnavailable, err)
		}
		kept := s.filter(matches, onImage)

		for _, m := range kept {
			name, err := s.personName(ctx, m.PersonID, names)
			if errors.Is(err, database.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			suggestions = append(suggestions, Suggestion{
				FaceIndex:  i,
				Region:     face.Region,
				PersonID:   m.PersonID,
				PersonName: name,
				Confidence: m.Confidence,
			})
		}
	}
	return suggestions, nil
}

func (s *Suggester) coveredByApproved(r facematch.Region, approved []database.FaceTag) bool {
	regions := make([]facematch.Region, len(approved))
	for i, t := range approved {
		regions[i] = t.Region
	}
	idx, _ := facematch.BestMatch(r, regions, s.policy.DetectionMatchIoU)
	return idx >= 0
}

func (s *Suggester) filter(matches []Match, onImage map[int64]bool) []Match {
	kept := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Confidence < s.policy.ConfidenceFloor || onImage[m.PersonID] {
			continue
		}
		kept = append(kept, m)
	}
	sortMatches(kept)
	if n := s.policy.SuggestionsPerFace; n > 0 && len(kept) > n {
		kept = kept[:n]
	}
	return kept
}

func (s *Suggester) personName(ctx context.Context, id int64, cache map[int64]string) (string, error) {
	if name, ok := cache[id]; ok {
		return name, nil
	}
	p, err := s.people.GetPerson(ctx, id)
	if err != nil {
		return "", err
	}
	cache[id] = p.Name
	return p.Name, nil
}
