package suggest

import (
	"context"
	"fmt"
	"sort"

	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/facematch"
)

// Match is a candidate identity for one detected face.
type Match struct {
	PersonID   int64
	Confidence float64
}

// SimilarityMatcher compares a detected face against identity-confirmed faces.
type SimilarityMatcher interface {
	Match(ctx context.Context, face facematch.Detection) ([]Match, error)
}

// CorpusMatcher matches faces against the embeddings of approved face tags.
type CorpusMatcher struct {
	searcher database.FaceSearcher
	limit    int
}

// NewCorpusMatcher creates a matcher that inspects up to limit nearest faces.
func NewCorpusMatcher(searcher database.FaceSearcher, limit int) *CorpusMatcher {
	if limit <= 0 {
		limit = 50
	}
	return &CorpusMatcher{searcher: searcher, limit: limit}
}

// Match returns one candidate per person, with confidence 1 - cosine distance
// of that person's nearest corpus face, best first.
func (m *CorpusMatcher) Match(ctx context.Context, face facematch.Detection) ([]Match, error) {
	if len(face.Embedding) == 0 {
		return nil, nil
	}
	similar, err := m.searcher.FindSimilarFaces(ctx, face.Embedding, m.limit)
	if err != nil {
		return nil, fmt.Errorf("find similar faces: %w", err)
	}

	best := make(map[int64]float64)
	for _, s := range similar {
		conf := distanceToConfidence(s.Distance)
		if cur, ok := best[s.PersonID]; !ok || conf > cur {
			best[s.PersonID] = conf
		}
	}

	matches := make([]Match, 0, len(best))
	for personID, conf := range best {
		matches = append(matches, Match{PersonID: personID, Confidence: conf})
	}
	sortMatches(matches)
	return matches, nil
}

func distanceToConfidence(d float64) float64 {
	return max(0, min(1, 1-d))
}

// sortMatches orders by confidence descending, then person id.
func sortMatches(matches []Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].PersonID < matches[j].PersonID
	})
}
