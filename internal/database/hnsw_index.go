package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// HNSWIndexMetadata stores metadata for validating cached HNSW indexes.
type HNSWIndexMetadata struct {
	FaceCount int64     `json:"face_count"`
	MaxTagID  int64     `json:"max_tag_id"`
	BuildTime time.Time `json:"build_time"`
	Version   int       `json:"version"`
}

const hnswMetadataVersion = 1

// HNSWIndex wraps the HNSW graph over approved face embeddings.
type HNSWIndex struct {
	graph    *hnsw.Graph[int64]
	idToFace map[int64]*IndexedFace // Maps tag ID to corpus face
	mu       sync.RWMutex
}

// NewHNSWIndex creates a new empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	return &HNSWIndex{
		idToFace: make(map[int64]*IndexedFace),
	}
}

func newGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	return g
}

// BuildFromFaces builds the index from a slice of corpus faces.
func (h *HNSWIndex) BuildFromFaces(faces []IndexedFace) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.idToFace = make(map[int64]*IndexedFace, len(faces))
	if len(faces) == 0 {
		h.graph = nil
		return
	}

	g := newGraph()
	for i := range faces {
		face := &faces[i]
		if len(face.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(face.TagID, face.Embedding))
		h.idToFace[face.TagID] = face
	}
	h.graph = g
}

// Add adds a single face to the index.
func (h *HNSWIndex) Add(face IndexedFace) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(face.Embedding) == 0 {
		return
	}
	if _, exists := h.idToFace[face.TagID]; exists {
		return
	}
	if h.graph == nil {
		h.graph = newGraph()
	}
	h.graph.Add(hnsw.MakeNode(face.TagID, face.Embedding))
	h.idToFace[face.TagID] = &face
}

// Delete removes a face from search results.
func (h *HNSWIndex) Delete(tagID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// The graph keeps the node; results are filtered through idToFace.
	delete(h.idToFace, tagID)
}

// Search finds up to k faces nearest to the query embedding, ordered by
// ascending cosine distance. Deleted faces are skipped.
func (h *HNSWIndex) Search(query []float32, k int) ([]SimilarFace, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		return nil, errors.New("index not initialized")
	}

	neighbors := h.graph.Search(query, k*HNSWSearchMultiplier)

	results := make([]SimilarFace, 0, min(k, len(neighbors)))
	for _, n := range neighbors {
		face, ok := h.idToFace[n.Key]
		if !ok {
			continue
		}
		results = append(results, SimilarFace{
			TagID:    face.TagID,
			PersonID: face.PersonID,
			ImageID:  face.ImageID,
			Distance: CosineDistance(query, n.Value),
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Count returns the number of indexed faces.
func (h *HNSWIndex) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.idToFace)
}

// IsEmpty returns true if the index has no graph data loaded.
func (h *HNSWIndex) IsEmpty() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.graph == nil
}

// LoadHNSWMetadata loads metadata from a separate .meta file.
func LoadHNSWMetadata(path string) (HNSWIndexMetadata, error) {
	var metadata HNSWIndexMetadata

	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return metadata, nil
}

// Save persists the graph, its metadata and the corpus faces next to path.
func (h *HNSWIndex) Save(path string, metadata HNSWIndexMetadata) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.graph == nil {
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		_ = os.Remove(path + ".faces")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := h.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing HNSW index file: %w", err)
	}

	metadata.Version = hnswMetadataVersion
	metaData, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	faces := make([]IndexedFace, 0, len(h.idToFace))
	for _, face := range h.idToFace {
		faces = append(faces, *face)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(faces); err != nil {
		return fmt.Errorf("failed to encode faces: %w", err)
	}
	if err := os.WriteFile(path+".faces", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write faces file: %w", err)
	}
	return nil
}

// Load replaces the index with the graph and corpus faces saved at path.
func (h *HNSWIndex) Load(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to open HNSW index: %w", err)
	}
	defer f.Close()

	g := newGraph()
	if err := g.Import(f); err != nil {
		return fmt.Errorf("failed to import HNSW graph: %w", err)
	}

	data, err := os.ReadFile(path + ".faces") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read faces file: %w", err)
	}
	var faces []IndexedFace
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&faces); err != nil {
		return fmt.Errorf("failed to decode faces: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.graph = g
	h.idToFace = make(map[int64]*IndexedFace, len(faces))
	for i := range faces {
		h.idToFace[faces[i].TagID] = &faces[i]
	}
	return nil
}
