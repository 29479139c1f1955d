// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/er587/wedding-gallery-application/internal/database"
)

// Store is an in-memory implementation of every storage interface of the
// face subsystem. All mutations happen under one mutex, so conditional
// transitions are atomic just like their SQL counterparts.
type Store struct {
	mu         sync.Mutex
	people     map[int64]*database.Person
	personKeys map[string]int64
	images     map[int64]*database.Image
	tags       map[int64]*database.FaceTag
	detections map[int64][]database.StoredDetection
	events     []database.ModerationEvent

	nextPersonID int64
	nextTagID    int64

	// Now stamps created_at values; tests may pin it.
	Now func() time.Time

	// Error injection
	CreateFaceTagError  error
	ListPeopleError     error
	PendingPageError    error
	GetDetectionsError  error
	FindSimilarError    error
	ReplaceDetectionErr error
}

// NewStore creates an empty mock store
func NewStore() *Store {
	return &Store{
		people:     make(map[int64]*database.Person),
		personKeys: make(map[string]int64),
		images:     make(map[int64]*database.Image),
		tags:       make(map[int64]*database.FaceTag),
		detections: make(map[int64][]database.StoredDetection),
		Now:        time.Now,
	}
}

// AddImage adds an image to the mock store
func (m *Store) AddImage(img database.Image) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[img.ID] = &img
}

// SetTagStatus forces a tag into a state, bypassing moderation rules.
func (m *Store) SetTagStatus(id int64, status database.TagStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tag, ok := m.tags[id]; ok {
		tag.Status = status
	}
}

// PersonCount returns the number of stored people
func (m *Store) PersonCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.people)
}

// TagCount returns the number of stored face tags
func (m *Store) TagCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tags)
}

func copyTag(t *database.FaceTag, people map[int64]*database.Person) database.FaceTag {
	out := *t
	if p, ok := people[t.PersonID]; ok {
		out.PersonName = p.Name
	}
	if t.Embedding != nil {
		out.Embedding = append([]float32(nil), t.Embedding...)
	}
	return out
}

func sortTags(tags []database.FaceTag) {
	sort.Slice(tags, func(i, j int) bool {
		if !tags[i].CreatedAt.Equal(tags[j].CreatedAt) {
			return tags[i].CreatedAt.Before(tags[j].CreatedAt)
		}
		return tags[i].ID < tags[j].ID
	})
}

// GetPerson returns a person by id
func (m *Store) GetPerson(ctx context.Context, id int64) (*database.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.people[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := *p
	return &out, nil
}

// ListPeople returns people ordered by name key, then id
func (m *Store) ListPeople(ctx context.Context) ([]database.Person, error) {
	if m.ListPeopleError != nil {
		return nil, m.ListPeopleError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make(map[int64]string, len(m.personKeys))
	for k, id := range m.personKeys {
		keys[id] = k
	}
	people := make([]database.Person, 0, len(m.people))
	for _, p := range m.people {
		people = append(people, *p)
	}
	sort.Slice(people, func(i, j int) bool {
		ki, kj := keys[people[i].ID], keys[people[j].ID]
		if ki != kj {
			return ki < kj
		}
		return people[i].ID < people[j].ID
	})
	return people, nil
}

// FindOrCreatePerson returns the person owning key, creating it if needed
func (m *Store) FindOrCreatePerson(ctx context.Context, name, key, createdBy string) (*database.Person, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.personKeys[key]; ok {
		out := *m.people[id]
		return &out, false, nil
	}
	m.nextPersonID++
	p := &database.Person{ID: m.nextPersonID, Name: name, CreatedBy: createdBy, CreatedAt: m.Now()}
	m.people[p.ID] = p
	m.personKeys[key] = p.ID
	out := *p
	return &out, true, nil
}

// RenamePerson changes a person's display name
func (m *Store) RenamePerson(ctx context.Context, id int64, name, key string) (*database.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.people[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if owner, taken := m.personKeys[key]; taken && owner != id {
		return nil, database.ErrDuplicate
	}
	for k, owner := range m.personKeys {
		if owner == id {
			delete(m.personKeys, k)
		}
	}
	m.personKeys[key] = id
	p.Name = name
	out := *p
	return &out, nil
}

// DeletePerson removes an unreferenced person
func (m *Store) DeletePerson(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.people[id]; !ok {
		return database.ErrNotFound
	}
	for _, t := range m.tags {
		if t.PersonID == id {
			return database.ErrInUse
		}
	}
	delete(m.people, id)
	for k, owner := range m.personKeys {
		if owner == id {
			delete(m.personKeys, k)
		}
	}
	return nil
}

// GetImage returns an image by id
func (m *Store) GetImage(ctx context.Context, id int64) (*database.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	img, ok := m.images[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := *img
	return &out, nil
}

// ListImageIDs returns all image ids in ascending order
func (m *Store) ListImageIDs(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.images))
	for id := range m.images {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ListImagesWithoutApprovedTags returns images with no approved tag
func (m *Store) ListImagesWithoutApprovedTags(ctx context.Context) ([]database.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tagged := make(map[int64]bool)
	for _, t := range m.tags {
		if t.Status == database.StatusApproved {
			tagged[t.ImageID] = true
		}
	}
	var images []database.Image
	for id, img := range m.images {
		if !tagged[id] {
			images = append(images, *img)
		}
	}
	sort.Slice(images, func(i, j int) bool { return images[i].ID < images[j].ID })
	return images, nil
}

// UpsertImage inserts or replaces an image
func (m *Store) UpsertImage(ctx context.Context, img database.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.images[img.ID] = &img
	return nil
}

// DeleteImages removes images and cascades to their tags and detections
func (m *Store) DeleteImages(ctx context.Context, ids []int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for _, id := range ids {
		if _, ok := m.images[id]; !ok {
			continue
		}
		deleted++
		delete(m.images, id)
		delete(m.detections, id)
		for tagID, t := range m.tags {
			if t.ImageID == id {
				delete(m.tags, tagID)
			}
		}
	}
	kept := m.events[:0]
	for _, ev := range m.events {
		if _, ok := m.tags[ev.TagID]; ok {
			kept = append(kept, ev)
		}
	}
	m.events = kept
	return deleted, nil
}

// GetFaceTag returns a face tag by id
func (m *Store) GetFaceTag(ctx context.Context, id int64) (*database.FaceTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tags[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	out := copyTag(t, m.people)
	return &out, nil
}

// ListFaceTagsForImage returns an image's tags, optionally filtered by status
func (m *Store) ListFaceTagsForImage(ctx context.Context, imageID int64, status database.TagStatus) ([]database.FaceTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var tags []database.FaceTag
	for _, t := range m.tags {
		if t.ImageID == imageID && (status == "" || t.Status == status) {
			tags = append(tags, copyTag(t, m.people))
		}
	}
	sortTags(tags)
	return tags, nil
}

// PendingPage returns a window of the pending queue and its total size
func (m *Store) PendingPage(ctx context.Context, offset, limit int) ([]database.FaceTag, int, error) {
	if m.PendingPageError != nil {
		return nil, 0, m.PendingPageError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var pending []database.FaceTag
	for _, t := range m.tags {
		if t.Status == database.StatusPending {
			pending = append(pending, copyTag(t, m.people))
		}
	}
	sortTags(pending)

	total := len(pending)
	if offset >= total {
		return []database.FaceTag{}, total, nil
	}
	end := min(offset+limit, total)
	return pending[offset:end], total, nil
}

// ListModerationEvents returns the audit trail of a tag
func (m *Store) ListModerationEvents(ctx context.Context, tagID int64) ([]database.ModerationEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var events []database.ModerationEvent
	for _, ev := range m.events {
		if ev.TagID == tagID {
			events = append(events, ev)
		}
	}
	return events, nil
}

// CreateFaceTag stores a new face tag
func (m *Store) CreateFaceTag(ctx context.Context, tag database.FaceTag) (*database.FaceTag, error) {
	if m.CreateFaceTagError != nil {
		return nil, m.CreateFaceTagError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.images[tag.ImageID]; !ok {
		return nil, database.ErrNotFound
	}
	if _, ok := m.people[tag.PersonID]; !ok {
		return nil, database.ErrNotFound
	}
	m.nextTagID++
	tag.ID = m.nextTagID
	tag.CreatedAt = m.Now()
	m.tags[tag.ID] = &tag
	out := copyTag(&tag, m.people)
	return &out, nil
}

// ApproveFaceTag conditionally moves a pending tag to approved
func (m *Store) ApproveFaceTag(
	ctx context.Context, id int64, ev database.ModerationEvent, conflicts database.ConflictFunc,
) (*database.FaceTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tags[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if t.Status != database.StatusPending {
		return nil, database.ErrStateConflict
	}
	if conflicts != nil {
		var approved []database.FaceTag
		for _, other := range m.tags {
			if other.ID != id && other.ImageID == t.ImageID && other.PersonID == t.PersonID &&
				other.Status == database.StatusApproved {
				approved = append(approved, copyTag(other, m.people))
			}
		}
		if conflicts(copyTag(t, m.people), approved) {
			return nil, database.ErrDuplicate
		}
	}
	return m.transition(t, database.StatusApproved, ev), nil
}

// RejectFaceTag conditionally moves a pending tag to rejected
func (m *Store) RejectFaceTag(ctx context.Context, id int64, ev database.ModerationEvent) (*database.FaceTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tags[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	if t.Status != database.StatusPending {
		return nil, database.ErrStateConflict
	}
	return m.transition(t, database.StatusRejected, ev), nil
}

// transition must be called with m.mu held.
func (m *Store) transition(t *database.FaceTag, to database.TagStatus, ev database.ModerationEvent) *database.FaceTag {
	at := ev.CreatedAt
	t.Status = to
	t.ModeratedBy = ev.ModeratorID
	t.ModeratedAt = &at

	ev.TagID = t.ID
	ev.Action = to
	m.events = append(m.events, ev)

	out := copyTag(t, m.people)
	return &out
}

// ReplaceDetections replaces the stored detections of an image
func (m *Store) ReplaceDetections(ctx context.Context, imageID int64, detections []database.StoredDetection) error {
	if m.ReplaceDetectionErr != nil {
		return m.ReplaceDetectionErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detections[imageID] = append([]database.StoredDetection(nil), detections...)
	return nil
}

// GetDetections returns the stored detections of an image
func (m *Store) GetDetections(ctx context.Context, imageID int64) ([]database.StoredDetection, error) {
	if m.GetDetectionsError != nil {
		return nil, m.GetDetectionsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]database.StoredDetection(nil), m.detections[imageID]...), nil
}

// FindSimilarFaces searches approved tags with embeddings by brute force
func (m *Store) FindSimilarFaces(ctx context.Context, embedding []float32, limit int) ([]database.SimilarFace, error) {
	if m.FindSimilarError != nil {
		return nil, m.FindSimilarError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var results []database.SimilarFace
	for _, t := range m.tags {
		if t.Status != database.StatusApproved || len(t.Embedding) == 0 {
			continue
		}
		results = append(results, database.SimilarFace{
			TagID:    t.ID,
			PersonID: t.PersonID,
			ImageID:  t.ImageID,
			Distance: database.CosineDistance(embedding, t.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].TagID < results[j].TagID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
