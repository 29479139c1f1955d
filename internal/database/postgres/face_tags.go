package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/er587/wedding-gallery-application/internal/database"
)

const faceTagColumns = `
	t.id, t.image_id, t.person_id, p.name, t.x, t.y, t.width, t.height,
	t.confidence, t.origin, t.status, t.submitted_by, t.created_at,
	t.moderated_by, t.moderated_at, t.embedding`

const faceTagFrom = `FROM face_tags t JOIN people p ON p.id = t.person_id`

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// FaceTagRepository provides PostgreSQL-backed face tag storage with an
// optional in-memory HNSW index over approved tag embeddings.
type FaceTagRepository struct {
	pool          *Pool
	hnswIndex     *database.HNSWIndex
	hnswEnabled   bool
	hnswIndexPath string // Path to persist HNSW index (optional)
	indexedCount  int64  // corpus size the index was built for
	indexedMaxID  int64  // highest corpus tag id the index was built for
	hnswMu        sync.RWMutex
}

// NewFaceTagRepository creates a new PostgreSQL face tag repository.
func NewFaceTagRepository(pool *Pool) *FaceTagRepository {
	return &FaceTagRepository{pool: pool}
}

func scanFaceTag(scanner interface{ Scan(...any) error }) (*database.FaceTag, error) {
	var t database.FaceTag
	var origin, status string
	var confidence sql.NullFloat64
	var moderatedBy sql.NullString
	var moderatedAt sql.NullTime
	var vec *pgvector.Vector

	err := scanner.Scan(
		&t.ID, &t.ImageID, &t.PersonID, &t.PersonName,
		&t.Region.X, &t.Region.Y, &t.Region.Width, &t.Region.Height,
		&confidence, &origin, &status, &t.SubmittedBy, &t.CreatedAt,
		&moderatedBy, &moderatedAt, &vec,
	)
	if err != nil {
		return nil, err
	}

	t.Origin = database.TagOrigin(origin)
	t.Status = database.TagStatus(status)
	if confidence.Valid {
		c := confidence.Float64
		t.Confidence = &c
	}
	if moderatedBy.Valid {
		t.ModeratedBy = moderatedBy.String
	}
	if moderatedAt.Valid {
		at := moderatedAt.Time
		t.ModeratedAt = &at
	}
	if vec != nil {
		t.Embedding = vec.Slice()
	}
	return &t, nil
}

func scanFaceTags(rows *sql.Rows) ([]database.FaceTag, error) {
	tags := []database.FaceTag{}
	for rows.Next() {
		t, err := scanFaceTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan face tag: %w", err)
		}
		tags = append(tags, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate face tags: %w", err)
	}
	return tags, nil
}

func getFaceTag(ctx context.Context, q queryer, id int64) (*database.FaceTag, error) {
	query := "SELECT " + faceTagColumns + " " + faceTagFrom + " WHERE t.id = $1"
	t, err := scanFaceTag(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get face tag: %w", err)
	}
	return t, nil
}

func listFaceTags(ctx context.Context, q queryer, where string, args ...any) ([]database.FaceTag, error) {
	query := "SELECT " + faceTagColumns + " " + faceTagFrom + " WHERE " + where + " ORDER BY t.created_at, t.id"
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query face tags: %w", err)
	}
	defer rows.Close()
	return scanFaceTags(rows)
}

func nullableVector(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// GetFaceTag returns a face tag by id
func (r *FaceTagRepository) GetFaceTag(ctx context.Context, id int64) (*database.FaceTag, error) {
	return getFaceTag(ctx, r.pool.DB(), id)
}

// ListFaceTagsForImage returns an image's tags, optionally filtered by status
func (r *FaceTagRepository) ListFaceTagsForImage(
	ctx context.Context, imageID int64, status database.TagStatus,
) ([]database.FaceTag, error) {
	if status == "" {
		return listFaceTags(ctx, r.pool.DB(), "t.image_id = $1", imageID)
	}
	return listFaceTags(ctx, r.pool.DB(), "t.image_id = $1 AND t.status = $2", imageID, string(status))
}

// PendingPage returns one window of the pending queue together with the total
// pending count, both read from the same snapshot.
func (r *FaceTagRepository) PendingPage(ctx context.Context, offset, limit int) ([]database.FaceTag, int, error) {
	tx, err := r.pool.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM face_tags WHERE status = 'pending'").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pending tags: %w", err)
	}

	query := "SELECT " + faceTagColumns + " " + faceTagFrom +
		" WHERE t.status = 'pending' ORDER BY t.created_at, t.id LIMIT $1 OFFSET $2"
	rows, err := tx.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query pending tags: %w", err)
	}
	tags, err := scanFaceTags(rows)
	rows.Close()
	if err != nil {
		return nil, 0, err
	}
	if err := tx.Commit(); err != nil {
		return nil, 0, fmt.Errorf("commit: %w", err)
	}
	return tags, total, nil
}

// ListModerationEvents returns the audit trail of a tag, oldest first
func (r *FaceTagRepository) ListModerationEvents(ctx context.Context, tagID int64) ([]database.ModerationEvent, error) {
	query := `
		SELECT id::text, COALESCE(batch_id::text, ''), tag_id, action, moderator_id, created_at
		FROM moderation_events
		WHERE tag_id = $1
		ORDER BY created_at, id
	`
	rows, err := r.pool.Query(ctx, query, tagID)
	if err != nil {
		return nil, fmt.Errorf("query moderation events: %w", err)
	}
	defer rows.Close()

	events := []database.ModerationEvent{}
	for rows.Next() {
		var ev database.ModerationEvent
		var action string
		if err := rows.Scan(&ev.ID, &ev.BatchID, &ev.TagID, &action, &ev.ModeratorID, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan moderation event: %w", err)
		}
		ev.Action = database.TagStatus(action)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moderation events: %w", err)
	}
	return events, nil
}

// CreateFaceTag inserts a new face tag
func (r *FaceTagRepository) CreateFaceTag(ctx context.Context, tag database.FaceTag) (*database.FaceTag, error) {
	query := `
		INSERT INTO face_tags (
			image_id, person_id, x, y, width, height, confidence,
			origin, status, submitted_by, embedding
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	var confidence sql.NullFloat64
	if tag.Confidence != nil {
		confidence = sql.NullFloat64{Float64: *tag.Confidence, Valid: true}
	}

	var id int64
	err := r.pool.QueryRow(ctx, query,
		tag.ImageID, tag.PersonID,
		tag.Region.X, tag.Region.Y, tag.Region.Width, tag.Region.Height,
		confidence, string(tag.Origin), string(tag.Status), tag.SubmittedBy,
		nullableVector(tag.Embedding),
	).Scan(&id)
	if isForeignKeyViolation(err) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert face tag: %w", err)
	}
	return r.GetFaceTag(ctx, id)
}

func insertEvent(ctx context.Context, tx *sql.Tx, tagID int64, action database.TagStatus, ev database.ModerationEvent) error {
	batchID := sql.NullString{String: ev.BatchID, Valid: ev.BatchID != ""}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO moderation_events (id, batch_id, tag_id, action, moderator_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ev.ID, batchID, tagID, string(action), ev.ModeratorID, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert moderation event: %w", err)
	}
	return nil
}

// ApproveFaceTag moves a pending tag to approved inside one transaction. The
// tag row and then the person row are locked, so two approvals for the same
// person cannot both pass the duplicate check.
func (r *FaceTagRepository) ApproveFaceTag(
	ctx context.Context, id int64, ev database.ModerationEvent, conflicts database.ConflictFunc,
) (*database.FaceTag, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status string
	var personID, imageID int64
	err = tx.QueryRowContext(ctx,
		"SELECT status, person_id, image_id FROM face_tags WHERE id = $1 FOR UPDATE", id,
	).Scan(&status, &personID, &imageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock face tag: %w", err)
	}
	if database.TagStatus(status) != database.StatusPending {
		return nil, database.ErrStateConflict
	}

	if conflicts != nil {
		if _, err := tx.ExecContext(ctx, "SELECT id FROM people WHERE id = $1 FOR UPDATE", personID); err != nil {
			return nil, fmt.Errorf("lock person: %w", err)
		}
		candidate, err := getFaceTag(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		approved, err := listFaceTags(ctx, tx,
			"t.image_id = $1 AND t.person_id = $2 AND t.status = 'approved' AND t.id <> $3",
			imageID, personID, id)
		if err != nil {
			return nil, err
		}
		if conflicts(*candidate, approved) {
			return nil, database.ErrDuplicate
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE face_tags SET status = 'approved', moderated_by = $2, moderated_at = $3
		WHERE id = $1
	`, id, ev.ModeratorID, ev.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("approve face tag: %w", err)
	}
	if err := insertEvent(ctx, tx, id, database.StatusApproved, ev); err != nil {
		return nil, err
	}

	tag, err := getFaceTag(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.indexApproved(tag)
	return tag, nil
}

// RejectFaceTag moves a pending tag to rejected with a conditional update
func (r *FaceTagRepository) RejectFaceTag(ctx context.Context, id int64, ev database.ModerationEvent) (*database.FaceTag, error) {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var updated int64
	err = tx.QueryRowContext(ctx, `
		UPDATE face_tags SET status = 'rejected', moderated_by = $2, moderated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING id
	`, id, ev.ModeratorID, ev.CreatedAt).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM face_tags WHERE id = $1)", id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check face tag exists: %w", err)
		}
		if !exists {
			return nil, database.ErrNotFound
		}
		return nil, database.ErrStateConflict
	}
	if err != nil {
		return nil, fmt.Errorf("reject face tag: %w", err)
	}
	if err := insertEvent(ctx, tx, id, database.StatusRejected, ev); err != nil {
		return nil, err
	}

	tag, err := getFaceTag(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return tag, nil
}

// indexApproved adds a freshly approved tag to the HNSW corpus.
func (r *FaceTagRepository) indexApproved(tag *database.FaceTag) {
	if len(tag.Embedding) == 0 {
		return
	}
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	if !r.hnswEnabled || r.hnswIndex == nil {
		return
	}
	r.hnswIndex.Add(database.IndexedFace{
		TagID:     tag.ID,
		PersonID:  tag.PersonID,
		ImageID:   tag.ImageID,
		Embedding: tag.Embedding,
	})
	r.indexedCount++
	r.indexedMaxID = max(r.indexedMaxID, tag.ID)
}

const corpusWhere = "status = 'approved' AND embedding IS NOT NULL"

// corpusStats returns the size and highest tag id of the approved corpus.
func (r *FaceTagRepository) corpusStats(ctx context.Context) (int64, int64, error) {
	var count, maxID int64
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*), COALESCE(MAX(id), 0) FROM face_tags WHERE "+corpusWhere).
		Scan(&count, &maxID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get corpus stats: %w", err)
	}
	return count, maxID, nil
}

// GetCorpus returns every approved face tag that carries an embedding.
func (r *FaceTagRepository) GetCorpus(ctx context.Context) ([]database.IndexedFace, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, person_id, image_id, embedding FROM face_tags WHERE "+corpusWhere+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query corpus: %w", err)
	}
	defer rows.Close()

	var faces []database.IndexedFace
	for rows.Next() {
		var f database.IndexedFace
		var vec pgvector.Vector
		if err := rows.Scan(&f.TagID, &f.PersonID, &f.ImageID, &vec); err != nil {
			return nil, fmt.Errorf("scan corpus face: %w", err)
		}
		f.Embedding = vec.Slice()
		faces = append(faces, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate corpus: %w", err)
	}
	return faces, nil
}

// FindSimilarFaces returns approved corpus faces nearest to embedding.
// Uses the in-memory HNSW index if enabled, otherwise falls back to pgvector.
func (r *FaceTagRepository) FindSimilarFaces(
	ctx context.Context, embedding []float32, limit int,
) ([]database.SimilarFace, error) {
	if r.IsHNSWEnabled() {
		if err := r.refreshIfStale(ctx); err != nil {
			return nil, err
		}
		r.hnswMu.RLock()
		defer r.hnswMu.RUnlock()
		results, err := r.hnswIndex.Search(embedding, limit)
		if err != nil {
			return nil, fmt.Errorf("HNSW search: %w", err)
		}
		return results, nil
	}
	return r.findSimilarPostgres(ctx, embedding, limit)
}

// refreshIfStale rebuilds the index when the corpus changed behind its back,
// e.g. tags approved or images deleted by another process.
func (r *FaceTagRepository) refreshIfStale(ctx context.Context) error {
	count, maxID, err := r.corpusStats(ctx)
	if err != nil {
		return err
	}
	r.hnswMu.RLock()
	fresh := count == r.indexedCount && maxID == r.indexedMaxID
	r.hnswMu.RUnlock()
	if fresh {
		return nil
	}
	return r.RebuildHNSW(ctx)
}

func (r *FaceTagRepository) findSimilarPostgres(
	ctx context.Context, embedding []float32, limit int,
) ([]database.SimilarFace, error) {
	query := `
		SELECT id, person_id, image_id, embedding <=> $1::vector AS distance
		FROM face_tags
		WHERE ` + corpusWhere + `
		ORDER BY distance, id
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("query similar faces: %w", err)
	}
	defer rows.Close()

	results := []database.SimilarFace{}
	for rows.Next() {
		var s database.SimilarFace
		if err := rows.Scan(&s.TagID, &s.PersonID, &s.ImageID, &s.Distance); err != nil {
			return nil, fmt.Errorf("scan similar face: %w", err)
		}
		results = append(results, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate similar faces: %w", err)
	}
	return results, nil
}

// tryLoadIndex attempts to load the corpus index from disk.
// Returns true if the cached index matches the database.
func (r *FaceTagRepository) tryLoadIndex(indexPath string, count, maxID int64) bool {
	metadata, err := database.LoadHNSWMetadata(indexPath)
	if err != nil {
		fmt.Printf("Face index: metadata file error: %v (will rebuild)\n", err)
		return false
	}
	if metadata.FaceCount != count || metadata.MaxTagID != maxID {
		fmt.Printf("Face index: stale (db: count=%d max_id=%d, cached: count=%d max_id=%d) (will rebuild)\n",
			count, maxID, metadata.FaceCount, metadata.MaxTagID)
		return false
	}

	index := database.NewHNSWIndex()
	if err := index.Load(indexPath); err != nil {
		fmt.Printf("Face index: failed to load: %v (will rebuild)\n", err)
		return false
	}
	if index.IsEmpty() {
		fmt.Printf("Face index: loaded graph is empty (will rebuild)\n")
		return false
	}
	r.hnswIndex = index
	fmt.Printf("Face index: loaded from disk (%d faces)\n", index.Count())
	return true
}

// EnableHNSW loads or builds the in-memory HNSW index over the approved corpus.
// If indexPath is provided, it tries to load from disk first and saves after building.
func (r *FaceTagRepository) EnableHNSW(ctx context.Context, indexPath string) error {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()

	r.hnswIndexPath = indexPath

	count, maxID, err := r.corpusStats(ctx)
	if err != nil {
		return err
	}

	if indexPath != "" && r.tryLoadIndex(indexPath, count, maxID) {
		r.hnswEnabled = true
		r.indexedCount, r.indexedMaxID = count, maxID
		return nil
	}

	faces, err := r.GetCorpus(ctx)
	if err != nil {
		return fmt.Errorf("failed to load corpus: %w", err)
	}

	index := database.NewHNSWIndex()
	index.BuildFromFaces(faces)
	r.hnswIndex = index

	if indexPath != "" && len(faces) > 0 {
		metadata := database.HNSWIndexMetadata{FaceCount: count, MaxTagID: maxID, BuildTime: time.Now()}
		if err := index.Save(indexPath, metadata); err != nil {
			fmt.Printf("Warning: failed to save HNSW index to disk: %v\n", err)
		}
	}

	r.hnswEnabled = true
	r.indexedCount, r.indexedMaxID = count, maxID
	return nil
}

// DisableHNSW drops the in-memory index, falling back to pgvector queries.
func (r *FaceTagRepository) DisableHNSW() {
	r.hnswMu.Lock()
	defer r.hnswMu.Unlock()
	r.hnswEnabled = false
	r.hnswIndex = nil
}

// IsHNSWEnabled returns whether the in-memory HNSW index is enabled.
func (r *FaceTagRepository) IsHNSWEnabled() bool {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	return r.hnswEnabled && r.hnswIndex != nil
}

// HNSWCount returns the number of faces in the HNSW index.
func (r *FaceTagRepository) HNSWCount() int {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()
	if r.hnswIndex == nil {
		return 0
	}
	return r.hnswIndex.Count()
}

// RebuildHNSW rebuilds the HNSW index from PostgreSQL data.
func (r *FaceTagRepository) RebuildHNSW(ctx context.Context) error {
	r.hnswMu.RLock()
	indexPath := r.hnswIndexPath
	r.hnswMu.RUnlock()
	return r.EnableHNSW(ctx, indexPath)
}

// SaveHNSWIndex saves the current HNSW index to disk (if path configured).
func (r *FaceTagRepository) SaveHNSWIndex() error {
	r.hnswMu.RLock()
	defer r.hnswMu.RUnlock()

	if r.hnswIndexPath == "" {
		fmt.Println("Face index save: no path configured, skipping")
		return nil
	}
	if r.hnswIndex == nil {
		fmt.Println("Face index save: no index in memory, skipping")
		return nil
	}

	metadata := database.HNSWIndexMetadata{
		FaceCount: r.indexedCount,
		MaxTagID:  r.indexedMaxID,
		BuildTime: time.Now(),
	}
	if err := r.hnswIndex.Save(r.hnswIndexPath, metadata); err != nil {
		return fmt.Errorf("saving HNSW face index: %w", err)
	}
	fmt.Printf("Face index save: saved to %s (count=%d, max_id=%d)\n", r.hnswIndexPath, r.indexedCount, r.indexedMaxID)
	return nil
}
