package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/er587/wedding-gallery-application/internal/database"
)

// DetectionRepository keeps the latest detector output per image
type DetectionRepository struct {
	pool *Pool
}

// NewDetectionRepository creates a new PostgreSQL detection repository
func NewDetectionRepository(pool *Pool) *DetectionRepository {
	return &DetectionRepository{pool: pool}
}

// ReplaceDetections atomically replaces all stored detections of an image
func (r *DetectionRepository) ReplaceDetections(
	ctx context.Context, imageID int64, detections []database.StoredDetection,
) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM face_detections WHERE image_id = $1", imageID); err != nil {
		return fmt.Errorf("delete old detections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO face_detections (image_id, face_index, x, y, width, height, confidence, embedding, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range detections {
		_, err := stmt.ExecContext(ctx,
			imageID, d.FaceIndex,
			d.Region.X, d.Region.Y, d.Region.Width, d.Region.Height,
			d.Confidence, nullableVector(d.Embedding), d.DetectedAt,
		)
		if isForeignKeyViolation(err) {
			return database.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("insert detection %d: %w", d.FaceIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetDetections returns the stored detections of an image ordered by face index
func (r *DetectionRepository) GetDetections(ctx context.Context, imageID int64) ([]database.StoredDetection, error) {
	query := `
		SELECT image_id, face_index, x, y, width, height, confidence, embedding, detected_at
		FROM face_detections
		WHERE image_id = $1
		ORDER BY face_index
	`
	rows, err := r.pool.Query(ctx, query, imageID)
	if err != nil {
		return nil, fmt.Errorf("query detections: %w", err)
	}
	defer rows.Close()

	var detections []database.StoredDetection
	for rows.Next() {
		var d database.StoredDetection
		var vec *pgvector.Vector
		if err := rows.Scan(
			&d.ImageID, &d.FaceIndex,
			&d.Region.X, &d.Region.Y, &d.Region.Width, &d.Region.Height,
			&d.Confidence, &vec, &d.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("scan detection: %w", err)
		}
		if vec != nil {
			d.Embedding = vec.Slice()
		}
		detections = append(detections, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate detections: %w", err)
	}
	return detections, nil
}
