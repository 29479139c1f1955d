package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/er587/wedding-gallery-application/internal/database"
)

// ImageRepository mirrors the gallery's image catalogue in PostgreSQL
type ImageRepository struct {
	pool *Pool
}

// NewImageRepository creates a new PostgreSQL image repository
func NewImageRepository(pool *Pool) *ImageRepository {
	return &ImageRepository{pool: pool}
}

func scanImages(rows *sql.Rows) ([]database.Image, error) {
	images := []database.Image{}
	for rows.Next() {
		var img database.Image
		if err := rows.Scan(&img.ID, &img.Width, &img.Height, &img.StorageRef, &img.SyncedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

// GetImage returns an image by id
func (r *ImageRepository) GetImage(ctx context.Context, id int64) (*database.Image, error) {
	var img database.Image
	err := r.pool.QueryRow(ctx,
		"SELECT id, width, height, storage_ref, synced_at FROM images WHERE id = $1", id,
	).Scan(&img.ID, &img.Width, &img.Height, &img.StorageRef, &img.SyncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return &img, nil
}

// ListImageIDs returns all image ids in ascending order
func (r *ImageRepository) ListImageIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.pool.Query(ctx, "SELECT id FROM images ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query image ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan image id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate image ids: %w", err)
	}
	return ids, nil
}

// ListImagesWithoutApprovedTags returns images that have no approved face tag
func (r *ImageRepository) ListImagesWithoutApprovedTags(ctx context.Context) ([]database.Image, error) {
	query := `
		SELECT i.id, i.width, i.height, i.storage_ref, i.synced_at
		FROM images i
		WHERE NOT EXISTS (
			SELECT 1 FROM face_tags t WHERE t.image_id = i.id AND t.status = 'approved'
		)
		ORDER BY i.id
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query untagged images: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

// UpsertImage inserts an image or refreshes its dimensions and storage reference
func (r *ImageRepository) UpsertImage(ctx context.Context, img database.Image) error {
	query := `
		INSERT INTO images (id, width, height, storage_ref, synced_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET
			width = EXCLUDED.width,
			height = EXCLUDED.height,
			storage_ref = EXCLUDED.storage_ref,
			synced_at = EXCLUDED.synced_at
	`
	if _, err := r.pool.Exec(ctx, query, img.ID, img.Width, img.Height, img.StorageRef); err != nil {
		return fmt.Errorf("upsert image %d: %w", img.ID, err)
	}
	return nil
}

// DeleteImages removes images; their tags, detections and audit events cascade
func (r *ImageRepository) DeleteImages(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := r.pool.Exec(ctx, "DELETE FROM images WHERE id = ANY($1)", pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete images: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return n, nil
}
