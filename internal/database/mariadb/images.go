package mariadb

import (
	"context"
	"fmt"
)

// GalleryImage is one row of the gallery's image catalogue.
type GalleryImage struct {
	ID         int64
	StorageRef string // path of the uploaded file, relative to the media root
}

// ListGalleryImages returns every uploaded still image, skipping video
// entries and rows whose upload has no file yet.
func (p *Pool) ListGalleryImages(ctx context.Context) ([]GalleryImage, error) {
	query := `
		SELECT id, image_file
		FROM images_image
		WHERE image_file IS NOT NULL AND image_file <> ''
		  AND (vimeo_url IS NULL OR vimeo_url = '')
		ORDER BY id
	`

	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query gallery images: %w", err)
	}
	defer rows.Close()

	var images []GalleryImage
	for rows.Next() {
		var img GalleryImage
		if err := rows.Scan(&img.ID, &img.StorageRef); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return images, nil
}

// CountGalleryImages returns the number of still images in the catalogue.
func (p *Pool) CountGalleryImages(ctx context.Context) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM images_image
		WHERE image_file IS NOT NULL AND image_file <> ''
		  AND (vimeo_url IS NULL OR vimeo_url = '')
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count gallery images: %w", err)
	}
	return count, nil
}
