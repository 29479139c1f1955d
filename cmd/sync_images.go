package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/constants"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/database/mariadb"
	"github.com/er587/wedding-gallery-application/internal/media"
)

var syncImagesCmd = &cobra.Command{
	Use:   "sync-images",
	Short: "Mirror the gallery's image catalogue into the face tag store",
	Long: `Import every still image of the gallery (id, dimensions, storage path)
from the gallery MariaDB into PostgreSQL. Dimensions are read from the image
files under GALLERY_MEDIA_ROOT. Images that were removed from the gallery are
deleted together with their face tags and detections.

Requires GALLERY_DATABASE_URL and GALLERY_MEDIA_ROOT to be set.

Examples:
  # Preview changes
  gallery-faces sync-images --dry-run

  # Sync and print a JSON summary
  gallery-faces sync-images --json`,
	RunE: runSyncImages,
}

func init() {
	rootCmd.AddCommand(syncImagesCmd)

	syncImagesCmd.Flags().Bool("dry-run", false, "Preview changes without writing to PostgreSQL")
	syncImagesCmd.Flags().Bool("keep-missing", false, "Do not delete images missing from the gallery")
	syncImagesCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of images read in parallel")
	syncImagesCmd.Flags().Bool("json", false, "Output as JSON")
}

// SyncImagesResult represents the result of a sync-images run
type SyncImagesResult struct {
	Success       bool    `json:"success"`
	GalleryImages int     `json:"gallery_images"`
	Synced        int     `json:"synced"`
	Errors        int     `json:"errors"`
	Deleted       int64   `json:"deleted"`
	DryRun        bool    `json:"dry_run"`
	DurationMs    int64   `json:"duration_ms"`
	FailedIDs     []int64 `json:"failed_ids,omitempty"`
}

func runSyncImages(cmd *cobra.Command, args []string) error {
	dryRun := mustGetBool(cmd, "dry-run")
	keepMissing := mustGetBool(cmd, "keep-missing")
	concurrency := mustGetInt(cmd, "concurrency")
	jsonOutput := mustGetBool(cmd, "json")
	if concurrency < 1 {
		concurrency = 1
	}

	ctx := context.Background()
	cfg := config.Load()
	startTime := time.Now()

	if cfg.Gallery.DatabaseURL == "" {
		return errors.New("GALLERY_DATABASE_URL environment variable is required")
	}
	if cfg.Gallery.MediaRoot == "" {
		return errors.New("GALLERY_MEDIA_ROOT environment variable is required")
	}

	if _, err := openStore(cfg); err != nil {
		return err
	}
	store, err := database.GetImageStore(ctx)
	if err != nil {
		return err
	}

	if !jsonOutput {
		fmt.Println("Connecting to gallery MariaDB...")
	}
	mariaPool, err := mariadb.NewPool(cfg.Gallery.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to MariaDB: %w", err)
	}
	defer mariaPool.Close()

	galleryImages, err := mariaPool.ListGalleryImages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list gallery images: %w", err)
	}
	if !jsonOutput {
		fmt.Printf("Gallery images: %d\n", len(galleryImages))
	}

	library := media.NewLibrary(cfg.Gallery.MediaRoot)
	result := SyncImagesResult{GalleryImages: len(galleryImages), DryRun: dryRun}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(galleryImages),
			progressbar.OptionSetDescription("Syncing images"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("images"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, gi := range galleryImages {
		wg.Add(1)
		go func(gi mariadb.GalleryImage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := syncImage(ctx, store, library, gi, dryRun)

			mu.Lock()
			if err != nil {
				result.Errors++
				result.FailedIDs = append(result.FailedIDs, gi.ID)
				if !jsonOutput {
					fmt.Printf("\nWarning: image %d: %v\n", gi.ID, err)
				}
			} else {
				result.Synced++
			}
			mu.Unlock()
			if bar != nil {
				bar.Add(1)
			}
		}(gi)
	}
	wg.Wait()
	if bar != nil {
		fmt.Println()
	}

	if !keepMissing {
		deleted, err := deleteMissingImages(ctx, store, galleryImages, dryRun)
		if err != nil {
			return err
		}
		result.Deleted = deleted
	}

	result.Success = result.Errors == 0
	result.DurationMs = time.Since(startTime).Milliseconds()

	if jsonOutput {
		return outputJSON(result)
	}

	verb := "Deleted"
	if dryRun {
		verb = "Would delete"
	}
	fmt.Printf("\nCompleted: %d images synced, %d errors\n", result.Synced, result.Errors)
	fmt.Printf("%s %d images no longer in the gallery\n", verb, result.Deleted)
	return nil
}

// syncImage reads the intrinsic size of one gallery image and upserts it.
func syncImage(ctx context.Context, store database.ImageWriter, library *media.Library, gi mariadb.GalleryImage, dryRun bool) error {
	width, height, err := library.Dimensions(gi.StorageRef)
	if err != nil {
		return fmt.Errorf("reading dimensions: %w", err)
	}
	if dryRun {
		return nil
	}
	return store.UpsertImage(ctx, database.Image{
		ID:         gi.ID,
		Width:      width,
		Height:     height,
		StorageRef: gi.StorageRef,
	})
}

// deleteMissingImages removes images that are no longer in the gallery.
func deleteMissingImages(ctx context.Context, store database.ImageStore, gallery []mariadb.GalleryImage, dryRun bool) (int64, error) {
	known, err := store.ListImageIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list images: %w", err)
	}

	present := make(map[int64]bool, len(gallery))
	for _, gi := range gallery {
		present[gi.ID] = true
	}
	var missing []int64
	for _, id := range known {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 || dryRun {
		return int64(len(missing)), nil
	}

	deleted, err := store.DeleteImages(ctx, missing)
	if err != nil {
		return 0, fmt.Errorf("failed to delete images: %w", err)
	}
	return deleted, nil
}
