package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/database/postgres"
	"github.com/er587/wedding-gallery-application/internal/detector"
	"github.com/er587/wedding-gallery-application/internal/media"
	"github.com/er587/wedding-gallery-application/internal/suggest"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

var openedRepos *postgres.Repositories

// openStore connects to PostgreSQL, applies migrations and registers the
// repositories with the database provider. Calling it again reuses the pool
// and the registered backend.
func openStore(cfg *config.Config) (*postgres.Repositories, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("DATABASE_URL environment variable is required")
	}
	if !postgres.IsAvailable() {
		if err := postgres.Initialize(&cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
	}

	if database.IsInitialized() && openedRepos != nil {
		return openedRepos, nil
	}

	repos := postgres.NewRepositories(postgres.GetGlobalPool())
	database.RegisterPostgresBackend(
		func() database.PersonStore { return repos.People },
		func() database.ImageStore { return repos.Images },
		func() database.FaceTagStore { return repos.FaceTags },
		func() database.DetectionStore { return repos.Detections },
	)
	database.RegisterFaceSearcher(func() database.FaceSearcher { return repos.FaceTags })
	openedRepos = repos
	return repos, nil
}

// newTaggingService builds the lifecycle service over the registered backend.
func newTaggingService(ctx context.Context, policy config.PolicyConfig) (*tagging.Service, error) {
	people, err := database.GetPersonStore(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := database.GetFaceTagStore(ctx)
	if err != nil {
		return nil, err
	}
	images, err := database.GetImageStore(ctx)
	if err != nil {
		return nil, err
	}
	detections, err := database.GetDetectionStore(ctx)
	if err != nil {
		return nil, err
	}
	return tagging.NewService(tagging.NewRegistry(people), tags, images, detections, policy), nil
}

// newSuggester wires the detector client and the corpus matcher.
func newSuggester(ctx context.Context, cfg *config.Config) (*suggest.Suggester, error) {
	images, err := database.GetImageStore(ctx)
	if err != nil {
		return nil, err
	}
	tags, err := database.GetFaceTagStore(ctx)
	if err != nil {
		return nil, err
	}
	people, err := database.GetPersonStore(ctx)
	if err != nil {
		return nil, err
	}
	detections, err := database.GetDetectionStore(ctx)
	if err != nil {
		return nil, err
	}
	searcher, err := database.GetFaceSearcher(ctx)
	if err != nil {
		return nil, err
	}

	client := detector.NewClient(cfg.Detector, media.NewLibrary(cfg.Gallery.MediaRoot))
	matcher := suggest.NewCorpusMatcher(searcher, cfg.Policy.SimilarSearchLimit)
	return suggest.New(images, tags, people, detections, client, matcher, cfg.Policy), nil
}

// initFaceHNSW builds or loads the face HNSW index for fast similarity search.
func initFaceHNSW(ctx context.Context, faceRepo *postgres.FaceTagRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading face HNSW index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory HNSW index for face matching...\n")
	}
	if err := faceRepo.EnableHNSW(ctx, indexPath); err != nil {
		fmt.Printf("Warning: Failed to build face HNSW index: %v\n", err)
		fmt.Printf("Suggestions will use PostgreSQL queries (slower)\n")
		return
	}
	database.RegisterFaceHNSWRebuilder(faceRepo)
	if indexPath != "" {
		fmt.Printf("Face HNSW index ready with %d faces (persisted to %s)\n", faceRepo.HNSWCount(), indexPath)
	} else {
		fmt.Printf("Face HNSW index built with %d faces (in-memory only)\n", faceRepo.HNSWCount())
	}
}

func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
