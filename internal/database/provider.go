package database

import (
	"context"
	"errors"
	"fmt"
)

// HNSWRebuilder is an interface for repositories that support HNSW index rebuilding
type HNSWRebuilder interface {
	// RebuildHNSW rebuilds the in-memory HNSW index
	RebuildHNSW(ctx context.Context) error
	// HNSWCount returns the number of items in the HNSW index
	HNSWCount() int
	// IsHNSWEnabled returns whether HNSW is enabled
	IsHNSWEnabled() bool
	// SaveHNSWIndex saves the current index to disk (if path configured)
	SaveHNSWIndex() error
}

var errNotInitialized = errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")

var (
	postgresPersonStore    func() PersonStore
	postgresImageStore     func() ImageStore
	postgresFaceTagStore   func() FaceTagStore
	postgresDetectionStore func() DetectionStore
	postgresFaceSearcher   func() FaceSearcher
	postgresFaceHNSW       HNSWRebuilder // Singleton for face HNSW rebuilding
	postgresInitialized    bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by the serve command to avoid import cycles.
func RegisterPostgresBackend(
	people func() PersonStore,
	images func() ImageStore,
	tags func() FaceTagStore,
	detections func() DetectionStore,
) {
	postgresPersonStore = people
	postgresImageStore = images
	postgresFaceTagStore = tags
	postgresDetectionStore = detections
	postgresInitialized = true
}

// RegisterFaceSearcher registers the similarity corpus used for suggestions.
func RegisterFaceSearcher(searcher func() FaceSearcher) {
	postgresFaceSearcher = searcher
}

// RegisterFaceHNSWRebuilder registers the HNSW rebuilder for the face tag repository.
func RegisterFaceHNSWRebuilder(rebuilder HNSWRebuilder) {
	postgresFaceHNSW = rebuilder
}

// GetFaceHNSWRebuilder returns the registered face HNSW rebuilder, or nil if not registered.
func GetFaceHNSWRebuilder() HNSWRebuilder {
	return postgresFaceHNSW
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetPersonStore returns the registered PersonStore
func GetPersonStore(ctx context.Context) (PersonStore, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresPersonStore == nil {
		return nil, fmt.Errorf("PostgreSQL person store not registered")
	}
	return postgresPersonStore(), nil
}

// GetImageStore returns the registered ImageStore
func GetImageStore(ctx context.Context) (ImageStore, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresImageStore == nil {
		return nil, fmt.Errorf("PostgreSQL image store not registered")
	}
	return postgresImageStore(), nil
}

// GetFaceTagStore returns the registered FaceTagStore
func GetFaceTagStore(ctx context.Context) (FaceTagStore, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresFaceTagStore == nil {
		return nil, fmt.Errorf("PostgreSQL face tag store not registered")
	}
	return postgresFaceTagStore(), nil
}

// GetDetectionStore returns the registered DetectionStore
func GetDetectionStore(ctx context.Context) (DetectionStore, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresDetectionStore == nil {
		return nil, fmt.Errorf("PostgreSQL detection store not registered")
	}
	return postgresDetectionStore(), nil
}

// GetFaceSearcher returns the registered FaceSearcher
func GetFaceSearcher(ctx context.Context) (FaceSearcher, error) {
	if !postgresInitialized {
		return nil, errNotInitialized
	}
	if postgresFaceSearcher == nil {
		return nil, fmt.Errorf("PostgreSQL face searcher not registered")
	}
	return postgresFaceSearcher(), nil
}
