package constants

import "time"

// Handler limits
const (
	// MaxRequestBodySize caps JSON request bodies (1MB)
	MaxRequestBodySize = 1 << 20

	// MaxBulkIDs is the maximum number of tag ids in one bulk moderation request
	MaxBulkIDs = 500

	// MaxOverlayRegions is the maximum number of regions in one overlay request
	MaxOverlayRegions = 200

	// MaxDisplaySize bounds display dimensions accepted by the overlay endpoints
	MaxDisplaySize = 100000
)

// Timeouts
const (
	// DefaultDetectorTimeout bounds one detection request
	DefaultDetectorTimeout = 30 * time.Second

	// ShutdownTimeout is how long the server waits for in-flight requests
	ShutdownTimeout = 10 * time.Second
)
