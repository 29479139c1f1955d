package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/er587/wedding-gallery-application/internal/constants"
)

//go:embed policy.yaml
var policyYAML []byte

type Config struct {
	Database DatabaseConfig
	Gallery  GalleryConfig
	Detector DetectorConfig
	Policy   PolicyConfig
}

type DatabaseConfig struct {
	URL           string // PostgreSQL connection URL
	MaxOpenConns  int    // Maximum open connections (default 25)
	MaxIdleConns  int    // Maximum idle connections (default 5)
	HNSWIndexPath string // Path to persist the face HNSW index (optional, rebuilt on startup if empty)
}

type GalleryConfig struct {
	DatabaseURL string // MariaDB DSN of the gallery catalogue (e.g., gallery:gallery@tcp(mariadb:3306)/gallery)
	MediaRoot   string // directory that image storage refs are relative to
}

type DetectorConfig struct {
	URL          string        // defaults to http://localhost:8000
	Timeout      time.Duration // per detection request
	MaxImageSize int           // longest edge sent to the detector
}

type PolicyConfig struct {
	ConfidenceFloor    float64     `yaml:"confidence_floor"`
	SuggestionsPerFace int         `yaml:"suggestions_per_face"`
	DuplicateIoU       float64     `yaml:"duplicate_iou"`
	DetectionMatchIoU  float64     `yaml:"detection_match_iou"`
	SimilarSearchLimit int         `yaml:"similar_search_limit"`
	Queue              QueuePolicy `yaml:"queue"`
}

type QueuePolicy struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFraction reads an environment variable as a number in [0, 1].
// Returns the default value if the env var is unset, empty, or out of range.
func envFraction(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// DefaultPolicy returns the policy embedded in the binary.
func DefaultPolicy() PolicyConfig {
	var policy PolicyConfig
	if err := yaml.Unmarshal(policyYAML, &policy); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded policy.yaml: " + err.Error())
	}
	return policy
}

func Load() *Config {
	policy := DefaultPolicy()
	policy.ConfidenceFloor = envFraction("FACE_CONFIDENCE_FLOOR", policy.ConfidenceFloor)
	policy.DuplicateIoU = envFraction("FACE_DUPLICATE_IOU", policy.DuplicateIoU)
	policy.SuggestionsPerFace = envInt("FACE_SUGGESTIONS_PER_FACE", policy.SuggestionsPerFace)
	policy.Queue.DefaultPageSize = envInt("QUEUE_DEFAULT_PAGE_SIZE", policy.Queue.DefaultPageSize)
	policy.Queue.MaxPageSize = envInt("QUEUE_MAX_PAGE_SIZE", policy.Queue.MaxPageSize)

	return &Config{
		Database: DatabaseConfig{
			URL:           os.Getenv("DATABASE_URL"),
			MaxOpenConns:  envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:  envInt("DATABASE_MAX_IDLE_CONNS", 5),
			HNSWIndexPath: os.Getenv("HNSW_INDEX_PATH"),
		},
		Gallery: GalleryConfig{
			DatabaseURL: os.Getenv("GALLERY_DATABASE_URL"),
			MediaRoot:   os.Getenv("GALLERY_MEDIA_ROOT"),
		},
		Detector: DetectorConfig{
			URL:          os.Getenv("DETECTOR_URL"),
			Timeout:      time.Duration(envInt("DETECTOR_TIMEOUT_SECONDS", int(constants.DefaultDetectorTimeout/time.Second))) * time.Second,
			MaxImageSize: envInt("DETECTOR_MAX_IMAGE_SIZE", constants.MaxImageSize),
		},
		Policy: policy,
	}
}
