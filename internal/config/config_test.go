package config

import (
	"testing"
	"time"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.ConfidenceFloor != 0.6 {
		t.Errorf("ConfidenceFloor = %v, want 0.6", p.ConfidenceFloor)
	}
	if p.SuggestionsPerFace != 3 {
		t.Errorf("SuggestionsPerFace = %d, want 3", p.SuggestionsPerFace)
	}
	if p.DuplicateIoU != 0.5 {
		t.Errorf("DuplicateIoU = %v, want 0.5", p.DuplicateIoU)
	}
	if p.DetectionMatchIoU != 0.5 {
		t.Errorf("DetectionMatchIoU = %v, want 0.5", p.DetectionMatchIoU)
	}
	if p.Queue.DefaultPageSize != 20 || p.Queue.MaxPageSize != 100 {
		t.Errorf("Queue = %+v, want default 20 and max 100", p.Queue)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/faces")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "")
	t.Setenv("DETECTOR_TIMEOUT_SECONDS", "")
	t.Setenv("FACE_CONFIDENCE_FLOOR", "")

	cfg := Load()

	if cfg.Database.URL != "postgres://localhost/faces" {
		t.Errorf("Database.URL = '%s'", cfg.Database.URL)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("MaxOpenConns = %d, want 25", cfg.Database.MaxOpenConns)
	}
	if cfg.Detector.Timeout != 30*time.Second {
		t.Errorf("Detector.Timeout = %v, want 30s", cfg.Detector.Timeout)
	}
	if cfg.Detector.MaxImageSize != 1920 {
		t.Errorf("Detector.MaxImageSize = %d, want 1920", cfg.Detector.MaxImageSize)
	}
	if cfg.Policy.ConfidenceFloor != 0.6 {
		t.Errorf("Policy.ConfidenceFloor = %v, want 0.6", cfg.Policy.ConfidenceFloor)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("FACE_CONFIDENCE_FLOOR", "0.75")
	t.Setenv("FACE_DUPLICATE_IOU", "0.4")
	t.Setenv("QUEUE_DEFAULT_PAGE_SIZE", "10")
	t.Setenv("DETECTOR_TIMEOUT_SECONDS", "5")
	t.Setenv("GALLERY_MEDIA_ROOT", "/srv/media")

	cfg := Load()

	if cfg.Policy.ConfidenceFloor != 0.75 {
		t.Errorf("ConfidenceFloor = %v, want 0.75", cfg.Policy.ConfidenceFloor)
	}
	if cfg.Policy.DuplicateIoU != 0.4 {
		t.Errorf("DuplicateIoU = %v, want 0.4", cfg.Policy.DuplicateIoU)
	}
	if cfg.Policy.Queue.DefaultPageSize != 10 {
		t.Errorf("DefaultPageSize = %d, want 10", cfg.Policy.Queue.DefaultPageSize)
	}
	if cfg.Detector.Timeout != 5*time.Second {
		t.Errorf("Detector.Timeout = %v, want 5s", cfg.Detector.Timeout)
	}
	if cfg.Gallery.MediaRoot != "/srv/media" {
		t.Errorf("Gallery.MediaRoot = '%s'", cfg.Gallery.MediaRoot)
	}
}

func TestEnvInt(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected int
	}{
		{"unset", "", 7},
		{"valid", "12", 12},
		{"zero falls back", "0", 7},
		{"negative falls back", "-3", 7},
		{"garbage falls back", "abc", 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_INT", tt.value)
			if got := envInt("TEST_ENV_INT", 7); got != tt.expected {
				t.Errorf("envInt() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestEnvFraction(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected float64
	}{
		{"unset", "", 0.5},
		{"valid", "0.8", 0.8},
		{"above one falls back", "1.5", 0.5},
		{"negative falls back", "-0.1", 0.5},
		{"garbage falls back", "high", 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_ENV_FRACTION", tt.value)
			if got := envFraction("TEST_ENV_FRACTION", 0.5); got != tt.expected {
				t.Errorf("envFraction() = %v, want %v", got, tt.expected)
			}
		})
	}
}
