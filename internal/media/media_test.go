package media

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return buf.Bytes()
}

func TestLibrary_Dimensions(t *testing.T) {
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "gallery", "first-dance.png"), 120, 80)
	lib := NewLibrary(root)

	w, h, err := lib.Dimensions("gallery/first-dance.png")
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 120 || h != 80 {
		t.Errorf("Dimensions = %dx%d, want 120x80", w, h)
	}

	data, err := lib.Read("gallery/first-dance.png")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(data) == 0 {
		t.Error("Read returned no bytes")
	}

	if _, _, err := lib.Dimensions("gallery/missing.png"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v, want os.ErrNotExist", err)
	}
}

func TestLibrary_RejectsEscapingPaths(t *testing.T) {
	lib := NewLibrary(t.TempDir())
	tests := []string{"../secret.png", "gallery/../../secret.png", "/etc/passwd", ""}

	for _, ref := range tests {
		t.Run(ref, func(t *testing.T) {
			if _, err := lib.Read(ref); !errors.Is(err, ErrUnsafePath) {
				t.Errorf("Read(%q) err = %v, want ErrUnsafePath", ref, err)
			}
		})
	}
}

func TestLibrary_NoRoot(t *testing.T) {
	if _, err := NewLibrary("").Read("a.png"); err == nil {
		t.Error("expected error without media root")
	}
}

func TestDownscale(t *testing.T) {
	src := writePNG(t, "", 400, 200)

	tests := []struct {
		name         string
		maxSize      int
		wantW, wantH int
	}{
		{"landscape scaled", 100, 100, 50},
		{"no scaling needed", 1000, 400, 200},
		{"disabled", 0, 400, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Downscale(src, tt.maxSize)
			if err != nil {
				t.Fatalf("Downscale: %v", err)
			}
			if p.Width != tt.wantW || p.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", p.Width, p.Height, tt.wantW, tt.wantH)
			}
			cfg, format, err := image.DecodeConfig(bytes.NewReader(p.Data))
			if err != nil {
				t.Fatalf("decode output: %v", err)
			}
			if format != "jpeg" || cfg.Width != tt.wantW {
				t.Errorf("output = %s %dx%d", format, cfg.Width, cfg.Height)
			}
		})
	}

	if _, err := Downscale([]byte("not an image"), 100); err == nil {
		t.Error("expected decode error")
	}
}

func TestFitWithin(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{4000, 3000, 1920, 1920, 1440},
		{3000, 4000, 1920, 1440, 1920},
		{5000, 1, 100, 100, 1},
	}
	for _, tt := range tests {
		gotW, gotH := fitWithin(tt.w, tt.h, tt.max)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("fitWithin(%d, %d, %d) = %d, %d, want %d, %d", tt.w, tt.h, tt.max, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}
