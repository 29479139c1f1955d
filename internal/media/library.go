// Package media reads gallery image files from the shared media root.
package media

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// ErrUnsafePath is returned for storage references that escape the media root.
var ErrUnsafePath = errors.New("storage reference escapes media root")

// Library resolves storage references relative to a media root directory.
type Library struct {
	root string
}

// NewLibrary creates a library rooted at root.
func NewLibrary(root string) *Library {
	return &Library{root: root}
}

// Root returns the media root directory.
func (l *Library) Root() string {
	return l.root
}

func (l *Library) path(ref string) (string, error) {
	if l.root == "" {
		return "", errors.New("media root is not configured")
	}
	rel := filepath.FromSlash(ref)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, ref)
	}
	return filepath.Join(l.root, rel), nil
}

// Read returns the raw bytes of the referenced image.
func (l *Library) Read(ref string) ([]byte, error) {
	p, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p) //nolint:gosec // path is confined to the media root
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", ref, err)
	}
	return data, nil
}

// Dimensions returns the intrinsic pixel size of the referenced image,
// reading only its header.
func (l *Library) Dimensions(ref string) (int, int, error) {
	p, err := l.path(ref)
	if err != nil {
		return 0, 0, err
	}
	f, err := os.Open(p) //nolint:gosec // path is confined to the media root
	if err != nil {
		return 0, 0, fmt.Errorf("open image %s: %w", ref, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("decode image header %s: %w", ref, err)
	}
	return cfg.Width, cfg.Height, nil
}
