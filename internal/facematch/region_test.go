package facematch

import (
	"errors"
	"math"
	"testing"
)

func assertRegionNear(t *testing.T, got, want Region) {
	t.Helper()
	if math.Abs(got.X-want.X) > 1e-9 || math.Abs(got.Y-want.Y) > 1e-9 ||
		math.Abs(got.Width-want.Width) > 1e-9 || math.Abs(got.Height-want.Height) > 1e-9 {
		t.Errorf("region = %+v, want %+v", got, want)
	}
}

func TestNewRegion_Valid(t *testing.T) {
	tests := []struct {
		name string
		r    Region
	}{
		{"typical", Region{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.25}},
		{"whole image", Region{X: 0, Y: 0, Width: 1, Height: 1}},
		{"touches right and bottom edge", Region{X: 0.7, Y: 0.9, Width: 0.3, Height: 0.1}},
		{"zero size", Region{X: 0.5, Y: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRegion(tt.r.X, tt.r.Y, tt.r.Width, tt.r.Height)
			if err != nil {
				t.Fatalf("NewRegion(%+v) error = %v", tt.r, err)
			}
			if got != tt.r {
				t.Errorf("NewRegion() = %+v, want %+v", got, tt.r)
			}
		})
	}
}

func TestNewRegion_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		r       Region
		wantErr error
	}{
		{"x + width exceeds 1", Region{X: 0.8, Y: 0.1, Width: 0.3, Height: 0.1}, ErrInvalidRegion},
		{"y + height exceeds 1", Region{X: 0.1, Y: 0.8, Width: 0.1, Height: 0.3}, ErrInvalidRegion},
		{"negative x", Region{X: -0.1, Y: 0.1, Width: 0.1, Height: 0.1}, ErrInvalidRegion},
		{"negative y", Region{X: 0.1, Y: -0.01, Width: 0.1, Height: 0.1}, ErrInvalidRegion},
		{"negative width", Region{X: 0.5, Y: 0.1, Width: -0.1, Height: 0.1}, ErrInvalidRegion},
		{"negative height", Region{X: 0.5, Y: 0.1, Width: 0.1, Height: -0.1}, ErrInvalidRegion},
		{"x above 1", Region{X: 1.5, Y: 0, Width: 0, Height: 0}, ErrInvalidRegion},
		{"NaN", Region{X: math.NaN(), Y: 0, Width: 0.1, Height: 0.1}, ErrMalformedRegion},
		{"infinite", Region{X: 0, Y: 0, Width: math.Inf(1), Height: 0.1}, ErrMalformedRegion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegion(tt.r.X, tt.r.Y, tt.r.Width, tt.r.Height)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewRegion(%+v) error = %v, want %v", tt.r, err, tt.wantErr)
			}
		})
	}
}

func TestToPixels(t *testing.T) {
	r := Region{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.25}

	tests := []struct {
		name     string
		w, h     float64
		expected PixelRect
	}{
		{"500x400 display", 500, 400, PixelRect{X: 50, Y: 80, Width: 150, Height: 100}},
		{"1000x800 original", 1000, 800, PixelRect{X: 100, Y: 160, Width: 300, Height: 200}},
		{"200px thumbnail", 200, 160, PixelRect{X: 20, Y: 32, Width: 60, Height: 40}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToPixels(r, tt.w, tt.h)
			if math.Abs(got.X-tt.expected.X) > 1e-9 || math.Abs(got.Y-tt.expected.Y) > 1e-9 ||
				math.Abs(got.Width-tt.expected.Width) > 1e-9 || math.Abs(got.Height-tt.expected.Height) > 1e-9 {
				t.Errorf("ToPixels() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestToPixels_StaysWithinSurface(t *testing.T) {
	r := Region{X: 0.7, Y: 0.9, Width: 0.3, Height: 0.1}
	for _, size := range [][2]float64{{1, 1}, {3, 7}, {333, 999}, {4000, 3000}} {
		p := ToPixels(r, size[0], size[1])
		if p.X < 0 || p.Y < 0 || p.X+p.Width > size[0] || p.Y+p.Height > size[1] {
			t.Errorf("ToPixels(%v) = %+v extends past %vx%v", r, p, size[0], size[1])
		}
	}
}

func TestFromPixels_RoundTrip(t *testing.T) {
	regions := []Region{
		{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.25},
		{X: 0, Y: 0, Width: 1, Height: 1},
		{X: 0.333, Y: 0.777, Width: 0.111, Height: 0.222},
		{X: 0.9, Y: 0.05, Width: 0.1, Height: 0.5},
	}
	sizes := [][2]float64{{1, 1}, {200, 150}, {500, 400}, {1366, 768}, {4000, 6000}, {37.5, 12.25}}

	for _, r := range regions {
		for _, s := range sizes {
			p := ToPixels(r, s[0], s[1])
			got := FromPixels(p.X, p.Y, p.Width, p.Height, s[0], s[1])
			assertRegionNear(t, got, r)
		}
	}
}

func TestFromPixels_Clamps(t *testing.T) {
	tests := []struct {
		name           string
		px, py, pw, ph float64
		expected       Region
	}{
		{"one pixel past right edge", 400, 100, 101, 50, Region{X: 0.8, Y: 0.25, Width: 0.2, Height: 0.125}},
		{"negative origin", -3, -2, 53, 42, Region{X: 0, Y: 0, Width: 0.1, Height: 0.1}},
		{"dragged up and left", 100, 100, -50, -40, Region{X: 0.1, Y: 0.15, Width: 0.1, Height: 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromPixels(tt.px, tt.py, tt.pw, tt.ph, 500, 400)
			assertRegionNear(t, got, tt.expected)
			if err := got.Validate(); err != nil {
				t.Errorf("FromPixels() produced invalid region: %v", err)
			}
		})
	}
}

func TestFromPixels_ZeroSurface(t *testing.T) {
	if got := FromPixels(10, 10, 10, 10, 0, 100); got != (Region{}) {
		t.Errorf("FromPixels() on zero-width surface = %+v, want zero region", got)
	}
}

func TestHitTest(t *testing.T) {
	r := Region{X: 0.1, Y: 0.2, Width: 0.3, Height: 0.25} // 50,80 150x100 on 500x400

	tests := []struct {
		name     string
		x, y     float64
		expected bool
	}{
		{"center", 125, 130, true},
		{"top-left corner", 50, 80, true},
		{"bottom-right corner", 200, 180, true},
		{"left of box", 49, 130, false},
		{"below box", 125, 181, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HitTest(r, tt.x, tt.y, 500, 400); got != tt.expected {
				t.Errorf("HitTest(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.expected)
			}
		})
	}
}

func TestTopmostHit(t *testing.T) {
	regions := []Region{
		{X: 0.1, Y: 0.1, Width: 0.4, Height: 0.4},
		{X: 0.3, Y: 0.3, Width: 0.4, Height: 0.4},
		{X: 0.8, Y: 0.8, Width: 0.1, Height: 0.1},
	}

	tests := []struct {
		name     string
		x, y     float64
		expected int
		hit      bool
	}{
		{"only first", 20, 20, 0, true},
		{"overlap picks last drawn", 40, 40, 1, true},
		{"only third", 85, 85, 2, true},
		{"miss", 95, 5, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, hit := TopmostHit(regions, tt.x, tt.y, 100, 100)
			if idx != tt.expected || hit != tt.hit {
				t.Errorf("TopmostHit(%v, %v) = (%d, %v), want (%d, %v)", tt.x, tt.y, idx, hit, tt.expected, tt.hit)
			}
		})
	}
}
