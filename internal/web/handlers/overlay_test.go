package handlers

import (
	"net/http"
	"testing"

	"github.com/er587/wedding-gallery-application/internal/constants"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/facematch"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

func TestOverlayHandler_ImageOverlayClick(t *testing.T) {
	env := newTestEnv(t)
	env.submit(t, "1", map[string]any{"person_name": "Alice", "region": regionBody(0.1, 0.1, 0.5, 0.5)}, guestSession)
	env.submit(t, "1", map[string]any{"person_name": "Bob", "region": regionBody(0.3, 0.3, 0.5, 0.5)}, guestSession)
	env.submit(t, "1", map[string]any{"person_name": "Carol", "region": regionBody(0.0, 0.8, 0.1, 0.1)}, guestSession)
	env.store.SetTagStatus(1, database.StatusApproved)
	env.store.SetTagStatus(2, database.StatusApproved)
	params := map[string]string{"id": "1"}

	tests := []struct {
		name    string
		query   string
		wantHit int
	}{
		{"overlap picks topmost", "?width=100&height=100&click_x=40&click_y=40", 1},
		{"first only", "?width=100&height=100&click_x=15&click_y=15", 0},
		{"pending tags are not drawn", "?width=100&height=100&click_x=5&click_y=85", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := serve(env.overlay.ImageOverlay, newRequest(t, http.MethodGet, "/api/v1/images/1/overlay"+tt.query, nil, guestSession, params))
			assertStatusCode(t, recorder, http.StatusOK)
			var resp OverlayResponse
			parseJSONResponse(t, recorder, &resp)
			if len(resp.Boxes) != 2 {
				t.Fatalf("got %d boxes, want 2", len(resp.Boxes))
			}
			if resp.HitIndex == nil || *resp.HitIndex != tt.wantHit {
				t.Fatalf("hit_index = %v, want %d", resp.HitIndex, tt.wantHit)
			}
			for i, box := range resp.Boxes {
				if box.Selected != (i == tt.wantHit) {
					t.Errorf("box %d selected = %v", i, box.Selected)
				}
			}
		})
	}
}

func TestOverlayHandler_ImageOverlayValidation(t *testing.T) {
	env := newTestEnv(t)
	params := map[string]string{"id": "1"}

	for _, query := range []string{"", "?width=0&height=10", "?width=abc&height=10", "?width=10&height=10&click_x=1", "?width=1e9&height=10"} {
		t.Run(query, func(t *testing.T) {
			recorder := serve(env.overlay.ImageOverlay, newRequest(t, http.MethodGet, "/api/v1/images/1/overlay"+query, nil, guestSession, params))
			assertStatusCode(t, recorder, http.StatusBadRequest)
		})
	}

	recorder := serve(env.overlay.ImageOverlay, newRequest(t, http.MethodGet, "/?width=10&height=10", nil, guestSession, map[string]string{"id": "55"}))
	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestOverlayHandler_Render(t *testing.T) {
	env := newTestEnv(t)
	selected := 0
	body := OverlayRequest{
		Width:  640,
		Height: 480,
		Regions: []OverlayRegion{
			{Region: facematchRegion(0.0, 0.0, 0.25, 0.25)},
			{Region: facematchRegion(0.5, 0.5, 0.25, 0.25), Label: "Groom"},
		},
		Selected: &selected,
	}

	recorder := serve(env.overlay.Render, newRequest(t, http.MethodPost, "/api/v1/overlay", body, guestSession, nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var resp OverlayResponse
	parseJSONResponse(t, recorder, &resp)
	if len(resp.Boxes) != 2 {
		t.Fatalf("got %d boxes", len(resp.Boxes))
	}
	first := resp.Boxes[0]
	if first.Label != "Face 1" || first.Color != constants.OverlaySelectedColor {
		t.Errorf("first box = %+v", first)
	}
	if first.Anchor.X < 0 || first.Anchor.Y < constants.OverlayFontSize {
		t.Errorf("label anchor escapes the surface: %+v", first.Anchor)
	}
	if resp.Boxes[1].Label != "Groom" || resp.Boxes[1].Rect.X != 320 {
		t.Errorf("second box = %+v", resp.Boxes[1])
	}
	if resp.HitIndex != nil {
		t.Errorf("hit_index set without a click")
	}
}

func TestOverlayHandler_RenderErrors(t *testing.T) {
	env := newTestEnv(t)
	bad := 5

	tests := []struct {
		name       string
		body       OverlayRequest
		wantStatus int
		wantCode   string
	}{
		{"invalid region", OverlayRequest{Width: 10, Height: 10, Regions: []OverlayRegion{{Region: facematchRegion(0.9, 0, 0.2, 0.1)}}}, http.StatusUnprocessableEntity, tagging.KindInvalidRegion},
		{"no surface", OverlayRequest{Regions: []OverlayRegion{{Region: facematchRegion(0, 0, 0.2, 0.1)}}}, http.StatusBadRequest, tagging.KindValidation},
		{"bad selection", OverlayRequest{Width: 10, Height: 10, Selected: &bad}, http.StatusBadRequest, tagging.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := serve(env.overlay.Render, newRequest(t, http.MethodPost, "/api/v1/overlay", tt.body, guestSession, nil))
			assertStatusCode(t, recorder, tt.wantStatus)
			assertJSONError(t, recorder, "", tt.wantCode)
		})
	}
}

func facematchRegion(x, y, w, h float64) facematch.Region {
	return facematch.Region{X: x, Y: y, Width: w, Height: h}
}
