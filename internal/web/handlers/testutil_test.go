package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/er587/wedding-gallery-application/internal/config"
	"github.com/er587/wedding-gallery-application/internal/database"
	"github.com/er587/wedding-gallery-application/internal/database/mock"
	"github.com/er587/wedding-gallery-application/internal/tagging"
	"github.com/er587/wedding-gallery-application/internal/web/middleware"
)

var (
	guestSession     = &middleware.Session{UserID: "guest-1"}
	otherSession     = &middleware.Session{UserID: "guest-2"}
	moderatorSession = &middleware.Session{UserID: "mod-1", IsModerator: true}
)

// testEnv wires every handler to one mock store holding two images.
type testEnv struct {
	store      *mock.Store
	service    *tagging.Service
	queue      *tagging.Queue
	people     *PeopleHandler
	tags       *FaceTagsHandler
	moderation *ModerationHandler
	overlay    *OverlayHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := mock.NewStore()
	base := time.Date(2025, 6, 14, 15, 0, 0, 0, time.UTC)
	tick := 0
	store.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	store.AddImage(database.Image{ID: 1, Width: 1000, Height: 800, StorageRef: "ceremony/001.jpg"})
	store.AddImage(database.Image{ID: 2, Width: 640, Height: 480, StorageRef: "party/002.jpg"})

	policy := config.DefaultPolicy()
	service := tagging.NewService(tagging.NewRegistry(store), store, store, store, policy)
	queue := tagging.NewQueue(store, policy.Queue)
	return &testEnv{
		store:      store,
		service:    service,
		queue:      queue,
		people:     NewPeopleHandler(service.Registry()),
		tags:       NewFaceTagsHandler(service),
		moderation: NewModerationHandler(service, queue, nil),
		overlay:    NewOverlayHandler(service),
	}
}

// newRequest builds a request with an optional JSON body, session and chi
// URL parameters.
func newRequest(t *testing.T, method, path string, body any, session *middleware.Session, params map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != nil {
		req = req.WithContext(middleware.SetSessionInContext(req.Context(), session))
	}
	if params != nil {
		req = requestWithChiParams(req, params)
	}
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// serve runs handler on req and returns the recorder
func serve(handler http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler(recorder, req)
	return recorder
}

// submit creates a tag through the handler and returns it
func (e *testEnv) submit(t *testing.T, imageID string, body map[string]any, session *middleware.Session) FaceTagResponse {
	t.Helper()
	req := newRequest(t, http.MethodPost, "/api/v1/images/"+imageID+"/face-tags", body, session, map[string]string{"id": imageID})
	recorder := serve(e.tags.Submit, req)
	assertStatusCode(t, recorder, http.StatusCreated)
	var tag FaceTagResponse
	parseJSONResponse(t, recorder, &tag)
	return tag
}

func regionBody(x, y, w, h float64) map[string]float64 {
	return map[string]float64{"x": x, "y": y, "width": w, "height": h}
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks the error body. An empty expectedMessage only
// checks the code.
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage, expectedCode string) {
	t.Helper()
	var result ErrorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if expectedMessage != "" && result.Error != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result.Error)
	}
	if result.Code != expectedCode {
		t.Errorf("expected code '%s', got '%s'", expectedCode, result.Code)
	}
}
