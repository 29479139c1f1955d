package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/er587/wedding-gallery-application/internal/constants"
	"github.com/er587/wedding-gallery-application/internal/facematch"
	"github.com/er587/wedding-gallery-application/internal/tagging"
)

func TestRespondJSON_SetsContentTypeAndStatus(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusCreated, map[string]string{"status": "ok"})

	assertStatusCode(t, recorder, http.StatusCreated)
	assertContentType(t, recorder, "application/json")
}

func TestRespondJSON_NilData(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondJSON(recorder, http.StatusNoContent, nil)

	if recorder.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got '%s'", recorder.Body.String())
	}
}

func TestRespondError_Body(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusBadRequest, tagging.KindValidation, "something went wrong")

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "something went wrong", tagging.KindValidation)
}

func TestRespondDomainError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: name is required", tagging.ErrValidation), http.StatusBadRequest, "validation"},
		{"malformed region", fmt.Errorf("wrap: %w", facematch.ErrMalformedRegion), http.StatusBadRequest, "validation"},
		{"invalid region", fmt.Errorf("%w: x + width exceeds 1", tagging.ErrInvalidRegion), http.StatusUnprocessableEntity, "invalid_region"},
		{"not found", fmt.Errorf("%w: image 9", tagging.ErrNotFound), http.StatusNotFound, "not_found"},
		{"invalid state", fmt.Errorf("%w: already approved", tagging.ErrInvalidState), http.StatusConflict, "invalid_state"},
		{"permission", tagging.ErrPermission, http.StatusForbidden, "permission"},
		{"detection unavailable", tagging.ErrDetectionUnavailable, http.StatusServiceUnavailable, "detection_unavailable"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/people", nil)

			respondDomainError(recorder, req, tc.err)

			assertStatusCode(t, recorder, tc.wantStatus)
			var body ErrorResponse
			parseJSONResponse(t, recorder, &body)
			if body.Code != tc.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tc.wantCode)
			}
			if tc.wantStatus == http.StatusInternalServerError && strings.Contains(body.Error, "pq:") {
				t.Errorf("internal error details leaked: %q", body.Error)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("a\nb\rc"); got != "abc" {
		t.Errorf("sanitizeForLog() = %q", got)
	}
}

func TestParseIDParam(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3", ""} {
		t.Run("invalid "+raw, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": raw})

			if _, ok := parseIDParam(recorder, req, "id"); ok {
				t.Error("expected failure")
			}
			assertStatusCode(t, recorder, http.StatusBadRequest)
		})
	}

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": "42"})
	id, ok := parseIDParam(httptest.NewRecorder(), req, "id")
	if !ok || id != 42 {
		t.Errorf("parseIDParam() = %d, %v", id, ok)
	}
}

func TestDecodeJSON_Limits(t *testing.T) {
	t.Run("malformed", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
		var dst map[string]any
		if decodeJSON(recorder, req, &dst) {
			t.Fatal("expected failure")
		}
		assertStatusCode(t, recorder, http.StatusBadRequest)
		assertJSONError(t, recorder, errInvalidRequestBody, tagging.KindValidation)
	})

	t.Run("too large", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		body := `{"name":"` + strings.Repeat("a", constants.MaxRequestBodySize) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		var dst map[string]any
		if decodeJSON(recorder, req, &dst) {
			t.Fatal("expected failure")
		}
		assertStatusCode(t, recorder, http.StatusRequestEntityTooLarge)
	})
}

func TestHealthCheck_ReturnsOK(t *testing.T) {
	recorder := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)

	HealthCheck(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var result map[string]string
	parseJSONResponse(t, recorder, &result)
	if result["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", result["status"])
	}
}
