package response_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/safewalk/safewalk/internal/api/middleware"
	"github.com/safewalk/safewalk/internal/api/models"
	"github.com/safewalk/safewalk/internal/api/response"
)

// requestWithContext runs a request through the RequestID middleware so the
// context carries a request ID, like in the real middleware chain.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)
	rec := httptest.NewRecorder()

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(rec, req)

	return processedReq, httptest.NewRecorder()
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/test")

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	requestID := rec.Header().Get("X-Request-Id")
	if requestID == "" {
		t.Error("expected X-Request-Id header to be set")
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %q", contentType)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hello"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if h := rec.Header().Get("X-Request-Id"); h != "" {
		t.Errorf("expected no X-Request-Id header when not in context, got %q", h)
	}
}

func TestJSON_NilData(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/test")

	response.JSON(rec, req, http.StatusOK, nil)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got %q", rec.Body.String())
	}
}

func TestNoContent_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodDelete, "/test")

	response.NoContent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header to be set")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for 204, got %q", rec.Body.String())
	}
}

func TestBadRequest_IncludesTraceID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/previews:generate")

	fieldErrors := []models.FieldError{
		{Field: "route", Message: "at least two coordinates are required"},
	}
	response.BadRequest(rec, req, "validation failed", fieldErrors)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}

	var problem models.Problem
	if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
		t.Fatalf("failed to decode Problem response: %v", err)
	}
	if problem.TraceID == "" {
		t.Error("expected traceId to be set in Problem response")
	}
	if problem.Instance != "/v1/previews:generate" {
		t.Errorf("expected instance /v1/previews:generate, got %q", problem.Instance)
	}
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name       string
		write      func(http.ResponseWriter, *http.Request)
		wantStatus int
	}{
		{
			name: "not found",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.NotFound(w, r, "no cached preview for this route")
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "no imagery",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.NoImagery(w, r, "no street-level imagery on this route")
			},
			wantStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "generation timeout",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.GenerationTimeout(w, r, "imagery fetch exceeded the budget")
			},
			wantStatus: http.StatusGatewayTimeout,
		},
		{
			name: "too many requests",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.TooManyRequests(w, r, "rate limit exceeded")
			},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name: "internal error",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.InternalError(w, r, "something went wrong")
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "service unavailable",
			write: func(w http.ResponseWriter, r *http.Request) {
				response.ServiceUnavailable(w, r, "service temporarily unavailable")
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodGet, "/v1/test")
			tt.write(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var problem models.Problem
			if err := json.NewDecoder(rec.Body).Decode(&problem); err != nil {
				t.Fatalf("failed to decode Problem response: %v", err)
			}
			if problem.Status != tt.wantStatus {
				t.Errorf("expected problem status %d, got %d", tt.wantStatus, problem.Status)
			}
			if problem.Instance != "/v1/test" {
				t.Errorf("expected instance /v1/test, got %q", problem.Instance)
			}
		})
	}
}

func TestRequestIDPropagation(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("X-Request-Id", "client-request-123")
	rec := httptest.NewRecorder()

	var processedReq *http.Request
	handler := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		processedReq = r
	}))
	handler.ServeHTTP(rec, req)

	if requestID := middleware.GetRequestID(processedReq.Context()); requestID != "client-request-123" {
		t.Errorf("expected client request ID to be preserved, got %q", requestID)
	}

	rec = httptest.NewRecorder()
	response.JSON(rec, processedReq, http.StatusOK, map[string]string{"status": "ok"})

	if h := rec.Header().Get("X-Request-Id"); h != "client-request-123" {
		t.Errorf("expected response X-Request-Id to match client's, got %q", h)
	}
}

func TestGetRequestID_EmptyContext(t *testing.T) {
	if requestID := middleware.GetRequestID(context.Background()); requestID != "" {
		t.Errorf("expected empty request ID for background context, got %q", requestID)
	}
}
