package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"docqa/internal/config"
)

func newHandler(env, mode string) *ErrorHandler {
	return NewErrorHandler(&config.Config{
		App:      config.AppConfig{Environment: env},
		Security: config.SecurityConfig{ErrorMode: mode},
	})
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return resp
}

func TestHandleErrorStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ErrIngest, http.StatusUnprocessableEntity},
		{ErrEmbedding.WithCause(stderrors.New("connection refused")), http.StatusBadGateway},
		{ErrSynthesis, http.StatusBadGateway},
		{ErrNoIndex, http.StatusNotFound},
		{ErrSessionBusy, http.StatusConflict},
		{ErrUserExists, http.StatusConflict},
		{ErrInvalidCredentials, http.StatusUnauthorized},
		{ErrMissingAuthHeader, http.StatusUnauthorized},
		{ErrInvalidAuthHeader, http.StatusUnauthorized},
		{ErrInvalidToken, http.StatusUnauthorized},
		{ErrValidation, http.StatusBadRequest},
		{ErrIndex, http.StatusInternalServerError},
		{stderrors.New("boom"), http.StatusInternalServerError},
	}

	h := newHandler("development", "detailed")
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ask", nil)
			rec := httptest.NewRecorder()

			h.HandleError(rec, req, fmt.Errorf("wrapped: %w", tt.err), "req-1")

			if rec.Code != tt.code {
				t.Errorf("Expected status %d, got %d", tt.code, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Expected JSON content type, got %q", ct)
			}
			if resp := decode(t, rec); resp.Code != tt.code {
				t.Errorf("Expected body code %d, got %d", tt.code, resp.Code)
			}
		})
	}
}

func TestSecureModeHidesDetails(t *testing.T) {
	h := newHandler("production", "secure")
	req := httptest.NewRequest(http.MethodPost, "/login", nil)

	rec := httptest.NewRecorder()
	h.HandleError(rec, req, ErrInvalidCredentials.WithCause(stderrors.New("user not found")), "req-2")
	resp := decode(t, rec)

	if resp.Message != "Authentication required" {
		t.Errorf("Expected generic message, got %q", resp.Message)
	}
	if resp.Details != "" || resp.RequestID != "" {
		t.Errorf("Secure mode leaked details: %+v", resp)
	}

	rec = httptest.NewRecorder()
	h.HandleError(rec, req, ErrSynthesis.WithCause(stderrors.New("api key sk-123 rejected")), "req-3")
	resp = decode(t, rec)
	if resp.Details != "" || resp.Message != "External service unavailable" {
		t.Errorf("Secure mode leaked service error: %+v", resp)
	}
}

func TestDetailedModeShowsMessage(t *testing.T) {
	h := newHandler("development", "detailed")
	req := httptest.NewRequest(http.MethodPost, "/ask", nil)
	rec := httptest.NewRecorder()

	h.HandleError(rec, req, ErrNoIndex.WithMessage("Upload a PDF first"), "req-4")
	resp := decode(t, rec)

	if resp.Message != "Upload a PDF first" {
		t.Errorf("Expected specific message, got %q", resp.Message)
	}
	if resp.RequestID != "req-4" {
		t.Errorf("Expected request ID, got %q", resp.RequestID)
	}
}

func TestStandardErrorIs(t *testing.T) {
	err := fmt.Errorf("upload: %w", ErrEmbedding.WithCause(stderrors.New("timeout")))

	if !stderrors.Is(err, ErrEmbedding) {
		t.Error("Expected errors.Is to match by type")
	}
	if stderrors.Is(err, ErrSynthesis) {
		t.Error("Expected no match for a different type")
	}
	if TypeOf(err) != TypeEmbedding {
		t.Errorf("Unexpected type %q", TypeOf(err))
	}
	if MessageOf(stderrors.New("raw")) != "An internal error occurred" {
		t.Error("Expected generic message for plain errors")
	}
}

func TestAuthErrorsAreDistinct(t *testing.T) {
	authErrors := []*StandardError{ErrInvalidCredentials, ErrMissingAuthHeader, ErrInvalidAuthHeader, ErrInvalidToken}

	for i, a := range authErrors {
		for j, b := range authErrors {
			if got := stderrors.Is(a.WithCause(stderrors.New("x")), b); got != (i == j) {
				t.Errorf("errors.Is(%q, %q) = %v", a.Message, b.Message, got)
			}
		}
	}
}
