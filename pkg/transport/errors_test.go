package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rhuss/consensus/pkg/api"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        *api.APIError
		wantStatus int
	}{
		{"invalid_request -> 400", &api.APIError{Type: api.ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"unauthorized -> 401", &api.APIError{Type: api.ErrorTypeUnauthorized}, http.StatusUnauthorized},
		{"forbidden -> 403", &api.APIError{Type: api.ErrorTypeForbidden}, http.StatusForbidden},
		{"not_found -> 404", &api.APIError{Type: api.ErrorTypeNotFound}, http.StatusNotFound},
		{"too_many_requests -> 429", &api.APIError{Type: api.ErrorTypeTooManyRequests}, http.StatusTooManyRequests},
		{"analysis_failed -> 502", &api.APIError{Type: api.ErrorTypeAnalysisFailed}, http.StatusBadGateway},
		{"server_error -> 500", &api.APIError{Type: api.ErrorTypeServerError}, http.StatusInternalServerError},
		{"cancelled -> 503", &api.APIError{Type: api.ErrorTypeServerError, Code: "cancelled"}, http.StatusServiceUnavailable},
		{"unknown type -> 500", &api.APIError{Type: api.ErrorType("unknown")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusFromError(tt.err); got != tt.wantStatus {
				t.Errorf("HTTPStatusFromError(%+v) = %d, want %d", tt.err, got, tt.wantStatus)
			}
		})
	}
}

func TestWriteErrorResponse(t *testing.T) {
	apiErr := api.NewInvalidRequestError("domain", "is required")
	rec := httptest.NewRecorder()

	WriteErrorResponse(rec, apiErr, http.StatusBadRequest)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error.Type != api.ErrorTypeInvalidRequest || resp.Error.Param != "domain" || resp.Error.Message != "is required" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   api.ErrorType
	}{
		{"invalid input", api.InvalidInput(errors.New("text is required")), http.StatusBadRequest, api.ErrorTypeInvalidRequest},
		{"no provider", api.NoProviderSucceeded(&api.EngineFailure{Stage: api.StageReasoning}), http.StatusBadGateway, api.ErrorTypeAnalysisFailed},
		{"cancelled", fmt.Errorf("knowledge stage: %w", context.Canceled), http.StatusServiceUnavailable, api.ErrorTypeServerError},
		{"deadline exceeded", fmt.Errorf("knowledge stage: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, api.ErrorTypeServerError},
		{"api error passes through", api.NewNotFoundError("domain x not found"), http.StatusNotFound, api.ErrorTypeNotFound},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, api.ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status code = %d, want %d", rec.Code, tt.wantStatus)
			}
			var resp api.ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error.Type != tt.wantType {
				t.Errorf("error type = %q, want %q", resp.Error.Type, tt.wantType)
			}
		})
	}
}
