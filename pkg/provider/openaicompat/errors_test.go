package openaicompat

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/rhuss/consensus/pkg/api"
)

func makeResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantKind    api.ProviderErrorKind
		wantMessage string
	}{
		{"429 rate limited", 429, "", api.ProviderRateLimited, "backend rate limit exceeded"},
		{"429 with body", 429, `{"error":{"message":"quota exhausted"}}`, api.ProviderRateLimited, "quota exhausted"},
		{"500 unavailable", 500, "", api.ProviderUnavailable, "backend server error (HTTP 500)"},
		{"503 unavailable", 503, `{"error":{"message":"model loading"}}`, api.ProviderUnavailable, "model loading"},
		{"504 timeout", 504, "", api.ProviderTimeout, "backend timed out (HTTP 504)"},
		{"401 unavailable", 401, "", api.ProviderUnavailable, "backend authentication failed"},
		{"403 unavailable", 403, "", api.ProviderUnavailable, "backend authentication failed"},
		{"400 invalid", 400, `{"error":{"message":"bad model param","type":"invalid_request_error"}}`, api.ProviderInvalidResponse, "bad model param"},
		{"404 invalid", 404, "", api.ProviderInvalidResponse, "backend resource not found"},
		{"422 invalid", 422, "not json", api.ProviderInvalidResponse, "backend rejected request (HTTP 422)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pe := MapHTTPError(makeResponse(tt.status, tt.body))
			if pe.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", pe.Kind, tt.wantKind)
			}
			if pe.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", pe.Message, tt.wantMessage)
			}
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestMapNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want api.ProviderErrorKind
	}{
		{"deadline", fmt.Errorf("Post: %w", context.DeadlineExceeded), api.ProviderTimeout},
		{"net timeout", timeoutErr{}, api.ProviderTimeout},
		{"refused", errors.New("dial tcp 127.0.0.1:1: connect: connection refused"), api.ProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MapNetworkError(tt.err).Kind; got != tt.want {
				t.Errorf("Kind = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractErrorMessage(t *testing.T) {
	if got := ExtractErrorMessage(nil); got != "" {
		t.Errorf("nil body = %q", got)
	}
	if got := ExtractErrorMessage(bytes.NewBufferString(`{"error":{"message":"boom"}}`)); got != "boom" {
		t.Errorf("got %q, want boom", got)
	}
	if got := ExtractErrorMessage(bytes.NewBufferString(`plain text`)); got != "" {
		t.Errorf("non-JSON body = %q, want empty", got)
	}
}
