package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/rhuss/consensus/pkg/api"
)

// MapHTTPError converts an HTTP response with a non-2xx status code into
// a ProviderError. It attempts to parse the response body as a
// ChatErrorResponse to extract a descriptive message.
func MapHTTPError(resp *http.Response) *api.ProviderError {
	message := ExtractErrorMessage(resp.Body)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if message == "" {
			message = "backend rate limit exceeded"
		}
		return api.NewProviderError(api.ProviderRateLimited, message, nil)

	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		if message == "" {
			message = fmt.Sprintf("backend timed out (HTTP %d)", resp.StatusCode)
		}
		return api.NewProviderError(api.ProviderTimeout, message, nil)

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if message == "" {
			message = "backend authentication failed"
		}
		return api.NewProviderError(api.ProviderUnavailable, message, nil)

	case resp.StatusCode >= http.StatusInternalServerError:
		if message == "" {
			message = fmt.Sprintf("backend server error (HTTP %d)", resp.StatusCode)
		}
		return api.NewProviderError(api.ProviderUnavailable, message, nil)

	case resp.StatusCode == http.StatusNotFound:
		if message == "" {
			message = "backend resource not found"
		}
		return api.NewProviderError(api.ProviderInvalidResponse, message, nil)

	default:
		if message == "" {
			message = fmt.Sprintf("backend rejected request (HTTP %d)", resp.StatusCode)
		}
		return api.NewProviderError(api.ProviderInvalidResponse, message, nil)
	}
}

// MapNetworkError converts a network-level error (connection refused, timeout,
// DNS resolution failure) into a ProviderError. Deadlines, whether from the
// call context or the HTTP client, become Timeout; everything else means the
// backend could not be reached.
func MapNetworkError(err error) *api.ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		return api.NewProviderError(api.ProviderTimeout, "backend call timed out", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return api.NewProviderError(api.ProviderTimeout, fmt.Sprintf("backend call timed out: %s", err.Error()), err)
	}
	return api.NewProviderError(api.ProviderUnavailable, fmt.Sprintf("backend connection error: %s", err.Error()), err)
}

// ExtractErrorMessage tries to parse the response body as a ChatErrorResponse
// and returns the error message if found.
func ExtractErrorMessage(body io.Reader) string {
	if body == nil {
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(data) == 0 {
		return ""
	}

	var errResp ChatErrorResponse
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return errResp.Error.Message
	}

	return ""
}
