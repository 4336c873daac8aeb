package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ProviderErrorKind classifies why a single provider call failed.
type ProviderErrorKind string

const (
	ProviderTimeout         ProviderErrorKind = "timeout"
	ProviderRateLimited     ProviderErrorKind = "rate_limited"
	ProviderInvalidResponse ProviderErrorKind = "invalid_response"
	ProviderUnavailable     ProviderErrorKind = "unavailable"
)

// ProviderError is the only failure a provider adapter returns. The
// orchestrator recovers from it by excluding the provider; it is never
// surfaced to the caller of Analyze on its own.
type ProviderError struct {
	Provider string            `json:"provider,omitempty"`
	Kind     ProviderErrorKind `json:"kind"`
	Message  string            `json:"message"`
	Err      error             `json:"-"`
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("provider %s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError creates a ProviderError of the given kind.
func NewProviderError(kind ProviderErrorKind, message string, cause error) *ProviderError {
	return &ProviderError{Kind: kind, Message: message, Err: cause}
}

// AsProviderError converts any error into a ProviderError attributed to
// the named provider. Errors that are not already ProviderErrors are
// classified as Unavailable.
func AsProviderError(provider string, err error) *ProviderError {
	var pe *ProviderError
	if errors.As(err, &pe) {
		cp := *pe
		if cp.Provider == "" {
			cp.Provider = provider
		}
		return &cp
	}
	return &ProviderError{Provider: provider, Kind: ProviderUnavailable, Message: err.Error(), Err: err}
}

// EngineFailure reports that no provider of a stage produced a usable
// response. It is fatal to the Analyze call.
type EngineFailure struct {
	Stage    Stage            `json:"stage"`
	Failures []*ProviderError `json:"failures"`
}

// Error implements the error interface.
func (e *EngineFailure) Error() string {
	if len(e.Failures) == 0 {
		return fmt.Sprintf("stage %s: no providers configured", e.Stage)
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("stage %s: all %d providers failed: %s", e.Stage, len(e.Failures), strings.Join(parts, "; "))
}

// AnalysisErrorKind classifies a failed Analyze call.
type AnalysisErrorKind string

const (
	AnalysisNoProviderSucceeded AnalysisErrorKind = "no_provider_succeeded"
	AnalysisInvalidInput        AnalysisErrorKind = "invalid_input"
)

// AnalysisError is the error returned by Analyze.
type AnalysisError struct {
	Kind  AnalysisErrorKind `json:"kind"`
	Stage Stage             `json:"stage,omitempty"`
	Err   error             `json:"-"`
}

// Error implements the error interface.
func (e *AnalysisError) Error() string {
	switch e.Kind {
	case AnalysisNoProviderSucceeded:
		return fmt.Sprintf("analysis failed: no provider succeeded in %s stage: %v", e.Stage, e.Err)
	default:
		return fmt.Sprintf("analysis failed: invalid input: %v", e.Err)
	}
}

// Unwrap returns the underlying cause.
func (e *AnalysisError) Unwrap() error { return e.Err }

// NoProviderSucceeded wraps an EngineFailure into an AnalysisError.
func NoProviderSucceeded(failure *EngineFailure) *AnalysisError {
	return &AnalysisError{Kind: AnalysisNoProviderSucceeded, Stage: failure.Stage, Err: failure}
}

// InvalidInput creates an AnalysisError for rejected input data.
func InvalidInput(err error) *AnalysisError {
	return &AnalysisError{Kind: AnalysisInvalidInput, Err: err}
}

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeAnalysisFailed  ErrorType = "analysis_failed"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeUnauthorized    ErrorType = "unauthorized"
	ErrorTypeForbidden       ErrorType = "forbidden"
)

// APIError represents a structured API error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewAnalysisFailedError creates an APIError for an analysis whose stage
// had no surviving provider. Code carries the failed stage.
func NewAnalysisFailedError(stage Stage, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeAnalysisFailed,
		Code:    string(stage),
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// NewUnauthorizedError creates an APIError for failed authentication.
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeUnauthorized,
		Message: message,
	}
}

// NewForbiddenError creates an APIError for an authenticated caller that
// lacks the scope an operation needs. Param names the missing scope.
func NewForbiddenError(scope, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeForbidden,
		Param:   scope,
		Message: message,
	}
}

// ToAPIError maps an error returned by the engine onto the wire error
// shape. Errors that already are APIErrors pass through unchanged.
func ToAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var ae *AnalysisError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case AnalysisInvalidInput:
			return NewInvalidRequestError("input", ae.Err.Error())
		case AnalysisNoProviderSucceeded:
			return NewAnalysisFailedError(ae.Stage, ae.Error())
		}
	}
	// An analysis that ran out of time ends the same way as one aborted.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &APIError{Type: ErrorTypeServerError, Code: "cancelled", Message: err.Error()}
	}
	return NewServerError(err.Error())
}
