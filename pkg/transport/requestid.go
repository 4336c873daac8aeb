package transport

import (
	"context"

	"github.com/google/uuid"

	"github.com/rhuss/consensus/pkg/api"
)

// RequestID returns middleware that makes sure the context carries a
// request ID. An ID set by the HTTP adapter from X-Request-ID is kept;
// otherwise a random UUID is assigned.
func RequestID() Middleware {
	return func(next Analyzer) Analyzer {
		return AnalyzerFunc(func(ctx context.Context, req *AnalyzeRequest) (*api.AnalysisResult, error) {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, NewRequestID())
			}
			return next.Analyze(ctx, req)
		})
	}
}

// NewRequestID returns a random request ID.
func NewRequestID() string {
	return uuid.NewString()
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request ID to ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID of ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
