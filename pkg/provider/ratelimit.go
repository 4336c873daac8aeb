package provider

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/observability"
)

// rateLimited guards an adapter with a client-side token bucket. An empty
// bucket fails the call immediately with a RateLimited ProviderError; the
// ensemble then excludes the provider for this stage instead of waiting.
type rateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// WithRateLimit wraps p with a token bucket of rps requests per second and
// the given burst. A non-positive rps returns p unchanged.
func WithRateLimit(p Provider, rps float64, burst int) Provider {
	if rps <= 0 {
		return p
	}
	if burst < 1 {
		burst = 1
	}
	return &rateLimited{next: p, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (r *rateLimited) Name() string { return r.next.Name() }

func (r *rateLimited) Complete(ctx context.Context, req *Request) (*Response, error) {
	if !r.limiter.Allow() {
		observability.RateLimitRejectedTotal.WithLabelValues("provider").Inc()
		debug.Log("providers", "client-side rate limit hit", "adapter", r.next.Name(), "model", req.Model)
		return nil, api.NewProviderError(api.ProviderRateLimited, "client-side rate limit exceeded", nil)
	}
	return r.next.Complete(ctx, req)
}

func (r *rateLimited) Close() error { return r.next.Close() }

func (r *rateLimited) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if l, ok := r.next.(ModelLister); ok {
		return l.ListModels(ctx)
	}
	return nil, nil
}
