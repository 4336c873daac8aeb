package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/observability"
	"github.com/rhuss/consensus/pkg/storage"
	"github.com/rhuss/consensus/pkg/transport"
)

// Middleware creates HTTP middleware from an AuthChain and optional RateLimiter.
// It checks the bypass list, runs authentication, injects tenant context,
// and optionally enforces rate limits.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				transport.WriteAPIError(w, api.NewUnauthorizedError("authentication required"))
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			debug.Log("auth", "authenticated",
				"subject", result.Identity.Subject,
				"tier", result.Identity.ServiceTier,
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					tier := result.Identity.ServiceTier
					if tier == "" {
						tier = DefaultTier
					}
					slog.Warn("rate limit exceeded", "subject", result.Identity.Subject, "tier", tier)
					observability.RateLimitRejectedTotal.WithLabelValues(tier).Inc()
					transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			ctx := SetIdentity(r.Context(), result.Identity)
			if tenantID := result.Identity.TenantID(); tenantID != "" {
				ctx = storage.SetTenant(ctx, tenantID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// RequireScope creates HTTP middleware that rejects authenticated callers
// lacking the scope of the request (see RequiredScope) with 403. Requests
// without an identity and paths under one of the exempt prefixes pass
// through; the MCP endpoint is exempt and checks scopes per tool.
func RequireScope(exempt ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range exempt {
				if prefix != "" && strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			id := IdentityFromContext(r.Context())
			if scope := RequiredScope(r); !id.HasScope(scope) {
				slog.Warn("scope denied", "subject", id.Subject, "scope", scope, "path", r.URL.Path)
				transport.WriteAPIError(w, api.NewForbiddenError(scope, "missing scope "+scope))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type identityKey struct{}

// SetIdentity attaches the authenticated identity to ctx.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity attached by Middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
