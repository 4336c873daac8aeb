package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
)

// AuthDecision is the vote of one authenticator.
type AuthDecision int

const (
	// Yes accepts the credentials. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No rejects credentials that were recognised but are invalid. The
	// chain stops.
	No

	// Abstain leaves the decision to the next authenticator.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // set when Decision == Yes
	Err      error     // set when Decision == No
}

// Scopes understood by the analysis API. An identity without scopes may do
// everything.
const (
	// ScopeRead allows listing domains and reading stored reports.
	ScopeRead = "analyses:read"

	// ScopeWrite allows running analyses and deleting or cancelling them.
	ScopeWrite = "analyses:write"
)

// TenantMetadataKey is the Metadata key holding the tenant of an identity.
// Reports are stored and looked up under this tenant.
const TenantMetadataKey = "tenant_id"

// AnonymousSubject is the subject given to callers admitted by a chain
// whose authenticators all abstained.
const AnonymousSubject = "anonymous"

// Identity is an authenticated caller of the analysis API.
type Identity struct {
	// Subject identifies the caller. Never empty.
	Subject string

	// ServiceTier selects the rate limit bucket.
	ServiceTier string

	// Scopes restricts the operations the caller may run.
	Scopes []string

	// Metadata carries authenticator specific claims such as the tenant.
	Metadata map[string]string
}

// TenantID returns the tenant of the identity, or "" for single-tenant use.
func (id *Identity) TenantID() string {
	if id == nil || id.Metadata == nil {
		return ""
	}
	return id.Metadata[TenantMetadataKey]
}

// HasScope reports whether the identity may use scope.
func (id *Identity) HasScope(scope string) bool {
	if id == nil || len(id.Scopes) == 0 {
		return true
	}
	return slices.Contains(id.Scopes, scope)
}

// Authenticator examines request credentials and votes.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("access denied")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain asks its authenticators in order until one says Yes or No.
type AuthChain struct {
	Authenticators []Authenticator

	// DefaultDecision applies when every authenticator abstains. Yes admits
	// the caller as AnonymousSubject.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		if result := authn.Authenticate(ctx, r); result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: AnonymousSubject, ServiceTier: DefaultTier},
		}
	}
	return AuthResult{Decision: No, Err: ErrUnauthenticated}
}

// RequiredScope returns the scope an HTTP request needs: reads need
// ScopeRead and everything else ScopeWrite.
func RequiredScope(r *http.Request) string {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return ScopeRead
	default:
		return ScopeWrite
	}
}
