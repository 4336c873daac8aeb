// Package noop provides an authenticator that accepts every request.
// It backs auth type "none" in development setups.
package noop

import (
	"context"
	"net/http"

	"github.com/rhuss/consensus/pkg/auth"
)

// Authenticator votes Yes for every request. Subject defaults to
// "anonymous"; a non-empty Tenant scopes all stored analyses to it.
type Authenticator struct {
	Subject string
	Tenant  string
}

var _ auth.Authenticator = (*Authenticator)(nil)

func (a *Authenticator) Authenticate(_ context.Context, _ *http.Request) auth.AuthResult {
	id := &auth.Identity{Subject: a.Subject, ServiceTier: auth.DefaultTier}
	if id.Subject == "" {
		id.Subject = auth.AnonymousSubject
	}
	if a.Tenant != "" {
		id.Metadata = map[string]string{auth.TenantMetadataKey: a.Tenant}
	}
	return auth.AuthResult{Decision: auth.Yes, Identity: id}
}
