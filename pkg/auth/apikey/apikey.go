// Package apikey provides an API key authenticator. Keys are kept only as
// SHA-256 hashes and compared in constant time.
package apikey

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"maps"
	"net/http"
	"strings"

	"github.com/rhuss/consensus/pkg/auth"
)

// HeaderName is the dedicated API key header. A bearer token is accepted too.
const HeaderName = "X-API-Key"

// RawKeyEntry is the configuration format for API keys.
type RawKeyEntry struct {
	Key      string
	Identity auth.Identity
}

type keyEntry struct {
	hash     [32]byte
	identity auth.Identity
}

// Authenticator validates API keys against a static key store.
type Authenticator struct {
	keys []keyEntry
}

var _ auth.Authenticator = (*Authenticator)(nil)

// New creates an API key authenticator. Keys are hashed immediately;
// plaintext keys are not retained.
func New(entries []RawKeyEntry) *Authenticator {
	a := &Authenticator{keys: make([]keyEntry, 0, len(entries))}
	for _, e := range entries {
		a.keys = append(a.keys, keyEntry{hash: sha256.Sum256([]byte(e.Key)), identity: e.Identity})
	}
	return a
}

// Authenticate looks for a key in X-API-Key or a bearer token.
//
// Bearer tokens shaped like a JWT (three dot-separated segments) are left
// to a JWT authenticator further down the chain. A key that is present
// but unknown is a No.
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	key, ok := credential(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if key == "" {
		return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
	}

	hash := sha256.Sum256([]byte(key))
	for _, entry := range a.keys {
		if subtle.ConstantTimeCompare(hash[:], entry.hash[:]) == 1 {
			id := entry.identity
			id.Metadata = maps.Clone(entry.identity.Metadata)
			id.Scopes = append([]string(nil), entry.identity.Scopes...)
			return auth.AuthResult{Decision: auth.Yes, Identity: &id}
		}
	}
	return auth.AuthResult{Decision: auth.No, Err: auth.ErrUnauthenticated}
}

func credential(r *http.Request) (string, bool) {
	if vals, ok := r.Header[http.CanonicalHeaderKey(HeaderName)]; ok && len(vals) > 0 {
		return strings.TrimSpace(vals[0]), true
	}
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") == 2 {
		return "", false
	}
	return token, true
}
