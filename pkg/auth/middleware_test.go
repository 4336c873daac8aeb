package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/observability"
	"github.com/rhuss/consensus/pkg/storage"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
	return rec
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorType {
	t.Helper()
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return resp.Error.Type
}

func rejections(t *testing.T, tier string) float64 {
	t.Helper()
	var m dto.Metric
	if err := observability.RateLimitRejectedTotal.WithLabelValues(tier).Write(&m); err != nil {
		t.Fatalf("reading counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestMiddleware_BypassEndpoint(t *testing.T) {
	h := Middleware(&AuthChain{DefaultDecision: No}, nil, DefaultBypassEndpoints)(okHandler)
	for _, path := range DefaultBypassEndpoints {
		if rec := serve(h, path); rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestMiddleware_Rejects(t *testing.T) {
	h := Middleware(&AuthChain{DefaultDecision: No}, nil, DefaultBypassEndpoints)(okHandler)

	rec := serve(h, "/v1/analyses")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := errorType(t, rec); got != api.ErrorTypeUnauthorized {
		t.Errorf("error type = %s", got)
	}
}

func TestMiddleware_EmptySubject(t *testing.T) {
	chain := &AuthChain{Authenticators: []Authenticator{yes("")}}
	rec := serve(Middleware(chain, nil, nil)(okHandler), "/v1/analyses")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMiddleware_InjectsIdentityAndTenant(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{&mockAuthn{result: AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "alice", Metadata: map[string]string{TenantMetadataKey: "org-1"}},
		}}},
	}

	var gotTenant, gotSubject string
	h := Middleware(chain, nil, DefaultBypassEndpoints)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTenant = storage.GetTenant(r.Context())
		if id := IdentityFromContext(r.Context()); id != nil {
			gotSubject = id.Subject
		}
	}))

	serve(h, "/v1/analyses")
	if gotTenant != "org-1" || gotSubject != "alice" {
		t.Errorf("tenant = %q, subject = %q", gotTenant, gotSubject)
	}
}

func TestMiddleware_RateLimitExceeded(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{&mockAuthn{result: AuthResult{
			Decision: Yes,
			Identity: &Identity{Subject: "alice", ServiceTier: "limited"},
		}}},
	}
	limiter := NewTokenBucketLimiter(map[string]TierConfig{"limited": {RequestsPerMinute: 2}}, 100)
	h := Middleware(chain, limiter, DefaultBypassEndpoints)(okHandler)

	before := rejections(t, "limited")

	for i := 0; i < 2; i++ {
		if rec := serve(h, "/v1/analyses"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := serve(h, "/v1/analyses")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if got := errorType(t, rec); got != api.ErrorTypeTooManyRequests {
		t.Errorf("error type = %s", got)
	}

	after := rejections(t, "limited")
	if after-before != 1 {
		t.Errorf("rejections recorded = %v, want 1", after-before)
	}
}

func TestTokenBucketLimiter(t *testing.T) {
	l := NewTokenBucketLimiter(map[string]TierConfig{
		"burst":     {RequestsPerMinute: 60, Burst: 3},
		"unlimited": {RequestsPerMinute: 0},
	}, 1)
	ctx := context.Background()

	bursty := &Identity{Subject: "a", ServiceTier: "burst"}
	for i := 0; i < 3; i++ {
		if err := l.Allow(ctx, bursty); err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
	}
	if err := l.Allow(ctx, bursty); err != ErrTooManyRequests {
		t.Errorf("4th request: err = %v, want ErrTooManyRequests", err)
	}

	// Buckets are per subject.
	if err := l.Allow(ctx, &Identity{Subject: "b", ServiceTier: "burst"}); err != nil {
		t.Errorf("other subject: %v", err)
	}

	for i := 0; i < 50; i++ {
		if err := l.Allow(ctx, &Identity{Subject: "svc", ServiceTier: "unlimited"}); err != nil {
			t.Fatalf("unlimited tier limited: %v", err)
		}
	}

	// Unknown tiers use the default rate of one per minute.
	anon := &Identity{Subject: "anon"}
	if err := l.Allow(ctx, anon); err != nil {
		t.Fatalf("first default request: %v", err)
	}
	if err := l.Allow(ctx, anon); err != ErrTooManyRequests {
		t.Errorf("second default request: err = %v", err)
	}
}

func TestMiddleware_NoLimiter(t *testing.T) {
	h := Middleware(&AuthChain{Authenticators: []Authenticator{yes("alice")}}, nil, nil)(okHandler)
	for i := 0; i < 100; i++ {
		if rec := serve(h, "/v1/analyses"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i+1, rec.Code)
		}
	}
}

func TestRequireScope(t *testing.T) {
	reader := &Identity{Subject: "bob", Scopes: []string{ScopeRead}}
	h := RequireScope("/mcp")(okHandler)

	tests := []struct {
		name   string
		method string
		path   string
		id     *Identity
		want   int
	}{
		{"reader lists", http.MethodGet, "/v1/analyses", reader, http.StatusOK},
		{"reader analyzes", http.MethodPost, "/v1/analyses", reader, http.StatusForbidden},
		{"reader deletes", http.MethodDelete, "/v1/analyses/anl_x", reader, http.StatusForbidden},
		{"unrestricted analyzes", http.MethodPost, "/v1/analyses", &Identity{Subject: "alice"}, http.StatusOK},
		{"no identity", http.MethodPost, "/v1/analyses", nil, http.StatusOK},
		{"exempt prefix", http.MethodPost, "/mcp", reader, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.id != nil {
				req = req.WithContext(SetIdentity(req.Context(), tt.id))
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusForbidden && errorType(t, rec) != api.ErrorTypeForbidden {
				t.Error("expected forbidden error body")
			}
		})
	}
}
