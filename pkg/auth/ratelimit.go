package auth

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// RateLimiter checks whether a request should be allowed based on
// the identity's service tier.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// TierConfig holds rate limit settings for a service tier.
type TierConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`

	// Burst is the bucket size. Zero means one minute's worth of requests.
	Burst int `yaml:"burst"`
}

// DefaultTier is used for identities without a service tier.
const DefaultTier = "default"

// TokenBucketLimiter keeps one token bucket per subject and tier in memory.
type TokenBucketLimiter struct {
	tiers      map[string]TierConfig
	defaultRPM int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewTokenBucketLimiter creates a rate limiter with per-tier configuration.
// Tiers not listed use defaultRPM; a rate of zero disables limiting.
func NewTokenBucketLimiter(tiers map[string]TierConfig, defaultRPM int) *TokenBucketLimiter {
	return &TokenBucketLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		buckets:    make(map[string]*rate.Limiter),
	}
}

// Allow takes one token from the identity's bucket.
func (l *TokenBucketLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := identity.ServiceTier
	if tier == "" {
		tier = DefaultTier
	}

	tc, ok := l.tiers[tier]
	if !ok {
		tc = TierConfig{RequestsPerMinute: l.defaultRPM}
	}
	if tc.RequestsPerMinute <= 0 {
		return nil
	}

	if !l.bucket(identity.Subject+":"+tier, tc).Allow() {
		return ErrTooManyRequests
	}
	return nil
}

func (l *TokenBucketLimiter) bucket(key string, tc TierConfig) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		burst := tc.Burst
		if burst <= 0 {
			burst = tc.RequestsPerMinute
		}
		b = rate.NewLimiter(rate.Limit(float64(tc.RequestsPerMinute)/60), burst)
		l.buckets[key] = b
	}
	return b
}
