package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/rhuss/consensus/pkg/api"
)

// ErrUnknownProvider is returned when a key is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// Member is a provider bound to the key it was configured under. The key,
// not the adapter name, identifies the provider in results.
type Member struct {
	Key      string
	Provider Provider
}

// Registry maps provider keys to adapter instances. It is populated at
// startup and read concurrently afterwards.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*bound
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*bound)}
}

// Register adds an adapter under cfg.Key. The ProviderConfig supplies the
// model and default sampling parameters applied to requests that leave
// them unset.
func (r *Registry) Register(cfg api.ProviderConfig, p Provider) error {
	if cfg.Key == "" {
		return fmt.Errorf("provider key is required")
	}
	if p == nil {
		return fmt.Errorf("provider %q: adapter is nil", cfg.Key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[cfg.Key]; exists {
		return fmt.Errorf("provider %q already registered", cfg.Key)
	}
	r.entries[cfg.Key] = &bound{cfg: cfg, next: p}
	return nil
}

// Get returns the provider registered under key.
func (r *Registry) Get(key string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return b, true
}

// Config returns the ProviderConfig registered under key.
func (r *Registry) Config(key string) (api.ProviderConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.entries[key]
	if !ok {
		return api.ProviderConfig{}, false
	}
	return b.cfg, true
}

// Resolve maps an ordered key list to Members, preserving order. Every
// unknown key is reported; nothing is resolved lazily at call time.
func (r *Registry) Resolve(keys []string) ([]Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]Member, 0, len(keys))
	var errs []error
	for _, key := range keys {
		b, ok := r.entries[key]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownProvider, key))
			continue
		}
		members = append(members, Member{Key: key, Provider: b})
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return members, nil
}

// Keys returns all registered keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close closes every registered adapter and returns the joined errors.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for key, b := range r.entries {
		if err := b.next.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing provider %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// bound applies the registered ProviderConfig defaults to every request.
type bound struct {
	cfg  api.ProviderConfig
	next Provider
}

func (b *bound) Name() string { return b.next.Name() }

func (b *bound) Complete(ctx context.Context, req *Request) (*Response, error) {
	r := *req
	if r.Model == "" {
		r.Model = b.cfg.Model
	}
	if r.Temperature == nil && b.cfg.Temperature > 0 {
		r.Temperature = Float64(b.cfg.Temperature)
	}
	if r.MaxTokens == nil && b.cfg.MaxTokens > 0 {
		r.MaxTokens = Int(b.cfg.MaxTokens)
	}
	return b.next.Complete(ctx, &r)
}

func (b *bound) Close() error { return b.next.Close() }

// ListModels forwards to the wrapped adapter when it supports listing.
func (b *bound) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if l, ok := b.next.(ModelLister); ok {
		return l.ListModels(ctx)
	}
	return nil, nil
}
