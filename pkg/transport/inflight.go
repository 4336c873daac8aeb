package transport

import (
	"context"
	"errors"
	"sync"

	"github.com/rhuss/consensus/pkg/storage"
)

// ErrCancelledByClient is the cancellation cause of an analysis aborted
// through Cancel.
var ErrCancelledByClient = errors.New("analysis cancelled by client")

// InFlightRegistry tracks running analyses so a DELETE (or another
// surface) can abort them by ID. Each entry remembers the tenant that
// started it. All methods are safe for concurrent use.
type InFlightRegistry struct {
	mu      sync.Mutex
	entries map[string]inflight
}

type inflight struct {
	owner  string
	cancel context.CancelCauseFunc
}

// NewInFlightRegistry creates a new empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{
		entries: make(map[string]inflight),
	}
}

// Start derives a cancellable context for analysis id and registers it
// under the tenant carried by ctx. The returned release function must be
// called when the analysis ends.
func (r *InFlightRegistry) Start(ctx context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)
	r.Register(storage.GetTenant(ctx), id, cancel)
	return ctx, func() {
		r.Remove(id)
		cancel(nil)
	}
}

// Register adds a running analysis owned by owner to the registry.
func (r *InFlightRegistry) Register(owner, id string, cancel context.CancelCauseFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = inflight{owner: owner, cancel: cancel}
}

// Cancel aborts a running analysis with ErrCancelledByClient. It reports
// false if the ID is not registered (finished or never existed) or belongs
// to a tenant not visible from ctx; such entries are left running.
func (r *InFlightRegistry) Cancel(ctx context.Context, id string) bool {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok && !storage.Visible(ctx, e.owner) {
		ok = false
	}
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	e.cancel(ErrCancelledByClient)
	return true
}

// CancelAll aborts every registered analysis, e.g. on shutdown.
func (r *InFlightRegistry) CancelAll(cause error) int {
	r.mu.Lock()
	entries := r.entries
	r.entries = make(map[string]inflight)
	r.mu.Unlock()

	for _, e := range entries {
		e.cancel(cause)
	}
	return len(entries)
}

// Remove drops an analysis from the registry without cancelling it.
func (r *InFlightRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of running analyses.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
