// Package memory provides an in-memory transport.AnalysisStore for tests
// and single-replica deployments. Reports are lost when the process
// restarts. An optional size limit evicts the least recently used report.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/storage"
	"github.com/rhuss/consensus/pkg/transport"
)

type entry struct {
	report  api.Report
	lruElem *list.Element
}

// Store is an in-memory AnalysisStore with optional LRU eviction.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	lruList *list.List // front = most recently used
	maxSize int        // 0 = unlimited
}

var _ transport.AnalysisStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// SaveReport stores a copy of rep. The tenant from the context is recorded
// when rep does not carry one.
func (s *Store) SaveReport(ctx context.Context, rep *api.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[rep.ID]; exists {
		return storage.ErrConflict
	}

	stored := *rep
	if stored.Tenant == "" {
		stored.Tenant = storage.GetTenant(ctx)
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(rep.ID)
	s.entries[rep.ID] = &entry{report: stored, lruElem: elem}
	return nil
}

// UpdateReport replaces the stored copy of rep. The owning tenant cannot
// change.
func (s *Store) UpdateReport(ctx context.Context, rep *api.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(ctx, rep.ID)
	if !ok {
		return storage.ErrNotFound
	}
	tenant := e.report.Tenant
	e.report = *rep
	e.report.Tenant = tenant
	s.lruList.MoveToFront(e.lruElem)
	return nil
}

// GetReport returns a copy of the report.
func (s *Store) GetReport(ctx context.Context, id string) (*api.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(ctx, id)
	if !ok {
		return nil, storage.ErrNotFound
	}
	s.lruList.MoveToFront(e.lruElem)
	out := e.report
	return &out, nil
}

// DeleteReport removes a report.
func (s *Store) DeleteReport(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(ctx, id)
	if !ok {
		return storage.ErrNotFound
	}
	s.lruList.Remove(e.lruElem)
	delete(s.entries, id)
	return nil
}

// ListReports returns a page of reports visible to the context's tenant,
// optionally filtered by domain, ordered by creation time.
func (s *Store) ListReports(ctx context.Context, opts transport.ListOptions) (*transport.ReportList, error) {
	s.mu.Lock()
	var matches []*api.Report
	for _, e := range s.entries {
		if !storage.Visible(ctx, e.report.Tenant) {
			continue
		}
		if opts.Domain != "" && e.report.Domain != opts.Domain {
			continue
		}
		rep := e.report
		matches = append(matches, &rep)
	}
	s.mu.Unlock()

	asc := opts.Order == "asc"
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.CreatedAt != b.CreatedAt {
			if asc {
				return a.CreatedAt < b.CreatedAt
			}
			return a.CreatedAt > b.CreatedAt
		}
		if asc {
			return a.ID < b.ID
		}
		return a.ID > b.ID
	})

	matches = applyCursor(matches, opts)

	limit := opts.EffectiveLimit()
	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}
	return transport.NewReportList(matches, hasMore), nil
}

// applyCursor cuts the ordered list at the After or Before cursor. An
// unknown cursor yields an empty page.
func applyCursor(reports []*api.Report, opts transport.ListOptions) []*api.Report {
	cursor := opts.After
	if cursor == "" {
		cursor = opts.Before
	}
	if cursor == "" {
		return reports
	}
	idx := -1
	for i, r := range reports {
		if r.ID == cursor {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	if opts.After != "" {
		return reports[idx+1:]
	}
	return reports[:idx]
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored reports.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// lookup must be called with s.mu held.
func (s *Store) lookup(ctx context.Context, id string) (*entry, bool) {
	e, ok := s.entries[id]
	if !ok || !storage.Visible(ctx, e.report.Tenant) {
		return nil, false
	}
	return e, true
}

// evictOldest must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
	debug.Log("storage", "report evicted", "analysis_id", id)
}
