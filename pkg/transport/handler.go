package transport

import (
	"context"

	"github.com/rhuss/consensus/pkg/api"
)

// AnalyzeRequest asks for one analysis.
type AnalyzeRequest struct {
	// ID is the analysis ID to use. The surface assigns it before the
	// analysis starts so the analysis can be referenced while running.
	ID string `json:"-"`

	Domain string         `json:"domain"`
	Input  map[string]any `json:"input"`

	// Background returns immediately and runs the analysis detached.
	// Requires an AnalysisStore.
	Background bool `json:"background,omitempty"`
}

// Analyzer runs analyses.
type Analyzer interface {
	Analyze(ctx context.Context, req *AnalyzeRequest) (*api.AnalysisResult, error)
}

// AnalyzerFunc adapts an ordinary function to Analyzer.
type AnalyzerFunc func(ctx context.Context, req *AnalyzeRequest) (*api.AnalysisResult, error)

// Analyze calls f(ctx, req).
func (f AnalyzerFunc) Analyze(ctx context.Context, req *AnalyzeRequest) (*api.AnalysisResult, error) {
	return f(ctx, req)
}

// DomainLister reports the domains an Analyzer serves.
type DomainLister interface {
	Domains() []api.DomainInfo
}

// ListOptions controls pagination, filtering, and ordering for list operations.
type ListOptions struct {
	After  string // Cursor: return items after this ID.
	Before string // Cursor: return items before this ID.
	Limit  int    // Maximum number of items to return (default 20, max 100).
	Domain string // Filter by domain.
	Order  string // Sort order: "asc" or "desc" (default "desc").
}

// Pagination bounds shared by store implementations.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// EffectiveLimit clamps Limit to [1, MaxListLimit], using DefaultListLimit
// when unset.
func (o ListOptions) EffectiveLimit() int {
	switch {
	case o.Limit <= 0:
		return DefaultListLimit
	case o.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return o.Limit
	}
}

// ReportList holds a paginated list of reports.
type ReportList struct {
	Object  string        `json:"object"`
	Data    []*api.Report `json:"data"`
	HasMore bool          `json:"has_more"`
	FirstID string        `json:"first_id"`
	LastID  string        `json:"last_id"`
}

// NewReportList builds a list page, never with a nil Data slice.
func NewReportList(page []*api.Report, hasMore bool) *ReportList {
	l := &ReportList{Object: "list", Data: page, HasMore: hasMore}
	if l.Data == nil {
		l.Data = []*api.Report{}
	}
	if len(page) > 0 {
		l.FirstID = page[0].ID
		l.LastID = page[len(page)-1].ID
	}
	return l
}

// AnalysisStore persists analysis reports. Reads and deletes are scoped to
// the tenant in the context, when one is set.
type AnalysisStore interface {
	// SaveReport stores a new report. Returns storage.ErrConflict if the
	// ID already exists.
	SaveReport(ctx context.Context, rep *api.Report) error

	// UpdateReport replaces a stored report. Returns storage.ErrNotFound
	// if it does not exist.
	UpdateReport(ctx context.Context, rep *api.Report) error

	// GetReport retrieves a report by ID.
	GetReport(ctx context.Context, id string) (*api.Report, error)

	// DeleteReport removes a report by ID.
	DeleteReport(ctx context.Context, id string) error

	// ListReports returns a page of reports, newest first by default.
	ListReports(ctx context.Context, opts ListOptions) (*ReportList, error)

	// HealthCheck verifies the store is usable.
	HealthCheck(ctx context.Context) error

	// Close releases resources.
	Close() error
}
