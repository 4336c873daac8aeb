package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/storage"
	"github.com/rhuss/consensus/pkg/transport"
)

// ErrShuttingDown is the cancellation cause of background analyses that
// were still running when the adapter was closed.
var ErrShuttingDown = errors.New("server shutting down")

// Adapter serves the analysis API over HTTP.
// It routes requests to the appropriate handler and serializes reports.
type Adapter struct {
	analyzer transport.Analyzer
	domains  transport.DomainLister  // nil if the analyzer cannot list domains
	store    transport.AnalysisStore // nil if stateless-only
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config

	background sync.WaitGroup
	now        func() time.Time
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	MaxBodySize int64
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 10 << 20, // 10 MB
	}
}

// NewAdapter creates an HTTP adapter for the given Analyzer.
// The AnalysisStore is optional; when nil, retrieval, listing and
// background analyses return 501 and synchronous analyses are not recorded.
// Middleware is applied to the Analyzer in the given order.
func NewAdapter(analyzer transport.Analyzer, store transport.AnalysisStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = DefaultConfig().MaxBodySize
	}

	// Domain listing is taken from the unwrapped analyzer.
	lister, _ := analyzer.(transport.DomainLister)

	if len(middlewares) > 0 {
		analyzer = transport.Chain(middlewares...)(analyzer)
	}

	a := &Adapter{
		analyzer: analyzer,
		domains:  lister,
		store:    store,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
		now:      time.Now,
	}

	a.mux.HandleFunc("POST /v1/analyses", a.handleCreateAnalysis)
	a.mux.HandleFunc("GET /v1/analyses/{id}", a.handleGetAnalysis)
	a.mux.HandleFunc("GET /v1/analyses", a.handleListAnalyses)
	a.mux.HandleFunc("DELETE /v1/analyses/{id}", a.handleDeleteAnalysis)
	a.mux.HandleFunc("GET /v1/domains", a.handleListDomains)
	a.mux.HandleFunc("GET /healthz", a.handleHealth)
	a.mux.HandleFunc("GET /readyz", a.handleReady)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// InFlight returns the registry of running analyses.
func (a *Adapter) InFlight() *transport.InFlightRegistry {
	return a.inflight
}

// Close waits for background analyses to finish. When ctx expires first,
// the remaining analyses are cancelled with ErrShuttingDown and Close
// returns once they have recorded their outcome.
func (a *Adapter) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		n := a.inflight.CancelAll(ErrShuttingDown)
		slog.Warn("cancelling background analyses", "count", n)
		<-done
		return ctx.Err()
	}
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded to
// the response. After the handler runs, it checks the context for a
// request ID (set by the transport-level RequestID middleware) and adds
// it to the response headers if not already set.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = transport.NewRequestID()
		}
		r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// handleCreateAnalysis handles POST /v1/analyses.
func (a *Adapter) handleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json"),
			http.StatusUnsupportedMediaType,
		)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	var req transport.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			transport.WriteErrorResponse(w,
				api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)),
				http.StatusRequestEntityTooLarge,
			)
			return
		}
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("body", "invalid JSON: "+err.Error()),
			http.StatusBadRequest,
		)
		return
	}

	if req.Domain == "" {
		transport.WriteAPIError(w, api.NewInvalidRequestError("domain", "domain is required"))
		return
	}
	if !a.knownDomain(req.Domain) {
		transport.WriteAPIError(w, api.NewNotFoundError(fmt.Sprintf("domain %q not found", req.Domain)))
		return
	}

	req.ID = api.NewAnalysisID()

	if req.Background {
		a.startBackground(w, r, &req)
		return
	}

	rep := api.NewReport(req.ID, req.Domain, a.now().Unix())
	ctx, release := a.inflight.Start(r.Context(), req.ID)
	result, err := a.analyzer.Analyze(ctx, &req)
	release()
	rep.Finish(result, err, a.now().Unix())

	if a.store != nil && recordable(err) {
		if saveErr := a.store.SaveReport(context.WithoutCancel(r.Context()), rep); saveErr != nil {
			slog.Warn("failed to save report", "analysis_id", rep.ID, "error", saveErr)
		}
	}

	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// startBackground records an idle report, answers 202 and runs the
// analysis detached from the request.
func (a *Adapter) startBackground(w http.ResponseWriter, r *http.Request, req *transport.AnalyzeRequest) {
	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("background", "background analyses are not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	rep := api.NewReport(req.ID, req.Domain, a.now().Unix())
	if err := a.store.SaveReport(r.Context(), rep); err != nil {
		transport.WriteError(w, storeError(err, rep.ID))
		return
	}
	accepted := *rep

	// The detached context keeps the tenant and request ID values.
	ctx := context.WithoutCancel(r.Context())
	ctx, release := a.inflight.Start(ctx, req.ID)

	a.background.Add(1)
	go func() {
		defer a.background.Done()
		defer release()

		debug.Log("transport", "background analysis started", "analysis_id", req.ID, "domain", req.Domain)
		result, err := a.analyzer.Analyze(ctx, req)
		rep.Finish(result, err, a.now().Unix())
		if err := a.store.UpdateReport(context.WithoutCancel(ctx), rep); err != nil {
			slog.Warn("failed to update report", "analysis_id", rep.ID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, &accepted)
}

// handleGetAnalysis handles GET /v1/analyses/{id}.
func (a *Adapter) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "analysis retrieval is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	id := r.PathValue("id")
	if !api.ValidateAnalysisID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed analysis ID"))
		return
	}

	rep, err := a.store.GetReport(r.Context(), id)
	if err != nil {
		transport.WriteError(w, storeError(err, id))
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// handleDeleteAnalysis handles DELETE /v1/analyses/{id}.
// It first checks the in-flight registry (for cancelling running
// analyses the caller's tenant owns), then falls through to the store for
// standard deletion.
func (a *Adapter) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !api.ValidateAnalysisID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed analysis ID"))
		return
	}

	if a.inflight.Cancel(r.Context(), id) {
		debug.Log("transport", "cancelled in-flight analysis", "analysis_id", id)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "analysis deletion is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	if err := a.store.DeleteReport(r.Context(), id); err != nil {
		transport.WriteError(w, storeError(err, id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListAnalyses handles GET /v1/analyses.
func (a *Adapter) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		transport.WriteErrorResponse(w,
			api.NewInvalidRequestError("", "analysis listing is not available (no store configured)"),
			http.StatusNotImplemented,
		)
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	list, err := a.store.ListReports(r.Context(), opts)
	if err != nil {
		transport.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// domainList is the body of GET /v1/domains.
type domainList struct {
	Object string           `json:"object"`
	Data   []api.DomainInfo `json:"data"`
}

// handleListDomains handles GET /v1/domains.
func (a *Adapter) handleListDomains(w http.ResponseWriter, r *http.Request) {
	list := domainList{Object: "list", Data: []api.DomainInfo{}}
	if a.domains != nil {
		list.Data = append(list.Data, a.domains.Domains()...)
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *Adapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports 503 while the store is unreachable.
func (a *Adapter) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.store != nil {
		if err := a.store.HealthCheck(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *Adapter) knownDomain(domain string) bool {
	if a.domains == nil {
		return true
	}
	for _, d := range a.domains.Domains() {
		if d.Domain == domain {
			return true
		}
	}
	return false
}

// parseListOptions extracts pagination parameters from query string.
func parseListOptions(r *http.Request) (transport.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := transport.ListOptions{
		After:  q.Get("after"),
		Before: q.Get("before"),
		Domain: q.Get("domain"),
		Order:  q.Get("order"),
	}

	if opts.After != "" && opts.Before != "" {
		return opts, api.NewInvalidRequestError("after", "cannot use both 'after' and 'before' cursors")
	}

	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, api.NewInvalidRequestError("order", "order must be 'asc' or 'desc'")
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	return opts, nil
}

// recordable reports whether an Analyze outcome describes a real analysis
// run. Rejections before the pipeline started (unknown domain, panics
// converted by Recovery) are not stored.
func recordable(err error) bool {
	if err == nil {
		return true
	}
	var ae *api.AnalysisError
	return errors.As(err, &ae) || errors.Is(err, context.Canceled)
}

// storeError maps storage sentinels onto API errors.
func storeError(err error, id string) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return api.NewNotFoundError("analysis " + id + " not found")
	case errors.Is(err, storage.ErrConflict):
		return api.NewInvalidRequestError("id", "analysis "+id+" already exists")
	default:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
