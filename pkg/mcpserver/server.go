package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/auth"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/storage"
	"github.com/rhuss/consensus/pkg/transport"
)

// Tool names.
const (
	ToolAnalyze     = "analyze"
	ToolListDomains = "list_domains"
	ToolGetAnalysis = "get_analysis"
)

// AnalyzeInput is the argument object of the analyze tool.
type AnalyzeInput struct {
	Domain string         `json:"domain" jsonschema:"the analysis domain, as returned by list_domains"`
	Input  map[string]any `json:"input" jsonschema:"domain-specific input fields"`
}

// GetAnalysisInput is the argument object of the get_analysis tool.
type GetAnalysisInput struct {
	ID string `json:"id" jsonschema:"the analysis ID returned by analyze"`
}

// Server serves the analysis tools over MCP.
type Server struct {
	analyzer transport.Analyzer
	domains  transport.DomainLister
	store    transport.AnalysisStore
	version  string
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the implementation version announced to clients.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithMiddleware wraps the analyzer in the given transport middleware.
// The first middleware is the outermost.
func WithMiddleware(mws ...transport.Middleware) Option {
	return func(s *Server) {
		if len(mws) > 0 {
			s.analyzer = transport.Chain(mws...)(s.analyzer)
		}
	}
}

// New creates an MCP server for analyzer. The store may be nil, in which
// case analyses are not recorded and get_analysis is not offered.
func New(analyzer transport.Analyzer, store transport.AnalysisStore, opts ...Option) *Server {
	s := &Server{
		analyzer: analyzer,
		store:    store,
		version:  "dev",
		now:      time.Now,
	}
	if dl, ok := analyzer.(transport.DomainLister); ok {
		s.domains = dl
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the streamable HTTP handler. Each request gets its own
// MCP server so that tool calls see the tenant and identity the HTTP
// middleware attached to that request.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.build(r.Context())
	}, &mcp.StreamableHTTPOptions{Stateless: true})
}

// build creates an MCP server whose tool handlers run with the request
// scope of reqCtx.
func (s *Server) build(reqCtx context.Context) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: "consensus", Version: s.version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolAnalyze,
		Description: "Runs the knowledge, data and reasoning stages for a domain and returns the analysis report",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in AnalyzeInput) (*mcp.CallToolResult, any, error) {
		return s.analyze(requestScope(ctx, reqCtx), in), nil, nil
	})

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolListDomains,
		Description: "Lists the analysis domains served by this instance",
	}, func(context.Context, *mcp.CallToolRequest, struct{}) (*mcp.CallToolResult, any, error) {
		return s.listDomains(), nil, nil
	})

	if s.store != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        ToolGetAnalysis,
			Description: "Fetches a stored analysis report by ID",
		}, func(ctx context.Context, _ *mcp.CallToolRequest, in GetAnalysisInput) (*mcp.CallToolResult, any, error) {
			return s.getAnalysis(requestScope(ctx, reqCtx), in), nil, nil
		})
	}
	return server
}

// denied returns a forbidden result when the caller lacks scope.
func denied(ctx context.Context, scope string) *mcp.CallToolResult {
	if id := auth.IdentityFromContext(ctx); !id.HasScope(scope) {
		return errorResult(api.NewForbiddenError(scope, "missing scope "+scope))
	}
	return nil
}

func (s *Server) analyze(ctx context.Context, in AnalyzeInput) *mcp.CallToolResult {
	if res := denied(ctx, auth.ScopeWrite); res != nil {
		return res
	}
	if in.Domain == "" {
		return errorResult(api.NewInvalidRequestError("domain", "domain is required"))
	}
	if !s.knownDomain(in.Domain) {
		return errorResult(api.NewNotFoundError(fmt.Sprintf("domain %q not found", in.Domain)))
	}

	req := &transport.AnalyzeRequest{
		ID:     api.NewAnalysisID(),
		Domain: in.Domain,
		Input:  in.Input,
	}
	debug.Log("mcp", "analyze tool call", "domain", req.Domain, "analysis_id", req.ID)

	rep := api.NewReport(req.ID, req.Domain, s.now().Unix())
	result, err := s.analyzer.Analyze(ctx, req)
	rep.Finish(result, err, s.now().Unix())

	if s.store != nil && recordable(err) {
		if saveErr := s.store.SaveReport(context.WithoutCancel(ctx), rep); saveErr != nil {
			slog.Warn("failed to save report", "analysis_id", rep.ID, "error", saveErr)
		}
	}
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(rep)
}

func (s *Server) listDomains() *mcp.CallToolResult {
	var domains []api.DomainInfo
	if s.domains != nil {
		domains = s.domains.Domains()
	}
	if domains == nil {
		domains = []api.DomainInfo{}
	}
	return jsonResult(domains)
}

func (s *Server) getAnalysis(ctx context.Context, in GetAnalysisInput) *mcp.CallToolResult {
	if res := denied(ctx, auth.ScopeRead); res != nil {
		return res
	}
	if !api.ValidateAnalysisID(in.ID) {
		return errorResult(api.NewInvalidRequestError("id", fmt.Sprintf("invalid analysis ID %q", in.ID)))
	}
	rep, err := s.store.GetReport(ctx, in.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return errorResult(api.NewNotFoundError("analysis " + in.ID + " not found"))
		}
		return errorResult(err)
	}
	return jsonResult(rep)
}

func (s *Server) knownDomain(domain string) bool {
	if s.domains == nil {
		return true
	}
	for _, d := range s.domains.Domains() {
		if d.Domain == domain {
			return true
		}
	}
	return false
}

// requestScope copies the tenant, identity and request ID of the HTTP
// request onto the tool call context.
func requestScope(ctx, reqCtx context.Context) context.Context {
	if tenant := storage.GetTenant(reqCtx); tenant != "" && storage.GetTenant(ctx) == "" {
		ctx = storage.SetTenant(ctx, tenant)
	}
	if id := auth.IdentityFromContext(reqCtx); id != nil && auth.IdentityFromContext(ctx) == nil {
		ctx = auth.SetIdentity(ctx, id)
	}
	if rid := transport.RequestIDFromContext(reqCtx); rid != "" && transport.RequestIDFromContext(ctx) == "" {
		ctx = transport.ContextWithRequestID(ctx, rid)
	}
	return ctx
}

// recordable reports whether an analysis outcome belongs in the store.
// Rejected requests never became analyses.
func recordable(err error) bool {
	if err == nil {
		return true
	}
	var ae *api.AnalysisError
	return errors.As(err, &ae) || errors.Is(err, context.Canceled)
}

func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Errorf("encoding result: %w", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}

// errorResult reports err as a tool error carrying the API error body.
func errorResult(err error) *mcp.CallToolResult {
	data, _ := json.Marshal(api.ErrorResponse{Error: api.ToAPIError(err)})
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
