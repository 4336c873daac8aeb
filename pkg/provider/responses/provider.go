package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/provider"
	"github.com/rhuss/consensus/pkg/provider/openaicompat"
)

// ResponsesProvider implements provider.Provider for backends that support
// the OpenAI Responses API (/v1/responses).
type ResponsesProvider struct {
	baseURL    string
	apiKey     string
	jsonMode   bool
	httpClient *http.Client
}

// Ensure ResponsesProvider implements provider.Provider at compile time.
var (
	_ provider.Provider    = (*ResponsesProvider)(nil)
	_ provider.ModelLister = (*ResponsesProvider)(nil)
)

// Config holds configuration for the Responses API provider.
type Config struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	JSONMode bool

	// Probe verifies at construction time that the backend serves
	// /v1/responses, so a misconfigured backend is rejected at startup.
	Probe bool
}

// New creates a new ResponsesProvider.
func New(cfg Config) (*ResponsesProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("responses: BaseURL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	p := &ResponsesProvider{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		jsonMode: cfg.JSONMode,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}

	if cfg.Probe {
		if err := p.probeEndpoint(); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// probeEndpoint sends a lightweight request to /v1/responses to verify the
// backend supports the Responses API. Connection errors and plain 404s (path
// not found) indicate the endpoint is unavailable. A JSON-formatted 404 from
// the API (e.g., "model not found") means the endpoint exists but rejected
// our probe, which is acceptable.
func (p *ResponsesProvider) probeEndpoint() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	probe := []byte(`{"model":"_probe","input":"probe","store":false}`)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/responses", bytes.NewReader(probe))
	if err != nil {
		return fmt.Errorf("responses: probe request creation failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("responses: backend at %s is not reachable: %w", p.baseURL, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusNotFound && !isAPIError(respBody) {
		return fmt.Errorf("responses: backend at %s does not support the Responses API (/v1/responses returned 404)", p.baseURL)
	}

	slog.Info("responses provider: backend probe successful",
		"url", p.baseURL+"/v1/responses",
		"status", resp.StatusCode,
	)
	return nil
}

// isAPIError checks if a response body is a JSON API error (as opposed to a
// plain text "Not Found" from a web framework).
func isAPIError(body []byte) bool {
	var obj struct {
		Message string `json:"message"`
		Error   *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &obj) != nil {
		return false
	}
	return obj.Message != "" || (obj.Error != nil && obj.Error.Message != "")
}

// Name returns the provider identifier.
func (p *ResponsesProvider) Name() string {
	return "responses"
}

// Complete performs non-streaming inference via POST /v1/responses.
func (p *ResponsesProvider) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	body, err := json.Marshal(translateRequest(req, p.jsonMode))
	if err != nil {
		return nil, api.NewProviderError(api.ProviderInvalidResponse, fmt.Sprintf("marshal request: %s", err.Error()), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/responses", bytes.NewReader(body))
	if err != nil {
		return nil, api.NewProviderError(api.ProviderUnavailable, fmt.Sprintf("create request: %s", err.Error()), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	debug.Log("providers", "request", "method", "POST",
		"url", p.baseURL+"/v1/responses", "model", req.Model)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, openaicompat.MapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, openaicompat.MapHTTPError(resp)
	}

	var rResp responsesResponse
	if err := json.NewDecoder(resp.Body).Decode(&rResp); err != nil {
		if ctx.Err() != nil {
			return nil, openaicompat.MapNetworkError(ctx.Err())
		}
		return nil, api.NewProviderError(api.ProviderInvalidResponse, fmt.Sprintf("unmarshal response: %s", err.Error()), err)
	}

	return translateResponse(&rResp)
}

// ListModels queries the backend's /v1/models endpoint.
func (p *ResponsesProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, fmt.Errorf("responses: create request: %w", err)
	}
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, openaicompat.MapNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, openaicompat.MapHTTPError(resp)
	}

	var result struct {
		Data []provider.ModelInfo `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("responses: decode models: %w", err)
	}
	return result.Data, nil
}

// Close releases provider resources.
func (p *ResponsesProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}
