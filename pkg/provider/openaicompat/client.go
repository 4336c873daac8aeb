package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/provider"
)

// Client performs HTTP requests against an OpenAI-compatible Chat Completions
// backend.
//
// Provider adapters embed this Client and delegate their Complete and
// ListModels calls to it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	// ModelMapper is an optional function that transforms the model name
	// before sending it to the backend. If nil, the model name is used as-is.
	ModelMapper func(string) string

	// JSONMode asks the backend for a JSON object response
	// (response_format: {"type": "json_object"}).
	JSONMode bool
}

// NewClient creates a new Client for an OpenAI-compatible backend. The
// timeout is a transport-level ceiling; per-call deadlines come from the
// request context.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	// Normalize: remove trailing slash from base URL.
	baseURL = strings.TrimRight(baseURL, "/")

	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// Complete performs non-streaming inference against the Chat Completions
// endpoint. Every failure is returned as an *api.ProviderError.
func (c *Client) Complete(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	reqCopy := *req
	if c.ModelMapper != nil {
		reqCopy.Model = c.ModelMapper(reqCopy.Model)
	}

	chatReq := TranslateToChat(&reqCopy)
	if c.JSONMode {
		chatReq.ResponseFormat = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, api.NewProviderError(api.ProviderInvalidResponse, fmt.Sprintf("failed to marshal request: %s", err.Error()), err)
	}

	url := c.baseURL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, api.NewProviderError(api.ProviderUnavailable, fmt.Sprintf("failed to create HTTP request: %s", err.Error()), err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	debug.Trace("providers", "chat completions request", "url", url, "body", string(body))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var chatResp ChatCompletionResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&chatResp); err != nil {
		// A body cut short by the deadline is a timeout, not a malformed answer.
		if ctx.Err() != nil {
			return nil, MapNetworkError(ctx.Err())
		}
		return nil, api.NewProviderError(api.ProviderInvalidResponse, fmt.Sprintf("failed to parse backend response: %s", err.Error()), err)
	}

	return TranslateResponse(&chatResp)
}

// ListModels returns available models from the backend by querying
// the /v1/models endpoint.
func (c *Client) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	url := c.baseURL + "/v1/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, api.NewProviderError(api.ProviderUnavailable, fmt.Sprintf("failed to create HTTP request: %s", err.Error()), err)
	}
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, MapNetworkError(err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, MapHTTPError(httpResp)
	}

	var modelsResp ChatModelsResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&modelsResp); err != nil {
		return nil, api.NewProviderError(api.ProviderInvalidResponse, fmt.Sprintf("failed to parse models response: %s", err.Error()), err)
	}

	var models []provider.ModelInfo
	for _, m := range modelsResp.Data {
		models = append(models, provider.ModelInfo{
			ID:      m.ID,
			Object:  m.Object,
			OwnedBy: m.OwnedBy,
		})
	}
	return models, nil
}

// Close releases client resources.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
