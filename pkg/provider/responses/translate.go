package responses

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/provider"
)

var jsonObjectFormat = json.RawMessage(`{"type":"json_object"}`)

// translateRequest converts a provider Request into the Responses API
// wire format. Responses are never stored on the backend.
func translateRequest(req *provider.Request, jsonMode bool) *responsesRequest {
	rr := &responsesRequest{
		Model:           req.Model,
		Instructions:    req.SystemPrompt,
		Input:           req.UserPrompt,
		Store:           false,
		Temperature:     req.Temperature,
		MaxOutputTokens: req.MaxTokens,
	}
	if jsonMode {
		rr.Text = &responsesTextConfig{Format: jsonObjectFormat}
	}
	return rr
}

// translateResponse extracts the completion text from a Responses API
// response. Only assistant message items contribute; reasoning items are
// skipped.
func translateResponse(resp *responsesResponse) (*provider.Response, error) {
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, api.NewProviderError(api.ProviderInvalidResponse, fmt.Sprintf("backend reported error: %s", resp.Error.Message), nil)
	}
	if resp.Status == "failed" || resp.Status == "cancelled" {
		return nil, api.NewProviderError(api.ProviderInvalidResponse, fmt.Sprintf("backend response status %q", resp.Status), nil)
	}

	var b strings.Builder
	for _, item := range resp.Output {
		if item.Type != "message" || len(item.Content) == 0 {
			continue
		}
		var parts []responsesContentPart
		if err := json.Unmarshal(item.Content, &parts); err != nil {
			return nil, api.NewProviderError(api.ProviderInvalidResponse, fmt.Sprintf("malformed message content: %s", err.Error()), err)
		}
		for _, part := range parts {
			if part.Type == "output_text" {
				b.WriteString(part.Text)
			}
		}
	}

	text := b.String()
	if strings.TrimSpace(text) == "" {
		return nil, api.NewProviderError(api.ProviderInvalidResponse, "backend returned no output text", nil)
	}

	pr := &provider.Response{Text: text, Model: resp.Model}
	if resp.Usage != nil {
		pr.Usage = provider.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}
	return pr, nil
}
