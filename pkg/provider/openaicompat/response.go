package openaicompat

import (
	"strings"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/provider"
)

// TranslateResponse converts a ChatCompletionResponse into a provider
// Response. It uses only choices[0]. A response without choices, with
// blank content, or cut off by a content filter is an InvalidResponse: the
// backend answered, but produced nothing the pipeline can use.
func TranslateResponse(resp *ChatCompletionResponse) (*provider.Response, error) {
	pr := &provider.Response{Model: resp.Model}

	if resp.Usage != nil {
		pr.Usage = provider.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	// Need at least one choice. Empty choices means the backend produced no output.
	if len(resp.Choices) == 0 {
		return nil, api.NewProviderError(api.ProviderInvalidResponse, "backend returned no choices", nil)
	}

	choice := resp.Choices[0]
	if choice.FinishReason == "content_filter" {
		return nil, api.NewProviderError(api.ProviderInvalidResponse, "backend response was blocked by a content filter", nil)
	}

	text := ExtractContentString(choice.Message.Content)
	if strings.TrimSpace(text) == "" {
		return nil, api.NewProviderError(api.ProviderInvalidResponse, "backend returned empty content", nil)
	}
	pr.Text = text
	return pr, nil
}

// ExtractContentString attempts to get a plain string from the message content.
// The content field in Chat Completions can be a string, nil, or an array
// of typed parts; text parts are concatenated.
func ExtractContentString(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []any:
		var b strings.Builder
		for _, part := range v {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := m["type"].(string); t != "text" {
				continue
			}
			if s, ok := m["text"].(string); ok {
				b.WriteString(s)
			}
		}
		return b.String()
	default:
		return ""
	}
}
