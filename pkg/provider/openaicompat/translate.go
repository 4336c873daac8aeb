package openaicompat

import (
	"github.com/rhuss/consensus/pkg/provider"
)

// TranslateToChat converts a provider Request into a ChatCompletionRequest
// suitable for the /v1/chat/completions endpoint. An empty system prompt
// is omitted rather than sent as an empty message.
func TranslateToChat(req *provider.Request) ChatCompletionRequest {
	cr := ChatCompletionRequest{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		N:           1,
	}

	if req.SystemPrompt != "" {
		cr.Messages = append(cr.Messages, ChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	cr.Messages = append(cr.Messages, ChatMessage{Role: "user", Content: req.UserPrompt})

	return cr
}
