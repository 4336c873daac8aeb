// Package responses implements a Provider adapter for backends that support
// the OpenAI Responses API (/v1/responses). The system prompt travels as
// instructions, the user prompt as input, and the completion text is the
// concatenated output_text of the message items.
package responses

import "encoding/json"

// --- Request types ---

// responsesRequest is the wire format for POST /v1/responses.
type responsesRequest struct {
	Model           string   `json:"model"`
	Instructions    string   `json:"instructions,omitempty"`
	Input           string   `json:"input"`
	Store           bool     `json:"store"`
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"max_output_tokens,omitempty"`

	// Text carries the output format constraint (text.format).
	Text *responsesTextConfig `json:"text,omitempty"`
}

// responsesTextConfig carries the text output format constraint.
type responsesTextConfig struct {
	Format json.RawMessage `json:"format,omitempty"`
}

// --- Response types ---

// responsesResponse is the wire format returned by POST /v1/responses.
type responsesResponse struct {
	ID        string          `json:"id"`
	Object    string          `json:"object"`
	CreatedAt int64           `json:"created_at"`
	Status    string          `json:"status"`
	Model     string          `json:"model"`
	Output    []responsesItem `json:"output"`
	Usage     *responsesUsage `json:"usage,omitempty"`
	Error     *responsesError `json:"error,omitempty"`
}

// responsesItem represents an output item (message, reasoning, etc.).
type responsesItem struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Status  string          `json:"status,omitempty"`
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// responsesContentPart is a content part within a message item.
type responsesContentPart struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// responsesUsage holds token usage from the backend.
type responsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// responsesError is the error format in Responses API responses.
type responsesError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
