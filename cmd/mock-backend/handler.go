package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// --- Request types ---

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesRequest struct {
	Model        string `json:"model"`
	Instructions string `json:"instructions"`
	Input        string `json:"input"`
}

// --- Response types ---

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type responsesResponse struct {
	ID     string          `json:"id"`
	Object string          `json:"object"`
	Status string          `json:"status"`
	Model  string          `json:"model"`
	Output []responsesItem `json:"output"`
}

type responsesItem struct {
	ID      string                 `json:"id"`
	Type    string                 `json:"type"`
	Role    string                 `json:"role"`
	Content []responsesContentPart `json:"content"`
}

type responsesContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// mock holds the behaviour shared by all endpoints.
type mock struct {
	models    []string
	slowDelay time.Duration
}

func newHandler(models []string, slowDelay time.Duration) http.Handler {
	m := &mock{models: models, slowDelay: slowDelay}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", m.handleChatCompletions)
	mux.HandleFunc("POST /v1/responses", m.handleResponses)
	mux.HandleFunc("GET /v1/models", m.handleModels)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	return mux
}

func (m *mock) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Stream {
		writeError(w, http.StatusBadRequest, "streaming is not supported by the mock backend")
		return
	}
	if !m.simulate(w, r, req.Model) {
		return
	}

	var system, user string
	for _, msg := range req.Messages {
		text, _ := msg.Content.(string)
		switch msg.Role {
		case "system":
			system = text
		case "user":
			user = text
		}
	}

	text := completion(req.Model, system, user)
	writeJSON(w, chatResponse{
		ID:     "chatcmpl-mock",
		Object: "chat.completion",
		Model:  modelOrDefault(req.Model),
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: text},
			FinishReason: "stop",
		}},
		Usage: usage(system+user, text),
	})
}

func (m *mock) handleResponses(w http.ResponseWriter, r *http.Request) {
	var req responsesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if !m.simulate(w, r, req.Model) {
		return
	}

	writeJSON(w, responsesResponse{
		ID:     "resp-mock",
		Object: "response",
		Status: "completed",
		Model:  modelOrDefault(req.Model),
		Output: []responsesItem{{
			ID:   "msg-mock",
			Type: "message",
			Role: "assistant",
			Content: []responsesContentPart{{
				Type: "output_text",
				Text: completion(req.Model, req.Instructions, req.Input),
			}},
		}},
	})
}

func (m *mock) handleModels(w http.ResponseWriter, _ *http.Request) {
	type model struct {
		ID      string `json:"id"`
		Object  string `json:"object"`
		OwnedBy string `json:"owned_by"`
	}
	data := make([]model, 0, len(m.models))
	for _, id := range m.models {
		data = append(data, model{ID: strings.TrimSpace(id), Object: "model", OwnedBy: "mock"})
	}
	writeJSON(w, map[string]any{"object": "list", "data": data})
}

// simulate applies the requested delay and failure. It returns false when
// the response has been written.
func (m *mock) simulate(w http.ResponseWriter, r *http.Request, model string) bool {
	var delay time.Duration
	if v := r.Header.Get("X-Mock-Delay"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid X-Mock-Delay: "+err.Error())
			return false
		}
		delay = d
	}
	if strings.HasSuffix(model, "-slow") {
		delay = m.slowDelay
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return false
		}
	}

	status := 0
	if v := r.Header.Get("X-Mock-Fail"); v != "" {
		status, _ = strconv.Atoi(v)
	}
	if i := strings.LastIndex(model, "-fail-"); i >= 0 {
		status, _ = strconv.Atoi(model[i+len("-fail-"):])
	}
	if status >= 400 && status <= 599 {
		slog.Info("simulating failure", "model", model, "status", status)
		writeError(w, status, fmt.Sprintf("simulated failure (%d)", status))
		return false
	}
	return true
}

// completion returns the deterministic completion text for a prompt.
func completion(model, system, user string) string {
	switch {
	case strings.HasSuffix(model, "-garbage"):
		return "I am not sure how to answer that in a structured way."
	case strings.HasSuffix(model, "-dissent"):
		return `{"opinion":"contrarian","notes":["` + modelOrDefault(model) + `"]}`
	}

	var out map[string]any
	switch classifyStage(system, user) {
	case "reasoning":
		out = map[string]any{
			"summary":         "Proceed with a phased approach.",
			"recommendations": []string{"start with a pilot", "review after one quarter"},
			"risks":           []string{"limited historical data"},
			"confidence":      0.8,
		}
	case "data":
		out = map[string]any{
			"summary": "Input contains usable signals.",
			"signals": []string{"growth", "stability"},
			"metrics": map[string]any{"coverage": 0.75, "items": 3},
		}
	default:
		out = map[string]any{
			"summary":    "Relevant concepts identified.",
			"concepts":   []string{"baseline", "trend", "context"},
			"frameworks": []string{"general"},
		}
	}
	data, _ := json.Marshal(out)
	return string(data)
}

// classifyStage guesses the pipeline stage from the prompt wording.
func classifyStage(system, user string) string {
	text := strings.ToLower(system + "\n" + user)
	switch {
	case strings.Contains(text, "recommend") || strings.Contains(text, "reasoning"):
		return "reasoning"
	case strings.Contains(text, "extract") || strings.Contains(text, "data"):
		return "data"
	default:
		return "knowledge"
	}
}

func usage(prompt, completion string) chatUsage {
	p, c := len(strings.Fields(prompt)), len(strings.Fields(completion))
	return chatUsage{PromptTokens: p, CompletionTokens: c, TotalTokens: p + c}
}

func modelOrDefault(model string) string {
	if model == "" {
		return "mock-model"
	}
	return model
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "mock_error", "code": status},
	})
}
