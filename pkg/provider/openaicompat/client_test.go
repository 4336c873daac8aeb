package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/provider"
)

func chatServer(t *testing.T, handler func(w http.ResponseWriter, req ChatCompletionRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected path /v1/chat/completions, got %s", r.URL.Path)
		}
		var chatReq ChatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		handler(w, chatReq)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeChat(w http.ResponseWriter, content any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ChatCompletionResponse{
		ID:    "chatcmpl-test",
		Model: "test-model",
		Choices: []ChatChoice{{
			Message:      ChatMessage{Role: "assistant", Content: content},
			FinishReason: "stop",
		}},
		Usage: &ChatUsage{PromptTokens: 12, CompletionTokens: 9, TotalTokens: 21},
	})
}

func TestClientComplete(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, req ChatCompletionRequest) {
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Temperature == nil || *req.Temperature != 0.2 {
			t.Errorf("temperature not forwarded: %v", req.Temperature)
		}
		if req.MaxTokens == nil || *req.MaxTokens != 512 {
			t.Errorf("max_tokens not forwarded: %v", req.MaxTokens)
		}
		if req.N != 1 || req.Stream {
			t.Errorf("expected n=1 and stream=false, got n=%d stream=%v", req.N, req.Stream)
		}
		writeChat(w, `{"summary":"ok"}`)
	})

	c := NewClient(srv.URL+"/", "", 0)
	defer c.Close()

	resp, err := c.Complete(context.Background(), &provider.Request{
		Model:        "test-model",
		SystemPrompt: "You are an analyst.",
		UserPrompt:   "Analyze.",
		Temperature:  provider.Float64(0.2),
		MaxTokens:    provider.Int(512),
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != `{"summary":"ok"}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 9 {
		t.Errorf("Usage = %+v", resp.Usage)
	}
}

func TestClientCompleteOmitsEmptySystemPrompt(t *testing.T) {
	srv := chatServer(t, func(w http.ResponseWriter, req ChatCompletionRequest) {
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("expected a single user message, got %+v", req.Messages)
		}
		writeChat(w, "ok")
	})
	c := NewClient(srv.URL, "", 0)
	if _, err := c.Complete(context.Background(), &provider.Request{UserPrompt: "x"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func TestClientAuthAndModelMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req ChatCompletionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "openai/gpt-4o" {
			t.Errorf("model not mapped: %q", req.Model)
		}
		if req.ResponseFormat == nil {
			t.Error("expected response_format in JSON mode")
		}
		writeChat(w, "ok")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk-test", 0)
	c.JSONMode = true
	c.ModelMapper = func(m string) string { return "openai/" + m }
	if _, err := c.Complete(context.Background(), &provider.Request{Model: "gpt-4o", UserPrompt: "x"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
}

func TestClientCompleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    api.ProviderErrorKind
	}{
		{
			name: "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			want: api.ProviderRateLimited,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: api.ProviderUnavailable,
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("{not json"))
			},
			want: api.ProviderInvalidResponse,
		},
		{
			name: "empty choices",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(ChatCompletionResponse{Model: "m"})
			},
			want: api.ProviderInvalidResponse,
		},
		{
			name: "blank content",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeChat(w, "   ")
			},
			want: api.ProviderInvalidResponse,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, "", 0).Complete(context.Background(), &provider.Request{UserPrompt: "x"})
			var pe *api.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if pe.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", pe.Kind, tt.want)
			}
		})
	}
}

func TestClientCompleteTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(srv.URL, "", 0).Complete(ctx, &provider.Request{UserPrompt: "x"})
	var pe *api.ProviderError
	if !errors.As(err, &pe) || pe.Kind != api.ProviderTimeout {
		t.Fatalf("expected Timeout ProviderError, got %v", err)
	}
}

func TestClientConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, "", time.Second).Complete(context.Background(), &provider.Request{UserPrompt: "x"})
	var pe *api.ProviderError
	if !errors.As(err, &pe) || pe.Kind != api.ProviderUnavailable {
		t.Fatalf("expected Unavailable ProviderError, got %v", err)
	}
}

func TestClientListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/models" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(ChatModelsResponse{
			Object: "list",
			Data:   []ChatModel{{ID: "llama-3", Object: "model", OwnedBy: "meta"}},
		})
	}))
	defer srv.Close()

	models, err := NewClient(srv.URL, "", 0).ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].ID != "llama-3" {
		t.Errorf("models = %+v", models)
	}
}

func TestExtractContentString(t *testing.T) {
	parts := []any{
		map[string]any{"type": "text", "text": "hello "},
		map[string]any{"type": "image_url"},
		map[string]any{"type": "text", "text": "world"},
	}
	if got := ExtractContentString(parts); got != "hello world" {
		t.Errorf("got %q", got)
	}
	if got := ExtractContentString(nil); got != "" {
		t.Errorf("nil content = %q", got)
	}
}
