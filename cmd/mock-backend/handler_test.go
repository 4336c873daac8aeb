package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/provider"
	"github.com/rhuss/consensus/pkg/provider/responses"
	"github.com/rhuss/consensus/pkg/provider/vllm"
)

func newMock(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(newHandler([]string{"mock-a", "mock-b"}, 50*time.Millisecond))
	t.Cleanup(srv.Close)
	return srv
}

func complete(t *testing.T, p provider.Provider, model, system, user string) (*provider.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return p.Complete(ctx, &provider.Request{Model: model, SystemPrompt: system, UserPrompt: user})
}

func TestChatCompletionsStages(t *testing.T) {
	srv := newMock(t)
	p, err := vllm.New(vllm.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	tests := []struct {
		name    string
		system  string
		user    string
		wantKey string
	}{
		{"knowledge", "You are an expert.", "Describe the market.", "concepts"},
		{"data", "Extract signals.", "Text: revenue grew", "signals"},
		{"reasoning", "Recommend next steps.", "Knowledge: {} Data: {}", "recommendations"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := complete(t, p, "mock-a", tt.system, tt.user)
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			var out map[string]any
			if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
				t.Fatalf("completion is not JSON: %q", resp.Text)
			}
			if _, ok := out[tt.wantKey]; !ok {
				t.Errorf("completion %q lacks %q", resp.Text, tt.wantKey)
			}
		})
	}
}

func TestResponsesEndpoint(t *testing.T) {
	srv := newMock(t)
	p, err := responses.New(responses.Config{BaseURL: srv.URL, Probe: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer p.Close()

	resp, err := complete(t, p, "mock-a", "Recommend.", "Plan")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !json.Valid([]byte(resp.Text)) {
		t.Errorf("completion is not JSON: %q", resp.Text)
	}
}

func TestSimulatedFailures(t *testing.T) {
	srv := newMock(t)
	p, err := vllm.New(vllm.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	tests := []struct {
		model string
		want  api.ProviderErrorKind
	}{
		{"mock-a-fail-429", api.ProviderRateLimited},
		{"mock-a-fail-500", api.ProviderUnavailable},
		{"mock-a-fail-401", api.ProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			_, err := complete(t, p, tt.model, "", "hello")
			var pe *api.ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ProviderError, got %v", err)
			}
			if pe.Kind != tt.want {
				t.Errorf("kind = %q, want %q", pe.Kind, tt.want)
			}
		})
	}
}

func TestFailHeader(t *testing.T) {
	srv := newMock(t)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/chat/completions",
		jsonBody(t, map[string]any{"model": "mock-a", "messages": []any{}}))
	req.Header.Set("X-Mock-Fail", "503")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestSlowModelHonoursDeadline(t *testing.T) {
	srv := httptest.NewServer(newHandler([]string{"mock-a"}, 5*time.Second))
	defer srv.Close()
	p, err := vllm.New(vllm.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = p.Complete(ctx, &provider.Request{Model: "mock-a-slow", UserPrompt: "hello"})

	var pe *api.ProviderError
	if !errors.As(err, &pe) || pe.Kind != api.ProviderTimeout {
		t.Errorf("expected timeout, got %v", err)
	}
}

func TestGarbageAndDissent(t *testing.T) {
	if json.Valid([]byte(completion("m-garbage", "", ""))) {
		t.Error("garbage completion must not be JSON")
	}
	a := completion("m1", "Recommend.", "")
	b := completion("m2", "Recommend.", "")
	if a != b {
		t.Error("completions of different models must agree")
	}
	if completion("m3-dissent", "Recommend.", "") == a {
		t.Error("dissenting completion must differ")
	}
}

func TestModels(t *testing.T) {
	srv := newMock(t)
	p, err := vllm.New(vllm.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close()

	models, err := p.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[0].ID != "mock-a" {
		t.Errorf("models = %+v", models)
	}
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return bytes.NewReader(data)
}
