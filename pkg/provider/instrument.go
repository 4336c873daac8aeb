package provider

import (
	"context"
	"errors"
	"time"

	"github.com/rhuss/consensus/pkg/api"
	"github.com/rhuss/consensus/pkg/debug"
	"github.com/rhuss/consensus/pkg/observability"
)

// instrumented records per-call metrics under the configured provider key.
type instrumented struct {
	key  string
	next Provider
}

// Instrument wraps p so every Complete call is counted, timed and logged
// under key.
func Instrument(key string, p Provider) Provider {
	return &instrumented{key: key, next: p}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()
	debug.Log("providers", "request", "provider", i.key, "model", req.Model,
		"system_len", len(req.SystemPrompt), "user_len", len(req.UserPrompt))
	debug.Trace("providers", "request prompt", "provider", i.key, "user", req.UserPrompt)

	resp, err := i.next.Complete(ctx, req)
	elapsed := time.Since(start)
	if err == nil && resp == nil {
		pe := api.NewProviderError(api.ProviderInvalidResponse, "provider returned no response", nil)
		pe.Provider = i.key
		err = pe
	}

	model := req.Model
	if resp != nil && resp.Model != "" {
		model = resp.Model
	}
	observability.ProviderLatency.WithLabelValues(i.key, model).Observe(elapsed.Seconds())

	if err != nil {
		status := "error"
		var pe *api.ProviderError
		if errors.As(err, &pe) {
			status = string(pe.Kind)
		}
		observability.ProviderRequestsTotal.WithLabelValues(i.key, model, status).Inc()
		debug.Log("providers", "request failed", "provider", i.key, "status", status,
			"duration_ms", elapsed.Milliseconds(), "error", err.Error())
		return nil, err
	}

	observability.ProviderRequestsTotal.WithLabelValues(i.key, model, "ok").Inc()
	observability.ProviderTokensTotal.WithLabelValues(i.key, model, "input").Add(float64(resp.Usage.InputTokens))
	observability.ProviderTokensTotal.WithLabelValues(i.key, model, "output").Add(float64(resp.Usage.OutputTokens))
	debug.Log("providers", "response", "provider", i.key, "model", model,
		"duration_ms", elapsed.Milliseconds(), "text_len", len(resp.Text))
	debug.Trace("providers", "response text", "provider", i.key, "text", debug.Truncate(resp.Text, 2000))
	return resp, nil
}

func (i *instrumented) Close() error { return i.next.Close() }

func (i *instrumented) ListModels(ctx context.Context) ([]ModelInfo, error) {
	if l, ok := i.next.(ModelLister); ok {
		return l.ListModels(ctx)
	}
	return nil, nil
}
