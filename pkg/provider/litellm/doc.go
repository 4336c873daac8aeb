// Package litellm adapts a LiteLLM proxy to the provider interface.
//
// The proxy speaks the Chat Completions wire format, so the adapter is a
// thin layer over openaicompat.Client. What it adds is model mapping: a
// stage ensemble refers to models by short aliases ("gpt", "claude") and
// the mapping turns them into LiteLLM route names before the call.
package litellm
