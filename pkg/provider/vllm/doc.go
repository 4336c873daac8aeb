// Package vllm implements the Provider interface for vLLM and any
// OpenAI-compatible Chat Completions backend. HTTP communication and
// error mapping are delegated to the shared openaicompat.Client.
package vllm
