// Package provider defines the uniform LLM/embedder interface every stage
// above it (retrieval, synthesis, verification) depends on, so a
// deterministic fake and a real network-backed client are interchangeable.
package provider

import "context"

// Message is one turn in a chat call.
type Message struct {
	Role    string
	Content string
}

// ChatOptions bounds a chat call's output.
type ChatOptions struct {
	Temperature float64
	MaxTokens   int
}

// Usage reports token accounting for a chat call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// ChatResult is a chat call's output.
type ChatResult struct {
	Text  string
	Usage Usage
}

// Provider is the embedder + chat LLM seam. Real implementations surface
// failures as apperr.ProviderError; the fake implementation is pure and
// network-free so pipeline stages above it stay deterministic under test.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (ChatResult, error)
	Dim() int
}
