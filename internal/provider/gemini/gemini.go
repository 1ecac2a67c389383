// Package gemini adapts the Gemini API to provider.Provider: embedding
// via gemini-embedding-001 and chat via gemini-1.5-flash. Selected when
// AI_PROVIDER=gemini; the fake package stands in for it under
// AI_PROVIDER=fake (tests, offline development).
package gemini

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"citeground/internal/apperr"
	"citeground/internal/provider"
)

const (
	embedModel = "gemini-embedding-001"
	chatModel  = "gemini-1.5-flash"
)

// Provider wraps a genai.Client, exposing it through the embed/chat seam
// the rest of the pipeline depends on.
type Provider struct {
	client *genai.Client
	dim    int
}

// New dials the Gemini API with apiKey. dim is the embedding dimension the
// rest of the system was configured with (EMBED_DIM); Gemini's embedding
// model returns that many components per call.
func New(ctx context.Context, apiKey string, dim int) (*Provider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &Provider{client: client, dim: dim}, nil
}

func (p *Provider) Dim() int { return p.dim }

// Embed embeds each text independently; Gemini's batch embedding API
// accepts one request per call under the SDK version this module vendors.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := p.client.EmbeddingModel(embedModel)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		res, err := em.EmbedContent(ctx, genai.Text(t))
		if err != nil {
			return nil, apperr.Provider("gemini embed", err)
		}
		if res.Embedding == nil {
			return nil, apperr.Provider("gemini embed", fmt.Errorf("empty embedding for input %d", i))
		}
		out[i] = res.Embedding.Values
	}
	return out, nil
}

func (p *Provider) Chat(ctx context.Context, messages []provider.Message, opts provider.ChatOptions) (provider.ChatResult, error) {
	model := p.client.GenerativeModel(chatModel)
	model.SetTemperature(float32(opts.Temperature))
	if opts.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(opts.MaxTokens))
	}

	session := model.StartChat()
	for _, m := range messages[:len(messages)-1] {
		session.History = append(session.History, &genai.Content{
			Role:  m.Role,
			Parts: []genai.Part{genai.Text(m.Content)},
		})
	}

	last := messages[len(messages)-1]
	resp, err := session.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return provider.ChatResult{}, apperr.Provider("gemini chat", err)
	}

	text := extractText(resp)
	usage := provider.Usage{}
	if resp.UsageMetadata != nil {
		usage.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return provider.ChatResult{Text: text, Usage: usage}, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out += string(t)
		}
	}
	return out
}

// Close releases the underlying gRPC connection.
func (p *Provider) Close() error {
	return p.client.Close()
}
