package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"citeground/internal/apperr"
	"citeground/internal/retrieval"
)

// HTTPProvider reranks via an external API (jina, cohere) selected by
// RERANK_PROVIDER. It exists as a documented extension point; the default
// pipeline stays on DefaultReranker so the fake-provider determinism
// contract never depends on network availability.
type HTTPProvider struct {
	provider string
	apiKey   string
	client   *http.Client
	baseURL  string
}

func NewHTTPProvider(provider, apiKey string) *HTTPProvider {
	return &HTTPProvider{
		provider: provider,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SetBaseURL overrides the provider's API endpoint, for tests.
func (p *HTTPProvider) SetBaseURL(url string) {
	p.baseURL = url
}

func (p *HTTPProvider) Rerank(ctx context.Context, question string, cands []retrieval.Scored) ([]Ranked, error) {
	docs := make([]string, len(cands))
	for i, c := range cands {
		docs[i] = c.Chunk.Text
	}

	var indices []int
	var err error
	switch p.provider {
	case "jina":
		indices, err = p.rerankJina(ctx, question, docs)
	case "cohere":
		indices, err = p.rerankCohere(ctx, question, docs)
	default:
		indices = identity(len(docs))
	}
	if err != nil {
		return nil, apperr.Provider("http rerank", err)
	}

	n := len(indices)
	out := make([]Ranked, 0, n)
	for rank, idx := range indices {
		if idx < 0 || idx >= len(cands) {
			continue
		}
		out = append(out, Ranked{Scored: cands[idx], RerankScore: 1 - float64(rank)/float64(n)})
	}
	return out, nil
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (p *HTTPProvider) rerankJina(ctx context.Context, query string, docs []string) ([]int, error) {
	url := "https://api.jina.ai/v1/rerank"
	if p.baseURL != "" {
		url = p.baseURL
	}
	return p.callRerankAPI(ctx, url, map[string]any{
		"model":     "jina-reranker-v1-base-en",
		"query":     query,
		"documents": docs,
	})
}

func (p *HTTPProvider) rerankCohere(ctx context.Context, query string, docs []string) ([]int, error) {
	url := "https://api.cohere.ai/v1/rerank"
	if p.baseURL != "" {
		url = p.baseURL
	}
	return p.callRerankAPI(ctx, url, map[string]any{
		"model":            "rerank-english-v3.0",
		"query":            query,
		"documents":        docs,
		"top_n":            len(docs),
		"return_documents": false,
	})
}

func (p *HTTPProvider) callRerankAPI(ctx context.Context, url string, body map[string]any) ([]int, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank api error: %d", resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	indices := make([]int, 0, len(result.Results))
	for _, r := range result.Results {
		indices = append(indices, r.Index)
	}
	return indices, nil
}
