// Package rerank reorders retrieval candidates by a cheap relevance
// estimate before MMR diversification. The default path is a pure,
// network-free scorer so the fake-provider determinism contract holds
// end to end; an HTTP-backed provider is available behind RERANK_PROVIDER
// for deployments that want a real cross-encoder.
package rerank

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"citeground/internal/retrieval"
)

// Ranked is a retrieval candidate carrying its rerank score alongside the
// hybrid score it arrived with.
type Ranked struct {
	retrieval.Scored
	RerankScore float64
}

// Reranker reorders candidates for a question. Implementations must not
// mutate the input slice.
type Reranker interface {
	Rerank(ctx context.Context, question string, cands []retrieval.Scored) ([]Ranked, error)
}

// DefaultReranker scores each candidate from normalized term-frequency
// overlap, ordered phrase matches, and an inverse length penalty over a
// truncated snippet of the chunk text.
type DefaultReranker struct {
	SnippetChars int
}

// NewDefault builds a DefaultReranker, defaulting SnippetChars to 900 when
// not set (matches RERANK_SNIPPET_CHARS's default).
func NewDefault(snippetChars int) *DefaultReranker {
	if snippetChars <= 0 {
		snippetChars = 900
	}
	return &DefaultReranker{SnippetChars: snippetChars}
}

func (d *DefaultReranker) Rerank(ctx context.Context, question string, cands []retrieval.Scored) ([]Ranked, error) {
	qTokens := tokenize(question)
	out := make([]Ranked, len(cands))
	for i, c := range cands {
		snippet := truncate(c.Chunk.Text, d.SnippetChars)
		out[i] = Ranked{Scored: c, RerankScore: scoreSnippet(qTokens, snippet)}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RerankScore != out[j].RerankScore {
			return out[i].RerankScore > out[j].RerankScore
		}
		if out[i].HybridScore != out[j].HybridScore {
			return out[i].HybridScore > out[j].HybridScore
		}
		if out[i].Chunk.SourceID != out[j].Chunk.SourceID {
			return out[i].Chunk.SourceID < out[j].Chunk.SourceID
		}
		return out[i].Chunk.Ordinal < out[j].Chunk.Ordinal
	})
	return out, nil
}

// Noop passes candidates through unchanged, carrying the hybrid score over
// as the rerank score. Selected when RERANK_ENABLED=false.
type Noop struct{}

func (Noop) Rerank(ctx context.Context, question string, cands []retrieval.Scored) ([]Ranked, error) {
	out := make([]Ranked, len(cands))
	for i, c := range cands {
		out[i] = Ranked{Scored: c, RerankScore: c.HybridScore}
	}
	return out, nil
}

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

func tokenize(s string) []string {
	return tokenRe.FindAllString(strings.ToLower(s), -1)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func scoreSnippet(qTokens []string, snippet string) float64 {
	if len(qTokens) == 0 {
		return 0
	}
	sTokens := tokenize(snippet)
	counts := map[string]int{}
	for _, t := range sTokens {
		counts[t]++
	}

	overlap := 0
	for _, qt := range qTokens {
		if counts[qt] > 0 {
			overlap++
		}
	}
	tfOverlap := float64(overlap) / float64(len(qTokens))

	phrase := orderedPhraseScore(qTokens, sTokens)

	lengthPenalty := 1.0 / (1.0 + math.Log1p(float64(len(sTokens))))

	return tfOverlap*0.6 + phrase*0.3 + lengthPenalty*0.1
}

// orderedPhraseScore rewards question tokens found in the snippet in the
// same relative order they appear in the question, not just as a bag of
// words, so "paris capital" outranks a snippet that only mentions both
// words far apart and reversed.
func orderedPhraseScore(qTokens, sTokens []string) float64 {
	if len(qTokens) == 0 {
		return 0
	}
	pos := map[string][]int{}
	for i, t := range sTokens {
		pos[t] = append(pos[t], i)
	}

	last := -1
	matched := 0
	for _, qt := range qTokens {
		idxs, ok := pos[qt]
		if !ok {
			continue
		}
		for _, idx := range idxs {
			if idx > last {
				last = idx
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(qTokens))
}
