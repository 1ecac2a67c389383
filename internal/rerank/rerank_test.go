package rerank_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/domain"
	"citeground/internal/rerank"
	"citeground/internal/retrieval"
)

func scored(id, sourceID string, ordinal int, text string, hybrid float64) retrieval.Scored {
	return retrieval.Scored{
		Chunk:       domain.Chunk{ID: id, SourceID: sourceID, Ordinal: ordinal, Text: text},
		HybridScore: hybrid,
	}
}

func TestDefaultReranker_OrdersByTermOverlap(t *testing.T) {
	r := rerank.NewDefault(900)
	cands := []retrieval.Scored{
		scored("c1", "s1", 0, "bananas are yellow and sweet", 0.1),
		scored("c2", "s1", 1, "paris is the capital of france", 0.9),
	}

	out, err := r.Rerank(context.Background(), "what is the capital of france", cands)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c2", out[0].Chunk.ID)
	assert.Greater(t, out[0].RerankScore, out[1].RerankScore)
}

func TestDefaultReranker_Deterministic(t *testing.T) {
	r := rerank.NewDefault(900)
	cands := []retrieval.Scored{
		scored("c1", "s1", 0, "the bridge is open for traffic", 0.5),
		scored("c2", "s1", 1, "the bridge was closed for repairs", 0.5),
	}

	out1, err := r.Rerank(context.Background(), "is the bridge open", cands)
	require.NoError(t, err)
	out2, err := r.Rerank(context.Background(), "is the bridge open", cands)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
}

func TestDefaultReranker_EmptyQuestionYieldsZeroScores(t *testing.T) {
	r := rerank.NewDefault(900)
	cands := []retrieval.Scored{scored("c1", "s1", 0, "anything at all", 0.3)}

	out, err := r.Rerank(context.Background(), "", cands)
	require.NoError(t, err)
	assert.Equal(t, 0.0, out[0].RerankScore)
}

func TestNoop_CarriesHybridScoreForward(t *testing.T) {
	cands := []retrieval.Scored{scored("c1", "s1", 0, "text", 0.42)}
	out, err := rerank.Noop{}.Rerank(context.Background(), "q", cands)
	require.NoError(t, err)
	assert.Equal(t, 0.42, out[0].RerankScore)
}
