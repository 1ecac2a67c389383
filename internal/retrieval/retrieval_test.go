package retrieval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/domain"
	"citeground/internal/provider/fake"
	"citeground/internal/retrieval"
)

type fakeVectorSearcher struct {
	cands []retrieval.Candidate
}

func (f fakeVectorSearcher) SearchVector(ctx context.Context, query []float32, sourceIDs []string, limit int) ([]retrieval.Candidate, error) {
	return f.cands, nil
}

type fakeLexicalSearcher struct {
	cands []retrieval.Candidate
}

func (f fakeLexicalSearcher) SearchLexical(ctx context.Context, question string, sourceIDs []string, limit int) ([]retrieval.Candidate, error) {
	return f.cands, nil
}

func chunk(id, sourceID string, ordinal int) domain.Chunk {
	return domain.Chunk{ID: id, SourceID: sourceID, Ordinal: ordinal}
}

func TestMinMaxNormalize_SingleCandidateNormalizesToOne(t *testing.T) {
	cands := []retrieval.Candidate{{Chunk: chunk("c1", "s1", 0), Score: 0.42}}
	norm := retrieval.MinMaxNormalize(cands)
	assert.InDelta(t, 1.0, norm["c1"], 1e-9)
}

func TestMinMaxNormalize_EqualScoresNormalizeToOne(t *testing.T) {
	cands := []retrieval.Candidate{
		{Chunk: chunk("c1", "s1", 0), Score: 0.5},
		{Chunk: chunk("c2", "s1", 1), Score: 0.5},
	}
	norm := retrieval.MinMaxNormalize(cands)
	assert.InDelta(t, 1.0, norm["c1"], 1e-9)
	assert.InDelta(t, 1.0, norm["c2"], 1e-9)
}

func TestMinMaxNormalize_ScalesToZeroOneRange(t *testing.T) {
	cands := []retrieval.Candidate{
		{Chunk: chunk("c1", "s1", 0), Score: 0.0},
		{Chunk: chunk("c2", "s1", 1), Score: 5.0},
		{Chunk: chunk("c3", "s1", 2), Score: 2.5},
	}
	norm := retrieval.MinMaxNormalize(cands)
	assert.InDelta(t, 0.0, norm["c1"], 1e-9)
	assert.InDelta(t, 1.0, norm["c2"], 1e-9)
	assert.InDelta(t, 0.5, norm["c3"], 1e-9)
}

func TestMerge_BlendsByAlphaAndUnionsCandidateSets(t *testing.T) {
	vec := []retrieval.Candidate{
		{Chunk: chunk("c1", "s1", 0), Score: 1.0},
		{Chunk: chunk("c2", "s1", 1), Score: 0.0},
	}
	lex := []retrieval.Candidate{
		{Chunk: chunk("c2", "s1", 1), Score: 1.0},
		{Chunk: chunk("c3", "s1", 2), Score: 0.0},
	}
	out := retrieval.Merge(vec, lex, 0.5, 10)
	require.Len(t, out, 3)

	byID := map[string]retrieval.Scored{}
	for _, s := range out {
		byID[s.Chunk.ID] = s
	}
	assert.InDelta(t, 0.5, byID["c1"].HybridScore, 1e-9)
	assert.InDelta(t, 0.5, byID["c2"].HybridScore, 1e-9)
	assert.InDelta(t, 0.0, byID["c3"].HybridScore, 1e-9)
}

func TestMerge_TieBreaksByVectorScoreThenSourceThenOrdinal(t *testing.T) {
	vec := []retrieval.Candidate{
		{Chunk: chunk("a", "src-b", 1), Score: 0.5},
		{Chunk: chunk("b", "src-a", 0), Score: 0.5},
		{Chunk: chunk("c", "src-a", 1), Score: 0.9},
	}
	out := retrieval.Merge(vec, nil, 1.0, 10)
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].Chunk.ID)
	assert.Equal(t, "b", out[1].Chunk.ID)
	assert.Equal(t, "a", out[2].Chunk.ID)
}

func TestMerge_CapsAtLimit(t *testing.T) {
	vec := []retrieval.Candidate{
		{Chunk: chunk("a", "s1", 0), Score: 0.9},
		{Chunk: chunk("b", "s1", 1), Score: 0.5},
		{Chunk: chunk("c", "s1", 2), Score: 0.1},
	}
	out := retrieval.Merge(vec, nil, 1.0, 2)
	assert.Len(t, out, 2)
}

func TestApplyPerSourceQuota_LimitsCandidatesPerSource(t *testing.T) {
	cands := []retrieval.Candidate{
		{Chunk: chunk("a", "s1", 0), Score: 0.9},
		{Chunk: chunk("b", "s1", 1), Score: 0.8},
		{Chunk: chunk("c", "s1", 2), Score: 0.7},
		{Chunk: chunk("d", "s2", 0), Score: 0.6},
	}
	out := retrieval.ApplyPerSourceQuota(cands, 2)
	require.Len(t, out, 3)
	assert.Equal(t, "a", out[0].Chunk.ID)
	assert.Equal(t, "b", out[1].Chunk.ID)
	assert.Equal(t, "d", out[2].Chunk.ID)
}

func TestApplyPerSourceQuota_ZeroLimitIsNoop(t *testing.T) {
	cands := []retrieval.Candidate{
		{Chunk: chunk("a", "s1", 0), Score: 0.9},
		{Chunk: chunk("b", "s1", 1), Score: 0.8},
	}
	out := retrieval.ApplyPerSourceQuota(cands, 0)
	assert.Len(t, out, 2)
}

func TestRetrieve_MergesVectorAndLexicalPaths(t *testing.T) {
	vec := fakeVectorSearcher{cands: []retrieval.Candidate{
		{Chunk: chunk("c1", "s1", 0), Score: 0.9},
	}}
	lex := fakeLexicalSearcher{cands: []retrieval.Candidate{
		{Chunk: chunk("c2", "s1", 1), Score: 0.4},
	}}
	r := retrieval.New(fake.New(8), vec, lex)

	out, err := r.Retrieve(context.Background(), "what is the capital", retrieval.Options{})
	require.NoError(t, err)
	require.Len(t, out, 2)
}
