package fake_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/provider"
	"citeground/internal/provider/fake"
)

func TestEmbed_DeterministicAndUnitNorm(t *testing.T) {
	p := fake.New(16)
	v1, err := p.Embed(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	v2, err := p.Embed(context.Background(), []string{"hello world"})
	require.NoError(t, err)
	assert.Equal(t, v1, v2)

	var sumSq float64
	for _, f := range v1[0] {
		sumSq += float64(f) * float64(f)
	}
	assert.InDelta(t, 1.0, sumSq, 1e-6)
}

func TestEmbed_DifferentTextsDiffer(t *testing.T) {
	p := fake.New(16)
	v, err := p.Embed(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	assert.NotEqual(t, v[0], v[1])
}

func TestChat_SynthesizeAnswer_Deterministic(t *testing.T) {
	p := fake.New(8)
	prompt := "TASK: synthesize_answer\nQUESTION: what is the capital of france\n\n[CHUNK c1]\nParis is the capital of france.\n\n[CHUNK c2]\nBananas are yellow.\n"
	msgs := []provider.Message{{Role: "user", Content: prompt}}

	r1, err := p.Chat(context.Background(), msgs, provider.ChatOptions{})
	require.NoError(t, err)
	r2, err := p.Chat(context.Background(), msgs, provider.ChatOptions{})
	require.NoError(t, err)
	assert.Equal(t, r1.Text, r2.Text)
	assert.Contains(t, r1.Text, `"c1"`)
	assert.NotContains(t, r1.Text, `"c2"`)
}

func TestChat_SynthesizeAnswer_NoOverlapIsInsufficientEvidence(t *testing.T) {
	p := fake.New(8)
	prompt := "TASK: synthesize_answer\nQUESTION: zzz nonexistent term\n\n[CHUNK c1]\nParis is the capital of france.\n"
	msgs := []provider.Message{{Role: "user", Content: prompt}}

	r, err := p.Chat(context.Background(), msgs, provider.ChatOptions{})
	require.NoError(t, err)
	assert.Contains(t, r.Text, "insufficient evidence")
	assert.Contains(t, r.Text, `"citations":null`)
}

func TestChat_ExtractClaims_SplitsOnSentenceBoundaries(t *testing.T) {
	p := fake.New(8)
	prompt := "TASK: extract_claims\nANSWER_TEXT: Paris is the capital. It has a famous tower."
	msgs := []provider.Message{{Role: "user", Content: prompt}}

	r, err := p.Chat(context.Background(), msgs, provider.ChatOptions{})
	require.NoError(t, err)
	assert.Contains(t, r.Text, "Paris is the capital")
	assert.Contains(t, r.Text, "It has a famous tower")
}

func TestChat_ScoreClaim_DetectsNegationMismatchAsContradiction(t *testing.T) {
	p := fake.New(8)
	prompt := "TASK: score_claim\nCLAIM: the bridge is open\nEVIDENCE:\n\n[CHUNK c1]\nthe bridge is not open for traffic\n"
	msgs := []provider.Message{{Role: "user", Content: prompt}}

	r, err := p.Chat(context.Background(), msgs, provider.ChatOptions{})
	require.NoError(t, err)
	assert.Contains(t, r.Text, `"contradiction_score":1,`)
	assert.Contains(t, r.Text, `"relation":"contradicts"`)
}
