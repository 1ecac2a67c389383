// Package diversify implements Maximal Marginal Relevance selection over
// reranked candidates, trading off relevance against redundancy so the
// final chunk set sent to synthesis isn't several near-duplicate passages
// from the same source.
package diversify

import (
	"math"

	"citeground/internal/rerank"
)

// Options configures one MMR selection pass.
type Options struct {
	Lambda   float64
	MaxItems int
}

func (o Options) withDefaults() Options {
	if o.Lambda <= 0 {
		o.Lambda = 0.7
	}
	if o.MaxItems <= 0 {
		o.MaxItems = 8
	}
	return o
}

// Select runs MMR over cands, already ordered by rerank score, and returns
// up to opts.MaxItems in selection order (the order they were chosen, not
// their original rank). Score for each remaining candidate is
// lambda*relevance(c) - (1-lambda)*max_sim(c, selected), where relevance
// is the candidate's rerank score and similarity is cosine similarity
// between chunk embeddings. Ties are broken by the candidate's original
// position in cands.
func Select(cands []rerank.Ranked, opts Options) []rerank.Ranked {
	opts = opts.withDefaults()
	if len(cands) == 0 {
		return nil
	}

	remaining := make([]int, len(cands))
	for i := range remaining {
		remaining[i] = i
	}

	var selected []rerank.Ranked
	var selectedIdx []int

	for len(remaining) > 0 && len(selected) < opts.MaxItems {
		bestPos, bestScore := -1, math.Inf(-1)
		for pos, idx := range remaining {
			relevance := cands[idx].RerankScore
			maxSim := 0.0
			for _, sIdx := range selectedIdx {
				sim := cosineSimilarity(cands[idx].Chunk.Embedding, cands[sIdx].Chunk.Embedding)
				if sim > maxSim {
					maxSim = sim
				}
			}
			score := opts.Lambda*relevance - (1-opts.Lambda)*maxSim
			if score > bestScore {
				bestScore = score
				bestPos = pos
			}
		}

		idx := remaining[bestPos]
		selected = append(selected, cands[idx])
		selectedIdx = append(selectedIdx, idx)
		remaining = append(remaining[:bestPos], remaining[bestPos+1:]...)
	}

	return selected
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
