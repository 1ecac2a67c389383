// Package retrieval implements hybrid vector + lexical candidate search
// over stored chunks, merged and blended into a single ranked list per
// spec §4.4.
package retrieval

import (
	"context"
	"sort"

	"citeground/internal/apperr"
	"citeground/internal/domain"
	"citeground/internal/provider"
)

// VectorSearcher runs a cosine-similarity search over chunk embeddings.
type VectorSearcher interface {
	SearchVector(ctx context.Context, query []float32, sourceIDs []string, limit int) ([]Candidate, error)
}

// LexicalSearcher runs a full-text search over chunk text.
type LexicalSearcher interface {
	SearchLexical(ctx context.Context, question string, sourceIDs []string, limit int) ([]Candidate, error)
}

// Candidate is a chunk scored by one retrieval path.
type Candidate struct {
	Chunk domain.Chunk
	Score float64
}

// Options configures a single retrieve call.
type Options struct {
	SourceIDs               []string
	Candidates              int
	HybridAlpha             float64
	PerSourceRetrievalLimit int
}

func (o Options) withDefaults() Options {
	if o.Candidates <= 0 {
		o.Candidates = 30
	}
	if o.HybridAlpha <= 0 {
		o.HybridAlpha = 0.5
	}
	return o
}

// Scored is a candidate carrying both blended and raw sub-scores, used by
// later stages (rerank, MMR) and for response diagnostics.
type Scored struct {
	Chunk      domain.Chunk
	VecScore   float64
	LexScore   float64
	HybridScore float64
}

type Retriever struct {
	embedder provider.Provider
	vector   VectorSearcher
	lexical  LexicalSearcher
}

func New(embedder provider.Provider, vector VectorSearcher, lexical LexicalSearcher) *Retriever {
	return &Retriever{embedder: embedder, vector: vector, lexical: lexical}
}

// Retrieve embeds the question, runs vector and lexical search in
// parallel, merges by chunk id with min-max normalized scores, and
// returns the blended ranking capped at opts.Candidates.
func (r *Retriever) Retrieve(ctx context.Context, question string, opts Options) ([]Scored, error) {
	opts = opts.withDefaults()

	vecs, err := r.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, apperr.Provider("embed question", err)
	}
	qVec := vecs[0]

	limit := opts.Candidates
	perSourceLimit := opts.PerSourceRetrievalLimit

	type result struct {
		vec []Candidate
		lex []Candidate
		err error
	}
	vecCh := make(chan result, 1)
	lexCh := make(chan result, 1)

	go func() {
		cands, err := r.searchVectorWithQuota(ctx, qVec, opts.SourceIDs, limit, perSourceLimit)
		vecCh <- result{vec: cands, err: err}
	}()
	go func() {
		cands, err := r.searchLexicalWithQuota(ctx, question, opts.SourceIDs, limit, perSourceLimit)
		lexCh <- result{lex: cands, err: err}
	}()

	vr := <-vecCh
	lr := <-lexCh
	if vr.err != nil {
		return nil, vr.err
	}
	if lr.err != nil {
		return nil, lr.err
	}

	return Merge(vr.vec, lr.lex, opts.HybridAlpha, limit), nil
}

func (r *Retriever) searchVectorWithQuota(ctx context.Context, qVec []float32, sourceIDs []string, limit, perSourceLimit int) ([]Candidate, error) {
	cands, err := r.vector.SearchVector(ctx, qVec, sourceIDs, limit)
	if err != nil {
		return nil, apperr.Store("vector search", err)
	}
	return ApplyPerSourceQuota(cands, perSourceLimit), nil
}

func (r *Retriever) searchLexicalWithQuota(ctx context.Context, question string, sourceIDs []string, limit, perSourceLimit int) ([]Candidate, error) {
	cands, err := r.lexical.SearchLexical(ctx, question, sourceIDs, limit)
	if err != nil {
		return nil, apperr.Store("lexical search", err)
	}
	return ApplyPerSourceQuota(cands, perSourceLimit), nil
}

func ApplyPerSourceQuota(cands []Candidate, perSourceLimit int) []Candidate {
	if perSourceLimit <= 0 {
		return cands
	}
	counts := map[string]int{}
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		if counts[c.Chunk.SourceID] >= perSourceLimit {
			continue
		}
		counts[c.Chunk.SourceID]++
		out = append(out, c)
	}
	return out
}

func Merge(vec, lex []Candidate, alpha float64, limit int) []Scored {
	vecNorm := MinMaxNormalize(vec)
	lexNorm := MinMaxNormalize(lex)

	byID := map[string]*Scored{}
	order := []string{}

	for _, c := range vec {
		s := &Scored{Chunk: c.Chunk, VecScore: vecNorm[c.Chunk.ID]}
		byID[c.Chunk.ID] = s
		order = append(order, c.Chunk.ID)
	}
	for _, c := range lex {
		if s, ok := byID[c.Chunk.ID]; ok {
			s.LexScore = lexNorm[c.Chunk.ID]
		} else {
			s := &Scored{Chunk: c.Chunk, LexScore: lexNorm[c.Chunk.ID]}
			byID[c.Chunk.ID] = s
			order = append(order, c.Chunk.ID)
		}
	}

	out := make([]Scored, 0, len(order))
	for _, id := range order {
		s := byID[id]
		s.HybridScore = alpha*s.VecScore + (1-alpha)*s.LexScore
		out = append(out, *s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HybridScore != out[j].HybridScore {
			return out[i].HybridScore > out[j].HybridScore
		}
		if out[i].VecScore != out[j].VecScore {
			return out[i].VecScore > out[j].VecScore
		}
		if out[i].Chunk.SourceID != out[j].Chunk.SourceID {
			return out[i].Chunk.SourceID < out[j].Chunk.SourceID
		}
		return out[i].Chunk.Ordinal < out[j].Chunk.Ordinal
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MinMaxNormalize scales scores within a single result list to [0,1]. A
// list with a single candidate, or with all-equal scores, normalizes to 1
// for every member rather than dividing by zero.
func MinMaxNormalize(cands []Candidate) map[string]float64 {
	out := map[string]float64{}
	if len(cands) == 0 {
		return out
	}
	min, max := cands[0].Score, cands[0].Score
	for _, c := range cands {
		if c.Score < min {
			min = c.Score
		}
		if c.Score > max {
			max = c.Score
		}
	}
	span := max - min
	for _, c := range cands {
		if span == 0 {
			out[c.Chunk.ID] = 1
		} else {
			out[c.Chunk.ID] = (c.Score - min) / span
		}
	}
	return out
}
