// Package debugapi exposes a DEBUG-gated introspection endpoint that
// returns raw retrieval candidates before rerank/MMR, so an eval harness
// can inspect what the retriever actually surfaced for a question.
package debugapi

import (
	"net/http"

	"citeground/internal/httpx"
	"citeground/internal/retrieval"
)

type Handler struct {
	retriever *retrieval.Retriever
}

func NewHandler(retriever *retrieval.Retriever) *Handler {
	return &Handler{retriever: retriever}
}

type candidatesRequest struct {
	Question  string   `json:"question"`
	SourceIDs []string `json:"source_ids"`
}

type candidateResponse struct {
	ChunkID     string  `json:"chunk_id"`
	SourceID    string  `json:"source_id"`
	VecScore    float64 `json:"vec_score"`
	LexScore    float64 `json:"lex_score"`
	HybridScore float64 `json:"hybrid_score"`
}

// Candidates handles POST /debug/candidates: raw, pre-rerank retrieval
// output for the given question, unauthenticated and only ever mounted
// when DEBUG is set.
func (h *Handler) Candidates(w http.ResponseWriter, r *http.Request) {
	var req candidatesRequest
	if err := httpx.DecodeJSON(w, r, 1<<20, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	scored, err := h.retriever.Retrieve(r.Context(), req.Question, retrieval.Options{SourceIDs: req.SourceIDs})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	out := make([]candidateResponse, len(scored))
	for i, s := range scored {
		out[i] = candidateResponse{
			ChunkID:     s.Chunk.ID,
			SourceID:    s.Chunk.SourceID,
			VecScore:    s.VecScore,
			LexScore:    s.LexScore,
			HybridScore: s.HybridScore,
		}
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"candidates": out})
}
