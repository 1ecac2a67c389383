package answer

import (
	"errors"
	"net/http"

	"citeground/internal/domain"
	"citeground/internal/httpx"
)

const maxQueryJSONBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type queryRequest struct {
	Question  string   `json:"question"`
	SourceIDs []string `json:"source_ids"`
}

type queryResponse struct {
	AnswerID            string                      `json:"answer_id"`
	QueryID             string                      `json:"query_id"`
	AnswerText          string                      `json:"answer_text"`
	Citations           []domain.Citation           `json:"citations"`
	CitationGroups      []domain.CitationGroup      `json:"citation_groups,omitempty"`
	Claims              []domain.Claim              `json:"claims,omitempty"`
	VerificationSummary *domain.VerificationSummary `json:"verification_summary,omitempty"`
	AnswerStyle         domain.AnswerStyle          `json:"answer_style"`
}

func toResponse(a *domain.Answer) queryResponse {
	citations := a.Citations
	if citations == nil {
		citations = []domain.Citation{}
	}
	return queryResponse{
		AnswerID:            a.ID,
		QueryID:             a.QueryID,
		AnswerText:          a.AnswerText,
		Citations:           citations,
		CitationGroups:      a.CitationGroups,
		Claims:              a.Claims,
		VerificationSummary: a.VerificationSummary,
		AnswerStyle:         a.AnswerStyle,
	}
}

// Query handles POST /query.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, false, false)
}

// QueryVerified handles POST /query/verified.
func (h *Handler) QueryVerified(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, true, false)
}

// QueryVerifiedHighlights handles POST /query/verified/highlights.
func (h *Handler) QueryVerifiedHighlights(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, true, true)
}

func (h *Handler) ask(w http.ResponseWriter, r *http.Request, verified, highlights bool) {
	var req queryRequest
	if err := httpx.DecodeJSON(w, r, maxQueryJSONBytes, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	a, _, err := h.service.Ask(r.Context(), req.Question, req.SourceIDs, verified, highlights, r.Header.Get("Idempotency-Key"))
	if err != nil {
		if errors.Is(err, ErrNoReadySources) {
			httpx.WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": err.Error()})
			return
		}
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(a))
}

// Get handles GET /answers/{id}, GET /answers/{id}/grouped, and
// GET /answers/{id}/highlights: citation groups and evidence highlights
// are already part of the persisted answer, so all three routes return
// the same hydrated representation.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toResponse(a))
}
