// Package answer implements the query-to-answer pipeline exposed over
// HTTP: retrieve candidate chunks, rerank and diversify them, synthesize
// a grounded answer, and, in verified mode, decompose and score claims
// before persisting the result. This is the orchestration layer that
// wires internal/retrieval, internal/rerank, internal/diversify,
// internal/synth, internal/verify and internal/rewrite together, the way
// the teacher's features/*/service.go files sit above internal/*.
package answer

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"citeground/internal/apperr"
	"citeground/internal/diversify"
	"citeground/internal/domain"
	"citeground/internal/rerank"
	"citeground/internal/retrieval"
	"citeground/internal/rewrite"
	"citeground/internal/synth"
	"citeground/internal/verify"
)

// ErrNoReadySources is returned by Ask when none of the requested source
// ids resolved to a READY source; the handler maps this to 422.
var ErrNoReadySources = errors.New("no ready sources")

// SourceRepo is the subset of store.SourceRepo needed to check readiness.
type SourceRepo interface {
	Get(ctx context.Context, id string) (*domain.Source, error)
}

// QueryRepo is the subset of store.QueryRepo needed to record a query.
type QueryRepo interface {
	Create(ctx context.Context, q *domain.Query) error
}

// AnswerRepo is the subset of store.AnswerRepo needed to persist and read
// back answers.
type AnswerRepo interface {
	CreateIdempotent(ctx context.Context, a *domain.Answer) (*domain.Answer, bool, error)
	FindIdempotent(ctx context.Context, key, mode string) (*domain.Answer, error)
	Get(ctx context.Context, id string) (*domain.Answer, error)
}

// Options configures the retrieval/rerank/diversify/synth knobs a Service
// runs with, sourced from config.Config.
type Options struct {
	RerankEnabled           bool
	RetrievalCandidates     int
	HybridAlpha             float64
	PerSourceRetrievalLimit int
	MMREnabled              bool
	MMRLambda               float64
	MaxChunksPerQuery       int
	SynthSnippetChars       int
	Debug                   bool
}

// Service runs the full query pipeline and persists its result.
type Service struct {
	sources   SourceRepo
	queries   QueryRepo
	answers   AnswerRepo
	retriever *retrieval.Retriever
	reranker  rerank.Reranker
	synth     *synth.Synthesizer
	verifier  *verify.Verifier
	opts      Options
}

func New(sources SourceRepo, queries QueryRepo, answers AnswerRepo,
	retriever *retrieval.Retriever, reranker rerank.Reranker,
	synthesizer *synth.Synthesizer, verifier *verify.Verifier, opts Options) *Service {
	return &Service{
		sources: sources, queries: queries, answers: answers,
		retriever: retriever, reranker: reranker, synth: synthesizer, verifier: verifier,
		opts: opts,
	}
}

// ModeName names the wire query mode for idempotency-key scoping, so
// replaying the same key under a different mode never returns a stale
// answer.
func ModeName(opts domain.QueryOptions) string {
	switch {
	case opts.Verified && opts.Highlights:
		return "verified_highlights"
	case opts.Verified:
		return "verified"
	default:
		return "query"
	}
}

// Ask runs the pipeline for question over sourceIDs and persists the
// resulting answer. replayed is true when idempotencyKey matched a prior
// answer: either before the pipeline ran, or at insert time when a
// concurrent duplicate stored its answer first, in which case that prior
// answer is returned and this run's result is discarded.
func (s *Service) Ask(ctx context.Context, question string, sourceIDs []string, verified, highlights bool, idempotencyKey string) (a *domain.Answer, replayed bool, err error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, false, apperr.Validation("question is required")
	}
	if len(sourceIDs) == 0 {
		return nil, false, apperr.Validation("source_ids must be non-empty")
	}

	opts := domain.QueryOptions{Rerank: s.opts.RerankEnabled, Verified: verified, Highlights: highlights}
	modeStr := ModeName(opts)

	if idempotencyKey != "" {
		prior, err := s.answers.FindIdempotent(ctx, idempotencyKey, modeStr)
		if err != nil {
			return nil, false, err
		}
		if prior != nil {
			return prior, true, nil
		}
	}

	readyIDs, err := s.readySourceIDs(ctx, sourceIDs)
	if err != nil {
		return nil, false, err
	}
	if len(readyIDs) == 0 {
		return nil, false, ErrNoReadySources
	}

	chunks, err := s.selectChunks(ctx, question, readyIDs)
	if err != nil {
		return nil, false, err
	}

	res, err := s.synth.Synthesize(ctx, question, chunks, synth.Options{
		Debug:        s.opts.Debug,
		SnippetChars: s.opts.SynthSnippetChars,
	})
	if err != nil {
		return nil, false, err
	}

	ans := &domain.Answer{
		AnswerText:     res.AnswerText,
		Citations:      res.Citations,
		CitationGroups: res.CitationGroups,
		AnswerStyle:    res.AnswerStyle,
	}

	if verified {
		if err := s.applyVerification(ctx, ans, chunks, highlights); err != nil {
			return nil, false, err
		}
	}

	q := &domain.Query{ID: uuid.NewString(), Question: question, SourceIDs: sourceIDs, Options: opts}
	if err := s.queries.Create(ctx, q); err != nil {
		return nil, false, err
	}

	ans.ID = uuid.NewString()
	ans.QueryID = q.ID
	ans.RawCitations.IDs = res.RawIDs
	ans.RawCitations.QueryMode = modeStr
	ans.RawCitations.IdempotencyKey = idempotencyKey

	stored, replayedNow, err := s.answers.CreateIdempotent(ctx, ans)
	if err != nil {
		return nil, false, err
	}
	return stored, replayedNow, nil
}

// Get fetches a persisted answer by id. citation_groups and highlighted
// evidence are already part of the stored payload, so the grouped and
// highlights endpoints are thin views over the same Get result.
func (s *Service) Get(ctx context.Context, id string) (*domain.Answer, error) {
	return s.answers.Get(ctx, id)
}

func (s *Service) readySourceIDs(ctx context.Context, ids []string) ([]string, error) {
	var ready []string
	for _, id := range ids {
		src, err := s.sources.Get(ctx, id)
		if err != nil {
			if ae, ok := apperr.As(err); ok && ae.Kind == apperr.KindNotFound {
				continue
			}
			return nil, err
		}
		if src.Ready() {
			ready = append(ready, id)
		}
	}
	return ready, nil
}

// selectChunks runs retrieve -> rerank -> diversify (or top-N when MMR is
// disabled) and returns the final chunk set handed to synthesis.
func (s *Service) selectChunks(ctx context.Context, question string, sourceIDs []string) ([]domain.Chunk, error) {
	scored, err := s.retriever.Retrieve(ctx, question, retrieval.Options{
		SourceIDs:               sourceIDs,
		Candidates:              s.opts.RetrievalCandidates,
		HybridAlpha:             s.opts.HybridAlpha,
		PerSourceRetrievalLimit: s.opts.PerSourceRetrievalLimit,
	})
	if err != nil {
		return nil, err
	}

	ranked, err := s.reranker.Rerank(ctx, question, scored)
	if err != nil {
		return nil, err
	}

	var selected []rerank.Ranked
	if s.opts.MMREnabled {
		selected = diversify.Select(ranked, diversify.Options{
			Lambda:   s.opts.MMRLambda,
			MaxItems: s.opts.MaxChunksPerQuery,
		})
	} else {
		selected = topN(ranked, s.opts.MaxChunksPerQuery)
	}

	chunks := make([]domain.Chunk, len(selected))
	for i, r := range selected {
		chunks[i] = r.Chunk
	}
	return chunks, nil
}

func topN(ranked []rerank.Ranked, n int) []rerank.Ranked {
	if n <= 0 || n > len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// applyVerification runs claim extraction/scoring, attaches highlights
// when requested, and rewrites the answer text when contradictions are
// found, mutating ans in place.
func (s *Service) applyVerification(ctx context.Context, ans *domain.Answer, chunks []domain.Chunk, highlights bool) error {
	claims, err := s.verifier.Verify(ctx, ans.AnswerText, chunks)
	if err != nil {
		return err
	}

	if highlights {
		attachHighlights(claims, chunks)
	}

	summary := verify.DeriveSummary(claims)
	summary.AnswerStyle = ans.AnswerStyle
	ans.Claims = claims
	ans.VerificationSummary = &summary

	rewrittenText, style := rewrite.Rewrite(ans.AnswerText, ans.AnswerStyle, claims, summary)
	ans.AnswerText = rewrittenText
	ans.AnswerStyle = style
	ans.VerificationSummary.AnswerStyle = style
	return nil
}

// attachHighlights locates, for each piece of evidence, the best matching
// span within its cited chunk's full text, mutating claims in place.
func attachHighlights(claims []domain.Claim, chunks []domain.Chunk) {
	byID := make(map[string]string, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c.Text
	}
	for i := range claims {
		for j := range claims[i].Evidence {
			ev := &claims[i].Evidence[j]
			chunkText, ok := byID[ev.ChunkID]
			if !ok {
				continue
			}
			start, end, text := verify.FindHighlight(claims[i].Text, chunkText)
			ev.HighlightStart = start
			ev.HighlightEnd = end
			ev.HighlightText = text
		}
	}
}
