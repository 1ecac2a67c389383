// Package verify decomposes a synthesized answer into atomic claims,
// scores each against its evidence chunks, and derives a verdict and
// summary via pure threshold functions kept separate from the provider
// calls so they can be exercised as property tests on their own.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"citeground/internal/apperr"
	"citeground/internal/domain"
	"citeground/internal/provider"
)

const (
	supportHigh = 0.6
	contraHigh  = 0.6
	supportLow  = 0.3
)

// DeriveVerdict is a pure function over clamped scores, kept separate from
// the verifier so it can be property-tested independent of any provider.
func DeriveVerdict(supportScore, contradictionScore float64) domain.Verdict {
	switch {
	case supportScore >= supportHigh && contradictionScore >= contraHigh:
		return domain.VerdictConflicting
	case contradictionScore >= contraHigh:
		return domain.VerdictContradicted
	case supportScore >= supportHigh:
		return domain.VerdictSupports
	case supportScore >= supportLow:
		return domain.VerdictWeakSupport
	default:
		return domain.VerdictUnsupported
	}
}

// DeriveSummary aggregates per-claim verdicts into a VerificationSummary.
// AnswerStyle is left unset here; the caller sets it from the style
// rewrite.Rewrite returns, once it is known whether a rewrite occurred.
func DeriveSummary(claims []domain.Claim) domain.VerificationSummary {
	var s domain.VerificationSummary
	for _, c := range claims {
		switch c.Verdict {
		case domain.VerdictSupports:
			s.SupportedCount++
		case domain.VerdictWeakSupport:
			s.WeakSupportCount++
		case domain.VerdictUnsupported:
			s.UnsupportedCount++
		case domain.VerdictContradicted:
			s.ContradictedCount++
		case domain.VerdictConflicting:
			s.ConflictingCount++
		}
	}
	s.HasContradictions = (s.ContradictedCount + s.ConflictingCount) > 0

	n := len(claims)
	if n == 0 {
		s.OverallVerdict = domain.OverallUnknown
		return s
	}
	half := (n + 1) / 2 // ceil(n/2)
	switch {
	case s.HasContradictions:
		s.OverallVerdict = domain.OverallContradicted
	case s.SupportedCount >= half:
		s.OverallVerdict = domain.OverallSupported
	case s.SupportedCount+s.WeakSupportCount >= half:
		s.OverallVerdict = domain.OverallWeaklySupported
	default:
		s.OverallVerdict = domain.OverallUnsupported
	}
	return s
}

// ScoreResult is one claim's raw scoring output before verdict derivation.
type ScoreResult struct {
	SupportScore       float64
	ContradictionScore float64
	Evidence           []domain.Evidence
}

type Verifier struct {
	chat provider.Provider
}

func New(chat provider.Provider) *Verifier {
	return &Verifier{chat: chat}
}

// ExtractClaims splits answerText into an ordered array of atomic claims.
func (v *Verifier) ExtractClaims(ctx context.Context, answerText string) ([]string, error) {
	if strings.TrimSpace(answerText) == "" {
		return nil, nil
	}
	prompt := fmt.Sprintf("TASK: extract_claims\nANSWER_TEXT: %s\n", answerText)
	resp, err := v.chat.Chat(ctx, []provider.Message{{Role: "user", Content: prompt}}, provider.ChatOptions{Temperature: 0})
	if err != nil {
		return nil, apperr.Provider("extract claims", err)
	}

	var claims []string
	if err := json.Unmarshal([]byte(resp.Text), &claims); err != nil {
		return nil, apperr.Provider("parse extracted claims", err)
	}
	return claims, nil
}

type evidencePayload struct {
	ChunkID  string `json:"chunk_id"`
	Relation string `json:"relation"`
	Snippet  string `json:"snippet"`
}

type scorePayload struct {
	SupportScore       float64           `json:"support_score"`
	ContradictionScore float64           `json:"contradiction_score"`
	Evidence           []evidencePayload `json:"evidence"`
}

// ScoreClaim scores claim against the supplied evidence chunks.
func (v *Verifier) ScoreClaim(ctx context.Context, claim string, chunks []domain.Chunk) (ScoreResult, error) {
	var b strings.Builder
	b.WriteString("TASK: score_claim\n")
	fmt.Fprintf(&b, "CLAIM: %s\nEVIDENCE:\n\n", claim)
	for _, c := range chunks {
		fmt.Fprintf(&b, "[CHUNK %s]\n%s\n\n", c.ID, c.Text)
	}

	resp, err := v.chat.Chat(ctx, []provider.Message{{Role: "user", Content: b.String()}}, provider.ChatOptions{Temperature: 0})
	if err != nil {
		return ScoreResult{}, apperr.Provider("score claim", err)
	}

	var payload scorePayload
	if err := json.Unmarshal([]byte(resp.Text), &payload); err != nil {
		return ScoreResult{}, apperr.Provider("parse claim score", err)
	}

	evidence := make([]domain.Evidence, 0, len(payload.Evidence))
	for _, e := range payload.Evidence {
		evidence = append(evidence, domain.Evidence{
			ChunkID:  e.ChunkID,
			Relation: domain.EvidenceRelation(e.Relation),
			Snippet:  e.Snippet,
		})
	}

	return ScoreResult{
		SupportScore:       clamp01(payload.SupportScore),
		ContradictionScore: clamp01(payload.ContradictionScore),
		Evidence:           evidence,
	}, nil
}

// Verify extracts claims from answerText and scores each against chunks,
// returning fully-derived Claim records.
func (v *Verifier) Verify(ctx context.Context, answerText string, chunks []domain.Chunk) ([]domain.Claim, error) {
	texts, err := v.ExtractClaims(ctx, answerText)
	if err != nil {
		return nil, err
	}

	claims := make([]domain.Claim, 0, len(texts))
	for _, text := range texts {
		res, err := v.ScoreClaim(ctx, text, chunks)
		if err != nil {
			return nil, err
		}
		claims = append(claims, domain.Claim{
			Text:               text,
			Verdict:            DeriveVerdict(res.SupportScore, res.ContradictionScore),
			SupportScore:       res.SupportScore,
			ContradictionScore: res.ContradictionScore,
			Evidence:           res.Evidence,
		})
	}
	return claims, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
