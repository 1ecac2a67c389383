// Package hydrate repairs a possibly legacy or partially-written Answer
// row on read: filling in a missing verification summary, recomputing
// counts that don't match the persisted claims, and normalizing citation
// bookkeeping. It never writes the repair back to the store.
package hydrate

import (
	"log/slog"

	"citeground/internal/domain"
	"citeground/internal/verify"
)

// Answer repairs an in-memory Answer already loaded from the store.
func Answer(a *domain.Answer) {
	if a == nil {
		return
	}

	count := citationsCount(a)

	if a.VerificationSummary == nil {
		summary := verify.DeriveSummary(a.Claims)
		summary.AnswerStyle = defaultAnswerStyle(summary.HasContradictions, count)
		a.VerificationSummary = &summary
		a.AnswerStyle = summary.AnswerStyle
		if len(a.Claims) > 0 {
			logInconsistent(a.ID)
		}
		return
	}

	recomputed := verify.DeriveSummary(a.Claims)
	if !countsMatch(*a.VerificationSummary, recomputed) {
		recomputed.AnswerStyle = defaultAnswerStyle(recomputed.HasContradictions, count)
		a.VerificationSummary = &recomputed
		a.AnswerStyle = recomputed.AnswerStyle
		logInconsistent(a.ID)
		return
	}

	if a.AnswerStyle == "" {
		a.AnswerStyle = a.VerificationSummary.AnswerStyle
	}
	if a.VerificationSummary.AnswerStyle == "" {
		a.VerificationSummary.AnswerStyle = a.AnswerStyle
	}
}

func citationsCount(a *domain.Answer) int {
	if a.RawCitations.IDs != nil {
		return len(a.RawCitations.IDs)
	}
	return len(a.Citations)
}

func defaultAnswerStyle(hasContradictions bool, citationsCount int) domain.AnswerStyle {
	switch {
	case hasContradictions:
		return domain.AnswerStyleContradictions
	case citationsCount > 0:
		return domain.AnswerStyleDirect
	default:
		return domain.AnswerStyleInsufficientEvidence
	}
}

func countsMatch(a, b domain.VerificationSummary) bool {
	return a.SupportedCount == b.SupportedCount &&
		a.WeakSupportCount == b.WeakSupportCount &&
		a.UnsupportedCount == b.UnsupportedCount &&
		a.ContradictedCount == b.ContradictedCount &&
		a.ConflictingCount == b.ConflictingCount &&
		a.HasContradictions == b.HasContradictions &&
		a.OverallVerdict == b.OverallVerdict
}

func logInconsistent(answerID string) {
	slog.Warn("verification_summary_inconsistent", "answer_id", answerID)
}
