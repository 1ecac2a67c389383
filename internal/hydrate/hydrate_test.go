package hydrate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/domain"
	"citeground/internal/hydrate"
)

func TestAnswer_MissingSummaryWithNoClaimsDefaultsNeutral(t *testing.T) {
	a := &domain.Answer{
		ID:         "a1",
		AnswerText: "insufficient evidence",
	}
	hydrate.Answer(a)
	require.NotNil(t, a.VerificationSummary)
	assert.Equal(t, domain.OverallUnknown, a.VerificationSummary.OverallVerdict)
	assert.Equal(t, domain.AnswerStyleInsufficientEvidence, a.AnswerStyle)
}

func TestAnswer_MissingSummaryWithCitationsDefaultsDirect(t *testing.T) {
	a := &domain.Answer{
		ID:        "a1",
		Citations: []domain.Citation{{ChunkID: "c1", SourceID: "s1"}},
	}
	hydrate.Answer(a)
	require.NotNil(t, a.VerificationSummary)
	assert.Equal(t, domain.AnswerStyleDirect, a.AnswerStyle)
}

func TestAnswer_MissingSummaryDerivedFromClaims(t *testing.T) {
	a := &domain.Answer{
		ID:     "a1",
		Claims: []domain.Claim{{Verdict: domain.VerdictSupports}, {Verdict: domain.VerdictSupports}},
	}
	hydrate.Answer(a)
	require.NotNil(t, a.VerificationSummary)
	assert.Equal(t, domain.OverallSupported, a.VerificationSummary.OverallVerdict)
}

func TestAnswer_InconsistentCountsAreRecomputed(t *testing.T) {
	a := &domain.Answer{
		ID:     "a1",
		Claims: []domain.Claim{{Verdict: domain.VerdictContradicted}, {Verdict: domain.VerdictSupports}},
		VerificationSummary: &domain.VerificationSummary{
			SupportedCount: 2, // wrong: only 1 claim is "supports"
			AnswerStyle:    domain.AnswerStyleDirect,
		},
	}
	hydrate.Answer(a)
	assert.Equal(t, 1, a.VerificationSummary.SupportedCount)
	assert.Equal(t, 1, a.VerificationSummary.ContradictedCount)
	assert.True(t, a.VerificationSummary.HasContradictions)
	assert.Equal(t, domain.AnswerStyleContradictions, a.AnswerStyle)
	assert.Equal(t, a.AnswerStyle, a.VerificationSummary.AnswerStyle)
}

func TestAnswer_ConsistentSummaryIsLeftAlone(t *testing.T) {
	claims := []domain.Claim{{Verdict: domain.VerdictSupports}}
	summary := domain.VerificationSummary{
		SupportedCount: 1,
		OverallVerdict: domain.OverallSupported,
		AnswerStyle:    domain.AnswerStyleDirect,
	}
	a := &domain.Answer{
		ID:                  "a1",
		Claims:              claims,
		VerificationSummary: &summary,
		AnswerStyle:         domain.AnswerStyleDirect,
	}
	hydrate.Answer(a)
	assert.Equal(t, domain.AnswerStyleDirect, a.AnswerStyle)
	assert.Equal(t, 1, a.VerificationSummary.SupportedCount)
}

func TestAnswer_RawCitationsIDsDriveCitationsCount(t *testing.T) {
	a := &domain.Answer{
		ID:           "a1",
		RawCitations: domain.RawCitations{IDs: []string{"c1", "c2"}},
	}
	hydrate.Answer(a)
	assert.Equal(t, domain.AnswerStyleDirect, a.AnswerStyle)
}
