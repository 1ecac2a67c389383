// Package rewrite replaces an answer's text with a contradiction-aware
// summary once verification finds contradicted or conflicting claims.
package rewrite

import (
	"fmt"
	"strings"

	"citeground/internal/domain"
)

const contradictionPrefix = "Contradictions detected in the source material."

// Rewrite returns the rewritten answer text and answer style for a
// verified answer, or the original text/style unchanged when summary has
// no contradictions.
func Rewrite(answerText string, style domain.AnswerStyle, claims []domain.Claim, summary domain.VerificationSummary) (string, domain.AnswerStyle) {
	if !summary.HasContradictions {
		return answerText, style
	}

	var b strings.Builder
	b.WriteString(contradictionPrefix)
	b.WriteString("\n")

	writeSection(&b, "Supported:", filterClaims(claims, domain.VerdictSupports, domain.VerdictWeakSupport))
	writeSection(&b, "Conflicts:", filterClaims(claims, domain.VerdictContradicted, domain.VerdictConflicting))
	writeSection(&b, "Unsupported:", filterClaims(claims, domain.VerdictUnsupported))

	return b.String(), domain.AnswerStyleContradictions
}

func filterClaims(claims []domain.Claim, verdicts ...domain.Verdict) []domain.Claim {
	want := make(map[domain.Verdict]bool, len(verdicts))
	for _, v := range verdicts {
		want[v] = true
	}
	var out []domain.Claim
	for _, c := range claims {
		if want[c.Verdict] {
			out = append(out, c)
		}
	}
	return out
}

func writeSection(b *strings.Builder, title string, claims []domain.Claim) {
	if len(claims) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for _, c := range claims {
		fmt.Fprintf(b, "- %s%s\n", c.Text, salientEvidenceSuffix(c))
	}
}

func salientEvidenceSuffix(c domain.Claim) string {
	ev := mostSalientEvidence(c)
	if ev == nil || strings.TrimSpace(ev.Snippet) == "" {
		return ""
	}
	return fmt.Sprintf(" (%s)", ev.Snippet)
}

// mostSalientEvidence picks the evidence entry matching the relation
// implied by the claim's own verdict (contradicting evidence for a
// contradicted/conflicting claim, supporting evidence otherwise), falling
// back to the first entry when no such relation is present.
func mostSalientEvidence(c domain.Claim) *domain.Evidence {
	if len(c.Evidence) == 0 {
		return nil
	}
	want := domain.RelationSupports
	if c.Verdict == domain.VerdictContradicted || c.Verdict == domain.VerdictConflicting {
		want = domain.RelationContradicts
	}
	for i, e := range c.Evidence {
		if e.Relation == want {
			return &c.Evidence[i]
		}
	}
	return &c.Evidence[0]
}
