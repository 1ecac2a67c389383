package domain

// AnswerStyle classifies how the top-level answer text was produced.
type AnswerStyle string

const (
	AnswerStyleDirect               AnswerStyle = "direct"
	AnswerStyleInsufficientEvidence AnswerStyle = "insufficient_evidence"
	AnswerStyleContradictions       AnswerStyle = "contradictions"
)

// Verdict is the per-claim evidence verdict in verified mode.
type Verdict string

const (
	VerdictSupports     Verdict = "supports"
	VerdictWeakSupport  Verdict = "weak_support"
	VerdictUnsupported  Verdict = "unsupported"
	VerdictContradicted Verdict = "contradicted"
	VerdictConflicting  Verdict = "conflicting"
)

// OverallVerdict summarizes a verified answer across all its claims.
type OverallVerdict string

const (
	OverallSupported        OverallVerdict = "supported"
	OverallWeaklySupported  OverallVerdict = "weakly_supported"
	OverallUnsupported      OverallVerdict = "unsupported"
	OverallContradicted     OverallVerdict = "contradicted"
	OverallUnknown          OverallVerdict = "unknown"
)

// EvidenceRelation describes how a piece of evidence relates to a claim.
type EvidenceRelation string

const (
	RelationSupports    EvidenceRelation = "supports"
	RelationContradicts EvidenceRelation = "contradicts"
	RelationRelated     EvidenceRelation = "related"
)

// Citation points an answer back to a source chunk.
type Citation struct {
	ChunkID       string   `json:"chunk_id"`
	SourceID      string   `json:"source_id"`
	SourceTitle   string   `json:"source_title,omitempty"`
	PageStart     *int     `json:"page_start,omitempty"`
	PageEnd       *int     `json:"page_end,omitempty"`
	SectionPath   []string `json:"section_path,omitempty"`
	SnippetText   string   `json:"snippet_text"`
	SnippetStart  int      `json:"snippet_start"`
	SnippetEnd    int      `json:"snippet_end"`
	AbsoluteStart *int     `json:"absolute_start,omitempty"`
	AbsoluteEnd   *int     `json:"absolute_end,omitempty"`
}

// CitationGroup buckets citations by source, preserving within-group order.
type CitationGroup struct {
	SourceID    string     `json:"source_id"`
	SourceTitle string     `json:"source_title,omitempty"`
	Citations   []Citation `json:"citations"`
}

// Evidence backs a single claim in verified mode.
type Evidence struct {
	ChunkID        string           `json:"chunk_id"`
	Relation       EvidenceRelation `json:"relation"`
	Snippet        string           `json:"snippet"`
	SnippetStart   int              `json:"snippet_start"`
	SnippetEnd     int              `json:"snippet_end"`
	HighlightStart *int             `json:"highlight_start,omitempty"`
	HighlightEnd   *int             `json:"highlight_end,omitempty"`
	HighlightText  string           `json:"highlight_text,omitempty"`
}

// Claim is an atomic assertion extracted from a generated answer.
type Claim struct {
	Text               string    `json:"text"`
	Verdict            Verdict   `json:"verdict"`
	SupportScore       float64   `json:"support_score"`
	ContradictionScore float64   `json:"contradiction_score"`
	Evidence           []Evidence `json:"evidence,omitempty"`
}

// VerificationSummary aggregates claim verdicts for a verified answer.
type VerificationSummary struct {
	SupportedCount    int            `json:"supported_count"`
	WeakSupportCount  int            `json:"weak_support_count"`
	UnsupportedCount  int            `json:"unsupported_count"`
	ContradictedCount int            `json:"contradicted_count"`
	ConflictingCount  int            `json:"conflicting_count"`
	HasContradictions bool           `json:"has_contradictions"`
	OverallVerdict    OverallVerdict `json:"overall_verdict"`
	AnswerStyle       AnswerStyle    `json:"answer_style"`
}

// NumClaims returns the total claim count implied by the summary counts.
func (s VerificationSummary) NumClaims() int {
	return s.SupportedCount + s.WeakSupportCount + s.UnsupportedCount +
		s.ContradictedCount + s.ConflictingCount
}

// RawCitations is the persisted payload shape backing the answers table's
// single `raw_citations` jsonb column: citation ids/groups plus, when the
// query ran in verified mode, claims and their summary. Older rows may be
// missing the verification fields entirely; internal/hydrate repairs that
// on read.
type RawCitations struct {
	IDs                 []string             `json:"ids,omitempty"`
	Citations           []Citation           `json:"citations,omitempty"`
	CitationGroups      []CitationGroup      `json:"citation_groups,omitempty"`
	QueryMode           string               `json:"query_mode,omitempty"`
	IdempotencyKey      string               `json:"idempotency_key,omitempty"`
	Claims              []Claim              `json:"claims,omitempty"`
	VerificationSummary *VerificationSummary `json:"verification_summary,omitempty"`
	AnswerStyle         AnswerStyle          `json:"answer_style,omitempty"`
}

// Answer is the persisted response artifact for a query.
type Answer struct {
	ID                  string
	QueryID             string
	AnswerText          string
	RawCitations        RawCitations
	Citations           []Citation
	CitationGroups      []CitationGroup
	Claims              []Claim
	VerificationSummary *VerificationSummary
	AnswerStyle         AnswerStyle
}
