// Package synth builds the grounded-answer prompt, parses the model's
// structured output, validates citations against the supplied chunk set,
// and expands cited chunk ids into full Citation records.
package synth

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"citeground/internal/apperr"
	"citeground/internal/domain"
	"citeground/internal/provider"
)

const insufficientEvidenceText = "insufficient evidence"

// Options configures one synthesis call.
type Options struct {
	Debug        bool
	SnippetChars int
}

func (o Options) withDefaults() Options {
	if o.SnippetChars <= 0 {
		o.SnippetChars = 900
	}
	return o
}

// Result is the synthesizer's output before persistence.
type Result struct {
	AnswerText     string
	Citations      []domain.Citation
	CitationGroups []domain.CitationGroup
	AnswerStyle    domain.AnswerStyle
	RawIDs         []string
}

type Synthesizer struct {
	chat provider.Provider
}

func New(chat provider.Provider) *Synthesizer {
	return &Synthesizer{chat: chat}
}

type modelOutput struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

// Synthesize answers question from chunks (already retrieved, reranked,
// and diversified), validates citations, and expands them into Citation
// records.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, chunks []domain.Chunk, opts Options) (Result, error) {
	opts = opts.withDefaults()
	if len(chunks) == 0 {
		return insufficientEvidence(chunks, opts), nil
	}

	prompt := buildPrompt(question, chunks)
	resp, err := s.chat.Chat(ctx, []provider.Message{{Role: "user", Content: prompt}}, provider.ChatOptions{Temperature: 0, MaxTokens: 1024})
	if err != nil {
		return Result{}, apperr.Provider("synthesize answer", err)
	}

	var out modelOutput
	if err := json.Unmarshal([]byte(resp.Text), &out); err != nil {
		return insufficientEvidence(chunks, opts), nil
	}

	byID := make(map[string]domain.Chunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	valid, unknown := validateCitations(out.Citations, byID)
	if opts.Debug && len(unknown) > 0 {
		return Result{}, apperr.Citation(fmt.Sprintf("unknown chunk ids cited: %s", strings.Join(unknown, ", ")))
	}

	if isInsufficient(out.Answer, valid) {
		return insufficientEvidence(chunks, opts), nil
	}

	citations := make([]domain.Citation, 0, len(valid))
	for _, id := range valid {
		citations = append(citations, expandCitation(byID[id], question, opts.SnippetChars))
	}

	return Result{
		AnswerText:     out.Answer,
		Citations:      citations,
		CitationGroups: groupBySource(citations),
		AnswerStyle:    domain.AnswerStyleDirect,
		RawIDs:         valid,
	}, nil
}

func buildPrompt(question string, chunks []domain.Chunk) string {
	var b strings.Builder
	b.WriteString("TASK: synthesize_answer\n")
	fmt.Fprintf(&b, "QUESTION: %s\n\n", question)
	for _, c := range chunks {
		fmt.Fprintf(&b, "[CHUNK %s]\n%s\n\n", c.ID, c.Text)
	}
	b.WriteString("Answer only from the chunks above. Respond with a JSON object: " +
		`{"answer": str, "citations": [chunk_id, ...]}.`)
	return b.String()
}

func validateCitations(ids []string, byID map[string]domain.Chunk) (valid, unknown []string) {
	for _, id := range ids {
		if _, ok := byID[id]; ok {
			valid = append(valid, id)
		} else {
			unknown = append(unknown, id)
		}
	}
	return valid, unknown
}

var dontKnowPhrases = []string{
	"i don't know", "i do not know", insufficientEvidenceText,
}

func isInsufficient(answer string, citations []string) bool {
	if strings.TrimSpace(answer) == "" || len(citations) == 0 {
		return true
	}
	lower := strings.ToLower(answer)
	for _, phrase := range dontKnowPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// insufficientEvidence builds the canonical fallback response, including up
// to three follow-up suggestions derived from the top candidate snippets.
func insufficientEvidence(chunks []domain.Chunk, opts Options) Result {
	followUps := suggestFollowUps(chunks, 3)
	text := insufficientEvidenceText
	if len(followUps) > 0 {
		text = fmt.Sprintf("%s. You might try asking: %s", insufficientEvidenceText, strings.Join(followUps, "; "))
	}
	return Result{
		AnswerText:  text,
		AnswerStyle: domain.AnswerStyleInsufficientEvidence,
	}
}

func suggestFollowUps(chunks []domain.Chunk, n int) []string {
	if len(chunks) > n {
		chunks = chunks[:n]
	}
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, firstSentence(c.Text, 120))
	}
	return out
}

func firstSentence(text string, maxLen int) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexAny(text, ".!?"); idx != -1 && idx+1 < len(text) {
		text = text[:idx+1]
	}
	if len(text) > maxLen {
		text = text[:maxLen]
	}
	return text
}

// expandCitation picks a snippet within chunk.Text that maximizes
// question-term coverage, bounded by maxSnippet, and computes absolute
// offsets when the chunk carries char offsets.
func expandCitation(chunk domain.Chunk, question string, maxSnippet int) domain.Citation {
	start, end := bestSnippetWindow(chunk.Text, question, maxSnippet)
	c := domain.Citation{
		ChunkID:      chunk.ID,
		SourceID:     chunk.SourceID,
		PageStart:    chunk.PageStart,
		PageEnd:      chunk.PageEnd,
		SectionPath:  chunk.SectionPath,
		SnippetText:  chunk.Text[start:end],
		SnippetStart: start,
		SnippetEnd:   end,
	}
	if chunk.HasCharOffsets() {
		absStart := *chunk.CharStart + start
		absEnd := *chunk.CharStart + end
		c.AbsoluteStart = &absStart
		c.AbsoluteEnd = &absEnd
	}
	return c
}

// bestSnippetWindow slides a window of maxLen bytes over text and returns
// the [start,end) byte offsets of the window with the most question-term
// matches. Falls back to the first maxLen bytes when the question has no
// tokenizable terms or no window contains any of them.
func bestSnippetWindow(text, question string, maxLen int) (int, int) {
	if len(text) <= maxLen {
		return 0, len(text)
	}
	qTokens := tokenizeLower(question)
	if len(qTokens) == 0 {
		return 0, maxLen
	}

	step := maxLen / 4
	if step <= 0 {
		step = maxLen
	}
	bestStart, bestScore := 0, -1
	for start := 0; start+maxLen <= len(text); start += step {
		window := strings.ToLower(text[start : start+maxLen])
		score := 0
		for _, qt := range qTokens {
			if strings.Contains(window, qt) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestStart = start
		}
	}
	return bestStart, bestStart + maxLen
}

func groupBySource(citations []domain.Citation) []domain.CitationGroup {
	order := []string{}
	bySrc := map[string]*domain.CitationGroup{}
	for _, c := range citations {
		g, ok := bySrc[c.SourceID]
		if !ok {
			g = &domain.CitationGroup{SourceID: c.SourceID, SourceTitle: c.SourceTitle}
			bySrc[c.SourceID] = g
			order = append(order, c.SourceID)
		}
		g.Citations = append(g.Citations, c)
	}
	out := make([]domain.CitationGroup, 0, len(order))
	for _, id := range order {
		out = append(out, *bySrc[id])
	}
	return out
}

func tokenizeLower(s string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}
