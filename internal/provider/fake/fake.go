// Package fake implements provider.Provider with pure, hash- and
// token-overlap-derived functions so identical inputs always produce
// byte-identical output, satisfying the no-network determinism contract
// the pipeline needs under test (spec's testable property on the fake
// provider). Grounded on the teacher's reranker `_fake_score` pattern:
// hash text deterministically to stand in for a real model call.
package fake

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"citeground/internal/provider"
)

type Provider struct {
	dim int
}

func New(dim int) *Provider {
	if dim <= 0 {
		dim = 1536
	}
	return &Provider{dim: dim}
}

func (p *Provider) Dim() int { return p.dim }

// Embed deterministically hashes each text into a unit vector of Dim()
// dimensions. Dimensions are mutually independent hash draws, so cosine
// similarity between two fake embeddings carries no semantic signal —
// only the deterministic reranker (token overlap) carries relevance
// signal under the fake provider, by design.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t, p.dim)
	}
	return out, nil
}

func hashVector(text string, dim int) []float32 {
	v := make([]float32, dim)
	var sumSq float64
	for i := 0; i < dim; i++ {
		h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d", text, i)))
		u := binary.BigEndian.Uint64(h[:8])
		f := float64(u)/float64(math.MaxUint64)*2 - 1 // map to [-1,1]
		v[i] = float32(f)
		sumSq += f * f
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return v
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

// Chat dispatches on a "TASK: <name>" marker that internal/synth and
// internal/verify place as the first line of the prompt, since the
// provider.Provider interface exposes only generic chat — the marker lets
// one pure function serve every prompt shape deterministically.
func (p *Provider) Chat(ctx context.Context, messages []provider.Message, opts provider.ChatOptions) (provider.ChatResult, error) {
	var prompt strings.Builder
	for _, m := range messages {
		prompt.WriteString(m.Content)
		prompt.WriteString("\n")
	}
	full := prompt.String()

	task := taskOf(full)
	var text string
	switch task {
	case "synthesize_answer":
		text = synthesizeAnswer(full)
	case "extract_claims":
		text = extractClaims(full)
	case "score_claim":
		text = scoreClaim(full)
	default:
		text = `{"answer":"insufficient evidence","citations":[]}`
	}
	return provider.ChatResult{Text: text, Usage: provider.Usage{PromptTokens: len(full), CompletionTokens: len(text)}}, nil
}

var taskRe = regexp.MustCompile(`(?m)^TASK:\s*(\S+)`)

func taskOf(prompt string) string {
	m := taskRe.FindStringSubmatch(prompt)
	if m == nil {
		return ""
	}
	return m[1]
}

var chunkHeaderRe = regexp.MustCompile(`\[CHUNK ([^\]]+)\]\n`)
var questionRe = regexp.MustCompile(`(?m)^QUESTION:\s*(.*)$`)

type chunkBlock struct {
	ID   string
	Text string
}

func parseChunkBlocks(prompt string) []chunkBlock {
	locs := chunkHeaderRe.FindAllStringSubmatchIndex(prompt, -1)
	out := make([]chunkBlock, 0, len(locs))
	for i, loc := range locs {
		end := len(prompt)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, chunkBlock{ID: prompt[loc[2]:loc[3]], Text: strings.TrimSpace(prompt[loc[1]:end])})
	}
	return out
}

func parseQuestion(prompt string) string {
	m := questionRe.FindStringSubmatch(prompt)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "of": true,
	"to": true, "and": true, "in": true, "for": true, "what": true, "on": true,
	"it": true, "this": true, "that": true, "was": true, "be": true,
}

func tokenize(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range tokenRe.FindAllString(strings.ToLower(s), -1) {
		if !stopwords[tok] {
			out[tok] = true
		}
	}
	return out
}

func overlapCount(a, b map[string]bool) int {
	n := 0
	for t := range a {
		if b[t] {
			n++
		}
	}
	return n
}

type synthPayload struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

func synthesizeAnswer(prompt string) string {
	question := parseQuestion(prompt)
	chunks := parseChunkBlocks(prompt)
	qTokens := tokenize(question)

	type scored struct {
		chunkBlock
		overlap int
	}
	var relevant []scored
	for _, c := range chunks {
		ov := overlapCount(qTokens, tokenize(c.Text))
		if ov > 0 {
			relevant = append(relevant, scored{c, ov})
		}
	}

	if len(relevant) == 0 {
		b, _ := json.Marshal(synthPayload{Answer: "insufficient evidence", Citations: nil})
		return string(b)
	}

	sort.SliceStable(relevant, func(i, j int) bool { return relevant[i].overlap > relevant[j].overlap })

	top := relevant[0]
	sentence := firstSentence(top.Text, 280)
	answer := fmt.Sprintf("Based on [CHUNK %s]: %s", top.ID, sentence)

	ids := make([]string, 0, len(relevant))
	for _, r := range relevant {
		ids = append(ids, r.ID)
	}

	b, _ := json.Marshal(synthPayload{Answer: answer, Citations: ids})
	return string(b)
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

var answerTextRe = regexp.MustCompile(`(?s)ANSWER_TEXT:\s*(.*?)(?:\nCHUNK_IDS:|\z)`)

func extractClaims(prompt string) string {
	m := answerTextRe.FindStringSubmatch(prompt)
	answer := ""
	if m != nil {
		answer = strings.TrimSpace(m[1])
	}

	var claims []string
	for _, part := range regexp.MustCompile(`[.!?]+`).Split(answer, -1) {
		part = strings.TrimSpace(part)
		if part != "" {
			claims = append(claims, part)
		}
	}
	b, _ := json.Marshal(claims)
	return string(b)
}

var claimTextRe = regexp.MustCompile(`(?s)CLAIM:\s*(.*?)(?:\nEVIDENCE:|\z)`)

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

var negationWords = map[string]bool{
	"not": true, "no": true, "never": true, "cannot": true, "isn't": true,
	"doesn't": true, "didn't": true, "won't": true, "without": true,
}

func hasNegation(tokens map[string]bool) bool {
	for t := range tokens {
		if negationWords[t] {
			return true
		}
	}
	return false
}

func scoreClaim(prompt string) string {
	claimM := claimTextRe.FindStringSubmatch(prompt)
	claim := ""
	if claimM != nil {
		claim = strings.TrimSpace(claimM[1])
	}
	chunks := parseChunkBlocks(prompt)
	claimTokens := tokenize(claim)
	claimNeg := hasNegation(claimTokens)

	var evidence []evidencePayload
	var bestSupport, bestContradiction float64

	for _, c := range chunks {
		cTokens := tokenize(c.Text)
		ov := overlapCount(claimTokens, cTokens)
		if ov == 0 {
			continue
		}
		union := len(claimTokens)
		if union == 0 {
			union = 1
		}
		ratio := float64(ov) / float64(union)
		if ratio > 1 {
			ratio = 1
		}

		evNeg := hasNegation(cTokens)
		relation := "related"
		contribution := 0.0
		if claimNeg != evNeg && ratio >= 0.2 {
			relation = "contradicts"
			contribution = ratio
			if contribution > bestContradiction {
				bestContradiction = contribution
			}
		} else if ratio >= 0.2 {
			relation = "supports"
			contribution = ratio
			if contribution > bestSupport {
				bestSupport = contribution
			}
		}

		evidence = append(evidence, evidencePayload{
			ChunkID:  c.ID,
			Relation: relation,
			Snippet:  firstSentence(c.Text, 280),
		})
	}

	bestSupport = clamp01(bestSupport)
	bestContradiction = clamp01(bestContradiction)

	b, _ := json.Marshal(scorePayload{
		SupportScore:       bestSupport,
		ContradictionScore: bestContradiction,
		Evidence:           evidence,
	})
	return string(b)
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
