package verify

import (
	"regexp"
	"strings"
)

const (
	maxHighlightLen = 240
	contextLeading  = 80
	contextTrailing = 160
	snapRange       = 20
	maxGapTokens    = 3
)

var wordRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

type chunkToken struct {
	text  string
	start int
	end   int
}

// FindHighlight locates the span of chunkText that best supports
// claimText: the longest run of claim tokens found in chunk order,
// tolerating small gaps between matches, expanded to a surrounding
// context window and snapped to word boundaries. Returns nil start/end
// and an empty string when no claim token is found in chunkText at all.
func FindHighlight(claimText, chunkText string) (start, end *int, text string) {
	if strings.TrimSpace(chunkText) == "" {
		return nil, nil, ""
	}

	claimTokens := wordRe.FindAllString(strings.ToLower(claimText), -1)
	if len(claimTokens) == 0 {
		return nil, nil, ""
	}

	chunkTokens := tokenizeChunk(chunkText)
	if len(chunkTokens) == 0 {
		return nil, nil, ""
	}

	bestMatched, bestStart, bestEnd := 0, -1, -1
	for ci := range chunkTokens {
		matched, spanStart, spanEnd := matchRun(claimTokens, chunkTokens, ci)
		if matched > bestMatched {
			bestMatched, bestStart, bestEnd = matched, spanStart, spanEnd
		}
	}
	if bestMatched == 0 {
		return nil, nil, ""
	}

	winStart := bestStart - contextLeading
	if winStart < 0 {
		winStart = 0
	}
	winEnd := bestEnd + contextTrailing
	if winEnd > len(chunkText) {
		winEnd = len(chunkText)
	}

	winStart = snapStart(chunkText, winStart)
	winEnd = snapEnd(chunkText, winEnd)

	if winEnd-winStart > maxHighlightLen {
		winEnd = winStart + maxHighlightLen
		if winEnd > len(chunkText) {
			winEnd = len(chunkText)
		}
	}
	if winStart >= winEnd {
		return nil, nil, ""
	}

	s, e := winStart, winEnd
	return &s, &e, chunkText[s:e]
}

func tokenizeChunk(text string) []chunkToken {
	locs := wordRe.FindAllStringIndex(text, -1)
	out := make([]chunkToken, len(locs))
	for i, loc := range locs {
		out[i] = chunkToken{text: strings.ToLower(text[loc[0]:loc[1]]), start: loc[0], end: loc[1]}
	}
	return out
}

// matchRun greedily matches claimTokens against chunkTokens starting the
// search at chunkStart, tolerating up to maxGapTokens unmatched chunk
// tokens between two consecutive matches. Claim tokens with no match
// within the gap tolerance are skipped rather than failing the run.
func matchRun(claimTokens []string, chunkTokens []chunkToken, chunkStart int) (matched, spanStart, spanEnd int) {
	ci := chunkStart
	first := true
	for _, ct := range claimTokens {
		found := -1
		limit := ci + maxGapTokens + 1
		if limit > len(chunkTokens) {
			limit = len(chunkTokens)
		}
		for j := ci; j < limit; j++ {
			if chunkTokens[j].text == ct {
				found = j
				break
			}
		}
		if found == -1 {
			continue
		}
		if first {
			spanStart = chunkTokens[found].start
			first = false
		}
		spanEnd = chunkTokens[found].end
		matched++
		ci = found + 1
	}
	if matched == 0 {
		return 0, 0, 0
	}
	return matched, spanStart, spanEnd
}

// snapStart walks backward from pos (up to snapRange chars) looking for
// whitespace, and snaps to just after it so the window doesn't start
// mid-word.
func snapStart(text string, pos int) int {
	if pos <= 0 {
		return 0
	}
	limit := pos - snapRange
	if limit < 0 {
		limit = 0
	}
	for i := pos; i > limit; i-- {
		if text[i-1] == ' ' || text[i-1] == '\n' || text[i-1] == '\t' {
			return i
		}
	}
	return pos
}

// snapEnd walks forward from pos (up to snapRange chars) looking for
// whitespace, so the window doesn't end mid-word.
func snapEnd(text string, pos int) int {
	if pos >= len(text) {
		return len(text)
	}
	limit := pos + snapRange
	if limit > len(text) {
		limit = len(text)
	}
	for i := pos; i < limit; i++ {
		if text[i] == ' ' || text[i] == '\n' || text[i] == '\t' {
			return i
		}
	}
	return pos
}
