// Package chunk splits cleaned source text into overlapping character
// windows, snapping window boundaries to paragraph, sentence, or word
// boundaries so chunks rarely split mid-token.
package chunk

import (
	"strings"

	"citeground/internal/domain"
)

// Defaults mirror spec configuration CHUNK_CHAR_TARGET / CHUNK_CHAR_OVERLAP.
const (
	DefaultTargetChars  = 5000
	DefaultOverlapChars = 800
	defaultTolerance    = 200
)

// PageRange is the absolute character span [Start,End) that a single page
// occupies in the cleaned, concatenated source text.
type PageRange struct {
	PageNum int
	Start   int
	End     int
}

// SectionHeading records the section path active starting at a char
// offset into the cleaned text. Headings must be supplied in ascending
// Start order.
type SectionHeading struct {
	Path  []string
	Start int
}

// Options configures the chunking window.
type Options struct {
	TargetChars  int
	OverlapChars int
	// Tolerance bounds how far a window boundary may move while
	// snapping to a structural boundary.
	Tolerance int
	Pages     []PageRange
	Sections  []SectionHeading
}

func (o Options) withDefaults() Options {
	if o.TargetChars <= 0 {
		o.TargetChars = DefaultTargetChars
	}
	if o.OverlapChars <= 0 {
		o.OverlapChars = DefaultOverlapChars
	}
	if o.Tolerance <= 0 {
		o.Tolerance = defaultTolerance
	}
	return o
}

// Chunk splits text into an ordered sequence of chunks. The returned
// chunks carry dense 0-based ordinals, absolute char offsets such that
// text[CharStart:CharEnd] == chunk text, and (when Pages/Sections are
// supplied) page span and section path metadata.
func Chunk(text string, opts Options) []domain.Chunk {
	opts = opts.withDefaults()
	if text == "" {
		return nil
	}

	textLen := len(text)
	var chunks []domain.Chunk

	start := 0
	ordinal := 0
	for start < textLen {
		end := start + opts.TargetChars
		if end > textLen {
			end = textLen
		} else {
			end = snapBoundary(text, end, opts.Tolerance)
		}
		if end <= start {
			end = start + 1
		}

		chunkText := text[start:end]
		cs, ce := start, end
		pageStart, pageEnd := pageSpan(opts.Pages, cs, ce)
		chunks = append(chunks, domain.Chunk{
			Ordinal:     ordinal,
			Text:        chunkText,
			CharStart:   &cs,
			CharEnd:     &ce,
			PageStart:   pageStart,
			PageEnd:     pageEnd,
			SectionPath: activeSectionPath(opts.Sections, cs),
		})
		ordinal++

		if end >= textLen {
			break
		}

		nextStart := end - opts.OverlapChars
		if nextStart <= start {
			nextStart = end
		}
		start = nextStart
	}

	return chunks
}

// snapBoundary nudges pos to the nearest paragraph, then sentence, then
// word boundary within [pos-tolerance, pos+tolerance]. If none exists, pos
// is returned unchanged (a hard cut).
func snapBoundary(text string, pos, tolerance int) int {
	lo := pos - tolerance
	if lo < 0 {
		lo = 0
	}
	hi := pos + tolerance
	if hi > len(text) {
		hi = len(text)
	}

	if b, ok := nearestBoundary(text, pos, lo, hi, "\n\n"); ok {
		return b
	}
	if b, ok := nearestSentenceBoundary(text, pos, lo, hi); ok {
		return b
	}
	if b, ok := nearestWordBoundary(text, pos, lo, hi); ok {
		return b
	}
	return pos
}

func nearestBoundary(text string, pos, lo, hi int, sep string) (int, bool) {
	best := -1
	bestDist := -1
	searchStart := lo
	for {
		idx := strings.Index(text[searchStart:hi], sep)
		if idx == -1 {
			break
		}
		abs := searchStart + idx + len(sep)
		dist := abs - pos
		if dist < 0 {
			dist = -dist
		}
		if best == -1 || dist < bestDist {
			best = abs
			bestDist = dist
		}
		searchStart = searchStart + idx + len(sep)
		if searchStart >= hi {
			break
		}
	}
	return best, best != -1
}

func nearestSentenceBoundary(text string, pos, lo, hi int) (int, bool) {
	best := -1
	bestDist := -1
	for i := lo; i < hi-1; i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 < len(text) && (text[i+1] == ' ' || text[i+1] == '\n') {
				abs := i + 2
				dist := abs - pos
				if dist < 0 {
					dist = -dist
				}
				if best == -1 || dist < bestDist {
					best = abs
					bestDist = dist
				}
			}
		}
	}
	return best, best != -1
}

func nearestWordBoundary(text string, pos, lo, hi int) (int, bool) {
	best := -1
	bestDist := -1
	for i := lo; i < hi; i++ {
		if text[i] == ' ' || text[i] == '\n' || text[i] == '\t' {
			abs := i + 1
			dist := abs - pos
			if dist < 0 {
				dist = -dist
			}
			if best == -1 || dist < bestDist {
				best = abs
				bestDist = dist
			}
		}
	}
	return best, best != -1
}

func pageSpan(pages []PageRange, start, end int) (*int, *int) {
	var first, last int
	found := false
	for _, p := range pages {
		if p.Start < end && p.End > start {
			if !found {
				first = p.PageNum
				found = true
			}
			last = p.PageNum
		}
	}
	if !found {
		return nil, nil
	}
	return &first, &last
}

func activeSectionPath(sections []SectionHeading, pos int) []string {
	var active []string
	for _, s := range sections {
		if s.Start > pos {
			break
		}
		active = s.Path
	}
	return active
}
