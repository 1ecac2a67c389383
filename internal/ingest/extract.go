// Package ingest turns raw uploaded/fetched bytes into indexed chunks:
// extract cleaned text (per source type), split it into overlapping
// windows, embed each window, and write the result to the chunk store.
package ingest

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"citeground/internal/apperr"
	"citeground/internal/chunk"
	"citeground/internal/domain"
)

// Extracted is the cleaned-text result of extraction, ready for chunking.
type Extracted struct {
	Text  string
	Pages []chunk.PageRange
}

// ExtractPDF reads page text via ledongthuc/pdf, enforcing maxPages, and
// concatenates page text with a blank-line separator, recording each
// page's absolute char span for chunk page-range attribution.
func ExtractPDF(data []byte, maxPages int) (Extracted, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Extracted{}, apperr.IngestionFailed(fmt.Sprintf("open pdf: %v", err))
	}

	numPages := reader.NumPage()
	if maxPages > 0 && numPages > maxPages {
		return Extracted{}, apperr.IngestionFailed(fmt.Sprintf("pdf has %d pages, exceeds limit %d", numPages, maxPages))
	}

	var rawPages []chunk.Page
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		rawPages = append(rawPages, chunk.Page{PageNum: i, Text: chunk.NormalizeWhitespace(text)})
	}

	text, pages := chunk.BuildPageMap(rawPages)
	return Extracted{Text: text, Pages: pages}, nil
}

// ExtractText decodes raw bytes as UTF-8 cleaned text, a single logical
// page.
func ExtractText(data []byte) (Extracted, error) {
	text := chunk.NormalizeWhitespace(string(data))
	return Extracted{Text: text}, nil
}

// ExtractURL fetches url and strips it down to visible text, dropping
// script/style contents, bounded by maxBytes.
func ExtractURL(ctx context.Context, url string, maxBytes int64) (Extracted, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Extracted{}, apperr.IngestionFailed(fmt.Sprintf("build request: %v", err))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Extracted{}, apperr.IngestionFailed(fmt.Sprintf("fetch url: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Extracted{}, apperr.IngestionFailed(fmt.Sprintf("fetch url: status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		return Extracted{}, apperr.IngestionFailed(fmt.Sprintf("read url body: %v", err))
	}
	if int64(len(body)) > maxBytes {
		return Extracted{}, apperr.IngestionFailed(fmt.Sprintf("url body exceeds %d byte limit", maxBytes))
	}

	text, err := htmlToText(body)
	if err != nil {
		return Extracted{}, apperr.IngestionFailed(fmt.Sprintf("parse html: %v", err))
	}
	return Extracted{Text: chunk.NormalizeWhitespace(text)}, nil
}

var skipTags = map[string]bool{"script": true, "style": true, "noscript": true, "head": true}

func htmlToText(body []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	var walk func(n *html.Node, skip bool)
	walk = func(n *html.Node, skip bool) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			skip = true
		}
		if n.Type == html.TextNode && !skip {
			b.WriteString(n.Data)
			b.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, skip)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			b.WriteString("\n")
		}
	}
	walk(doc, false)
	return b.String(), nil
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr", "section", "article":
		return true
	}
	return false
}

// Extract dispatches on sourceType to the appropriate extractor. url is
// only meaningful for domain.SourceTypeURL.
func Extract(ctx context.Context, sourceType domain.SourceType, data []byte, url string, limits Limits) (Extracted, error) {
	switch sourceType {
	case domain.SourceTypePDF:
		if limits.MaxPDFBytes > 0 && int64(len(data)) > limits.MaxPDFBytes {
			return Extracted{}, apperr.IngestionFailed("pdf exceeds max byte limit")
		}
		return ExtractPDF(data, limits.MaxPDFPages)
	case domain.SourceTypeText:
		if limits.MaxTextBytes > 0 && int64(len(data)) > limits.MaxTextBytes {
			return Extracted{}, apperr.IngestionFailed("text exceeds max byte limit")
		}
		return ExtractText(data)
	case domain.SourceTypeURL:
		return ExtractURL(ctx, url, limits.MaxURLBytes)
	default:
		return Extracted{}, apperr.Validation(fmt.Sprintf("unknown source type %q", sourceType))
	}
}

// Limits bounds extraction input size, mirroring spec.md §6 ingestion caps.
type Limits struct {
	MaxPDFBytes int64
	MaxPDFPages int
	MaxURLBytes int64
	MaxTextBytes int64
}
