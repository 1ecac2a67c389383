package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// QueryOptions toggles retrieval and answer-synthesis behavior for a query.
type QueryOptions struct {
	Rerank     bool `json:"rerank"`
	Verified   bool `json:"verified"`
	Highlights bool `json:"highlights"`
}

// Query is a user question scoped to a set of sources.
type Query struct {
	ID        string       `json:"id"`
	Question  string       `json:"question"`
	SourceIDs []string     `json:"source_ids,omitempty"`
	Options   QueryOptions `json:"options"`
}

// Fingerprint is a deterministic identifier over the normalized question,
// sorted source ids, and mode flags. Answer replay does not use it: that
// is keyed by the client's idempotency key and the query mode.
func Fingerprint(question string, sourceIDs []string, opts QueryOptions) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(question))), " ")

	sorted := append([]string(nil), sourceIDs...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(opts.Rerank)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(opts.Verified)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatBool(opts.Highlights)))

	return hex.EncodeToString(h.Sum(nil))
}
