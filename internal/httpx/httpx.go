// Package httpx centralizes the HTTP-facing glue every handler needs:
// mapping apperr.Kind to a status code, writing JSON bodies, and decoding
// request payloads with a size cap.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"citeground/internal/apperr"
)

// StatusFor maps an error kind to the HTTP status spec.md §7 assigns it.
// CitationError is only ever surfaced as 500 by the caller when debug is
// enabled; in non-debug mode the synthesizer drops the offending ids
// instead of returning this kind at all.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindProvider:
		return http.StatusBadGateway
	case apperr.KindCitation:
		return http.StatusInternalServerError
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	case apperr.KindStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Detail  string `json:"detail"`
	ErrorID string `json:"error_id,omitempty"`
}

// WriteError writes the standard {detail, error_id} error body for err,
// logging the full cause server-side. A plain (non-apperr) error is
// treated as an unclassified internal failure: 500, generic detail, full
// cause only in the log.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperr.As(err)
	if !ok {
		ae = apperr.Store("internal error", err)
	}

	status := StatusFor(ae.Kind)
	slog.ErrorContext(r.Context(), "request failed",
		"kind", ae.Kind, "detail", ae.Detail, "error_id", ae.ErrorID,
		"status", status, "cause", ae.Cause)

	WriteJSON(w, status, errorBody{Detail: ae.Detail, ErrorID: ae.ErrorID})
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// DecodeJSON reads and decodes a JSON request body capped at maxBytes,
// rejecting unknown fields so malformed clients fail fast with a
// ValidationError instead of silently ignoring typos.
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body is empty")
		}
		return apperr.Validation("malformed request body: " + err.Error())
	}
	return nil
}
