// Package apperr defines the error taxonomy shared across the HTTP and
// worker tiers. Handlers and services return *apperr.Error (or wrap one)
// instead of ad hoc sentinel errors so internal/httpx can map a single
// Kind enum to a status code and response body.
package apperr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies an error for status-code mapping and logging.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindAuth            Kind = "auth_error"
	KindRateLimited     Kind = "rate_limited"
	KindProvider        Kind = "provider_error"
	KindStore           Kind = "store_error"
	KindCitation        Kind = "citation_error"
	KindTimeout         Kind = "timeout"
	KindIngestionFailed Kind = "ingestion_failed"
)

// Error is the concrete error type services return. Detail is safe to show
// to a client; Cause is logged server-side but never serialized.
type Error struct {
	Kind    Kind
	Detail  string
	ErrorID string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

func newErr(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, ErrorID: uuid.New().String(), Cause: cause}
}

func Validation(detail string) *Error      { return newErr(KindValidation, detail, nil) }
func NotFound(detail string) *Error        { return newErr(KindNotFound, detail, nil) }
func Auth(detail string) *Error            { return newErr(KindAuth, detail, nil) }
func RateLimited(detail string) *Error     { return newErr(KindRateLimited, detail, nil) }
func Timeout(detail string) *Error         { return newErr(KindTimeout, detail, nil) }
func IngestionFailed(detail string) *Error { return newErr(KindIngestionFailed, detail, nil) }

func Provider(detail string, cause error) *Error { return newErr(KindProvider, detail, cause) }
func Store(detail string, cause error) *Error    { return newErr(KindStore, detail, cause) }
func Citation(detail string) *Error              { return newErr(KindCitation, detail, nil) }

// Wrap attaches a Kind to an arbitrary error, preserving it as Cause.
func Wrap(kind Kind, detail string, cause error) *Error {
	return newErr(kind, detail, cause)
}

// As extracts the first *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err if it (or something it wraps) is an
// *Error, and KindStore otherwise — an unclassified error is treated as an
// internal failure rather than leaking as a 200 or a misleading 4xx.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindStore
}
