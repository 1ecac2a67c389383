package apperr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/apperr"
)

func TestConstructors_SetKindAndErrorID(t *testing.T) {
	cases := []struct {
		name string
		err  *apperr.Error
		kind apperr.Kind
	}{
		{"validation", apperr.Validation("bad input"), apperr.KindValidation},
		{"not found", apperr.NotFound("no such source"), apperr.KindNotFound},
		{"auth", apperr.Auth("missing api key"), apperr.KindAuth},
		{"rate limited", apperr.RateLimited("too many requests"), apperr.KindRateLimited},
		{"timeout", apperr.Timeout("deadline exceeded"), apperr.KindTimeout},
		{"ingestion failed", apperr.IngestionFailed("extraction failed"), apperr.KindIngestionFailed},
		{"citation", apperr.Citation("unknown chunk id"), apperr.KindCitation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.err.Kind)
			assert.NotEmpty(t, tc.err.ErrorID)
		})
	}
}

func TestProviderAndStore_PreserveCause(t *testing.T) {
	cause := errors.New("connection refused")

	p := apperr.Provider("embedder unreachable", cause)
	assert.Equal(t, apperr.KindProvider, p.Kind)
	assert.ErrorIs(t, p, cause)

	s := apperr.Store("insert failed", cause)
	assert.Equal(t, apperr.KindStore, s.Kind)
	assert.ErrorIs(t, s, cause)
}

func TestAs_UnwrapsWrappedError(t *testing.T) {
	base := apperr.Validation("missing question")
	wrapped := fmt.Errorf("handling query: %w", base)

	got, ok := apperr.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, got.Kind)
}

func TestKindOf_DefaultsToStoreForUnclassifiedError(t *testing.T) {
	assert.Equal(t, apperr.KindStore, apperr.KindOf(errors.New("boom")))
	assert.Equal(t, apperr.KindTimeout, apperr.KindOf(apperr.Timeout("slow")))
}
