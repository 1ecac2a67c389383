package httpx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/apperr"
	"citeground/internal/httpx"
)

func TestStatusFor_MapsEveryKind(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindValidation:      http.StatusBadRequest,
		apperr.KindNotFound:        http.StatusNotFound,
		apperr.KindAuth:            http.StatusUnauthorized,
		apperr.KindRateLimited:     http.StatusTooManyRequests,
		apperr.KindProvider:        http.StatusBadGateway,
		apperr.KindCitation:        http.StatusInternalServerError,
		apperr.KindTimeout:         http.StatusGatewayTimeout,
		apperr.KindStore:           http.StatusInternalServerError,
		apperr.KindIngestionFailed: http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, httpx.StatusFor(kind), "kind %s", kind)
	}
}

func TestWriteError_WritesDetailAndErrorID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sources/missing", nil)

	httpx.WriteError(rec, req, apperr.NotFound("source not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail":"source not found"`)
	assert.Contains(t, rec.Body.String(), `"error_id"`)
}

func TestWriteError_UnclassifiedErrorBecomesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/sources", nil)

	httpx.WriteError(rec, req, errors.New("driver: bad connection"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"detail":"internal error"`)
	assert.NotContains(t, rec.Body.String(), "bad connection")
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sources", strings.NewReader(`{"title":"x","bogus":1}`))

	var dst struct {
		Title string `json:"title"`
	}
	err := httpx.DecodeJSON(rec, req, 1<<20, &dst)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
}

func TestDecodeJSON_EmptyBodyIsValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sources", strings.NewReader(""))

	var dst struct{}
	err := httpx.DecodeJSON(rec, req, 1<<20, &dst)
	require.Error(t, err)
	ae, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, ae.Kind)
}

func TestDecodeJSON_ValidBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/sources", strings.NewReader(`{"title":"doc"}`))

	var dst struct {
		Title string `json:"title"`
	}
	err := httpx.DecodeJSON(rec, req, 1<<20, &dst)
	require.NoError(t, err)
	assert.Equal(t, "doc", dst.Title)
}
