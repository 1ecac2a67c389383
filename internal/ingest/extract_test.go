package ingest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/ingest"
)

func TestExtractText_NormalizesWhitespace(t *testing.T) {
	out, err := ingest.ExtractText([]byte("hello   \n\n\n\nworld  "))
	require.NoError(t, err)
	assert.Equal(t, "hello\n\nworld", out.Text)
}

func TestExtractURL_StripsScriptAndStyle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><style>.x{}</style></head><body><script>evil()</script><p>Hello world</p></body></html>`))
	}))
	defer srv.Close()

	out, err := ingest.ExtractURL(context.Background(), srv.URL, 1<<20)
	require.NoError(t, err)
	assert.Contains(t, out.Text, "Hello world")
	assert.NotContains(t, out.Text, "evil()")
}

func TestExtractURL_RejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 100))
	}))
	defer srv.Close()

	_, err := ingest.ExtractURL(context.Background(), srv.URL, 10)
	require.Error(t, err)
}

func TestExtractURL_RejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := ingest.ExtractURL(context.Background(), srv.URL, 1<<20)
	require.Error(t, err)
}
