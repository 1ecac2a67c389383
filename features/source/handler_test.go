package source_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/apperr"
	"citeground/internal/domain"

	"citeground/features/source"
)

func multipartUpload(t *testing.T, filename string, content []byte, title string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	if title != "" {
		require.NoError(t, w.WriteField("title", title))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func TestHandler_Upload_Succeeds(t *testing.T) {
	repo := newFakeRepo()
	svc := source.NewService(repo, &fakePublisher{}, t.TempDir(), "")
	h := source.NewHandler(svc, 50)

	body, ct := multipartUpload(t, "doc.pdf", []byte("%PDF-fake"), "My Title")
	req := httptest.NewRequest(http.MethodPost, "/sources/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got domain.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "My Title", got.Title)
	assert.Equal(t, domain.SourceTypePDF, got.Type)
}

func TestHandler_Upload_RejectsNonPDF(t *testing.T) {
	svc := source.NewService(newFakeRepo(), &fakePublisher{}, t.TempDir(), "")
	h := source.NewHandler(svc, 50)

	body, ct := multipartUpload(t, "doc.txt", []byte("hello"), "")
	req := httptest.NewRequest(http.MethodPost, "/sources/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestHandler_Upload_MissingFileIsValidationError(t *testing.T) {
	svc := source.NewService(newFakeRepo(), &fakePublisher{}, t.TempDir(), "")
	h := source.NewHandler(svc, 50)

	body, ct := multipartUpload(t, "", nil, "title only")
	req := httptest.NewRequest(http.MethodPost, "/sources/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()

	h.Upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Ingest_RejectsBothTextAndURL(t *testing.T) {
	svc := source.NewService(newFakeRepo(), &fakePublisher{}, t.TempDir(), "")
	h := source.NewHandler(svc, 50)

	req := httptest.NewRequest(http.MethodPost, "/sources/ingest",
		strings.NewReader(`{"text":"hello","url":"https://example.com"}`))
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Ingest_RejectsNeitherTextNorURL(t *testing.T) {
	svc := source.NewService(newFakeRepo(), &fakePublisher{}, t.TempDir(), "")
	h := source.NewHandler(svc, 50)

	req := httptest.NewRequest(http.MethodPost, "/sources/ingest", strings.NewReader(`{"title":"x"}`))
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Ingest_RejectsDisallowedHost(t *testing.T) {
	svc := source.NewService(newFakeRepo(), &fakePublisher{}, t.TempDir(), "allowed.example.com")
	h := source.NewHandler(svc, 50)

	req := httptest.NewRequest(http.MethodPost, "/sources/ingest",
		strings.NewReader(`{"url":"https://evil.example.com"}`))
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandler_Ingest_TextSucceeds(t *testing.T) {
	svc := source.NewService(newFakeRepo(), &fakePublisher{}, t.TempDir(), "")
	h := source.NewHandler(svc, 50)

	req := httptest.NewRequest(http.MethodPost, "/sources/ingest", strings.NewReader(`{"text":"hello world","title":"Doc"}`))
	rec := httptest.NewRecorder()
	h.Ingest(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var got domain.Source
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.SourceTypeText, got.Type)
}

func TestHandler_Get_NotFound(t *testing.T) {
	repo := newFakeRepo()
	repo.getErr = apperr.NotFound("source not found")
	svc := source.NewService(repo, &fakePublisher{}, t.TempDir(), "")
	h := source.NewHandler(svc, 50)

	req := httptest.NewRequest(http.MethodGet, "/sources/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Delete_NoContent(t *testing.T) {
	svc := source.NewService(newFakeRepo(), &fakePublisher{}, t.TempDir(), "")
	h := source.NewHandler(svc, 50)

	req := httptest.NewRequest(http.MethodDelete, "/sources/s1", nil)
	req.SetPathValue("id", "s1")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandler_List_ReturnsEmptyArrayNotNull(t *testing.T) {
	svc := source.NewService(newFakeRepo(), &fakePublisher{}, t.TempDir(), "")
	h := source.NewHandler(svc, 50)

	req := httptest.NewRequest(http.MethodGet, "/sources", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sources":[]}`, rec.Body.String())
}
