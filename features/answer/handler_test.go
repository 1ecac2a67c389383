package answer_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/features/answer"
	"citeground/internal/domain"
)

func newTestHandler(t *testing.T, chunks []domain.Chunk, srcRepo *fakeSourceRepo, answers *fakeAnswerRepo) *answer.Handler {
	t.Helper()
	svc, _ := newTestService(t, chunks, defaultOpts(), srcRepo, answers)
	return answer.NewHandler(svc)
}

func TestHandler_Query_Succeeds(t *testing.T) {
	chunks := []domain.Chunk{testChunk("c1", "s1", "The capital of France is Paris, a major European city.")}
	h := newTestHandler(t, chunks, readySources("s1"), newFakeAnswerRepo())

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"question":"What is the capital of France?","source_ids":["s1"]}`))
	rec := httptest.NewRecorder()
	h.Query(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "direct", body["answer_style"])
	assert.NotEmpty(t, body["answer_id"])
}

func TestHandler_Query_NoReadySourcesIs422(t *testing.T) {
	notReady := &fakeSourceRepo{byID: map[string]*domain.Source{
		"s1": {ID: "s1", Status: domain.SourceProcessing},
	}}
	h := newTestHandler(t, nil, notReady, newFakeAnswerRepo())

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"question":"anything","source_ids":["s1"]}`))
	rec := httptest.NewRecorder()
	h.Query(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandler_Query_EmptyQuestionIsBadRequest(t *testing.T) {
	h := newTestHandler(t, nil, readySources("s1"), newFakeAnswerRepo())

	req := httptest.NewRequest(http.MethodPost, "/query",
		strings.NewReader(`{"question":"","source_ids":["s1"]}`))
	rec := httptest.NewRecorder()
	h.Query(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Query_MalformedBodyIsBadRequest(t *testing.T) {
	h := newTestHandler(t, nil, readySources("s1"), newFakeAnswerRepo())

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{not json`))
	rec := httptest.NewRecorder()
	h.Query(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_QueryVerified_ProducesClaims(t *testing.T) {
	chunks := []domain.Chunk{testChunk("c1", "s1", "The capital of France is Paris. Paris has a large population.")}
	h := newTestHandler(t, chunks, readySources("s1"), newFakeAnswerRepo())

	req := httptest.NewRequest(http.MethodPost, "/query/verified",
		strings.NewReader(`{"question":"What is the capital of France?","source_ids":["s1"]}`))
	rec := httptest.NewRecorder()
	h.QueryVerified(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body["verification_summary"])
}

func TestHandler_QueryVerifiedHighlights_AttachesHighlights(t *testing.T) {
	chunks := []domain.Chunk{testChunk("c1", "s1", "The capital of France is Paris. Paris has a large population.")}
	h := newTestHandler(t, chunks, readySources("s1"), newFakeAnswerRepo())

	req := httptest.NewRequest(http.MethodPost, "/query/verified/highlights",
		strings.NewReader(`{"question":"What is the capital of France?","source_ids":["s1"]}`))
	rec := httptest.NewRecorder()
	h.QueryVerifiedHighlights(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Claims []domain.Claim `json:"claims"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.NotEmpty(t, got.Claims)
}

func TestHandler_Query_IdempotencyKeyHeaderReplays(t *testing.T) {
	chunks := []domain.Chunk{testChunk("c1", "s1", "The capital of France is Paris, a major European city.")}
	answers := newFakeAnswerRepo()
	h := newTestHandler(t, chunks, readySources("s1"), answers)

	reqBody := `{"question":"What is the capital of France?","source_ids":["s1"]}`

	req1 := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(reqBody))
	req1.Header.Set("Idempotency-Key", "abc123")
	rec1 := httptest.NewRecorder()
	h.Query(rec1, req1)
	require.Equal(t, http.StatusOK, rec1.Code)

	var first map[string]any
	require.NoError(t, json.Unmarshal(rec1.Body.Bytes(), &first))

	req2 := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(reqBody))
	req2.Header.Set("Idempotency-Key", "abc123")
	rec2 := httptest.NewRecorder()
	h.Query(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)

	var second map[string]any
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &second))
	assert.Equal(t, first["answer_id"], second["answer_id"])
}

func TestHandler_Get_ReturnsStoredAnswer(t *testing.T) {
	answers := newFakeAnswerRepo()
	answers.byID["a1"] = &domain.Answer{
		ID:          "a1",
		QueryID:     "q1",
		AnswerText:  "Paris.",
		AnswerStyle: domain.AnswerStyleDirect,
		Citations:   []domain.Citation{{ChunkID: "c1", SourceID: "s1"}},
	}
	h := newTestHandler(t, nil, readySources("s1"), answers)

	req := httptest.NewRequest(http.MethodGet, "/answers/a1", nil)
	req.SetPathValue("id", "a1")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a1", body["answer_id"])
}

func TestHandler_Get_NotFound(t *testing.T) {
	h := newTestHandler(t, nil, readySources("s1"), newFakeAnswerRepo())

	req := httptest.NewRequest(http.MethodGet, "/answers/missing", nil)
	req.SetPathValue("id", "missing")
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
