package ingest_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/apperr"
	"citeground/internal/domain"
	"citeground/internal/ingest"
	"citeground/internal/provider/fake"
)

type fakeSourceRepo struct {
	src *domain.Source
}

func (r *fakeSourceRepo) Get(ctx context.Context, id string) (*domain.Source, error) {
	if r.src == nil || r.src.ID != id {
		return nil, apperr.NotFound("source not found")
	}
	return r.src, nil
}

func (r *fakeSourceRepo) UpdateStatus(ctx context.Context, id string, to domain.SourceStatus, errMsg string) error {
	r.src.Status = to
	r.src.Error = errMsg
	return nil
}

type fakeChunkRepo struct {
	inserted []domain.Chunk
	deleted  bool
}

func (r *fakeChunkRepo) InsertBatch(ctx context.Context, sourceID string, chunks []domain.Chunk) error {
	r.inserted = chunks
	return nil
}

func (r *fakeChunkRepo) DeleteBySource(ctx context.Context, sourceID string) error {
	r.deleted = true
	return nil
}

func TestPipeline_Run_TextSourceSucceeds(t *testing.T) {
	src := &domain.Source{ID: "s1", Type: domain.SourceTypeText, Status: domain.SourceUploaded}
	sources := &fakeSourceRepo{src: src}
	chunks := &fakeChunkRepo{}
	p := ingest.NewPipeline(sources, chunks, fake.New(8))

	err := p.Run(context.Background(), "s1", []byte("Paris is the capital of France. It is a large city."), "", ingest.Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.SourceReady, src.Status)
	require.NotEmpty(t, chunks.inserted)
	for _, c := range chunks.inserted {
		assert.NotEmpty(t, c.Embedding)
		assert.Equal(t, "s1", c.SourceID)
	}
}

func TestPipeline_Run_RefusesReadySource(t *testing.T) {
	src := &domain.Source{ID: "s1", Type: domain.SourceTypeText, Status: domain.SourceReady}
	sources := &fakeSourceRepo{src: src}
	chunks := &fakeChunkRepo{}
	p := ingest.NewPipeline(sources, chunks, fake.New(8))

	err := p.Run(context.Background(), "s1", []byte("text"), "", ingest.Options{})
	require.Error(t, err)
	assert.Empty(t, chunks.inserted)
}

func TestPipeline_Run_EmptyTextFailsSource(t *testing.T) {
	src := &domain.Source{ID: "s1", Type: domain.SourceTypeText, Status: domain.SourceUploaded}
	sources := &fakeSourceRepo{src: src}
	chunks := &fakeChunkRepo{}
	p := ingest.NewPipeline(sources, chunks, fake.New(8))

	err := p.Run(context.Background(), "s1", []byte("   "), "", ingest.Options{})
	require.Error(t, err)
	assert.Equal(t, domain.SourceFailed, src.Status)
	assert.NotEmpty(t, src.Error)
}
