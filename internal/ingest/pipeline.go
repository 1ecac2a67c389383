package ingest

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"citeground/internal/apperr"
	"citeground/internal/chunk"
	"citeground/internal/domain"
	"citeground/internal/provider"
)

// SourceRepo is the subset of store.SourceRepo the pipeline needs.
type SourceRepo interface {
	Get(ctx context.Context, id string) (*domain.Source, error)
	UpdateStatus(ctx context.Context, id string, to domain.SourceStatus, errMsg string) error
}

// ChunkRepo is the subset of store.ChunkRepo the pipeline needs.
type ChunkRepo interface {
	InsertBatch(ctx context.Context, sourceID string, chunks []domain.Chunk) error
	DeleteBySource(ctx context.Context, sourceID string) error
}

// Options configures one pipeline run, mirroring spec.md §6's chunking
// and ingestion-cap configuration.
type Options struct {
	ChunkOptions   chunk.Options
	Limits         Limits
	EmbedBatchSize int
}

func (o Options) withDefaults() Options {
	if o.EmbedBatchSize <= 0 {
		o.EmbedBatchSize = 64
	}
	return o
}

// Pipeline runs extract -> chunk -> embed -> index for one source. The
// pipeline refuses to re-run when the source isn't in UPLOADED or
// PROCESSING state, matching the worker tier's idempotency boundary
// (spec.md §5).
type Pipeline struct {
	sources SourceRepo
	chunks  ChunkRepo
	embed   provider.Provider
}

func NewPipeline(sources SourceRepo, chunks ChunkRepo, embed provider.Provider) *Pipeline {
	return &Pipeline{sources: sources, chunks: chunks, embed: embed}
}

// Run ingests data (or fetches url, when sourceType is SourceTypeURL) for
// sourceID, transitioning UPLOADED -> PROCESSING -> READY|FAILED.
func (p *Pipeline) Run(ctx context.Context, sourceID string, data []byte, url string, opts Options) error {
	opts = opts.withDefaults()

	src, err := p.sources.Get(ctx, sourceID)
	if err != nil {
		return err
	}
	if src.Status != domain.SourceUploaded && src.Status != domain.SourceProcessing {
		return apperr.IngestionFailed(fmt.Sprintf("source %s is %s, refusing to re-ingest", sourceID, src.Status))
	}

	if src.Status == domain.SourceUploaded {
		if err := p.sources.UpdateStatus(ctx, sourceID, domain.SourceProcessing, ""); err != nil {
			return err
		}
	}

	if err := p.ingest(ctx, src, data, url, opts); err != nil {
		ae, _ := apperr.As(err)
		detail := err.Error()
		if ae != nil {
			detail = ae.Detail
		}
		if serr := p.sources.UpdateStatus(ctx, sourceID, domain.SourceFailed, detail); serr != nil {
			return serr
		}
		return err
	}

	return p.sources.UpdateStatus(ctx, sourceID, domain.SourceReady, "")
}

func (p *Pipeline) ingest(ctx context.Context, src *domain.Source, data []byte, url string, opts Options) error {
	extracted, err := Extract(ctx, src.Type, data, url, opts.Limits)
	if err != nil {
		return err
	}
	if extracted.Text == "" {
		return apperr.IngestionFailed("extraction produced no text")
	}

	chunkOpts := opts.ChunkOptions
	chunkOpts.Pages = extracted.Pages
	chunks := chunk.Chunk(extracted.Text, chunkOpts)
	if len(chunks) == 0 {
		return apperr.IngestionFailed("chunking produced no chunks")
	}

	for i := range chunks {
		chunks[i].ID = uuid.NewString()
		chunks[i].SourceID = src.ID
	}

	if err := p.embedChunks(ctx, chunks, opts.EmbedBatchSize); err != nil {
		return err
	}

	if err := p.chunks.DeleteBySource(ctx, src.ID); err != nil {
		return err
	}
	if err := p.chunks.InsertBatch(ctx, src.ID, chunks); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) embedChunks(ctx context.Context, chunks []domain.Chunk, batchSize int) error {
	for start := 0; start < len(chunks); start += batchSize {
		end := start + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		texts := make([]string, end-start)
		for i := range texts {
			texts[i] = chunks[start+i].Text
		}
		vecs, err := p.embed.Embed(ctx, texts)
		if err != nil {
			return apperr.Provider("embed chunks", err)
		}
		if len(vecs) != len(texts) {
			return apperr.Provider("embed chunks", fmt.Errorf("expected %d vectors, got %d", len(texts), len(vecs)))
		}
		for i, v := range vecs {
			chunks[start+i].Embedding = v
		}
	}
	return nil
}

// ReEmbed regenerates vectors for a source's existing chunks without
// re-extracting text, called by worker.ReEmbedConsumer for embed-only
// requests.
func (p *Pipeline) ReEmbed(ctx context.Context, sourceID string, chunks []domain.Chunk, batchSize int) error {
	if batchSize <= 0 {
		batchSize = 64
	}
	if err := p.embedChunks(ctx, chunks, batchSize); err != nil {
		return err
	}
	if err := p.chunks.DeleteBySource(ctx, sourceID); err != nil {
		return err
	}
	return p.chunks.InsertBatch(ctx, sourceID, chunks)
}
