package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"citeground/internal/domain"
	"citeground/internal/middleware"
)

// ReEmbedTaskPayload is the message body published to TopicIngestEmbed:
// a standalone request to regenerate a source's chunk embeddings without
// re-extracting or re-chunking its text.
type ReEmbedTaskPayload struct {
	SourceID      string `json:"source_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ChunkLister fetches a source's existing chunks in ordinal order.
type ChunkLister interface {
	ListBySource(ctx context.Context, sourceID string) ([]domain.Chunk, error)
}

// ReEmbedFunc adapts ingest.Pipeline.ReEmbed into a narrow function value,
// matching PipelineFunc's rationale for IngestConsumer.
type ReEmbedFunc func(ctx context.Context, sourceID string, chunks []domain.Chunk) error

// ReEmbedConsumer handles ingest.embed messages.
type ReEmbedConsumer struct {
	run      ReEmbedFunc
	chunks   ChunkLister
	taskTime time.Duration
}

func NewReEmbedConsumer(run ReEmbedFunc, chunks ChunkLister, taskTimeLimit time.Duration) *ReEmbedConsumer {
	if taskTimeLimit <= 0 {
		taskTimeLimit = 180 * time.Second
	}
	return &ReEmbedConsumer{run: run, chunks: chunks, taskTime: taskTimeLimit}
}

// HandleMessage implements nsq.Handler, mirroring IngestConsumer's
// poison-pill and non-retry-on-failure semantics.
func (c *ReEmbedConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload ReEmbedTaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		slog.Error("poison pill: invalid reembed task json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.taskTime)
	defer cancel()

	chunks, err := c.chunks.ListBySource(ctx, payload.SourceID)
	if err != nil {
		slog.ErrorContext(ctx, "list chunks for reembed failed", "error", err, "source_id", payload.SourceID)
		return nil
	}
	if len(chunks) == 0 {
		slog.WarnContext(ctx, "reembed requested for source with no chunks", "source_id", payload.SourceID)
		return nil
	}

	if err := c.run(ctx, payload.SourceID, chunks); err != nil {
		slog.ErrorContext(ctx, "reembed pipeline failed", "error", err, "source_id", payload.SourceID)
		return nil
	}

	slog.InfoContext(ctx, "source reembedded", "source_id", payload.SourceID, "chunk_count", len(chunks))
	return nil
}
