// Package worker wraps the ingestion pipeline in an NSQ consumer: the
// message handler decodes a task payload, runs the pipeline, and relies
// on the pipeline's own status transitions for idempotency, so at-least-
// once delivery is safe to retry.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nsqio/go-nsq"

	"citeground/internal/domain"
	"citeground/internal/middleware"
)

// IngestTaskPayload is the message body published to TopicIngestDocument.
type IngestTaskPayload struct {
	SourceID      string `json:"source_id"`
	SourceType    string `json:"source_type"`
	URL           string `json:"url,omitempty"`
	StoragePath   string `json:"storage_path,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// BlobLoader fetches the raw bytes for a locally-stored upload (PDF/text).
// URL sources are fetched directly by the pipeline's extractor instead.
type BlobLoader interface {
	Load(ctx context.Context, path string) ([]byte, error)
}

// PipelineFunc adapts ingest.Pipeline.Run (whose Options type lives in a
// package this consumer shouldn't need to import just to be testable)
// into a narrow function value.
type PipelineFunc func(ctx context.Context, sourceID string, data []byte, url string) error

// IngestConsumer handles ingest.task messages by loading the source blob
// (when applicable) and invoking the ingestion pipeline.
type IngestConsumer struct {
	run      PipelineFunc
	blobs    BlobLoader
	taskTime time.Duration
}

func NewIngestConsumer(run PipelineFunc, blobs BlobLoader, taskTimeLimit time.Duration) *IngestConsumer {
	if taskTimeLimit <= 0 {
		taskTimeLimit = 180 * time.Second
	}
	return &IngestConsumer{run: run, blobs: blobs, taskTime: taskTimeLimit}
}

// HandleMessage implements nsq.Handler. A malformed payload is a poison
// pill: logged and dropped rather than retried.
func (c *IngestConsumer) HandleMessage(m *nsq.Message) error {
	if len(m.Body) == 0 {
		return nil
	}

	var payload IngestTaskPayload
	if err := json.Unmarshal(m.Body, &payload); err != nil {
		slog.Error("poison pill: invalid ingest task json", "error", err)
		return nil
	}

	ctx := context.Background()
	if payload.CorrelationID != "" {
		ctx = middleware.WithCorrelationID(ctx, payload.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(ctx, c.taskTime)
	defer cancel()

	var data []byte
	if payload.SourceType != string(domain.SourceTypeURL) {
		blob, err := c.blobs.Load(ctx, payload.StoragePath)
		if err != nil {
			slog.ErrorContext(ctx, "load source blob failed", "error", err, "source_id", payload.SourceID)
			return fmt.Errorf("load blob: %w", err)
		}
		data = blob
	}

	if err := c.run(ctx, payload.SourceID, data, payload.URL); err != nil {
		slog.ErrorContext(ctx, "ingest pipeline failed", "error", err, "source_id", payload.SourceID)
		// The pipeline already recorded FAILED status on the source row;
		// returning nil here avoids NSQ redelivering work the pipeline's
		// own status guard would just refuse to redo.
		return nil
	}

	slog.InfoContext(ctx, "source ingested", "source_id", payload.SourceID)
	return nil
}
