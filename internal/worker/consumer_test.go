package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"citeground/internal/worker"
)

type fakeBlobLoader struct {
	data []byte
	err  error
}

func (f fakeBlobLoader) Load(ctx context.Context, path string) ([]byte, error) {
	return f.data, f.err
}

func TestIngestConsumer_HandleMessage_RunsPipeline(t *testing.T) {
	var gotSourceID string
	var gotData []byte
	run := func(ctx context.Context, sourceID string, data []byte, url string) error {
		gotSourceID = sourceID
		gotData = data
		return nil
	}
	c := worker.NewIngestConsumer(run, fakeBlobLoader{data: []byte("hello")}, 0)

	payload := worker.IngestTaskPayload{SourceID: "s1", SourceType: "text", StoragePath: "s1.txt"}
	body, _ := json.Marshal(payload)

	err := c.HandleMessage(&nsq.Message{Body: body})
	require.NoError(t, err)
	assert.Equal(t, "s1", gotSourceID)
	assert.Equal(t, []byte("hello"), gotData)
}

func TestIngestConsumer_HandleMessage_InvalidJSONIsPoisonPill(t *testing.T) {
	c := worker.NewIngestConsumer(
		func(ctx context.Context, sourceID string, data []byte, url string) error { return nil },
		fakeBlobLoader{}, 0)

	err := c.HandleMessage(&nsq.Message{Body: []byte("not json")})
	assert.NoError(t, err)
}

func TestIngestConsumer_HandleMessage_PipelineFailureIsNotRetried(t *testing.T) {
	run := func(ctx context.Context, sourceID string, data []byte, url string) error {
		return errors.New("boom")
	}
	c := worker.NewIngestConsumer(run, fakeBlobLoader{data: []byte("x")}, 0)

	payload := worker.IngestTaskPayload{SourceID: "s1", SourceType: "text", StoragePath: "s1.txt"}
	body, _ := json.Marshal(payload)

	err := c.HandleMessage(&nsq.Message{Body: body})
	assert.NoError(t, err)
}

func TestIngestConsumer_HandleMessage_URLSourceSkipsBlobLoad(t *testing.T) {
	var calledBlobLoad bool
	run := func(ctx context.Context, sourceID string, data []byte, url string) error {
		return nil
	}
	c := worker.NewIngestConsumer(run, fakeBlobLoaderSpy{&calledBlobLoad}, 0)

	payload := worker.IngestTaskPayload{SourceID: "s1", SourceType: "url", URL: "http://example.com"}
	body, _ := json.Marshal(payload)

	err := c.HandleMessage(&nsq.Message{Body: body})
	require.NoError(t, err)
	assert.False(t, calledBlobLoad)
}

type fakeBlobLoaderSpy struct {
	called *bool
}

func (f fakeBlobLoaderSpy) Load(ctx context.Context, path string) ([]byte, error) {
	*f.called = true
	return nil, nil
}
