package config

const (
	// TopicIngestDocument is the NSQ topic for newly created sources awaiting
	// extraction, chunking, and embedding.
	TopicIngestDocument = "ingest.task.document"

	// TopicIngestResult names an NSQ topic for ingestion outcomes
	// (ready/failed). Nothing publishes to or consumes it: the ingestion
	// pipeline records status and errors on the source row directly.
	TopicIngestResult = "ingest.result"

	// TopicIngestEmbed is the NSQ topic for standalone re-embed requests,
	// consumed by worker.ReEmbedConsumer to regenerate vectors without
	// re-extracting text.
	TopicIngestEmbed = "ingest.embed"
)
