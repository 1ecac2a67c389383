package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

// Config holds every environment-driven knob for the service, grouped by
// concern. Defaults mirror spec.md §6.
type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"qurio"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"qurio"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	AIProvider   string `envconfig:"AI_PROVIDER" default:"fake"`
	GeminiAPIKey string `envconfig:"GEMINI_API_KEY"`
	RerankAPIKey string `envconfig:"RERANK_API_KEY"`

	// Server
	ServerPort      int    `envconfig:"SERVER_PORT" default:"8081"`
	QueryLogPath    string `envconfig:"QUERY_LOG_PATH" default:"data/logs/query.log"`
	MaxUploadSizeMB int64  `envconfig:"MAX_UPLOAD_SIZE_MB" default:"50"`
	StorageRoot     string `envconfig:"STORAGE_ROOT" default:"./data/sources"`
	Debug           bool   `envconfig:"DEBUG" default:"false"`
	RequestDeadline int    `envconfig:"REQUEST_DEADLINE_SECONDS" default:"60"`

	// Retrieval / rerank / diversify
	MaxChunksPerQuery       int     `envconfig:"MAX_CHUNKS_PER_QUERY" default:"8"`
	ChunkCharTarget         int     `envconfig:"CHUNK_CHAR_TARGET" default:"5000"`
	ChunkCharOverlap        int     `envconfig:"CHUNK_CHAR_OVERLAP" default:"800"`
	RerankEnabled           bool    `envconfig:"RERANK_ENABLED" default:"true"`
	RerankCandidates        int     `envconfig:"RERANK_CANDIDATES" default:"30"`
	RerankSnippetChars      int     `envconfig:"RERANK_SNIPPET_CHARS" default:"900"`
	RerankProvider          string  `envconfig:"RERANK_PROVIDER" default:""`
	MMREnabled              bool    `envconfig:"MMR_ENABLED" default:"true"`
	MMRLambda               float64 `envconfig:"MMR_LAMBDA" default:"0.7"`
	MMRCandidates           int     `envconfig:"MMR_CANDIDATES" default:"30"`
	HybridAlpha             float64 `envconfig:"HYBRID_ALPHA" default:"0.5"`
	PerSourceRetrievalLimit int     `envconfig:"PER_SOURCE_RETRIEVAL_LIMIT" default:"0"`

	// Provider
	EmbedDim       int `envconfig:"EMBED_DIM" default:"1536"`
	EmbedBatchSize int `envconfig:"EMBED_BATCH_SIZE" default:"64"`

	// Ingestion caps
	MaxPDFBytes  int64  `envconfig:"MAX_PDF_BYTES" default:"25000000"`
	MaxPDFPages  int    `envconfig:"MAX_PDF_PAGES" default:"300"`
	MaxURLBytes  int64  `envconfig:"MAX_URL_BYTES" default:"2000000"`
	MaxTextBytes int64  `envconfig:"MAX_TEXT_BYTES" default:"2000000"`
	URLAllowlist string `envconfig:"URL_ALLOWLIST" default:""`

	// Worker tier
	WorkerConcurrency        int `envconfig:"WORKER_CONCURRENCY" default:"4"`
	WorkerPrefetchMultiplier int `envconfig:"WORKER_PREFETCH_MULTIPLIER" default:"2"`
	WorkerMaxTasksPerChild   int `envconfig:"WORKER_MAX_TASKS_PER_CHILD" default:"200"`
	WorkerVisibilityTimeoutS int `envconfig:"WORKER_VISIBILITY_TIMEOUT" default:"60"`
	WorkerTaskSoftTimeLimitS int `envconfig:"WORKER_TASK_SOFT_TIME_LIMIT" default:"120"`
	WorkerTaskTimeLimitS     int `envconfig:"WORKER_TASK_TIME_LIMIT" default:"180"`

	RateLimitBackend string `envconfig:"RATE_LIMIT_BACKEND" default:"internal"`

	// Resilience
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

// Load reads configuration from the environment, optionally seeded by a
// .env file in the working directory or repo root.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cwd, _ := os.Getwd()
	rootEnv := filepath.Join(cwd, "../../.env")
	_ = godotenv.Load(rootEnv)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.EmbedDim <= 0 {
		return fmt.Errorf("%w: EMBED_DIM must be positive", ErrMissingRequired)
	}
	return nil
}
