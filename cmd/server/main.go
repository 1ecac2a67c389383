package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/nsqio/go-nsq"

	"citeground/features/answer"
	"citeground/features/source"
	"citeground/internal/chunk"
	"citeground/internal/config"
	"citeground/internal/debugapi"
	"citeground/internal/domain"
	"citeground/internal/health"
	"citeground/internal/ingest"
	"citeground/internal/logger"
	"citeground/internal/middleware"
	"citeground/internal/provider"
	"citeground/internal/provider/fake"
	"citeground/internal/provider/gemini"
	"citeground/internal/ratelimit"
	"citeground/internal/rerank"
	"citeground/internal/retrieval"
	"citeground/internal/store"
	"citeground/internal/synth"
	"citeground/internal/verify"
	"citeground/internal/worker"
)

func main() {
	baseLogger := slog.New(logger.NewContextHandler(slog.NewJSONHandler(os.Stdout, nil)))
	slog.SetDefault(baseLogger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dsn := store.DSN(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPass, cfg.DBName)
	retryDelay := time.Duration(cfg.BootstrapRetryDelaySeconds) * time.Second
	db, err := store.Open(ctx, dsn, cfg.BootstrapRetryAttempts, retryDelay)
	if err != nil {
		slog.Error("failed to open db connection", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := runMigrations(db, cfg.MigrationPath); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("migrations applied successfully")

	if err := checkEmbedDim(ctx, db, cfg.EmbedDim); err != nil {
		slog.Error("embed dim mismatch", "error", err)
		os.Exit(1)
	}

	aiProvider, closeProvider, err := newProvider(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize ai provider", "error", err)
		os.Exit(1)
	}
	if closeProvider != nil {
		defer closeProvider()
	}

	nsqCfg := nsq.NewConfig()
	nsqProducer, err := nsq.NewProducer(cfg.NSQDHost, nsqCfg)
	if err != nil {
		slog.Error("failed to create NSQ producer", "error", err)
		os.Exit(1)
	}
	defer nsqProducer.Stop()

	sourceRepo := store.NewSourceRepo(db)
	chunkRepo := store.NewChunkRepo(db)
	queryRepo := store.NewQueryRepo(db)
	answerRepo := store.NewAnswerRepo(db)

	sourceService := source.NewService(sourceRepo, nsqProducer, cfg.StorageRoot, cfg.URLAllowlist)
	sourceHandler := source.NewHandler(sourceService, cfg.MaxUploadSizeMB)

	ingestOpts := ingest.Options{
		ChunkOptions: chunk.Options{
			TargetChars:  cfg.ChunkCharTarget,
			OverlapChars: cfg.ChunkCharOverlap,
		},
		Limits: ingest.Limits{
			MaxPDFBytes:  cfg.MaxPDFBytes,
			MaxPDFPages:  cfg.MaxPDFPages,
			MaxURLBytes:  cfg.MaxURLBytes,
			MaxTextBytes: cfg.MaxTextBytes,
		},
		EmbedBatchSize: cfg.EmbedBatchSize,
	}
	pipeline := ingest.NewPipeline(sourceRepo, chunkRepo, aiProvider)

	taskTimeLimit := time.Duration(cfg.WorkerTaskTimeLimitS) * time.Second
	ingestConsumer := worker.NewIngestConsumer(
		func(ctx context.Context, sourceID string, data []byte, url string) error {
			return pipeline.Run(ctx, sourceID, data, url, ingestOpts)
		},
		worker.FileBlobLoader{Root: cfg.StorageRoot},
		taskTimeLimit,
	)
	reembedConsumer := worker.NewReEmbedConsumer(
		func(ctx context.Context, sourceID string, chunks []domain.Chunk) error {
			return pipeline.ReEmbed(ctx, sourceID, chunks, cfg.EmbedBatchSize)
		},
		chunkRepo,
		taskTimeLimit,
	)

	connectConsumer(cfg, config.TopicIngestDocument, "backend", ingestConsumer)
	connectConsumer(cfg, config.TopicIngestEmbed, "backend", reembedConsumer)

	retriever := retrieval.New(aiProvider, chunkRepo, chunkRepo)
	reranker := newReranker(cfg)
	synthesizer := synth.New(aiProvider)
	verifier := verify.New(aiProvider)

	answerOpts := answer.Options{
		RerankEnabled:           cfg.RerankEnabled,
		RetrievalCandidates:     cfg.RerankCandidates,
		HybridAlpha:             cfg.HybridAlpha,
		PerSourceRetrievalLimit: cfg.PerSourceRetrievalLimit,
		MMREnabled:              cfg.MMREnabled,
		MMRLambda:               cfg.MMRLambda,
		MaxChunksPerQuery:       cfg.MaxChunksPerQuery,
		SynthSnippetChars:       cfg.RerankSnippetChars,
		Debug:                   cfg.Debug,
	}
	answerService := answer.New(sourceRepo, queryRepo, answerRepo, retriever, reranker, synthesizer, verifier, answerOpts)
	answerHandler := answer.NewHandler(answerService)

	healthHandler := health.NewHandler(db, nsqProducer, aiProvider)
	limiter := ratelimit.New(cfg.RateLimitBackend, ratelimit.Config{RequestsPerSecond: 5, BurstSize: 10})

	mux := http.NewServeMux()
	mux.Handle("POST /sources/upload", rateLimited(limiter, http.HandlerFunc(sourceHandler.Upload)))
	mux.Handle("POST /sources/ingest", rateLimited(limiter, http.HandlerFunc(sourceHandler.Ingest)))
	mux.Handle("GET /sources", http.HandlerFunc(sourceHandler.List))
	mux.Handle("GET /sources/{id}", http.HandlerFunc(sourceHandler.Get))
	mux.Handle("DELETE /sources/{id}", http.HandlerFunc(sourceHandler.Delete))

	mux.Handle("POST /query", rateLimited(limiter, http.HandlerFunc(answerHandler.Query)))
	mux.Handle("POST /query/verified", rateLimited(limiter, http.HandlerFunc(answerHandler.QueryVerified)))
	mux.Handle("POST /query/verified/highlights", rateLimited(limiter, http.HandlerFunc(answerHandler.QueryVerifiedHighlights)))
	mux.Handle("GET /answers/{id}", http.HandlerFunc(answerHandler.Get))
	mux.Handle("GET /answers/{id}/grouped", http.HandlerFunc(answerHandler.Get))
	mux.Handle("GET /answers/{id}/highlights", http.HandlerFunc(answerHandler.Get))

	mux.Handle("GET /health", http.HandlerFunc(healthHandler.Live))
	mux.Handle("GET /health/deps", http.HandlerFunc(healthHandler.Deps))

	if cfg.Debug {
		debugHandler := debugapi.NewHandler(retriever)
		mux.Handle("POST /debug/candidates", http.HandlerFunc(debugHandler.Candidates))
	}

	deadline := time.Duration(cfg.RequestDeadline) * time.Second
	handler := middleware.CorrelationID(middleware.WithDeadline(deadline)(mux))

	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	slog.Info("server starting", "port", cfg.ServerPort)
	if err := http.ListenAndServe(addr, handler); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func runMigrations(db *sql.DB, path string) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migration instance: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// checkEmbedDim fails fast at startup if EMBED_DIM doesn't match the
// chunks.embedding column's actual configured vector dimension, instead of
// letting a mismatched insert fail lazily on the first ingested chunk.
func checkEmbedDim(ctx context.Context, db *sql.DB, embedDim int) error {
	dim, err := store.EmbeddingColumnDim(ctx, db)
	if err != nil {
		return err
	}
	if dim <= 0 {
		return nil
	}
	if dim != embedDim {
		return fmt.Errorf("EMBED_DIM=%d does not match chunks.embedding column dimension %d", embedDim, dim)
	}
	return nil
}

func newProvider(ctx context.Context, cfg *config.Config) (provider.Provider, func(), error) {
	if cfg.AIProvider == "gemini" {
		p, err := gemini.New(ctx, cfg.GeminiAPIKey, cfg.EmbedDim)
		if err != nil {
			return nil, nil, err
		}
		return p, func() { _ = p.Close() }, nil
	}
	return fake.New(cfg.EmbedDim), nil, nil
}

func newReranker(cfg *config.Config) rerank.Reranker {
	if !cfg.RerankEnabled {
		return rerank.Noop{}
	}
	if cfg.RerankProvider != "" {
		return rerank.NewHTTPProvider(cfg.RerankProvider, cfg.RerankAPIKey)
	}
	return rerank.NewDefault(cfg.RerankSnippetChars)
}

func connectConsumer(cfg *config.Config, topic, channel string, handler nsq.Handler) {
	nsqCfg := nsq.NewConfig()
	maxInFlight := cfg.WorkerConcurrency * cfg.WorkerPrefetchMultiplier
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	nsqCfg.MaxInFlight = maxInFlight

	consumer, err := nsq.NewConsumer(topic, channel, nsqCfg)
	if err != nil {
		slog.Error("failed to create nsq consumer", "topic", topic, "error", err)
		return
	}
	consumer.AddHandler(handler)
	if err := consumer.ConnectToNSQLookupd(cfg.NSQLookupd); err != nil {
		slog.Error("failed to connect nsq consumer to lookupd", "topic", topic, "error", err)
		return
	}
	slog.Info("nsq consumer connected", "topic", topic, "channel", channel)
}

func rateLimited(limiter *ratelimit.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(r.RemoteAddr) {
			http.Error(w, `{"detail":"rate limit exceeded"}`, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
