// Package store implements the Postgres persistence layer: sources,
// chunks (with pgvector embeddings and tsvector full text), queries, and
// answers, all in one relational database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open opens the database and retries ping up to attempts times, sleeping
// delay between attempts, matching the teacher's bootstrap resilience.
func Open(ctx context.Context, dsn string, attempts int, delay time.Duration) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	var pingErr error
	for i := 0; i < attempts; i++ {
		pingErr = db.PingContext(ctx)
		if pingErr == nil {
			return db, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("db not reachable after %d attempts: %w", attempts, pingErr)
}

// DSN builds a libpq connection string from discrete config fields.
func DSN(host string, port int, user, pass, name string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, pass, name)
}

// EmbeddingColumnDim reads the configured dimension of chunks.embedding
// straight from Postgres' system catalog. pgvector stores a vector(N)
// column's N directly in pg_attribute.atttypmod (no VARHDRSZ offset, unlike
// varchar(N)); atttypmod is -1 when the column was declared as a bare
// vector with no fixed dimension.
func EmbeddingColumnDim(ctx context.Context, db *sql.DB) (int, error) {
	var typmod int
	err := db.QueryRowContext(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = 'chunks'::regclass AND attname = 'embedding' AND NOT attisdropped
	`).Scan(&typmod)
	if err != nil {
		return 0, fmt.Errorf("read chunks.embedding column type: %w", err)
	}
	return typmod, nil
}
