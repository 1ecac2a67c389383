package store

import (
	"context"
	"database/sql"

	"citeground/internal/apperr"
	"citeground/internal/domain"
)

type QueryRepo struct {
	db *sql.DB
}

func NewQueryRepo(db *sql.DB) *QueryRepo {
	return &QueryRepo{db: db}
}

// Create persists the query and its scoped source ids in a single
// transaction, so query_sources always reflects exactly the sources a
// query was allowed to see (used by SourceRepo.Delete's cascade).
func (r *QueryRepo) Create(ctx context.Context, q *domain.Query) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("begin create query tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO queries (id, question) VALUES ($1, $2)`, q.ID, q.Question); err != nil {
		return apperr.Store("create query", err)
	}

	for _, sourceID := range q.SourceIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO query_sources (query_id, source_id) VALUES ($1, $2)`, q.ID, sourceID); err != nil {
			return apperr.Store("link query source", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Store("commit create query tx", err)
	}
	return nil
}
