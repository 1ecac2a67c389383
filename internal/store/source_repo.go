package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"citeground/internal/apperr"
	"citeground/internal/domain"
)

type SourceRepo struct {
	db *sql.DB
}

func NewSourceRepo(db *sql.DB) *SourceRepo {
	return &SourceRepo{db: db}
}

func (r *SourceRepo) Create(ctx context.Context, s *domain.Source) error {
	query := `INSERT INTO sources (id, title, source_type, original_filename, status, error, ingest_task_id)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)
	          RETURNING created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		s.ID, s.Title, s.Type, s.OriginalFilename, s.Status, nullString(s.Error), nullString(s.IngestTaskID),
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *SourceRepo) Get(ctx context.Context, id string) (*domain.Source, error) {
	query := `SELECT id, title, source_type, original_filename, status, COALESCE(error, ''),
	                 created_at, updated_at, COALESCE(ingest_task_id, '')
	          FROM sources WHERE id = $1`
	s := &domain.Source{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Title, &s.Type, &s.OriginalFilename, &s.Status, &s.Error,
		&s.CreatedAt, &s.UpdatedAt, &s.IngestTaskID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("source not found")
	}
	if err != nil {
		return nil, apperr.Store("get source", err)
	}
	return s, nil
}

// ListFilter narrows List to a status and/or source type, with paging.
// Zero values are unfiltered/unpaged (Limit<=0 returns every match).
type ListFilter struct {
	Status     domain.SourceStatus
	SourceType domain.SourceType
	Limit      int
	Offset     int
}

func (r *SourceRepo) List(ctx context.Context, f ListFilter) ([]domain.Source, error) {
	query := `SELECT id, title, source_type, original_filename, status, COALESCE(error, ''),
	                 created_at, updated_at, COALESCE(ingest_task_id, '')
	          FROM sources WHERE 1=1`
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.SourceType != "" {
		args = append(args, f.SourceType)
		query += fmt.Sprintf(" AND source_type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Store("list sources", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		var s domain.Source
		if err := rows.Scan(&s.ID, &s.Title, &s.Type, &s.OriginalFilename, &s.Status, &s.Error,
			&s.CreatedAt, &s.UpdatedAt, &s.IngestTaskID); err != nil {
			return nil, apperr.Store("scan source row", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// UpdateStatus applies a status transition, rejecting one that
// domain.CanTransition disallows. Reading the current status and writing
// the new one are not wrapped in a transaction: concurrent duplicate
// transitions are idempotent at the application layer (ingestion retries
// re-derive the same terminal status) so the narrow race is harmless.
func (r *SourceRepo) UpdateStatus(ctx context.Context, id string, to domain.SourceStatus, errMsg string) error {
	current, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if !domain.CanTransition(current.Status, to) {
		return apperr.Validation("illegal source status transition")
	}
	query := `UPDATE sources SET status = $1, error = $2, updated_at = now() WHERE id = $3`
	_, err = r.db.ExecContext(ctx, query, to, nullString(errMsg), id)
	if err != nil {
		return apperr.Store("update source status", err)
	}
	return nil
}

func (r *SourceRepo) SetIngestTaskID(ctx context.Context, id, taskID string) error {
	query := `UPDATE sources SET ingest_task_id = $1, updated_at = now() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, taskID, id)
	if err != nil {
		return apperr.Store("set ingest task id", err)
	}
	return nil
}

// Delete removes a source and cascades to everything that referenced it:
// chunks cascade at the FK level, but queries/answers only link to a
// source indirectly through query_sources, so any query that was scoped
// to this source (and its answers) is deleted explicitly first, in the
// same transaction, before the source row itself.
func (r *SourceRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("begin delete source tx", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM answers WHERE query_id IN (
			SELECT query_id FROM query_sources WHERE source_id = $1
		)`, id)
	if err != nil {
		return apperr.Store("cascade delete answers", err)
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM queries WHERE id IN (
			SELECT query_id FROM query_sources WHERE source_id = $1
		)`, id)
	if err != nil {
		return apperr.Store("cascade delete queries", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = $1`, id)
	if err != nil {
		return apperr.Store("delete source", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("source not found")
	}

	if err := tx.Commit(); err != nil {
		return apperr.Store("commit delete source tx", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
