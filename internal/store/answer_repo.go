package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/lib/pq"

	"citeground/internal/apperr"
	"citeground/internal/domain"
	"citeground/internal/hydrate"
)

const uniqueViolation = "23505"

type AnswerRepo struct {
	db *sql.DB
}

func NewAnswerRepo(db *sql.DB) *AnswerRepo {
	return &AnswerRepo{db: db}
}

// ErrIdempotencyConflict is returned by Create when a concurrent request
// already inserted an answer for the same idempotency key and query mode
// (ux_answers_idempotency). The caller should re-run FindIdempotent and
// return that answer instead of retrying the insert.
var ErrIdempotencyConflict = errors.New("answer already exists for idempotency key")

func (r *AnswerRepo) Create(ctx context.Context, a *domain.Answer) error {
	a.RawCitations.Citations = a.Citations
	a.RawCitations.CitationGroups = a.CitationGroups
	a.RawCitations.Claims = a.Claims
	a.RawCitations.VerificationSummary = a.VerificationSummary
	a.RawCitations.AnswerStyle = a.AnswerStyle

	raw, err := json.Marshal(a.RawCitations)
	if err != nil {
		return apperr.Store("marshal raw citations", err)
	}
	query := `INSERT INTO answers (id, query_id, answer, raw_citations) VALUES ($1, $2, $3, $4)`
	_, err = r.db.ExecContext(ctx, query, a.ID, a.QueryID, a.AnswerText, raw)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && a.RawCitations.IdempotencyKey != "" {
			return ErrIdempotencyConflict
		}
		return apperr.Store("create answer", err)
	}
	return nil
}

func (r *AnswerRepo) Get(ctx context.Context, id string) (*domain.Answer, error) {
	return r.scanOne(ctx, r.db, `SELECT id, query_id, answer, raw_citations FROM answers WHERE id = $1`, id)
}

// CreateIdempotent inserts a, or returns a prior answer already recorded
// for the same idempotency key and query mode. Concurrent duplicate
// requests serialize on a Postgres advisory lock keyed by the idempotency
// key, so the loser reads back the winner's committed row instead of
// racing the unique index (ux_answers_idempotency) and erroring. When a
// carries no idempotency key, this is a plain unconditional insert.
func (r *AnswerRepo) CreateIdempotent(ctx context.Context, a *domain.Answer) (*domain.Answer, bool, error) {
	key := a.RawCitations.IdempotencyKey
	if key == "" {
		return a, false, r.Create(ctx, a)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, apperr.Store("begin idempotent answer tx", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return nil, false, apperr.Store("acquire idempotency lock", err)
	}

	filter, err := json.Marshal(map[string]string{"idempotency_key": key, "query_mode": a.RawCitations.QueryMode})
	if err != nil {
		return nil, false, apperr.Store("marshal idempotency filter", err)
	}
	existing, err := r.scanOne(ctx, tx, `SELECT id, query_id, answer, raw_citations FROM answers
	          WHERE raw_citations IS NOT NULL AND raw_citations @> $1::jsonb
	          ORDER BY created_at DESC LIMIT 1`, filter)
	if err != nil {
		if ae, ok := apperr.As(err); !ok || ae.Kind != apperr.KindNotFound {
			return nil, false, err
		}
		existing = nil
	}
	if existing != nil {
		if err := tx.Commit(); err != nil {
			return nil, false, apperr.Store("commit idempotent answer tx", err)
		}
		return existing, true, nil
	}

	a.RawCitations.Citations = a.Citations
	a.RawCitations.CitationGroups = a.CitationGroups
	a.RawCitations.Claims = a.Claims
	a.RawCitations.VerificationSummary = a.VerificationSummary
	a.RawCitations.AnswerStyle = a.AnswerStyle

	raw, err := json.Marshal(a.RawCitations)
	if err != nil {
		return nil, false, apperr.Store("marshal raw citations", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO answers (id, query_id, answer, raw_citations) VALUES ($1, $2, $3, $4)`,
		a.ID, a.QueryID, a.AnswerText, raw); err != nil {
		return nil, false, apperr.Store("create answer", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, apperr.Store("commit idempotent answer tx", err)
	}
	return a, false, nil
}

// FindIdempotent looks up a prior answer for the same idempotency key and
// query mode, mirroring the Python `raw_citations.contains(...)` filter via
// a JSONB containment query. Returns nil, nil when there is no match.
func (r *AnswerRepo) FindIdempotent(ctx context.Context, key, mode string) (*domain.Answer, error) {
	if key == "" {
		return nil, nil
	}
	filter, err := json.Marshal(map[string]string{"idempotency_key": key, "query_mode": mode})
	if err != nil {
		return nil, apperr.Store("marshal idempotency filter", err)
	}
	query := `SELECT id, query_id, answer, raw_citations FROM answers
	          WHERE raw_citations IS NOT NULL AND raw_citations @> $1::jsonb
	          ORDER BY created_at DESC LIMIT 1`
	a, err := r.scanOne(ctx, r.db, query, filter)
	if err != nil {
		var ae *apperr.Error
		if errors.As(err, &ae) && ae.Kind == apperr.KindNotFound {
			return nil, nil
		}
		return nil, err
	}
	return a, nil
}

// queryRower is satisfied by both *sql.DB and *sql.Tx, so scanOne can run
// inside CreateIdempotent's advisory-lock transaction or standalone.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *AnswerRepo) scanOne(ctx context.Context, q queryRower, query string, args ...any) (*domain.Answer, error) {
	a := &domain.Answer{}
	var raw []byte
	err := q.QueryRowContext(ctx, query, args...).Scan(&a.ID, &a.QueryID, &a.AnswerText, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("answer not found")
	}
	if err != nil {
		return nil, apperr.Store("get answer", err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &a.RawCitations); err != nil {
			return nil, apperr.Store("unmarshal raw citations", err)
		}
	}
	a.Citations = a.RawCitations.Citations
	a.CitationGroups = a.RawCitations.CitationGroups
	a.Claims = a.RawCitations.Claims
	a.VerificationSummary = a.RawCitations.VerificationSummary
	a.AnswerStyle = a.RawCitations.AnswerStyle

	hydrate.Answer(a)
	return a, nil
}
