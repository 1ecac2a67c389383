package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"citeground/internal/apperr"
	"citeground/internal/domain"
	"citeground/internal/retrieval"
)

type ChunkRepo struct {
	db *sql.DB
}

func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch writes chunks for a source in a single transaction, one row
// per chunk, tsvector computed server-side from the cleaned text.
func (r *ChunkRepo) InsertBatch(ctx context.Context, sourceID string, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store("begin chunk insert tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source_id, chunk_index, page_start, page_end, section_path, text, tsv, embedding, char_start, char_end)
		VALUES ($1, $2, $3, $4, $5, $6, $7, to_tsvector('english', $7), $8, $9, $10)
	`)
	if err != nil {
		return apperr.Store("prepare chunk insert", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		sectionPath, err := json.Marshal(c.SectionPath)
		if err != nil {
			return apperr.Store("marshal section path", err)
		}
		vec := pgvector.NewVector(c.Embedding)
		_, err = stmt.ExecContext(ctx, c.ID, sourceID, c.Ordinal, c.PageStart, c.PageEnd,
			sectionPath, c.Text, vec, c.CharStart, c.CharEnd)
		if err != nil {
			return apperr.Store("insert chunk", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.Store("commit chunk insert tx", err)
	}
	return nil
}

func (r *ChunkRepo) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chunks WHERE source_id = $1`, sourceID)
	if err != nil {
		return apperr.Store("delete chunks for source", err)
	}
	return nil
}

func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	c := &domain.Chunk{}
	var sectionPath []byte
	var vec pgvector.Vector
	query := `SELECT id, source_id, chunk_index, page_start, page_end, section_path, text, embedding, char_start, char_end
	          FROM chunks WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.SourceID, &c.Ordinal, &c.PageStart, &c.PageEnd, &sectionPath, &c.Text, &vec, &c.CharStart, &c.CharEnd,
	)
	if err != nil {
		return nil, apperr.Store("get chunk", err)
	}
	_ = json.Unmarshal(sectionPath, &c.SectionPath)
	c.Embedding = vec.Slice()
	return c, nil
}

// ListBySource returns every chunk for a source, ordered by ordinal, for
// embed-only resync (ReEmbed needs the existing text without re-running
// extraction/chunking).
func (r *ChunkRepo) ListBySource(ctx context.Context, sourceID string) ([]domain.Chunk, error) {
	query := `SELECT id, source_id, chunk_index, page_start, page_end, section_path, text, char_start, char_end
	          FROM chunks WHERE source_id = $1 ORDER BY chunk_index`
	rows, err := r.db.QueryContext(ctx, query, sourceID)
	if err != nil {
		return nil, apperr.Store("list chunks by source", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var sectionPath []byte
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Ordinal, &c.PageStart, &c.PageEnd,
			&sectionPath, &c.Text, &c.CharStart, &c.CharEnd); err != nil {
			return nil, apperr.Store("scan chunk row", err)
		}
		_ = json.Unmarshal(sectionPath, &c.SectionPath)
		out = append(out, c)
	}
	return out, rows.Err()
}

// SearchVector runs pgvector cosine-distance search, converting to a
// similarity score (1 - distance) so higher is better like the lexical
// side. Results are optionally scoped to sourceIDs. The return type
// satisfies retrieval.VectorSearcher directly.
func (r *ChunkRepo) SearchVector(ctx context.Context, query []float32, sourceIDs []string, limit int) ([]retrieval.Candidate, error) {
	vec := pgvector.NewVector(query)
	args := []any{vec, limit}
	sourceFilter := ""
	if len(sourceIDs) > 0 {
		sourceFilter = "WHERE source_id = ANY($3)"
		args = append(args, pq.Array(sourceIDs))
	}

	sqlQuery := `
		SELECT id, source_id, chunk_index, page_start, page_end, section_path, text, embedding, char_start, char_end,
		       1 - (embedding <=> $1) AS score
		FROM chunks
		` + sourceFilter + `
		ORDER BY embedding <=> $1
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apperr.Store("vector search", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

// SearchLexical runs Postgres full-text search via plainto_tsquery,
// ranked with ts_rank.
func (r *ChunkRepo) SearchLexical(ctx context.Context, question string, sourceIDs []string, limit int) ([]retrieval.Candidate, error) {
	args := []any{question, limit}
	sourceFilter := ""
	if len(sourceIDs) > 0 {
		sourceFilter = "AND source_id = ANY($3)"
		args = append(args, pq.Array(sourceIDs))
	}

	sqlQuery := `
		SELECT id, source_id, chunk_index, page_start, page_end, section_path, text, embedding, char_start, char_end,
		       ts_rank(tsv, plainto_tsquery('english', $1)) AS score
		FROM chunks
		WHERE tsv @@ plainto_tsquery('english', $1)
		` + sourceFilter + `
		ORDER BY score DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, apperr.Store("lexical search", err)
	}
	defer rows.Close()

	return scanCandidates(rows)
}

func scanCandidates(rows *sql.Rows) ([]retrieval.Candidate, error) {
	var out []retrieval.Candidate
	for rows.Next() {
		var c domain.Chunk
		var sectionPath []byte
		var vec pgvector.Vector
		var score float64
		if err := rows.Scan(&c.ID, &c.SourceID, &c.Ordinal, &c.PageStart, &c.PageEnd,
			&sectionPath, &c.Text, &vec, &c.CharStart, &c.CharEnd, &score); err != nil {
			return nil, apperr.Store("scan candidate row", err)
		}
		_ = json.Unmarshal(sectionPath, &c.SectionPath)
		c.Embedding = vec.Slice()
		out = append(out, retrieval.Candidate{Chunk: c, Score: score})
	}
	return out, rows.Err()
}
