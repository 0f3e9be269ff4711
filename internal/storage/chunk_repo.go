package storage

import (
	"context"
	"fmt"

	"reviewflow/internal/models"
)

type ChunkRecord struct {
	ChunkID         string
	Fingerprint     string
	ChunkIndex      int
	Section         string
	SectionOrder    int
	StartOffset     int
	EndOffset       int
	Text            string
	EmbeddingVector *string
}

type ChunkRepo struct {
	db *DB
}

func NewChunkRepo(db *DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// ReplaceChunks rebuilds a paper's chunk set in one transaction: the index is
// replaced wholesale, never mutated incrementally. Readers either see the old
// complete set or the new one.
func (r *ChunkRepo) ReplaceChunks(ctx context.Context, fingerprint string, chunks []ChunkRecord) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx replace chunks: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE fingerprint=$1`, fingerprint); err != nil {
		return fmt.Errorf("clear chunks: %w", err)
	}
	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
INSERT INTO chunks (chunk_id, fingerprint, chunk_index, section, section_order, start_offset, end_offset, text, embedding)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $9::text IS NULL THEN NULL ELSE $9::vector END)`,
			c.ChunkID, c.Fingerprint, c.ChunkIndex, c.Section, c.SectionOrder, c.StartOffset, c.EndOffset, c.Text, c.EmbeddingVector,
		)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ChunkID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit chunks tx: %w", err)
	}
	return nil
}

func (r *ChunkRepo) DeleteChunks(ctx context.Context, fingerprint string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM chunks WHERE fingerprint=$1`, fingerprint); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func (r *ChunkRepo) ListChunksByPaper(ctx context.Context, fingerprint string) ([]models.Chunk, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT chunk_id, fingerprint, chunk_index, section, section_order, start_offset, end_offset, text
FROM chunks
WHERE fingerprint=$1
ORDER BY chunk_index ASC`, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("list chunks by paper: %w", err)
	}
	defer rows.Close()
	out := make([]models.Chunk, 0, 64)
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ChunkID, &c.Fingerprint, &c.ChunkIndex, &c.Section, &c.SectionOrder, &c.StartOffset, &c.EndOffset, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// CountEmbedded reports how many of a paper's chunks carry vectors; zero
// means the index is absent.
func (r *ChunkRepo) CountEmbedded(ctx context.Context, fingerprint string) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `
SELECT COUNT(*) FROM chunks WHERE fingerprint=$1 AND embedding IS NOT NULL`, fingerprint).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count embedded chunks: %w", err)
	}
	return n, nil
}
