package vector

import (
	"context"
	"fmt"
	"strings"

	"reviewflow/internal/models"
	"reviewflow/internal/util"

	"github.com/jackc/pgx/v5"
)

type Searcher struct {
	q Queryer
}

type Queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func NewSearcher(q Queryer) *Searcher {
	return &Searcher{q: q}
}

// SearchChunks returns up to topK chunks of one paper ranked by descending
// cosine similarity, ties broken by ascending chunk index. Chunks below
// minScore are excluded; when nothing clears the threshold (or the paper has
// no index) it returns util.ErrEmptyRetrieval.
func (s *Searcher) SearchChunks(ctx context.Context, fingerprint string, queryVec []float32, topK int, minScore float64) ([]models.ChunkResult, error) {
	if topK <= 0 {
		topK = 5
	}
	vecLiteral := ToLiteral(queryVec)

	query := `
SELECT c.fingerprint,
       c.chunk_id,
       c.chunk_index,
       c.section,
       LEFT(c.text, 420) AS snippet,
       1 - (c.embedding <=> $2::vector) AS score,
       c.text
FROM chunks c
WHERE c.fingerprint = $1
  AND c.embedding IS NOT NULL
  AND 1 - (c.embedding <=> $2::vector) >= $4
ORDER BY score DESC, c.chunk_index ASC
LIMIT $3`

	rows, err := s.q.Query(ctx, query, fingerprint, vecLiteral, topK, minScore)
	if err != nil {
		return nil, fmt.Errorf("query vector search: %w", err)
	}
	defer rows.Close()

	results := make([]models.ChunkResult, 0, topK)
	for rows.Next() {
		var r models.ChunkResult
		if err := rows.Scan(&r.Fingerprint, &r.ChunkID, &r.ChunkIndex, &r.Section, &r.Snippet, &r.Score, &r.ChunkText); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	if len(results) == 0 {
		return nil, util.ErrEmptyRetrieval
	}
	return results, nil
}

func ToLiteral(v []float32) string {
	parts := make([]string, 0, len(v))
	for _, x := range v {
		parts = append(parts, fmt.Sprintf("%f", x))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
