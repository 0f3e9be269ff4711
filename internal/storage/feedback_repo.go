package storage

import (
	"context"
	"fmt"

	"reviewflow/internal/models"
)

// FeedbackRepo is append-only: records are inserted, never updated or
// deleted. Concurrent review sessions need no coordination beyond the atomic
// insert. Feedback outlives cache eviction for its paper.
type FeedbackRepo struct {
	db *DB
}

func NewFeedbackRepo(db *DB) *FeedbackRepo {
	return &FeedbackRepo{db: db}
}

func (r *FeedbackRepo) Insert(ctx context.Context, rec models.FeedbackRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO feedback_records (record_id, fingerprint, dimension, ai_score, ai_explanation, human_score, human_reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.RecordID, rec.Fingerprint, rec.Dimension, rec.AIScore, rec.AIExplanation, rec.HumanScore, rec.HumanReason, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert feedback record: %w", err)
	}
	return nil
}

func (r *FeedbackRepo) ListByPaper(ctx context.Context, fingerprint string) ([]models.FeedbackRecord, error) {
	return r.list(ctx, `
SELECT record_id, fingerprint, dimension, ai_score, COALESCE(ai_explanation,''), human_score, COALESCE(human_reason,''), created_at
FROM feedback_records
WHERE fingerprint=$1
ORDER BY created_at ASC, record_id ASC`, fingerprint)
}

// ListDiffering returns, in insertion order, every record whose human score
// disagrees with the AI score. These are the records that become learning
// samples.
func (r *FeedbackRepo) ListDiffering(ctx context.Context) ([]models.FeedbackRecord, error) {
	return r.list(ctx, `
SELECT record_id, fingerprint, dimension, ai_score, COALESCE(ai_explanation,''), human_score, COALESCE(human_reason,''), created_at
FROM feedback_records
WHERE ai_score <> human_score
ORDER BY created_at ASC, record_id ASC`)
}

func (r *FeedbackRepo) list(ctx context.Context, query string, args ...any) ([]models.FeedbackRecord, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query feedback records: %w", err)
	}
	defer rows.Close()
	out := make([]models.FeedbackRecord, 0)
	for rows.Next() {
		var rec models.FeedbackRecord
		if err := rows.Scan(&rec.RecordID, &rec.Fingerprint, &rec.Dimension, &rec.AIScore, &rec.AIExplanation, &rec.HumanScore, &rec.HumanReason, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan feedback record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feedback records: %w", err)
	}
	return out, nil
}
