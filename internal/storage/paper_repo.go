package storage

import (
	"context"
	"fmt"

	"reviewflow/internal/models"
)

type PaperRepo struct {
	db *DB
}

func NewPaperRepo(db *DB) *PaperRepo {
	return &PaperRepo{db: db}
}

func (r *PaperRepo) UpsertPaper(ctx context.Context, p models.PaperRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO papers (fingerprint, filename, title, stage, status, fail_reason)
VALUES ($1, $2, NULLIF($3,''), $4, $5, NULLIF($6,''))
ON CONFLICT (fingerprint)
DO UPDATE SET
  filename = EXCLUDED.filename,
  title = COALESCE(EXCLUDED.title, papers.title),
  stage = EXCLUDED.stage,
  status = EXCLUDED.status,
  fail_reason = EXCLUDED.fail_reason,
  updated_at = NOW()`,
		p.Fingerprint, p.Filename, p.Title, p.Stage, p.Status, p.FailReason,
	)
	if err != nil {
		return fmt.Errorf("upsert paper: %w", err)
	}
	return nil
}

func (r *PaperRepo) UpdateStage(ctx context.Context, fingerprint, stage, status, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET stage=$2, status=$3, fail_reason=NULLIF($4,''), updated_at=NOW()
WHERE fingerprint=$1`, fingerprint, stage, status, failReason)
	if err != nil {
		return fmt.Errorf("update paper stage: %w", err)
	}
	return nil
}

// SetEmbedProvider records the embedding backend used at index time so query
// embedding stays in the same vector space for this paper's lifetime.
func (r *PaperRepo) SetEmbedProvider(ctx context.Context, fingerprint, provider string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE papers SET embed_provider=$2, updated_at=NOW() WHERE fingerprint=$1`, fingerprint, provider)
	if err != nil {
		return fmt.Errorf("set embed provider: %w", err)
	}
	return nil
}

func (r *PaperRepo) GetEmbedProvider(ctx context.Context, fingerprint string) (string, error) {
	var provider string
	err := r.db.Pool.QueryRow(ctx, `
SELECT COALESCE(embed_provider,'') FROM papers WHERE fingerprint=$1`, fingerprint).Scan(&provider)
	if err != nil {
		return "", fmt.Errorf("get embed provider: %w", err)
	}
	return provider, nil
}

func (r *PaperRepo) GetPaper(ctx context.Context, fingerprint string) (models.PaperRecord, error) {
	var p models.PaperRecord
	err := r.db.Pool.QueryRow(ctx, `
SELECT fingerprint, filename, COALESCE(title,''), stage, status, COALESCE(fail_reason,''), created_at, updated_at
FROM papers
WHERE fingerprint=$1`, fingerprint).
		Scan(&p.Fingerprint, &p.Filename, &p.Title, &p.Stage, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return models.PaperRecord{}, fmt.Errorf("get paper: %w", err)
	}
	return p, nil
}

func (r *PaperRepo) ListPapers(ctx context.Context) ([]models.PaperRecord, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT fingerprint, filename, COALESCE(title,''), stage, status, COALESCE(fail_reason,''), created_at, updated_at
FROM papers
ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list papers: %w", err)
	}
	defer rows.Close()

	out := make([]models.PaperRecord, 0)
	for rows.Next() {
		var p models.PaperRecord
		if err := rows.Scan(&p.Fingerprint, &p.Filename, &p.Title, &p.Stage, &p.Status, &p.FailReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan paper: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}
