package storage

import (
	"context"
	"fmt"
)

type ModelCallRecord struct {
	CallID       string
	Operation    string
	Fingerprint  string
	ProviderName string
	Model        string
	RequestID    string
	Status       string
	ErrorType    string
}

// ModelAuditRepo records every external model/embedding call outcome.
type ModelAuditRepo struct {
	db *DB
}

func NewModelAuditRepo(db *DB) *ModelAuditRepo {
	return &ModelAuditRepo{db: db}
}

func (r *ModelAuditRepo) Insert(ctx context.Context, rec ModelCallRecord) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO model_calls(call_id, operation, fingerprint, provider_name, model, request_id, status, error_type)
VALUES (COALESCE(NULLIF($1,'')::uuid, gen_random_uuid()), $2, NULLIF($3,''), $4, $5, $6, $7, NULLIF($8,''))`,
		rec.CallID, rec.Operation, rec.Fingerprint, rec.ProviderName, rec.Model, rec.RequestID, rec.Status, rec.ErrorType)
	if err != nil {
		return fmt.Errorf("insert model call: %w", err)
	}
	return nil
}
