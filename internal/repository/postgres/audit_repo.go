package postgres

import (
	"context"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AuditRepo implements AuditRepository using PostgreSQL. Rows are insert-only.
type AuditRepo struct{ db *DB }

// NewAuditRepo constructs an audit repository.
func NewAuditRepo(db *DB) *AuditRepo { return &AuditRepo{db: db} }

// Append inserts one audit entry.
func (r *AuditRepo) Append(ctx context.Context, e model.AuditEntry) error {
	const q = `
INSERT INTO audit_history (id, record_id, record_type, action_type, status_before, status_after, performed_by, performed_at, reason, notes, is_override)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.q(ctx).Exec(ctx, q,
		e.ID, e.RecordID, string(e.RecordType), string(e.ActionType), e.StatusBefore, e.StatusAfter,
		e.PerformedBy, e.PerformedAt, e.Reason, e.Notes, e.Override)
	return err
}

// ListByRecord returns a record's entries, most recent first.
func (r *AuditRepo) ListByRecord(ctx context.Context, recordType model.RecordType, recordID uuid.UUID) ([]model.AuditEntry, error) {
	const q = `
SELECT id, record_id, record_type, action_type, status_before, status_after, performed_by, performed_at, reason, notes, is_override
FROM audit_history WHERE record_type=$1 AND record_id=$2
ORDER BY seq DESC`
	rows, err := r.db.q(ctx).Query(ctx, q, string(recordType), recordID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var (
			e          model.AuditEntry
			rt, action string
		)
		if err = rows.Scan(&e.ID, &e.RecordID, &rt, &action, &e.StatusBefore, &e.StatusAfter,
			&e.PerformedBy, &e.PerformedAt, &e.Reason, &e.Notes, &e.Override); err != nil {
			return nil, err
		}
		e.RecordType = model.RecordType(rt)
		e.ActionType = model.ActionType(action)
		out = append(out, e)
	}
	return out, rows.Err()
}
