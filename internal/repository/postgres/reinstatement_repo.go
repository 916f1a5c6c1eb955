package postgres

import (
	"context"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ReinstatementRepo implements ReinstatementRepository using PostgreSQL.
type ReinstatementRepo struct{ db *DB }

// NewReinstatementRepo constructs a reinstatement repository.
func NewReinstatementRepo(db *DB) *ReinstatementRepo { return &ReinstatementRepo{db: db} }

// Create inserts a reinstatement row.
func (r *ReinstatementRepo) Create(ctx context.Context, rs *model.Reinstatement) error {
	const q = `
INSERT INTO reinstatements (id, warranty_id, reinstated_by, reason, inspection_id, notes, previous_due_date, new_due_date, reinstated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.q(ctx).Exec(ctx, q, rs.ID, rs.WarrantyID, rs.ReinstatedBy, rs.Reason, rs.InspectionID,
		rs.Notes, rs.PreviousDueDate, rs.NewDueDate, rs.ReinstatedAt)
	return err
}

// ListByWarranty returns reinstatements of a warranty, most recent first.
func (r *ReinstatementRepo) ListByWarranty(ctx context.Context, warrantyID uuid.UUID) ([]model.Reinstatement, error) {
	const q = `
SELECT id, warranty_id, reinstated_by, reason, inspection_id, notes, previous_due_date, new_due_date, reinstated_at
FROM reinstatements WHERE warranty_id=$1
ORDER BY reinstated_at DESC`
	rows, err := r.db.q(ctx).Query(ctx, q, warrantyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reinstatement
	for rows.Next() {
		var rs model.Reinstatement
		if err = rows.Scan(&rs.ID, &rs.WarrantyID, &rs.ReinstatedBy, &rs.Reason, &rs.InspectionID,
			&rs.Notes, &rs.PreviousDueDate, &rs.NewDueDate, &rs.ReinstatedAt); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}
	return out, rows.Err()
}
