package postgres

import (
	"context"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// PartnerRepo implements PartnerRepository using PostgreSQL.
type PartnerRepo struct{ db *DB }

// NewPartnerRepo constructs a partner repository.
func NewPartnerRepo(db *DB) *PartnerRepo { return &PartnerRepo{db: db} }

// Create inserts a partner row. Used by seeding and tests; partner management lives elsewhere.
func (r *PartnerRepo) Create(ctx context.Context, p *model.Partner) error {
	const q = `
INSERT INTO partners (id, kind, name, email, phone, accredited)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.q(ctx).Exec(ctx, q, p.ID, string(p.Kind), p.Name, p.Email, p.Phone, p.Accredited)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// GetByID selects a partner by ID.
func (r *PartnerRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Partner, error) {
	const q = `
SELECT id, kind, name, email, phone, accredited
FROM partners WHERE id=$1`
	var (
		p    model.Partner
		kind string
	)
	if err := r.db.q(ctx).QueryRow(ctx, q, id).Scan(&p.ID, &kind, &p.Name, &p.Email, &p.Phone, &p.Accredited); err != nil {
		if isNoRows(err) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	p.Kind = model.PartnerKind(kind)
	return &p, nil
}
