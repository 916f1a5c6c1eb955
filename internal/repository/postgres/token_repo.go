package postgres

import (
	"context"
	"fmt"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TokenRepo implements TokenRepository using PostgreSQL.
type TokenRepo struct{ db *DB }

// NewTokenRepo constructs a token repository.
func NewTokenRepo(db *DB) *TokenRepo { return &TokenRepo{db: db} }

// Replace drops any live token for (record, purpose) and stores t.
func (r *TokenRepo) Replace(ctx context.Context, t model.Token) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		const del = `DELETE FROM verification_tokens WHERE record_id=$1 AND purpose=$2`
		if _, err := r.db.q(ctx).Exec(ctx, del, t.RecordID, string(t.Purpose)); err != nil {
			return err
		}
		const ins = `INSERT INTO verification_tokens (digest, record_id, purpose, expires_at, created_at) VALUES ($1, $2, $3, $4, $5)`
		_, err := r.db.q(ctx).Exec(ctx, ins, t.Digest, t.RecordID, string(t.Purpose), t.ExpiresAt, t.CreatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("token digest collision: %w", errs.ErrConflict)
		}
		return err
	})
}

// GetByDigest looks a token up by its digest.
func (r *TokenRepo) GetByDigest(ctx context.Context, digest string) (*model.Token, error) {
	const q = `SELECT digest, record_id, purpose, expires_at, created_at FROM verification_tokens WHERE digest=$1`
	var (
		t       model.Token
		purpose string
	)
	if err := r.db.q(ctx).QueryRow(ctx, q, digest).Scan(&t.Digest, &t.RecordID, &purpose, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if isNoRows(err) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	t.Purpose = model.TokenPurpose(purpose)
	return &t, nil
}

// Delete removes the live token for (record, purpose).
func (r *TokenRepo) Delete(ctx context.Context, recordID uuid.UUID, purpose model.TokenPurpose) error {
	const q = `DELETE FROM verification_tokens WHERE record_id=$1 AND purpose=$2`
	_, err := r.db.q(ctx).Exec(ctx, q, recordID, string(purpose))
	return err
}
