package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ReminderRepo implements ReminderRepository using PostgreSQL.
type ReminderRepo struct{ db *DB }

// NewReminderRepo constructs a reminder log repository.
func NewReminderRepo(db *DB) *ReminderRepo { return &ReminderRepo{db: db} }

// Claim inserts the (warranty, due date, tier) key; a conflict means it was already sent.
func (r *ReminderRepo) Claim(ctx context.Context, warrantyID uuid.UUID, dueDate time.Time, tier int, at time.Time) (bool, error) {
	const q = `
INSERT INTO reminder_log (warranty_id, due_date, tier, sent_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (warranty_id, due_date, tier) DO NOTHING`
	tag, err := r.db.q(ctx).Exec(ctx, q, warrantyID, dueDate, tier, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
