package repository

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ReminderRepository records which reminder tiers were dispatched.
type ReminderRepository interface {
	// Claim records (warrantyID, dueDate, tier) and reports whether this call created it.
	// A false result means the tier was already dispatched for this due date.
	Claim(ctx context.Context, warrantyID uuid.UUID, dueDate time.Time, tier int, at time.Time) (bool, error)
}
