package repository

import (
	"context"
	"time"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// WarrantyRepository provides guarded access to warranty records.
type WarrantyRepository interface {
	// Create inserts a new record.
	Create(ctx context.Context, w *model.Warranty) error

	// GetByID loads a non-deleted record.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Warranty, error)

	// GetForUpdate loads a non-deleted record and holds its row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Warranty, error)

	// ConditionalUpdate applies patch only if the persisted status equals expected.
	// Returns errs.ErrInvalidState when the guard fails.
	ConditionalUpdate(ctx context.Context, id uuid.UUID, expected model.WarrantyStatus, patch model.WarrantyPatch) (*model.Warranty, error)

	// ListActiveDueBefore pages ACTIVE, non-deleted records with a due date before the bound,
	// ordered by ID, starting strictly after afterID.
	ListActiveDueBefore(ctx context.Context, before time.Time, afterID uuid.UUID, limit int) ([]model.Warranty, error)
}
