package repository

import (
	"context"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// InspectionRepository provides guarded access to inspection records.
type InspectionRepository interface {
	// Create inserts a new inspection.
	Create(ctx context.Context, in *model.Inspection) error

	// GetByID loads a non-deleted inspection.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Inspection, error)

	// GetForUpdate is GetByID holding the row lock for the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Inspection, error)

	// ConditionalUpdate applies patch only if the persisted status equals expected.
	ConditionalUpdate(ctx context.Context, id uuid.UUID, expected model.InspectionStatus, patch model.InspectionPatch) (*model.Inspection, error)

	// LatestVerified returns the most recently verified inspection of a warranty.
	// Returns errs.ErrNotFound when none exists.
	LatestVerified(ctx context.Context, warrantyID uuid.UUID) (*model.Inspection, error)
}
