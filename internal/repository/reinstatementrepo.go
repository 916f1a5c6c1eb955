package repository

import (
	"context"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// ReinstatementRepository stores reinstatement records.
type ReinstatementRepository interface {
	// Create inserts a reinstatement record.
	Create(ctx context.Context, r *model.Reinstatement) error
	// ListByWarranty returns reinstatements of a warranty, most recent first.
	ListByWarranty(ctx context.Context, warrantyID uuid.UUID) ([]model.Reinstatement, error)
}
