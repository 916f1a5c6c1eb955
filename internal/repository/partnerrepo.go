package repository

import (
	"context"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// PartnerRepository reads agent, installer and inspector accounts owned by another system.
type PartnerRepository interface {
	// GetByID loads a partner account.
	GetByID(ctx context.Context, id uuid.UUID) (*model.Partner, error)
}
