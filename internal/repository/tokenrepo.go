package repository

import (
	"context"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// TokenRepository stores token digests with a uniqueness constraint.
type TokenRepository interface {
	// Replace stores t, superseding any live token for the same (record, purpose).
	Replace(ctx context.Context, t model.Token) error
	// GetByDigest performs an exact-match lookup.
	GetByDigest(ctx context.Context, digest string) (*model.Token, error)
	// Delete removes the live token for (record, purpose), if any.
	Delete(ctx context.Context, recordID uuid.UUID, purpose model.TokenPurpose) error
}
