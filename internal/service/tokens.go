package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgcrypto "github.com/and161185/warranty-keeper/internal/crypto"
	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// TokenService mints and resolves single-use confirmation tokens.
type TokenService interface {
	// Issue mints a token for (recordID, purpose), superseding any live one.
	Issue(ctx context.Context, recordID uuid.UUID, purpose model.TokenPurpose) (model.IssuedToken, error)
	// Resolve performs an exact lookup of a plaintext token scoped to purpose.
	Resolve(ctx context.Context, plain string, purpose model.TokenPurpose) (*model.Token, error)
	// Revoke drops the live token for (recordID, purpose).
	Revoke(ctx context.Context, recordID uuid.UUID, purpose model.TokenPurpose) error
}

type TokenServiceImpl struct {
	repo repository.TokenRepository
	ttl  map[model.TokenPurpose]time.Duration
	now  func() time.Time
}

// NewTokenService constructs TokenService with per-purpose TTLs.
func NewTokenService(repo repository.TokenRepository, verificationTTL, activationTTL time.Duration, now func() time.Time) *TokenServiceImpl {
	if now == nil {
		now = time.Now
	}
	return &TokenServiceImpl{
		repo: repo,
		ttl: map[model.TokenPurpose]time.Duration{
			model.PurposeWarrantyVerification:   verificationTTL,
			model.PurposeInspectionVerification: verificationTTL,
			model.PurposeCustomerActivation:     activationTTL,
		},
		now: now,
	}
}

// Issue stores only the digest; the plaintext leaves through the returned value.
func (s *TokenServiceImpl) Issue(ctx context.Context, recordID uuid.UUID, purpose model.TokenPurpose) (model.IssuedToken, error) {
	ttl, ok := s.ttl[purpose]
	if !ok {
		return model.IssuedToken{}, fmt.Errorf("issue token: unknown purpose %q", purpose)
	}
	plain, digest, err := pkgcrypto.NewToken()
	if err != nil {
		return model.IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}
	now := s.now().UTC()
	t := model.Token{
		Digest:    digest,
		RecordID:  recordID,
		Purpose:   purpose,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.repo.Replace(ctx, t); err != nil {
		return model.IssuedToken{}, fmt.Errorf("issue token: %w", err)
	}
	return model.IssuedToken{Token: t, Plain: plain}, nil
}

// Resolve returns ErrTokenInvalid for unknown or mis-scoped tokens and ErrTokenExpired
// once now is strictly after the expiry.
func (s *TokenServiceImpl) Resolve(ctx context.Context, plain string, purpose model.TokenPurpose) (*model.Token, error) {
	if plain == "" {
		return nil, errs.ErrTokenInvalid
	}
	digest := pkgcrypto.Digest(plain)
	t, err := s.repo.GetByDigest(ctx, digest)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrTokenInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("resolve token: %w", err)
	}
	if t.Purpose != purpose || !pkgcrypto.DigestEqual(t.Digest, digest) {
		return nil, errs.ErrTokenInvalid
	}
	if t.Expired(s.now()) {
		return nil, errs.ErrTokenExpired
	}
	return t, nil
}

// Revoke is idempotent.
func (s *TokenServiceImpl) Revoke(ctx context.Context, recordID uuid.UUID, purpose model.TokenPurpose) error {
	if err := s.repo.Delete(ctx, recordID, purpose); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// matchesRef reports whether the record still carries t as its live token.
func matchesRef(ref *model.TokenRef, t *model.Token) bool {
	return ref != nil && pkgcrypto.DigestEqual(ref.Digest, t.Digest)
}
