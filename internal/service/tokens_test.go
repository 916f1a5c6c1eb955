package service

import (
	"context"
	"errors"
	"testing"
	"time"

	pkgcrypto "github.com/and161185/warranty-keeper/internal/crypto"
	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/and161185/warranty-keeper/internal/repository/memory"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueResolveRevoke(t *testing.T) {
	clock := &fakeClock{t: t0}
	store := memory.New(clock.Now)
	svc := NewTokenService(store.Tokens(), time.Hour, 48*time.Hour, clock.Now)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	tok, err := svc.Issue(ctx, id, model.PurposeCustomerActivation)
	require.NoError(t, err)
	require.Equal(t, t0.Add(48*time.Hour), tok.ExpiresAt)
	require.Equal(t, pkgcrypto.Digest(tok.Plain), tok.Digest)
	require.NotEqual(t, tok.Plain, tok.Digest)

	got, err := svc.Resolve(ctx, tok.Plain, model.PurposeCustomerActivation)
	require.NoError(t, err)
	require.Equal(t, id, got.RecordID)

	_, err = svc.Resolve(ctx, tok.Plain, model.PurposeWarrantyVerification)
	require.ErrorIs(t, err, errs.ErrTokenInvalid)
	_, err = svc.Resolve(ctx, tok.Plain[:len(tok.Plain)-1], model.PurposeCustomerActivation)
	require.ErrorIs(t, err, errs.ErrTokenInvalid)

	clock.Set(tok.ExpiresAt)
	_, err = svc.Resolve(ctx, tok.Plain, model.PurposeCustomerActivation)
	require.NoError(t, err, "expiry is strict")
	clock.Advance(time.Millisecond)
	_, err = svc.Resolve(ctx, tok.Plain, model.PurposeCustomerActivation)
	require.ErrorIs(t, err, errs.ErrTokenExpired)

	require.NoError(t, svc.Revoke(ctx, id, model.PurposeCustomerActivation))
	require.NoError(t, svc.Revoke(ctx, id, model.PurposeCustomerActivation))
	_, err = svc.Resolve(ctx, tok.Plain, model.PurposeCustomerActivation)
	require.ErrorIs(t, err, errs.ErrTokenInvalid)

	_, err = svc.Issue(ctx, id, "BOGUS")
	require.Error(t, err)
}

type brokenTokens struct{ repository.TokenRepository }

func (brokenTokens) GetByDigest(context.Context, string) (*model.Token, error) {
	return nil, errors.New("connection reset")
}

func TestTokenService_ResolveStorageErrorIsNotTokenInvalid(t *testing.T) {
	svc := NewTokenService(brokenTokens{}, time.Hour, time.Hour, nil)
	_, err := svc.Resolve(context.Background(), "abc", model.PurposeWarrantyVerification)
	require.Error(t, err)
	require.NotErrorIs(t, err, errs.ErrTokenInvalid)
	require.Equal(t, "INTERNAL", errs.Code(err))
}
