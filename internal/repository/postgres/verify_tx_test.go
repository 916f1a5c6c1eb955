package postgres

import (
	"context"
	"testing"
	"time"

	pkgcrypto "github.com/and161185/warranty-keeper/internal/crypto"
	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/service"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// A verifier that resolved its token before a concurrent CONFIRM committed must see the
// committed row once it holds the lock, and must not mint an activation token.
func TestVerify_LockedRowAlreadyConfirmed(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	plain, digest, err := pkgcrypto.NewToken()
	require.NoError(t, err)
	w := sampleWarranty(model.WarrantySubmitted)
	w.VerificationToken = &model.TokenRef{Digest: digest, ExpiresAt: w.CreatedAt.Add(24 * time.Hour)}
	now := func() time.Time { return w.CreatedAt.Add(time.Hour) }

	confirmed := w
	confirmed.Status = model.WarrantyPendingActivation
	confirmed.VerificationToken = nil
	confirmed.ActivationToken = &model.TokenRef{Digest: "winner", ExpiresAt: w.CreatedAt.Add(7 * 24 * time.Hour)}

	tokens := service.NewTokenService(NewTokenRepo(db), 24*time.Hour, 7*24*time.Hour, now)
	ws := service.NewWarrantyService(service.WarrantyDeps{
		Tx:         db,
		Warranties: NewWarrantyRepo(db),
		Partners:   NewPartnerRepo(db),
		Tokens:     tokens,
		Audit:      service.NewAuditRecorder(NewAuditRepo(db), zap.NewNop(), now),
		Log:        zap.NewNop(),
		Now:        now,
	})

	mock.ExpectQuery(`FROM verification_tokens WHERE digest=\$1`).
		WithArgs(digest).
		WillReturnRows(pgxmock.NewRows([]string{"digest", "record_id", "purpose", "expires_at", "created_at"}).
			AddRow(digest, w.ID, string(model.PurposeWarrantyVerification), w.VerificationToken.ExpiresAt, w.CreatedAt))
	mock.ExpectQuery(`FROM warranties WHERE id=\$1 AND NOT is_deleted`).
		WithArgs(w.ID).
		WillReturnRows(warrantyRow(t, w))
	mock.ExpectBegin()
	mock.ExpectQuery(`FROM warranties WHERE id=\$1 AND NOT is_deleted FOR UPDATE`).
		WithArgs(w.ID).
		WillReturnRows(warrantyRow(t, confirmed))
	mock.ExpectRollback()

	_, err = ws.Verify(context.Background(), plain, service.DecisionConfirm, "")
	require.ErrorIs(t, err, errs.ErrTokenInvalid)
	require.NoError(t, mock.ExpectationsWereMet())
}
