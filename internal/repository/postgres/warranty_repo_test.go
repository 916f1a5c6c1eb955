package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var warrantyColNames = []string{
	"id", "owner_first_name", "owner_last_name", "owner_email", "owner_phone", "owner_address",
	"vin", "vehicle_make", "vehicle_model", "vehicle_year", "registration",
	"serial_number", "installer_id", "date_installed", "created_by",
	"verification_status", "verification_token", "verification_token_expires_at",
	"activation_token", "activation_token_expires_at",
	"corrosion_found", "corrosion_details", "photos",
	"inspection_due_date", "activated_at", "verified_at", "verified_by", "rejection_reason", "lapsed_at",
	"terms_accepted_ip", "customer_signature", "last_reminder_tier", "last_reminder_sent_at",
	"is_deleted", "created_at", "updated_at",
}

func warrantyRow(t *testing.T, w model.Warranty) *pgxmock.Rows {
	t.Helper()
	photos, err := encodePhotos(w.Photos)
	require.NoError(t, err)
	vTok, vExp := tokenCols(w.VerificationToken)
	aTok, aExp := tokenCols(w.ActivationToken)
	return pgxmock.NewRows(warrantyColNames).AddRow(
		w.ID, w.Owner.FirstName, w.Owner.LastName, w.Owner.Email, w.Owner.Phone, w.Owner.Address,
		w.Vehicle.VIN, w.Vehicle.Make, w.Vehicle.Model, w.Vehicle.Year, w.Vehicle.Registration,
		w.SerialNumber, w.InstallerID, w.DateInstalled, w.CreatedBy,
		string(w.Status), vTok, vExp, aTok, aExp,
		w.CorrosionFound, w.CorrosionDetails, photos,
		w.InspectionDueDate, w.ActivatedAt, w.VerifiedAt, w.VerifiedBy, w.RejectionReason, w.LapsedAt,
		w.TermsAcceptedIP, w.CustomerSignature, w.LastReminderTier, w.LastReminderSentAt,
		w.Deleted, w.CreatedAt, w.UpdatedAt,
	)
}

func sampleWarranty(status model.WarrantyStatus) model.Warranty {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return model.Warranty{
		ID:           uuid.Must(uuid.NewV4()),
		Owner:        model.Owner{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com"},
		Vehicle:      model.Vehicle{VIN: "VIN123", Make: "Mazda", Model: "CX-5", Year: 2022},
		SerialNumber: "SN-1",
		InstallerID:  uuid.Must(uuid.NewV4()),
		CreatedBy:    "agent-1",
		Status:       status,
		Photos: []model.Photo{
			{Category: model.PhotoGenerator, URL: "https://cdn/x.jpg", UploadedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWarrantyRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWarrantyRepo(db)
	ctx := context.Background()

	w := sampleWarranty(model.WarrantySubmitted)
	w.VerificationToken = &model.TokenRef{Digest: "abc", ExpiresAt: w.CreatedAt.Add(24 * time.Hour)}

	mock.ExpectQuery(`SELECT id, owner_first_name, .* FROM warranties WHERE id=\$1 AND NOT is_deleted`).
		WithArgs(w.ID).
		WillReturnRows(warrantyRow(t, w))
	got, err := r.GetByID(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, w.ID, got.ID)
	require.Equal(t, model.WarrantySubmitted, got.Status)
	require.Equal(t, "abc", got.VerificationToken.Digest)
	require.Nil(t, got.ActivationToken)
	require.Len(t, got.Photos, 1)
	require.Equal(t, model.PhotoGenerator, got.Photos[0].Category)

	mock.ExpectQuery(`SELECT id, owner_first_name, .* FROM warranties WHERE id=\$1`).
		WithArgs(w.ID).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, w.ID)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestWarrantyRepo_Create_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWarrantyRepo(db)
	w := sampleWarranty(model.WarrantyDraft)

	mock.ExpectExec(`INSERT INTO warranties`).
		WithArgs(leadArgs(36, w.ID, w.Owner.FirstName)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(context.Background(), &w))

	mock.ExpectExec(`INSERT INTO warranties`).
		WithArgs(leadArgs(36, w.ID)...).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	err := r.Create(context.Background(), &w)
	require.ErrorIs(t, err, errs.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWarrantyRepo_ConditionalUpdate_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWarrantyRepo(db)
	w := sampleWarranty(model.WarrantySubmitted)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT verification_status FROM warranties WHERE id=\$1 AND NOT is_deleted FOR UPDATE`).
		WithArgs(w.ID).
		WillReturnRows(pgxmock.NewRows([]string{"verification_status"}).AddRow("SUBMITTED"))
	mock.ExpectQuery(`SELECT id, owner_first_name, .* FROM warranties WHERE id=\$1`).
		WithArgs(w.ID).
		WillReturnRows(warrantyRow(t, w))
	mock.ExpectExec(`UPDATE warranties SET .* WHERE id=\$1 AND verification_status=\$2`).
		WithArgs(leadArgs(34, w.ID, "SUBMITTED")...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	reason := "photos blurry"
	got, err := r.ConditionalUpdate(context.Background(), w.ID, model.WarrantySubmitted, model.WarrantyPatch{
		Status:                 model.Ptr(model.WarrantyRejected),
		RejectionReason:        &reason,
		ClearVerificationToken: true,
	})
	require.NoError(t, err)
	require.Equal(t, model.WarrantyRejected, got.Status)
	require.Equal(t, reason, got.RejectionReason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWarrantyRepo_ConditionalUpdate_GuardFails(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWarrantyRepo(db)
	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT verification_status FROM warranties WHERE id=\$1 AND NOT is_deleted FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"verification_status"}).AddRow("PENDING_CUSTOMER_ACTIVATION"))
	mock.ExpectRollback()

	_, err := r.ConditionalUpdate(context.Background(), id, model.WarrantySubmitted, model.WarrantyPatch{
		Status: model.Ptr(model.WarrantyRejected),
	})
	require.ErrorIs(t, err, errs.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWarrantyRepo_ConditionalUpdate_LostRace(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWarrantyRepo(db)
	w := sampleWarranty(model.WarrantySubmitted)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT verification_status FROM warranties`).
		WithArgs(w.ID).
		WillReturnRows(pgxmock.NewRows([]string{"verification_status"}).AddRow("SUBMITTED"))
	mock.ExpectQuery(`SELECT id, owner_first_name, .* FROM warranties`).
		WithArgs(w.ID).
		WillReturnRows(warrantyRow(t, w))
	mock.ExpectExec(`UPDATE warranties SET`).
		WithArgs(leadArgs(34, w.ID, "SUBMITTED")...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	_, err := r.ConditionalUpdate(context.Background(), w.ID, model.WarrantySubmitted, model.WarrantyPatch{
		Status: model.Ptr(model.WarrantyPendingActivation),
	})
	require.ErrorIs(t, err, errs.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWarrantyRepo_ConditionalUpdate_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWarrantyRepo(db)

	id := uuid.Must(uuid.NewV4())

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT verification_status FROM warranties`).WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := r.ConditionalUpdate(context.Background(), id, model.WarrantyDraft, model.WarrantyPatch{})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWarrantyRepo_ListActiveDueBefore(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWarrantyRepo(db)

	a := sampleWarranty(model.WarrantyActive)
	b := sampleWarranty(model.WarrantyActive)
	rows := warrantyRow(t, a)
	bPhotos, err := encodePhotos(b.Photos)
	require.NoError(t, err)
	rows.AddRow(
		b.ID, b.Owner.FirstName, b.Owner.LastName, b.Owner.Email, b.Owner.Phone, b.Owner.Address,
		b.Vehicle.VIN, b.Vehicle.Make, b.Vehicle.Model, b.Vehicle.Year, b.Vehicle.Registration,
		b.SerialNumber, b.InstallerID, b.DateInstalled, b.CreatedBy,
		string(b.Status), (*string)(nil), (*time.Time)(nil), (*string)(nil), (*time.Time)(nil),
		b.CorrosionFound, b.CorrosionDetails, bPhotos,
		b.InspectionDueDate, b.ActivatedAt, b.VerifiedAt, b.VerifiedBy, b.RejectionReason, b.LapsedAt,
		b.TermsAcceptedIP, b.CustomerSignature, b.LastReminderTier, b.LastReminderSentAt,
		b.Deleted, b.CreatedAt, b.UpdatedAt,
	)
	before := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM warranties WHERE verification_status='ACTIVE' AND NOT is_deleted AND inspection_due_date < \$1 AND id > \$2 ORDER BY id LIMIT \$3`).
		WithArgs(before, uuid.Nil, 100).
		WillReturnRows(rows)

	got, err := r.ListActiveDueBefore(context.Background(), before, uuid.Nil, 100)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, a.ID, got[0].ID)
	require.Equal(t, b.ID, got[1].ID)
}

func TestWarrantyRepo_GetForUpdate(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewWarrantyRepo(db)
	w := sampleWarranty(model.WarrantyActive)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM warranties WHERE id=\$1 AND NOT is_deleted FOR UPDATE`).
		WithArgs(w.ID).
		WillReturnRows(warrantyRow(t, w))
	mock.ExpectQuery(`FROM warranties WHERE id=\$1 AND NOT is_deleted FOR UPDATE`).
		WithArgs(w.ID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := db.WithinTx(context.Background(), func(ctx context.Context) error {
		got, err := r.GetForUpdate(ctx, w.ID)
		require.NoError(t, err)
		require.Equal(t, model.WarrantyActive, got.Status)
		_, err = r.GetForUpdate(ctx, w.ID)
		return err
	})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
