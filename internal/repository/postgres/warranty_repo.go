package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

const warrantyCols = `id, owner_first_name, owner_last_name, owner_email, owner_phone, owner_address,
vin, vehicle_make, vehicle_model, vehicle_year, registration,
serial_number, installer_id, date_installed, created_by,
verification_status, verification_token, verification_token_expires_at,
activation_token, activation_token_expires_at,
corrosion_found, corrosion_details, photos,
inspection_due_date, activated_at, verified_at, verified_by, rejection_reason, lapsed_at,
terms_accepted_ip, customer_signature, last_reminder_tier, last_reminder_sent_at,
is_deleted, created_at, updated_at`

// WarrantyRepo implements WarrantyRepository using PostgreSQL.
type WarrantyRepo struct{ db *DB }

// NewWarrantyRepo constructs a warranty repository.
func NewWarrantyRepo(db *DB) *WarrantyRepo { return &WarrantyRepo{db: db} }

// Create inserts a new warranty row.
func (r *WarrantyRepo) Create(ctx context.Context, w *model.Warranty) error {
	photos, err := encodePhotos(w.Photos)
	if err != nil {
		return err
	}
	vTok, vExp := tokenCols(w.VerificationToken)
	aTok, aExp := tokenCols(w.ActivationToken)
	const q = `INSERT INTO warranties (` + warrantyCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,
$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33,$34,$35,$36)`
	_, err = r.db.q(ctx).Exec(ctx, q,
		w.ID, w.Owner.FirstName, w.Owner.LastName, w.Owner.Email, w.Owner.Phone, w.Owner.Address,
		w.Vehicle.VIN, w.Vehicle.Make, w.Vehicle.Model, w.Vehicle.Year, w.Vehicle.Registration,
		w.SerialNumber, w.InstallerID, w.DateInstalled, w.CreatedBy,
		string(w.Status), vTok, vExp, aTok, aExp,
		w.CorrosionFound, w.CorrosionDetails, photos,
		w.InspectionDueDate, w.ActivatedAt, w.VerifiedAt, w.VerifiedBy, w.RejectionReason, w.LapsedAt,
		w.TermsAcceptedIP, w.CustomerSignature, w.LastReminderTier, w.LastReminderSentAt,
		w.Deleted, w.CreatedAt, w.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("warranty %s: %w", w.ID, errs.ErrConflict)
	}
	return err
}

// GetByID selects a non-deleted warranty.
func (r *WarrantyRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Warranty, error) {
	return r.get(ctx, `SELECT `+warrantyCols+` FROM warranties WHERE id=$1 AND NOT is_deleted`, id)
}

// GetForUpdate selects a non-deleted warranty with FOR UPDATE; call it inside WithinTx.
func (r *WarrantyRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Warranty, error) {
	return r.get(ctx, `SELECT `+warrantyCols+` FROM warranties WHERE id=$1 AND NOT is_deleted FOR UPDATE`, id)
}

func (r *WarrantyRepo) get(ctx context.Context, q string, id uuid.UUID) (*model.Warranty, error) {
	w, err := scanWarranty(r.db.q(ctx).QueryRow(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return w, nil
}

// ConditionalUpdate locks the row, checks the expected status and writes the patched record.
func (r *WarrantyRepo) ConditionalUpdate(
	ctx context.Context, id uuid.UUID, expected model.WarrantyStatus, patch model.WarrantyPatch,
) (out *model.Warranty, err error) {
	err = r.db.WithinTx(ctx, func(ctx context.Context) error {
		const lock = `SELECT verification_status FROM warranties WHERE id=$1 AND NOT is_deleted FOR UPDATE`
		var cur string
		if err := r.db.q(ctx).QueryRow(ctx, lock, id).Scan(&cur); err != nil {
			if isNoRows(err) {
				return errs.ErrNotFound
			}
			return err
		}
		if model.WarrantyStatus(cur) != expected {
			return fmt.Errorf("warranty %s is %s, want %s: %w", id, cur, expected, errs.ErrInvalidState)
		}
		w, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		patch.Apply(w, time.Now().UTC())
		if err := r.write(ctx, w, expected); err != nil {
			return err
		}
		out = w
		return nil
	})
	return out, err
}

func (r *WarrantyRepo) write(ctx context.Context, w *model.Warranty, expected model.WarrantyStatus) error {
	photos, err := encodePhotos(w.Photos)
	if err != nil {
		return err
	}
	vTok, vExp := tokenCols(w.VerificationToken)
	aTok, aExp := tokenCols(w.ActivationToken)
	const q = `UPDATE warranties SET
owner_first_name=$3, owner_last_name=$4, owner_email=$5, owner_phone=$6, owner_address=$7,
vin=$8, vehicle_make=$9, vehicle_model=$10, vehicle_year=$11, registration=$12,
serial_number=$13, date_installed=$14,
verification_status=$15, verification_token=$16, verification_token_expires_at=$17,
activation_token=$18, activation_token_expires_at=$19,
corrosion_found=$20, corrosion_details=$21, photos=$22,
inspection_due_date=$23, activated_at=$24, verified_at=$25, verified_by=$26, rejection_reason=$27, lapsed_at=$28,
terms_accepted_ip=$29, customer_signature=$30, last_reminder_tier=$31, last_reminder_sent_at=$32,
is_deleted=$33, updated_at=$34
WHERE id=$1 AND verification_status=$2`
	tag, err := r.db.q(ctx).Exec(ctx, q,
		w.ID, string(expected),
		w.Owner.FirstName, w.Owner.LastName, w.Owner.Email, w.Owner.Phone, w.Owner.Address,
		w.Vehicle.VIN, w.Vehicle.Make, w.Vehicle.Model, w.Vehicle.Year, w.Vehicle.Registration,
		w.SerialNumber, w.DateInstalled,
		string(w.Status), vTok, vExp, aTok, aExp,
		w.CorrosionFound, w.CorrosionDetails, photos,
		w.InspectionDueDate, w.ActivatedAt, w.VerifiedAt, w.VerifiedBy, w.RejectionReason, w.LapsedAt,
		w.TermsAcceptedIP, w.CustomerSignature, w.LastReminderTier, w.LastReminderSentAt,
		w.Deleted, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("warranty %s: %w", w.ID, errs.ErrConflict)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("warranty %s: %w", w.ID, errs.ErrInvalidState)
	}
	return nil
}

// ListActiveDueBefore pages ACTIVE warranties whose due date is before the bound.
func (r *WarrantyRepo) ListActiveDueBefore(
	ctx context.Context, before time.Time, afterID uuid.UUID, limit int,
) ([]model.Warranty, error) {
	q := `SELECT ` + warrantyCols + ` FROM warranties
WHERE verification_status='ACTIVE' AND NOT is_deleted AND inspection_due_date < $1 AND id > $2
ORDER BY id LIMIT $3`
	rows, err := r.db.q(ctx).Query(ctx, q, before, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Warranty
	for rows.Next() {
		w, err := scanWarranty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

func scanWarranty(row pgx.Row) (*model.Warranty, error) {
	var (
		w          model.Warranty
		status     string
		vTok, aTok *string
		vExp, aExp *time.Time
		photos     []byte
	)
	err := row.Scan(
		&w.ID, &w.Owner.FirstName, &w.Owner.LastName, &w.Owner.Email, &w.Owner.Phone, &w.Owner.Address,
		&w.Vehicle.VIN, &w.Vehicle.Make, &w.Vehicle.Model, &w.Vehicle.Year, &w.Vehicle.Registration,
		&w.SerialNumber, &w.InstallerID, &w.DateInstalled, &w.CreatedBy,
		&status, &vTok, &vExp, &aTok, &aExp,
		&w.CorrosionFound, &w.CorrosionDetails, &photos,
		&w.InspectionDueDate, &w.ActivatedAt, &w.VerifiedAt, &w.VerifiedBy, &w.RejectionReason, &w.LapsedAt,
		&w.TermsAcceptedIP, &w.CustomerSignature, &w.LastReminderTier, &w.LastReminderSentAt,
		&w.Deleted, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	w.Status = model.WarrantyStatus(status)
	w.VerificationToken = tokenRef(vTok, vExp)
	w.ActivationToken = tokenRef(aTok, aExp)
	if w.Photos, err = decodePhotos(photos); err != nil {
		return nil, fmt.Errorf("warranty %s photos: %w", w.ID, err)
	}
	return &w, nil
}
