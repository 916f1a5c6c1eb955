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

const inspectionCols = `id, warranty_id, inspector_id, inspection_date, areas,
generator_mounted, red_light_illuminated, couplers_secure, owner_advised,
corrosion_found, corrosion_details, photos,
verification_status, verification_token, verification_token_expires_at,
warranty_extended_until, verified_at, verified_by, rejection_reason,
created_by, is_deleted, created_at, updated_at`

// InspectionRepo implements InspectionRepository using PostgreSQL.
type InspectionRepo struct{ db *DB }

// NewInspectionRepo constructs an inspection repository.
func NewInspectionRepo(db *DB) *InspectionRepo { return &InspectionRepo{db: db} }

// Create inserts a new inspection row.
func (r *InspectionRepo) Create(ctx context.Context, in *model.Inspection) error {
	areas, err := encodeAreas(in.Areas)
	if err != nil {
		return err
	}
	photos, err := encodePhotos(in.Photos)
	if err != nil {
		return err
	}
	vTok, vExp := tokenCols(in.VerificationToken)
	const q = `INSERT INTO inspections (` + inspectionCols + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`
	_, err = r.db.q(ctx).Exec(ctx, q,
		in.ID, in.WarrantyID, in.InspectorID, in.InspectionDate, areas,
		in.Checklist.GeneratorMounted, in.Checklist.RedLightIlluminated, in.Checklist.CouplersSecure, in.Checklist.OwnerAdvised,
		in.CorrosionFound, in.CorrosionDetails, photos,
		string(in.Status), vTok, vExp,
		in.WarrantyExtendedUntil, in.VerifiedAt, in.VerifiedBy, in.RejectionReason,
		in.CreatedBy, in.Deleted, in.CreatedAt, in.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("inspection %s: %w", in.ID, errs.ErrConflict)
	}
	return err
}

// GetByID selects a non-deleted inspection.
func (r *InspectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Inspection, error) {
	return r.get(ctx, `SELECT `+inspectionCols+` FROM inspections WHERE id=$1 AND NOT is_deleted`, id)
}

// GetForUpdate selects a non-deleted inspection with FOR UPDATE.
func (r *InspectionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Inspection, error) {
	return r.get(ctx, `SELECT `+inspectionCols+` FROM inspections WHERE id=$1 AND NOT is_deleted FOR UPDATE`, id)
}

func (r *InspectionRepo) get(ctx context.Context, q string, id uuid.UUID) (*model.Inspection, error) {
	in, err := scanInspection(r.db.q(ctx).QueryRow(ctx, q, id))
	if err != nil {
		if isNoRows(err) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return in, nil
}

// ConditionalUpdate locks the row, checks the expected status and writes the patched record.
func (r *InspectionRepo) ConditionalUpdate(
	ctx context.Context, id uuid.UUID, expected model.InspectionStatus, patch model.InspectionPatch,
) (out *model.Inspection, err error) {
	err = r.db.WithinTx(ctx, func(ctx context.Context) error {
		const lock = `SELECT verification_status FROM inspections WHERE id=$1 AND NOT is_deleted FOR UPDATE`
		var cur string
		if err := r.db.q(ctx).QueryRow(ctx, lock, id).Scan(&cur); err != nil {
			if isNoRows(err) {
				return errs.ErrNotFound
			}
			return err
		}
		if model.InspectionStatus(cur) != expected {
			return fmt.Errorf("inspection %s is %s, want %s: %w", id, cur, expected, errs.ErrInvalidState)
		}
		in, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		patch.Apply(in, time.Now().UTC())
		if err := r.write(ctx, in, expected); err != nil {
			return err
		}
		out = in
		return nil
	})
	return out, err
}

func (r *InspectionRepo) write(ctx context.Context, in *model.Inspection, expected model.InspectionStatus) error {
	areas, err := encodeAreas(in.Areas)
	if err != nil {
		return err
	}
	photos, err := encodePhotos(in.Photos)
	if err != nil {
		return err
	}
	vTok, vExp := tokenCols(in.VerificationToken)
	const q = `UPDATE inspections SET
inspection_date=$3, areas=$4,
generator_mounted=$5, red_light_illuminated=$6, couplers_secure=$7, owner_advised=$8,
corrosion_found=$9, corrosion_details=$10, photos=$11,
verification_status=$12, verification_token=$13, verification_token_expires_at=$14,
warranty_extended_until=$15, verified_at=$16, verified_by=$17, rejection_reason=$18,
is_deleted=$19, updated_at=$20
WHERE id=$1 AND verification_status=$2`
	tag, err := r.db.q(ctx).Exec(ctx, q,
		in.ID, string(expected),
		in.InspectionDate, areas,
		in.Checklist.GeneratorMounted, in.Checklist.RedLightIlluminated, in.Checklist.CouplersSecure, in.Checklist.OwnerAdvised,
		in.CorrosionFound, in.CorrosionDetails, photos,
		string(in.Status), vTok, vExp,
		in.WarrantyExtendedUntil, in.VerifiedAt, in.VerifiedBy, in.RejectionReason,
		in.Deleted, in.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("inspection %s: %w", in.ID, errs.ErrInvalidState)
	}
	return nil
}

// LatestVerified returns the most recently verified inspection of a warranty.
func (r *InspectionRepo) LatestVerified(ctx context.Context, warrantyID uuid.UUID) (*model.Inspection, error) {
	q := `SELECT ` + inspectionCols + ` FROM inspections
WHERE warranty_id=$1 AND verification_status='VERIFIED' AND NOT is_deleted
ORDER BY verified_at DESC LIMIT 1`
	in, err := scanInspection(r.db.q(ctx).QueryRow(ctx, q, warrantyID))
	if err != nil {
		if isNoRows(err) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return in, nil
}

func scanInspection(row pgx.Row) (*model.Inspection, error) {
	var (
		in            model.Inspection
		status        string
		vTok          *string
		vExp          *time.Time
		areas, photos []byte
	)
	err := row.Scan(
		&in.ID, &in.WarrantyID, &in.InspectorID, &in.InspectionDate, &areas,
		&in.Checklist.GeneratorMounted, &in.Checklist.RedLightIlluminated, &in.Checklist.CouplersSecure, &in.Checklist.OwnerAdvised,
		&in.CorrosionFound, &in.CorrosionDetails, &photos,
		&status, &vTok, &vExp,
		&in.WarrantyExtendedUntil, &in.VerifiedAt, &in.VerifiedBy, &in.RejectionReason,
		&in.CreatedBy, &in.Deleted, &in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	in.Status = model.InspectionStatus(status)
	in.VerificationToken = tokenRef(vTok, vExp)
	if in.Areas, err = decodeAreas(areas); err != nil {
		return nil, fmt.Errorf("inspection %s areas: %w", in.ID, err)
	}
	if in.Photos, err = decodePhotos(photos); err != nil {
		return nil, fmt.Errorf("inspection %s photos: %w", in.ID, err)
	}
	return &in, nil
}
