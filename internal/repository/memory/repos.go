package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
)

var (
	_ repository.WarrantyRepository      = (*WarrantyRepo)(nil)
	_ repository.InspectionRepository    = (*InspectionRepo)(nil)
	_ repository.AuditRepository         = (*AuditRepo)(nil)
	_ repository.TokenRepository         = (*TokenRepo)(nil)
	_ repository.PartnerRepository       = (*PartnerRepo)(nil)
	_ repository.ReminderRepository      = (*ReminderRepo)(nil)
	_ repository.ReinstatementRepository = (*ReinstatementRepo)(nil)
)

// WarrantyRepo is the in-memory WarrantyRepository.
type WarrantyRepo struct{ s *Store }

// Create stores a new warranty.
func (r *WarrantyRepo) Create(ctx context.Context, w *model.Warranty) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.warranties[w.ID]; ok {
		return fmt.Errorf("warranty %s: %w", w.ID, errs.ErrConflict)
	}
	r.s.st.warranties[w.ID] = cloneWarranty(*w)
	return nil
}

// GetByID loads a non-deleted warranty.
func (r *WarrantyRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Warranty, error) {
	defer r.s.lock(ctx)()
	w, ok := r.s.st.warranties[id]
	if !ok || w.Deleted {
		return nil, errs.ErrNotFound
	}
	c := cloneWarranty(w)
	return &c, nil
}

// GetForUpdate is GetByID; the store lock already serializes transactions.
func (r *WarrantyRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Warranty, error) {
	return r.GetByID(ctx, id)
}

// ConditionalUpdate applies patch only if the stored status equals expected.
func (r *WarrantyRepo) ConditionalUpdate(
	ctx context.Context, id uuid.UUID, expected model.WarrantyStatus, patch model.WarrantyPatch,
) (*model.Warranty, error) {
	defer r.s.lock(ctx)()
	w, ok := r.s.st.warranties[id]
	if !ok || w.Deleted {
		return nil, errs.ErrNotFound
	}
	if w.Status != expected {
		return nil, fmt.Errorf("warranty %s is %s, want %s: %w", id, w.Status, expected, errs.ErrInvalidState)
	}
	w = cloneWarranty(w)
	patch.Apply(&w, r.s.now().UTC())
	r.s.st.warranties[id] = w
	c := cloneWarranty(w)
	return &c, nil
}

// ListActiveDueBefore pages ACTIVE warranties with a due date before the bound, ordered by ID.
func (r *WarrantyRepo) ListActiveDueBefore(
	ctx context.Context, before time.Time, afterID uuid.UUID, limit int,
) ([]model.Warranty, error) {
	defer r.s.lock(ctx)()
	var out []model.Warranty
	for _, w := range r.s.st.warranties {
		if w.Deleted || w.Status != model.WarrantyActive || w.InspectionDueDate == nil {
			continue
		}
		if !w.InspectionDueDate.Before(before) {
			continue
		}
		if string(w.ID.Bytes()) <= string(afterID.Bytes()) {
			continue
		}
		out = append(out, cloneWarranty(w))
	}
	sortByID(out, func(w model.Warranty) uuid.UUID { return w.ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// InspectionRepo is the in-memory InspectionRepository.
type InspectionRepo struct{ s *Store }

// Create stores a new inspection.
func (r *InspectionRepo) Create(ctx context.Context, in *model.Inspection) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.inspections[in.ID]; ok {
		return fmt.Errorf("inspection %s: %w", in.ID, errs.ErrConflict)
	}
	r.s.st.inspections[in.ID] = cloneInspection(*in)
	return nil
}

// GetByID loads a non-deleted inspection.
func (r *InspectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Inspection, error) {
	defer r.s.lock(ctx)()
	in, ok := r.s.st.inspections[id]
	if !ok || in.Deleted {
		return nil, errs.ErrNotFound
	}
	c := cloneInspection(in)
	return &c, nil
}

// GetForUpdate is GetByID; the store lock already serializes transactions.
func (r *InspectionRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*model.Inspection, error) {
	return r.GetByID(ctx, id)
}

// ConditionalUpdate applies patch only if the stored status equals expected.
func (r *InspectionRepo) ConditionalUpdate(
	ctx context.Context, id uuid.UUID, expected model.InspectionStatus, patch model.InspectionPatch,
) (*model.Inspection, error) {
	defer r.s.lock(ctx)()
	in, ok := r.s.st.inspections[id]
	if !ok || in.Deleted {
		return nil, errs.ErrNotFound
	}
	if in.Status != expected {
		return nil, fmt.Errorf("inspection %s is %s, want %s: %w", id, in.Status, expected, errs.ErrInvalidState)
	}
	in = cloneInspection(in)
	patch.Apply(&in, r.s.now().UTC())
	r.s.st.inspections[id] = in
	c := cloneInspection(in)
	return &c, nil
}

// LatestVerified returns the most recently verified inspection of a warranty.
func (r *InspectionRepo) LatestVerified(ctx context.Context, warrantyID uuid.UUID) (*model.Inspection, error) {
	defer r.s.lock(ctx)()
	var best *model.Inspection
	for _, in := range r.s.st.inspections {
		if in.Deleted || in.WarrantyID != warrantyID || in.Status != model.InspectionVerified || in.VerifiedAt == nil {
			continue
		}
		if best == nil || in.VerifiedAt.After(*best.VerifiedAt) {
			c := cloneInspection(in)
			best = &c
		}
	}
	if best == nil {
		return nil, errs.ErrNotFound
	}
	return best, nil
}

// AuditRepo is the in-memory append-only audit log.
type AuditRepo struct{ s *Store }

// Append stores one entry.
func (r *AuditRepo) Append(ctx context.Context, e model.AuditEntry) error {
	defer r.s.lock(ctx)()
	r.s.st.audit = append(r.s.st.audit, e)
	return nil
}

// ListByRecord returns a record's entries, most recent first.
func (r *AuditRepo) ListByRecord(ctx context.Context, recordType model.RecordType, recordID uuid.UUID) ([]model.AuditEntry, error) {
	defer r.s.lock(ctx)()
	var out []model.AuditEntry
	for i := len(r.s.st.audit) - 1; i >= 0; i-- {
		e := r.s.st.audit[i]
		if e.RecordType == recordType && e.RecordID == recordID {
			out = append(out, e)
		}
	}
	return out, nil
}

// TokenRepo is the in-memory TokenRepository.
type TokenRepo struct{ s *Store }

// Replace supersedes the live token for (record, purpose).
func (r *TokenRepo) Replace(ctx context.Context, t model.Token) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.tokens[t.Digest]; ok {
		return fmt.Errorf("token digest collision: %w", errs.ErrConflict)
	}
	k := tokenKey{t.RecordID, t.Purpose}
	if old, ok := r.s.st.tokenByRecord[k]; ok {
		delete(r.s.st.tokens, old)
	}
	r.s.st.tokens[t.Digest] = t
	r.s.st.tokenByRecord[k] = t.Digest
	return nil
}

// GetByDigest performs an exact-match lookup.
func (r *TokenRepo) GetByDigest(ctx context.Context, digest string) (*model.Token, error) {
	defer r.s.lock(ctx)()
	t, ok := r.s.st.tokens[digest]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &t, nil
}

// Delete removes the live token for (record, purpose).
func (r *TokenRepo) Delete(ctx context.Context, recordID uuid.UUID, purpose model.TokenPurpose) error {
	defer r.s.lock(ctx)()
	k := tokenKey{recordID, purpose}
	if d, ok := r.s.st.tokenByRecord[k]; ok {
		delete(r.s.st.tokens, d)
		delete(r.s.st.tokenByRecord, k)
	}
	return nil
}

// PartnerRepo is the in-memory PartnerRepository.
type PartnerRepo struct{ s *Store }

// Create stores a partner account.
func (r *PartnerRepo) Create(ctx context.Context, p *model.Partner) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.st.partners[p.ID]; ok {
		return errs.ErrConflict
	}
	r.s.st.partners[p.ID] = *p
	return nil
}

// GetByID loads a partner account.
func (r *PartnerRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.Partner, error) {
	defer r.s.lock(ctx)()
	p, ok := r.s.st.partners[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &p, nil
}

// ReminderRepo is the in-memory ReminderRepository.
type ReminderRepo struct{ s *Store }

// Claim records (warrantyID, dueDate, tier) once.
func (r *ReminderRepo) Claim(ctx context.Context, warrantyID uuid.UUID, dueDate time.Time, tier int, at time.Time) (bool, error) {
	defer r.s.lock(ctx)()
	k := reminderKey{warrantyID, dueDate.UnixNano(), tier}
	if _, ok := r.s.st.reminders[k]; ok {
		return false, nil
	}
	r.s.st.reminders[k] = at
	return true, nil
}

// ReinstatementRepo is the in-memory ReinstatementRepository.
type ReinstatementRepo struct{ s *Store }

// Create stores a reinstatement record.
func (r *ReinstatementRepo) Create(ctx context.Context, rs *model.Reinstatement) error {
	defer r.s.lock(ctx)()
	r.s.st.reinstatements = append(r.s.st.reinstatements, *rs)
	return nil
}

// ListByWarranty returns reinstatements of a warranty, most recent first.
func (r *ReinstatementRepo) ListByWarranty(ctx context.Context, warrantyID uuid.UUID) ([]model.Reinstatement, error) {
	defer r.s.lock(ctx)()
	var out []model.Reinstatement
	for i := len(r.s.st.reinstatements) - 1; i >= 0; i-- {
		if rs := r.s.st.reinstatements[i]; rs.WarrantyID == warrantyID {
			out = append(out, rs)
		}
	}
	return out, nil
}
