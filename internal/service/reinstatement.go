package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// ReinstateInput carries an admin's reinstatement decision.
type ReinstateInput struct {
	Reason       string
	InspectionID *uuid.UUID
	Notes        string
}

// ReinstatementService restores lapsed warranties.
type ReinstatementService interface {
	CheckEligibility(ctx context.Context, id uuid.UUID) (*model.Eligibility, error)
	Reinstate(ctx context.Context, actor model.Actor, id uuid.UUID, in ReinstateInput) (*model.Warranty, *model.Reinstatement, error)
	List(ctx context.Context, id uuid.UUID) ([]model.Reinstatement, error)
}

type ReinstatementServiceImpl struct {
	tx             repository.Transactor
	warranties     repository.WarrantyRepository
	inspections    repository.InspectionRepository
	reinstatements repository.ReinstatementRepository
	lifecycle      WarrantyService
	notifier       Notifier
	log            *zap.Logger
	now            func() time.Time
}

// NewReinstatementService constructs ReinstatementService. Status changes go through lifecycle.Transition.
func NewReinstatementService(
	tx repository.Transactor,
	warranties repository.WarrantyRepository,
	inspections repository.InspectionRepository,
	reinstatements repository.ReinstatementRepository,
	lifecycle WarrantyService,
	notifier Notifier,
	log *zap.Logger,
	now func() time.Time,
) *ReinstatementServiceImpl {
	if notifier == nil {
		notifier = NopNotifier()
	}
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &ReinstatementServiceImpl{
		tx:             tx,
		warranties:     warranties,
		inspections:    inspections,
		reinstatements: reinstatements,
		lifecycle:      lifecycle,
		notifier:       notifier,
		log:            log,
		now:            now,
	}
}

var _ ReinstatementService = (*ReinstatementServiceImpl)(nil)

func (s *ReinstatementServiceImpl) CheckEligibility(ctx context.Context, id uuid.UUID) (*model.Eligibility, error) {
	w, err := s.warranties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	el := &model.Eligibility{WarrantyID: id, Status: w.Status}
	if w.Status != model.WarrantyLapsed {
		el.Reason = fmt.Sprintf("warranty is %s; only LAPSED warranties can be reinstated", w.Status)
		return el, nil
	}
	el.Eligible = true
	now := s.now()
	if w.LapsedAt != nil {
		el.DaysLapsed = int(now.Sub(*w.LapsedAt).Hours() / 24)
	}
	in, err := s.qualifying(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if in != nil {
		el.HasQualifyingInspection = true
		el.QualifyingInspectionID = &in.ID
		el.Reason = "verified inspection available; coverage resumes until " + in.WarrantyExtendedUntil.Format(time.DateOnly)
	} else {
		el.Reason = "no qualifying inspection; coverage resumes on the install-date cadence"
	}
	return el, nil
}

// Reinstate checks status before reason so any non-LAPSED record fails with ErrInvalidState.
func (s *ReinstatementServiceImpl) Reinstate(ctx context.Context, actor model.Actor, id uuid.UUID, in ReinstateInput) (*model.Warranty, *model.Reinstatement, error) {
	if !actor.Elevated() {
		return nil, nil, errs.ErrForbidden
	}
	var (
		out *model.Warranty
		rec *model.Reinstatement
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		w, err := s.warranties.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := requireStatus(w.Status, model.WarrantyLapsed); err != nil {
			return err
		}
		reason := strings.TrimSpace(in.Reason)
		if reason == "" {
			return errs.Validation("reinstatement reason is required")
		}

		now := s.now().UTC()
		var due time.Time
		if in.InspectionID != nil {
			insp, err := s.inspections.GetByID(ctx, *in.InspectionID)
			switch {
			case errors.Is(err, errs.ErrNotFound):
				return errs.Validation("inspection not found")
			case err != nil:
				return err
			case insp.WarrantyID != id:
				return errs.Validation("inspection belongs to another warranty")
			case insp.Status != model.InspectionVerified || insp.WarrantyExtendedUntil == nil:
				return errs.Validation("inspection is not VERIFIED")
			case !insp.WarrantyExtendedUntil.After(now):
				return errs.Validation("inspection extension has already expired")
			}
			due = *insp.WarrantyExtendedUntil
		} else {
			due = nextAnniversary(w.DateInstalled, now)
		}

		out, err = s.lifecycle.Transition(ctx, TransitionRequest{
			ID:      id,
			From:    model.WarrantyLapsed,
			To:      model.WarrantyActive,
			Trigger: model.TriggerReinstatement,
			Action:  model.ActionReinstated,
			Actor:   actor,
			Reason:  reason,
			Notes:   in.Notes,
			Patch:   model.WarrantyPatch{InspectionDueDate: &due, ClearLapsedAt: true},
		})
		if err != nil {
			return err
		}
		rid, err := uuid.NewV4()
		if err != nil {
			return err
		}
		rec = &model.Reinstatement{
			ID:              rid,
			WarrantyID:      id,
			ReinstatedBy:    actor.ID,
			Reason:          reason,
			InspectionID:    in.InspectionID,
			Notes:           in.Notes,
			PreviousDueDate: w.InspectionDueDate,
			NewDueDate:      due,
			ReinstatedAt:    now,
		}
		return s.reinstatements.Create(ctx, rec)
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("warranty reinstated", zap.String("warranty_id", id.String()), zap.Time("due", rec.NewDueDate))
	s.notifier.WarrantyReinstated(notifyCtx(ctx), out)
	return out, rec, nil
}

func (s *ReinstatementServiceImpl) List(ctx context.Context, id uuid.UUID) ([]model.Reinstatement, error) {
	return s.reinstatements.ListByWarranty(ctx, id)
}

// qualifying returns the latest verified inspection whose extension is still in the future.
func (s *ReinstatementServiceImpl) qualifying(ctx context.Context, id uuid.UUID, now time.Time) (*model.Inspection, error) {
	in, err := s.inspections.LatestVerified(ctx, id)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if in.WarrantyExtendedUntil == nil || !in.WarrantyExtendedUntil.After(now) {
		return nil, nil
	}
	return in, nil
}

// nextAnniversary returns the first install-date anniversary strictly after now.
func nextAnniversary(installed *time.Time, now time.Time) time.Time {
	if installed == nil {
		return model.AddMonths(now, 12)
	}
	d := *installed
	years := now.Year() - d.Year()
	if years < 0 {
		years = 0
	}
	next := d.AddDate(years, 0, 0)
	for !next.After(now) {
		next = next.AddDate(1, 0, 0)
	}
	return next
}
