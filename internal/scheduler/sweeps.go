package scheduler

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/service"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// eachActiveDueBefore pages ACTIVE warranties due before bound in ID order.
func (s *Scheduler) eachActiveDueBefore(ctx context.Context, bound time.Time, fn func(w *model.Warranty)) error {
	after := uuid.Nil
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.d.Warranties.ListActiveDueBefore(ctx, bound, after, s.opts.BatchSize)
		if err != nil {
			return err
		}
		for i := range page {
			fn(&page[i])
		}
		if len(page) < s.opts.BatchSize {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

// sweepGracePeriod lapses ACTIVE warranties whose grace period has ended without a verified inspection.
func (s *Scheduler) sweepGracePeriod(ctx context.Context, res *JobResult) error {
	now := s.d.Now().UTC()
	grace := s.opts.Policy.GracePeriodDays
	cutoff := now.AddDate(0, 0, -grace)

	return s.eachActiveDueBefore(ctx, cutoff, func(w *model.Warranty) {
		res.Scanned++
		log := s.d.Log.With(zap.String("warranty_id", w.ID.String()))

		if w.InspectionDueDate == nil {
			res.Skipped++
			return
		}
		last, err := s.d.Inspections.LatestVerified(ctx, w.ID)
		switch {
		case errors.Is(err, errs.ErrNotFound):
		case err != nil:
			log.Error("latest verified inspection lookup failed", zap.Error(err))
			res.Failed++
			return
		case last.WarrantyExtendedUntil != nil && last.WarrantyExtendedUntil.After(*w.InspectionDueDate):
			// coverage is extended but the due date has not caught up yet
			res.Skipped++
			return
		}

		out, err := s.d.Lifecycle.Transition(ctx, service.TransitionRequest{
			ID:      w.ID,
			From:    model.WarrantyActive,
			To:      model.WarrantyLapsed,
			Trigger: model.TriggerScheduler,
			Action:  model.ActionGracePeriodExpired,
			Actor:   model.SystemScheduler,
			Reason:  "no verified inspection within grace period",
			Patch:   model.WarrantyPatch{LapsedAt: &now},
		})
		switch {
		case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrNotFound):
			log.Info("warranty moved during grace sweep", zap.Error(err))
			res.Skipped++
			return
		case err != nil:
			log.Error("lapse transition failed", zap.Error(err))
			res.Failed++
			return
		}
		res.Processed++
		s.d.Notifier.WarrantyLapsed(context.WithoutCancel(ctx), out)
	})
}

// sweepReminders sends at most one reminder per (warranty, due date, tier). Only the
// tier currently in effect is sent, so a missed run does not replay older tiers.
func (s *Scheduler) sweepReminders(ctx context.Context, res *JobResult) error {
	tiers := s.opts.Policy.SortedTiers()
	if len(tiers) == 0 {
		return nil
	}
	now := s.d.Now().UTC()
	grace := s.opts.Policy.GracePeriodDays
	bound := now.AddDate(0, 0, tiers[0]+1)

	return s.eachActiveDueBefore(ctx, bound, func(w *model.Warranty) {
		res.Scanned++
		if w.InspectionDueDate == nil {
			res.Skipped++
			return
		}
		due := *w.InspectionDueDate
		days := daysUntil(now, due)
		tier, ok := currentTier(tiers, days)
		if !ok || -days > grace {
			res.Skipped++
			return
		}
		log := s.d.Log.With(zap.String("warranty_id", w.ID.String()), zap.Int("tier", tier))

		fresh, err := s.claimReminder(ctx, w.ID, due, tier, now)
		switch {
		case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrNotFound):
			log.Info("warranty moved during reminder sweep", zap.Error(err))
			res.Skipped++
			return
		case err != nil:
			log.Error("reminder claim failed", zap.Error(err))
			res.Failed++
			return
		case !fresh:
			res.Skipped++
			return
		}
		s.d.Notifier.InspectionReminder(context.WithoutCancel(ctx), w, tier, grace)
		res.Processed++
	})
}

// claimReminder records the reminder key and stamps it on the warranty while it is still
// ACTIVE. With a Transactor both writes commit together.
func (s *Scheduler) claimReminder(ctx context.Context, id uuid.UUID, due time.Time, tier int, now time.Time) (bool, error) {
	var fresh bool
	run := func(ctx context.Context) error {
		var err error
		fresh, err = s.d.Reminders.Claim(ctx, id, due, tier, now)
		if err != nil || !fresh {
			return err
		}
		_, err = s.d.Warranties.ConditionalUpdate(ctx, id, model.WarrantyActive, model.WarrantyPatch{
			LastReminderTier:   &tier,
			LastReminderSentAt: &now,
		})
		return err
	}
	var err error
	if s.d.Tx != nil {
		err = s.d.Tx.WithinTx(ctx, run)
	} else {
		err = run(ctx)
	}
	return fresh, err
}

// daysUntil returns whole days from now to due, rounded down; negative when overdue.
func daysUntil(now, due time.Time) int {
	return int(math.Floor(due.Sub(now).Hours() / 24))
}

// currentTier picks the latest tier already reached: the smallest offset t with days <= t.
// tiers must be sorted descending.
func currentTier(tiers []int, days int) (int, bool) {
	for i := len(tiers) - 1; i >= 0; i-- {
		if days <= tiers[i] {
			return tiers[i], true
		}
	}
	return 0, false
}
