package service

import (
	"testing"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/stretchr/testify/require"
)

func TestReinstate_OnlyFromLapsed(t *testing.T) {
	f := newFixture(t)
	records := map[model.WarrantyStatus]*model.Warranty{
		model.WarrantyDraft:     f.draft(t, 0),
		model.WarrantySubmitted: f.submitted(t),
		model.WarrantyActive:    f.active(t),
	}
	for status, w := range records {
		for _, reason := range []string{"", "customer paid"} {
			_, _, err := f.reinst.Reinstate(f.ctx, f.admin, w.ID, ReinstateInput{Reason: reason})
			require.ErrorIs(t, err, errs.ErrInvalidState, "status=%s reason=%q", status, reason)
		}
		el, err := f.reinst.CheckEligibility(f.ctx, w.ID)
		require.NoError(t, err)
		require.False(t, el.Eligible)
		require.Equal(t, status, el.Status)
	}
}

func TestReinstate_Validation(t *testing.T) {
	f := newFixture(t)
	w := f.lapsed(t)

	_, _, err := f.reinst.Reinstate(f.ctx, f.agent, w.ID, ReinstateInput{Reason: "x"})
	require.ErrorIs(t, err, errs.ErrForbidden)
	_, _, err = f.reinst.Reinstate(f.ctx, f.admin, w.ID, ReinstateInput{Reason: "  "})
	require.ErrorIs(t, err, errs.ErrValidation)

	other := f.active(t)
	rec, err := f.insp.Create(f.ctx, f.agent, f.inspectionInput(other.ID))
	require.NoError(t, err)
	_, _, err = f.reinst.Reinstate(f.ctx, f.admin, w.ID, ReinstateInput{Reason: "x", InspectionID: &rec.ID})
	require.Equal(t, []string{"inspection belongs to another warranty"}, errs.Details(err))

	got, err := f.warranty.Get(f.ctx, f.admin, w.ID)
	require.NoError(t, err)
	require.Equal(t, model.WarrantyLapsed, got.Status)
}

func TestReinstate_WithoutInspectionUsesAnniversary(t *testing.T) {
	f := newFixture(t)
	w := f.lapsed(t)
	f.clock.Advance(400 * 24 * time.Hour)

	el, err := f.reinst.CheckEligibility(f.ctx, w.ID)
	require.NoError(t, err)
	require.True(t, el.Eligible)
	require.Equal(t, 400, el.DaysLapsed)
	require.False(t, el.HasQualifyingInspection)

	got, rs, err := f.reinst.Reinstate(f.ctx, f.admin, w.ID, ReinstateInput{Reason: "goodwill", Notes: "ticket 42"})
	require.NoError(t, err)
	require.Equal(t, model.WarrantyActive, got.Status)
	require.Nil(t, got.LapsedAt)

	now := f.clock.Now()
	want := nextAnniversary(w.DateInstalled, now)
	require.Equal(t, want, *got.InspectionDueDate)
	require.True(t, want.After(now))
	require.Equal(t, w.DateInstalled.Month(), want.Month())
	require.Equal(t, w.DateInstalled.Day(), want.Day())
	require.Equal(t, w.InspectionDueDate, rs.PreviousDueDate)

	h := f.history(t, w.ID)
	require.Equal(t, model.ActionReinstated, h[0].ActionType)
	require.Equal(t, "goodwill", h[0].Reason)
	require.Equal(t, string(model.WarrantyLapsed), h[0].StatusBefore)

	list, err := f.reinst.List(f.ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, f.notes.count("reinstated"))
}

func TestReinstate_WithVerifiedInspection(t *testing.T) {
	f := newFixture(t)
	w := f.active(t)

	rec, err := f.insp.Create(f.ctx, f.agent, f.inspectionInput(w.ID))
	require.NoError(t, err)
	_, err = f.insp.Submit(f.ctx, f.agent, rec.ID)
	require.NoError(t, err)

	_, err = f.warranty.Transition(f.ctx, TransitionRequest{
		ID: w.ID, From: model.WarrantyActive, To: model.WarrantyLapsed, Trigger: model.TriggerScheduler,
		Action: model.ActionGracePeriodExpired, Actor: model.SystemScheduler,
	})
	require.NoError(t, err)

	verified, err := f.insp.Verify(f.ctx, f.notes.lastInspection(), DecisionConfirm, "")
	require.NoError(t, err)

	parent, err := f.warranty.Get(f.ctx, f.admin, w.ID)
	require.NoError(t, err)
	require.Equal(t, model.WarrantyLapsed, parent.Status)

	el, err := f.reinst.CheckEligibility(f.ctx, w.ID)
	require.NoError(t, err)
	require.True(t, el.HasQualifyingInspection)
	require.Equal(t, verified.ID, *el.QualifyingInspectionID)

	got, _, err := f.reinst.Reinstate(f.ctx, f.admin, w.ID, ReinstateInput{Reason: "inspected late", InspectionID: &verified.ID})
	require.NoError(t, err)
	require.Equal(t, *verified.WarrantyExtendedUntil, *got.InspectionDueDate)
}

func TestNextAnniversary(t *testing.T) {
	installed := time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC),
		nextAnniversary(&installed, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, time.Date(2027, 5, 10, 0, 0, 0, 0, time.UTC),
		nextAnniversary(&installed, time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)))
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.Equal(t, now.AddDate(1, 0, 0), nextAnniversary(nil, now))
}
