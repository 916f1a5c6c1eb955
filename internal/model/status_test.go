package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCanTransitionWarranty_Table(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to WarrantyStatus
		trigger  Trigger
		want     bool
	}{
		{WarrantyDraft, WarrantySubmitted, TriggerUser, true},
		{WarrantyDraft, WarrantyActive, TriggerUser, false},
		{WarrantyDraft, WarrantyActive, TriggerOverride, false},
		{WarrantySubmitted, WarrantyPendingActivation, TriggerUser, true},
		{WarrantySubmitted, WarrantyRejected, TriggerOverride, true},
		{WarrantyPendingActivation, WarrantyActive, TriggerUser, true},
		{WarrantyActive, WarrantyLapsed, TriggerScheduler, true},
		{WarrantyActive, WarrantyLapsed, TriggerUser, false},
		{WarrantyLapsed, WarrantyActive, TriggerReinstatement, true},
		{WarrantyLapsed, WarrantyActive, TriggerOverride, false},
		{WarrantyRejected, WarrantyDraft, TriggerOverride, true},
		{WarrantyRejected, WarrantyDraft, TriggerUser, false},
		{WarrantyActive, WarrantyDraft, TriggerOverride, false},
	}
	for _, tc := range cases {
		got := CanTransitionWarranty(tc.from, tc.to, tc.trigger)
		require.Equal(t, tc.want, got, "%s -> %s by %s", tc.from, tc.to, tc.trigger)
	}
}

func TestCanTransitionInspection_Table(t *testing.T) {
	t.Parallel()

	require.True(t, CanTransitionInspection(InspectionDraft, InspectionSubmitted, TriggerUser))
	require.True(t, CanTransitionInspection(InspectionSubmitted, InspectionVerified, TriggerUser))
	require.True(t, CanTransitionInspection(InspectionSubmitted, InspectionRejected, TriggerOverride))
	require.False(t, CanTransitionInspection(InspectionDraft, InspectionVerified, TriggerOverride))
	require.False(t, CanTransitionInspection(InspectionVerified, InspectionDraft, TriggerOverride))
	require.False(t, CanTransitionInspection(InspectionSubmitted, InspectionVerified, TriggerScheduler))
}

func TestWarrantyPatch_Apply(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	w := &Warranty{
		Status:            WarrantySubmitted,
		VerificationToken: &TokenRef{Digest: "abc", ExpiresAt: now},
		Photos:            []Photo{{Category: PhotoGenerator, URL: "a"}},
	}
	status := WarrantyPendingActivation
	WarrantyPatch{
		Status:                 &status,
		ClearVerificationToken: true,
		ActivationToken:        &TokenRef{Digest: "def", ExpiresAt: now.Add(time.Hour)},
		VerifiedBy:             Ptr("installer:1"),
		VerifiedAt:             &now,
		AddPhotos:              []Photo{{Category: PhotoBody, URL: "b"}},
	}.Apply(w, now)

	require.Equal(t, WarrantyPendingActivation, w.Status)
	require.Nil(t, w.VerificationToken)
	require.Equal(t, "def", w.ActivationToken.Digest)
	require.Equal(t, "installer:1", w.VerifiedBy)
	require.Len(t, w.Photos, 2)
	require.Equal(t, now, w.UpdatedAt)
}

func TestInspectionPatch_ApplyDraft(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	in := &Inspection{Status: InspectionDraft}
	no := false
	InspectionPatch{Draft: &InspectionEdit{
		Areas:     []AreaCondition{{Area: AreaEngineBay, Condition: ConditionGood}},
		Checklist: &Checklist{GeneratorMounted: &no},
	}}.Apply(in, now)

	require.Len(t, in.Areas, 1)
	require.NotNil(t, in.Checklist.GeneratorMounted)
	require.False(t, *in.Checklist.GeneratorMounted)
	require.Nil(t, in.Checklist.RedLightIlluminated)
}

func TestToken_ExpiredIsStrict(t *testing.T) {
	t.Parallel()

	exp := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tok := Token{ExpiresAt: exp}
	require.False(t, tok.Expired(exp))
	require.True(t, tok.Expired(exp.Add(time.Nanosecond)))
}
