package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
)

func newWarranty(status model.WarrantyStatus) *model.Warranty {
	return &model.Warranty{
		ID:     uuid.Must(uuid.NewV4()),
		Owner:  model.Owner{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com"},
		Status: status,
	}
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	w := newWarranty(model.WarrantyDraft)
	require.NoError(t, s.Warranties().Create(ctx, w))

	boom := errors.New("audit down")
	err := s.WithinTx(ctx, func(ctx context.Context) error {
		_, err := s.Warranties().ConditionalUpdate(ctx, w.ID, model.WarrantyDraft, model.WarrantyPatch{
			Status: model.Ptr(model.WarrantySubmitted),
		})
		require.NoError(t, err)
		require.NoError(t, s.Audit().Append(ctx, model.AuditEntry{ID: uuid.Must(uuid.NewV4()), RecordID: w.ID, RecordType: model.RecordWarranty}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.Warranties().GetByID(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, model.WarrantyDraft, got.Status)
	hist, err := s.Audit().ListByRecord(ctx, model.RecordWarranty, w.ID)
	require.NoError(t, err)
	require.Empty(t, hist)
}

func TestConditionalUpdate_GuardAndIsolation(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	w := newWarranty(model.WarrantySubmitted)
	require.NoError(t, s.Warranties().Create(ctx, w))

	_, err := s.Warranties().ConditionalUpdate(ctx, w.ID, model.WarrantyDraft, model.WarrantyPatch{})
	require.ErrorIs(t, err, errs.ErrInvalidState)

	got, err := s.Warranties().ConditionalUpdate(ctx, w.ID, model.WarrantySubmitted, model.WarrantyPatch{
		AddPhotos: []model.Photo{{Category: model.PhotoBody, URL: "u"}},
	})
	require.NoError(t, err)
	got.Photos[0].URL = "mutated"

	again, err := s.Warranties().GetByID(ctx, w.ID)
	require.NoError(t, err)
	require.Equal(t, "u", again.Photos[0].URL)

	_, err = s.Warranties().GetByID(ctx, uuid.Must(uuid.NewV4()))
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestConditionalUpdate_ConcurrentSingleWinner(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	w := newWarranty(model.WarrantySubmitted)
	require.NoError(t, s.Warranties().Create(ctx, w))

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(ctx context.Context) error {
				_, err := s.Warranties().ConditionalUpdate(ctx, w.ID, model.WarrantySubmitted, model.WarrantyPatch{
					Status: model.Ptr(model.WarrantyPendingActivation),
				})
				return err
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}

func TestTokenRepo_ReplaceSupersedes(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	tr := s.Tokens()

	require.NoError(t, tr.Replace(ctx, model.Token{Digest: "a", RecordID: id, Purpose: model.PurposeWarrantyVerification}))
	require.NoError(t, tr.Replace(ctx, model.Token{Digest: "b", RecordID: id, Purpose: model.PurposeWarrantyVerification}))

	_, err := tr.GetByDigest(ctx, "a")
	require.ErrorIs(t, err, errs.ErrNotFound)
	got, err := tr.GetByDigest(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, id, got.RecordID)

	require.ErrorIs(t, tr.Replace(ctx, model.Token{Digest: "b", RecordID: uuid.Must(uuid.NewV4()), Purpose: model.PurposeCustomerActivation}), errs.ErrConflict)

	require.NoError(t, tr.Delete(ctx, id, model.PurposeWarrantyVerification))
	_, err = tr.GetByDigest(ctx, "b")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestListActiveDueBefore_Pages(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	due := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		w := newWarranty(model.WarrantyActive)
		w.InspectionDueDate = &due
		require.NoError(t, s.Warranties().Create(ctx, w))
	}
	later := due.AddDate(1, 0, 0)
	notDue := newWarranty(model.WarrantyActive)
	notDue.InspectionDueDate = &later
	require.NoError(t, s.Warranties().Create(ctx, notDue))
	require.NoError(t, s.Warranties().Create(ctx, newWarranty(model.WarrantyDraft)))

	var (
		seen  []uuid.UUID
		after uuid.UUID
	)
	for {
		page, err := s.Warranties().ListActiveDueBefore(ctx, due.AddDate(0, 1, 0), after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, w := range page {
			seen = append(seen, w.ID)
		}
		after = page[len(page)-1].ID
	}
	require.Len(t, seen, 5)
}

func TestReminderClaim_Once(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	due := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	ok, err := s.Reminders().Claim(ctx, id, due, 7, due.AddDate(0, 0, -7))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = s.Reminders().Claim(ctx, id, due, 7, due.AddDate(0, 0, -6))
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = s.Reminders().Claim(ctx, id, due.AddDate(1, 0, 0), 7, due)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLatestVerified(t *testing.T) {
	s := New(nil)
	ctx := context.Background()
	wid := uuid.Must(uuid.NewV4())
	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.AddDate(1, 0, 0)

	_, err := s.Inspections().LatestVerified(ctx, wid)
	require.ErrorIs(t, err, errs.ErrNotFound)

	older := &model.Inspection{ID: uuid.Must(uuid.NewV4()), WarrantyID: wid, Status: model.InspectionVerified, VerifiedAt: &t1}
	newer := &model.Inspection{ID: uuid.Must(uuid.NewV4()), WarrantyID: wid, Status: model.InspectionVerified, VerifiedAt: &t2}
	draft := &model.Inspection{ID: uuid.Must(uuid.NewV4()), WarrantyID: wid, Status: model.InspectionDraft}
	for _, in := range []*model.Inspection{older, newer, draft} {
		require.NoError(t, s.Inspections().Create(ctx, in))
	}
	got, err := s.Inspections().LatestVerified(ctx, wid)
	require.NoError(t, err)
	require.Equal(t, newer.ID, got.ID)
}
