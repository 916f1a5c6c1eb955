package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/repository/memory"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) { c.Set(c.Now().Add(d)) }

// recordingNotifier keeps the plaintext tokens handed to recipients.
type recordingNotifier struct {
	mu           sync.Mutex
	verification []string
	activation   []string
	inspection   []string
	calls        map[string]int
}

var _ Notifier = (*recordingNotifier)(nil)

func (n *recordingNotifier) hit(kind string) {
	if n.calls == nil {
		n.calls = map[string]int{}
	}
	n.calls[kind]++
}

func (n *recordingNotifier) WarrantyVerificationRequested(_ context.Context, _ *model.Warranty, _ *model.Partner, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hit("verification")
	n.verification = append(n.verification, token)
}

func (n *recordingNotifier) WarrantyActivationRequested(_ context.Context, _ *model.Warranty, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hit("activation")
	n.activation = append(n.activation, token)
}

func (n *recordingNotifier) WarrantyActivated(context.Context, *model.Warranty) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hit("activated")
}

func (n *recordingNotifier) WarrantyRejected(context.Context, *model.Warranty, *model.Partner) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hit("rejected")
}

func (n *recordingNotifier) InspectionVerificationRequested(_ context.Context, _ *model.Inspection, _ *model.Partner, token string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hit("inspection_verification")
	n.inspection = append(n.inspection, token)
}

func (n *recordingNotifier) InspectionVerified(context.Context, *model.Warranty) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hit("inspection_verified")
}

func (n *recordingNotifier) InspectionReminder(context.Context, *model.Warranty, int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hit("reminder")
}

func (n *recordingNotifier) WarrantyLapsed(context.Context, *model.Warranty) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hit("lapsed")
}

func (n *recordingNotifier) WarrantyReinstated(context.Context, *model.Warranty) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hit("reinstated")
}

func (n *recordingNotifier) count(kind string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[kind]
}

func (n *recordingNotifier) lastVerification() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.verification[len(n.verification)-1]
}

func (n *recordingNotifier) lastActivation() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.activation[len(n.activation)-1]
}

func (n *recordingNotifier) lastInspection() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.inspection[len(n.inspection)-1]
}

type fixture struct {
	ctx      context.Context
	clock    *fakeClock
	store    *memory.Store
	notes    *recordingNotifier
	tokens   *TokenServiceImpl
	audit    *AuditRecorderImpl
	warranty *WarrantyServiceImpl
	insp     *InspectionServiceImpl
	reinst   *ReinstatementServiceImpl

	agent     model.Actor
	admin     model.Actor
	installer model.Partner
	inspector model.Partner
}

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	clock := &fakeClock{t: t0}
	store := memory.New(clock.Now)
	log := zaptest.NewLogger(t)
	notes := &recordingNotifier{}

	tokens := NewTokenService(store.Tokens(), 24*time.Hour, 7*24*time.Hour, clock.Now)
	audit := NewAuditRecorder(store.Audit(), log, clock.Now)
	gate := NewEvidenceGate(3, 1)

	ws := NewWarrantyService(WarrantyDeps{
		Tx: store, Warranties: store.Warranties(), Partners: store.Partners(),
		Tokens: tokens, Audit: audit, Gate: gate, Notifier: notes, Log: log,
		ExtensionMonths: 12, Now: clock.Now,
	})
	is := NewInspectionService(InspectionDeps{
		Tx: store, Inspections: store.Inspections(), Warranties: store.Warranties(), Partners: store.Partners(),
		Tokens: tokens, Audit: audit, Gate: gate, Notifier: notes, Log: log,
		ExtensionMonths: 12, Now: clock.Now,
	})
	rs := NewReinstatementService(store, store.Warranties(), store.Inspections(), store.Reinstatements(), ws, notes, log, clock.Now)

	f := &fixture{
		ctx: ctx, clock: clock, store: store, notes: notes,
		tokens: tokens, audit: audit, warranty: ws, insp: is, reinst: rs,
		agent: model.Actor{ID: "agent-1", Role: model.RoleAgent},
		admin: model.Actor{ID: "admin-1", Role: model.RoleAdmin},
		installer: model.Partner{
			ID: uuid.Must(uuid.NewV4()), Kind: model.PartnerInstaller, Name: "Fit Co",
			Email: "fit@example.com", Phone: "+15550001111", Accredited: true,
		},
		inspector: model.Partner{
			ID: uuid.Must(uuid.NewV4()), Kind: model.PartnerInspector, Name: "Check Co",
			Email: "check@example.com", Accredited: true,
		},
	}
	require.NoError(t, store.Partners().Create(ctx, &f.installer))
	require.NoError(t, store.Partners().Create(ctx, &f.inspector))
	return f
}

func photos(n int, cats []model.PhotoCategory) []model.Photo {
	out := make([]model.Photo, n)
	for i := range out {
		out[i] = model.Photo{Category: cats[i%len(cats)], URL: "https://img.example.com/" + string(cats[i%len(cats)])}
	}
	return out
}

func (f *fixture) input() WarrantyInput {
	installed := t0.AddDate(0, 0, -10)
	return WarrantyInput{
		Owner:          model.Owner{FirstName: "Ann", LastName: "Lee", Email: "ann@example.com", Phone: "+447700900123"},
		Vehicle:        model.Vehicle{VIN: "1HGCM82633A004352", Make: "Honda", Model: "Accord", Year: 2021},
		SerialNumber:   "SN-0001",
		InstallerID:    f.installer.ID,
		DateInstalled:  &installed,
		CorrosionFound: model.Ptr(false),
	}
}

func (f *fixture) draft(t *testing.T, nPhotos int) *model.Warranty {
	t.Helper()
	in := f.input()
	in.Photos = photos(nPhotos, WarrantyPhotoCategories)
	w, err := f.warranty.Create(f.ctx, f.agent, in)
	require.NoError(t, err)
	return w
}

func (f *fixture) submitted(t *testing.T) *model.Warranty {
	t.Helper()
	w, err := f.warranty.Submit(f.ctx, f.agent, f.draft(t, 3).ID)
	require.NoError(t, err)
	return w
}

func (f *fixture) active(t *testing.T) *model.Warranty {
	t.Helper()
	w := f.submitted(t)
	_, err := f.warranty.Verify(f.ctx, f.notes.lastVerification(), DecisionConfirm, "")
	require.NoError(t, err)
	w, err = f.warranty.CustomerAccept(f.ctx, f.notes.lastActivation(), AcceptInput{AcceptTerms: true, IP: "203.0.113.7"})
	require.NoError(t, err)
	require.Equal(t, model.WarrantyActive, w.Status)
	return w
}

func (f *fixture) lapsed(t *testing.T) *model.Warranty {
	t.Helper()
	w := f.active(t)
	w, err := f.warranty.Transition(f.ctx, TransitionRequest{
		ID: w.ID, From: model.WarrantyActive, To: model.WarrantyLapsed,
		Trigger: model.TriggerScheduler, Action: model.ActionGracePeriodExpired,
		Actor: model.SystemScheduler, Patch: model.WarrantyPatch{LapsedAt: model.Ptr(f.clock.Now())},
	})
	require.NoError(t, err)
	return w
}

func (f *fixture) history(t *testing.T, id uuid.UUID) []model.AuditEntry {
	t.Helper()
	h, err := f.audit.History(f.ctx, model.RecordWarranty, id)
	require.NoError(t, err)
	return h
}

func (f *fixture) inspectionInput(warrantyID uuid.UUID) InspectionInput {
	return InspectionInput{
		WarrantyID:     warrantyID,
		InspectorID:    f.inspector.ID,
		InspectionDate: f.clock.Now(),
		Areas: []model.AreaCondition{
			{Area: model.AreaEngineBay, Condition: model.ConditionGood},
			{Area: model.AreaUndercarriage, Condition: model.ConditionIssue, Notes: "surface rust on rear subframe"},
		},
		Checklist: model.Checklist{
			GeneratorMounted:    model.Ptr(true),
			RedLightIlluminated: model.Ptr(true),
			CouplersSecure:      model.Ptr(true),
			OwnerAdvised:        model.Ptr(false),
		},
		CorrosionFound: model.Ptr(false),
		Photos:         photos(3, InspectionPhotoCategories),
	}
}
