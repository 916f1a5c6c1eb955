// Package memory implements the repository interfaces in process memory.
// It backs -storage=memory and the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
)

type txKey struct{ s *Store }

type reminderKey struct {
	warrantyID uuid.UUID
	dueDate    int64
	tier       int
}

type tokenKey struct {
	recordID uuid.UUID
	purpose  model.TokenPurpose
}

type state struct {
	warranties     map[uuid.UUID]model.Warranty
	inspections    map[uuid.UUID]model.Inspection
	tokens         map[string]model.Token
	tokenByRecord  map[tokenKey]string
	partners       map[uuid.UUID]model.Partner
	reminders      map[reminderKey]time.Time
	reinstatements []model.Reinstatement
	audit          []model.AuditEntry
}

func newState() state {
	return state{
		warranties:    make(map[uuid.UUID]model.Warranty),
		inspections:   make(map[uuid.UUID]model.Inspection),
		tokens:        make(map[string]model.Token),
		tokenByRecord: make(map[tokenKey]string),
		partners:      make(map[uuid.UUID]model.Partner),
		reminders:     make(map[reminderKey]time.Time),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.warranties {
		c.warranties[k] = cloneWarranty(v)
	}
	for k, v := range s.inspections {
		c.inspections[k] = cloneInspection(v)
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.tokenByRecord {
		c.tokenByRecord[k] = v
	}
	for k, v := range s.partners {
		c.partners[k] = v
	}
	for k, v := range s.reminders {
		c.reminders[k] = v
	}
	c.reinstatements = append([]model.Reinstatement(nil), s.reinstatements...)
	c.audit = append([]model.AuditEntry(nil), s.audit...)
	return c
}

// Store holds every table behind one mutex. A transaction holds the mutex until it ends.
type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

var _ repository.Transactor = (*Store)(nil)

// New constructs an empty store. A nil clock defaults to time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{st: newState(), now: now}
}

// WithinTx serializes fn against every other store access and restores the
// previous state if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.st.clone()
	defer func() {
		if p := recover(); p != nil {
			s.st = snapshot
			panic(p)
		}
		if err != nil {
			s.st = snapshot
		}
	}()
	return fn(context.WithValue(ctx, txKey{s}, true))
}

func (s *Store) inTx(ctx context.Context) bool {
	v, _ := ctx.Value(txKey{s}).(bool)
	return v
}

// lock acquires the mutex unless ctx already runs inside this store's transaction.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Warranties returns the warranty repository view.
func (s *Store) Warranties() *WarrantyRepo { return &WarrantyRepo{s: s} }

// Inspections returns the inspection repository view.
func (s *Store) Inspections() *InspectionRepo { return &InspectionRepo{s: s} }

// Audit returns the audit repository view.
func (s *Store) Audit() *AuditRepo { return &AuditRepo{s: s} }

// Tokens returns the token repository view.
func (s *Store) Tokens() *TokenRepo { return &TokenRepo{s: s} }

// Partners returns the partner repository view.
func (s *Store) Partners() *PartnerRepo { return &PartnerRepo{s: s} }

// Reminders returns the reminder log view.
func (s *Store) Reminders() *ReminderRepo { return &ReminderRepo{s: s} }

// Reinstatements returns the reinstatement repository view.
func (s *Store) Reinstatements() *ReinstatementRepo { return &ReinstatementRepo{s: s} }

func cloneWarranty(w model.Warranty) model.Warranty {
	w.Photos = append([]model.Photo(nil), w.Photos...)
	return w
}

func cloneInspection(in model.Inspection) model.Inspection {
	in.Photos = append([]model.Photo(nil), in.Photos...)
	in.Areas = append([]model.AreaCondition(nil), in.Areas...)
	return in
}

func sortByID[T any](xs []T, id func(T) uuid.UUID) {
	sort.Slice(xs, func(i, j int) bool {
		a, b := id(xs[i]), id(xs[j])
		return string(a.Bytes()) < string(b.Bytes())
	})
}
