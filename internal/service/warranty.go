// Package service contains the warranty and inspection lifecycle managers and their collaborators.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/metrics"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Decision is a verifier's answer to a confirmation request.
type Decision string

const (
	DecisionConfirm Decision = "CONFIRM"
	DecisionDecline Decision = "DECLINE"
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// WarrantyInput is what an agent supplies to open a draft.
type WarrantyInput struct {
	Owner            model.Owner
	Vehicle          model.Vehicle
	SerialNumber     string
	InstallerID      uuid.UUID
	DateInstalled    *time.Time
	CorrosionFound   *bool
	CorrosionDetails string
	Photos           []model.Photo
}

// AcceptInput is the customer's terms acceptance.
type AcceptInput struct {
	AcceptTerms bool
	Signature   string
	IP          string
}

// OverrideInput drives an elevated transition that bypasses token checks.
type OverrideInput struct {
	Target                   model.WarrantyStatus
	Reason                   string
	Notes                    string
	SkipCustomerNotification bool
}

// ActivationSummary is what the customer sees before accepting terms.
type ActivationSummary struct {
	WarrantyID    uuid.UUID
	FirstName     string
	LastName      string
	Vehicle       model.Vehicle
	SerialNumber  string
	DateInstalled *time.Time
	ExpiresAt     time.Time
}

// TransitionRequest is one guarded warranty status change.
type TransitionRequest struct {
	ID      uuid.UUID
	From    model.WarrantyStatus
	To      model.WarrantyStatus
	Trigger model.Trigger
	Action  model.ActionType
	Actor   model.Actor
	Reason  string
	Notes   string
	Patch   model.WarrantyPatch
}

// WarrantyService manages the warranty lifecycle.
type WarrantyService interface {
	// Create opens a DRAFT record.
	Create(ctx context.Context, actor model.Actor, in WarrantyInput) (*model.Warranty, error)
	// UpdateDraft edits a DRAFT record.
	UpdateDraft(ctx context.Context, actor model.Actor, id uuid.UUID, d model.WarrantyEdit) (*model.Warranty, error)
	// AttachPhotos adds evidence to a DRAFT record.
	AttachPhotos(ctx context.Context, actor model.Actor, id uuid.UUID, photos []model.Photo) (*model.Warranty, error)
	// Submit runs the evidence gate and asks the installer to confirm.
	Submit(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Warranty, error)
	// ResendVerification replaces the installer's token.
	ResendVerification(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Warranty, error)
	// Verify applies the installer's decision.
	Verify(ctx context.Context, token string, decision Decision, reason string) (*model.Warranty, error)
	// ActivationDetails resolves a customer activation token.
	ActivationDetails(ctx context.Context, token string) (*ActivationSummary, error)
	// CustomerAccept activates coverage.
	CustomerAccept(ctx context.Context, token string, in AcceptInput) (*model.Warranty, error)
	// ResendActivation replaces the customer's token.
	ResendActivation(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Warranty, error)
	// AdminOverride forces a permitted edge without a token.
	AdminOverride(ctx context.Context, actor model.Actor, id uuid.UUID, in OverrideInput) (*model.Warranty, error)
	// Transition performs one guarded status change plus its audit entry.
	Transition(ctx context.Context, req TransitionRequest) (*model.Warranty, error)
	// Get loads a record visible to actor.
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Warranty, error)
	// History returns the audit trail, most recent first.
	History(ctx context.Context, actor model.Actor, id uuid.UUID) ([]model.AuditEntry, error)
	// SoftDelete hides a record and revokes its tokens.
	SoftDelete(ctx context.Context, actor model.Actor, id uuid.UUID) error
}

// WarrantyDeps are the collaborators of WarrantyServiceImpl.
type WarrantyDeps struct {
	Tx              repository.Transactor
	Warranties      repository.WarrantyRepository
	Partners        repository.PartnerRepository
	Tokens          TokenService
	Audit           AuditRecorder
	Gate            EvidenceGate
	Notifier        Notifier
	Metrics         *metrics.Metrics
	Log             *zap.Logger
	ExtensionMonths int
	Now             func() time.Time
}

type WarrantyServiceImpl struct {
	tx         repository.Transactor
	warranties repository.WarrantyRepository
	partners   repository.PartnerRepository
	tokens     TokenService
	audit      AuditRecorder
	gate       EvidenceGate
	notifier   Notifier
	metrics    *metrics.Metrics
	log        *zap.Logger
	extMonths  int
	now        func() time.Time
}

// NewWarrantyService constructs WarrantyService.
func NewWarrantyService(d WarrantyDeps) *WarrantyServiceImpl {
	if d.Notifier == nil {
		d.Notifier = NopNotifier()
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.ExtensionMonths <= 0 {
		d.ExtensionMonths = 12
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Gate == (EvidenceGate{}) {
		d.Gate = NewEvidenceGate(0, 0)
	}
	return &WarrantyServiceImpl{
		tx:         d.Tx,
		warranties: d.Warranties,
		partners:   d.Partners,
		tokens:     d.Tokens,
		audit:      d.Audit,
		gate:       d.Gate,
		notifier:   d.Notifier,
		metrics:    d.Metrics,
		log:        d.Log,
		extMonths:  d.ExtensionMonths,
		now:        d.Now,
	}
}

var _ WarrantyService = (*WarrantyServiceImpl)(nil)

// Create validates owner and installer and stores a DRAFT. Creation is not a transition, so no audit entry.
func (s *WarrantyServiceImpl) Create(ctx context.Context, actor model.Actor, in WarrantyInput) (*model.Warranty, error) {
	if !actor.Is(model.RoleAgent, model.RoleAdmin) {
		return nil, errs.ErrForbidden
	}
	problems := ownerProblems(in.Owner)
	problems = append(problems, corrosionProblems(in.CorrosionFound, in.CorrosionDetails, false)...)
	problems = append(problems, photoProblems(in.Photos, WarrantyPhotoCategories)...)
	p, err := s.installerProblems(ctx, in.InstallerID)
	if err != nil {
		return nil, err
	}
	problems = append(problems, p...)
	if len(problems) > 0 {
		return nil, errs.Validation(problems...)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("create warranty: %w", err)
	}
	now := s.now().UTC()
	w := &model.Warranty{
		ID:               id,
		Owner:            trimOwner(in.Owner),
		Vehicle:          in.Vehicle,
		SerialNumber:     strings.TrimSpace(in.SerialNumber),
		InstallerID:      in.InstallerID,
		DateInstalled:    in.DateInstalled,
		CreatedBy:        actor.ID,
		Status:           model.WarrantyDraft,
		CorrosionFound:   in.CorrosionFound,
		CorrosionDetails: in.CorrosionDetails,
		Photos:           stampPhotos(in.Photos, now),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.warranties.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create warranty: %w", err)
	}
	s.log.Info("warranty created", zap.String("warranty_id", id.String()), zap.String("actor", actor.ID))
	return w, nil
}

func (s *WarrantyServiceImpl) UpdateDraft(ctx context.Context, actor model.Actor, id uuid.UUID, d model.WarrantyEdit) (*model.Warranty, error) {
	w, err := s.loadForEdit(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	var problems []string
	if d.Owner != nil {
		problems = append(problems, ownerProblems(*d.Owner)...)
		o := trimOwner(*d.Owner)
		d.Owner = &o
	}
	found, details := w.CorrosionFound, w.CorrosionDetails
	if d.CorrosionFound != nil {
		found = d.CorrosionFound
	}
	if d.CorrosionDetails != nil {
		details = *d.CorrosionDetails
	}
	problems = append(problems, corrosionProblems(found, details, false)...)
	if len(problems) > 0 {
		return nil, errs.Validation(problems...)
	}
	return s.warranties.ConditionalUpdate(ctx, id, model.WarrantyDraft, model.WarrantyPatch{Draft: &d})
}

func (s *WarrantyServiceImpl) AttachPhotos(ctx context.Context, actor model.Actor, id uuid.UUID, photos []model.Photo) (*model.Warranty, error) {
	if len(photos) == 0 {
		return nil, errs.Validation("at least one photo is required")
	}
	if problems := photoProblems(photos, WarrantyPhotoCategories); len(problems) > 0 {
		return nil, errs.Validation(problems...)
	}
	if _, err := s.loadForEdit(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.warranties.ConditionalUpdate(ctx, id, model.WarrantyDraft,
		model.WarrantyPatch{AddPhotos: stampPhotos(photos, s.now().UTC())})
}

func (s *WarrantyServiceImpl) Submit(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Warranty, error) {
	return s.apply(ctx, id, edge{
		to: model.WarrantySubmitted, trigger: model.TriggerUser, action: model.ActionSubmitted, actor: actor,
	}, func(w *model.Warranty) error {
		if err := authorizeOwner(actor, w); err != nil {
			return err
		}
		return requireStatus(w.Status, model.WarrantyDraft)
	})
}

func (s *WarrantyServiceImpl) ResendVerification(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Warranty, error) {
	return s.apply(ctx, id, edge{
		to: model.WarrantySubmitted, trigger: model.TriggerUser, action: model.ActionTokenReissued, actor: actor,
	}, func(w *model.Warranty) error {
		if err := authorizeOwner(actor, w); err != nil {
			return err
		}
		return requireStatus(w.Status, model.WarrantySubmitted)
	})
}

func (s *WarrantyServiceImpl) ResendActivation(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Warranty, error) {
	return s.apply(ctx, id, edge{
		to: model.WarrantyPendingActivation, trigger: model.TriggerUser, action: model.ActionTokenReissued, actor: actor,
	}, func(w *model.Warranty) error {
		if err := authorizeOwner(actor, w); err != nil {
			return err
		}
		return requireStatus(w.Status, model.WarrantyPendingActivation)
	})
}

// Verify validates the decision before touching the token so malformed calls never consume it.
// A concurrent verifier that loses the status guard observes ErrTokenInvalid.
func (s *WarrantyServiceImpl) Verify(ctx context.Context, token string, decision Decision, reason string) (*model.Warranty, error) {
	reason = strings.TrimSpace(reason)
	e := edge{trigger: model.TriggerUser}
	switch decision {
	case DecisionConfirm:
		e.to, e.action = model.WarrantyPendingActivation, model.ActionVerified
	case DecisionDecline:
		if reason == "" {
			return nil, errs.Validation("rejection reason is required when declining")
		}
		e.to, e.action, e.reason = model.WarrantyRejected, model.ActionRejected, reason
	default:
		return nil, errs.Validation("action must be CONFIRM or DECLINE")
	}

	tok, err := s.tokens.Resolve(ctx, token, model.PurposeWarrantyVerification)
	if err != nil {
		return nil, err
	}
	w, err := s.byToken(ctx, tok, model.WarrantySubmitted, func(w *model.Warranty) *model.TokenRef { return w.VerificationToken })
	if err != nil {
		return nil, err
	}
	e.actor = model.Actor{ID: w.InstallerID.String(), Role: model.RoleInstaller}
	out, err := s.apply(ctx, w.ID, e, func(w *model.Warranty) error {
		if w.Status != model.WarrantySubmitted || !matchesRef(w.VerificationToken, tok) {
			return errs.ErrTokenInvalid
		}
		return nil
	})
	if errors.Is(err, errs.ErrInvalidState) {
		return nil, errs.ErrTokenInvalid
	}
	return out, err
}

func (s *WarrantyServiceImpl) ActivationDetails(ctx context.Context, token string) (*ActivationSummary, error) {
	tok, err := s.tokens.Resolve(ctx, token, model.PurposeCustomerActivation)
	if err != nil {
		return nil, err
	}
	w, err := s.byToken(ctx, tok, model.WarrantyPendingActivation, func(w *model.Warranty) *model.TokenRef { return w.ActivationToken })
	if err != nil {
		return nil, err
	}
	return &ActivationSummary{
		WarrantyID:    w.ID,
		FirstName:     w.Owner.FirstName,
		LastName:      w.Owner.LastName,
		Vehicle:       w.Vehicle,
		SerialNumber:  w.SerialNumber,
		DateInstalled: w.DateInstalled,
		ExpiresAt:     tok.ExpiresAt,
	}, nil
}

func (s *WarrantyServiceImpl) CustomerAccept(ctx context.Context, token string, in AcceptInput) (*model.Warranty, error) {
	if !in.AcceptTerms {
		return nil, errs.Validation("terms must be accepted")
	}
	tok, err := s.tokens.Resolve(ctx, token, model.PurposeCustomerActivation)
	if err != nil {
		return nil, err
	}
	w, err := s.byToken(ctx, tok, model.WarrantyPendingActivation, func(w *model.Warranty) *model.TokenRef { return w.ActivationToken })
	if err != nil {
		return nil, err
	}
	e := edge{
		to:      model.WarrantyActive,
		trigger: model.TriggerUser,
		action:  model.ActionCustomerActivated,
		actor:   model.Actor{ID: "customer:" + w.ID.String(), Role: model.RoleCustomer},
		extra: model.WarrantyPatch{
			TermsAcceptedIP:   model.Ptr(in.IP),
			CustomerSignature: model.Ptr(strings.TrimSpace(in.Signature)),
		},
	}
	out, err := s.apply(ctx, w.ID, e, func(w *model.Warranty) error {
		if w.Status != model.WarrantyPendingActivation || !matchesRef(w.ActivationToken, tok) {
			return errs.ErrTokenInvalid
		}
		return nil
	})
	if errors.Is(err, errs.ErrInvalidState) {
		return nil, errs.ErrTokenInvalid
	}
	return out, err
}

// AdminOverride accepts any edge the transition table opens to overrides. Side effects match the
// natural edge, including the evidence gate on DRAFT -> SUBMITTED.
func (s *WarrantyServiceImpl) AdminOverride(ctx context.Context, actor model.Actor, id uuid.UUID, in OverrideInput) (*model.Warranty, error) {
	if !actor.Elevated() {
		return nil, errs.ErrForbidden
	}
	var problems []string
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		problems = append(problems, "override reason is required")
	}
	if !in.Target.Valid() {
		problems = append(problems, fmt.Sprintf("unknown target status %q", in.Target))
	}
	if len(problems) > 0 {
		return nil, errs.Validation(problems...)
	}
	return s.apply(ctx, id, edge{
		to:           in.Target,
		trigger:      model.TriggerOverride,
		action:       model.ActionAdminOverride,
		actor:        actor,
		reason:       reason,
		notes:        in.Notes,
		skipCustomer: in.SkipCustomerNotification,
	}, nil)
}

// Transition runs req in its own transaction, or joins the caller's.
func (s *WarrantyServiceImpl) Transition(ctx context.Context, req TransitionRequest) (*model.Warranty, error) {
	var out *model.Warranty
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.transitionTx(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.observe(req.From, req.To, req.Trigger)
	return out, nil
}

func (s *WarrantyServiceImpl) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Warranty, error) {
	w, err := s.warranties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeRead(actor, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WarrantyServiceImpl) History(ctx context.Context, actor model.Actor, id uuid.UUID) ([]model.AuditEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, model.RecordWarranty, id)
}

func (s *WarrantyServiceImpl) SoftDelete(ctx context.Context, actor model.Actor, id uuid.UUID) error {
	if !actor.Elevated() {
		return errs.ErrForbidden
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		w, err := s.warranties.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := s.warranties.ConditionalUpdate(ctx, id, w.Status, model.WarrantyPatch{
			Deleted:                model.Ptr(true),
			ClearVerificationToken: true,
			ClearActivationToken:   true,
		}); err != nil {
			return err
		}
		for _, p := range []model.TokenPurpose{model.PurposeWarrantyVerification, model.PurposeCustomerActivation} {
			if err := s.tokens.Revoke(ctx, id, p); err != nil {
				return err
			}
		}
		return s.audit.Record(ctx, model.AuditEntry{
			RecordID:     id,
			RecordType:   model.RecordWarranty,
			ActionType:   model.ActionSoftDeleted,
			StatusBefore: string(w.Status),
			StatusAfter:  string(w.Status),
			PerformedBy:  actor.ID,
		})
	})
}

// edge describes one requested lifecycle step before its side effects are derived.
type edge struct {
	to           model.WarrantyStatus
	trigger      model.Trigger
	action       model.ActionType
	actor        model.Actor
	reason       string
	notes        string
	skipCustomer bool
	extra        model.WarrantyPatch
}

type afterCommit func(ctx context.Context, w *model.Warranty)

// apply locks the record, checks guard and legality, derives side effects, and writes the
// transition with its audit entry in one transaction. Notifications go out after commit.
func (s *WarrantyServiceImpl) apply(ctx context.Context, id uuid.UUID, e edge, guard func(*model.Warranty) error) (*model.Warranty, error) {
	var (
		out   *model.Warranty
		from  model.WarrantyStatus
		after afterCommit
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		w, err := s.warranties.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(w); err != nil {
				return err
			}
		}
		from = w.Status
		if !model.CanTransitionWarranty(from, e.to, e.trigger) {
			return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidState, from, e.to)
		}
		patch, notify, err := s.effects(ctx, w, e)
		if err != nil {
			return err
		}
		out, err = s.transitionTx(ctx, TransitionRequest{
			ID: id, From: from, To: e.to, Trigger: e.trigger, Action: e.action,
			Actor: e.actor, Reason: e.reason, Notes: e.notes, Patch: patch,
		})
		after = notify
		return err
	})
	if err != nil {
		return nil, err
	}
	s.observe(from, e.to, e.trigger)
	if after != nil {
		after(notifyCtx(ctx), out)
	}
	return out, nil
}

// effects derives the field writes and follow-up notification of the natural edge into e.to.
func (s *WarrantyServiceImpl) effects(ctx context.Context, w *model.Warranty, e edge) (model.WarrantyPatch, afterCommit, error) {
	now := s.now().UTC()
	p := e.extra
	switch e.to {
	case model.WarrantySubmitted:
		if w.Status == model.WarrantyDraft {
			if problems := s.gate.CheckWarranty(w); len(problems) > 0 {
				return p, nil, errs.Validation(problems...)
			}
		}
		tok, err := s.tokens.Issue(ctx, w.ID, model.PurposeWarrantyVerification)
		if err != nil {
			return p, nil, err
		}
		ref := tok.Ref()
		p.VerificationToken = &ref
		return p, func(ctx context.Context, w *model.Warranty) {
			if installer := s.partner(ctx, w.InstallerID); installer != nil {
				s.notifier.WarrantyVerificationRequested(ctx, w, installer, tok.Plain)
			}
		}, nil

	case model.WarrantyPendingActivation:
		tok, err := s.tokens.Issue(ctx, w.ID, model.PurposeCustomerActivation)
		if err != nil {
			return p, nil, err
		}
		ref := tok.Ref()
		p.ActivationToken = &ref
		if w.Status == model.WarrantySubmitted {
			p.VerifiedAt = &now
			p.VerifiedBy = model.Ptr(e.actor.ID)
		}
		return p, s.customer(e, func(ctx context.Context, w *model.Warranty) {
			s.notifier.WarrantyActivationRequested(ctx, w, tok.Plain)
		}), nil

	case model.WarrantyRejected:
		p.RejectionReason = model.Ptr(e.reason)
		return p, func(ctx context.Context, w *model.Warranty) {
			s.notifier.WarrantyRejected(ctx, w, s.partner(ctx, w.InstallerID))
		}, nil

	case model.WarrantyActive:
		p.ActivatedAt = &now
		if w.DateInstalled != nil {
			due := model.AddMonths(*w.DateInstalled, s.extMonths)
			p.InspectionDueDate = &due
		}
		return p, s.customer(e, s.notifier.WarrantyActivated), nil

	case model.WarrantyLapsed:
		p.LapsedAt = &now
		return p, s.customer(e, s.notifier.WarrantyLapsed), nil

	case model.WarrantyDraft:
		p.RejectionReason = model.Ptr("")
		return p, nil, nil
	}
	return p, nil, nil
}

func (s *WarrantyServiceImpl) customer(e edge, fn afterCommit) afterCommit {
	if e.skipCustomer {
		return nil
	}
	return fn
}

// transitionTx must run inside a transaction. Leaving SUBMITTED or PENDING_CUSTOMER_ACTIVATION
// consumes the corresponding token.
func (s *WarrantyServiceImpl) transitionTx(ctx context.Context, req TransitionRequest) (*model.Warranty, error) {
	if !model.CanTransitionWarranty(req.From, req.To, req.Trigger) {
		return nil, fmt.Errorf("%w: %s -> %s", errs.ErrInvalidState, req.From, req.To)
	}
	p := req.Patch
	p.Status = &req.To
	var revoke []model.TokenPurpose
	if req.From == model.WarrantySubmitted && req.To != model.WarrantySubmitted {
		p.ClearVerificationToken = true
		revoke = append(revoke, model.PurposeWarrantyVerification)
	}
	if req.From == model.WarrantyPendingActivation && req.To != model.WarrantyPendingActivation {
		p.ClearActivationToken = true
		revoke = append(revoke, model.PurposeCustomerActivation)
	}

	w, err := s.warranties.ConditionalUpdate(ctx, req.ID, req.From, p)
	if err != nil {
		return nil, err
	}
	for _, purpose := range revoke {
		if err := s.tokens.Revoke(ctx, req.ID, purpose); err != nil {
			return nil, err
		}
	}
	if err := s.audit.Record(ctx, model.AuditEntry{
		RecordID:     req.ID,
		RecordType:   model.RecordWarranty,
		ActionType:   req.Action,
		StatusBefore: string(req.From),
		StatusAfter:  string(req.To),
		PerformedBy:  req.Actor.ID,
		Reason:       req.Reason,
		Notes:        req.Notes,
		Override:     req.Trigger == model.TriggerOverride,
	}); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WarrantyServiceImpl) observe(from, to model.WarrantyStatus, trigger model.Trigger) {
	s.metrics.ObserveTransition(string(model.RecordWarranty), string(from), string(to), trigger.String())
	s.log.Info("warranty transition",
		zap.String("from", string(from)), zap.String("to", string(to)), zap.Stringer("trigger", trigger))
}

// byToken loads the record a resolved token points at; a record that no longer holds it is ErrTokenInvalid.
func (s *WarrantyServiceImpl) byToken(ctx context.Context, tok *model.Token, status model.WarrantyStatus, ref func(*model.Warranty) *model.TokenRef) (*model.Warranty, error) {
	w, err := s.warranties.GetByID(ctx, tok.RecordID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if w.Status != status || !matchesRef(ref(w), tok) {
		return nil, errs.ErrTokenInvalid
	}
	return w, nil
}

func (s *WarrantyServiceImpl) loadForEdit(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Warranty, error) {
	w, err := s.warranties.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeOwner(actor, w); err != nil {
		return nil, err
	}
	if err := requireStatus(w.Status, model.WarrantyDraft); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WarrantyServiceImpl) installerProblems(ctx context.Context, id uuid.UUID) ([]string, error) {
	if id == uuid.Nil {
		return []string{"installer is required"}, nil
	}
	p, err := s.partners.GetByID(ctx, id)
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return []string{"installer not found"}, nil
	case err != nil:
		return nil, fmt.Errorf("lookup installer: %w", err)
	case p.Kind != model.PartnerInstaller || !p.Accredited:
		return []string{"installer is not an accredited installer"}, nil
	}
	return nil, nil
}

// partner is a best-effort lookup for notifications.
func (s *WarrantyServiceImpl) partner(ctx context.Context, id uuid.UUID) *model.Partner {
	p, err := s.partners.GetByID(ctx, id)
	if err != nil {
		s.log.Warn("partner lookup for notification failed", zap.String("partner_id", id.String()), zap.Error(err))
		return nil
	}
	return p
}

func ownerProblems(o model.Owner) []string {
	var out []string
	if strings.TrimSpace(o.FirstName) == "" {
		out = append(out, "owner first name is required")
	}
	if strings.TrimSpace(o.LastName) == "" {
		out = append(out, "owner last name is required")
	}
	if email := strings.TrimSpace(o.Email); email == "" {
		out = append(out, "owner email is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		out = append(out, "owner email is malformed")
	}
	if o.Phone != "" && !e164.MatchString(strings.TrimSpace(o.Phone)) {
		out = append(out, "owner phone must be in E.164 format")
	}
	return out
}

func trimOwner(o model.Owner) model.Owner {
	o.FirstName = strings.TrimSpace(o.FirstName)
	o.LastName = strings.TrimSpace(o.LastName)
	o.Email = strings.TrimSpace(o.Email)
	o.Phone = strings.TrimSpace(o.Phone)
	return o
}

func stampPhotos(photos []model.Photo, now time.Time) []model.Photo {
	out := make([]model.Photo, len(photos))
	for i, p := range photos {
		if p.UploadedAt.IsZero() {
			p.UploadedAt = now
		}
		out[i] = p
	}
	return out
}

func requireStatus[S ~string](got, want S) error {
	if got != want {
		return fmt.Errorf("%w: record is %s, expected %s", errs.ErrInvalidState, got, want)
	}
	return nil
}

// authorizeOwner lets admins act on any record and agents on their own.
func authorizeOwner(actor model.Actor, w *model.Warranty) error {
	switch {
	case actor.Elevated():
		return nil
	case actor.Role == model.RoleAgent && actor.ID == w.CreatedBy:
		return nil
	}
	return errs.ErrForbidden
}

func authorizeRead(actor model.Actor, w *model.Warranty) error {
	switch actor.Role {
	case model.RoleAdmin, model.RoleSystem, model.RoleInspector:
		return nil
	case model.RoleAgent:
		if actor.ID == w.CreatedBy {
			return nil
		}
	case model.RoleInstaller:
		if actor.ID == w.InstallerID.String() {
			return nil
		}
	}
	return errs.ErrForbidden
}
