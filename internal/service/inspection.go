package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/metrics"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// InspectionInput is what an inspector or agent supplies to open an inspection draft.
type InspectionInput struct {
	WarrantyID       uuid.UUID
	InspectorID      uuid.UUID
	InspectionDate   time.Time
	Areas            []model.AreaCondition
	Checklist        model.Checklist
	CorrosionFound   *bool
	CorrosionDetails string
	Photos           []model.Photo
}

// InspectionOverrideInput drives an elevated inspection transition.
type InspectionOverrideInput struct {
	Target model.InspectionStatus
	Reason string
	Notes  string
}

// InspectionService manages the annual inspection lifecycle.
type InspectionService interface {
	Create(ctx context.Context, actor model.Actor, in InspectionInput) (*model.Inspection, error)
	UpdateDraft(ctx context.Context, actor model.Actor, id uuid.UUID, d model.InspectionEdit) (*model.Inspection, error)
	AttachPhotos(ctx context.Context, actor model.Actor, id uuid.UUID, photos []model.Photo) (*model.Inspection, error)
	Submit(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Inspection, error)
	ResendVerification(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Inspection, error)
	// Verify applies the inspector's decision. CONFIRM extends the parent warranty.
	Verify(ctx context.Context, token string, decision Decision, reason string) (*model.Inspection, error)
	AdminOverride(ctx context.Context, actor model.Actor, id uuid.UUID, in InspectionOverrideInput) (*model.Inspection, error)
	Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Inspection, error)
	History(ctx context.Context, actor model.Actor, id uuid.UUID) ([]model.AuditEntry, error)
}

// InspectionDeps are the collaborators of InspectionServiceImpl.
type InspectionDeps struct {
	Tx              repository.Transactor
	Inspections     repository.InspectionRepository
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

type InspectionServiceImpl struct {
	tx          repository.Transactor
	inspections repository.InspectionRepository
	warranties  repository.WarrantyRepository
	partners    repository.PartnerRepository
	tokens      TokenService
	audit       AuditRecorder
	gate        EvidenceGate
	notifier    Notifier
	metrics     *metrics.Metrics
	log         *zap.Logger
	extMonths   int
	now         func() time.Time
}

// NewInspectionService constructs InspectionService.
func NewInspectionService(d InspectionDeps) *InspectionServiceImpl {
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
	return &InspectionServiceImpl{
		tx:          d.Tx,
		inspections: d.Inspections,
		warranties:  d.Warranties,
		partners:    d.Partners,
		tokens:      d.Tokens,
		audit:       d.Audit,
		gate:        d.Gate,
		notifier:    d.Notifier,
		metrics:     d.Metrics,
		log:         d.Log,
		extMonths:   d.ExtensionMonths,
		now:         d.Now,
	}
}

var _ InspectionService = (*InspectionServiceImpl)(nil)

func (s *InspectionServiceImpl) Create(ctx context.Context, actor model.Actor, in InspectionInput) (*model.Inspection, error) {
	if !actor.Is(model.RoleInspector, model.RoleAgent, model.RoleAdmin) {
		return nil, errs.ErrForbidden
	}
	if in.InspectorID == uuid.Nil && actor.Role == model.RoleInspector {
		if id, err := uuid.FromString(actor.ID); err == nil {
			in.InspectorID = id
		}
	}

	now := s.now().UTC()
	if in.InspectionDate.IsZero() {
		in.InspectionDate = now
	}
	var (
		problems []string
		parent   *model.Warranty
	)
	switch w, err := s.warranties.GetByID(ctx, in.WarrantyID); {
	case in.WarrantyID == uuid.Nil:
		problems = append(problems, "warranty is required")
	case errors.Is(err, errs.ErrNotFound):
		problems = append(problems, "warranty not found")
	case err != nil:
		return nil, fmt.Errorf("lookup warranty: %w", err)
	case w.Status != model.WarrantyActive:
		problems = append(problems, fmt.Sprintf("warranty must be ACTIVE, is %s", w.Status))
	default:
		parent = w
	}
	problems = append(problems, inspectionDateProblems(in.InspectionDate, now, parent)...)
	switch p, err := s.partners.GetByID(ctx, in.InspectorID); {
	case in.InspectorID == uuid.Nil:
		problems = append(problems, "inspector is required")
	case errors.Is(err, errs.ErrNotFound):
		problems = append(problems, "inspector not found")
	case err != nil:
		return nil, fmt.Errorf("lookup inspector: %w", err)
	case p.Kind != model.PartnerInspector || !p.Accredited:
		problems = append(problems, "inspector is not a certified inspector")
	}
	problems = append(problems, areaProblems(in.Areas)...)
	problems = append(problems, corrosionProblems(in.CorrosionFound, in.CorrosionDetails, false)...)
	problems = append(problems, photoProblems(in.Photos, InspectionPhotoCategories)...)
	if len(problems) > 0 {
		return nil, errs.Validation(problems...)
	}

	id, err := uuid.NewV4()
	if err != nil {
		return nil, fmt.Errorf("create inspection: %w", err)
	}
	rec := &model.Inspection{
		ID:               id,
		WarrantyID:       in.WarrantyID,
		InspectorID:      in.InspectorID,
		InspectionDate:   in.InspectionDate.UTC(),
		Areas:            in.Areas,
		Checklist:        in.Checklist,
		CorrosionFound:   in.CorrosionFound,
		CorrosionDetails: in.CorrosionDetails,
		Photos:           stampPhotos(in.Photos, now),
		Status:           model.InspectionDraft,
		CreatedBy:        actor.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.inspections.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create inspection: %w", err)
	}
	s.log.Info("inspection created", zap.String("inspection_id", id.String()), zap.String("warranty_id", in.WarrantyID.String()))
	return rec, nil
}

func (s *InspectionServiceImpl) UpdateDraft(ctx context.Context, actor model.Actor, id uuid.UUID, d model.InspectionEdit) (*model.Inspection, error) {
	in, err := s.loadForEdit(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	var problems []string
	if d.InspectionDate != nil {
		parent, err := s.warranties.GetByID(ctx, in.WarrantyID)
		if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("lookup warranty: %w", err)
		}
		problems = append(problems, inspectionDateProblems(*d.InspectionDate, s.now().UTC(), parent)...)
	}
	if d.Areas != nil {
		problems = append(problems, areaProblems(d.Areas)...)
	}
	found, details := in.CorrosionFound, in.CorrosionDetails
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
	return s.inspections.ConditionalUpdate(ctx, id, model.InspectionDraft, model.InspectionPatch{Draft: &d})
}

// inspectionDateProblems bounds an inspection date to the span from the parent's
// activation day up to now.
func inspectionDateProblems(date, now time.Time, parent *model.Warranty) []string {
	var out []string
	if date.After(now) {
		out = append(out, "inspection date cannot be in the future")
	}
	if parent != nil && parent.ActivatedAt != nil {
		y, m, d := parent.ActivatedAt.UTC().Date()
		if date.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
			out = append(out, "inspection date cannot precede warranty activation")
		}
	}
	return out
}

func (s *InspectionServiceImpl) AttachPhotos(ctx context.Context, actor model.Actor, id uuid.UUID, photos []model.Photo) (*model.Inspection, error) {
	if len(photos) == 0 {
		return nil, errs.Validation("at least one photo is required")
	}
	if problems := photoProblems(photos, InspectionPhotoCategories); len(problems) > 0 {
		return nil, errs.Validation(problems...)
	}
	if _, err := s.loadForEdit(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.inspections.ConditionalUpdate(ctx, id, model.InspectionDraft,
		model.InspectionPatch{AddPhotos: stampPhotos(photos, s.now().UTC())})
}

func (s *InspectionServiceImpl) Submit(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Inspection, error) {
	return s.apply(ctx, id, inspectionEdge{
		to: model.InspectionSubmitted, trigger: model.TriggerUser, action: model.ActionSubmitted, actor: actor,
	}, func(in *model.Inspection) error {
		if err := authorizeInspection(actor, in); err != nil {
			return err
		}
		return requireStatus(in.Status, model.InspectionDraft)
	})
}

func (s *InspectionServiceImpl) ResendVerification(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Inspection, error) {
	return s.apply(ctx, id, inspectionEdge{
		to: model.InspectionSubmitted, trigger: model.TriggerUser, action: model.ActionTokenReissued, actor: actor,
	}, func(in *model.Inspection) error {
		if err := authorizeInspection(actor, in); err != nil {
			return err
		}
		return requireStatus(in.Status, model.InspectionSubmitted)
	})
}

func (s *InspectionServiceImpl) Verify(ctx context.Context, token string, decision Decision, reason string) (*model.Inspection, error) {
	reason = strings.TrimSpace(reason)
	e := inspectionEdge{trigger: model.TriggerUser}
	switch decision {
	case DecisionConfirm:
		e.to, e.action = model.InspectionVerified, model.ActionVerified
	case DecisionDecline:
		if reason == "" {
			return nil, errs.Validation("rejection reason is required when declining")
		}
		e.to, e.action, e.reason = model.InspectionRejected, model.ActionRejected, reason
	default:
		return nil, errs.Validation("action must be CONFIRM or DECLINE")
	}

	tok, err := s.tokens.Resolve(ctx, token, model.PurposeInspectionVerification)
	if err != nil {
		return nil, err
	}
	in, err := s.inspections.GetByID(ctx, tok.RecordID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, errs.ErrTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	check := func(in *model.Inspection) error {
		if in.Status != model.InspectionSubmitted || !matchesRef(in.VerificationToken, tok) {
			return errs.ErrTokenInvalid
		}
		return nil
	}
	if err := check(in); err != nil {
		return nil, err
	}
	e.actor = model.Actor{ID: in.InspectorID.String(), Role: model.RoleInspector}
	out, err := s.apply(ctx, in.ID, e, check)
	if errors.Is(err, errs.ErrInvalidState) {
		return nil, errs.ErrTokenInvalid
	}
	return out, err
}

func (s *InspectionServiceImpl) AdminOverride(ctx context.Context, actor model.Actor, id uuid.UUID, in InspectionOverrideInput) (*model.Inspection, error) {
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
	return s.apply(ctx, id, inspectionEdge{
		to: in.Target, trigger: model.TriggerOverride, action: model.ActionAdminOverride,
		actor: actor, reason: reason, notes: in.Notes,
	}, nil)
}

func (s *InspectionServiceImpl) Get(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Inspection, error) {
	in, err := s.inspections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Is(model.RoleAdmin, model.RoleSystem) {
		return in, nil
	}
	if err := authorizeInspection(actor, in); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *InspectionServiceImpl) History(ctx context.Context, actor model.Actor, id uuid.UUID) ([]model.AuditEntry, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.audit.History(ctx, model.RecordInspection, id)
}

type inspectionEdge struct {
	to      model.InspectionStatus
	trigger model.Trigger
	action  model.ActionType
	actor   model.Actor
	reason  string
	notes   string
}

func (s *InspectionServiceImpl) apply(ctx context.Context, id uuid.UUID, e inspectionEdge, guard func(*model.Inspection) error) (*model.Inspection, error) {
	var (
		out    *model.Inspection
		from   model.InspectionStatus
		after  func(context.Context, *model.Inspection)
		parent *model.Warranty
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		in, err := s.inspections.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(in); err != nil {
				return err
			}
		}
		from = in.Status
		if !model.CanTransitionInspection(from, e.to, e.trigger) {
			return fmt.Errorf("%w: %s -> %s", errs.ErrInvalidState, from, e.to)
		}

		now := s.now().UTC()
		p := model.InspectionPatch{Status: &e.to}
		switch e.to {
		case model.InspectionSubmitted:
			if from == model.InspectionDraft {
				if problems := s.gate.CheckInspection(in); len(problems) > 0 {
					return errs.Validation(problems...)
				}
			}
			tok, err := s.tokens.Issue(ctx, in.ID, model.PurposeInspectionVerification)
			if err != nil {
				return err
			}
			ref := tok.Ref()
			p.VerificationToken = &ref
			after = func(ctx context.Context, in *model.Inspection) {
				if inspector := s.partner(ctx, in.InspectorID); inspector != nil {
					s.notifier.InspectionVerificationRequested(ctx, in, inspector, tok.Plain)
				}
			}
		case model.InspectionVerified:
			until := model.AddMonths(in.InspectionDate, s.extMonths)
			p.WarrantyExtendedUntil = &until
			p.VerifiedAt = &now
			p.VerifiedBy = model.Ptr(e.actor.ID)
		case model.InspectionRejected:
			p.RejectionReason = model.Ptr(e.reason)
		case model.InspectionDraft:
			p.RejectionReason = model.Ptr("")
		}
		if from == model.InspectionSubmitted && e.to != model.InspectionSubmitted {
			p.ClearVerificationToken = true
		}

		out, err = s.inspections.ConditionalUpdate(ctx, id, from, p)
		if err != nil {
			return err
		}
		if p.ClearVerificationToken {
			if err := s.tokens.Revoke(ctx, id, model.PurposeInspectionVerification); err != nil {
				return err
			}
		}
		if err := s.audit.Record(ctx, model.AuditEntry{
			RecordID:     id,
			RecordType:   model.RecordInspection,
			ActionType:   e.action,
			StatusBefore: string(from),
			StatusAfter:  string(e.to),
			PerformedBy:  e.actor.ID,
			Reason:       e.reason,
			Notes:        e.notes,
			Override:     e.trigger == model.TriggerOverride,
		}); err != nil {
			return err
		}
		if e.to == model.InspectionVerified {
			parent, err = s.extendWarranty(ctx, out, e.actor)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveTransition(string(model.RecordInspection), string(from), string(e.to), e.trigger.String())
	s.log.Info("inspection transition",
		zap.String("inspection_id", id.String()), zap.String("from", string(from)), zap.String("to", string(e.to)))
	nctx := notifyCtx(ctx)
	if after != nil {
		after(nctx, out)
	}
	if parent != nil {
		s.notifier.InspectionVerified(nctx, parent)
	}
	return out, nil
}

// extendWarranty pushes the parent's due date forward to the inspection's extension.
// It never moves the date back and leaves non-ACTIVE parents alone; reinstatement consumes
// verified inspections of lapsed warranties. Returns the updated parent, or nil if unchanged.
func (s *InspectionServiceImpl) extendWarranty(ctx context.Context, in *model.Inspection, actor model.Actor) (*model.Warranty, error) {
	w, err := s.warranties.GetForUpdate(ctx, in.WarrantyID)
	if errors.Is(err, errs.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	until := in.WarrantyExtendedUntil
	if w.Status != model.WarrantyActive || until == nil {
		return nil, nil
	}
	if w.InspectionDueDate != nil && !until.After(*w.InspectionDueDate) {
		return nil, nil
	}
	updated, err := s.warranties.ConditionalUpdate(ctx, w.ID, model.WarrantyActive, model.WarrantyPatch{InspectionDueDate: until})
	if err != nil {
		return nil, err
	}
	prev := "-"
	if w.InspectionDueDate != nil {
		prev = w.InspectionDueDate.Format(time.DateOnly)
	}
	if err := s.audit.Record(ctx, model.AuditEntry{
		RecordID:     w.ID,
		RecordType:   model.RecordWarranty,
		ActionType:   model.ActionCoverageExtended,
		StatusBefore: string(model.WarrantyActive),
		StatusAfter:  string(model.WarrantyActive),
		PerformedBy:  actor.ID,
		Notes:        fmt.Sprintf("inspection %s moved due date %s -> %s", in.ID, prev, until.Format(time.DateOnly)),
	}); err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *InspectionServiceImpl) loadForEdit(ctx context.Context, actor model.Actor, id uuid.UUID) (*model.Inspection, error) {
	in, err := s.inspections.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorizeInspection(actor, in); err != nil {
		return nil, err
	}
	if err := requireStatus(in.Status, model.InspectionDraft); err != nil {
		return nil, err
	}
	return in, nil
}

func (s *InspectionServiceImpl) partner(ctx context.Context, id uuid.UUID) *model.Partner {
	p, err := s.partners.GetByID(ctx, id)
	if err != nil {
		s.log.Warn("partner lookup for notification failed", zap.String("partner_id", id.String()), zap.Error(err))
		return nil
	}
	return p
}

// authorizeInspection admits admins, the creator and the assigned inspector.
func authorizeInspection(actor model.Actor, in *model.Inspection) error {
	switch {
	case actor.Elevated():
		return nil
	case actor.ID == in.CreatedBy:
		return nil
	case actor.Role == model.RoleInspector && actor.ID == in.InspectorID.String():
		return nil
	}
	return errs.ErrForbidden
}
