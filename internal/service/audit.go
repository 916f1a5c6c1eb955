package service

import (
	"context"
	"fmt"
	"time"

	"github.com/and161185/warranty-keeper/internal/errs"
	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// AuditRecorder appends transition facts inside the caller's transaction.
type AuditRecorder interface {
	// Record appends e. A failure is returned as ErrInternal and must abort the transition.
	Record(ctx context.Context, e model.AuditEntry) error
	// History returns a record's entries, most recent first.
	History(ctx context.Context, recordType model.RecordType, recordID uuid.UUID) ([]model.AuditEntry, error)
}

type AuditRecorderImpl struct {
	repo repository.AuditRepository
	log  *zap.Logger
	now  func() time.Time
}

// NewAuditRecorder constructs AuditRecorder.
func NewAuditRecorder(repo repository.AuditRepository, log *zap.Logger, now func() time.Time) *AuditRecorderImpl {
	if log == nil {
		log = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &AuditRecorderImpl{repo: repo, log: log, now: now}
}

func (r *AuditRecorderImpl) Record(ctx context.Context, e model.AuditEntry) error {
	if e.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("audit id: %w: %w", errs.ErrInternal, err)
		}
		e.ID = id
	}
	if e.PerformedAt.IsZero() {
		e.PerformedAt = r.now().UTC()
	}
	if err := r.repo.Append(ctx, e); err != nil {
		r.log.Error("audit append failed",
			zap.String("record_type", string(e.RecordType)),
			zap.String("record_id", e.RecordID.String()),
			zap.String("action", string(e.ActionType)),
			zap.Error(err))
		return fmt.Errorf("append audit entry: %w: %w", errs.ErrInternal, err)
	}
	return nil
}

func (r *AuditRecorderImpl) History(ctx context.Context, recordType model.RecordType, recordID uuid.UUID) ([]model.AuditEntry, error) {
	out, err := r.repo.ListByRecord(ctx, recordType, recordID)
	if err != nil {
		return nil, fmt.Errorf("audit history: %w", err)
	}
	return out, nil
}
