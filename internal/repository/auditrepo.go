package repository

import (
	"context"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/gofrs/uuid/v5"
)

// AuditRepository is the append-only audit log.
type AuditRepository interface {
	// Append stores one entry.
	Append(ctx context.Context, e model.AuditEntry) error
	// ListByRecord returns entries for a record, most recent first.
	ListByRecord(ctx context.Context, recordType model.RecordType, recordID uuid.UUID) ([]model.AuditEntry, error)
}
