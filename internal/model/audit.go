package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// RecordType names the kind of record an audit entry or token belongs to.
type RecordType string

const (
	RecordWarranty   RecordType = "WARRANTY"
	RecordInspection RecordType = "INSPECTION"
	RecordUser       RecordType = "USER"
)

// ActionType classifies an audited event.
type ActionType string

const (
	ActionSubmitted          ActionType = "SUBMITTED"
	ActionTokenReissued      ActionType = "TOKEN_REISSUED"
	ActionVerified           ActionType = "VERIFIED"
	ActionRejected           ActionType = "REJECTED"
	ActionCustomerActivated  ActionType = "CUSTOMER_ACTIVATED"
	ActionAdminOverride      ActionType = "ADMIN_OVERRIDE"
	ActionGracePeriodExpired ActionType = "GRACE_PERIOD_EXPIRED"
	ActionReinstated         ActionType = "REINSTATED"
	ActionCoverageExtended   ActionType = "COVERAGE_EXTENDED"
	ActionSoftDeleted        ActionType = "SOFT_DELETED"
)

// AuditEntry is an immutable fact about one transition. Never updated or deleted.
type AuditEntry struct {
	ID           uuid.UUID
	RecordID     uuid.UUID
	RecordType   RecordType
	ActionType   ActionType
	StatusBefore string
	StatusAfter  string
	PerformedBy  string
	PerformedAt  time.Time
	Reason       string
	Notes        string
	Override     bool
}
