package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Reinstatement records an authorized restoration of a lapsed warranty.
type Reinstatement struct {
	ID              uuid.UUID
	WarrantyID      uuid.UUID
	ReinstatedBy    string
	Reason          string
	InspectionID    *uuid.UUID
	Notes           string
	PreviousDueDate *time.Time
	NewDueDate      time.Time
	ReinstatedAt    time.Time
}

// Eligibility describes whether a warranty can be reinstated and why.
type Eligibility struct {
	WarrantyID              uuid.UUID
	Eligible                bool
	Status                  WarrantyStatus
	DaysLapsed              int
	HasQualifyingInspection bool
	QualifyingInspectionID  *uuid.UUID
	Reason                  string
}
