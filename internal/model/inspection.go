package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Area is an inspected region of the vehicle.
type Area string

const (
	AreaEngineBay     Area = "ENGINE_BAY"
	AreaUndercarriage Area = "UNDERCARRIAGE"
	AreaWheelArches   Area = "WHEEL_ARCHES"
	AreaDoorSills     Area = "DOOR_SILLS"
	AreaBodyPanels    Area = "BODY_PANELS"
)

// Areas lists every inspectable area.
var Areas = []Area{AreaEngineBay, AreaUndercarriage, AreaWheelArches, AreaDoorSills, AreaBodyPanels}

// Valid reports whether a is a known area.
func (a Area) Valid() bool {
	for _, v := range Areas {
		if v == a {
			return true
		}
	}
	return false
}

// Condition is the inspector's grading of an area.
type Condition string

const (
	ConditionGood  Condition = "GOOD"
	ConditionFair  Condition = "FAIR"
	ConditionIssue Condition = "ISSUE"
)

// Valid reports whether c is a known grading.
func (c Condition) Valid() bool {
	return c == ConditionGood || c == ConditionFair || c == ConditionIssue
}

// AreaCondition pairs an area grading with its notes. ISSUE requires notes.
type AreaCondition struct {
	Area      Area
	Condition Condition
	Notes     string
}

// Checklist holds the tri-state inspection booleans; nil means the inspector has not answered.
type Checklist struct {
	GeneratorMounted    *bool
	RedLightIlluminated *bool
	CouplersSecure      *bool
	OwnerAdvised        *bool
}

// Inspection is one annual inspection event against a warranty.
type Inspection struct {
	ID             uuid.UUID
	WarrantyID     uuid.UUID
	InspectorID    uuid.UUID
	InspectionDate time.Time

	Areas            []AreaCondition
	Checklist        Checklist
	CorrosionFound   *bool
	CorrosionDetails string
	Photos           []Photo

	Status            InspectionStatus
	VerificationToken *TokenRef

	WarrantyExtendedUntil *time.Time // set only on VERIFIED
	VerifiedAt            *time.Time
	VerifiedBy            string
	RejectionReason       string

	CreatedBy string
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InspectionEdit carries editable draft fields; nil means "leave unchanged".
type InspectionEdit struct {
	InspectionDate   *time.Time
	Areas            []AreaCondition // replaces the whole set when non-nil
	Checklist        *Checklist
	CorrosionFound   *bool
	CorrosionDetails *string
}

// InspectionPatch is the typed set of field writes an inspection lifecycle step may apply.
type InspectionPatch struct {
	Status    *InspectionStatus
	Draft     *InspectionEdit
	AddPhotos []Photo

	VerificationToken      *TokenRef
	ClearVerificationToken bool

	WarrantyExtendedUntil *time.Time
	VerifiedAt            *time.Time
	VerifiedBy            *string
	RejectionReason       *string

	Deleted *bool
}

// Apply writes the patch onto in and stamps UpdatedAt.
func (p InspectionPatch) Apply(in *Inspection, now time.Time) {
	if p.Status != nil {
		in.Status = *p.Status
	}
	if d := p.Draft; d != nil {
		if d.InspectionDate != nil {
			in.InspectionDate = *d.InspectionDate
		}
		if d.Areas != nil {
			in.Areas = append([]AreaCondition(nil), d.Areas...)
		}
		if d.Checklist != nil {
			in.Checklist = *d.Checklist
		}
		if d.CorrosionFound != nil {
			v := *d.CorrosionFound
			in.CorrosionFound = &v
		}
		if d.CorrosionDetails != nil {
			in.CorrosionDetails = *d.CorrosionDetails
		}
	}
	if len(p.AddPhotos) > 0 {
		in.Photos = append(append([]Photo(nil), in.Photos...), p.AddPhotos...)
	}
	switch {
	case p.ClearVerificationToken:
		in.VerificationToken = nil
	case p.VerificationToken != nil:
		ref := *p.VerificationToken
		in.VerificationToken = &ref
	}
	if p.WarrantyExtendedUntil != nil {
		in.WarrantyExtendedUntil = timePtr(*p.WarrantyExtendedUntil)
	}
	if p.VerifiedAt != nil {
		in.VerifiedAt = timePtr(*p.VerifiedAt)
	}
	if p.VerifiedBy != nil {
		in.VerifiedBy = *p.VerifiedBy
	}
	if p.RejectionReason != nil {
		in.RejectionReason = *p.RejectionReason
	}
	if p.Deleted != nil {
		in.Deleted = *p.Deleted
	}
	in.UpdatedAt = now
}
