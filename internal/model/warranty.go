package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Owner holds the end customer's contact fields.
type Owner struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string // E.164
	Address   string
}

// Vehicle identifies the unit the device is installed on.
type Vehicle struct {
	VIN          string
	Make         string
	Model        string
	Year         int
	Registration string
}

// TokenRef is the record-side copy of the current live token for fast lookup.
type TokenRef struct {
	Digest    string
	ExpiresAt time.Time
}

// Warranty is one installed unit's coverage record.
type Warranty struct {
	ID            uuid.UUID
	Owner         Owner
	Vehicle       Vehicle
	SerialNumber  string
	InstallerID   uuid.UUID
	DateInstalled *time.Time
	CreatedBy     string // agent actor ID

	Status            WarrantyStatus
	VerificationToken *TokenRef // only while SUBMITTED
	ActivationToken   *TokenRef // only while PENDING_CUSTOMER_ACTIVATION

	CorrosionFound   *bool
	CorrosionDetails string
	Photos           []Photo

	InspectionDueDate *time.Time
	ActivatedAt       *time.Time
	VerifiedAt        *time.Time
	VerifiedBy        string
	RejectionReason   string
	LapsedAt          *time.Time

	TermsAcceptedIP   string
	CustomerSignature string

	LastReminderTier   *int
	LastReminderSentAt *time.Time

	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WarrantyEdit carries editable draft fields; nil means "leave unchanged".
type WarrantyEdit struct {
	Owner            *Owner
	Vehicle          *Vehicle
	SerialNumber     *string
	DateInstalled    *time.Time
	CorrosionFound   *bool
	CorrosionDetails *string
}

// WarrantyPatch is the typed set of field writes a lifecycle step may apply.
// Nil pointers leave the field unchanged; Clear* flags null it.
type WarrantyPatch struct {
	Status    *WarrantyStatus
	Draft     *WarrantyEdit
	AddPhotos []Photo

	VerificationToken      *TokenRef
	ClearVerificationToken bool
	ActivationToken        *TokenRef
	ClearActivationToken   bool

	VerifiedAt        *time.Time
	VerifiedBy        *string
	RejectionReason   *string
	ActivatedAt       *time.Time
	InspectionDueDate *time.Time
	LapsedAt          *time.Time
	ClearLapsedAt     bool

	TermsAcceptedIP   *string
	CustomerSignature *string

	LastReminderTier   *int
	LastReminderSentAt *time.Time

	Deleted *bool
}

// Apply writes the patch onto w and stamps UpdatedAt.
func (p WarrantyPatch) Apply(w *Warranty, now time.Time) {
	if p.Status != nil {
		w.Status = *p.Status
	}
	if d := p.Draft; d != nil {
		if d.Owner != nil {
			w.Owner = *d.Owner
		}
		if d.Vehicle != nil {
			w.Vehicle = *d.Vehicle
		}
		if d.SerialNumber != nil {
			w.SerialNumber = *d.SerialNumber
		}
		if d.DateInstalled != nil {
			t := *d.DateInstalled
			w.DateInstalled = &t
		}
		if d.CorrosionFound != nil {
			v := *d.CorrosionFound
			w.CorrosionFound = &v
		}
		if d.CorrosionDetails != nil {
			w.CorrosionDetails = *d.CorrosionDetails
		}
	}
	if len(p.AddPhotos) > 0 {
		w.Photos = append(append([]Photo(nil), w.Photos...), p.AddPhotos...)
	}

	switch {
	case p.ClearVerificationToken:
		w.VerificationToken = nil
	case p.VerificationToken != nil:
		ref := *p.VerificationToken
		w.VerificationToken = &ref
	}
	switch {
	case p.ClearActivationToken:
		w.ActivationToken = nil
	case p.ActivationToken != nil:
		ref := *p.ActivationToken
		w.ActivationToken = &ref
	}

	if p.VerifiedAt != nil {
		w.VerifiedAt = timePtr(*p.VerifiedAt)
	}
	if p.VerifiedBy != nil {
		w.VerifiedBy = *p.VerifiedBy
	}
	if p.RejectionReason != nil {
		w.RejectionReason = *p.RejectionReason
	}
	if p.ActivatedAt != nil {
		w.ActivatedAt = timePtr(*p.ActivatedAt)
	}
	if p.InspectionDueDate != nil {
		w.InspectionDueDate = timePtr(*p.InspectionDueDate)
	}
	switch {
	case p.ClearLapsedAt:
		w.LapsedAt = nil
	case p.LapsedAt != nil:
		w.LapsedAt = timePtr(*p.LapsedAt)
	}
	if p.TermsAcceptedIP != nil {
		w.TermsAcceptedIP = *p.TermsAcceptedIP
	}
	if p.CustomerSignature != nil {
		w.CustomerSignature = *p.CustomerSignature
	}
	if p.LastReminderTier != nil {
		tier := *p.LastReminderTier
		w.LastReminderTier = &tier
	}
	if p.LastReminderSentAt != nil {
		w.LastReminderSentAt = timePtr(*p.LastReminderSentAt)
	}
	if p.Deleted != nil {
		w.Deleted = *p.Deleted
	}
	w.UpdatedAt = now
}

// AddMonths returns t shifted by n calendar months.
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}

func timePtr(t time.Time) *time.Time { return &t }

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T { return &v }
