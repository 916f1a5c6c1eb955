package httpserver

import (
	"time"

	"github.com/and161185/warranty-keeper/internal/model"
	"github.com/and161185/warranty-keeper/internal/service"
	"github.com/gofrs/uuid/v5"
)

type ownerDTO struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address,omitempty"`
}

type vehicleDTO struct {
	VIN          string `json:"vin"`
	Make         string `json:"make,omitempty"`
	Model        string `json:"model,omitempty"`
	Year         int    `json:"year,omitempty"`
	Registration string `json:"registration,omitempty"`
}

type photoDTO struct {
	Category   string     `json:"category"`
	URL        string     `json:"url"`
	UploadedAt *time.Time `json:"uploadedAt,omitempty"`
}

type areaDTO struct {
	Area      string `json:"area"`
	Condition string `json:"condition"`
	Notes     string `json:"notes,omitempty"`
}

type checklistDTO struct {
	GeneratorMounted    *bool `json:"generatorMounted"`
	RedLightIlluminated *bool `json:"redLightIlluminated"`
	CouplersSecure      *bool `json:"couplersSecure"`
	OwnerAdvised        *bool `json:"ownerAdvised"`
}

type createWarrantyRequest struct {
	Owner            ownerDTO   `json:"owner"`
	Vehicle          vehicleDTO `json:"vehicle"`
	SerialNumber     string     `json:"serialNumber"`
	InstallerID      uuid.UUID  `json:"installerId"`
	DateInstalled    *time.Time `json:"dateInstalled"`
	CorrosionFound   *bool      `json:"corrosionFound"`
	CorrosionDetails string     `json:"corrosionDetails"`
	Photos           []photoDTO `json:"photos"`
}

type updateWarrantyRequest struct {
	Owner            *ownerDTO   `json:"owner"`
	Vehicle          *vehicleDTO `json:"vehicle"`
	SerialNumber     *string     `json:"serialNumber"`
	DateInstalled    *time.Time  `json:"dateInstalled"`
	CorrosionFound   *bool       `json:"corrosionFound"`
	CorrosionDetails *string     `json:"corrosionDetails"`
}

type photosRequest struct {
	Photos []photoDTO `json:"photos"`
}

type verifyRequest struct {
	Action          string `json:"action"`
	RejectionReason string `json:"rejectionReason"`
}

type acceptRequest struct {
	AcceptTerms       bool   `json:"acceptTerms"`
	CustomerSignature string `json:"customerSignature"`
}

type adminVerifyRequest struct {
	Reason                   string `json:"reason"`
	Notes                    string `json:"notes"`
	SkipCustomerNotification bool   `json:"skipCustomerNotification"`
}

type statusRequest struct {
	TargetStatus string `json:"targetStatus"`
	Reason       string `json:"reason"`
	Notes        string `json:"notes"`
}

type reinstateRequest struct {
	Reason       string     `json:"reason"`
	InspectionID *uuid.UUID `json:"inspectionId"`
	Notes        string     `json:"notes"`
}

type createInspectionRequest struct {
	WarrantyID       uuid.UUID    `json:"warrantyId"`
	InspectorID      uuid.UUID    `json:"inspectorId"`
	InspectionDate   time.Time    `json:"inspectionDate"`
	Areas            []areaDTO    `json:"areas"`
	Checklist        checklistDTO `json:"checklist"`
	CorrosionFound   *bool        `json:"corrosionFound"`
	CorrosionDetails string       `json:"corrosionDetails"`
	Photos           []photoDTO   `json:"photos"`
}

type updateInspectionRequest struct {
	InspectionDate   *time.Time    `json:"inspectionDate"`
	Areas            []areaDTO     `json:"areas"`
	Checklist        *checklistDTO `json:"checklist"`
	CorrosionFound   *bool         `json:"corrosionFound"`
	CorrosionDetails *string       `json:"corrosionDetails"`
}

type warrantyResponse struct {
	ID                 uuid.UUID  `json:"id"`
	VerificationStatus string     `json:"verificationStatus"`
	Owner              ownerDTO   `json:"owner"`
	Vehicle            vehicleDTO `json:"vehicle"`
	SerialNumber       string     `json:"serialNumber"`
	InstallerID        uuid.UUID  `json:"installerId"`
	DateInstalled      *time.Time `json:"dateInstalled,omitempty"`
	CorrosionFound     *bool      `json:"corrosionFound,omitempty"`
	CorrosionDetails   string     `json:"corrosionDetails,omitempty"`
	Photos             []photoDTO `json:"photos"`
	InspectionDueDate  *time.Time `json:"inspectionDueDate,omitempty"`
	ActivatedAt        *time.Time `json:"activatedAt,omitempty"`
	VerifiedAt         *time.Time `json:"verifiedAt,omitempty"`
	VerifiedBy         string     `json:"verifiedBy,omitempty"`
	RejectionReason    string     `json:"rejectionReason,omitempty"`
	LapsedAt           *time.Time `json:"lapsedAt,omitempty"`
	TokenExpiresAt     *time.Time `json:"tokenExpiresAt,omitempty"`
	LastReminderTier   *int       `json:"lastReminderTier,omitempty"`
	CreatedBy          string     `json:"createdBy"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

type inspectionResponse struct {
	ID                    uuid.UUID    `json:"id"`
	WarrantyID            uuid.UUID    `json:"warrantyId"`
	InspectorID           uuid.UUID    `json:"inspectorId"`
	InspectionDate        time.Time    `json:"inspectionDate"`
	VerificationStatus    string       `json:"verificationStatus"`
	Areas                 []areaDTO    `json:"areas"`
	Checklist             checklistDTO `json:"checklist"`
	CorrosionFound        *bool        `json:"corrosionFound,omitempty"`
	CorrosionDetails      string       `json:"corrosionDetails,omitempty"`
	Photos                []photoDTO   `json:"photos"`
	WarrantyExtendedUntil *time.Time   `json:"warrantyExtendedUntil,omitempty"`
	VerifiedAt            *time.Time   `json:"verifiedAt,omitempty"`
	VerifiedBy            string       `json:"verifiedBy,omitempty"`
	RejectionReason       string       `json:"rejectionReason,omitempty"`
	TokenExpiresAt        *time.Time   `json:"tokenExpiresAt,omitempty"`
	CreatedAt             time.Time    `json:"createdAt"`
	UpdatedAt             time.Time    `json:"updatedAt"`
}

type auditResponse struct {
	ID           uuid.UUID `json:"id"`
	ActionType   string    `json:"actionType"`
	StatusBefore string    `json:"statusBefore,omitempty"`
	StatusAfter  string    `json:"statusAfter,omitempty"`
	PerformedBy  string    `json:"performedBy"`
	PerformedAt  time.Time `json:"performedAt"`
	Reason       string    `json:"reason,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	Override     bool      `json:"override"`
}

type activationResponse struct {
	WarrantyID    uuid.UUID  `json:"warrantyId"`
	FirstName     string     `json:"firstName"`
	LastName      string     `json:"lastName"`
	Vehicle       vehicleDTO `json:"vehicle"`
	SerialNumber  string     `json:"serialNumber"`
	DateInstalled *time.Time `json:"dateInstalled,omitempty"`
	ExpiresAt     time.Time  `json:"expiresAt"`
}

type eligibilityResponse struct {
	WarrantyID              uuid.UUID  `json:"warrantyId"`
	Eligible                bool       `json:"eligible"`
	Status                  string     `json:"status"`
	DaysLapsed              int        `json:"daysLapsed"`
	HasQualifyingInspection bool       `json:"hasQualifyingInspection"`
	QualifyingInspectionID  *uuid.UUID `json:"qualifyingInspectionId,omitempty"`
	Reason                  string     `json:"reason,omitempty"`
}

type reinstatementResponse struct {
	ID              uuid.UUID  `json:"id"`
	WarrantyID      uuid.UUID  `json:"warrantyId"`
	ReinstatedBy    string     `json:"reinstatedBy"`
	Reason          string     `json:"reason"`
	InspectionID    *uuid.UUID `json:"inspectionId,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	PreviousDueDate *time.Time `json:"previousDueDate,omitempty"`
	NewDueDate      time.Time  `json:"newDueDate"`
	ReinstatedAt    time.Time  `json:"reinstatedAt"`
}

func (o ownerDTO) model() model.Owner {
	return model.Owner{FirstName: o.FirstName, LastName: o.LastName, Email: o.Email, Phone: o.Phone, Address: o.Address}
}

func (v vehicleDTO) model() model.Vehicle {
	return model.Vehicle{VIN: v.VIN, Make: v.Make, Model: v.Model, Year: v.Year, Registration: v.Registration}
}

func (c checklistDTO) model() model.Checklist {
	return model.Checklist{
		GeneratorMounted:    c.GeneratorMounted,
		RedLightIlluminated: c.RedLightIlluminated,
		CouplersSecure:      c.CouplersSecure,
		OwnerAdvised:        c.OwnerAdvised,
	}
}

func photosFromDTO(in []photoDTO) []model.Photo {
	if in == nil {
		return nil
	}
	out := make([]model.Photo, len(in))
	for i, p := range in {
		out[i] = model.Photo{Category: model.PhotoCategory(p.Category), URL: p.URL}
	}
	return out
}

func areasFromDTO(in []areaDTO) []model.AreaCondition {
	if in == nil {
		return nil
	}
	out := make([]model.AreaCondition, len(in))
	for i, a := range in {
		out[i] = model.AreaCondition{Area: model.Area(a.Area), Condition: model.Condition(a.Condition), Notes: a.Notes}
	}
	return out
}

func (req createWarrantyRequest) input() service.WarrantyInput {
	return service.WarrantyInput{
		Owner:            req.Owner.model(),
		Vehicle:          req.Vehicle.model(),
		SerialNumber:     req.SerialNumber,
		InstallerID:      req.InstallerID,
		DateInstalled:    req.DateInstalled,
		CorrosionFound:   req.CorrosionFound,
		CorrosionDetails: req.CorrosionDetails,
		Photos:           photosFromDTO(req.Photos),
	}
}

func (req updateWarrantyRequest) draft() model.WarrantyEdit {
	d := model.WarrantyEdit{
		SerialNumber:     req.SerialNumber,
		DateInstalled:    req.DateInstalled,
		CorrosionFound:   req.CorrosionFound,
		CorrosionDetails: req.CorrosionDetails,
	}
	if req.Owner != nil {
		o := req.Owner.model()
		d.Owner = &o
	}
	if req.Vehicle != nil {
		v := req.Vehicle.model()
		d.Vehicle = &v
	}
	return d
}

func (req createInspectionRequest) input() service.InspectionInput {
	return service.InspectionInput{
		WarrantyID:       req.WarrantyID,
		InspectorID:      req.InspectorID,
		InspectionDate:   req.InspectionDate,
		Areas:            areasFromDTO(req.Areas),
		Checklist:        req.Checklist.model(),
		CorrosionFound:   req.CorrosionFound,
		CorrosionDetails: req.CorrosionDetails,
		Photos:           photosFromDTO(req.Photos),
	}
}

func (req updateInspectionRequest) draft() model.InspectionEdit {
	d := model.InspectionEdit{
		InspectionDate:   req.InspectionDate,
		Areas:            areasFromDTO(req.Areas),
		CorrosionFound:   req.CorrosionFound,
		CorrosionDetails: req.CorrosionDetails,
	}
	if req.Checklist != nil {
		c := req.Checklist.model()
		d.Checklist = &c
	}
	return d
}

func toPhotos(in []model.Photo) []photoDTO {
	out := make([]photoDTO, len(in))
	for i, p := range in {
		out[i] = photoDTO{Category: string(p.Category), URL: p.URL}
		if !p.UploadedAt.IsZero() {
			at := p.UploadedAt
			out[i].UploadedAt = &at
		}
	}
	return out
}

func tokenExpiry(refs ...*model.TokenRef) *time.Time {
	for _, r := range refs {
		if r != nil {
			at := r.ExpiresAt
			return &at
		}
	}
	return nil
}

func toWarranty(w *model.Warranty) warrantyResponse {
	return warrantyResponse{
		ID:                 w.ID,
		VerificationStatus: string(w.Status),
		Owner: ownerDTO{
			FirstName: w.Owner.FirstName, LastName: w.Owner.LastName,
			Email: w.Owner.Email, Phone: w.Owner.Phone, Address: w.Owner.Address,
		},
		Vehicle: vehicleDTO{
			VIN: w.Vehicle.VIN, Make: w.Vehicle.Make, Model: w.Vehicle.Model,
			Year: w.Vehicle.Year, Registration: w.Vehicle.Registration,
		},
		SerialNumber:      w.SerialNumber,
		InstallerID:       w.InstallerID,
		DateInstalled:     w.DateInstalled,
		CorrosionFound:    w.CorrosionFound,
		CorrosionDetails:  w.CorrosionDetails,
		Photos:            toPhotos(w.Photos),
		InspectionDueDate: w.InspectionDueDate,
		ActivatedAt:       w.ActivatedAt,
		VerifiedAt:        w.VerifiedAt,
		VerifiedBy:        w.VerifiedBy,
		RejectionReason:   w.RejectionReason,
		LapsedAt:          w.LapsedAt,
		TokenExpiresAt:    tokenExpiry(w.VerificationToken, w.ActivationToken),
		LastReminderTier:  w.LastReminderTier,
		CreatedBy:         w.CreatedBy,
		CreatedAt:         w.CreatedAt,
		UpdatedAt:         w.UpdatedAt,
	}
}

func toInspection(in *model.Inspection) inspectionResponse {
	areas := make([]areaDTO, len(in.Areas))
	for i, a := range in.Areas {
		areas[i] = areaDTO{Area: string(a.Area), Condition: string(a.Condition), Notes: a.Notes}
	}
	return inspectionResponse{
		ID:                 in.ID,
		WarrantyID:         in.WarrantyID,
		InspectorID:        in.InspectorID,
		InspectionDate:     in.InspectionDate,
		VerificationStatus: string(in.Status),
		Areas:              areas,
		Checklist: checklistDTO{
			GeneratorMounted:    in.Checklist.GeneratorMounted,
			RedLightIlluminated: in.Checklist.RedLightIlluminated,
			CouplersSecure:      in.Checklist.CouplersSecure,
			OwnerAdvised:        in.Checklist.OwnerAdvised,
		},
		CorrosionFound:        in.CorrosionFound,
		CorrosionDetails:      in.CorrosionDetails,
		Photos:                toPhotos(in.Photos),
		WarrantyExtendedUntil: in.WarrantyExtendedUntil,
		VerifiedAt:            in.VerifiedAt,
		VerifiedBy:            in.VerifiedBy,
		RejectionReason:       in.RejectionReason,
		TokenExpiresAt:        tokenExpiry(in.VerificationToken),
		CreatedAt:             in.CreatedAt,
		UpdatedAt:             in.UpdatedAt,
	}
}

func toAudit(entries []model.AuditEntry) []auditResponse {
	out := make([]auditResponse, len(entries))
	for i, e := range entries {
		out[i] = auditResponse{
			ID:           e.ID,
			ActionType:   string(e.ActionType),
			StatusBefore: e.StatusBefore,
			StatusAfter:  e.StatusAfter,
			PerformedBy:  e.PerformedBy,
			PerformedAt:  e.PerformedAt,
			Reason:       e.Reason,
			Notes:        e.Notes,
			Override:     e.Override,
		}
	}
	return out
}

func toReinstatement(r *model.Reinstatement) reinstatementResponse {
	return reinstatementResponse{
		ID:              r.ID,
		WarrantyID:      r.WarrantyID,
		ReinstatedBy:    r.ReinstatedBy,
		Reason:          r.Reason,
		InspectionID:    r.InspectionID,
		Notes:           r.Notes,
		PreviousDueDate: r.PreviousDueDate,
		NewDueDate:      r.NewDueDate,
		ReinstatedAt:    r.ReinstatedAt,
	}
}
