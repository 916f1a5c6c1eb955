// Package model defines domain entities used by services and repositories.
package model

// WarrantyStatus is the lifecycle state of a warranty record.
type WarrantyStatus string

const (
	WarrantyDraft             WarrantyStatus = "DRAFT"
	WarrantySubmitted         WarrantyStatus = "SUBMITTED"
	WarrantyRejected          WarrantyStatus = "REJECTED"
	WarrantyPendingActivation WarrantyStatus = "PENDING_CUSTOMER_ACTIVATION"
	WarrantyActive            WarrantyStatus = "ACTIVE"
	WarrantyLapsed            WarrantyStatus = "LAPSED"
)

// WarrantyStatuses lists every warranty state.
var WarrantyStatuses = []WarrantyStatus{
	WarrantyDraft, WarrantySubmitted, WarrantyRejected,
	WarrantyPendingActivation, WarrantyActive, WarrantyLapsed,
}

// Valid reports whether s is a known warranty state.
func (s WarrantyStatus) Valid() bool {
	for _, v := range WarrantyStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// InspectionStatus is the lifecycle state of an annual inspection.
type InspectionStatus string

const (
	InspectionDraft     InspectionStatus = "DRAFT"
	InspectionSubmitted InspectionStatus = "SUBMITTED"
	InspectionVerified  InspectionStatus = "VERIFIED"
	InspectionRejected  InspectionStatus = "REJECTED"
)

// InspectionStatuses lists every inspection state.
var InspectionStatuses = []InspectionStatus{
	InspectionDraft, InspectionSubmitted, InspectionVerified, InspectionRejected,
}

// Valid reports whether s is a known inspection state.
func (s InspectionStatus) Valid() bool {
	for _, v := range InspectionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Trigger names who drives a transition. Values are bit flags so one edge can allow several.
type Trigger uint8

const (
	TriggerUser Trigger = 1 << iota
	TriggerOverride
	TriggerScheduler
	TriggerReinstatement
)

func (t Trigger) String() string {
	switch t {
	case TriggerUser:
		return "user"
	case TriggerOverride:
		return "override"
	case TriggerScheduler:
		return "scheduler"
	case TriggerReinstatement:
		return "reinstatement"
	default:
		return "unknown"
	}
}

type warrantyEdge struct{ from, to WarrantyStatus }

// warrantyEdges is the only place warranty transition legality is defined.
// Self edges cover token reissue, which rewrites the token but keeps the state.
var warrantyEdges = map[warrantyEdge]Trigger{
	{WarrantyDraft, WarrantySubmitted}:                     TriggerUser | TriggerOverride,
	{WarrantySubmitted, WarrantySubmitted}:                 TriggerUser | TriggerOverride,
	{WarrantySubmitted, WarrantyPendingActivation}:         TriggerUser | TriggerOverride,
	{WarrantySubmitted, WarrantyRejected}:                  TriggerUser | TriggerOverride,
	{WarrantyPendingActivation, WarrantyPendingActivation}: TriggerUser | TriggerOverride,
	{WarrantyPendingActivation, WarrantyActive}:            TriggerUser | TriggerOverride,
	{WarrantyActive, WarrantyLapsed}:                       TriggerScheduler | TriggerOverride,
	{WarrantyLapsed, WarrantyActive}:                       TriggerReinstatement,
	{WarrantyRejected, WarrantyDraft}:                      TriggerOverride,
}

// CanTransitionWarranty reports whether trigger may move a warranty from one state to another.
func CanTransitionWarranty(from, to WarrantyStatus, trigger Trigger) bool {
	allowed, ok := warrantyEdges[warrantyEdge{from, to}]
	return ok && allowed&trigger != 0
}

type inspectionEdge struct{ from, to InspectionStatus }

var inspectionEdges = map[inspectionEdge]Trigger{
	{InspectionDraft, InspectionSubmitted}:     TriggerUser | TriggerOverride,
	{InspectionSubmitted, InspectionSubmitted}: TriggerUser | TriggerOverride,
	{InspectionSubmitted, InspectionVerified}:  TriggerUser | TriggerOverride,
	{InspectionSubmitted, InspectionRejected}:  TriggerUser | TriggerOverride,
	{InspectionRejected, InspectionDraft}:      TriggerOverride,
}

// CanTransitionInspection reports whether trigger may move an inspection from one state to another.
func CanTransitionInspection(from, to InspectionStatus, trigger Trigger) bool {
	allowed, ok := inspectionEdges[inspectionEdge{from, to}]
	return ok && allowed&trigger != 0
}
