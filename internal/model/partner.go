package model

import "github.com/gofrs/uuid/v5"

// PartnerKind is the role a partner account plays.
type PartnerKind string

const (
	PartnerAgent     PartnerKind = "AGENT"
	PartnerInstaller PartnerKind = "INSTALLER"
	PartnerInspector PartnerKind = "INSPECTOR"
)

// Partner is the read-only view of an agent, installer or inspector account.
// Accredited means accredited for installers and certified for inspectors.
type Partner struct {
	ID         uuid.UUID
	Kind       PartnerKind
	Name       string
	Email      string
	Phone      string
	Accredited bool
}
