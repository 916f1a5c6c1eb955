package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// TokenPurpose scopes a token to one confirmation step.
type TokenPurpose string

const (
	PurposeWarrantyVerification   TokenPurpose = "WARRANTY_VERIFICATION"
	PurposeInspectionVerification TokenPurpose = "INSPECTION_VERIFICATION"
	PurposeCustomerActivation     TokenPurpose = "CUSTOMER_ACTIVATION"
)

// RecordType returns the kind of record tokens of this purpose point at.
func (p TokenPurpose) RecordType() RecordType {
	if p == PurposeInspectionVerification {
		return RecordInspection
	}
	return RecordWarranty
}

// Token is a persisted credential. Only the digest of the plaintext is stored.
type Token struct {
	Digest    string
	RecordID  uuid.UUID
	Purpose   TokenPurpose
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Ref returns the record-side copy of the token.
func (t Token) Ref() TokenRef { return TokenRef{Digest: t.Digest, ExpiresAt: t.ExpiresAt} }

// Expired reports whether now is strictly after the expiry.
func (t Token) Expired(now time.Time) bool { return now.After(t.ExpiresAt) }

// IssuedToken is a freshly minted token; Plain is handed to the recipient exactly once.
type IssuedToken struct {
	Token
	Plain string
}
