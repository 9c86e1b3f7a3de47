package model

import (
	"database/sql"
	"time"
)

// Profile holds the professional data and permission flags of one account.
//
// A nil *Profile is a valid value meaning "no profile": every rights method
// answers false for it.
type Profile struct {
	AccountID                int64
	CPF                      string
	Phone                    string
	UserType                 UserType
	ProfessionalRegistration string
	Company                  string
	JobTitle                 string

	PermissionLevel     PermissionLevel
	PublishAllowed      bool
	ConfidentialAllowed bool

	IdentityDocument sql.NullString
	ProofOfResidence sql.NullString
	Diploma          sql.NullString

	EmailVerified   bool
	AccountApproved bool
	ApprovedAt      sql.NullTime
	ApprovedBy      sql.NullInt64

	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastAccessAt sql.NullTime
}

// NewProfile returns the unapproved, unverified profile created at registration
func NewProfile(accountID int64) *Profile {
	return &Profile{
		AccountID:       accountID,
		UserType:        UserTypeEngineer,
		PermissionLevel: PermissionViewer,
	}
}

// IsApproved requires both administrator approval and a verified e-mail
func (p *Profile) IsApproved() bool {
	return p != nil && p.AccountApproved && p.EmailVerified
}

// CanPublish is the effective right to create ementas
func (p *Profile) CanPublish() bool {
	return p.IsApproved() && p.PublishAllowed
}

// CanViewConfidential is the effective right to read confidential ementas
func (p *Profile) CanViewConfidential() bool {
	return p.IsApproved() && p.ConfidentialAllowed
}

// Approve records who approved the account and when
func (p *Profile) Approve(approverID int64, at time.Time) {
	p.AccountApproved = true
	p.ApprovedAt = sql.NullTime{Time: at, Valid: true}
	p.ApprovedBy = sql.NullInt64{Int64: approverID, Valid: approverID != 0}
}

// Reject clears the approval and its audit fields
func (p *Profile) Reject() {
	p.AccountApproved = false
	p.ApprovedAt = sql.NullTime{}
	p.ApprovedBy = sql.NullInt64{}
}

// Documents returns the stored document references that are set
func (p *Profile) Documents() []string {
	var refs []string
	for _, d := range []sql.NullString{p.IdentityDocument, p.ProofOfResidence, p.Diploma} {
		if d.Valid {
			refs = append(refs, d.String)
		}
	}
	return refs
}
