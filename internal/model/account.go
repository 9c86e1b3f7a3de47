package model

import (
	"database/sql"
	"strings"
	"time"
)

// Account is the login identity. Staff accounts run the back office.
type Account struct {
	ID           int64
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
	LastLoginAt  sql.NullTime
}

// FullName joins first and last name, falling back to the username
func (a *Account) FullName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Username
	}
	return name
}

// PermissionLevel is an advisory classification shown to administrators.
// Effective rights come from the approval state and the flags on Profile.
type PermissionLevel string

const (
	PermissionViewer    PermissionLevel = "viewer"
	PermissionEditor    PermissionLevel = "editor"
	PermissionPublisher PermissionLevel = "publisher"
	PermissionAdmin     PermissionLevel = "admin"
)

func (p PermissionLevel) IsValid() bool {
	switch p {
	case PermissionViewer, PermissionEditor, PermissionPublisher, PermissionAdmin:
		return true
	}
	return false
}

func (p PermissionLevel) DisplayName() string {
	switch p {
	case PermissionViewer:
		return "Viewer"
	case PermissionEditor:
		return "Editor"
	case PermissionPublisher:
		return "Publisher"
	case PermissionAdmin:
		return "Administrator"
	}
	return string(p)
}

// UserType is the professional category declared at registration
type UserType string

const (
	UserTypeEngineer    UserType = "engineer"
	UserTypeArchitect   UserType = "architect"
	UserTypeTechnician  UserType = "technician"
	UserTypeStudent     UserType = "student"
	UserTypeStaffMember UserType = "staff-member"
	UserTypeOther       UserType = "other"
)

// UserTypes lists the categories in display order
var UserTypes = []UserType{
	UserTypeEngineer,
	UserTypeArchitect,
	UserTypeTechnician,
	UserTypeStudent,
	UserTypeStaffMember,
	UserTypeOther,
}

func (u UserType) IsValid() bool {
	for _, t := range UserTypes {
		if t == u {
			return true
		}
	}
	return false
}

func (u UserType) DisplayName() string {
	switch u {
	case UserTypeEngineer:
		return "Engineer"
	case UserTypeArchitect:
		return "Architect"
	case UserTypeTechnician:
		return "Technician"
	case UserTypeStudent:
		return "Student"
	case UserTypeStaffMember:
		return "Council Staff"
	case UserTypeOther:
		return "Other"
	}
	return string(u)
}

// ProfileDocumentPrefix is the blob path prefix for registration documents
const ProfileDocumentPrefix = "usuarios/documentos/"

// AccountProfile pairs an account with its profile for administrative listings
type AccountProfile struct {
	Account Account
	Profile Profile
}
