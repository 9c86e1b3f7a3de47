package model

import (
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jjenkins/acervo/internal/apperr"
)

// EmentaType is the kind of normative act an Ementa summarizes
type EmentaType string

const (
	EmentaTypeOrdinance         EmentaType = "ordinance"
	EmentaTypePlenaryDecision   EmentaType = "plenary-decision"
	EmentaTypeAdministrativeAct EmentaType = "administrative-act"
)

// EmentaTypes lists the types in display order
var EmentaTypes = []EmentaType{
	EmentaTypeOrdinance,
	EmentaTypePlenaryDecision,
	EmentaTypeAdministrativeAct,
}

func (t EmentaType) IsValid() bool {
	switch t {
	case EmentaTypeOrdinance, EmentaTypePlenaryDecision, EmentaTypeAdministrativeAct:
		return true
	}
	return false
}

// DisplayName returns the human-readable label
func (t EmentaType) DisplayName() string {
	switch t {
	case EmentaTypeOrdinance:
		return "Ordinance"
	case EmentaTypePlenaryDecision:
		return "Plenary Decision"
	case EmentaTypeAdministrativeAct:
		return "Administrative Act"
	}
	return string(t)
}

// EmentaStatus tells whether the act is still in force
type EmentaStatus string

const (
	EmentaStatusInForce   EmentaStatus = "in-force"
	EmentaStatusRevoked   EmentaStatus = "revoked"
	EmentaStatusCancelled EmentaStatus = "cancelled"
)

// EmentaStatuses lists the statuses in display order
var EmentaStatuses = []EmentaStatus{
	EmentaStatusInForce,
	EmentaStatusRevoked,
	EmentaStatusCancelled,
}

func (s EmentaStatus) IsValid() bool {
	switch s {
	case EmentaStatusInForce, EmentaStatusRevoked, EmentaStatusCancelled:
		return true
	}
	return false
}

// DisplayName returns the human-readable label
func (s EmentaStatus) DisplayName() string {
	switch s {
	case EmentaStatusInForce:
		return "In Force"
	case EmentaStatusRevoked:
		return "Revoked"
	case EmentaStatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

const (
	MaxEmentaNumberLength = 30
	MaxEmentaTitleLength  = 200

	// EmentaFilePrefix is the blob path prefix for attached PDFs
	EmentaFilePrefix = "ementas/pdf/"
)

// Ementa is the published summary of a normative act
type Ementa struct {
	ID              int64
	Number          string
	Title           string
	Type            EmentaType
	Status          EmentaStatus
	Summary         string
	ExtendedSummary string
	PublicationDate sql.NullTime
	AttachedFile    sql.NullString
	Published       bool
	Confidential    bool
	CreatedBy       sql.NullInt64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewEmenta returns an Ementa with the defaults new records start from
func NewEmenta() *Ementa {
	return &Ementa{
		Type:      EmentaTypeOrdinance,
		Status:    EmentaStatusInForce,
		Published: true,
	}
}

// Clean applies the confidentiality invariant: a confidential record carries
// no content and, lacking a title, is titled after its type and number.
// It must run before every write.
func (e *Ementa) Clean() {
	e.Title = strings.TrimSpace(e.Title)
	e.Number = strings.TrimSpace(e.Number)
	if !e.Confidential {
		return
	}
	e.Summary = ""
	e.ExtendedSummary = ""
	e.AttachedFile = sql.NullString{}
	if e.Title == "" {
		e.Title = strings.TrimSpace(e.Type.DisplayName() + " " + e.Number)
	}
}

// Validate checks enumerations and field limits. Call it after Clean so the
// title fallback has had its chance.
func (e *Ementa) Validate() error {
	fields := map[string]string{}
	if !e.Type.IsValid() {
		fields["type"] = "invalid normative act type"
	}
	if !e.Status.IsValid() {
		fields["status"] = "invalid status"
	}
	if e.Title == "" {
		fields["title"] = "title is required"
	} else if utf8.RuneCountInString(e.Title) > MaxEmentaTitleLength {
		fields["title"] = "title must have at most 200 characters"
	}
	if utf8.RuneCountInString(e.Number) > MaxEmentaNumberLength {
		fields["number"] = "number must have at most 30 characters"
	}
	if len(fields) > 0 {
		return apperr.Invalid(fields)
	}
	return nil
}

// CreatedByAccount reports whether accountID created the record
func (e *Ementa) CreatedByAccount(accountID int64) bool {
	return e.CreatedBy.Valid && e.CreatedBy.Int64 == accountID
}
