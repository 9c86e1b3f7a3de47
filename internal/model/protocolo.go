package model

import (
	"database/sql"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/taxid"
)

// PersonType discriminates individuals (CPF) from organizations (CNPJ)
type PersonType string

const (
	PersonTypeIndividual   PersonType = "individual"
	PersonTypeOrganization PersonType = "organization"
)

func (p PersonType) DisplayName() string {
	switch p {
	case PersonTypeIndividual:
		return "Individual"
	case PersonTypeOrganization:
		return "Organization"
	}
	return string(p)
}

const (
	MaxProtocoloNumberLength   = 50
	MaxStorageLocationLength   = 100
	MaxExternalReferenceLength = 50
)

// Protocolo records where a submitted document is physically stored
type Protocolo struct {
	ID                int64
	Number            string
	IssuedDate        time.Time
	TaxID             string
	PersonType        PersonType
	StorageLocation   string
	Notes             string
	ExternalReference sql.NullString
	CreatedBy         sql.NullInt64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Normalize strips the tax ID down to digits and derives the person type
// from its length. A length other than 11 or 14 fails validation and leaves
// the record untouched.
func (p *Protocolo) Normalize() error {
	digits, err := taxid.Normalize(p.TaxID)
	if err != nil {
		return apperr.FieldError("tax_id", err)
	}
	p.TaxID = digits
	if len(digits) == taxid.CPFLength {
		p.PersonType = PersonTypeIndividual
	} else {
		p.PersonType = PersonTypeOrganization
	}
	p.Number = strings.TrimSpace(p.Number)
	p.StorageLocation = strings.TrimSpace(p.StorageLocation)
	if p.ExternalReference.Valid {
		ref := strings.TrimSpace(p.ExternalReference.String)
		p.ExternalReference = sql.NullString{String: ref, Valid: ref != ""}
	}
	return nil
}

// Validate checks required fields and limits. Call it after Normalize.
func (p *Protocolo) Validate() error {
	fields := map[string]string{}
	switch {
	case p.Number == "":
		fields["number"] = "protocol number is required"
	case utf8.RuneCountInString(p.Number) > MaxProtocoloNumberLength:
		fields["number"] = "protocol number must have at most 50 characters"
	}
	switch {
	case p.StorageLocation == "":
		fields["storage_location"] = "storage location is required"
	case utf8.RuneCountInString(p.StorageLocation) > MaxStorageLocationLength:
		fields["storage_location"] = "storage location must have at most 100 characters"
	}
	if utf8.RuneCountInString(p.ExternalReference.String) > MaxExternalReferenceLength {
		fields["external_reference"] = "SITAC protocol must have at most 50 characters"
	}
	if len(fields) > 0 {
		return apperr.Invalid(fields)
	}
	return nil
}

// FormattedTaxID renders the tax ID with CPF or CNPJ punctuation
func (p *Protocolo) FormattedTaxID() string {
	return taxid.Format(p.TaxID)
}
