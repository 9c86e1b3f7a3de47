package model

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/taxid"
)

func TestEmentaCleanScrubsConfidentialContent(t *testing.T) {
	e := &Ementa{
		Number:          "42",
		Type:            EmentaTypeOrdinance,
		Status:          EmentaStatusInForce,
		Summary:         "X",
		ExtendedSummary: "Y",
		AttachedFile:    sql.NullString{String: "ementas/pdf/a.pdf", Valid: true},
		Confidential:    true,
	}
	e.Clean()

	assert.Equal(t, "Ordinance 42", e.Title)
	assert.Empty(t, e.Summary)
	assert.Empty(t, e.ExtendedSummary)
	assert.False(t, e.AttachedFile.Valid)
	require.NoError(t, e.Validate())
}

func TestEmentaCleanKeepsSuppliedTitle(t *testing.T) {
	e := &Ementa{Title: " Reserved act ", Type: EmentaTypePlenaryDecision, Status: EmentaStatusRevoked, Confidential: true}
	e.Clean()
	assert.Equal(t, "Reserved act", e.Title)
}

func TestEmentaCleanTitleWithoutNumber(t *testing.T) {
	e := &Ementa{Type: EmentaTypeAdministrativeAct, Status: EmentaStatusInForce, Confidential: true}
	e.Clean()
	assert.Equal(t, "Administrative Act", e.Title)
}

func TestEmentaCleanLeavesPublicContent(t *testing.T) {
	e := &Ementa{Title: "T", Summary: "S", Type: EmentaTypeOrdinance, Status: EmentaStatusInForce}
	e.Clean()
	assert.Equal(t, "S", e.Summary)
}

func TestEmentaCleanIsIdempotent(t *testing.T) {
	e := &Ementa{Number: "7", Type: EmentaTypeOrdinance, Status: EmentaStatusInForce, Confidential: true}
	e.Clean()
	first := *e
	e.Clean()
	assert.Equal(t, first, *e)
}

func TestEmentaValidate(t *testing.T) {
	e := &Ementa{Type: "decree", Status: "active"}
	err := e.Validate()
	require.True(t, apperr.Is(err, apperr.CodeValidation))
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "status")
	assert.Contains(t, fields, "title")
}

func TestProtocoloNormalize(t *testing.T) {
	t.Run("cpf forces individual", func(t *testing.T) {
		p := &Protocolo{Number: "P-1", TaxID: "123.456.789-01", PersonType: PersonTypeOrganization, StorageLocation: "BOX 1"}
		require.NoError(t, p.Normalize())
		assert.Equal(t, "12345678901", p.TaxID)
		assert.Equal(t, PersonTypeIndividual, p.PersonType)
		assert.Equal(t, "123.456.789-01", p.FormattedTaxID())
	})

	t.Run("cnpj forces organization", func(t *testing.T) {
		p := &Protocolo{TaxID: "12.345.678/0001-95", PersonType: PersonTypeIndividual}
		require.NoError(t, p.Normalize())
		assert.Equal(t, PersonTypeOrganization, p.PersonType)
		assert.Equal(t, "12.345.678/0001-95", p.FormattedTaxID())
	})

	t.Run("other lengths are rejected untouched", func(t *testing.T) {
		p := &Protocolo{TaxID: "1234"}
		err := p.Normalize()
		require.ErrorIs(t, err, taxid.ErrInvalid)
		assert.True(t, apperr.Is(err, apperr.CodeValidation))
		assert.Equal(t, "1234", p.TaxID)
		assert.Empty(t, p.PersonType)
	})
}

func TestProtocoloValidate(t *testing.T) {
	p := &Protocolo{TaxID: "12345678901"}
	require.NoError(t, p.Normalize())
	fields := apperr.FieldsOf(p.Validate())
	assert.Contains(t, fields, "number")
	assert.Contains(t, fields, "storage_location")
}

func TestProfileRights(t *testing.T) {
	var none *Profile
	assert.False(t, none.IsApproved())
	assert.False(t, none.CanPublish())
	assert.False(t, none.CanViewConfidential())

	p := NewProfile(1)
	p.PublishAllowed = true
	p.ConfidentialAllowed = true
	assert.False(t, p.CanPublish(), "flags alone are not enough")

	p.Approve(9, time.Now())
	assert.False(t, p.IsApproved(), "e-mail must be verified too")

	p.EmailVerified = true
	assert.True(t, p.CanPublish())
	assert.True(t, p.CanViewConfidential())
	assert.Equal(t, int64(9), p.ApprovedBy.Int64)

	p.Reject()
	assert.False(t, p.CanPublish())
	assert.False(t, p.ApprovedAt.Valid)
	assert.False(t, p.ApprovedBy.Valid)
}

func TestAccountFullName(t *testing.T) {
	assert.Equal(t, "Ana Lima", (&Account{FirstName: "Ana", LastName: "Lima"}).FullName())
	assert.Equal(t, "ana", (&Account{Username: "ana"}).FullName())
}
