package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
	"github.com/jjenkins/acervo/internal/taxid"
)

func TestCreateProtocoloNormalizesCPF(t *testing.T) {
	f := newFixture(t)

	p, err := f.protocolos.Create(context.Background(), member(4), ProtocoloInput{
		Number:          "2024/0001",
		TaxID:           "123.456.789-01",
		PersonType:      model.PersonTypeOrganization,
		StorageLocation: "Shelf A",
	})
	require.NoError(t, err)

	assert.Equal(t, "12345678901", p.TaxID)
	assert.Equal(t, model.PersonTypeIndividual, p.PersonType, "derived type overrides the submitted one")
	assert.Equal(t, "123.456.789-01", p.FormattedTaxID())
	assert.Equal(t, int64(4), p.CreatedBy.Int64)
	assert.False(t, p.IssuedDate.IsZero())
}

func TestCreateProtocoloDerivesOrganization(t *testing.T) {
	f := newFixture(t)

	p, err := f.protocolos.Create(context.Background(), member(4), ProtocoloInput{
		Number:          "2024/0002",
		TaxID:           "12.345.678/0001-95",
		StorageLocation: "Shelf B",
	})
	require.NoError(t, err)
	assert.Equal(t, "12345678000195", p.TaxID)
	assert.Equal(t, model.PersonTypeOrganization, p.PersonType)
	assert.Equal(t, "12.345.678/0001-95", p.FormattedTaxID())
}

func TestCreateProtocoloRejectsShortTaxID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.protocolos.Create(ctx, member(4), ProtocoloInput{
		Number:          "2024/0003",
		TaxID:           "1234",
		StorageLocation: "Shelf C",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeValidation))
	assert.True(t, errors.Is(err, taxid.ErrInvalid))
	assert.Contains(t, apperr.FieldsOf(err), "tax_id")

	count, err := f.db.Protocolos().Count(ctx, listing.ProtocoloFilter{})
	require.NoError(t, err)
	assert.Zero(t, count, "nothing is persisted")
}

func TestCreateProtocoloDuplicateNumber(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := ProtocoloInput{Number: "2024/0004", TaxID: "12345678901", StorageLocation: "Shelf D"}

	_, err := f.protocolos.Create(ctx, member(4), in)
	require.NoError(t, err)

	_, err = f.protocolos.Create(ctx, member(4), in)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.CodeDuplicate))
	assert.True(t, errors.Is(err, apperr.ErrDuplicate))
	assert.Contains(t, apperr.FieldsOf(err), "number")
}

func TestProtocoloRequiresLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.protocolos.Create(ctx, policy.Anonymous(), ProtocoloInput{Number: "1", TaxID: "12345678901", StorageLocation: "A"})
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))

	_, err = f.protocolos.List(ctx, policy.Anonymous(), "", 1, 10)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}

func TestUpdateProtocoloKeepsIssuedDateAndCreator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.protocolos.Create(ctx, member(4), ProtocoloInput{
		Number:          "2024/0005",
		TaxID:           "12345678901",
		StorageLocation: "Shelf E",
	})
	require.NoError(t, err)
	issued := p.IssuedDate

	in := ProtocoloInputFrom(p)
	assert.Equal(t, "123.456.789-01", in.TaxID)
	in.TaxID = "12345678000195"
	in.Notes = "<i>moved</i> to archive"

	updated, err := f.protocolos.Update(ctx, member(7), p.ID, in)
	require.NoError(t, err)

	assert.Equal(t, model.PersonTypeOrganization, updated.PersonType)
	assert.Equal(t, "moved to archive", updated.Notes)
	assert.Equal(t, issued, updated.IssuedDate)
	assert.Equal(t, int64(4), updated.CreatedBy.Int64)

	_, err = f.protocolos.Update(ctx, member(7), 999, in)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestListProtocolosMatchesQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := member(4)

	for _, in := range []ProtocoloInput{
		{Number: "A-1", TaxID: "12345678901", StorageLocation: "Archive room"},
		{Number: "A-2", TaxID: "98765432100", StorageLocation: "Basement"},
		{Number: "B-1", TaxID: "12345678000195", StorageLocation: "Archive annex"},
	} {
		_, err := f.protocolos.Create(ctx, v, in)
		require.NoError(t, err)
	}

	page, err := f.protocolos.List(ctx, v, "archive", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)

	page, err = f.protocolos.List(ctx, v, "98765", 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "A-2", page.Items[0].Number)
}

type fakeRegistrar struct {
	refs  map[string]string
	calls int
}

func (r *fakeRegistrar) Register(_ context.Context, p *model.Protocolo) (string, error) {
	r.calls++
	ref, ok := r.refs[p.Number]
	if !ok {
		return "", errors.New("SITAC unavailable")
	}
	return ref, nil
}

func TestSyncExternalReferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := member(4)

	for _, in := range []ProtocoloInput{
		{Number: "S-1", TaxID: "12345678901", StorageLocation: "A"},
		{Number: "S-2", TaxID: "12345678901", StorageLocation: "B"},
		{Number: "S-3", TaxID: "12345678901", StorageLocation: "C", ExternalReference: "SITAC-0"},
		{Number: "S-4", TaxID: "12345678901", StorageLocation: "D"},
	} {
		_, err := f.protocolos.Create(ctx, v, in)
		require.NoError(t, err)
	}

	registrar := &fakeRegistrar{refs: map[string]string{
		"S-1": "SITAC-1",
		"S-4": strings.Repeat("9", model.MaxExternalReferenceLength+1),
	}}
	stats, err := f.protocolos.SyncExternalReferences(ctx, registrar, 100)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Registered)
	assert.Equal(t, 2, stats.Failed)
	assert.Equal(t, 3, registrar.calls)

	synced, err := f.db.Protocolos().GetByNumber(ctx, "S-1")
	require.NoError(t, err)
	assert.Equal(t, "SITAC-1", synced.ExternalReference.String)

	pending, err := f.db.Protocolos().ListMissingExternalReference(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}
