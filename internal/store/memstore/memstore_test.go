package memstore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

func TestAccountCreateRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	db := New()
	accounts := db.Accounts()

	p := model.NewProfile(0)
	p.CPF = "123.456.789-01"
	require.NoError(t, accounts.Create(ctx, &model.Account{Username: "ana", Email: "ana@example.org"}, p))

	err := accounts.Create(ctx, &model.Account{Username: "ana", Email: "other@example.org"}, nil)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	err = accounts.Create(ctx, &model.Account{Username: "bia", Email: "ANA@example.org"}, nil)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	dupCPF := model.NewProfile(0)
	dupCPF.CPF = "123.456.789-01"
	err = accounts.Create(ctx, &model.Account{Username: "bia", Email: "bia@example.org"}, dupCPF)
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	exists, err := accounts.UsernameExists(ctx, "bia")
	require.NoError(t, err)
	assert.False(t, exists, "failed creates leave nothing behind")
}

func TestEmentaOrderingAndWindow(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := base
	db := New().WithClock(func() time.Time { tick = tick.Add(time.Minute); return tick })
	ementas := db.Ementas()

	dated := func(d string) sql.NullTime {
		tm, _ := time.Parse("2006-01-02", d)
		return sql.NullTime{Time: tm, Valid: true}
	}
	for _, e := range []*model.Ementa{
		{Number: "old", Published: true, PublicationDate: dated("2020-01-01")},
		{Number: "undated", Published: true},
		{Number: "new", Published: true, PublicationDate: dated("2024-01-01")},
		{Number: "draft", Published: false, PublicationDate: dated("2025-01-01")},
	} {
		require.NoError(t, ementas.Create(ctx, e))
	}

	f := listing.EmentaFilter{Visibility: policy.Visibility{}}
	all, err := ementas.Find(ctx, f, 10, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"new", "old", "undated"}, []string{all[0].Number, all[1].Number, all[2].Number})

	second, err := ementas.Find(ctx, f, 2, 2)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "undated", second[0].Number)

	beyond, err := ementas.Find(ctx, f, 2, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestEmentaUpdateKeepsCreator(t *testing.T) {
	ctx := context.Background()
	ementas := New().Ementas()

	e := &model.Ementa{Title: "T", CreatedBy: sql.NullInt64{Int64: 7, Valid: true}}
	require.NoError(t, ementas.Create(ctx, e))

	e.CreatedBy = sql.NullInt64{}
	e.Title = "T2"
	require.NoError(t, ementas.Update(ctx, e))

	got, err := ementas.GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "T2", got.Title)
	assert.Equal(t, int64(7), got.CreatedBy.Int64)

	assert.ErrorIs(t, ementas.Update(ctx, &model.Ementa{ID: 99}), apperr.ErrNotFound)
}

func TestProtocoloIssuedDateIsFixed(t *testing.T) {
	ctx := context.Background()
	protocolos := New().Protocolos()

	p := &model.Protocolo{Number: "P-1", TaxID: "12345678901"}
	require.NoError(t, protocolos.Create(ctx, p))
	issued := p.IssuedDate
	require.False(t, issued.IsZero())

	p.IssuedDate = issued.AddDate(-1, 0, 0)
	require.NoError(t, protocolos.Update(ctx, p))
	assert.Equal(t, issued, p.IssuedDate)

	other := &model.Protocolo{Number: "P-2"}
	require.NoError(t, protocolos.Create(ctx, other))
	other.Number = "P-1"
	assert.ErrorIs(t, protocolos.Update(ctx, other), apperr.ErrDuplicate)
}
