package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

func TestDashboardCountsVisiblePublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		f.seedEmenta(t, &model.Ementa{Title: "Act", Published: true})
	}
	f.seedEmenta(t, &model.Ementa{Title: "Decision", Type: model.EmentaTypePlenaryDecision, Published: true})
	f.seedEmenta(t, &model.Ementa{Title: "Secret", Published: true, Confidential: true})
	f.seedEmenta(t, &model.Ementa{Title: "Draft", Published: false})

	d, err := f.dashboard.Dashboard(ctx, policy.Anonymous())
	require.NoError(t, err)
	assert.Equal(t, 13, d.PublishedTotal)
	assert.Len(t, d.Recent, 10)
	assert.Equal(t, 12, d.ByType[model.EmentaTypeOrdinance])
	assert.Equal(t, 1, d.ByType[model.EmentaTypePlenaryDecision])
	assert.Empty(t, d.Mine)

	d, err = f.dashboard.Dashboard(ctx, staff(9))
	require.NoError(t, err)
	assert.Equal(t, 13, d.PublishedTotal, "drafts are not counted as published")

	d, err = f.dashboard.Dashboard(ctx, confidentialReader(5))
	require.NoError(t, err)
	assert.Equal(t, 14, d.PublishedTotal)
}

func TestDashboardListsOwnRecordsForPublishers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := publisher(3)

	for i := 0; i < 6; i++ {
		f.seedEmenta(t, &model.Ementa{Title: "Mine", Published: true, CreatedBy: sql.NullInt64{Int64: 3, Valid: true}})
	}
	f.seedEmenta(t, &model.Ementa{Title: "Other", Published: true, CreatedBy: sql.NullInt64{Int64: 4, Valid: true}})

	d, err := f.dashboard.Dashboard(ctx, v)
	require.NoError(t, err)
	assert.Len(t, d.Mine, 5)
	for _, e := range d.Mine {
		assert.Equal(t, "Mine", e.Title)
	}
}

func TestProfileOverview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.accounts.CreateAccount(ctx, NewAccountInput{Username: "rita", Email: "rita@example.org", Password: "rita-pass-1"})
	require.NoError(t, err)

	f.seedEmenta(t, &model.Ementa{Title: "Mine", Published: true, CreatedBy: sql.NullInt64{Int64: a.ID, Valid: true}})
	f.seedEmenta(t, &model.Ementa{Title: "Secret", Published: true, Confidential: true})
	f.seedEmenta(t, &model.Ementa{Title: "Hidden draft", Published: false, Confidential: true})

	v := confidentialReader(a.ID)
	o, err := f.dashboard.ProfileOverview(ctx, v)
	require.NoError(t, err)
	assert.Equal(t, "rita", o.Account.Username)
	assert.Empty(t, o.Mine, "no publish right")
	require.Len(t, o.Confidential, 1)
	assert.Equal(t, "Secret", o.Confidential[0].Title)

	v.Profile.PublishAllowed = true
	o, err = f.dashboard.ProfileOverview(ctx, v)
	require.NoError(t, err)
	assert.Len(t, o.Mine, 1)

	_, err = f.dashboard.ProfileOverview(ctx, policy.Anonymous())
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))
}
