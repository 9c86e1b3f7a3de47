package service

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/blob"
	"github.com/jjenkins/acervo/internal/metrics"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
	"github.com/jjenkins/acervo/internal/store/memstore"
)

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type fixture struct {
	db         *memstore.DB
	blobs      *blob.Store
	metrics    *metrics.Metrics
	ementas    *EmentaService
	protocolos *ProtocoloService
	accounts   *AccountService
	dashboard  *DashboardService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tick := fixedNow
	db := memstore.New().WithClock(func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	})
	blobs := blob.NewMemStore()
	m := metrics.New(prometheus.NewRegistry())
	logger := zap.NewNop()

	accounts := NewAccountService(db.Accounts(), db.Profiles(), blobs, m, logger)
	accounts.now = func() time.Time { return fixedNow }

	return &fixture{
		db:         db,
		blobs:      blobs,
		metrics:    m,
		ementas:    NewEmentaService(db.Ementas(), blobs, m, logger),
		protocolos: NewProtocoloService(db.Protocolos(), m, logger),
		accounts:   accounts,
		dashboard:  NewDashboardService(db.Ementas(), db.Accounts()),
	}
}

func approvedProfile(accountID int64) *model.Profile {
	p := model.NewProfile(accountID)
	p.AccountApproved = true
	p.EmailVerified = true
	return p
}

func publisher(accountID int64) policy.Viewer {
	p := approvedProfile(accountID)
	p.PublishAllowed = true
	return policy.Viewer{Authenticated: true, AccountID: accountID, Username: "publisher", Profile: p}
}

func confidentialReader(accountID int64) policy.Viewer {
	p := approvedProfile(accountID)
	p.ConfidentialAllowed = true
	return policy.Viewer{Authenticated: true, AccountID: accountID, Username: "reader", Profile: p}
}

func member(accountID int64) policy.Viewer {
	return policy.Viewer{Authenticated: true, AccountID: accountID, Username: "member"}
}

func staff(accountID int64) policy.Viewer {
	return policy.Viewer{Authenticated: true, Staff: true, AccountID: accountID, Username: "staff"}
}

// seedEmenta stores e directly, bypassing the service
func (f *fixture) seedEmenta(t *testing.T, e *model.Ementa) *model.Ementa {
	t.Helper()
	if e.Type == "" {
		e.Type = model.EmentaTypeOrdinance
	}
	if e.Status == "" {
		e.Status = model.EmentaStatusInForce
	}
	e.Clean()
	require.NoError(t, f.db.Ementas().Create(context.Background(), e))
	return e
}

func (f *fixture) blobExists(t *testing.T, ref string) bool {
	t.Helper()
	rc, err := f.blobs.Open(context.Background(), ref)
	if err != nil {
		return false
	}
	_, _ = io.Copy(io.Discard, rc)
	rc.Close()
	return true
}
