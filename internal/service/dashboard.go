package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

const (
	dashboardRecentLimit = 10
	profileRecentLimit   = 5
)

// DashboardService calculates the figures shown on the home page and the
// profile page
type DashboardService struct {
	ementas  EmentaStore
	accounts AccountStore
}

// NewDashboardService creates a new DashboardService
func NewDashboardService(ementas EmentaStore, accounts AccountStore) *DashboardService {
	return &DashboardService{ementas: ementas, accounts: accounts}
}

// Dashboard represents the calculated home page figures
type Dashboard struct {
	PublishedTotal int
	ByType         map[model.EmentaType]int
	Recent         []model.Ementa
	Mine           []model.Ementa
}

// Dashboard counts the published ementas v may see. Publishers also get
// their own latest records.
func (s *DashboardService) Dashboard(ctx context.Context, v policy.Viewer) (*Dashboard, error) {
	vis := policy.ListVisibility(v)
	vis.IncludeUnpublished = false
	filter := listing.EmentaFilter{Visibility: vis}

	d := &Dashboard{}
	var err error

	d.PublishedTotal, err = s.ementas.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count published ementas: %w", err)
	}

	d.ByType, err = s.ementas.CountByType(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count ementas by type: %w", err)
	}

	d.Recent, err = s.ementas.Find(ctx, filter, dashboardRecentLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to find recent ementas: %w", err)
	}

	if v.Authenticated && v.Profile.CanPublish() {
		d.Mine, err = s.ementas.RecentByCreator(ctx, v.AccountID, profileRecentLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to find own ementas: %w", err)
		}
	}

	return d, nil
}

// ProfileOverview is what the profile page shows about its owner
type ProfileOverview struct {
	Account      *model.Account
	Profile      *model.Profile
	Mine         []model.Ementa
	Confidential []model.Ementa
}

// ProfileOverview loads the account of v with the records its rights unlock
func (s *DashboardService) ProfileOverview(ctx context.Context, v policy.Viewer) (*ProfileOverview, error) {
	if !v.Authenticated || v.AccountID == 0 {
		return nil, apperr.Unauthorized("log in to see your profile")
	}

	account, err := s.accounts.GetByID(ctx, v.AccountID)
	if errors.Is(err, apperr.ErrNotFound) {
		return nil, apperr.NotFound("account")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %d: %w", v.AccountID, err)
	}

	o := &ProfileOverview{Account: account, Profile: v.Profile}

	if v.Profile.CanPublish() {
		o.Mine, err = s.ementas.RecentByCreator(ctx, v.AccountID, profileRecentLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to find own ementas: %w", err)
		}
	}

	if v.Profile.CanViewConfidential() {
		o.Confidential, err = s.ementas.RecentConfidential(ctx, profileRecentLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to find confidential ementas: %w", err)
		}
	}

	return o, nil
}
