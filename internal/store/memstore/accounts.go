package memstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/model"
)

// AccountStore is the in-memory account table
type AccountStore struct {
	db *DB
}

// Create inserts the account and its optional profile atomically
func (s *AccountStore) Create(_ context.Context, a *model.Account, p *model.Profile) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.accounts {
		if existing.Username == a.Username {
			return fmt.Errorf("username: %w", apperr.ErrDuplicate)
		}
		if equalFold(existing.Email, a.Email) {
			return fmt.Errorf("email: %w", apperr.ErrDuplicate)
		}
	}
	if p != nil && db.cpfTakenLocked(p.CPF, 0) {
		return fmt.Errorf("cpf: %w", apperr.ErrDuplicate)
	}

	db.nextAccountID++
	a.ID = db.nextAccountID
	a.CreatedAt = db.now()
	db.accounts[a.ID] = *a

	if p != nil {
		p.AccountID = a.ID
		p.CreatedAt = a.CreatedAt
		p.UpdatedAt = a.CreatedAt
		db.profiles[a.ID] = *p
	}
	return nil
}

func (s *AccountStore) GetByID(_ context.Context, id int64) (*model.Account, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	a, ok := s.db.accounts[id]
	if !ok {
		return nil, fmt.Errorf("account %d: %w", id, apperr.ErrNotFound)
	}
	return &a, nil
}

func (s *AccountStore) GetByUsername(_ context.Context, username string) (*model.Account, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, a := range s.db.accounts {
		if a.Username == username {
			return &a, nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", username, apperr.ErrNotFound)
}

func (s *AccountStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := s.GetByUsername(ctx, username)
	return err == nil, nil
}

func (s *AccountStore) EmailExists(_ context.Context, email string) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	for _, a := range s.db.accounts {
		if equalFold(a.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *AccountStore) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	a, ok := s.db.accounts[id]
	if !ok {
		return fmt.Errorf("account %d: %w", id, apperr.ErrNotFound)
	}
	a.LastLoginAt.Time, a.LastLoginAt.Valid = at, true
	s.db.accounts[id] = a
	return nil
}

// SetActive flips the active flag. Tests use it to simulate deactivation.
func (s *AccountStore) SetActive(id int64, active bool) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if a, ok := s.db.accounts[id]; ok {
		a.IsActive = active
		s.db.accounts[id] = a
	}
}

// ProfileStore is the in-memory profile table
type ProfileStore struct {
	db *DB
}

func (db *DB) cpfTakenLocked(cpf string, exceptAccountID int64) bool {
	if cpf == "" {
		return false
	}
	for id, p := range db.profiles {
		if id != exceptAccountID && p.CPF == cpf {
			return true
		}
	}
	return false
}

func (s *ProfileStore) Create(_ context.Context, p *model.Profile) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.accounts[p.AccountID]; !ok {
		return fmt.Errorf("account %d: %w", p.AccountID, apperr.ErrNotFound)
	}
	if _, ok := db.profiles[p.AccountID]; ok {
		return fmt.Errorf("account_id: %w", apperr.ErrDuplicate)
	}
	if db.cpfTakenLocked(p.CPF, p.AccountID) {
		return fmt.Errorf("cpf: %w", apperr.ErrDuplicate)
	}
	p.CreatedAt = db.now()
	p.UpdatedAt = p.CreatedAt
	db.profiles[p.AccountID] = *p
	return nil
}

func (s *ProfileStore) GetByAccountID(_ context.Context, accountID int64) (*model.Profile, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	p, ok := s.db.profiles[accountID]
	if !ok {
		return nil, fmt.Errorf("profile of account %d: %w", accountID, apperr.ErrNotFound)
	}
	return &p, nil
}

func (s *ProfileStore) Update(_ context.Context, p *model.Profile) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()

	old, ok := db.profiles[p.AccountID]
	if !ok {
		return fmt.Errorf("profile of account %d: %w", p.AccountID, apperr.ErrNotFound)
	}
	if db.cpfTakenLocked(p.CPF, p.AccountID) {
		return fmt.Errorf("cpf: %w", apperr.ErrDuplicate)
	}
	p.CreatedAt = old.CreatedAt
	p.LastAccessAt = old.LastAccessAt
	p.UpdatedAt = db.now()
	db.profiles[p.AccountID] = *p
	return nil
}

func (s *ProfileStore) CPFTaken(_ context.Context, cpf string, exceptAccountID int64) (bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return s.db.cpfTakenLocked(cpf, exceptAccountID), nil
}

func (s *ProfileStore) ListPending(_ context.Context) ([]model.AccountProfile, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var pending []model.AccountProfile
	for _, id := range sortedKeys(s.db.profiles) {
		p := s.db.profiles[id]
		if p.AccountApproved {
			continue
		}
		pending = append(pending, model.AccountProfile{Account: s.db.accounts[id], Profile: p})
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Profile.CreatedAt.Before(pending[j].Profile.CreatedAt)
	})
	return pending, nil
}

func (s *ProfileStore) TouchLastAccess(_ context.Context, accountID int64, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	p, ok := s.db.profiles[accountID]
	if !ok {
		return nil
	}
	p.LastAccessAt.Time, p.LastAccessAt.Valid = at, true
	s.db.profiles[accountID] = p
	return nil
}
