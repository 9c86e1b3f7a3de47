package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/model"
)

const accountColumns = `
	id, username, email, first_name, last_name, password_hash,
	is_staff, is_active, created_at, last_login_at`

// Unique constraints and the form field each one guards
var uniqueFields = map[string]string{
	"accounts_username_key": "username",
	"accounts_email_key":    "email",
	"profiles_cpf_key":      "cpf",
	"profiles_pkey":         "account_id",
	"protocolos_number_key": "number",
}

// duplicateError wraps apperr.ErrDuplicate with the field that clashed
func duplicateError(err error) error {
	field, ok := uniqueFields[violatedConstraint(err)]
	if !ok {
		field = "record"
	}
	return fmt.Errorf("%s: %w", field, apperr.ErrDuplicate)
}

// AccountStore handles database operations for accounts
type AccountStore struct {
	db *sql.DB
}

// NewAccountStore creates a new AccountStore
func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

func scanAccount(row rowScanner) (*model.Account, error) {
	var a model.Account
	err := row.Scan(
		&a.ID,
		&a.Username,
		&a.Email,
		&a.FirstName,
		&a.LastName,
		&a.PasswordHash,
		&a.IsStaff,
		&a.IsActive,
		&a.CreatedAt,
		&a.LastLoginAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Create inserts the account and, when p is not nil, its profile in the same
// transaction
func (s *AccountStore) Create(ctx context.Context, a *model.Account, p *model.Profile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO accounts (username, email, first_name, last_name, password_hash, is_staff, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err = tx.QueryRowContext(ctx, query,
		a.Username,
		a.Email,
		a.FirstName,
		a.LastName,
		a.PasswordHash,
		a.IsStaff,
		a.IsActive,
	).Scan(&a.ID, &a.CreatedAt)
	if isUniqueViolation(err) {
		return duplicateError(err)
	}
	if err != nil {
		return fmt.Errorf("failed to create account %s: %w", a.Username, err)
	}

	if p != nil {
		p.AccountID = a.ID
		if err := insertProfile(ctx, tx, p); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves an account by its ID
func (s *AccountStore) GetByID(ctx context.Context, id int64) (*model.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %d: %w", id, err)
	}
	return a, nil
}

// GetByUsername retrieves an account by its username
func (s *AccountStore) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	a, err := scanAccount(s.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE username = $1`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", username, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account %s: %w", username, err)
	}
	return a, nil
}

// UsernameExists reports whether the username is taken
func (s *AccountStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check username: %w", err)
	}
	return exists, nil
}

// EmailExists reports whether the e-mail is taken, ignoring case
func (s *AccountStore) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE LOWER(email) = LOWER($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// TouchLastLogin records a successful login
func (s *AccountStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE accounts SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to update last login of account %d: %w", id, err)
	}
	return nil
}
