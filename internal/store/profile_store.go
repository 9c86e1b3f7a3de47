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

const profileColumns = `
	account_id, cpf, phone, user_type, professional_registration, company, job_title,
	permission_level, publish_allowed, confidential_allowed,
	identity_document, proof_of_residence, diploma,
	email_verified, account_approved, approved_at, approved_by,
	created_at, updated_at, last_access_at`

// ProfileStore handles database operations for profiles
type ProfileStore struct {
	db *sql.DB
}

// NewProfileStore creates a new ProfileStore
func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

func profileDest(p *model.Profile) []any {
	return []any{
		&p.AccountID,
		&p.CPF,
		&p.Phone,
		&p.UserType,
		&p.ProfessionalRegistration,
		&p.Company,
		&p.JobTitle,
		&p.PermissionLevel,
		&p.PublishAllowed,
		&p.ConfidentialAllowed,
		&p.IdentityDocument,
		&p.ProofOfResidence,
		&p.Diploma,
		&p.EmailVerified,
		&p.AccountApproved,
		&p.ApprovedAt,
		&p.ApprovedBy,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.LastAccessAt,
	}
}

type execQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertProfile(ctx context.Context, q execQuerier, p *model.Profile) error {
	query := `
		INSERT INTO profiles (account_id, cpf, phone, user_type, professional_registration,
		                      company, job_title, permission_level, publish_allowed,
		                      confidential_allowed, identity_document, proof_of_residence,
		                      diploma, email_verified, account_approved, approved_at, approved_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING created_at, updated_at
	`

	err := q.QueryRowContext(ctx, query,
		p.AccountID,
		p.CPF,
		p.Phone,
		string(p.UserType),
		p.ProfessionalRegistration,
		p.Company,
		p.JobTitle,
		string(p.PermissionLevel),
		p.PublishAllowed,
		p.ConfidentialAllowed,
		p.IdentityDocument,
		p.ProofOfResidence,
		p.Diploma,
		p.EmailVerified,
		p.AccountApproved,
		p.ApprovedAt,
		p.ApprovedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if isUniqueViolation(err) {
		return duplicateError(err)
	}
	if err != nil {
		return fmt.Errorf("failed to create profile for account %d: %w", p.AccountID, err)
	}
	return nil
}

// Create inserts a profile for an existing account
func (s *ProfileStore) Create(ctx context.Context, p *model.Profile) error {
	return insertProfile(ctx, s.db, p)
}

// GetByAccountID retrieves the profile owned by an account
func (s *ProfileStore) GetByAccountID(ctx context.Context, accountID int64) (*model.Profile, error) {
	var p model.Profile
	err := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE account_id = $1`, accountID,
	).Scan(profileDest(&p)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile of account %d: %w", accountID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile of account %d: %w", accountID, err)
	}
	return &p, nil
}

// Update rewrites every mutable column, approval fields included
func (s *ProfileStore) Update(ctx context.Context, p *model.Profile) error {
	query := `
		UPDATE profiles SET
			cpf = $2,
			phone = $3,
			user_type = $4,
			professional_registration = $5,
			company = $6,
			job_title = $7,
			permission_level = $8,
			publish_allowed = $9,
			confidential_allowed = $10,
			identity_document = $11,
			proof_of_residence = $12,
			diploma = $13,
			email_verified = $14,
			account_approved = $15,
			approved_at = $16,
			approved_by = $17,
			updated_at = NOW()
		WHERE account_id = $1
		RETURNING updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		p.AccountID,
		p.CPF,
		p.Phone,
		string(p.UserType),
		p.ProfessionalRegistration,
		p.Company,
		p.JobTitle,
		string(p.PermissionLevel),
		p.PublishAllowed,
		p.ConfidentialAllowed,
		p.IdentityDocument,
		p.ProofOfResidence,
		p.Diploma,
		p.EmailVerified,
		p.AccountApproved,
		p.ApprovedAt,
		p.ApprovedBy,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("profile of account %d: %w", p.AccountID, apperr.ErrNotFound)
	}
	if isUniqueViolation(err) {
		return duplicateError(err)
	}
	if err != nil {
		return fmt.Errorf("failed to update profile of account %d: %w", p.AccountID, err)
	}
	return nil
}

// CPFTaken reports whether another account's profile already uses cpf
func (s *ProfileStore) CPFTaken(ctx context.Context, cpf string, exceptAccountID int64) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM profiles WHERE cpf = $1 AND account_id <> $2)`,
		cpf, exceptAccountID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check cpf: %w", err)
	}
	return taken, nil
}

// ListPending returns the accounts waiting for approval, oldest first
func (s *ProfileStore) ListPending(ctx context.Context) ([]model.AccountProfile, error) {
	query := `
		SELECT a.id, a.username, a.email, a.first_name, a.last_name, a.password_hash,
		       a.is_staff, a.is_active, a.created_at, a.last_login_at,
		       ` + prefixed("p", profileColumns) + `
		FROM profiles p
		INNER JOIN accounts a ON a.id = p.account_id
		WHERE NOT p.account_approved
		ORDER BY p.created_at, a.id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending profiles: %w", err)
	}
	defer rows.Close()

	var pending []model.AccountProfile
	for rows.Next() {
		var ap model.AccountProfile
		a := &ap.Account
		dest := append([]any{
			&a.ID, &a.Username, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash,
			&a.IsStaff, &a.IsActive, &a.CreatedAt, &a.LastLoginAt,
		}, profileDest(&ap.Profile)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan pending profile: %w", err)
		}
		pending = append(pending, ap)
	}

	return pending, rows.Err()
}

// TouchLastAccess records the time of the account's latest login
func (s *ProfileStore) TouchLastAccess(ctx context.Context, accountID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET last_access_at = $2 WHERE account_id = $1`, accountID, at)
	if err != nil {
		return fmt.Errorf("failed to update last access of account %d: %w", accountID, err)
	}
	return nil
}
