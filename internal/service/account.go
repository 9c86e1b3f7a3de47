package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/blob"
	"github.com/jjenkins/acervo/internal/metrics"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

// RegistrationInput is the public sign-up form
type RegistrationInput struct {
	Username        string `form:"username" validate:"required,max=150,username"`
	FirstName       string `form:"first_name" validate:"required,max=150"`
	LastName        string `form:"last_name" validate:"required,max=150"`
	Email           string `form:"email" validate:"required,email,max=254"`
	Password        string `form:"password" validate:"required,min=8"`
	PasswordConfirm string `form:"password_confirm" validate:"required,eqfield=Password"`
	AcceptTerms     bool   `form:"accept_terms" validate:"eq=true"`

	ProfileInput
}

// ProfileInput holds the professional data an account owner can edit
type ProfileInput struct {
	CPF                      string         `form:"cpf" validate:"required,cpf"`
	Phone                    string         `form:"phone" validate:"omitempty,phone"`
	UserType                 model.UserType `form:"user_type" validate:"required,usertype"`
	ProfessionalRegistration string         `form:"professional_registration" validate:"max=50"`
	Company                  string         `form:"company" validate:"max=200"`
	JobTitle                 string         `form:"job_title" validate:"max=100"`

	IdentityDocument *Upload `form:"-" validate:"-"`
	ProofOfResidence *Upload `form:"-" validate:"-"`
	Diploma          *Upload `form:"-" validate:"-"`
}

// ProfileInputFrom pre-fills the profile form
func ProfileInputFrom(p *model.Profile) ProfileInput {
	if p == nil {
		return ProfileInput{UserType: model.UserTypeEngineer}
	}
	return ProfileInput{
		CPF:                      p.CPF,
		Phone:                    p.Phone,
		UserType:                 p.UserType,
		ProfessionalRegistration: p.ProfessionalRegistration,
		Company:                  p.Company,
		JobTitle:                 p.JobTitle,
	}
}

func (in *ProfileInput) trim() {
	in.CPF = strings.TrimSpace(in.CPF)
	in.Phone = strings.TrimSpace(in.Phone)
	in.ProfessionalRegistration = strings.TrimSpace(in.ProfessionalRegistration)
	in.Company = strings.TrimSpace(in.Company)
	in.JobTitle = strings.TrimSpace(in.JobTitle)
}

func (in ProfileInput) apply(p *model.Profile) {
	p.CPF = in.CPF
	p.Phone = in.Phone
	p.UserType = in.UserType
	p.ProfessionalRegistration = in.ProfessionalRegistration
	p.Company = in.Company
	p.JobTitle = in.JobTitle
}

// NewAccountInput creates an account from the command line
type NewAccountInput struct {
	Username  string `form:"username" validate:"required,max=150,username"`
	Email     string `form:"email" validate:"required,email,max=254"`
	Password  string `form:"password" validate:"required,min=8"`
	FirstName string `form:"first_name" validate:"max=150"`
	LastName  string `form:"last_name" validate:"max=150"`
	Staff     bool   `form:"staff"`
}

// Rights are the permission flags an administrator grants
type Rights struct {
	Level            model.PermissionLevel `form:"permission_level" validate:"required,permission"`
	Publish          bool                  `form:"publish"`
	ViewConfidential bool                  `form:"view_confidential"`
}

// AccountService handles registration, login and the approval workflow
type AccountService struct {
	accounts AccountStore
	profiles ProfileStore
	blobs    BlobStore
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccountService creates a new AccountService
func NewAccountService(accounts AccountStore, profiles ProfileStore, blobs BlobStore, m *metrics.Metrics, logger *zap.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		profiles: profiles,
		blobs:    blobs,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// CommandLine is the viewer bulk commands act as. It has staff rights but
// no account, so approvals it records carry no approver.
func CommandLine() policy.Viewer {
	return policy.Viewer{Authenticated: true, Staff: true, Username: "cli"}
}

// Register creates an active account with an unapproved, unverified profile
func (s *AccountService) Register(ctx context.Context, in RegistrationInput) (*model.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.ProfileInput.trim()

	if err := checkStruct(in); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, in.Username, in.Email, in.CPF, 0); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &model.Account{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	profile := model.NewProfile(0)
	in.ProfileInput.apply(profile)

	stored, err := s.storeDocuments(ctx, profile, in.ProfileInput)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.Create(ctx, account, profile); err != nil {
		s.deleteBlobs(ctx, stored)
		if errors.Is(err, apperr.ErrDuplicate) {
			field := duplicateField(err)
			return nil, apperr.Duplicate(field, "this "+field+" is already registered", err)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.metrics.AccountAction("register")
	s.logger.Info("account registered",
		zap.Int64("account_id", account.ID),
		zap.String("username", account.Username),
		zap.String("user_type", string(profile.UserType)))
	return account, nil
}

// CreateAccount creates an active account without a profile
func (s *AccountService) CreateAccount(ctx context.Context, in NewAccountInput) (*model.Account, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := checkStruct(in); err != nil {
		return nil, err
	}
	if err := s.checkUnique(ctx, in.Username, in.Email, "", 0); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	account := &model.Account{
		Username:     in.Username,
		Email:        in.Email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: string(hash),
		IsStaff:      in.Staff,
		IsActive:     true,
	}
	if err := s.accounts.Create(ctx, account, nil); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			field := duplicateField(err)
			return nil, apperr.Duplicate(field, "this "+field+" is already registered", err)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.metrics.AccountAction("create")
	s.logger.Info("account created",
		zap.Int64("account_id", account.ID),
		zap.String("username", account.Username),
		zap.Bool("staff", account.IsStaff))
	return account, nil
}

// checkUnique reports every taken value at once, like a form would
func (s *AccountService) checkUnique(ctx context.Context, username, email, cpf string, self int64) error {
	fields := map[string]string{}

	taken, err := s.accounts.UsernameExists(ctx, username)
	if err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		fields["username"] = "a user with that username already exists"
	}

	taken, err = s.accounts.EmailExists(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if taken {
		fields["email"] = "this e-mail is already registered"
	}

	if cpf != "" {
		taken, err = s.profiles.CPFTaken(ctx, cpf, self)
		if err != nil {
			return fmt.Errorf("failed to check CPF: %w", err)
		}
		if taken {
			fields["cpf"] = "this CPF is already registered"
		}
	}

	if len(fields) > 0 {
		return apperr.Invalid(fields)
	}
	return nil
}

// storeDocuments saves the uploaded documents and points the profile at
// them. It returns the new references so callers can undo the upload.
func (s *AccountService) storeDocuments(ctx context.Context, p *model.Profile, in ProfileInput) ([]string, error) {
	uploads := []struct {
		field  string
		upload *Upload
		dest   *sql.NullString
	}{
		{"identity_document", in.IdentityDocument, &p.IdentityDocument},
		{"proof_of_residence", in.ProofOfResidence, &p.ProofOfResidence},
		{"diploma", in.Diploma, &p.Diploma},
	}

	var stored []string
	for _, u := range uploads {
		if u.upload == nil {
			continue
		}
		ref, err := s.blobs.Put(ctx, model.ProfileDocumentPrefix, u.upload.Filename, u.upload.Body, blob.DocumentExtensions)
		if err != nil {
			s.deleteBlobs(ctx, stored)
			if errors.Is(err, blob.ErrExtensionNotAllowed) {
				return nil, apperr.Validation(u.field, "only PDF, JPG and PNG files are accepted")
			}
			return nil, fmt.Errorf("failed to store %s: %w", u.field, err)
		}
		stored = append(stored, ref)
		*u.dest = sql.NullString{String: ref, Valid: true}
	}
	return stored, nil
}

func (s *AccountService) deleteBlobs(ctx context.Context, refs []string) {
	for _, ref := range refs {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			s.logger.Warn("failed to delete document", zap.String("ref", ref), zap.Error(err))
		}
	}
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// compareDummy spends the time a real comparison would, so unknown
// usernames cannot be told apart by response time.
func compareDummy(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("acervo-dummy-password"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

var errBadCredentials = apperr.Unauthorized("invalid username or password")

// Authenticate checks credentials and records the login
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*model.Account, error) {
	account, err := s.accounts.GetByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperr.ErrNotFound) {
		compareDummy(password)
		s.metrics.LoginAttempted("failure")
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		s.metrics.LoginAttempted("failure")
		s.logger.Info("login failed", zap.String("username", account.Username))
		return nil, errBadCredentials
	}
	if !account.IsActive {
		s.metrics.LoginAttempted("inactive")
		return nil, apperr.Unauthorized("this account is inactive")
	}

	now := s.now()
	if err := s.accounts.TouchLastLogin(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	if err := s.profiles.TouchLastAccess(ctx, account.ID, now); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return nil, fmt.Errorf("failed to record last access: %w", err)
	}

	s.metrics.LoginAttempted("success")
	s.logger.Info("login succeeded", zap.Int64("account_id", account.ID))
	return account, nil
}

// Viewer resolves an account into the requester the policy evaluates.
// Unknown or inactive accounts resolve to the anonymous viewer.
func (s *AccountService) Viewer(ctx context.Context, accountID int64) (policy.Viewer, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if errors.Is(err, apperr.ErrNotFound) {
		return policy.Anonymous(), nil
	}
	if err != nil {
		return policy.Anonymous(), fmt.Errorf("failed to load account %d: %w", accountID, err)
	}
	if !account.IsActive {
		return policy.Anonymous(), nil
	}

	v := policy.Viewer{
		Authenticated: true,
		Staff:         account.IsStaff,
		AccountID:     account.ID,
		Username:      account.Username,
	}
	profile, err := s.profiles.GetByAccountID(ctx, accountID)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		return policy.Anonymous(), fmt.Errorf("failed to load profile %d: %w", accountID, err)
	default:
		v.Profile = profile
	}
	return v, nil
}

// Account returns the account of v
func (s *AccountService) Account(ctx context.Context, v policy.Viewer) (*model.Account, error) {
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
	return account, nil
}

// UpdateProfile saves the professional data of v's own profile, creating
// the profile when the account has none.
func (s *AccountService) UpdateProfile(ctx context.Context, v policy.Viewer, in ProfileInput) (*model.Profile, error) {
	if !v.Authenticated || v.AccountID == 0 {
		return nil, apperr.Unauthorized("log in to edit your profile")
	}
	in.trim()
	if err := checkStruct(in); err != nil {
		return nil, err
	}

	taken, err := s.profiles.CPFTaken(ctx, in.CPF, v.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to check CPF: %w", err)
	}
	if taken {
		return nil, apperr.Validation("cpf", "this CPF is already registered")
	}

	profile, err := s.profiles.GetByAccountID(ctx, v.AccountID)
	create := errors.Is(err, apperr.ErrNotFound)
	switch {
	case create:
		profile = model.NewProfile(v.AccountID)
	case err != nil:
		return nil, fmt.Errorf("failed to load profile %d: %w", v.AccountID, err)
	}

	previous := profile.Documents()
	in.apply(profile)
	stored, err := s.storeDocuments(ctx, profile, in)
	if err != nil {
		return nil, err
	}

	if create {
		err = s.profiles.Create(ctx, profile)
	} else {
		err = s.profiles.Update(ctx, profile)
	}
	if err != nil {
		s.deleteBlobs(ctx, stored)
		if errors.Is(err, apperr.ErrDuplicate) {
			return nil, apperr.Duplicate("cpf", "this CPF is already registered", err)
		}
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}

	current := profile.Documents()
	var replaced []string
	for _, ref := range previous {
		if !containsRef(current, ref) {
			replaced = append(replaced, ref)
		}
	}
	s.deleteBlobs(ctx, replaced)

	s.logger.Info("profile updated", zap.Int64("account_id", v.AccountID), zap.Bool("created", create))
	return profile, nil
}

func containsRef(refs []string, ref string) bool {
	for _, r := range refs {
		if r == ref {
			return true
		}
	}
	return false
}

// PendingAccounts lists profiles waiting for approval
func (s *AccountService) PendingAccounts(ctx context.Context, v policy.Viewer) ([]model.AccountProfile, error) {
	if !policy.CanApproveAccounts(v) {
		return nil, apperr.AccessDenied("only staff can review accounts")
	}
	pending, err := s.profiles.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending accounts: %w", err)
	}
	return pending, nil
}

// AccountIDs resolves usernames, reporting the ones that do not exist
func (s *AccountService) AccountIDs(ctx context.Context, usernames []string) ([]int64, []string, error) {
	var ids []int64
	var missing []string
	for _, name := range usernames {
		account, err := s.accounts.GetByUsername(ctx, name)
		if errors.Is(err, apperr.ErrNotFound) {
			missing = append(missing, name)
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load account %s: %w", name, err)
		}
		ids = append(ids, account.ID)
	}
	return ids, missing, nil
}

// Approve marks the profiles as approved by v
func (s *AccountService) Approve(ctx context.Context, v policy.Viewer, accountIDs []int64) (*BulkResult, error) {
	return s.eachProfile(ctx, v, "approve", accountIDs, func(p *model.Profile) {
		p.Approve(v.AccountID, s.now())
	})
}

// Reject clears the approval of the profiles
func (s *AccountService) Reject(ctx context.Context, v policy.Viewer, accountIDs []int64) (*BulkResult, error) {
	return s.eachProfile(ctx, v, "reject", accountIDs, func(p *model.Profile) {
		p.Reject()
	})
}

// VerifyEmails marks the e-mail of the profiles as verified
func (s *AccountService) VerifyEmails(ctx context.Context, v policy.Viewer, accountIDs []int64) (*BulkResult, error) {
	return s.eachProfile(ctx, v, "verify_email", accountIDs, func(p *model.Profile) {
		p.EmailVerified = true
	})
}

// GrantRights sets the permission flags of the profiles
func (s *AccountService) GrantRights(ctx context.Context, v policy.Viewer, accountIDs []int64, r Rights) (*BulkResult, error) {
	if err := checkStruct(r); err != nil {
		return nil, err
	}
	return s.eachProfile(ctx, v, "grant", accountIDs, func(p *model.Profile) {
		p.PermissionLevel = r.Level
		p.PublishAllowed = r.Publish
		p.ConfidentialAllowed = r.ViewConfidential
	})
}

// eachProfile applies change to each profile and saves it individually.
// Accounts without a profile are reported as missing.
func (s *AccountService) eachProfile(ctx context.Context, v policy.Viewer, action string, accountIDs []int64, change func(*model.Profile)) (*BulkResult, error) {
	if !policy.CanApproveAccounts(v) {
		return nil, apperr.AccessDenied("only staff can manage accounts")
	}

	result := &BulkResult{}
	for _, id := range accountIDs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		p, err := s.profiles.GetByAccountID(ctx, id)
		if errors.Is(err, apperr.ErrNotFound) {
			result.Missing = append(result.Missing, strconv.FormatInt(id, 10))
			continue
		}
		if err != nil {
			return result, fmt.Errorf("failed to load profile %d: %w", id, err)
		}

		change(p)
		if err := s.profiles.Update(ctx, p); err != nil {
			return result, fmt.Errorf("failed to update profile %d: %w", id, err)
		}
		result.Updated++
		s.metrics.AccountAction(action)
	}

	s.logger.Info("accounts updated",
		zap.String("action", action),
		zap.String("by", v.Username),
		zap.Int("updated", result.Updated),
		zap.Strings("missing", result.Missing))
	return result, nil
}
