package service

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

func validRegistration() RegistrationInput {
	return RegistrationInput{
		Username:        "ana.souza",
		FirstName:       "Ana",
		LastName:        "Souza",
		Email:           "ana@example.org",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
		AcceptTerms:     true,
		ProfileInput: ProfileInput{
			CPF:      "123.456.789-01",
			Phone:    "(61) 99876-5432",
			UserType: model.UserTypeArchitect,
			Company:  "Studio",
		},
	}
}

type AccountServiceSuite struct {
	suite.Suite
	f   *fixture
	ctx context.Context
}

func TestAccountServiceSuite(t *testing.T) {
	suite.Run(t, new(AccountServiceSuite))
}

func (s *AccountServiceSuite) SetupTest() {
	s.f = newFixture(s.T())
	s.ctx = context.Background()
}

func (s *AccountServiceSuite) register(in RegistrationInput) *model.Account {
	a, err := s.f.accounts.Register(s.ctx, in)
	s.Require().NoError(err)
	return a
}

func (s *AccountServiceSuite) TestRegisterCreatesUnapprovedProfile() {
	in := validRegistration()
	in.IdentityDocument = &Upload{Filename: "id.PNG", Body: strings.NewReader("png")}
	a := s.register(in)

	s.True(a.IsActive)
	s.False(a.IsStaff)
	s.NotEqual(in.Password, a.PasswordHash)

	p, err := s.f.db.Profiles().GetByAccountID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(p.AccountApproved)
	s.False(p.EmailVerified)
	s.False(p.IsApproved())
	s.Equal(model.PermissionViewer, p.PermissionLevel)
	s.Equal("123.456.789-01", p.CPF)
	s.Equal(model.UserTypeArchitect, p.UserType)
	s.Require().True(p.IdentityDocument.Valid)
	s.True(strings.HasPrefix(p.IdentityDocument.String, "usuarios/documentos/"))
	s.True(s.f.blobExists(s.T(), p.IdentityDocument.String))
}

func (s *AccountServiceSuite) TestRegisterValidatesFields() {
	in := validRegistration()
	in.CPF = "12345678901"
	in.Phone = "61 99876 5432"
	in.PasswordConfirm = "different"
	in.AcceptTerms = false
	in.Email = "not-an-email"
	in.Password = "short"

	_, err := s.f.accounts.Register(s.ctx, in)
	s.Require().Error(err)
	s.True(apperr.Is(err, apperr.CodeValidation))

	fields := apperr.FieldsOf(err)
	for _, name := range []string{"cpf", "phone", "password", "password_confirm", "accept_terms", "email"} {
		s.Contains(fields, name)
	}
}

func (s *AccountServiceSuite) TestRegisterRejectsTakenValues() {
	s.register(validRegistration())

	in := validRegistration()
	in.Email = "ANA@example.org"
	_, err := s.f.accounts.Register(s.ctx, in)
	s.Require().Error(err)

	fields := apperr.FieldsOf(err)
	s.Contains(fields, "username")
	s.Contains(fields, "email")
	s.Contains(fields, "cpf")
}

func (s *AccountServiceSuite) TestRegisterRejectsDocumentType() {
	in := validRegistration()
	in.Diploma = &Upload{Filename: "diploma.docx", Body: strings.NewReader("doc")}

	_, err := s.f.accounts.Register(s.ctx, in)
	s.Require().Error(err)
	s.Contains(apperr.FieldsOf(err), "diploma")

	exists, err := s.f.db.Accounts().UsernameExists(s.ctx, in.Username)
	s.Require().NoError(err)
	s.False(exists)
}

func (s *AccountServiceSuite) TestAuthenticate() {
	a := s.register(validRegistration())

	got, err := s.f.accounts.Authenticate(s.ctx, "ana.souza", "s3cret-pass")
	s.Require().NoError(err)
	s.Equal(a.ID, got.ID)

	stored, err := s.f.db.Accounts().GetByID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(stored.LastLoginAt.Valid)
	p, err := s.f.db.Profiles().GetByAccountID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(p.LastAccessAt.Valid)
	s.Equal(fixedNow, p.LastAccessAt.Time)

	_, err = s.f.accounts.Authenticate(s.ctx, "ana.souza", "wrong-pass")
	s.True(apperr.Is(err, apperr.CodeUnauthorized))

	_, err = s.f.accounts.Authenticate(s.ctx, "nobody", "whatever")
	s.True(apperr.Is(err, apperr.CodeUnauthorized))

	s.Equal(1.0, testutil.ToFloat64(s.f.metrics.Logins.WithLabelValues("success")))
	s.Equal(2.0, testutil.ToFloat64(s.f.metrics.Logins.WithLabelValues("failure")))
}

func (s *AccountServiceSuite) TestAuthenticateRefusesInactive() {
	a := s.register(validRegistration())
	s.f.db.Accounts().SetActive(a.ID, false)

	_, err := s.f.accounts.Authenticate(s.ctx, "ana.souza", "s3cret-pass")
	s.True(apperr.Is(err, apperr.CodeUnauthorized))

	v, err := s.f.accounts.Viewer(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(v.Authenticated)
}

func (s *AccountServiceSuite) TestViewerCarriesProfile() {
	a := s.register(validRegistration())

	v, err := s.f.accounts.Viewer(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(v.Authenticated)
	s.Equal(a.ID, v.AccountID)
	s.Require().NotNil(v.Profile)

	admin, err := s.f.accounts.CreateAccount(s.ctx, NewAccountInput{
		Username: "admin",
		Email:    "admin@example.org",
		Password: "admin-pass",
		Staff:    true,
	})
	s.Require().NoError(err)

	v, err = s.f.accounts.Viewer(s.ctx, admin.ID)
	s.Require().NoError(err)
	s.True(v.Staff)
	s.Nil(v.Profile, "accounts without a profile have no profile rights")

	v, err = s.f.accounts.Viewer(s.ctx, 999)
	s.Require().NoError(err)
	s.Equal(policy.Anonymous(), v)
}

func (s *AccountServiceSuite) TestApprovalWorkflow() {
	a := s.register(validRegistration())
	admin := staff(50)

	_, err := s.f.accounts.Approve(s.ctx, member(a.ID), []int64{a.ID})
	s.True(apperr.Is(err, apperr.CodeAccessDenied))

	pending, err := s.f.accounts.PendingAccounts(s.ctx, admin)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal("ana.souza", pending[0].Account.Username)

	result, err := s.f.accounts.Approve(s.ctx, admin, []int64{a.ID, 404})
	s.Require().NoError(err)
	s.Equal(1, result.Updated)
	s.Equal([]string{"404"}, result.Missing)

	p, err := s.f.db.Profiles().GetByAccountID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(p.AccountApproved)
	s.Equal(fixedNow, p.ApprovedAt.Time)
	s.Equal(int64(50), p.ApprovedBy.Int64)
	s.False(p.IsApproved(), "approval alone needs a verified e-mail")

	_, err = s.f.accounts.VerifyEmails(s.ctx, admin, []int64{a.ID})
	s.Require().NoError(err)
	_, err = s.f.accounts.GrantRights(s.ctx, admin, []int64{a.ID}, Rights{Level: model.PermissionPublisher, Publish: true})
	s.Require().NoError(err)

	v, err := s.f.accounts.Viewer(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(v.Profile.IsApproved())
	s.True(policy.CanCreateEmenta(v))
	s.False(v.Profile.CanViewConfidential())

	_, err = s.f.accounts.Reject(s.ctx, admin, []int64{a.ID})
	s.Require().NoError(err)
	p, err = s.f.db.Profiles().GetByAccountID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.False(p.AccountApproved)
	s.False(p.ApprovedAt.Valid)
	s.False(p.ApprovedBy.Valid)
	s.False(p.CanPublish())

	s.Equal(1.0, testutil.ToFloat64(s.f.metrics.AccountActions.WithLabelValues("approve")))
}

func (s *AccountServiceSuite) TestCommandLineApprovalHasNoApprover() {
	a := s.register(validRegistration())

	ids, missing, err := s.f.accounts.AccountIDs(s.ctx, []string{"ana.souza", "ghost"})
	s.Require().NoError(err)
	s.Equal([]int64{a.ID}, ids)
	s.Equal([]string{"ghost"}, missing)

	_, err = s.f.accounts.Approve(s.ctx, CommandLine(), ids)
	s.Require().NoError(err)

	p, err := s.f.db.Profiles().GetByAccountID(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(p.AccountApproved)
	s.True(p.ApprovedAt.Valid)
	s.False(p.ApprovedBy.Valid)
}

func (s *AccountServiceSuite) TestGrantRightsValidatesLevel() {
	_, err := s.f.accounts.GrantRights(s.ctx, staff(1), []int64{1}, Rights{Level: "root"})
	s.True(apperr.Is(err, apperr.CodeValidation))
}

func (s *AccountServiceSuite) TestUpdateProfileCreatesMissingProfile() {
	admin, err := s.f.accounts.CreateAccount(s.ctx, NewAccountInput{
		Username: "admin",
		Email:    "admin@example.org",
		Password: "admin-pass",
	})
	s.Require().NoError(err)
	v := member(admin.ID)

	p, err := s.f.accounts.UpdateProfile(s.ctx, v, ProfileInput{
		CPF:      "111.222.333-44",
		UserType: model.UserTypeEngineer,
		JobTitle: "Inspector",
	})
	s.Require().NoError(err)
	s.Equal(admin.ID, p.AccountID)
	s.False(p.IsApproved())

	// keeping one's own CPF is not a conflict
	p, err = s.f.accounts.UpdateProfile(s.ctx, v, ProfileInput{
		CPF:      "111.222.333-44",
		UserType: model.UserTypeEngineer,
		JobTitle: "Chief Inspector",
	})
	s.Require().NoError(err)
	s.Equal("Chief Inspector", p.JobTitle)

	other := s.register(validRegistration())
	_, err = s.f.accounts.UpdateProfile(s.ctx, member(other.ID), ProfileInput{
		CPF:      "111.222.333-44",
		UserType: model.UserTypeEngineer,
	})
	s.Require().Error(err)
	s.Contains(apperr.FieldsOf(err), "cpf")
}

func (s *AccountServiceSuite) TestUpdateProfileReplacesDocument() {
	in := validRegistration()
	in.Diploma = &Upload{Filename: "diploma.pdf", Body: strings.NewReader("v1")}
	a := s.register(in)

	before, err := s.f.db.Profiles().GetByAccountID(s.ctx, a.ID)
	s.Require().NoError(err)
	oldRef := before.Diploma.String

	edit := ProfileInputFrom(before)
	edit.Diploma = &Upload{Filename: "diploma.pdf", Body: strings.NewReader("v2")}
	after, err := s.f.accounts.UpdateProfile(s.ctx, member(a.ID), edit)
	s.Require().NoError(err)

	s.NotEqual(oldRef, after.Diploma.String)
	s.False(s.f.blobExists(s.T(), oldRef))
	s.True(s.f.blobExists(s.T(), after.Diploma.String))
}

func TestProfileInputFromNil(t *testing.T) {
	in := ProfileInputFrom(nil)
	assert.Equal(t, model.UserTypeEngineer, in.UserType)
	require.Empty(t, in.CPF)
}
