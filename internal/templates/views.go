package templates

import (
	"time"

	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
	"github.com/jjenkins/acervo/internal/service"
)

// Base is what the layout needs on every page
type Base struct {
	Title  string
	Viewer policy.Viewer
	Flash  string
}

// CanCreateEmenta shows the "new ementa" link
func (b Base) CanCreateEmenta() bool { return policy.CanCreateEmenta(b.Viewer) }

// CanApprove shows the administration link
func (b Base) CanApprove() bool { return policy.CanApproveAccounts(b.Viewer) }

type HomePage struct {
	Base
	Dashboard *service.Dashboard
}

type EmentaListPage struct {
	Base
	Page     listing.Page[model.Ementa]
	Criteria listing.Criteria
}

// DateFrom is the lower date bound as a date input value
func (p EmentaListPage) DateFrom() string { return dateValue(p.Criteria.DateFrom) }

// DateTo is the upper date bound as a date input value
func (p EmentaListPage) DateTo() string { return dateValue(p.Criteria.DateTo) }

func dateValue(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(isoDayLayout)
}

type EmentaDetailPage struct {
	Base
	Ementa  *model.Ementa
	Denied  bool
	CanEdit bool
}

type EmentaFormPage struct {
	Base
	ID            int64
	Input         service.EmentaInput
	HasAttachment bool
	Errors        map[string]string
}

type ProtocoloListPage struct {
	Base
	Page  listing.Page[model.Protocolo]
	Query string
}

type ProtocoloDetailPage struct {
	Base
	Protocolo *model.Protocolo
}

type ProtocoloFormPage struct {
	Base
	ID     int64
	Input  service.ProtocoloInput
	Errors map[string]string
}

type LoginPage struct {
	Base
	Username string
	Next     string
	Error    string
}

type RegisterPage struct {
	Base
	Input  service.RegistrationInput
	Errors map[string]string
}

type ProfilePage struct {
	Base
	Overview *service.ProfileOverview
}

type ProfileFormPage struct {
	Base
	Input  service.ProfileInput
	Errors map[string]string
}

type PendingAccountsPage struct {
	Base
	Pending []model.AccountProfile
	Result  *service.BulkResult
	Action  string
}

type ErrorPage struct {
	Base
	Status  int
	Message string
}
