package templates

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
	"github.com/jjenkins/acervo/internal/service"
)

func renderString(t *testing.T, c templ.Component) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, c.Render(context.Background(), &buf))
	return buf.String()
}

func sampleEmentas() []model.Ementa {
	return []model.Ementa{
		{
			ID:              1,
			Number:          "12",
			Title:           "Fee schedule",
			Type:            model.EmentaTypeOrdinance,
			Status:          model.EmentaStatusInForce,
			PublicationDate: sql.NullTime{Time: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), Valid: true},
			Published:       true,
		},
		{
			ID:           2,
			Title:        "Plenary Decision 7",
			Type:         model.EmentaTypePlenaryDecision,
			Status:       model.EmentaStatusRevoked,
			Published:    true,
			Confidential: true,
		},
	}
}

func TestEveryPageRenders(t *testing.T) {
	staff := Base{Title: "T", Viewer: policy.Viewer{Authenticated: true, Staff: true, Username: "admin"}}
	anon := Base{Title: "T"}
	items := sampleEmentas()
	page := listing.NewPage(items, listing.Paginate(1, 10, 2), 2)
	protocolo := model.Protocolo{
		ID:              3,
		Number:          "2024-0001",
		IssuedDate:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		TaxID:           "11144477735",
		PersonType:      model.PersonTypeIndividual,
		StorageLocation: "Shelf A3",
	}
	profile := model.NewProfile(1)
	account := &model.Account{ID: 1, Username: "maria", Email: "maria@example.org"}

	cases := map[string]templ.Component{
		"home": Home(HomePage{Base: anon, Dashboard: &service.Dashboard{
			PublishedTotal: 2,
			ByType:         map[model.EmentaType]int{model.EmentaTypeOrdinance: 1},
			Recent:         items,
		}}),
		"ementas":          EmentaList(EmentaListPage{Base: staff, Page: page, Criteria: listing.Criteria{Query: "fee", PageSize: 10}}),
		"ementa rows":      EmentaRows(EmentaListPage{Base: anon, Page: page}),
		"ementa detail":    EmentaDetail(EmentaDetailPage{Base: anon, Ementa: &items[0]}),
		"ementa denied":    EmentaDetail(EmentaDetailPage{Base: anon, Denied: true}),
		"ementa form":      EmentaForm(EmentaFormPage{Base: staff, ID: 1, Input: service.InputFrom(&items[0]), HasAttachment: true}),
		"protocolos":       ProtocoloList(ProtocoloListPage{Base: staff, Page: listing.NewPage([]model.Protocolo{protocolo}, listing.Paginate(1, 10, 1), 1)}),
		"protocolo rows":   ProtocoloRows(ProtocoloListPage{Base: staff, Query: "a&b"}),
		"protocolo detail": ProtocoloDetail(ProtocoloDetailPage{Base: staff, Protocolo: &protocolo}),
		"protocolo form":   ProtocoloForm(ProtocoloFormPage{Base: staff, Input: service.ProtocoloInputFrom(&protocolo), Errors: map[string]string{"number": "taken"}}),
		"login":            Login(LoginPage{Base: anon, Username: "maria", Next: "/profile", Error: "invalid"}),
		"register":         Register(RegisterPage{Base: anon, Input: service.RegistrationInput{ProfileInput: service.ProfileInputFrom(nil)}}),
		"profile":          Profile(ProfilePage{Base: staff, Overview: &service.ProfileOverview{Account: account, Profile: profile, Mine: items}}),
		"profile no data":  Profile(ProfilePage{Base: staff, Overview: &service.ProfileOverview{Account: account}}),
		"profile form":     ProfileForm(ProfileFormPage{Base: staff, Input: service.ProfileInputFrom(profile)}),
		"pending": PendingAccounts(PendingAccountsPage{
			Base:    staff,
			Pending: []model.AccountProfile{{Account: *account, Profile: *profile}},
			Result:  &service.BulkResult{Updated: 1, Missing: []string{"9"}},
			Action:  "Approved",
		}),
		"error": Error(ErrorPage{Base: anon, Status: 404, Message: "ementa not found"}),
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			out := renderString(t, c)
			assert.NotEmpty(t, out)
		})
	}
}

func TestLayoutLinksFollowRights(t *testing.T) {
	out := renderString(t, Error(ErrorPage{Base: Base{}, Status: 404}))
	assert.Contains(t, out, `href="/login"`)
	assert.NotContains(t, out, `href="/admin/accounts"`)

	staff := Base{Viewer: policy.Viewer{Authenticated: true, Staff: true, Username: "admin"}}
	out = renderString(t, Error(ErrorPage{Base: staff, Status: 404}))
	assert.Contains(t, out, `href="/admin/accounts"`)
	assert.Contains(t, out, `action="/logout"`)
	assert.NotContains(t, out, `href="/ementas/new"`, "staff without the publish right cannot create")
}

func TestDetailEscapesContent(t *testing.T) {
	e := model.Ementa{ID: 1, Title: "<script>alert(1)</script>", Type: model.EmentaTypeOrdinance, Status: model.EmentaStatusInForce}
	out := renderString(t, EmentaDetail(EmentaDetailPage{Ementa: &e}))
	assert.NotContains(t, out, "<script>alert(1)</script>")
	assert.Contains(t, out, "&lt;script&gt;")
}

func TestPageQueryKeepsFilters(t *testing.T) {
	c := listing.Criteria{
		Query:    "fee & tax",
		Type:     model.EmentaTypeOrdinance,
		DateFrom: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		PageSize: 50,
	}
	q := string(pageQuery(c, 3))
	assert.Contains(t, q, "q=fee+%26+tax")
	assert.Contains(t, q, "type=ordinance")
	assert.Contains(t, q, "date_from=2024-01-01")
	assert.Contains(t, q, "page_size=50")
	assert.Contains(t, q, "page=3")
	assert.NotContains(t, q, "status=")
}

func TestDateFormatting(t *testing.T) {
	assert.Equal(t, "-", formatDate(sql.NullTime{}))
	d := sql.NullTime{Time: time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), Valid: true}
	assert.Equal(t, "15/02/2024", formatDate(d))
	assert.Equal(t, "2024-02-15", inputDate(d))
	assert.Equal(t, "", inputDate(sql.NullTime{}))
}

func TestAttributesAreEscaped(t *testing.T) {
	out := renderString(t, Login(LoginPage{Username: `"><script>x</script>`, Next: "/ementas?q=a&b"}))
	assert.NotContains(t, out, `"><script>x</script>`)
	assert.Contains(t, out, `value="&#34;&gt;&lt;script&gt;x&lt;/script&gt;"`)
	assert.Contains(t, out, `value="/ementas?q=a&amp;b"`)
}

func TestEmentaRowsPagerKeepsFilters(t *testing.T) {
	items := make([]model.Ementa, 10)
	for i := range items {
		items[i] = model.Ementa{ID: int64(i + 1), Title: "Act", Type: model.EmentaTypeOrdinance, Status: model.EmentaStatusInForce, Published: true}
	}
	p := EmentaListPage{
		Page:     listing.NewPage(items, listing.Paginate(2, 10, 35), 35),
		Criteria: listing.Criteria{Query: "fee", PageSize: 10},
	}
	out := renderString(t, EmentaRows(p))
	assert.Contains(t, out, "Showing 11-20 of 35")
	assert.Contains(t, out, `href="/ementas?page=1&amp;page_size=10&amp;q=fee"`)
	assert.Contains(t, out, `hx-get="/ementas?page=3&amp;page_size=10&amp;q=fee"`)
	assert.Contains(t, out, `href="/ementas/1"`)
}

func TestPendingAccountsSummary(t *testing.T) {
	out := renderString(t, PendingAccounts(PendingAccountsPage{
		Result: &service.BulkResult{Updated: 2, Missing: []string{"7", "9"}},
		Action: "Rejected",
	}))
	assert.Contains(t, out, "Rejected: 2 updated, not found: 7, 9.")
	assert.Contains(t, out, "No accounts waiting.")
}
