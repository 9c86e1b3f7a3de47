package policy

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jjenkins/acervo/internal/model"
)

func approvedProfile(accountID int64, publish, confidential bool) *model.Profile {
	p := model.NewProfile(accountID)
	p.EmailVerified = true
	p.Approve(99, time.Now())
	p.PublishAllowed = publish
	p.ConfidentialAllowed = confidential
	return p
}

func ementa(published, confidential bool) *model.Ementa {
	return &model.Ementa{ID: 1, Title: "T", Type: model.EmentaTypeOrdinance, Status: model.EmentaStatusInForce, Published: published, Confidential: confidential}
}

func TestViewEmenta(t *testing.T) {
	anon := Anonymous()
	staff := Viewer{Authenticated: true, Staff: true, AccountID: 1}
	reader := Viewer{Authenticated: true, AccountID: 2, Profile: approvedProfile(2, false, true)}
	unapprovedReader := Viewer{Authenticated: true, AccountID: 3, Profile: func() *model.Profile {
		p := model.NewProfile(3)
		p.ConfidentialAllowed = true
		return p
	}()}
	noProfile := Viewer{Authenticated: true, AccountID: 4}

	tests := []struct {
		name   string
		viewer Viewer
		e      *model.Ementa
		want   Decision
	}{
		{"anonymous public", anon, ementa(true, false), Allow},
		{"anonymous confidential", anon, ementa(true, true), Denied},
		{"anonymous unpublished", anon, ementa(false, false), NotFound},
		{"anonymous unpublished confidential", anon, ementa(false, true), NotFound},
		{"staff unpublished", staff, ementa(false, false), Allow},
		{"staff unpublished confidential without right", staff, ementa(false, true), Denied},
		{"reader confidential", reader, ementa(true, true), Allow},
		{"reader unpublished confidential", reader, ementa(false, true), NotFound},
		{"unapproved flag holder", unapprovedReader, ementa(true, true), Denied},
		{"no profile confidential", noProfile, ementa(true, true), Denied},
		{"nil record", staff, nil, NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ViewEmenta(tt.viewer, tt.e))
		})
	}
}

func TestUnpublishedIsNotFoundForAnonymousWhateverConfidentiality(t *testing.T) {
	staff := Viewer{Authenticated: true, Staff: true, AccountID: 1, Profile: approvedProfile(1, false, true)}
	for _, confidential := range []bool{false, true} {
		e := ementa(false, confidential)
		assert.Equal(t, NotFound, ViewEmenta(Anonymous(), e))
		assert.Equal(t, Allow, ViewEmenta(staff, e))
	}
}

func TestCanCreateEmenta(t *testing.T) {
	assert.False(t, CanCreateEmenta(Anonymous()))
	assert.False(t, CanCreateEmenta(Viewer{Authenticated: true, Staff: true}))
	assert.False(t, CanCreateEmenta(Viewer{Authenticated: true, Profile: approvedProfile(1, false, false)}))
	assert.True(t, CanCreateEmenta(Viewer{Authenticated: true, Profile: approvedProfile(1, true, false)}))
}

func TestCanEditEmenta(t *testing.T) {
	owned := ementa(true, false)
	owned.CreatedBy = sql.NullInt64{Int64: 5, Valid: true}

	owner := Viewer{Authenticated: true, AccountID: 5}
	stranger := Viewer{Authenticated: true, AccountID: 6, Profile: approvedProfile(6, false, true)}
	publisher := Viewer{Authenticated: true, AccountID: 7, Profile: approvedProfile(7, true, false)}
	staff := Viewer{Authenticated: true, Staff: true, AccountID: 8}

	assert.True(t, CanEditEmenta(owner, owned), "ownership is enough")
	assert.False(t, CanEditEmenta(stranger, owned))
	assert.True(t, CanEditEmenta(publisher, owned))
	assert.True(t, CanEditEmenta(staff, owned))
	assert.False(t, CanEditEmenta(Anonymous(), owned))
	assert.False(t, CanEditEmenta(Viewer{AccountID: 5}, owned), "ownership needs a session")
}

func TestListVisibility(t *testing.T) {
	public := ementa(true, false)
	confidential := ementa(true, true)
	draft := ementa(false, false)

	anon := ListVisibility(Anonymous())
	assert.True(t, anon.Allows(public))
	assert.False(t, anon.Allows(confidential))
	assert.False(t, anon.Allows(draft))

	reader := ListVisibility(Viewer{Authenticated: true, Profile: approvedProfile(1, false, true)})
	assert.True(t, reader.Allows(confidential))
	assert.False(t, reader.Allows(draft))

	staff := ListVisibility(Viewer{Authenticated: true, Staff: true})
	assert.True(t, staff.Allows(draft))
	assert.False(t, staff.Allows(confidential))
}

func TestProtocoloAndApprovalRights(t *testing.T) {
	assert.False(t, CanManageProtocolos(Anonymous()))
	assert.True(t, CanManageProtocolos(Viewer{Authenticated: true}))
	assert.False(t, CanApproveAccounts(Viewer{Authenticated: true}))
	assert.True(t, CanApproveAccounts(Viewer{Authenticated: true, Staff: true}))
}
