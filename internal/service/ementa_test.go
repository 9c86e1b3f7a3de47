package service

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

func TestCreateConfidentialScrubsAndFallsBackToTypeTitle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.ementas.Create(ctx, publisher(1), EmentaInput{
		Number:       "42",
		Type:         model.EmentaTypeOrdinance,
		Status:       model.EmentaStatusInForce,
		Summary:      "X",
		Published:    true,
		Confidential: true,
		Attachment:   &Upload{Filename: "act.pdf", Body: strings.NewReader("%PDF")},
	})
	require.NoError(t, err)

	assert.Equal(t, "Ordinance 42", e.Title)
	assert.Empty(t, e.Summary)
	assert.Empty(t, e.ExtendedSummary)
	assert.False(t, e.AttachedFile.Valid, "confidential records keep no attachment")
	assert.Equal(t, int64(1), e.CreatedBy.Int64)

	stored, err := f.db.Ementas().GetByID(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ordinance 42", stored.Title)
	assert.Empty(t, stored.Summary)
}

func TestCreateRequiresPublishRight(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := EmentaInput{Title: "Act", Type: model.EmentaTypeOrdinance, Status: model.EmentaStatusInForce, Published: true}

	_, err := f.ementas.Create(ctx, policy.Anonymous(), in)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))

	_, err = f.ementas.Create(ctx, member(2), in)
	assert.True(t, apperr.Is(err, apperr.CodeAccessDenied))

	// the flag without approval is not an effective right
	v := member(3)
	v.Profile = model.NewProfile(3)
	v.Profile.PublishAllowed = true
	_, err = f.ementas.Create(ctx, v, in)
	assert.True(t, apperr.Is(err, apperr.CodeAccessDenied))
}

func TestCreateValidatesTitleAndEnums(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ementas.Create(ctx, publisher(1), EmentaInput{
		Type:   model.EmentaTypeOrdinance,
		Status: model.EmentaStatusInForce,
	})
	require.Error(t, err)
	assert.Contains(t, apperr.FieldsOf(err), "title")

	_, err = f.ementas.Create(ctx, publisher(1), EmentaInput{
		Title:  "Act",
		Type:   "decree",
		Status: "pending",
	})
	require.Error(t, err)
	fields := apperr.FieldsOf(err)
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "status")

	count, err := f.db.Ementas().Count(ctx, listing.EmentaFilter{Visibility: policy.Visibility{IncludeUnpublished: true, IncludeConfidential: true}})
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateSanitizesFreeText(t *testing.T) {
	f := newFixture(t)

	e, err := f.ementas.Create(context.Background(), publisher(1), EmentaInput{
		Title:     "Act",
		Type:      model.EmentaTypeOrdinance,
		Status:    model.EmentaStatusInForce,
		Summary:   `<script>alert(1)</script>Fees & <b>charges</b>`,
		Published: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "Fees & charges", e.Summary)
}

func TestResavingUnchangedEmentaKeepsSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := publisher(1)

	for _, summary := range []string{"use &lt;b&gt; tags", "use <b>bold</b> tags"} {
		e, err := f.ementas.Create(ctx, v, EmentaInput{
			Title:     "Act",
			Type:      model.EmentaTypeOrdinance,
			Status:    model.EmentaStatusInForce,
			Summary:   summary,
			Published: true,
		})
		require.NoError(t, err)
		stored := e.Summary

		for i := 0; i < 2; i++ {
			e, err = f.ementas.Update(ctx, v, e.ID, InputFrom(e))
			require.NoError(t, err)
			assert.Equal(t, stored, e.Summary, "summary %q", summary)
		}
	}
}

func TestAnonymousListingHidesConfidentialAndUnpublished(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedEmenta(t, &model.Ementa{Title: "Secret", Published: true, Confidential: true})
	public := f.seedEmenta(t, &model.Ementa{Title: "Public", Published: true})
	f.seedEmenta(t, &model.Ementa{Title: "Draft", Published: false})

	page, err := f.ementas.List(ctx, policy.Anonymous(), listing.Criteria{})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, public.ID, page.Items[0].ID)
	assert.Equal(t, 1, page.TotalCount)

	page, err = f.ementas.List(ctx, confidentialReader(5), listing.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount)

	page, err = f.ementas.List(ctx, staff(9), listing.Criteria{})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalCount, "staff see drafts but not confidential records")
}

func TestListPageSizeOutsideSetFallsBackToTen(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 30; i++ {
		f.seedEmenta(t, &model.Ementa{Title: "Act", Published: true})
	}

	c := listing.ParseCriteria(func(key string) string {
		return map[string]string{"page_size": "25", "page": "99"}[key]
	})
	page, err := f.ementas.List(context.Background(), policy.Anonymous(), c)
	require.NoError(t, err)

	assert.Equal(t, 10, page.Size)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 3, page.Number, "out of range pages clamp to the last one")
	assert.False(t, page.HasNext())
}

func TestListHugePageNumberLandsOnLastPage(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 25; i++ {
		f.seedEmenta(t, &model.Ementa{Title: "Act", Published: true})
	}

	c := listing.ParseCriteria(func(key string) string {
		return map[string]string{"page": "99999999999999999999999"}[key]
	})
	page, err := f.ementas.List(context.Background(), policy.Anonymous(), c)
	require.NoError(t, err)

	assert.Equal(t, 3, page.Number)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 5)
}

func TestGetConfidentialWithRightReturnsRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	secret := f.seedEmenta(t, &model.Ementa{Number: "7", Title: "Secret ruling", Published: true, Confidential: true})

	e, err := f.ementas.Get(ctx, confidentialReader(5), secret.ID)
	require.NoError(t, err)
	assert.Equal(t, "Secret ruling", e.Title)
	assert.Equal(t, "7", e.Number)

	_, err = f.ementas.Get(ctx, policy.Anonymous(), secret.ID)
	assert.True(t, apperr.Is(err, apperr.CodeAccessDenied))

	_, err = f.ementas.Get(ctx, staff(9), secret.ID)
	assert.True(t, apperr.Is(err, apperr.CodeAccessDenied))

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AccessDecisions.WithLabelValues("allow")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.AccessDecisions.WithLabelValues("denied")))
}

func TestGetUnpublishedIsNotFoundExceptForStaff(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft := f.seedEmenta(t, &model.Ementa{Title: "Draft", Published: false, Confidential: true})

	_, err := f.ementas.Get(ctx, confidentialReader(5), draft.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = f.ementas.Get(ctx, policy.Anonymous(), 999)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	_, err = f.ementas.Get(ctx, staff(9), draft.ID)
	assert.True(t, apperr.Is(err, apperr.CodeAccessDenied), "published gate first, then confidentiality")
}

func TestUpdateKeepsCreatorAndChecksRights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := publisher(1)

	e, err := f.ementas.Create(ctx, owner, EmentaInput{Title: "Act", Type: model.EmentaTypeOrdinance, Status: model.EmentaStatusInForce, Published: true})
	require.NoError(t, err)

	in := InputFrom(e)
	in.Title = "Act (amended)"

	_, err = f.ementas.Update(ctx, member(2), e.ID, in)
	assert.True(t, apperr.Is(err, apperr.CodeAccessDenied))

	_, err = f.ementas.Update(ctx, policy.Anonymous(), e.ID, in)
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))

	updated, err := f.ementas.Update(ctx, publisher(3), e.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Act (amended)", updated.Title)
	assert.Equal(t, int64(1), updated.CreatedBy.Int64)

	// the creator keeps edit access after losing the publish right
	exOwner := member(1)
	in.Status = model.EmentaStatusRevoked
	updated, err = f.ementas.Update(ctx, exOwner, e.ID, in)
	require.NoError(t, err)
	assert.Equal(t, model.EmentaStatusRevoked, updated.Status)
}

func TestUpdateToConfidentialDeletesAttachment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	v := publisher(1)

	e, err := f.ementas.Create(ctx, v, EmentaInput{
		Title:      "Act",
		Type:       model.EmentaTypeOrdinance,
		Status:     model.EmentaStatusInForce,
		Summary:    "Body",
		Published:  true,
		Attachment: &Upload{Filename: "Act.PDF", Body: strings.NewReader("%PDF-1.4")},
	})
	require.NoError(t, err)
	require.True(t, e.AttachedFile.Valid)
	assert.True(t, strings.HasPrefix(e.AttachedFile.String, model.EmentaFilePrefix))
	ref := e.AttachedFile.String
	assert.True(t, f.blobExists(t, ref))

	in := InputFrom(e)
	in.Confidential = true
	updated, err := f.ementas.Update(ctx, v, e.ID, in)
	require.NoError(t, err)

	assert.False(t, updated.AttachedFile.Valid)
	assert.Empty(t, updated.Summary)
	assert.False(t, f.blobExists(t, ref), "scrubbed attachment is removed from storage")
}

func TestAttachmentRejectsNonPDF(t *testing.T) {
	f := newFixture(t)

	_, err := f.ementas.Create(context.Background(), publisher(1), EmentaInput{
		Title:      "Act",
		Type:       model.EmentaTypeOrdinance,
		Status:     model.EmentaStatusInForce,
		Published:  true,
		Attachment: &Upload{Filename: "act.exe", Body: strings.NewReader("MZ")},
	})
	require.Error(t, err)
	assert.Contains(t, apperr.FieldsOf(err), "attached_file")
}

func TestAttachmentFollowsReadPolicy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.ementas.Create(ctx, publisher(1), EmentaInput{
		Title:      "Act",
		Type:       model.EmentaTypeOrdinance,
		Status:     model.EmentaStatusInForce,
		Published:  true,
		Attachment: &Upload{Filename: "act.pdf", Body: strings.NewReader("%PDF-1.4")},
	})
	require.NoError(t, err)

	rc, name, err := f.ementas.Attachment(ctx, policy.Anonymous(), e.ID)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.True(t, strings.HasSuffix(name, ".pdf"))

	plain := f.seedEmenta(t, &model.Ementa{Title: "No file", Published: true})
	_, _, err = f.ementas.Attachment(ctx, policy.Anonymous(), plain.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestSetConfidentialRunsWritePath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.seedEmenta(t, &model.Ementa{Number: "1", Summary: "one", Published: true})
	b := f.seedEmenta(t, &model.Ementa{Number: "2", Title: "Two", Summary: "two", Published: true})

	result, err := f.ementas.SetConfidential(ctx, []int64{a.ID, b.ID, 404}, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, []string{"404"}, result.Missing)

	stored, err := f.db.Ementas().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, stored.Confidential)
	assert.Empty(t, stored.Summary)
	assert.Equal(t, "Ordinance 1", stored.Title)

	result, err = f.ementas.SetConfidential(ctx, []int64{b.ID}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	stored, err = f.db.Ementas().GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, stored.Confidential)
	assert.Empty(t, stored.Summary, "unmarking does not restore scrubbed content")
}
