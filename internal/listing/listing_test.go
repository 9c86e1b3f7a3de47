package listing

import (
	"database/sql"
	"math"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

func TestParsePageSize(t *testing.T) {
	tests := map[string]int{
		"10":  10,
		"50":  50,
		"100": 100,
		"25":  10,
		"":    10,
		"abc": 10,
		"-50": 10,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParsePageSize(raw), "raw=%q", raw)
	}
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, 1, ParsePage(""))
	assert.Equal(t, 1, ParsePage("zero"))
	assert.Equal(t, 1, ParsePage("-3"))
	assert.Equal(t, 4, ParsePage("4"))
	assert.Equal(t, math.MaxInt, ParsePage("99999999999999999999"))
	assert.Equal(t, 1, ParsePage("-99999999999999999999"))
}

func TestPaginateClamps(t *testing.T) {
	tests := []struct {
		name                string
		requested, size, n  int
		wantNumber, wantOff int
		wantPages           int
	}{
		{"first page", 1, 10, 35, 1, 0, 4},
		{"middle page", 2, 10, 35, 2, 10, 4},
		{"past the end clamps to last", 99, 10, 35, 4, 30, 4},
		{"max int clamps to last", math.MaxInt, 10, 35, 4, 30, 4},
		{"below one clamps to first", 0, 10, 35, 1, 0, 4},
		{"empty set has one page", 3, 10, 0, 1, 0, 1},
		{"exact multiple", 3, 10, 30, 3, 20, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Paginate(tt.requested, tt.size, tt.n)
			assert.Equal(t, tt.wantNumber, w.Number)
			assert.Equal(t, tt.wantOff, w.Offset)
			assert.Equal(t, tt.wantPages, w.TotalPages)
		})
	}
}

func TestPageNavigation(t *testing.T) {
	p := NewPage([]int{11, 12, 13}, Paginate(2, 10, 23), 23)
	assert.True(t, p.HasPrev())
	assert.True(t, p.HasNext())
	assert.Equal(t, 1, p.PrevNumber())
	assert.Equal(t, 3, p.NextNumber())
	assert.Equal(t, 11, p.StartIndex())
	assert.Equal(t, 13, p.EndIndex())

	empty := NewPage([]int(nil), Paginate(1, 10, 0), 0)
	assert.False(t, empty.HasPrev())
	assert.False(t, empty.HasNext())
	assert.Equal(t, 0, empty.StartIndex())
}

func TestParseCriteria(t *testing.T) {
	v := url.Values{
		"q":         {"  licitação "},
		"type":      {"plenary-decision"},
		"status":    {"bogus"},
		"date_from": {"2024-01-01"},
		"date_to":   {"not-a-date"},
		"page_size": {"25"},
		"page":      {"3"},
	}
	c := ParseCriteria(v.Get)
	assert.Equal(t, "licitação", c.Query)
	assert.Equal(t, model.EmentaTypePlenaryDecision, c.Type)
	assert.Empty(t, c.Status)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), c.DateFrom)
	assert.True(t, c.DateTo.IsZero())
	assert.Equal(t, 10, c.PageSize)
	assert.Equal(t, 3, c.Page)
}

func TestEmentaFilterMatches(t *testing.T) {
	day := func(s string) sql.NullTime {
		t, _ := time.Parse(dateLayout, s)
		return sql.NullTime{Time: t, Valid: true}
	}
	e := &model.Ementa{
		Number:          "12/2024",
		Title:           "Fee schedule",
		Summary:         "Sets the annual FEES",
		Type:            model.EmentaTypeOrdinance,
		Status:          model.EmentaStatusInForce,
		PublicationDate: day("2024-03-10"),
		Published:       true,
	}
	public := policy.Visibility{}

	assert.True(t, EmentaFilter{Query: "annual fees", Visibility: public}.Matches(e))
	assert.True(t, EmentaFilter{Query: "12/2024", Visibility: public}.Matches(e))
	assert.False(t, EmentaFilter{Query: "tax", Visibility: public}.Matches(e))
	assert.False(t, EmentaFilter{Type: model.EmentaTypePlenaryDecision, Visibility: public}.Matches(e))
	assert.False(t, EmentaFilter{Status: model.EmentaStatusRevoked, Visibility: public}.Matches(e))

	from, _ := time.Parse(dateLayout, "2024-03-10")
	to, _ := time.Parse(dateLayout, "2024-03-10")
	assert.True(t, EmentaFilter{DateFrom: from, DateTo: to, Visibility: public}.Matches(e), "bounds are inclusive")
	later, _ := time.Parse(dateLayout, "2024-03-11")
	assert.False(t, EmentaFilter{DateFrom: later, Visibility: public}.Matches(e))

	undated := *e
	undated.PublicationDate = sql.NullTime{}
	assert.False(t, EmentaFilter{DateFrom: from, Visibility: public}.Matches(&undated))

	confidential := *e
	confidential.Confidential = true
	assert.False(t, EmentaFilter{Visibility: public}.Matches(&confidential))
	assert.True(t, EmentaFilter{Visibility: policy.Visibility{IncludeConfidential: true}}.Matches(&confidential))
}

func TestProtocoloFilterMatches(t *testing.T) {
	p := &model.Protocolo{Number: "2024-001", TaxID: "12345678901", StorageLocation: "BOX 3, ROW 2", Notes: "original copy"}
	assert.True(t, ProtocoloFilter{}.Matches(p))
	assert.True(t, ProtocoloFilter{Query: "box 3"}.Matches(p))
	assert.True(t, ProtocoloFilter{Query: "456789"}.Matches(p))
	assert.False(t, ProtocoloFilter{Query: "shelf"}.Matches(p))
}
