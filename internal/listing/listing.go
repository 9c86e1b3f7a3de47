// Package listing builds filtered, paginated views over the record catalogs.
//
// Criteria come from query-string values. Page sizes are limited to
// PageSizes; any other value falls back to DefaultPageSize. Page numbers
// outside the valid range clamp to the first or last page instead of failing.
package listing

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
)

// PageSizes are the page sizes a caller may pick.
var PageSizes = []int{10, 50, 100}

// DefaultPageSize is used when the requested size is not in PageSizes.
const DefaultPageSize = 10

const dateLayout = "2006-01-02"

// ParsePageSize maps a raw page-size value onto PageSizes.
func ParsePageSize(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPageSize
	}
	for _, size := range PageSizes {
		if n == size {
			return n
		}
	}
	return DefaultPageSize
}

// ParsePage reads a 1-based page number. Anything unparsable is page 1;
// numbers past the end, including ones too large for an int, are clamped
// later by Paginate.
func ParsePage(raw string) int {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) && !strings.HasPrefix(raw, "-") {
		return math.MaxInt
	}
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Criteria is what a caller asked for when listing ementas.
type Criteria struct {
	Query    string
	Type     model.EmentaType
	Status   model.EmentaStatus
	DateFrom time.Time
	DateTo   time.Time
	PageSize int
	Page     int
}

// ParseCriteria reads criteria through get, which returns the raw value of a
// query parameter. Unknown type or status values and malformed dates are
// ignored rather than rejected.
func ParseCriteria(get func(key string) string) Criteria {
	c := Criteria{
		Query:    strings.TrimSpace(get("q")),
		PageSize: ParsePageSize(orDefault(get("page_size"), strconv.Itoa(DefaultPageSize))),
		Page:     ParsePage(get("page")),
	}
	if t := model.EmentaType(get("type")); t.IsValid() {
		c.Type = t
	}
	if s := model.EmentaStatus(get("status")); s.IsValid() {
		c.Status = s
	}
	c.DateFrom = parseDate(get("date_from"))
	c.DateTo = parseDate(get("date_to"))
	return c
}

// Filter combines the criteria with the viewer's visibility.
func (c Criteria) Filter(vis policy.Visibility) EmentaFilter {
	return EmentaFilter{
		Query:      c.Query,
		Type:       c.Type,
		Status:     c.Status,
		DateFrom:   c.DateFrom,
		DateTo:     c.DateTo,
		Visibility: vis,
	}
}

// EmentaFilter is the store-facing filter. Stores translate it to SQL; the
// in-memory store uses Matches.
type EmentaFilter struct {
	Query      string
	Type       model.EmentaType
	Status     model.EmentaStatus
	DateFrom   time.Time
	DateTo     time.Time
	Visibility policy.Visibility
}

// Matches reports whether e passes every part of the filter. The free-text
// query is a case-insensitive substring match on title, number, summary or
// extended summary. Date bounds are inclusive and exclude undated records.
func (f EmentaFilter) Matches(e *model.Ementa) bool {
	if !f.Visibility.Allows(e) {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.DateFrom.IsZero() || !f.DateTo.IsZero() {
		if !e.PublicationDate.Valid {
			return false
		}
		d := truncateDay(e.PublicationDate.Time)
		if !f.DateFrom.IsZero() && d.Before(truncateDay(f.DateFrom)) {
			return false
		}
		if !f.DateTo.IsZero() && d.After(truncateDay(f.DateTo)) {
			return false
		}
	}
	if f.Query == "" {
		return true
	}
	return containsFold(f.Query, e.Title, e.Number, e.Summary, e.ExtendedSummary)
}

// ProtocoloFilter filters protocolos by a free-text query over number, tax
// ID, storage location and notes.
type ProtocoloFilter struct {
	Query string
}

// Matches reports whether p passes the filter.
func (f ProtocoloFilter) Matches(p *model.Protocolo) bool {
	if f.Query == "" {
		return true
	}
	return containsFold(f.Query, p.Number, p.TaxID, p.StorageLocation, p.Notes)
}

// Window is the resolved position of one page.
type Window struct {
	Number     int
	Size       int
	Offset     int
	TotalPages int
}

// Paginate clamps the requested page into [1, TotalPages]. An empty result
// still has one (empty) page.
func Paginate(requested, size, total int) Window {
	if size <= 0 {
		size = DefaultPageSize
	}
	pages := (total + size - 1) / size
	if pages < 1 {
		pages = 1
	}
	n := requested
	if n < 1 {
		n = 1
	}
	if n > pages {
		n = pages
	}
	return Window{Number: n, Size: size, Offset: (n - 1) * size, TotalPages: pages}
}

// Page is one page of results with its position in the whole set.
type Page[T any] struct {
	Items      []T
	Number     int
	Size       int
	TotalCount int
	TotalPages int
}

// NewPage wraps items fetched for w.
func NewPage[T any](items []T, w Window, total int) Page[T] {
	return Page[T]{
		Items:      items,
		Number:     w.Number,
		Size:       w.Size,
		TotalCount: total,
		TotalPages: w.TotalPages,
	}
}

func (p Page[T]) HasPrev() bool { return p.Number > 1 }
func (p Page[T]) HasNext() bool { return p.Number < p.TotalPages }
func (p Page[T]) PrevNumber() int {
	if p.HasPrev() {
		return p.Number - 1
	}
	return p.Number
}
func (p Page[T]) NextNumber() int {
	if p.HasNext() {
		return p.Number + 1
	}
	return p.Number
}

// StartIndex is the 1-based position of the first item, 0 when empty.
func (p Page[T]) StartIndex() int {
	if len(p.Items) == 0 {
		return 0
	}
	return (p.Number-1)*p.Size + 1
}

// EndIndex is the 1-based position of the last item, 0 when empty.
func (p Page[T]) EndIndex() int {
	if len(p.Items) == 0 {
		return 0
	}
	return p.StartIndex() + len(p.Items) - 1
}

func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func containsFold(query string, fields ...string) bool {
	q := strings.ToLower(query)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
