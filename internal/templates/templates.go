// Package templates holds the templ components for every page. Edit the
// .templ files and run `templ generate` to refresh the _templ.go files.
package templates

import (
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/service"
)

const (
	dayLayout      = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04"
	isoDayLayout   = "2006-01-02"
)

func pageTitle(title string) string {
	if title == "" {
		return "Acervo"
	}
	return title + " · Acervo"
}

func formatDate(t sql.NullTime) string {
	if !t.Valid {
		return "-"
	}
	return t.Time.Format(dayLayout)
}

func inputDate(t sql.NullTime) string {
	if !t.Valid {
		return ""
	}
	return t.Time.Format(isoDayLayout)
}

func orDash(s string) string { return orDefault(s, "-") }

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func ementaURL(id int64) string   { return "/ementas/" + strconv.FormatInt(id, 10) }
func protocoloURL(id int64) string { return "/protocolos/" + strconv.FormatInt(id, 10) }

// formAction posts to the collection for new records and to the record
// itself when editing
func formAction(collection string, id int64) string {
	if id == 0 {
		return collection
	}
	return collection + "/" + strconv.FormatInt(id, 10)
}

func approvalStatus(p *model.Profile) string {
	switch {
	case p.IsApproved():
		return "Approved"
	case p.AccountApproved:
		return "Waiting for e-mail verification"
	default:
		return "Waiting for approval"
	}
}

func bulkSummary(action string, r *service.BulkResult) string {
	msg := fmt.Sprintf("%s: %d updated", action, r.Updated)
	if len(r.Missing) > 0 {
		msg += ", not found: " + strings.Join(r.Missing, ", ")
	}
	return msg + "."
}

// pageQuery keeps the active filters when moving between pages
func pageQuery(c listing.Criteria, page int) string {
	v := url.Values{}
	if c.Query != "" {
		v.Set("q", c.Query)
	}
	if c.Type != "" {
		v.Set("type", string(c.Type))
	}
	if c.Status != "" {
		v.Set("status", string(c.Status))
	}
	if !c.DateFrom.IsZero() {
		v.Set("date_from", c.DateFrom.Format(isoDayLayout))
	}
	if !c.DateTo.IsZero() {
		v.Set("date_to", c.DateTo.Format(isoDayLayout))
	}
	v.Set("page_size", strconv.Itoa(listing.ParsePageSize(strconv.Itoa(c.PageSize))))
	v.Set("page", strconv.Itoa(page))
	return "?" + v.Encode()
}

func protocoloPageQuery(query string, size, page int) string {
	v := url.Values{}
	if query != "" {
		v.Set("q", query)
	}
	v.Set("page_size", strconv.Itoa(size))
	v.Set("page", strconv.Itoa(page))
	return "?" + v.Encode()
}
