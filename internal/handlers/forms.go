package handlers

import (
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/service"
)

// checked reads an HTML checkbox
func checked(c *fiber.Ctx, name string) bool {
	switch strings.ToLower(c.FormValue(name)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

// formDate reads a yyyy-mm-dd input. Empty means no date.
func formDate(c *fiber.Ctx, name string) (sql.NullTime, error) {
	raw := strings.TrimSpace(c.FormValue(name))
	if raw == "" {
		return sql.NullTime{}, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return sql.NullTime{}, apperr.Validation(name, "enter a valid date")
	}
	return sql.NullTime{Time: t, Valid: true}, nil
}

func paramID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusNotFound, "Page not found")
	}
	return id, nil
}

// formIDs collects every "ids" value, each of which may also be a comma
// separated list
func formIDs(c *fiber.Ctx) ([]int64, error) {
	var raw []string
	for _, v := range c.Request().PostArgs().PeekMulti("ids") {
		raw = append(raw, string(v))
	}
	if form, err := c.MultipartForm(); err == nil {
		raw = append(raw, form.Value["ids"]...)
	}

	var ids []int64
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, apperr.Validation("ids", fmt.Sprintf("%q is not a record ID", part))
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, apperr.Validation("ids", "select at least one record")
	}
	return ids, nil
}

// uploads collects the files posted by a form. close releases them once the
// service has stored their content.
type uploads struct {
	files []io.Closer
}

func (u *uploads) get(c *fiber.Ctx, field string) (*service.Upload, error) {
	fh, err := c.FormFile(field)
	if err != nil || fh.Size == 0 {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to read upload %s: %w", field, err)
	}
	u.files = append(u.files, f)
	return &service.Upload{Filename: fh.Filename, Body: f}, nil
}

func (u *uploads) close() {
	for _, f := range u.files {
		f.Close()
	}
}
