package handlers

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
	"github.com/jjenkins/acervo/internal/service"
	"github.com/jjenkins/acervo/internal/templates"
)

func EmentasHandler(ementas *service.EmentaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		criteria := listing.ParseCriteria(func(key string) string { return c.Query(key) })

		page, err := ementas.List(c.UserContext(), viewerOf(c), criteria)
		if err != nil {
			return err
		}

		data := templates.EmentaListPage{
			Base:     base(c, "Ementas"),
			Page:     page,
			Criteria: criteria,
		}

		// HTMX requests only need the results block
		if isHTMX(c) {
			return render(c, fiber.StatusOK, templates.EmentaRows(data))
		}
		return render(c, fiber.StatusOK, templates.EmentaList(data))
	}
}

func EmentaDetailHandler(ementas *service.EmentaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		v := viewerOf(c)
		e, err := ementas.Get(c.UserContext(), v, id)
		if apperr.Is(err, apperr.CodeAccessDenied) {
			page := templates.EmentaDetail(templates.EmentaDetailPage{
				Base:   base(c, "Access denied"),
				Denied: true,
			})
			return render(c, fiber.StatusForbidden, page)
		}
		if err != nil {
			return err
		}

		page := templates.EmentaDetail(templates.EmentaDetailPage{
			Base:    base(c, e.Title),
			Ementa:  e,
			CanEdit: policy.CanEditEmenta(v, e),
		})
		return render(c, fiber.StatusOK, page)
	}
}

func NewEmentaHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := viewerOf(c)
		if !v.Authenticated {
			return apperr.Unauthorized("log in to create ementas")
		}
		if !policy.CanCreateEmenta(v) {
			return apperr.AccessDenied("you do not have permission to create ementas")
		}

		page := templates.EmentaForm(templates.EmentaFormPage{
			Base:  base(c, "New ementa"),
			Input: service.InputFrom(model.NewEmenta()),
		})
		return render(c, fiber.StatusOK, page)
	}
}

func CreateEmentaHandler(ementas *service.EmentaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var files uploads
		defer files.close()

		in, err := ementaInput(c, &files)
		if err == nil {
			var e *model.Ementa
			e, err = ementas.Create(c.UserContext(), viewerOf(c), in)
			if err == nil {
				return c.Redirect(fmt.Sprintf("/ementas/%d", e.ID))
			}
		}
		if !isFormError(err) {
			return err
		}

		page := templates.EmentaForm(templates.EmentaFormPage{
			Base:   base(c, "New ementa"),
			Input:  in,
			Errors: apperr.FieldsOf(err),
		})
		return render(c, statusOf(err), page)
	}
}

func EditEmentaHandler(ementas *service.EmentaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		v := viewerOf(c)
		if !v.Authenticated {
			return apperr.Unauthorized("log in to edit ementas")
		}
		e, err := ementas.Editable(c.UserContext(), v, id)
		if err != nil {
			return err
		}

		page := templates.EmentaForm(templates.EmentaFormPage{
			Base:          base(c, "Edit ementa"),
			ID:            e.ID,
			Input:         service.InputFrom(e),
			HasAttachment: e.AttachedFile.Valid,
		})
		return render(c, fiber.StatusOK, page)
	}
}

func UpdateEmentaHandler(ementas *service.EmentaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		var files uploads
		defer files.close()

		in, err := ementaInput(c, &files)
		if err == nil {
			_, err = ementas.Update(c.UserContext(), viewerOf(c), id, in)
			if err == nil {
				return c.Redirect(fmt.Sprintf("/ementas/%d", id))
			}
		}
		if !isFormError(err) {
			return err
		}

		page := templates.EmentaForm(templates.EmentaFormPage{
			Base:   base(c, "Edit ementa"),
			ID:     id,
			Input:  in,
			Errors: apperr.FieldsOf(err),
		})
		return render(c, statusOf(err), page)
	}
}

func AttachmentHandler(ementas *service.EmentaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		rc, name, err := ementas.Attachment(c.UserContext(), viewerOf(c), id)
		if err != nil {
			return err
		}

		c.Set(fiber.HeaderContentType, "application/pdf")
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": name}))
		// fasthttp closes the stream once it has been sent
		return c.SendStream(rc)
	}
}

// EmentaActionHandler runs the back-office confidentiality actions
func EmentaActionHandler(ementas *service.EmentaService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := viewerOf(c)
		if !v.Authenticated {
			return apperr.Unauthorized("log in to manage ementas")
		}
		if !policy.CanApproveAccounts(v) {
			return apperr.AccessDenied("only staff can change confidentiality")
		}

		var confidential bool
		switch c.FormValue("action") {
		case "mark_confidential":
			confidential = true
		case "unmark_confidential":
		default:
			return apperr.Validation("action", "unknown action")
		}

		ids, err := formIDs(c)
		if err != nil {
			return err
		}
		if _, err := ementas.SetConfidential(c.UserContext(), ids, confidential); err != nil {
			return err
		}
		return c.Redirect("/ementas")
	}
}

// ementaInput reads the ementa form. The input is returned even on error so
// the form can be shown again with what was typed.
func ementaInput(c *fiber.Ctx, files *uploads) (service.EmentaInput, error) {
	in := service.EmentaInput{
		Number:           strings.TrimSpace(c.FormValue("number")),
		Title:            strings.TrimSpace(c.FormValue("title")),
		Type:             model.EmentaType(c.FormValue("type")),
		Status:           model.EmentaStatus(c.FormValue("status")),
		Summary:          c.FormValue("summary"),
		ExtendedSummary:  c.FormValue("extended_summary"),
		Published:        checked(c, "published"),
		Confidential:     checked(c, "confidential"),
		RemoveAttachment: checked(c, "remove_attachment"),
	}

	date, err := formDate(c, "publication_date")
	if err != nil {
		return in, err
	}
	in.PublicationDate = date

	in.Attachment, err = files.get(c, "attached_file")
	return in, err
}
