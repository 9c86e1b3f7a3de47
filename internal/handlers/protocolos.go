package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/listing"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/service"
	"github.com/jjenkins/acervo/internal/templates"
)

func ProtocolosHandler(protocolos *service.ProtocoloService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := c.Query("q")
		page, err := protocolos.List(c.UserContext(), viewerOf(c), query,
			listing.ParsePage(c.Query("page")),
			listing.ParsePageSize(c.Query("page_size")))
		if err != nil {
			return err
		}

		data := templates.ProtocoloListPage{
			Base:  base(c, "Protocolos"),
			Page:  page,
			Query: query,
		}
		if isHTMX(c) {
			return render(c, fiber.StatusOK, templates.ProtocoloRows(data))
		}
		return render(c, fiber.StatusOK, templates.ProtocoloList(data))
	}
}

func ProtocoloDetailHandler(protocolos *service.ProtocoloService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		p, err := protocolos.Get(c.UserContext(), viewerOf(c), id)
		if err != nil {
			return err
		}

		page := templates.ProtocoloDetail(templates.ProtocoloDetailPage{
			Base:      base(c, "Protocolo "+p.Number),
			Protocolo: p,
		})
		return render(c, fiber.StatusOK, page)
	}
}

func NewProtocoloHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !viewerOf(c).Authenticated {
			return apperr.Unauthorized("log in to manage protocolos")
		}
		page := templates.ProtocoloForm(templates.ProtocoloFormPage{
			Base: base(c, "New protocolo"),
		})
		return render(c, fiber.StatusOK, page)
	}
}

func CreateProtocoloHandler(protocolos *service.ProtocoloService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.ProtocoloInput
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
		}

		p, err := protocolos.Create(c.UserContext(), viewerOf(c), in)
		if err == nil {
			return c.Redirect(fmt.Sprintf("/protocolos/%d", p.ID))
		}
		if !isFormError(err) {
			return err
		}

		page := templates.ProtocoloForm(templates.ProtocoloFormPage{
			Base:   base(c, "New protocolo"),
			Input:  in,
			Errors: apperr.FieldsOf(err),
		})
		return render(c, statusOf(err), page)
	}
}

func EditProtocoloHandler(protocolos *service.ProtocoloService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		p, err := protocolos.Get(c.UserContext(), viewerOf(c), id)
		if err != nil {
			return err
		}

		page := templates.ProtocoloForm(templates.ProtocoloFormPage{
			Base:  base(c, "Edit protocolo"),
			ID:    p.ID,
			Input: service.ProtocoloInputFrom(p),
		})
		return render(c, fiber.StatusOK, page)
	}
}

func UpdateProtocoloHandler(protocolos *service.ProtocoloService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := paramID(c)
		if err != nil {
			return err
		}

		var in service.ProtocoloInput
		if err := c.BodyParser(&in); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid form")
		}

		var p *model.Protocolo
		p, err = protocolos.Update(c.UserContext(), viewerOf(c), id, in)
		if err == nil {
			return c.Redirect(fmt.Sprintf("/protocolos/%d", p.ID))
		}
		if !isFormError(err) {
			return err
		}

		page := templates.ProtocoloForm(templates.ProtocoloFormPage{
			Base:   base(c, "Edit protocolo"),
			ID:     id,
			Input:  in,
			Errors: apperr.FieldsOf(err),
		})
		return render(c, statusOf(err), page)
	}
}
