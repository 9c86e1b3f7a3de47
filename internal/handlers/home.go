package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/acervo/internal/service"
	"github.com/jjenkins/acervo/internal/templates"
)

func HomeHandler(dashboard *service.DashboardService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := dashboard.Dashboard(c.UserContext(), viewerOf(c))
		if err != nil {
			return err
		}

		page := templates.Home(templates.HomePage{
			Base:      base(c, "Home"),
			Dashboard: d,
		})
		return render(c, fiber.StatusOK, page)
	}
}
