package handlers

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/policy"
	"github.com/jjenkins/acervo/internal/service"
	"github.com/jjenkins/acervo/internal/session"
	"github.com/jjenkins/acervo/internal/templates"
)

// Deps is everything the HTTP layer needs
type Deps struct {
	Ementas    *service.EmentaService
	Protocolos *service.ProtocoloService
	Accounts   *service.AccountService
	Dashboard  *service.DashboardService
	Sessions   *session.Manager

	// Gatherer serves /metrics when set
	Gatherer prometheus.Gatherer
	// Ping backs /healthz when set
	Ping func(context.Context) error

	Logger        *zap.Logger
	SecureCookies bool
}

// NewApp builds the fiber application with every route registered
func NewApp(d Deps) *fiber.App {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:      "Acervo",
		ErrorHandler: errorHandler(d.Logger),
		BodyLimit:    20 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(RequestLogger(d.Logger))
	app.Use(SessionMiddleware(d.Sessions, d.Accounts))

	// Routes
	app.Get("/", HomeHandler(d.Dashboard))

	// Ementa routes
	app.Get("/ementas", EmentasHandler(d.Ementas))
	app.Get("/ementas/new", NewEmentaHandler())
	app.Post("/ementas", CreateEmentaHandler(d.Ementas))
	app.Get("/ementas/:id", EmentaDetailHandler(d.Ementas))
	app.Get("/ementas/:id/edit", EditEmentaHandler(d.Ementas))
	app.Post("/ementas/:id", UpdateEmentaHandler(d.Ementas))
	app.Get("/ementas/:id/attachment", AttachmentHandler(d.Ementas))

	// Protocolo routes
	app.Get("/protocolos", ProtocolosHandler(d.Protocolos))
	app.Get("/protocolos/new", NewProtocoloHandler())
	app.Post("/protocolos", CreateProtocoloHandler(d.Protocolos))
	app.Get("/protocolos/:id", ProtocoloDetailHandler(d.Protocolos))
	app.Get("/protocolos/:id/edit", EditProtocoloHandler(d.Protocolos))
	app.Post("/protocolos/:id", UpdateProtocoloHandler(d.Protocolos))

	// Account routes
	app.Get("/register", RegisterFormHandler())
	app.Post("/register", RegisterHandler(d.Accounts))
	app.Get("/login", LoginFormHandler())
	app.Post("/login", LoginHandler(d.Accounts, d.Sessions, d.SecureCookies))
	app.Post("/logout", LogoutHandler(d.Sessions, d.SecureCookies))
	app.Get("/profile", ProfileHandler(d.Dashboard))
	app.Get("/profile/edit", EditProfileHandler())
	app.Post("/profile/edit", UpdateProfileHandler(d.Accounts))

	// Back office
	app.Get("/admin/accounts", PendingAccountsHandler(d.Accounts))
	app.Post("/admin/accounts", AccountActionHandler(d.Accounts))
	app.Post("/admin/ementas", EmentaActionHandler(d.Ementas))

	// JSON API
	api := app.Group("/api")
	api.Get("/ementas", APIEmentasHandler(d.Ementas, d.Logger))
	api.Get("/ementas/:id", APIEmentaHandler(d.Ementas, d.Logger))
	api.Get("/protocolos", APIProtocolosHandler(d.Protocolos, d.Logger))
	api.Get("/dashboard", APIDashboardHandler(d.Dashboard, d.Logger))

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}
	app.Get("/healthz", HealthHandler(d.Ping))

	return app
}

// RequestLogger logs one line per request once the error handler has set
// the final status
func RequestLogger(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		if err := c.Next(); err != nil {
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", c.Response().StatusCode()),
			zap.Duration("latency", time.Since(start)))
		return nil
	}
}

func HealthHandler(ping func(context.Context) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if ping != nil {
			if err := ping(c.UserContext()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

// render writes a component with the given status
func render(c *fiber.Ctx, status int, page templ.Component) error {
	handler := adaptor.HTTPHandler(templ.Handler(page, templ.WithStatus(status)))
	return handler(c)
}

func base(c *fiber.Ctx, title string) templates.Base {
	return templates.Base{Title: title, Viewer: viewerOf(c)}
}

func statusOf(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation:
		return fiber.StatusUnprocessableEntity
	case apperr.CodeNotFound:
		return fiber.StatusNotFound
	case apperr.CodeAccessDenied:
		return fiber.StatusForbidden
	case apperr.CodeDuplicate:
		return fiber.StatusConflict
	case apperr.CodeUnauthorized:
		return fiber.StatusUnauthorized
	default:
		return fiber.StatusInternalServerError
	}
}

// messageOf hides internal failures from the client
func messageOf(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) && e.Code != apperr.CodeInternal {
		return e.Message
	}
	return "Something went wrong. Please try again later."
}

// isFormError reports whether err should re-render the submitted form
func isFormError(err error) bool {
	return apperr.Is(err, apperr.CodeValidation) || apperr.Is(err, apperr.CodeDuplicate)
}

// errorHandler renders service errors as HTML pages. Anonymous requests that
// need a login are sent to the login page instead.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return render(c, fe.Code, templates.Error(templates.ErrorPage{
				Base:    base(c, "Error"),
				Status:  fe.Code,
				Message: fe.Message,
			}))
		}

		status := statusOf(err)
		if status == fiber.StatusUnauthorized && !viewerOf(c).Authenticated {
			return c.Redirect("/login?next=" + url.QueryEscape(c.OriginalURL()))
		}
		if status == fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		return render(c, status, templates.Error(templates.ErrorPage{
			Base:    base(c, "Error"),
			Status:  status,
			Message: messageOf(err),
		}))
	}
}

// apiError writes err as a JSON body
func apiError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	status := statusOf(err)
	if status == fiber.StatusInternalServerError && logger != nil {
		logger.Error("api request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	body := fiber.Map{"error": messageOf(err)}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	return c.Status(status).JSON(body)
}

// safeNext keeps post-login redirects on this site
func safeNext(next string) string {
	if next == "" || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return "/"
	}
	return next
}

func isHTMX(c *fiber.Ctx) bool {
	return c.Get("HX-Request") == "true"
}

// viewerOf returns the viewer resolved by the session middleware
func viewerOf(c *fiber.Ctx) policy.Viewer {
	if v, ok := c.Locals(viewerKey).(policy.Viewer); ok {
		return v
	}
	return policy.Anonymous()
}
