package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/service"
	"github.com/jjenkins/acervo/internal/session"
	"github.com/jjenkins/acervo/internal/templates"
)

const registeredFlash = "Registration received. An administrator will review your account before you can publish."

func RegisterFormHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		page := templates.Register(templates.RegisterPage{
			Base:  base(c, "Register"),
			Input: service.RegistrationInput{ProfileInput: service.ProfileInputFrom(nil)},
		})
		return render(c, fiber.StatusOK, page)
	}
}

func RegisterHandler(accounts *service.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var files uploads
		defer files.close()

		in := service.RegistrationInput{
			Username:        c.FormValue("username"),
			FirstName:       c.FormValue("first_name"),
			LastName:        c.FormValue("last_name"),
			Email:           c.FormValue("email"),
			Password:        c.FormValue("password"),
			PasswordConfirm: c.FormValue("password_confirm"),
			AcceptTerms:     checked(c, "accept_terms"),
		}
		profile, err := profileInput(c, &files)
		in.ProfileInput = profile
		if err == nil {
			_, err = accounts.Register(c.UserContext(), in)
			if err == nil {
				return c.Redirect("/login?registered=1")
			}
		}
		if !isFormError(err) {
			return err
		}

		// never echo passwords back
		in.Password, in.PasswordConfirm = "", ""
		page := templates.Register(templates.RegisterPage{
			Base:   base(c, "Register"),
			Input:  in,
			Errors: apperr.FieldsOf(err),
		})
		return render(c, statusOf(err), page)
	}
}

func LoginFormHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		b := base(c, "Log in")
		if c.Query("registered") != "" {
			b.Flash = registeredFlash
		}
		page := templates.Login(templates.LoginPage{
			Base: b,
			Next: c.Query("next"),
		})
		return render(c, fiber.StatusOK, page)
	}
}

func LoginHandler(accounts *service.AccountService, sessions *session.Manager, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		username := strings.TrimSpace(c.FormValue("username"))
		next := c.FormValue("next")

		account, err := accounts.Authenticate(c.UserContext(), username, c.FormValue("password"))
		if apperr.Is(err, apperr.CodeUnauthorized) {
			page := templates.Login(templates.LoginPage{
				Base:     base(c, "Log in"),
				Username: username,
				Next:     next,
				Error:    messageOf(err),
			})
			return render(c, fiber.StatusUnauthorized, page)
		}
		if err != nil {
			return err
		}

		token, err := sessions.Issue(account.ID, account.Username)
		if err != nil {
			return err
		}
		setSessionCookie(c, token, sessions.TTL(), secure)
		return c.Redirect(safeNext(next))
	}
}

// LogoutHandler revokes the current token so a copied cookie stops working
func LogoutHandler(sessions *session.Manager, secure bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if claims := claimsOf(c); claims != nil {
			if err := sessions.Revoke(c.UserContext(), claims); err != nil {
				return err
			}
		}
		clearSessionCookie(c, secure)
		return c.Redirect("/")
	}
}

func ProfileHandler(dashboard *service.DashboardService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		overview, err := dashboard.ProfileOverview(c.UserContext(), viewerOf(c))
		if err != nil {
			return err
		}
		page := templates.Profile(templates.ProfilePage{
			Base:     base(c, "Profile"),
			Overview: overview,
		})
		return render(c, fiber.StatusOK, page)
	}
}

func EditProfileHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := viewerOf(c)
		if !v.Authenticated {
			return apperr.Unauthorized("log in to edit your profile")
		}
		page := templates.ProfileForm(templates.ProfileFormPage{
			Base:  base(c, "Edit profile"),
			Input: service.ProfileInputFrom(v.Profile),
		})
		return render(c, fiber.StatusOK, page)
	}
}

func UpdateProfileHandler(accounts *service.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var files uploads
		defer files.close()

		in, err := profileInput(c, &files)
		if err == nil {
			_, err = accounts.UpdateProfile(c.UserContext(), viewerOf(c), in)
			if err == nil {
				return c.Redirect("/profile")
			}
		}
		if !isFormError(err) {
			return err
		}

		page := templates.ProfileForm(templates.ProfileFormPage{
			Base:   base(c, "Edit profile"),
			Input:  in,
			Errors: apperr.FieldsOf(err),
		})
		return render(c, statusOf(err), page)
	}
}

func profileInput(c *fiber.Ctx, files *uploads) (service.ProfileInput, error) {
	in := service.ProfileInput{
		CPF:                      c.FormValue("cpf"),
		Phone:                    c.FormValue("phone"),
		UserType:                 model.UserType(c.FormValue("user_type")),
		ProfessionalRegistration: c.FormValue("professional_registration"),
		Company:                  c.FormValue("company"),
		JobTitle:                 c.FormValue("job_title"),
	}

	var err error
	if in.IdentityDocument, err = files.get(c, "identity_document"); err != nil {
		return in, err
	}
	if in.ProofOfResidence, err = files.get(c, "proof_of_residence"); err != nil {
		return in, err
	}
	if in.Diploma, err = files.get(c, "diploma"); err != nil {
		return in, err
	}
	return in, nil
}
