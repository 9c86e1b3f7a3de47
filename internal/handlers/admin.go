package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/acervo/internal/apperr"
	"github.com/jjenkins/acervo/internal/service"
	"github.com/jjenkins/acervo/internal/templates"
)

var accountActions = map[string]string{
	"approve":      "Approved",
	"reject":       "Rejected",
	"verify_email": "E-mail verified",
}

func PendingAccountsHandler(accounts *service.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return renderPending(c, accounts, nil, "")
	}
}

// AccountActionHandler applies a bulk action to the selected accounts and
// shows the pending list again with the outcome
func AccountActionHandler(accounts *service.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		v := viewerOf(c)
		if !v.Authenticated {
			return apperr.Unauthorized("log in to review accounts")
		}

		action := c.FormValue("action")
		label, ok := accountActions[action]
		if !ok {
			return apperr.Validation("action", "unknown action")
		}
		ids, err := formIDs(c)
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		var result *service.BulkResult
		switch action {
		case "approve":
			result, err = accounts.Approve(ctx, v, ids)
		case "reject":
			result, err = accounts.Reject(ctx, v, ids)
		case "verify_email":
			result, err = accounts.VerifyEmails(ctx, v, ids)
		}
		if err != nil {
			return err
		}
		return renderPending(c, accounts, result, label)
	}
}

func renderPending(c *fiber.Ctx, accounts *service.AccountService, result *service.BulkResult, action string) error {
	v := viewerOf(c)
	if !v.Authenticated {
		return apperr.Unauthorized("log in to review accounts")
	}

	pending, err := accounts.PendingAccounts(c.UserContext(), v)
	if err != nil {
		return err
	}

	page := templates.PendingAccounts(templates.PendingAccountsPage{
		Base:    base(c, "Pending accounts"),
		Pending: pending,
		Result:  result,
		Action:  action,
	})
	return render(c, fiber.StatusOK, page)
}
