package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/model"
	"github.com/jjenkins/acervo/internal/policy"
	"github.com/jjenkins/acervo/internal/service"
)

var (
	newAccount service.NewAccountInput
	grant      struct {
		level            string
		publish          bool
		viewConfidential bool
	}
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Approve, reject and create accounts",
}

// bulkAccountAction is an account operation that takes account IDs
type bulkAccountAction func(ctx context.Context, v policy.Viewer, ids []int64) (*service.BulkResult, error)

func accountActionCmd(use, short, label string, action func(*service.AccountService) bulkAccountAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " USERNAME...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			e := setup()
			defer e.close()

			ctx, cancel := interruptible(e.logger)
			defer cancel()

			if err := runAccountAction(ctx, cmd.OutOrStdout(), e.accounts, args, label, action(e.accounts)); err != nil {
				e.logger.Error("account action failed", zap.String("action", use), zap.Error(err))
				os.Exit(1)
			}
		},
	}
}

// runAccountAction resolves usernames and applies the action to each
// account in turn, reporting the ones it could not find
func runAccountAction(ctx context.Context, w io.Writer, accounts *service.AccountService, usernames []string, label string, action bulkAccountAction) error {
	ids, unknown, err := accounts.AccountIDs(ctx, usernames)
	if err != nil {
		return err
	}

	result := &service.BulkResult{}
	if len(ids) > 0 {
		result, err = action(ctx, service.CommandLine(), ids)
		if err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "%s: %d account(s)\n", label, result.Updated)
	if len(unknown) > 0 {
		fmt.Fprintf(w, "Unknown usernames: %s\n", strings.Join(unknown, ", "))
	}
	if len(result.Missing) > 0 {
		fmt.Fprintf(w, "Accounts without a profile (IDs): %s\n", strings.Join(result.Missing, ", "))
	}
	return nil
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account without a professional profile",
	Long: `Create an active account, typically a staff account for the back office.

Example:
  ./acervo accounts create --username admin --email admin@example.org --password '...' --staff`,
	Run: func(cmd *cobra.Command, args []string) {
		e := setup()
		defer e.close()

		account, err := e.accounts.CreateAccount(context.Background(), newAccount)
		if err != nil {
			e.logger.Fatal("failed to create account", zap.Error(err))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created account %s (ID %d, staff=%t)\n", account.Username, account.ID, account.IsStaff)
	},
}

var accountsGrantCmd = &cobra.Command{
	Use:   "grant USERNAME...",
	Short: "Set the permission level and rights of accounts",
	Long: `Set the permission level and the publish and confidential-view rights.
Rights only take effect once the account is approved and its e-mail verified.

Example:
  ./acervo accounts grant --level publisher --publish maria joao`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := setup()
		defer e.close()

		ctx, cancel := interruptible(e.logger)
		defer cancel()

		rights := service.Rights{
			Level:            model.PermissionLevel(grant.level),
			Publish:          grant.publish,
			ViewConfidential: grant.viewConfidential,
		}
		err := runAccountAction(ctx, cmd.OutOrStdout(), e.accounts, args, "Granted",
			func(ctx context.Context, v policy.Viewer, ids []int64) (*service.BulkResult, error) {
				return e.accounts.GrantRights(ctx, v, ids, rights)
			})
		if err != nil {
			e.logger.Error("grant failed", zap.Error(err))
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd)

	accountsCmd.AddCommand(
		accountActionCmd("approve", "Approve accounts waiting for review", "Approved",
			func(s *service.AccountService) bulkAccountAction { return s.Approve }),
		accountActionCmd("reject", "Withdraw the approval of accounts", "Rejected",
			func(s *service.AccountService) bulkAccountAction { return s.Reject }),
		accountActionCmd("verify-email", "Mark the e-mail of accounts as verified", "Verified",
			func(s *service.AccountService) bulkAccountAction { return s.VerifyEmails }),
		accountsCreateCmd,
		accountsGrantCmd,
	)

	accountsCreateCmd.Flags().StringVar(&newAccount.Username, "username", "", "Login name")
	accountsCreateCmd.Flags().StringVar(&newAccount.Email, "email", "", "E-mail address")
	accountsCreateCmd.Flags().StringVar(&newAccount.Password, "password", "", "Password (at least 8 characters)")
	accountsCreateCmd.Flags().StringVar(&newAccount.FirstName, "first-name", "", "First name")
	accountsCreateCmd.Flags().StringVar(&newAccount.LastName, "last-name", "", "Last name")
	accountsCreateCmd.Flags().BoolVar(&newAccount.Staff, "staff", false, "Give back-office access")
	_ = accountsCreateCmd.MarkFlagRequired("username")
	_ = accountsCreateCmd.MarkFlagRequired("email")
	_ = accountsCreateCmd.MarkFlagRequired("password")

	accountsGrantCmd.Flags().StringVar(&grant.level, "level", string(model.PermissionViewer), "Permission level: viewer, editor, publisher or admin")
	accountsGrantCmd.Flags().BoolVar(&grant.publish, "publish", false, "Allow creating and editing ementas")
	accountsGrantCmd.Flags().BoolVar(&grant.viewConfidential, "view-confidential", false, "Allow reading confidential ementas")
}
