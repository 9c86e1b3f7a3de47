package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/service"
)

var syncLimit int

var protocolosCmd = &cobra.Command{
	Use:   "protocolos",
	Short: "Protocolo registry operations",
}

var sitacSyncCmd = &cobra.Command{
	Use:   "sitac-sync",
	Short: "Register protocolos with SITAC",
	Long: `Register every protocolo that has no SITAC protocol number yet and store
the number SITAC returns. Requires SITAC_BASE_URL and SITAC_TOKEN.

Examples:
  # Register at most 50 protocolos
  ./acervo protocolos sitac-sync --limit 50`,
	Run: func(cmd *cobra.Command, args []string) {
		e := setup()
		defer e.close()

		if e.cfg.SITACBaseURL == "" {
			e.logger.Fatal("SITAC_BASE_URL is not configured")
		}

		ctx, cancel := interruptible(e.logger)
		defer cancel()

		client := service.NewSITACClient(e.cfg.SITACBaseURL, e.cfg.SITACToken)
		stats, err := e.protocolos.SyncExternalReferences(ctx, client, syncLimit)
		if stats != nil {
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "")
			fmt.Fprintln(w, "=== SITAC Sync Summary ===")
			fmt.Fprintf(w, "Pending:         %d\n", stats.Total)
			fmt.Fprintf(w, "Registered:      %d\n", stats.Registered)
			fmt.Fprintf(w, "Failed:          %d\n", stats.Failed)
		}
		if err != nil {
			e.logger.Error("SITAC sync failed", zap.Error(err))
			os.Exit(1)
		}
		if stats.Failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(protocolosCmd)
	protocolosCmd.AddCommand(sitacSyncCmd)
	sitacSyncCmd.Flags().IntVarP(&syncLimit, "limit", "n", 100, "Maximum number of protocolos to register")
}
