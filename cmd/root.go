package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "acervo",
	Short: "Ementa catalog and document protocol registry",
	Long: `Acervo publishes the ementas of normative acts, records where submitted
documents are stored, and runs the account approval workflow.

Configuration is read from config.yaml (in . or ./config) and the
environment; see "acervo serve --help".`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
