package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/service"
)

var ementasCmd = &cobra.Command{
	Use:   "ementas",
	Short: "Bulk ementa operations",
}

func confidentialityCmd(use, short string, confidential bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ids, err := parseIDs(args)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				os.Exit(2)
			}

			e := setup()
			defer e.close()

			ctx, cancel := interruptible(e.logger)
			defer cancel()

			result, err := e.ementas.SetConfidential(ctx, ids, confidential)
			if result != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Updated: %d ementa(s)\n", result.Updated)
				if len(result.Missing) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Not found: %s\n", strings.Join(result.Missing, ", "))
				}
			}
			if err != nil {
				e.logger.Error("confidentiality change failed", zap.Error(err))
				os.Exit(1)
			}
		},
	}
}

var ementasImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import ementas from a CSV file",
	Long: `Import reads ementas from a CSV file with a header row and stores each
valid row through the same checks as the web form: confidential rows are
stored without summary or attachment.

Recognized columns: number, title, type, status, summary, extended_summary,
publication_date (YYYY-MM-DD or DD/MM/YYYY), published, confidential.
At least a number or a title column is required.

Examples:
  # Import a spreadsheet export
  ./acervo ementas import ementas.csv`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e := setup()
		defer e.close()

		ctx, cancel := interruptible(e.logger)
		defer cancel()

		f, err := os.Open(args[0])
		if err != nil {
			e.logger.Fatal("failed to open import file", zap.Error(err))
		}
		defer f.Close()

		importer := service.NewImporter(service.NewParser(), e.ementas, e.logger)
		e.logger.Info("starting import", zap.String("file", args[0]))

		stats, err := importer.Import(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				e.logger.Warn("import cancelled")
				if stats != nil {
					importer.PrintSummary(cmd.OutOrStdout(), stats)
				}
				os.Exit(1)
			}
			e.logger.Fatal("import failed", zap.Error(err))
		}
		importer.PrintSummary(cmd.OutOrStdout(), stats)

		// Exit with error code if there were failures
		if stats.Failed > 0 {
			os.Exit(1)
		}
	},
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid ementa ID %q", part)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func init() {
	rootCmd.AddCommand(ementasCmd)
	ementasCmd.AddCommand(
		confidentialityCmd("mark-confidential", "Mark ementas as confidential, discarding their content", true),
		confidentialityCmd("unmark-confidential", "Make ementas public again", false),
		ementasImportCmd,
	)
}
