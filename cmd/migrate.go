package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database tables",
	Long:  `Apply the schema. Tables and indexes that already exist are left alone, so running it twice is harmless.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := setup()
		defer e.close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		if err := store.Migrate(ctx, e.db); err != nil {
			e.logger.Fatal("migration failed", zap.Error(err))
		}
		e.logger.Info("schema is up to date")
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
