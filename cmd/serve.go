package cmd

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/handlers"
	"github.com/jjenkins/acervo/internal/session"
)

var port string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Acervo web server",
	Long: `Start the web server for the ementa catalog, the protocolo registry and
the account back office.

The port comes from --port when given, otherwise from APP_PORT.
Logged-out sessions are tracked in Redis when REDIS_URL is set, and in
process memory otherwise.`,
	Run: func(cmd *cobra.Command, args []string) {
		e := setup()
		defer e.close()

		if !cmd.Flags().Changed("port") {
			port = e.cfg.AppPort
		}

		revoked := revocationList(e)
		sessions := session.NewManager(e.cfg.SessionSecret, e.cfg.SessionTTL, revoked)

		app := handlers.NewApp(handlers.Deps{
			Ementas:       e.ementas,
			Protocolos:    e.protocolos,
			Accounts:      e.accounts,
			Dashboard:     e.dashboard,
			Sessions:      sessions,
			Gatherer:      e.registry,
			Ping:          e.db.PingContext,
			Logger:        e.logger,
			SecureCookies: e.cfg.IsProduction(),
		})

		ctx, cancel := interruptible(e.logger)
		defer cancel()
		go func() {
			<-ctx.Done()
			if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
				e.logger.Error("shutdown failed", zap.Error(err))
			}
		}()

		e.logger.Info("starting server", zap.String("port", port), zap.String("env", e.cfg.Env))
		if err := app.Listen(":" + port); err != nil {
			e.logger.Fatal("failed to start server", zap.Error(err))
		}
	},
}

func revocationList(e *env) session.RevocationList {
	if e.cfg.RedisURL == "" {
		return session.NewMemoryRevocationList()
	}

	opts, err := redis.ParseURL(e.cfg.RedisURL)
	if err != nil {
		e.logger.Fatal("invalid REDIS_URL", zap.Error(err))
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		e.logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	return session.NewRedisRevocationList(client)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&port, "port", "p", "8080", "Port to run the server on")
}
