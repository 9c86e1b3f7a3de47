package cmd

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/jjenkins/acervo/internal/blob"
	"github.com/jjenkins/acervo/internal/config"
	"github.com/jjenkins/acervo/internal/logging"
	"github.com/jjenkins/acervo/internal/metrics"
	"github.com/jjenkins/acervo/internal/service"
	"github.com/jjenkins/acervo/internal/store"
)

// env is what every command runs against
type env struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sql.DB
	registry *prometheus.Registry
	blobs    *blob.Store

	ementas    *service.EmentaService
	protocolos *service.ProtocoloService
	accounts   *service.AccountService
	dashboard  *service.DashboardService
}

// setup loads the configuration and connects to the database. Failures are
// fatal: commands cannot do anything without either.
func setup() *env {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Debug("connecting to database")
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}

	blobs, err := blob.NewDiskStore(cfg.MediaRoot)
	if err != nil {
		logger.Fatal("failed to open media root", zap.String("media_root", cfg.MediaRoot), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize stores
	ementaStore := store.NewEmentaStore(db)
	protocoloStore := store.NewProtocoloStore(db)
	accountStore := store.NewAccountStore(db)
	profileStore := store.NewProfileStore(db)

	return &env{
		cfg:        cfg,
		logger:     logger,
		db:         db,
		registry:   registry,
		blobs:      blobs,
		ementas:    service.NewEmentaService(ementaStore, blobs, m, logger),
		protocolos: service.NewProtocoloService(protocoloStore, m, logger),
		accounts:   service.NewAccountService(accountStore, profileStore, blobs, m, logger),
		dashboard:  service.NewDashboardService(ementaStore, accountStore),
	}
}

func (e *env) close() {
	e.db.Close()
	_ = e.logger.Sync()
}

// interruptible returns a context cancelled on SIGINT or SIGTERM
func interruptible(logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			logger.Warn("received interrupt signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
