// Package timetableservice boots the HTTP service: configuration, store
// driver selection, upstream client, orchestrator, sweeper and graceful
// shutdown.
package timetableservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/LimoEisbxr/periodix/server/internal/api"
	"github.com/LimoEisbxr/periodix/server/internal/config"
	"github.com/LimoEisbxr/periodix/server/internal/platform/logger"
	"github.com/LimoEisbxr/periodix/server/internal/secrets"
	"github.com/LimoEisbxr/periodix/server/internal/store"
	"github.com/LimoEisbxr/periodix/server/internal/store/postgres"
	"github.com/LimoEisbxr/periodix/server/internal/store/sqlite"
	"github.com/LimoEisbxr/periodix/server/internal/timetable"
	"github.com/LimoEisbxr/periodix/server/internal/untis"
)

// Run starts the timetable service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("periodix-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Dur("cache_ttl", cfg.CacheTTL).
		Bool("prefetch", cfg.PrefetchEnabled).
		Msg("Timetable service starting")

	ctx, stop := newServerContext()
	defer stop()

	st, err := NewStore(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("Store unavailable")
		return err
	}
	defer func() { _ = st.Close() }()

	svc, err := NewService(st, cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build orchestrator")
		return err
	}

	// Exam sweeper runs for the life of the process.
	sweeper := timetable.NewSweeper(svc, timetable.SweeperConfig{
		StartDelay: cfg.SweepStartDelay,
		Interval:   cfg.SweepInterval,
		Lookahead:  cfg.SweepLookahead,
		Pacing:     cfg.SweepPacing,
	}, log)
	go func() { _ = sweeper.Run(ctx) }()

	router := api.NewRouter(svc, st)
	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Err(err).Msg("HTTP server failed")
		return err
	}
}

// NewStore opens the configured store driver. Shared with the operator CLI.
func NewStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case "postgres":
		db, err := postgres.Bootstrap(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return postgres.New(db), nil
	case "sqlite":
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return sqlite.New(db), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
}

// NewService builds the fetch orchestrator on the shared store.
func NewService(st store.Store, cfg *config.Config, log zerolog.Logger) (*timetable.Service, error) {
	dec, err := secrets.NewAESGCM(cfg.CredentialKey)
	if err != nil {
		return nil, fmt.Errorf("credential key: %w", err)
	}
	return timetable.New(st, untis.NewRPCClient(), dec, timetable.Config{
		CacheTTL:        cfg.CacheTTL,
		PruneInterval:   cfg.PruneInterval,
		MaxRecordAge:    cfg.MaxRecordAge,
		HistoryKeep:     cfg.HistoryKeep,
		ClassCacheTTL:   cfg.ClassCacheTTL,
		SweepLookahead:  cfg.SweepLookahead,
		PrefetchEnabled: cfg.PrefetchEnabled,
	}, log), nil
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
