package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/example/church-agenda/internal/application"
	"github.com/example/church-agenda/internal/auth"
	"github.com/example/church-agenda/internal/config"
	httptransport "github.com/example/church-agenda/internal/http"
	"github.com/example/church-agenda/internal/logging"
	"github.com/example/church-agenda/internal/persistence/sqlite"
	"github.com/example/church-agenda/internal/provider/ics"
	"github.com/example/church-agenda/internal/surface"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the calendar HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireAPITokens(); err != nil {
				return err
			}
			logger := logging.New(cmd.OutOrStdout(), cfg.LogLevel)

			srv, err := newServer(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := srv.Close(); cerr != nil {
					logger.Error("failed to close storage", "error", cerr)
				}
			}()
			return srv.Run(cmd.Context())
		},
	}
}

// server is the wired agenda service.
type server struct {
	cfg     config.Config
	logger  *slog.Logger
	pool    *sqlite.ConnectionPool
	views   *surface.Manager
	reaper  *cron.Cron
	handler http.Handler
}

func newServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*server, error) {
	dbConfig := sqlite.DefaultConfig(cfg.SQLiteDSN)
	dbConfig.Location = cfg.Location
	pool, err := sqlite.NewConnectionPool(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if err := pool.Migrate(ctx, logger); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	directory, err := auth.NewTokenDirectory(cfg.APITokens, logger)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}

	store := newEventStoreAdapter(sqlite.NewEventRepository(pool))
	provider := newProvider(cfg, logger)
	palette := application.DefaultPalette().WithCategories(cfg.Categories)

	engine := application.NewEngine(store, provider, palette, logger)
	coordinator := application.NewCoordinator(engine, uuid.NewString, logger, application.WithLocation(cfg.Location))
	projection := application.NewPublicProjection(engine, cfg.CalendarName, cfg.PublicDomain, time.Now, logger)
	views := surface.NewManager(coordinator,
		surface.WithIdleTTL(cfg.ViewIdleTTL),
		surface.WithLogger(logger),
	)

	reaper := cron.New()
	if _, err := reaper.AddFunc(cfg.ViewReapSchedule, func() { views.Reap(time.Now()) }); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("schedule view reaper: %w", err)
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Calendar:   httptransport.NewCalendarHandler(views, logger),
		Public:     httptransport.NewPublicHandler(projection, logger),
		Auth:       httptransport.RequireToken(directory, logger),
		Health:     pool.Ping,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})

	return &server{
		cfg:     cfg,
		logger:  logger,
		pool:    pool,
		views:   views,
		reaper:  reaper,
		handler: handler,
	}, nil
}

func newProvider(cfg config.Config, logger *slog.Logger) *ics.Provider {
	return ics.NewProvider(ics.Config{
		Sources:    toICSSources(cfg.ICSSources),
		Timeout:    cfg.ICSTimeout,
		PastDays:   cfg.ICSPastDays,
		FutureDays: cfg.ICSFutureDays,
		Location:   cfg.Location,
	}, ics.NewFetcher(&http.Client{Timeout: cfg.ICSTimeout}), time.Now, logger)
}

// Run serves until ctx is cancelled.
func (s *server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.HTTPPort),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.reaper.Start()
	defer func() { <-s.reaper.Stop().Done() }()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("failed to shutdown server", "error", err)
		}
	}()

	s.logger.Info("agenda API listening",
		"addr", httpServer.Addr,
		"ics_sources", len(s.cfg.ICSSources),
		"actors", len(s.cfg.APITokens),
		"timezone", s.cfg.Location.String())
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *server) Close() error {
	return s.pool.Close()
}
