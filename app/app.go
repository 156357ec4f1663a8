package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"golang.org/x/sync/errgroup"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	"github.com/Black-And-White-Club/ctf-bot/app/modules/scoring"
	scoringhandlers "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/handlers"
	"github.com/Black-And-White-Club/ctf-bot/config"
	"github.com/Black-And-White-Club/ctf-bot/pkg/observability"
)

const shutdownTimeout = 10 * time.Second

// App holds the process-wide components.
type App struct {
	Config        *config.Config
	Observability *observability.Provider
	DB            *bun.DB
	EventBus      *eventbus.Bus
	ScoringModule *scoring.Module

	publisher     message.Publisher
	server        *http.Server
	metricsServer *http.Server
	logger        *slog.Logger
}

// NewApp initializes the application with the necessary services and configuration.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	obs, err := observability.Init(ctx, observability.Config{
		Environment:  cfg.Observability.Environment,
		Version:      cfg.Observability.Version,
		LogLevel:     cfg.Observability.LogLevel,
		OTLPEndpoint: cfg.Observability.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	db, err := openDB(ctx, cfg.Postgres.DSN)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	logger.Info("Database connection established")

	bus := eventbus.New(eventbus.Config{
		QueueSize:         cfg.Scoring.SubscriberQueueSize,
		SubscriberTimeout: cfg.Scoring.SubscriberTimeout,
	}, logger, obs.Registry.EventBusMetrics)

	app := &App{
		Config:        cfg,
		Observability: obs,
		DB:            db,
		EventBus:      bus,
		logger:        logger,
	}

	if cfg.NATS.RelayEnabled {
		publisher, err := eventbus.NewNATSPublisher(ctx, eventbus.NATSConfig{
			URL:      cfg.NATS.URL,
			Stream:   cfg.NATS.Stream,
			Subjects: []string{cfg.NATS.SubjectPrefix + ".>"},
		}, logger)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to create NATS publisher: %w", err)
		}
		app.publisher = publisher
		logger.Info("NATS relay enabled", slog.String("url", cfg.NATS.URL))
	}

	module, err := scoring.NewScoringModule(cfg, obs, db, bus, app.publisher)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize scoring module: %w", err)
	}
	app.ScoringModule = module

	app.server = &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           app.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if cfg.Observability.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(obs.Registry.Prometheus, promhttp.HandlerOpts{}))
		app.metricsServer = &http.Server{
			Addr:              cfg.Observability.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return app, nil
}

func openDB(ctx context.Context, dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// Router builds the HTTP handler. /metrics is served here too unless a
// dedicated metrics address is configured.
func (app *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		scoringhandlers.CorrelationIDMiddleware,
		middleware.Recoverer,
	)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := app.DB.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	if app.Config.Observability.MetricsAddress == "" {
		r.Handle("/metrics", promhttp.HandlerFor(app.Observability.Registry.Prometheus, promhttp.HandlerOpts{}))
	}

	app.ScoringModule.RegisterRoutes(r)
	return r
}

// Run serves until ctx is cancelled or a component fails, then shuts
// everything down.
func (app *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.ScoringModule.Run(gctx)
	})

	g.Go(func() error {
		app.logger.Info("Starting HTTP server", slog.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if app.metricsServer != nil {
		g.Go(func() error {
			app.logger.Info("Starting metrics server", slog.String("address", app.metricsServer.Addr))
			if err := app.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("Shutting down HTTP servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Shutdown does not track hijacked connections; closing the bus
		// ends every websocket feed.
		_ = app.EventBus.Close()

		err := app.server.Shutdown(shutdownCtx)
		if app.metricsServer != nil {
			err = errors.Join(err, app.metricsServer.Shutdown(shutdownCtx))
		}
		_ = app.ScoringModule.Close()
		return err
	})

	return g.Wait()
}

// Close releases the bus, broker connection, database and telemetry.
func (app *App) Close() {
	if app.EventBus != nil {
		if err := app.EventBus.Close(); err != nil {
			app.logger.Warn("Error closing event bus", slog.Any("error", err))
		}
	}
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Warn("Error closing NATS publisher", slog.Any("error", err))
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.logger.Warn("Error closing database", slog.Any("error", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.Observability.Shutdown(ctx); err != nil {
		app.logger.Warn("Error shutting down telemetry", slog.Any("error", err))
	}
}
