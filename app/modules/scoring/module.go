package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-chi/chi/v5"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	scoringservice "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/application"
	scoringhandlers "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/handlers"
	scoringrelay "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/relay"
	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
	scoringrouter "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/router"
	"github.com/Black-And-White-Club/ctf-bot/config"
	"github.com/Black-And-White-Club/ctf-bot/pkg/observability"
)

// Module represents the scoring module.
type Module struct {
	Service  scoringservice.Service
	Handlers scoringhandlers.Handlers
	relay    *scoringrelay.Relay
	logger   *slog.Logger
	tracer   trace.Tracer
	config   *config.Config

	cancelFunc context.CancelFunc
	mu         sync.Mutex
}

// NewScoringModule wires the scoring repository, service and handlers.
// publisher may be nil, in which case no events leave the process.
func NewScoringModule(
	cfg *config.Config,
	obs *observability.Provider,
	db *bun.DB,
	bus *eventbus.Bus,
	publisher message.Publisher,
) (*Module, error) {
	if cfg == nil || obs == nil || db == nil || bus == nil {
		return nil, fmt.Errorf("scoring module requires config, observability, database and event bus")
	}

	logger := obs.Logger.With(slog.String("module", "scoring"))
	logger.Info("scoring.NewScoringModule called")

	service := scoringservice.NewScoringService(
		scoringdb.NewRepository(db),
		bus,
		logger,
		obs.Registry.ScoringMetrics,
		obs.Tracer,
		db,
		scoringservice.Config{
			LockTimeout:       cfg.Scoring.LockTimeout,
			SubmissionTimeout: cfg.Scoring.SubmissionTimeout,
		},
	)

	var limiter *scoringhandlers.KeyedRateLimiter
	if cfg.Scoring.SubmissionRate > 0 {
		limiter = scoringhandlers.NewKeyedRateLimiter(rate.Limit(cfg.Scoring.SubmissionRate), cfg.Scoring.SubmissionBurst)
	}

	handlers := scoringhandlers.NewScoringHandlers(service, logger, obs.Tracer, limiter, cfg.HTTP.AllowedOrigins)

	m := &Module{
		Service:  service,
		Handlers: handlers,
		logger:   logger,
		tracer:   obs.Tracer,
		config:   cfg,
	}

	if publisher != nil {
		m.relay = scoringrelay.New(service, publisher, cfg.NATS.SubjectPrefix, logger, obs.Registry.EventBusMetrics, obs.Tracer)
	}

	return m, nil
}

// RegisterRoutes mounts the scoring API on r.
func (m *Module) RegisterRoutes(r chi.Router) {
	scoringrouter.Register(r, m.Handlers, m.config.HTTP.AllowedOrigins)
}

// Run blocks until ctx is cancelled or Close is called. When a relay is
// configured it runs for the lifetime of the module.
func (m *Module) Run(ctx context.Context) error {
	m.logger.Info("Starting scoring module")

	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancelFunc = cancel
	m.mu.Unlock()
	defer cancel()

	if m.relay != nil {
		if err := m.relay.Run(ctx); err != nil && ctx.Err() == nil {
			return fmt.Errorf("scoring relay stopped: %w", err)
		}
		m.logger.Info("Scoring module stopped")
		return nil
	}

	<-ctx.Done()
	m.logger.Info("Scoring module stopped")
	return nil
}

// Close stops Run.
func (m *Module) Close() error {
	m.logger.Info("Stopping scoring module")

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelFunc != nil {
		m.cancelFunc()
	}
	return nil
}
