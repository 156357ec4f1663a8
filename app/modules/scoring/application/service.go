package scoringservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/go-playground/validator/v10"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
	"github.com/Black-And-White-Club/ctf-bot/pkg/observability/attr"
	scoringmetrics "github.com/Black-And-White-Club/ctf-bot/pkg/observability/metrics/scoring"
	"github.com/Black-And-White-Club/ctf-bot/pkg/results"
	scoringtypes "github.com/Black-And-White-Club/ctf-bot/pkg/types/scoring"
)

const serviceName = "ScoringService"

// Config bounds the flag submission critical section.
type Config struct {
	// LockTimeout is how long a submission waits for the submission lock.
	LockTimeout time.Duration
	// SubmissionTimeout bounds the submission transaction.
	SubmissionTimeout time.Duration
}

const (
	defaultLockTimeout       = 5 * time.Second
	defaultSubmissionTimeout = 10 * time.Second
)

// ScoringService implements the Service interface.
type ScoringService struct {
	repo     scoringdb.Repository
	bus      *eventbus.Bus
	logger   *slog.Logger
	metrics  scoringmetrics.ScoringMetrics
	tracer   trace.Tracer
	db       *bun.DB
	cfg      Config
	cache    *PriceCache
	lock     *semaphore.Weighted
	validate *validator.Validate
}

// NewScoringService creates a new ScoringService. A nil db runs every
// operation directly against repo without a transaction.
func NewScoringService(
	repo scoringdb.Repository,
	bus *eventbus.Bus,
	logger *slog.Logger,
	metrics scoringmetrics.ScoringMetrics,
	tracer trace.Tracer,
	db *bun.DB,
	cfg Config,
) *ScoringService {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = scoringmetrics.NewNoop()
	}
	if bus == nil {
		bus = eventbus.New(eventbus.Config{}, logger, nil)
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if cfg.SubmissionTimeout <= 0 {
		cfg.SubmissionTimeout = defaultSubmissionTimeout
	}

	s := &ScoringService{
		repo:     repo,
		bus:      bus,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		db:       db,
		cfg:      cfg,
		lock:     semaphore.NewWeighted(1),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	s.cache = NewPriceCache(func(ctx context.Context, taskID int64) (int, error) {
		return repo.CountSolves(ctx, nil, taskID)
	}, metrics)
	return s
}

// PriceCache exposes the task price cache.
func (s *ScoringService) PriceCache() *PriceCache { return s.cache }

// publish broadcasts events once their transaction has committed. The
// mutation already happened, so a failure is logged rather than returned.
func (s *ScoringService) publish(ctx context.Context, events ...scoringtypes.DbEvent) {
	if len(events) == 0 {
		return
	}
	correlationID := attr.CorrelationIDFromContext(ctx)
	msgs := make([]*message.Message, 0, len(events))
	for _, evt := range events {
		msg, err := scoringtypes.NewMessage(evt, correlationID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to encode event", attr.ExtractCorrelationID(ctx), attr.Error(err))
			continue
		}
		msgs = append(msgs, msg)
	}
	if err := s.bus.Publish(scoringtypes.EventsTopic, msgs...); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish events",
			attr.ExtractCorrelationID(ctx),
			attr.Int("events", len(msgs)),
			attr.Error(err),
		)
	}
}

// validateStruct runs struct validation and flattens the result into ErrValidation.
func (s *ScoringService) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", strings.ToLower(fe.Field()), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, ", "))
}

// finish converts an operation result into the public (value, error) shape.
// Infrastructure errors become ErrStorage unless they already carry a more
// specific fault.
func finish[S any](result results.OperationResult[S, error], err error) (S, error) {
	var zero S
	if err != nil {
		if errors.Is(err, ErrConcurrencyTimeout) || errors.Is(err, context.Canceled) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if result.IsFailure() {
		return zero, *result.Failure
	}
	if result.Success == nil {
		return zero, ErrStorage
	}
	return *result.Success, nil
}

// -----------------------------------------------------------------------------
// Generic Helpers (Defined as functions because methods cannot have type params)
// -----------------------------------------------------------------------------

// operationFunc is the generic signature for service operation functions.
type operationFunc[S any, F any] func(ctx context.Context) (results.OperationResult[S, F], error)

// withTelemetry wraps a service operation with tracing, metrics, and panic recovery.
func withTelemetry[S any, F any](
	s *ScoringService,
	ctx context.Context,
	operationName string,
	identifier string,
	op operationFunc[S, F],
) (result results.OperationResult[S, F], err error) {
	var span trace.Span
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operationName, trace.WithAttributes(
			attribute.String("operation", operationName),
			attribute.String("identifier", identifier),
		))
	} else {
		span = trace.SpanFromContext(ctx)
	}
	defer span.End()

	s.metrics.RecordOperationAttempt(ctx, operationName, serviceName)

	startTime := time.Now()
	defer func() {
		s.metrics.RecordOperationDuration(ctx, operationName, serviceName, time.Since(startTime))
	}()

	s.logger.DebugContext(ctx, "Operation triggered", attr.ExtractCorrelationID(ctx), attr.String("operation", operationName))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", operationName, r)
			s.logger.ErrorContext(ctx, "Critical panic recovered",
				attr.ExtractCorrelationID(ctx),
				attr.String("identifier", identifier),
				attr.Error(err),
			)
			s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
			span.RecordError(err)
			result = results.OperationResult[S, F]{}
		}
	}()

	result, err = op(ctx)

	// Infrastructure error
	if err != nil {
		wrappedErr := fmt.Errorf("%s: %w", operationName, err)
		s.logger.ErrorContext(ctx, "Operation failed with error",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Error(wrappedErr),
		)
		s.metrics.RecordOperationFailure(ctx, operationName, serviceName)
		span.RecordError(wrappedErr)
		return result, wrappedErr
	}

	// Domain failure
	if result.IsFailure() {
		s.logger.WarnContext(ctx, "Operation returned failure result",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
			attr.Any("failure_payload", *result.Failure),
		)
	}

	if result.IsSuccess() {
		s.logger.DebugContext(ctx, "Operation completed successfully",
			attr.ExtractCorrelationID(ctx),
			attr.String("operation", operationName),
			attr.String("identifier", identifier),
		)
	}

	s.metrics.RecordOperationSuccess(ctx, operationName, serviceName)
	return result, nil
}

// runInTx ensures the operation runs within a transaction.
func runInTx[S any, F any](
	s *ScoringService,
	ctx context.Context,
	fn func(ctx context.Context, db bun.IDB) (results.OperationResult[S, F], error),
) (results.OperationResult[S, F], error) {
	if s.db == nil {
		return fn(ctx, nil)
	}

	var result results.OperationResult[S, F]
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		var txErr error
		result, txErr = fn(ctx, tx)
		return txErr
	})
	return result, err
}
