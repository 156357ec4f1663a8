// Package observability configures logging, tracing and metrics for the process.
package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	eventbusmetrics "github.com/Black-And-White-Club/ctf-bot/pkg/observability/metrics/eventbus"
	scoringmetrics "github.com/Black-And-White-Club/ctf-bot/pkg/observability/metrics/scoring"
)

const serviceName = "ctf-bot"

// Config controls how observability is initialised.
type Config struct {
	Environment  string
	Version      string
	LogLevel     string
	OTLPEndpoint string
}

// Registry provides access to the metrics recorders.
type Registry struct {
	ScoringMetrics  scoringmetrics.ScoringMetrics
	EventBusMetrics eventbusmetrics.EventBusMetrics
	Prometheus      *prometheus.Registry
}

// Provider bundles the process-wide logger, tracer and metrics.
type Provider struct {
	Logger   *slog.Logger
	Tracer   trace.Tracer
	Registry *Registry

	shutdown []func(context.Context) error
}

// Init builds the provider. Tracing is exported only when an OTLP endpoint is set.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	logger := NewLogger(os.Stdout, cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sm, err := scoringmetrics.NewPrometheus(reg)
	if err != nil {
		return nil, err
	}
	em, err := eventbusmetrics.NewPrometheus(reg)
	if err != nil {
		return nil, err
	}

	p := &Provider{
		Logger: logger,
		Registry: &Registry{
			ScoringMetrics:  sm,
			EventBusMetrics: em,
			Prometheus:      reg,
		},
	}

	if cfg.OTLPEndpoint != "" {
		shutdown, err := setupTracing(ctx, cfg)
		if err != nil {
			return nil, err
		}
		p.shutdown = append(p.shutdown, shutdown)
		logger.Info("tracing enabled", slog.String("endpoint", cfg.OTLPEndpoint))
	}
	p.Tracer = otel.Tracer(serviceName)

	return p, nil
}

// Shutdown flushes any pending telemetry.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		errs = append(errs, fn(ctx))
	}
	return errors.Join(errs...)
}

// NewLogger returns a JSON logger outside of development and a text logger inside it.
func NewLogger(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.Environment == "development" || cfg.Environment == "test" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler).With(slog.String("service", serviceName))
	if cfg.Environment != "" {
		logger = logger.With(slog.String("environment", cfg.Environment))
	}
	if cfg.Version != "" {
		logger = logger.With(slog.String("version", cfg.Version))
	}
	return logger
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func setupTracing(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
	if err != nil {
		return nil, err
	}

	attrs := []resource.Option{resource.WithAttributes(semconv.ServiceName(serviceName))}
	if cfg.Version != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.Version)))
	}
	if cfg.Environment != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.DeploymentEnvironment(cfg.Environment)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
