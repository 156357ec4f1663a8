package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Black-And-White-Club/ctf-bot/app/eventbus"
	scoringservice "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/application"
	scoringdb "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories"
	scoringmigrations "github.com/Black-And-White-Club/ctf-bot/app/modules/scoring/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/ctf-bot/integration_tests/containers"
	scoringmetrics "github.com/Black-And-White-Club/ctf-bot/pkg/observability/metrics/scoring"
)

// TestEnvironment holds the containers shared by every test of a package.
type TestEnvironment struct {
	DB      *bun.DB
	NatsURL string

	pgOnce   sync.Once
	pgErr    error
	natsOnce sync.Once
	natsErr  error

	terminate []func(context.Context) error
}

var shared = &TestEnvironment{}

// Shared returns the package-wide environment.
func Shared() *TestEnvironment { return shared }

// Postgres starts the database container on first use and returns a
// migrated, empty database. Tests are skipped under -short or when no
// container runtime is available.
func (env *TestEnvironment) Postgres(t *testing.T) *bun.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	env.pgOnce.Do(func() { env.pgErr = env.setupPostgres() })
	if env.pgErr != nil {
		t.Fatalf("postgres environment: %v", env.pgErr)
	}

	ctx := context.Background()
	if err := TruncateTables(ctx, env.DB); err != nil {
		t.Fatalf("failed to clean tables: %v", err)
	}
	return env.DB
}

// NATS starts the broker container on first use.
func (env *TestEnvironment) NATS(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	env.natsOnce.Do(func() { env.natsErr = env.setupNATS() })
	if env.natsErr != nil {
		t.Fatalf("nats environment: %v", env.natsErr)
	}
	return env.NatsURL
}

func (env *TestEnvironment) setupPostgres() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgContainer, connStr, err := containers.SetupPostgresContainer(ctx)
	if err != nil {
		return err
	}
	env.terminate = append(env.terminate, func(ctx context.Context) error { return pgContainer.Terminate(ctx) })

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connStr)))
	sqldb.SetMaxOpenConns(32)
	env.DB = bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(env.DB, scoringmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (env *TestEnvironment) setupNATS() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	natsContainer, natsURL, err := containers.SetupNatsContainer(ctx)
	if err != nil {
		return err
	}
	env.terminate = append(env.terminate, func(ctx context.Context) error { return natsContainer.Terminate(ctx) })
	env.NatsURL = natsURL
	return nil
}

// Cleanup closes the database and terminates every started container.
func (env *TestEnvironment) Cleanup() {
	if env.DB != nil {
		_ = env.DB.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, terminate := range env.terminate {
		if err := terminate(ctx); err != nil {
			log.Printf("failed to terminate container: %v", err)
		}
	}
}

// TruncateTables empties the scoring tables and resets their sequences.
func TruncateTables(ctx context.Context, db bun.IDB) error {
	_, err := db.ExecContext(ctx, "TRUNCATE TABLE solves, tasks, players, competitions RESTART IDENTITY CASCADE")
	return err
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewService builds a scoring service on db with its own bus.
func NewService(t *testing.T, db *bun.DB) (*scoringservice.ScoringService, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(eventbus.Config{QueueSize: 1024, SubscriberTimeout: 5 * time.Second}, DiscardLogger(), nil)
	t.Cleanup(func() { _ = bus.Close() })

	svc := scoringservice.NewScoringService(
		scoringdb.NewRepository(db),
		bus,
		DiscardLogger(),
		scoringmetrics.NewNoop(),
		noop.NewTracerProvider().Tracer("integration"),
		db,
		scoringservice.Config{LockTimeout: 10 * time.Second, SubmissionTimeout: 20 * time.Second},
	)
	return svc, bus
}
