package containers

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	// Driver for the readiness probe.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// SetupPostgresContainer starts a Postgres testcontainer and returns the container and connection string.
func SetupPostgresContainer(ctx context.Context) (*postgres.PostgresContainer, string, error) {
	dbName := "ctf"
	user := "ctf"
	password := "ctf"

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(user),
		postgres.WithPassword(password),
		testcontainers.WithWaitStrategy(
			wait.ForSQL("5432/tcp", "pgx",
				func(host string, port nat.Port) string {
					return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
						user, password, host, port.Port(), dbName)
				},
			).WithStartupTimeout(45*time.Second),
		),
	)
	if err != nil {
		if pgContainer != nil {
			_ = pgContainer.Terminate(ctx)
		}
		return nil, "", fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to get postgres connection string: %w", err)
	}

	parsedURL, err := url.Parse(connStr)
	if err != nil {
		_ = pgContainer.Terminate(ctx)
		return nil, "", fmt.Errorf("failed to parse connection string: %w", err)
	}
	query := parsedURL.Query()
	query.Set("sslmode", "disable")
	parsedURL.RawQuery = query.Encode()

	log.Println("Postgres container started and ready.")
	return pgContainer, parsedURL.String(), nil
}
