//go:build integration

package containers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	platformpg "github.com/desmedtandreas/companions-app-backend/internal/platform/postgres"
)

// PostgresContainer wraps a testcontainers Postgres instance with the schema
// migrated.
type PostgresContainer struct {
	Container testcontainers.Container
	URL       string
	DB        *sql.DB
}

// NewPostgresContainer starts Postgres, runs all migrations and tears
// everything down with the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("companions_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := platformpg.Connect(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect to postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := platformpg.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	return &PostgresContainer{Container: container, URL: url, DB: db}
}

// TruncateAll empties every table while keeping the schema. Use between
// tests to ensure isolation.
func (p *PostgresContainer) TruncateAll(ctx context.Context) error {
	_, err := p.DB.ExecContext(ctx, `
		TRUNCATE companies, addresses, code_labels,
			annual_accounts, financial_rubrics, persons,
			administrators, administrator_representatives, participations
		CASCADE`)
	return err
}
