//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tablewright/tablewright/internal/config"
	"github.com/tablewright/tablewright/internal/conn"
	"github.com/tablewright/tablewright/internal/drivers"
	"github.com/tablewright/tablewright/internal/engine"
)

func skipIfNoDocker(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if os.Getenv("TABLEWRIGHT_SKIP_CONTAINERS") != "" {
		t.Skip("skipping: TABLEWRIGHT_SKIP_CONTAINERS set")
	}
}

// mysqlConfig starts a MySQL container and returns a config pointing at it.
func mysqlConfig(t *testing.T) *config.Config {
	t.Helper()
	skipIfNoDocker(t)
	ctx := context.Background()

	c, err := mysql.Run(ctx,
		"mysql:8.4",
		mysql.WithDatabase("tablewright_test"),
		mysql.WithUsername("tw"),
		mysql.WithPassword("tw"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("port: 3306  MySQL Community Server").
				WithStartupTimeout(90*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := c.ConnectionString(ctx, "parseTime=true")
	if err != nil {
		t.Fatal(err)
	}
	return testConfig("mysql", dsn, "")
}

// postgresConfig starts a PostgreSQL container and returns a config
// pointing at it.
func postgresConfig(t *testing.T) *config.Config {
	t.Helper()
	skipIfNoDocker(t)
	ctx := context.Background()

	c, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tablewright_test"),
		postgres.WithUsername("tw"),
		postgres.WithPassword("tw"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := c.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	return testConfig("postgresql", dsn, "public")
}

func testConfig(dialectName, dsn, schemaName string) *config.Config {
	cfg := &config.Config{
		Version: config.CurrentVersion,
		Connection: config.ConnectionConfig{
			Dialect: dialectName,
			DSN:     dsn,
			Schema:  schemaName,
		},
	}
	cfg.Alter.VerifyRowCounts = true
	cfg.Alter.ShadowInfix = "_tw_"
	return cfg
}

// seed runs statements on a fresh connection.
func seed(t *testing.T, cfg *config.Config, stmts ...string) conn.Conn {
	t.Helper()
	ctx := context.Background()
	c, err := drivers.Open(ctx, cfg.Connection)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	for _, stmt := range stmts {
		if _, err := c.Exec(ctx, stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	return c
}

func newEngine(cfg *config.Config) *engine.Engine {
	return engine.New(cfg, nil)
}
