// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package testdb provides the PostgreSQL connection shared by integration
// tests. Tests use the database described by the POSTGRES_* variables and
// are skipped when it is unreachable. With TEST_INTEGRATION set, a
// throwaway PostgreSQL container is started instead of skipping.
package testdb

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"reviewd/internal/database"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// DSN returns the connection string built from the POSTGRES_* variables,
// with defaults matching the development configuration.
func DSN() string {
	host := envOr("POSTGRES_HOST", "localhost")
	port := envOr("POSTGRES_PORT", "5432")
	user := envOr("POSTGRES_USER", "reviewd")
	pass := envOr("POSTGRES_PASSWORD", "changeme")
	name := envOr("POSTGRES_DB", "reviewd")
	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=disable"
}

// Open connects to the test database and applies migrations. A cleanup
// function closing the pool is registered on t.
func Open(t testing.TB) *sql.DB {
	t.Helper()

	db, err := connect(DSN())
	if err != nil {
		if os.Getenv("TEST_INTEGRATION") == "" {
			t.Skipf("skipping integration test: DB not reachable: %v", err)
		}
		dsn, cerr := startContainer()
		if cerr != nil {
			t.Fatalf("start postgres container: %v", cerr)
		}
		if db, err = connect(dsn); err != nil {
			t.Fatalf("connect to postgres container: %v", err)
		}
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// startContainer runs one PostgreSQL container per test binary. It is left
// running until the process exits; ryuk reaps it afterwards.
func startContainer() (string, error) {
	containerOnce.Do(func() {
		ctx := context.Background()
		container, err := postgres.Run(ctx,
			"docker.io/postgres:17-alpine",
			postgres.WithDatabase("reviewd_test"),
			postgres.WithUsername("reviewd"),
			postgres.WithPassword("test-password"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		if err != nil {
			containerErr = err
			return
		}
		containerDSN, containerErr = container.ConnectionString(ctx, "sslmode=disable")
	})
	return containerDSN, containerErr
}
