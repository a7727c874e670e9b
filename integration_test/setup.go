//go:build integration

// Package integration_test runs the codegen service end to end against real
// counter stores. Two services sharing one backend stand in for two replicas.
package integration_test

import (
	"database/sql"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stvp/tempredis"

	"github.com/getpup/codegen/pkg/codegen"
	"github.com/getpup/codegen/store/sqlstore"
)

// backend opens a fresh counter store and returns the option that selects it.
// Every call returns an option for the same underlying data.
type backend struct {
	name  string
	open  func(t *testing.T) func() codegen.Option
	cache bool
}

var backends = []backend{
	{name: "sqlite", open: openSQLite},
	{name: "postgres", open: openPostgres},
	{name: "redis", open: openRedis, cache: true},
}

func openSQLite(t *testing.T) func() codegen.Option {
	t.Helper()

	// One file database shared by both services.
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "codegen.db")+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := codegen.RunMigrations(db, sqlstore.SQLite); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	return func() codegen.Option {
		return codegen.WithDatabase(db, sqlstore.SQLite)
	}
}

// openPostgres reads the DATABASE_URL environment variable and skips the test if not set.
func openPostgres(t *testing.T) func() codegen.Option {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := db.Ping(); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	tables := sqlstore.DefaultTableConfig()
	if _, err := db.Exec(sqlstore.MigrationDown(tables)); err != nil {
		t.Fatalf("failed to drop tables: %v", err)
	}
	if err := codegen.RunMigrations(db, sqlstore.Postgres); err != nil {
		t.Fatalf("failed to create tables: %v", err)
	}
	return func() codegen.Option {
		return codegen.WithDatabase(db, sqlstore.Postgres)
	}
}

// openRedis starts a throwaway redis-server and skips the test if none is installed.
func openRedis(t *testing.T) func() codegen.Option {
	t.Helper()

	if _, err := exec.LookPath("redis-server"); err != nil {
		t.Skip("redis-server not available")
	}
	server, err := tempredis.Start(tempredis.Config{})
	if err != nil {
		t.Fatalf("failed to start redis: %v", err)
	}
	t.Cleanup(func() {
		_ = server.Term()
	})

	client := redis.NewClient(&redis.Options{Network: "unix", Addr: server.Socket()})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return func() codegen.Option {
		return codegen.WithRedis(client)
	}
}
