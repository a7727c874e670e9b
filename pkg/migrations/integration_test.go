//go:build integration

package migrations_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/getpup/codegen/pkg/migrations"
	"github.com/getpup/codegen/store/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// applyAndUse applies the generated migration and checks the store can count
// against the resulting table.
func applyAndUse(t *testing.T, db *sql.DB, dialect sqlstore.Dialect, config migrations.Config) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, migrations.Generate(dialect, &config))
	migrationSQL, err := os.ReadFile(filepath.Join(config.OutputFolder, config.OutputFilename))
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, string(migrationSQL))
	require.NoError(t, err)

	tables := config.TableConfig(dialect)
	t.Cleanup(func() {
		_, _ = db.Exec(sqlstore.MigrationDown(tables))
	})

	s := sqlstore.NewWithConfig(db, dialect, tables)
	first, err := s.IncrementOrSeed(ctx, "rule:R1:0:none", 1, time.Time{})
	require.NoError(t, err)
	second, err := s.IncrementOrSeed(ctx, "rule:R1:0:none", 1, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, int64(1), first)
	assert.Equal(t, int64(2), second)

	// Applying twice must be harmless.
	_, err = db.ExecContext(ctx, string(migrationSQL))
	require.NoError(t, err)
}

func TestIntegrationSQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "codegen.db"))
	require.NoError(t, err)
	defer db.Close()

	applyAndUse(t, db, sqlstore.SQLite, migrations.Config{
		OutputFolder:   t.TempDir(),
		OutputFilename: "sqlite_integration.sql",
		SchemaName:     "codegen",
		SequencesTable: "sequences",
	})
}

func TestIntegrationPostgres(t *testing.T) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping PostgreSQL integration test")
	}

	db, err := sql.Open("postgres", dbURL)
	require.NoError(t, err)
	defer db.Close()

	applyAndUse(t, db, sqlstore.Postgres, migrations.Config{
		OutputFolder:   t.TempDir(),
		OutputFilename: "postgres_integration.sql",
		SchemaName:     "codegen_test",
		SequencesTable: "sequences",
	})
}

// MYSQL_URL must enable multiStatements, e.g. user:pass@tcp(localhost:3306)/test?multiStatements=true
func TestIntegrationMySQL(t *testing.T) {
	dsn := os.Getenv("MYSQL_URL")
	if dsn == "" {
		t.Skip("MYSQL_URL not set, skipping MySQL integration test")
	}

	db, err := sql.Open("mysql", dsn)
	require.NoError(t, err)
	defer db.Close()

	applyAndUse(t, db, sqlstore.MySQL, migrations.Config{
		OutputFolder:   t.TempDir(),
		OutputFilename: "mysql_integration.sql",
		SequencesTable: "codegen_sequences_it",
	})
}
