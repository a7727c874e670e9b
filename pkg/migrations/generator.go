package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/getpup/codegen/store/sqlstore"
)

var identifierRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// validateIdentifier ensures an identifier contains only safe characters for SQL.
// Returns an error if the identifier contains characters that could be used for SQL injection.
func validateIdentifier(name, fieldName string) error {
	if name == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%s must start with a letter and contain only letters, numbers, and underscores (got: %s)", fieldName, name)
	}
	return nil
}

// validateConfig validates all configuration values to prevent SQL injection.
func validateConfig(config *Config) error {
	if config.SchemaName != "" {
		if err := validateIdentifier(config.SchemaName, "SchemaName"); err != nil {
			return err
		}
	}
	if err := validateIdentifier(config.SequencesTable, "SequencesTable"); err != nil {
		return err
	}
	if config.OutputFilename == "" {
		return fmt.Errorf("OutputFilename cannot be empty")
	}
	return nil
}

// Config configures migration generation for the serial counter table.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// SchemaName is the database schema name (PostgreSQL) or database name (MySQL).
	// For SQLite it becomes a table name prefix (e.g., codegen_sequences becomes
	// <schema>_codegen_sequences). Empty means the connection default.
	SchemaName string

	// SequencesTable is the name of the serial counter table
	SequencesTable string
}

// DefaultConfig returns the default configuration for codegen migrations.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:   "migrations",
		OutputFilename: fmt.Sprintf("%s_init_codegen_sequences.sql", timestamp),
		SequencesTable: sqlstore.DefaultTableConfig().SequencesTable,
	}
}

// TableConfig returns the store table configuration matching a generated
// migration, so the runtime store and the DDL agree on the table name.
func (c Config) TableConfig(dialect sqlstore.Dialect) sqlstore.TableConfig {
	return sqlstore.TableConfig{SequencesTable: qualifiedTable(dialect, c.SchemaName, c.SequencesTable)}
}

func qualifiedTable(dialect sqlstore.Dialect, schema, table string) string {
	if schema == "" {
		return table
	}
	if dialect == sqlstore.SQLite {
		return schema + "_" + table
	}
	return schema + "." + table
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	return generate(sqlstore.Postgres, config)
}

// GenerateMySQL generates a MySQL/MariaDB migration file.
func GenerateMySQL(config *Config) error {
	return generate(sqlstore.MySQL, config)
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	return generate(sqlstore.SQLite, config)
}

// Generate writes the migration for the given dialect.
func Generate(dialect sqlstore.Dialect, config *Config) error {
	return generate(dialect, config)
}

func generate(dialect sqlstore.Dialect, config *Config) error {
	if err := validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	sql := Render(dialect, config)

	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}
	return nil
}

// Render returns the migration SQL without writing it. The config is not validated.
func Render(dialect sqlstore.Dialect, config *Config) string {
	var b strings.Builder
	fmt.Fprintf(&b, "-- Code generation serial counters (%s)\n", dialect)
	fmt.Fprintf(&b, "-- Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))

	if config.SchemaName != "" {
		switch dialect {
		case sqlstore.Postgres:
			fmt.Fprintf(&b, "CREATE SCHEMA IF NOT EXISTS %s;\n\n", config.SchemaName)
		case sqlstore.MySQL:
			fmt.Fprintf(&b, "CREATE DATABASE IF NOT EXISTS %s;\n\n", config.SchemaName)
		}
	}

	b.WriteString(sqlstore.MigrationUp(dialect, config.TableConfig(dialect)))
	return b.String()
}
