package sqlstore

import (
	"fmt"
	"strings"
)

// TableConfig configures the table name used by the store.
type TableConfig struct {
	// SequencesTable is the name of the table storing serial counters.
	// It may be schema-qualified on PostgreSQL.
	SequencesTable string
}

// DefaultTableConfig returns the default table configuration.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		SequencesTable: "codegen_sequences",
	}
}

// indexName derives an index name from a possibly schema-qualified table.
func indexName(table string) string {
	return "idx_" + strings.ReplaceAll(table, ".", "_") + "_expires_at"
}

// MigrationStatements returns the DDL statements that create the sequences table,
// one statement per element.
func MigrationStatements(dialect Dialect, config TableConfig) []string {
	table := config.SequencesTable
	idx := indexName(table)

	switch dialect {
	case MySQL:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    seq_key VARCHAR(512) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL PRIMARY KEY,
    seq_value BIGINT NOT NULL,
    expires_at BIGINT NOT NULL DEFAULT 0,
    updated_at BIGINT NOT NULL DEFAULT 0,
    INDEX %s (expires_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`, table, idx),
		}
	case SQLite:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    seq_key TEXT PRIMARY KEY,
    seq_value INTEGER NOT NULL,
    expires_at INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT 0
)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (expires_at)`, idx, table),
		}
	default:
		return []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    seq_key TEXT PRIMARY KEY,
    seq_value BIGINT NOT NULL,
    expires_at BIGINT NOT NULL DEFAULT 0,
    updated_at BIGINT NOT NULL DEFAULT 0
)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (expires_at)`, idx, table),
		}
	}
}

// MigrationUp returns the SQL to create the sequences table.
func MigrationUp(dialect Dialect, config TableConfig) string {
	var b strings.Builder
	b.WriteString("-- Serial counters, one row per rule segment and time window\n")
	for _, stmt := range MigrationStatements(dialect, config) {
		b.WriteString(stmt)
		b.WriteString(";\n\n")
	}
	return b.String()
}

// MigrationDown returns the SQL to drop the sequences table.
func MigrationDown(config TableConfig) string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;\n", config.SequencesTable)
}
