// Command migrate-gen generates SQL migration files for the codegen serial counter table.
//
// Usage:
//
//	go run github.com/getpup/codegen/cmd/migrate-gen -output migrations -filename init.sql
//
// Or with go generate:
//
//	//go:generate go run github.com/getpup/codegen/cmd/migrate-gen -output migrations
//
// Generate migrations for different database adapters:
//
//	go run github.com/getpup/codegen/cmd/migrate-gen -adapter postgres -output migrations
//	go run github.com/getpup/codegen/cmd/migrate-gen -adapter mysql -output migrations
//	go run github.com/getpup/codegen/cmd/migrate-gen -adapter sqlite -output migrations
//
// Customize the schema and table name:
//
//	go run github.com/getpup/codegen/cmd/migrate-gen -schema codegen -sequences-table sequences
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/getpup/codegen/pkg/migrations"
	"github.com/getpup/codegen/store/sqlstore"
)

func main() {
	var (
		adapter        = flag.String("adapter", "postgres", "Database adapter: postgres, mysql, or sqlite")
		outputFolder   = flag.String("output", "migrations", "Output folder for migration file")
		outputFilename = flag.String("filename", "", "Output filename (default: timestamp-based)")
		schemaName     = flag.String("schema", "", "Schema name (PostgreSQL), database name (MySQL) or table prefix (SQLite)")
		sequencesTable = flag.String("sequences-table", "codegen_sequences", "Name of the serial counter table")
	)

	flag.Parse()

	dialect, err := sqlstore.ParseDialect(*adapter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unsupported adapter '%s'. Supported adapters are: postgres, mysql, sqlite\n", *adapter)
		os.Exit(1)
	}

	config := migrations.DefaultConfig()
	config.OutputFolder = *outputFolder
	config.SchemaName = *schemaName
	config.SequencesTable = *sequencesTable

	if *outputFilename != "" {
		config.OutputFilename = *outputFilename
	}

	if err := migrations.Generate(dialect, &config); err != nil {
		fmt.Fprintf(os.Stderr, "Error generating migration: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated %s migration: %s/%s\n", *adapter, config.OutputFolder, config.OutputFilename)
}
