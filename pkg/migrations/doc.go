// Package migrations generates SQL migration files for the serial counter table
// used by the SQL sequence store, for PostgreSQL, MySQL/MariaDB, and SQLite.
package migrations
