// Package sqlstore implements store.SequenceStore on PostgreSQL, MySQL/MariaDB and SQLite.
//
// Each mutation is a single transaction: an upsert that takes the row lock,
// followed by a read of the row it holds. Expiry is stored as unix
// milliseconds (0 means never) and expired rows read as absent until a
// write reseeds them or PurgeExpired removes them.
//
// SQLite deployments should open the database with _txlock=immediate and a
// busy timeout so that concurrent writers queue instead of failing.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/getpup/codegen/store"
)

// Store is a SQL implementation of SequenceStore.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
	q       queries
	now     func() time.Time
}

// New creates a new SQL store with the default table name.
func New(db *sql.DB, dialect Dialect) *Store {
	return NewWithConfig(db, dialect, DefaultTableConfig())
}

// NewWithConfig creates a new SQL store with a custom table name.
func NewWithConfig(db *sql.DB, dialect Dialect, config TableConfig) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		table:   config.SequencesTable,
		q:       buildQueries(dialect, config.SequencesTable),
		now:     time.Now,
	}
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// upsert runs query inside a transaction and returns the stored value afterwards.
func (s *Store) upsert(ctx context.Context, key, query string, args ...interface{}) (value int64, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("failed to upsert counter: %w", err)
	}

	if err = tx.QueryRowContext(ctx, s.q.selectValue, key).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to read counter: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return value, nil
}

// IncrementOrSeed implements SequenceStore.
func (s *Store) IncrementOrSeed(ctx context.Context, key string, seed int64, expireAt time.Time) (int64, error) {
	if key == "" {
		return 0, store.ErrInvalidKey
	}

	return s.upsert(ctx, key, s.q.increment, key, seed, toMillis(expireAt), s.now().UnixMilli())
}

// ReserveRange implements SequenceStore.
func (s *Store) ReserveRange(ctx context.Context, key string, base, count int64, expireAt time.Time) (int64, int64, error) {
	if key == "" {
		return 0, 0, store.ErrInvalidKey
	}
	if count <= 0 {
		return 0, 0, store.ErrInvalidCount
	}

	end, err := s.upsert(ctx, key, s.q.reserve, key, base+count, toMillis(expireAt), s.now().UnixMilli(), count)
	if err != nil {
		return 0, 0, err
	}

	return end - count + 1, end, nil
}

// Set implements SequenceStore.
func (s *Store) Set(ctx context.Context, key string, value int64, expireAt time.Time) error {
	if key == "" {
		return store.ErrInvalidKey
	}

	_, err := s.db.ExecContext(ctx, s.q.set, key, value, toMillis(expireAt), s.now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to set counter: %w", err)
	}

	return nil
}

// Get implements SequenceStore.
// Returns store.ErrCounterNotFound if the row is absent or expired.
func (s *Store) Get(ctx context.Context, key string) (store.Counter, error) {
	var expiresAt, updatedAt int64
	counter := store.Counter{Key: key}

	err := s.db.QueryRowContext(ctx, s.q.get, key, s.now().UnixMilli()).Scan(
		&counter.Value,
		&expiresAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return store.Counter{}, store.ErrCounterNotFound
	}
	if err != nil {
		return store.Counter{}, fmt.Errorf("failed to get counter: %w", err)
	}

	counter.ExpiresAt = fromMillis(expiresAt)
	counter.UpdatedAt = fromMillis(updatedAt)
	return counter, nil
}

// Delete implements SequenceStore.
func (s *Store) Delete(ctx context.Context, keys ...string) (deleted int, err error) {
	if len(keys) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now().UnixMilli()
	for _, key := range keys {
		result, execErr := tx.ExecContext(ctx, s.q.deleteLive, key, now)
		if execErr != nil {
			return 0, fmt.Errorf("failed to delete counter: %w", execErr)
		}
		rowsAffected, raErr := result.RowsAffected()
		if raErr != nil {
			return 0, fmt.Errorf("failed to check rows affected: %w", raErr)
		}
		deleted += int(rowsAffected)

		if _, execErr = tx.ExecContext(ctx, s.q.deleteAny, key); execErr != nil {
			return 0, fmt.Errorf("failed to delete counter: %w", execErr)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return deleted, nil
}

// ScanPrefix implements SequenceStore.
func (s *Store) ScanPrefix(ctx context.Context, prefix string) (keys []string, err error) {
	rows, err := s.db.QueryContext(ctx, s.q.scan, s.q.scanArg(prefix), s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to scan counters: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close rows: %w", closeErr)
		}
	}()

	keys = []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counters: %w", err)
	}

	return keys, nil
}

// PurgeExpired implements store.Purger.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	result, err := s.db.ExecContext(ctx, s.q.purge, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge counters: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}

	return int(rowsAffected), nil
}

// Migrate creates the sequences table if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range MigrationStatements(s.dialect, TableConfig{SequencesTable: s.table}) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
