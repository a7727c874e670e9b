package sqlstore

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL flavor used by the store.
type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect maps a driver name to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported SQL dialect %q", name)
	}
}

// queries holds the statements for one dialect and table. Arguments are always
// passed in the order documented on each field.
type queries struct {
	// key, seed, expiresAt, now
	increment string
	// key, base+count, expiresAt, now, count
	reserve string
	// key, value, expiresAt, now
	set string
	// key
	selectValue string
	// key, now
	get string
	// key, now
	deleteLive string
	// key
	deleteAny string
	// pattern, now
	scan string
	// scanArg turns a key prefix into the first scan argument.
	scanArg func(prefix string) string
	// now
	purge string
}

func buildQueries(d Dialect, table string) queries {
	p := placeholders(d)
	live := fmt.Sprintf("(expires_at = 0 OR expires_at > %s)", p(2))

	q := queries{
		selectValue: fmt.Sprintf(`SELECT seq_value FROM %s WHERE seq_key = %s`, table, p(1)),
		get: fmt.Sprintf(`SELECT seq_value, expires_at, updated_at FROM %s WHERE seq_key = %s AND %s`,
			table, p(1), live),
		deleteLive: fmt.Sprintf(`DELETE FROM %s WHERE seq_key = %s AND %s`, table, p(1), live),
		deleteAny:  fmt.Sprintf(`DELETE FROM %s WHERE seq_key = %s`, table, p(1)),
		scan: fmt.Sprintf(`SELECT seq_key FROM %s WHERE seq_key LIKE %s ESCAPE '!' AND %s ORDER BY seq_key`,
			table, p(1), live),
		purge:   fmt.Sprintf(`DELETE FROM %s WHERE expires_at > 0 AND expires_at <= %s`, table, p(1)),
		scanArg: likePattern,
	}

	if d == SQLite {
		// LIKE is case-insensitive in SQLite, so compare the prefix bytes instead.
		q.scan = fmt.Sprintf(`SELECT seq_key FROM %s WHERE substr(seq_key, 1, length(%s)) = %s AND %s ORDER BY seq_key`,
			table, p(1), p(1), live)
		q.scanArg = func(prefix string) string { return prefix }
	}

	insert := fmt.Sprintf(`INSERT INTO %s (seq_key, seq_value, expires_at, updated_at) VALUES (%s, %s, %s, %s)`,
		table, p(1), p(2), p(3), p(4))

	switch d {
	case MySQL:
		expired := "expires_at > 0 AND expires_at <= VALUES(updated_at)"
		// Assignments are applied left to right, so seq_value must read the old expiry.
		q.increment = insert + fmt.Sprintf(`
ON DUPLICATE KEY UPDATE
	seq_value = IF(%s, VALUES(seq_value), seq_value + 1),
	expires_at = VALUES(expires_at),
	updated_at = VALUES(updated_at)`, expired)
		q.reserve = insert + fmt.Sprintf(`
ON DUPLICATE KEY UPDATE
	seq_value = IF(%s, VALUES(seq_value), seq_value + ?),
	expires_at = VALUES(expires_at),
	updated_at = VALUES(updated_at)`, expired)
		q.set = insert + `
ON DUPLICATE KEY UPDATE
	seq_value = VALUES(seq_value),
	expires_at = VALUES(expires_at),
	updated_at = VALUES(updated_at)`
	default:
		excluded := "EXCLUDED"
		if d == SQLite {
			excluded = "excluded"
		}
		expired := fmt.Sprintf("%s.expires_at > 0 AND %s.expires_at <= %s.updated_at", table, table, excluded)
		q.increment = insert + fmt.Sprintf(`
ON CONFLICT (seq_key) DO UPDATE SET
	seq_value = CASE WHEN %s THEN %s.seq_value ELSE %s.seq_value + 1 END,
	expires_at = %s.expires_at,
	updated_at = %s.updated_at`, expired, excluded, table, excluded, excluded)
		q.reserve = insert + fmt.Sprintf(`
ON CONFLICT (seq_key) DO UPDATE SET
	seq_value = CASE WHEN %s THEN %s.seq_value ELSE %s.seq_value + %s END,
	expires_at = %s.expires_at,
	updated_at = %s.updated_at`, expired, excluded, table, p(5), excluded, excluded)
		q.set = insert + fmt.Sprintf(`
ON CONFLICT (seq_key) DO UPDATE SET
	seq_value = %s.seq_value,
	expires_at = %s.expires_at,
	updated_at = %s.updated_at`, excluded, excluded, excluded)
	}

	return q
}

// placeholders returns the bind parameter syntax for the n-th argument.
func placeholders(d Dialect) func(n int) string {
	switch d {
	case Postgres:
		return func(n int) string { return fmt.Sprintf("$%d", n) }
	case SQLite:
		return func(n int) string { return fmt.Sprintf("?%d", n) }
	default:
		return func(int) string { return "?" }
	}
}

// likePattern escapes prefix for a LIKE ... ESCAPE '!' clause and appends the wildcard.
func likePattern(prefix string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(prefix) + "%"
}
