package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"

	"github.com/getpup/codegen/internal/logging"
	"github.com/getpup/codegen/metrics"
	"github.com/getpup/codegen/pkg/codegen"
	"github.com/getpup/codegen/rules"
	"github.com/getpup/codegen/store/memory"
	"github.com/getpup/codegen/store/sqlstore"
	"github.com/redis/go-redis/v9"
)

// app is a configured Service plus the connections it owns.
type app struct {
	svc     *codegen.Service
	health  metrics.HealthCheck
	backend string
	closers []func() error
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// openApp builds a Service from the merged configuration. Redis wins over SQL;
// with neither configured counters live in memory for the life of the command.
func openApp(ctx context.Context, o *RootOptions, logOut io.Writer) (*app, error) {
	v := o.v

	level, err := logging.ParseLevel(v.GetString(keyLogLevel))
	if err != nil {
		return nil, err
	}
	logger := logging.New(logOut, level, v.GetString(keyLogFormat) == "json")

	source := rules.NewMemorySource()
	if path := v.GetString(keyRulesFile); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read rules file: %w", err)
		}
		if _, err := source.LoadJSON(data); err != nil {
			return nil, fmt.Errorf("failed to load rules: %w", err)
		}
	}

	a := &app{}
	opts := []codegen.Option{
		codegen.WithRuleSource(source),
		codegen.WithLogger(logger),
		codegen.WithOperationTimeout(v.GetDuration(keyStoreTimeout)),
		codegen.WithMaxRetries(v.GetInt(keyStoreRetries)),
		codegen.WithChunkSize(v.GetInt(keyChunkSize)),
	}

	switch {
	case v.GetString(keyRedisAddr) != "":
		client := redis.NewClient(redisOptions(v))
		a.closers = append(a.closers, client.Close)
		a.health = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
		a.backend = "redis"
		opts = append(opts, codegen.WithRedis(client))

	case v.GetString(keySQLDSN) != "":
		dialect, err := sqlstore.ParseDialect(v.GetString(keySQLDriver))
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(string(dialect), v.GetString(keySQLDSN))
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := codegen.RunMigrations(db, dialect); err != nil {
			_ = a.Close()
			return nil, err
		}
		a.health = db.PingContext
		a.backend = "sql"
		opts = append(opts, codegen.WithDatabase(db, dialect))

	default:
		a.backend = "memory"
		opts = append(opts, codegen.WithSequenceStore(memory.New()))
	}

	svc, err := codegen.New(opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.svc = svc
	a.closers = append(a.closers, func() error {
		return svc.Shutdown(ctx)
	})

	logger.Debug(ctx, "service ready", "backend", a.backend)
	return a, nil
}

// redisOptions lets the per-call store timeout bound Redis commands instead of
// the client's own read and write deadlines.
func redisOptions(v *viper.Viper) *redis.Options {
	return &redis.Options{
		Addr:                  v.GetString(keyRedisAddr),
		Password:              v.GetString(keyRedisPassword),
		DB:                    v.GetInt(keyRedisDB),
		ContextTimeoutEnabled: true,
	}
}
