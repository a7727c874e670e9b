package codegen

import (
	"database/sql"
	"time"

	"github.com/getpup/codegen/jobs"
	"github.com/getpup/codegen/jobs/rediscache"
	"github.com/getpup/codegen/render"
	"github.com/getpup/codegen/rules"
	"github.com/getpup/codegen/store"
	"github.com/getpup/codegen/store/redisstore"
	"github.com/getpup/codegen/store/sqlstore"
	"github.com/getpup/pupsourcing/es"
	"github.com/redis/go-redis/v9"
)

// Option configures a Service.
type Option func(*config)

// config holds the internal configuration for creating a Service.
type config struct {
	store            store.SequenceStore
	rules            rules.Source
	renderer         render.Renderer
	jobCache         jobs.Cache
	logger           es.Logger
	metricsEnabled   *bool
	serviceName      string
	jobRetention     time.Duration
	sweepInterval    time.Duration
	chunkSize        int
	maxBatchSize     int
	chunkDelay       time.Duration
	operationTimeout time.Duration
	maxRetries       int
	location         *time.Location
}

// WithSequenceStore sets the store that persists serial counters.
func WithSequenceStore(s store.SequenceStore) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithRedis stores serial counters in Redis and mirrors batch job state there,
// so any replica sharing the client can answer status queries.
// Build the client with ContextTimeoutEnabled so WithOperationTimeout bounds
// each command; otherwise go-redis applies its own read and write timeouts.
func WithRedis(client redis.UniversalClient) Option {
	return func(c *config) {
		c.store = redisstore.New(client)
		c.jobCache = rediscache.New(client)
	}
}

// WithDatabase stores serial counters in a SQL table with the default name.
// Run RunMigrations first to create it.
func WithDatabase(db *sql.DB, dialect sqlstore.Dialect) Option {
	return WithDatabaseTable(db, dialect, sqlstore.DefaultTableConfig())
}

// WithDatabaseTable is WithDatabase with a custom table name.
func WithDatabaseTable(db *sql.DB, dialect sqlstore.Dialect, tables sqlstore.TableConfig) Option {
	return func(c *config) {
		c.store = sqlstore.NewWithConfig(db, dialect, tables)
	}
}

// WithRuleSource sets where rules are looked up by id.
func WithRuleSource(source rules.Source) Option {
	return func(c *config) {
		c.rules = source
	}
}

// WithRenderer sets the barcode renderer used when a request names a symbology.
func WithRenderer(renderer render.Renderer) Option {
	return func(c *config) {
		c.renderer = renderer
	}
}

// WithJobCache sets the shared cache batch job snapshots are published to.
func WithJobCache(cache jobs.Cache) Option {
	return func(c *config) {
		c.jobCache = cache
	}
}

// WithLogger sets the logger for observability.
func WithLogger(logger es.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetricsEnabled enables or disables Prometheus metrics collection.
func WithMetricsEnabled(enabled bool) Option {
	return func(c *config) {
		c.metricsEnabled = &enabled
	}
}

// WithServiceName sets the value of the service label on every metric.
func WithServiceName(name string) Option {
	return func(c *config) {
		c.serviceName = name
	}
}

// WithJobRetention sets how long finished batch jobs stay queryable.
func WithJobRetention(retention time.Duration) Option {
	return func(c *config) {
		c.jobRetention = retention
	}
}

// WithSweepInterval sets how often finished jobs and expired counters are removed.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *config) {
		c.sweepInterval = interval
	}
}

// WithChunkSize sets the number of batch items processed between progress
// updates and cancellation checks.
func WithChunkSize(size int) Option {
	return func(c *config) {
		c.chunkSize = size
	}
}

// WithMaxBatchSize sets the largest accepted batch request.
func WithMaxBatchSize(size int) Option {
	return func(c *config) {
		c.maxBatchSize = size
	}
}

// WithChunkDelay sets the pause of background jobs between chunks.
// A negative value disables it.
func WithChunkDelay(delay time.Duration) Option {
	return func(c *config) {
		c.chunkDelay = delay
	}
}

// WithOperationTimeout bounds every single sequence store call.
func WithOperationTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.operationTimeout = timeout
	}
}

// WithMaxRetries sets how often a failed store call is retried.
// A negative value disables retries.
func WithMaxRetries(retries int) Option {
	return func(c *config) {
		c.maxRetries = retries
	}
}

// WithLocation sets the time zone of Date segments and reset windows.
func WithLocation(loc *time.Location) Option {
	return func(c *config) {
		c.location = loc
	}
}
