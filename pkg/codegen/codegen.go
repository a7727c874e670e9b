// Package codegen wires the serial allocator, composer and batch orchestrator
// into a single Service configured with functional options.
package codegen

import (
	"context"
	"database/sql"
	"fmt"

	rootpkg "github.com/getpup/codegen"
	"github.com/getpup/codegen/batch"
	"github.com/getpup/codegen/composer"
	"github.com/getpup/codegen/executor"
	"github.com/getpup/codegen/jobs"
	"github.com/getpup/codegen/lifecycle"
	"github.com/getpup/codegen/metrics"
	"github.com/getpup/codegen/rules"
	"github.com/getpup/codegen/serial"
	"github.com/getpup/codegen/store"
	"github.com/getpup/codegen/store/sqlstore"
)

// Re-export core types from root package
type (
	// CodeRule is a named, ordered list of segments.
	CodeRule = rootpkg.CodeRule

	// Segment is one part of a code rule.
	Segment = rootpkg.Segment

	// Params are caller-supplied values for Field segments.
	Params = rootpkg.Params

	// ResetPolicy decides when a serial counter starts over.
	ResetPolicy = rootpkg.ResetPolicy

	// RenderOptions selects barcode rendering for generated codes.
	RenderOptions = rootpkg.RenderOptions

	// Item is one generated code.
	Item = rootpkg.Item

	// BatchJob is the state of a background batch.
	BatchJob = rootpkg.BatchJob

	// BatchResult is the outcome of a synchronous batch.
	BatchResult = rootpkg.BatchResult

	// Range is a block of reserved serial values.
	Range = rootpkg.Range

	// SerialStatus describes one live counter.
	SerialStatus = rootpkg.SerialStatus
)

// DefaultServiceName labels metrics when WithServiceName is not used.
const DefaultServiceName = "codegen"

// Service is the entry point for code generation.
type Service struct {
	rules     rules.Source
	allocator *serial.Allocator
	composer  *composer.Composer
	executor  *executor.Executor
	batch     *batch.Orchestrator
	lifecycle *lifecycle.Manager
	collector *metrics.Collector
}

// New creates a new Service with the given options.
//
// Required options:
//   - WithSequenceStore, WithRedis or WithDatabase: where serial counters live
//   - WithRuleSource: where rules are looked up
//
// Optional configuration (with defaults):
//   - WithRenderer: barcode renderer (default: none, image requests fail)
//   - WithJobCache: shared job state (default: none, set by WithRedis)
//   - WithLogger: logger for observability (default: nil)
//   - WithMetricsEnabled: enable Prometheus metrics (default: true)
//   - WithServiceName: metrics service label (default: "codegen")
//   - WithJobRetention: how long finished jobs stay queryable (default: 1h)
//   - WithSweepInterval: housekeeping interval (default: 1m)
//   - WithChunkSize: items per chunk (default: 50)
//   - WithMaxBatchSize: largest batch (default: 1000)
//   - WithChunkDelay: pause between chunks of background jobs (default: 10ms)
//   - WithOperationTimeout: bound of each store call (default: 2s)
//   - WithMaxRetries: store call retries (default: 3)
//   - WithLocation: time zone of dates and reset windows (default: time.Local)
//
// Example:
//
//	svc, err := codegen.New(
//	    codegen.WithRedis(redisClient),
//	    codegen.WithRuleSource(ruleSource),
//	)
//
// Returns an error if any required option is missing.
func New(opts ...Option) (*Service, error) {
	cfg := &config{
		serviceName: DefaultServiceName,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.store == nil {
		return nil, fmt.Errorf("sequence store is required: use WithSequenceStore, WithRedis or WithDatabase option")
	}
	if cfg.rules == nil {
		return nil, fmt.Errorf("rule source is required: use WithRuleSource option")
	}

	var collector *metrics.Collector
	if cfg.metricsEnabled == nil || *cfg.metricsEnabled {
		collector = metrics.NewCollector(cfg.serviceName)
	}

	allocator := serial.New(serial.Config{
		Store:            cfg.store,
		OperationTimeout: cfg.operationTimeout,
		MaxRetries:       cfg.maxRetries,
		Location:         cfg.location,
		Logger:           cfg.logger,
		Collector:        collector,
	})

	comp := composer.New(composer.Config{
		Allocator: allocator,
		Location:  cfg.location,
		Logger:    cfg.logger,
		Collector: collector,
	})

	exec := executor.New(executor.Config{
		Composer: comp,
		Renderer: cfg.renderer,
		Logger:   cfg.logger,
	})

	registry := jobs.NewRegistry(jobs.Config{
		Cache:     cfg.jobCache,
		Retention: cfg.jobRetention,
		Logger:    cfg.logger,
	})

	orch := batch.New(batch.Config{
		Runner:       exec,
		Rules:        cfg.rules,
		Registry:     registry,
		MaxBatchSize: cfg.maxBatchSize,
		ChunkSize:    cfg.chunkSize,
		ChunkDelay:   cfg.chunkDelay,
		Logger:       cfg.logger,
		Collector:    collector,
	})

	purger, _ := cfg.store.(store.Purger)
	manager := lifecycle.New(lifecycle.Config{
		Registry:      registry,
		Purger:        purger,
		SweepInterval: cfg.sweepInterval,
		Logger:        cfg.logger,
	})

	return &Service{
		rules:     cfg.rules,
		allocator: allocator,
		composer:  comp,
		executor:  exec,
		batch:     orch,
		lifecycle: manager,
		collector: collector,
	}, nil
}

// GenerateCode looks up a rule and returns its next code.
func (s *Service) GenerateCode(ctx context.Context, ruleID string, params Params) (string, error) {
	rule, err := s.rules.GetRule(ctx, ruleID)
	if err != nil {
		return "", err
	}
	return s.composer.Compose(ctx, rule, params)
}

// PreviewCode composes a code from unsaved segments. Serial segments draw from
// the preview counters, which are shared by every preview regardless of rule.
func (s *Service) PreviewCode(ctx context.Context, segments []Segment, params Params) (string, error) {
	return s.composer.ComposePreview(ctx, segments, params)
}

// PreviewImage composes a preview code and renders it. Without a symbology
// CODE128 is used.
func (s *Service) PreviewImage(ctx context.Context, segments []Segment, params Params, opts RenderOptions) (Item, error) {
	if opts.Symbology == "" {
		opts.Symbology = rootpkg.SymbologyCode128
	}
	return s.executor.Preview(ctx, segments, params, opts)
}

// NextSerial allocates the next value of one serial segment directly, without
// composing a code. The first value of a window is start.
func (s *Service) NextSerial(ctx context.Context, ruleID string, segmentIndex int, policy ResetPolicy, start int64) (int64, error) {
	return s.allocator.Next(ctx, ruleID, segmentIndex, policy, start)
}

// ResetSerial deletes the counter of one serial segment for the current window.
func (s *Service) ResetSerial(ctx context.Context, ruleID string, segmentIndex int, policy ResetPolicy) error {
	return s.allocator.Reset(ctx, ruleID, segmentIndex, policy)
}

// ResetAllSerials deletes every counter of a rule and returns how many were removed.
func (s *Service) ResetAllSerials(ctx context.Context, ruleID string) (int, error) {
	return s.allocator.ResetAll(ctx, ruleID)
}

// ResetPreviewSerials deletes every preview counter.
func (s *Service) ResetPreviewSerials(ctx context.Context) (int, error) {
	return s.allocator.ResetPreview(ctx)
}

// GetSerialValue returns the last value handed out for the current window, or 0.
func (s *Service) GetSerialValue(ctx context.Context, ruleID string, segmentIndex int, policy ResetPolicy) (int64, error) {
	return s.allocator.Current(ctx, ruleID, segmentIndex, policy)
}

// SetSerialValue makes value the last value handed out, so the next one is value+1.
func (s *Service) SetSerialValue(ctx context.Context, ruleID string, segmentIndex int, policy ResetPolicy, value int64) error {
	return s.allocator.SetValue(ctx, ruleID, segmentIndex, policy, value)
}

// AllocateSerialRange reserves count consecutive values.
func (s *Service) AllocateSerialRange(ctx context.Context, ruleID string, segmentIndex int, policy ResetPolicy, count int64) (Range, error) {
	return s.allocator.AllocateRange(ctx, ruleID, segmentIndex, policy, count)
}

// SerialStatus lists the live counters of a rule.
func (s *Service) SerialStatus(ctx context.Context, ruleID string) ([]SerialStatus, error) {
	return s.allocator.Status(ctx, ruleID)
}

// BatchGenerate generates one code per parameter map and waits for the result.
func (s *Service) BatchGenerate(ctx context.Context, ruleID string, paramsList []Params, opts RenderOptions) (BatchResult, error) {
	return s.batch.GenerateSync(ctx, ruleID, paramsList, opts)
}

// BatchGenerateAsync starts a background batch and returns its task id.
func (s *Service) BatchGenerateAsync(ctx context.Context, ruleID string, paramsList []Params, opts RenderOptions) (string, error) {
	return s.batch.GenerateAsync(ctx, ruleID, paramsList, opts)
}

// BatchGenerateByCount generates count codes that share baseParams.
func (s *Service) BatchGenerateByCount(ctx context.Context, ruleID string, baseParams Params, count int, opts RenderOptions) (BatchResult, error) {
	return s.batch.GenerateByCount(ctx, ruleID, baseParams, count, opts)
}

// BatchGenerateByTemplate runs a batch described by a loosely typed template
// with ruleId, paramsList, barcodeType, width and height keys.
func (s *Service) BatchGenerateByTemplate(ctx context.Context, template map[string]any) (BatchResult, error) {
	return s.batch.GenerateByTemplate(ctx, template)
}

// BatchStatus returns the current state of a background batch.
func (s *Service) BatchStatus(ctx context.Context, taskID string) (BatchJob, error) {
	return s.batch.Status(ctx, taskID)
}

// CancelBatch asks a running batch to stop at its next chunk boundary.
func (s *Service) CancelBatch(taskID string) bool {
	return s.batch.Cancel(taskID)
}

// WaitBatch blocks until a batch finishes or ctx is done.
func (s *Service) WaitBatch(ctx context.Context, taskID string) (BatchJob, error) {
	return s.batch.Wait(ctx, taskID)
}

// Start runs periodic housekeeping until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	return s.lifecycle.Start(ctx)
}

// Shutdown cancels running batches and waits for their workers to stop.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.batch.Shutdown(ctx)
}

// RunMigrations creates the serial counter table with the default name.
//
// This should typically be run once during application deployment or startup.
func RunMigrations(db *sql.DB, dialect sqlstore.Dialect) error {
	return RunMigrationsWithTableConfig(db, dialect, sqlstore.DefaultTableConfig())
}

// RunMigrationsWithTableConfig creates the serial counter table with a custom name.
// Use this if you specified a custom table via WithDatabaseTable.
func RunMigrationsWithTableConfig(db *sql.DB, dialect sqlstore.Dialect, tables sqlstore.TableConfig) error {
	for _, stmt := range sqlstore.MigrationStatements(dialect, tables) {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute migrations: %w", err)
		}
	}
	return nil
}
