// Package lifecycle runs the periodic housekeeping of a codegen process:
// dropping finished batch jobs past their retention and purging expired
// counters from stores that do not expire rows by themselves.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/getpup/codegen/jobs"
	"github.com/getpup/codegen/store"
	"github.com/getpup/pupsourcing/es"
)

// Config holds configuration for the lifecycle Manager.
type Config struct {
	// Registry holds the batch jobs to sweep (optional).
	Registry *jobs.Registry

	// Purger removes expired counters (optional). Set it for SQL stores.
	Purger store.Purger

	// SweepInterval is the interval between sweeps (default: 1m).
	SweepInterval time.Duration

	// Clock returns the current time (default: time.Now).
	Clock func() time.Time

	// Logger is for observability (optional).
	Logger es.Logger
}

// Sweep reports what one housekeeping pass removed.
type Sweep struct {
	Jobs     int
	Counters int
}

// Manager runs housekeeping on a fixed interval.
type Manager struct {
	config Config
}

// New creates a new lifecycle Manager with the given configuration.
// Applies default values for SweepInterval and Clock if not set.
func New(cfg Config) *Manager {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Manager{
		config: cfg,
	}
}

// Start runs a sweep loop until the context is cancelled.
// A failed pass is logged and retried on the next tick.
func (m *Manager) Start(ctx context.Context) error {
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.SweepOnce(ctx); err != nil && m.config.Logger != nil {
				m.config.Logger.Error(ctx, "sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce runs a single housekeeping pass.
func (m *Manager) SweepOnce(ctx context.Context) (Sweep, error) {
	var s Sweep

	if m.config.Registry != nil {
		s.Jobs = m.config.Registry.Sweep(m.config.Clock())
	}

	if m.config.Purger != nil {
		n, err := m.config.Purger.PurgeExpired(ctx)
		if err != nil {
			return s, fmt.Errorf("failed to purge expired counters: %w", err)
		}
		s.Counters = n
	}

	if m.config.Logger != nil && (s.Jobs > 0 || s.Counters > 0) {
		m.config.Logger.Debug(ctx, "sweep completed", "jobs", s.Jobs, "counters", s.Counters)
	}

	return s, nil
}
