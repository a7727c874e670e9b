// Package composer turns code rules into codes by evaluating their segments
// left to right.
package composer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/getpup/codegen"
	"github.com/getpup/codegen/metrics"
	"github.com/getpup/pupsourcing/es"
)

const (
	modeRule    = "rule"
	modePreview = "preview"
)

// Config configures a Composer.
type Config struct {
	// Allocator provides Serial segment values (required when rules contain serials).
	Allocator codegen.SerialAllocator

	// Clock returns the current time for Date segments (default: time.Now).
	Clock func() time.Time

	// Location is the time zone Date segments are rendered in (default: time.Local).
	Location *time.Location

	// Logger is for observability (optional).
	Logger es.Logger

	// Collector records composition metrics (optional).
	Collector *metrics.Collector
}

// Composer implements codegen.Composer.
type Composer struct {
	config Config
}

var _ codegen.Composer = (*Composer)(nil)

// New creates a new Composer with the given configuration.
func New(cfg Config) *Composer {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Composer{config: cfg}
}

// Compose evaluates every segment of rule and concatenates the results.
// Serial segments allocate from the rule's own counters.
func (c *Composer) Compose(ctx context.Context, rule codegen.CodeRule, params codegen.Params) (string, error) {
	if rule.ID == "" {
		return "", codegen.NewValidationError("ruleId", "must not be empty")
	}
	if len(rule.Segments) == 0 {
		return "", codegen.NewValidationError("segments", "rule has no segments")
	}

	serial := func(ctx context.Context, index int, s codegen.Serial) (int64, error) {
		return c.config.Allocator.Next(ctx, rule.ID, index, s.Reset, s.Start)
	}
	return c.compose(ctx, modeRule, rule.ID, rule.Segments, params, serial)
}

// ComposePreview evaluates segments like Compose, but Serial segments draw from
// the preview counters, so production sequences never move.
func (c *Composer) ComposePreview(ctx context.Context, segments []codegen.Segment, params codegen.Params) (string, error) {
	if len(segments) == 0 {
		return "", codegen.NewValidationError("segments", "must not be empty")
	}

	serial := func(ctx context.Context, index int, s codegen.Serial) (int64, error) {
		return c.config.Allocator.NextPreview(ctx, index, s.Reset, s.Start)
	}
	return c.compose(ctx, modePreview, "", segments, params, serial)
}

type serialFunc func(ctx context.Context, index int, s codegen.Serial) (int64, error)

func (c *Composer) compose(ctx context.Context, mode, ruleID string, segments []codegen.Segment, params codegen.Params, serial serialFunc) (string, error) {
	now := c.config.Clock().In(c.config.Location)

	var b strings.Builder
	for i, seg := range segments {
		value, err := c.evaluate(ctx, i, seg, params, now, serial)
		if err != nil {
			kind := "unknown"
			if seg != nil {
				kind = string(seg.Kind())
			}
			c.config.Collector.IncCompositionErrors(kind)
			if c.config.Logger != nil {
				c.config.Logger.Error(ctx, "segment evaluation failed",
					"mode", mode, "rule", ruleID, "segment", i, "kind", kind, "error", err)
			}
			return "", &codegen.SegmentError{Index: i, Segment: kind, Err: err}
		}
		b.WriteString(value)
	}

	code := b.String()
	c.config.Collector.IncCodesComposed(mode)
	if c.config.Logger != nil {
		c.config.Logger.Debug(ctx, "code composed", "mode", mode, "rule", ruleID, "code", code)
	}
	return code, nil
}

func (c *Composer) evaluate(ctx context.Context, index int, seg codegen.Segment, params codegen.Params, now time.Time, serial serialFunc) (string, error) {
	switch s := seg.(type) {
	case codegen.Fixed:
		return s.Value, nil
	case codegen.Separator:
		return s.Value, nil
	case codegen.Field:
		return params.String(s.Name), nil
	case codegen.Date:
		format := s.Format
		if format == "" {
			format = codegen.DefaultDateFormat
		}
		return formatDate(now, format), nil
	case codegen.Serial:
		if c.config.Allocator == nil {
			return "", fmt.Errorf("no serial allocator configured")
		}
		if s.Length < 0 {
			return "", codegen.NewValidationError("length", "must not be negative")
		}
		policy := s.Reset
		if policy == "" {
			policy = codegen.ResetNone
		}
		s.Reset = policy
		value, err := serial(ctx, index, s)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%0*d", s.Length, value), nil
	default:
		return "", fmt.Errorf("%w: %T", codegen.ErrUnsupportedSegment, seg)
	}
}
