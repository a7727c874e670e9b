package executor

import (
	"context"
	"errors"

	"github.com/getpup/codegen"
	"github.com/getpup/codegen/render"
	"github.com/getpup/pupsourcing/es"
)

var errNoRenderer = errors.New("no renderer configured")

// Config configures the item executor.
type Config struct {
	// Composer builds the codes (required).
	Composer codegen.Composer

	// Renderer draws barcode images. Only needed when images are requested.
	Renderer render.Renderer

	// Logger is an optional logger for observability.
	Logger es.Logger
}

// Executor composes codes and renders their images.
type Executor struct {
	config Config
}

// Compile-time check that Executor implements Runner.
var _ Runner = (*Executor)(nil)

// New creates a new Executor with the given configuration.
func New(cfg Config) *Executor {
	return &Executor{
		config: cfg,
	}
}

// Generate composes the next code of rule. When opts names a symbology the
// code is rendered as well; a render failure discards the code and is reported
// as a SegmentError for the "render" stage. The returned item's Index is left
// for the caller to set.
func (e *Executor) Generate(ctx context.Context, rule codegen.CodeRule, params codegen.Params, opts codegen.RenderOptions) (codegen.Item, error) {
	code, err := e.config.Composer.Compose(ctx, rule, params)
	if err != nil {
		return codegen.Item{}, err
	}
	return e.finish(ctx, code, opts)
}

// Preview composes a code from unsaved segments using the preview counters,
// and renders it when opts names a symbology.
func (e *Executor) Preview(ctx context.Context, segments []codegen.Segment, params codegen.Params, opts codegen.RenderOptions) (codegen.Item, error) {
	if err := opts.Validate(); err != nil {
		return codegen.Item{}, err
	}
	code, err := e.config.Composer.ComposePreview(ctx, segments, params)
	if err != nil {
		return codegen.Item{}, err
	}
	return e.finish(ctx, code, opts.WithDefaults())
}

func (e *Executor) finish(ctx context.Context, code string, opts codegen.RenderOptions) (codegen.Item, error) {
	item := codegen.Item{Code: code}
	if opts.Symbology == "" {
		return item, nil
	}

	if e.config.Renderer == nil {
		return codegen.Item{}, &codegen.SegmentError{Index: -1, Segment: "render", Err: errNoRenderer}
	}
	image, err := e.config.Renderer.Render(ctx, code, opts)
	if err != nil {
		if e.config.Logger != nil {
			e.config.Logger.Error(ctx, "render failed", "code", code, "symbology", opts.Symbology, "error", err)
		}
		return codegen.Item{}, &codegen.SegmentError{Index: -1, Segment: "render", Err: err}
	}
	item.Image = image
	return item, nil
}
