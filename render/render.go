// Package render defines the barcode renderer collaborator. Image encoding
// itself lives outside this module; callers plug in an implementation.
package render

import (
	"context"

	"github.com/getpup/codegen"
)

// Renderer turns a code into an image in the requested symbology.
type Renderer interface {
	Render(ctx context.Context, text string, opts codegen.RenderOptions) ([]byte, error)
}

// RendererFunc adapts a plain function to Renderer.
type RendererFunc func(ctx context.Context, text string, opts codegen.RenderOptions) ([]byte, error)

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, text string, opts codegen.RenderOptions) ([]byte, error) {
	return f(ctx, text, opts)
}
