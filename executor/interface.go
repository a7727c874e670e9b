package executor

import (
	"context"

	"github.com/getpup/codegen"
)

// Runner generates one item: a composed code and, when requested, its image.
// This interface allows for mock implementations in tests.
type Runner interface {
	Generate(ctx context.Context, rule codegen.CodeRule, params codegen.Params, opts codegen.RenderOptions) (codegen.Item, error)
}
