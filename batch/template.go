package batch

import (
	"context"

	"github.com/getpup/codegen"
	"github.com/mitchellh/mapstructure"
)

// TemplateRequest is the decoded form of a template-driven batch request.
type TemplateRequest struct {
	RuleID      string           `mapstructure:"ruleId"`
	ParamsList  []map[string]any `mapstructure:"paramsList"`
	BarcodeType string           `mapstructure:"barcodeType"`
	Width       int              `mapstructure:"width"`
	Height      int              `mapstructure:"height"`
}

// DecodeTemplate decodes a loosely typed request such as one parsed from JSON
// or YAML. Numbers given as strings are accepted. Missing render settings
// default to a CODE128 image of 300x150; an explicit empty barcodeType asks
// for codes only.
func DecodeTemplate(template map[string]any) (TemplateRequest, error) {
	req := TemplateRequest{
		BarcodeType: string(codegen.SymbologyCode128),
		Width:       codegen.DefaultImageWidth,
		Height:      codegen.DefaultImageHeight,
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &req,
	})
	if err != nil {
		return TemplateRequest{}, err
	}
	if err := decoder.Decode(template); err != nil {
		return TemplateRequest{}, &codegen.ValidationError{Field: "template", Reason: err.Error(), Err: err}
	}

	if req.RuleID == "" {
		return TemplateRequest{}, codegen.NewValidationError("ruleId", "must not be empty")
	}
	if len(req.ParamsList) == 0 {
		return TemplateRequest{}, &codegen.ValidationError{Field: "paramsList", Reason: "must contain at least one item", Err: codegen.ErrEmptyBatch}
	}
	return req, nil
}

// Params converts the decoded parameter maps.
func (r TemplateRequest) Params() []codegen.Params {
	list := make([]codegen.Params, len(r.ParamsList))
	for i, p := range r.ParamsList {
		list[i] = codegen.Params(p)
	}
	return list
}

// RenderOptions returns the requested image settings.
func (r TemplateRequest) RenderOptions() codegen.RenderOptions {
	return codegen.RenderOptions{
		Symbology: codegen.Symbology(r.BarcodeType),
		Width:     r.Width,
		Height:    r.Height,
	}
}

// GenerateByTemplate decodes template and runs it through GenerateSync.
func (o *Orchestrator) GenerateByTemplate(ctx context.Context, template map[string]any) (codegen.BatchResult, error) {
	req, err := DecodeTemplate(template)
	if err != nil {
		return codegen.BatchResult{}, err
	}
	return o.GenerateSync(ctx, req.RuleID, req.Params(), req.RenderOptions())
}
