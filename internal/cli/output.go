package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/getpup/codegen/pkg/codegen"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cast"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// writeJSON prints v as indented JSON followed by a newline.
func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// emit prints v as JSON in json mode and runs text otherwise.
func emit(opts *RootOptions, w io.Writer, v interface{}, text func() error) error {
	if opts.Format == "json" {
		return writeJSON(w, v)
	}
	return text()
}

// parseParams turns key=value pairs into Params. Values stay strings.
func parseParams(pairs []string) (codegen.Params, error) {
	params := codegen.Params{}
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid param %q: expected key=value", pair)
		}
		params[key] = value
	}
	return params, nil
}

func parseSegmentIndex(arg string) (int, error) {
	idx, err := cast.ToIntE(arg)
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("invalid segment index %q", arg)
	}
	return idx, nil
}

func printResult(opts *RootOptions, w io.Writer, result codegen.BatchResult) error {
	return emit(opts, w, result, func() error {
		for _, item := range result.Items {
			fmt.Fprintf(w, "%d\t%s\n", item.Index, item.Code)
		}
		for _, e := range result.Errors {
			fmt.Fprintf(w, "%d\terror: %s\n", e.Index, e.Error)
		}
		fmt.Fprintf(w, "total=%d succeeded=%d failed=%d duration=%s\n", result.Total, result.Succeeded, result.Failed, result.Duration)
		return nil
	})
}
