package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	rootpkg "github.com/getpup/codegen"
	"github.com/getpup/codegen/batch"
	"github.com/getpup/codegen/pkg/codegen"
	"github.com/spf13/cobra"
)

type batchFlags struct {
	paramsFile   string
	templateFile string
	count        int
	params       []string
	async        bool
	symbology    string
	width        int
	height       int
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	f := &batchFlags{}

	cmd := &cobra.Command{
		Use:   "batch [rule-id]",
		Short: "Generate many codes at once",
		Long: `Generate many codes in one request.

Exactly one input is used:
  --params-file  JSON array with one parameter object per code
  --count        N codes sharing the --param values, tagged with _batchIndex
  --template     JSON object with ruleId, paramsList, barcodeType, width, height

With --async the batch runs as a background job and the command waits for it.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, rootOpts, f, args)
		},
	}

	cmd.Flags().StringVar(&f.paramsFile, "params-file", "", "JSON file with a list of parameter objects")
	cmd.Flags().StringVar(&f.templateFile, "template", "", "JSON template file")
	cmd.Flags().IntVar(&f.count, "count", 0, "number of codes sharing --param values")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "field value as key=value (repeatable)")
	cmd.Flags().BoolVar(&f.async, "async", false, "run as a background job and wait for it")
	cmd.Flags().StringVar(&f.symbology, "symbology", "", "barcode type (CODE128|QR|CODE39); empty for codes only")
	cmd.Flags().IntVar(&f.width, "width", 0, "image width")
	cmd.Flags().IntVar(&f.height, "height", 0, "image height")
	return cmd
}

func runBatch(cmd *cobra.Command, rootOpts *RootOptions, f *batchFlags, args []string) error {
	inputs := 0
	for _, set := range []bool{f.paramsFile != "", f.templateFile != "", f.count > 0} {
		if set {
			inputs++
		}
	}
	if inputs != 1 {
		return fmt.Errorf("exactly one of --params-file, --count or --template is required")
	}
	if f.templateFile == "" && len(args) == 0 {
		return fmt.Errorf("rule id is required")
	}

	opts := codegen.RenderOptions{Symbology: rootpkg.Symbology(f.symbology), Width: f.width, Height: f.height}

	return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out io.Writer) error {
		switch {
		case f.templateFile != "":
			var template map[string]interface{}
			if err := readJSONFile(f.templateFile, &template); err != nil {
				return err
			}
			result, err := a.svc.BatchGenerateByTemplate(ctx, template)
			if err != nil {
				return err
			}
			return printResult(rootOpts, out, result)

		case f.count > 0:
			base, err := parseParams(f.params)
			if err != nil {
				return err
			}
			if f.async {
				paramsList := make([]codegen.Params, f.count)
				for i := range paramsList {
					p := base.Clone()
					p[batch.BatchIndexParam] = i + 1
					paramsList[i] = p
				}
				return runAsync(ctx, rootOpts, a, out, args[0], paramsList, opts)
			}
			result, err := a.svc.BatchGenerateByCount(ctx, args[0], base, f.count, opts)
			if err != nil {
				return err
			}
			return printResult(rootOpts, out, result)

		default:
			var raw []map[string]interface{}
			if err := readJSONFile(f.paramsFile, &raw); err != nil {
				return err
			}
			paramsList := make([]codegen.Params, len(raw))
			for i, p := range raw {
				paramsList[i] = p
			}
			if f.async {
				return runAsync(ctx, rootOpts, a, out, args[0], paramsList, opts)
			}
			result, err := a.svc.BatchGenerate(ctx, args[0], paramsList, opts)
			if err != nil {
				return err
			}
			return printResult(rootOpts, out, result)
		}
	})
}

func runAsync(ctx context.Context, rootOpts *RootOptions, a *app, out io.Writer, ruleID string, paramsList []codegen.Params, opts codegen.RenderOptions) error {
	taskID, err := a.svc.BatchGenerateAsync(ctx, ruleID, paramsList, opts)
	if err != nil {
		return err
	}
	job, err := a.svc.WaitBatch(ctx, taskID)
	if err != nil {
		return err
	}
	return emit(rootOpts, out, job, func() error {
		for _, item := range job.Items {
			fmt.Fprintf(out, "%d\t%s\n", item.Index, item.Code)
		}
		for _, e := range job.Errors {
			fmt.Fprintf(out, "%d\terror: %s\n", e.Index, e.Error)
		}
		fmt.Fprintf(out, "task=%s status=%s processed=%d/%d succeeded=%d failed=%d\n",
			job.TaskID, job.Status, job.Processed, job.Total, job.Succeeded, job.Failed)
		if job.Error != "" {
			fmt.Fprintf(out, "error: %s\n", job.Error)
		}
		return nil
	})
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
