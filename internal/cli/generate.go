package cli

import (
	"fmt"
	"os"

	rootpkg "github.com/getpup/codegen"
	"github.com/getpup/codegen/pkg/codegen"
	"github.com/spf13/cobra"
)

// NewGenerateCommand creates the generate command.
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "generate <rule-id>",
		Short: "Generate the next code of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := parseParams(params)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			code, err := a.svc.GenerateCode(cmd.Context(), args[0], p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return emit(rootOpts, out, map[string]string{"ruleId": args[0], "code": code}, func() error {
				_, err := fmt.Fprintln(out, code)
				return err
			})
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "field value as key=value (repeatable)")
	return cmd
}

type previewFlags struct {
	segments     string
	segmentsFile string
	params       []string
	image        bool
	symbology    string
	width        int
	height       int
	out          string
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	f := &previewFlags{}

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Compose a code from unsaved segments",
		Long: `Compose a code from a JSON segment list without touching rule counters.

Serial segments draw from the preview counters, which every preview shares.
With --image the code is rendered as well; this needs a renderer and fails
in the stock binary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cmd, rootOpts, f)
		},
	}

	cmd.Flags().StringVar(&f.segments, "segments", "", "segment list as JSON")
	cmd.Flags().StringVar(&f.segmentsFile, "segments-file", "", "file holding the segment list as JSON")
	cmd.Flags().StringArrayVarP(&f.params, "param", "p", nil, "field value as key=value (repeatable)")
	cmd.Flags().BoolVar(&f.image, "image", false, "render a barcode image")
	cmd.Flags().StringVar(&f.symbology, "symbology", string(rootpkg.SymbologyCode128), "barcode type (CODE128|QR|CODE39)")
	cmd.Flags().IntVar(&f.width, "width", rootpkg.DefaultImageWidth, "image width")
	cmd.Flags().IntVar(&f.height, "height", rootpkg.DefaultImageHeight, "image height")
	cmd.Flags().StringVarP(&f.out, "output", "o", "", "write the image to this file")
	return cmd
}

func runPreview(cmd *cobra.Command, rootOpts *RootOptions, f *previewFlags) error {
	raw := []byte(f.segments)
	if f.segmentsFile != "" {
		data, err := os.ReadFile(f.segmentsFile)
		if err != nil {
			return fmt.Errorf("failed to read segments file: %w", err)
		}
		raw = data
	}
	if len(raw) == 0 {
		return fmt.Errorf("one of --segments or --segments-file is required")
	}
	segments, err := rootpkg.ParseSegments(raw)
	if err != nil {
		return err
	}
	params, err := parseParams(f.params)
	if err != nil {
		return err
	}

	a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	if !f.image {
		code, err := a.svc.PreviewCode(cmd.Context(), segments, params)
		if err != nil {
			return err
		}
		return emit(rootOpts, out, map[string]string{"code": code}, func() error {
			_, err := fmt.Fprintln(out, code)
			return err
		})
	}

	item, err := a.svc.PreviewImage(cmd.Context(), segments, params, codegen.RenderOptions{
		Symbology: rootpkg.Symbology(f.symbology),
		Width:     f.width,
		Height:    f.height,
	})
	if err != nil {
		return err
	}
	if f.out != "" {
		if err := os.WriteFile(f.out, item.Image, 0o600); err != nil {
			return fmt.Errorf("failed to write image: %w", err)
		}
	}
	return emit(rootOpts, out, item, func() error {
		_, err := fmt.Fprintln(out, item.Code)
		return err
	})
}
