package cli

import (
	"context"
	"fmt"
	"io"

	rootpkg "github.com/getpup/codegen"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

// NewSerialCommand creates the serial command group.
func NewSerialCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serial",
		Short: "Inspect and maintain serial counters",
	}

	cmd.AddCommand(newSerialNextCommand(rootOpts))
	cmd.AddCommand(newSerialRangeCommand(rootOpts))
	cmd.AddCommand(newSerialResetCommand(rootOpts))
	cmd.AddCommand(newSerialResetAllCommand(rootOpts))
	cmd.AddCommand(newSerialResetPreviewCommand(rootOpts))
	cmd.AddCommand(newSerialGetCommand(rootOpts))
	cmd.AddCommand(newSerialSetCommand(rootOpts))
	cmd.AddCommand(newSerialStatusCommand(rootOpts))
	return cmd
}

// withApp opens the service for the duration of fn.
func withApp(cmd *cobra.Command, rootOpts *RootOptions, fn func(ctx context.Context, a *app, out io.Writer) error) error {
	a, err := openApp(cmd.Context(), rootOpts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(cmd.Context(), a, cmd.OutOrStdout())
}

func policyFlag(cmd *cobra.Command) *string {
	return cmd.Flags().String("policy", string(rootpkg.ResetNone), "reset policy (none|daily|monthly|yearly)")
}

// target parses "<rule-id> <segment-index>" plus the policy flag.
func target(args []string, policy string) (string, int, rootpkg.ResetPolicy, error) {
	idx, err := parseSegmentIndex(args[1])
	if err != nil {
		return "", 0, "", err
	}
	p, err := rootpkg.ParseResetPolicy(policy)
	if err != nil {
		return "", 0, "", err
	}
	return args[0], idx, p, nil
}

func printValue(rootOpts *RootOptions, out io.Writer, value int64) error {
	return emit(rootOpts, out, map[string]int64{"value": value}, func() error {
		_, err := fmt.Fprintln(out, value)
		return err
	})
}

func newSerialNextCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "next <rule-id> <segment-index>",
		Short: "Allocate the next value of a serial segment",
		Args:  cobra.ExactArgs(2),
	}
	policy := policyFlag(cmd)
	start := cmd.Flags().Int64("start", rootpkg.DefaultSerialStart, "first value of a new window")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ruleID, idx, p, err := target(args, *policy)
		if err != nil {
			return err
		}
		return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out io.Writer) error {
			value, err := a.svc.NextSerial(ctx, ruleID, idx, p, *start)
			if err != nil {
				return err
			}
			return printValue(rootOpts, out, value)
		})
	}
	return cmd
}

func newSerialRangeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "range <rule-id> <segment-index> <count>",
		Short: "Reserve a block of consecutive values",
		Args:  cobra.ExactArgs(3),
	}
	policy := policyFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ruleID, idx, p, err := target(args, *policy)
		if err != nil {
			return err
		}
		count, err := cast.ToInt64E(args[2])
		if err != nil {
			return fmt.Errorf("invalid count %q", args[2])
		}
		return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out io.Writer) error {
			r, err := a.svc.AllocateSerialRange(ctx, ruleID, idx, p, count)
			if err != nil {
				return err
			}
			return emit(rootOpts, out, map[string]int64{"start": r.Start, "end": r.End}, func() error {
				_, err := fmt.Fprintf(out, "%d-%d\n", r.Start, r.End)
				return err
			})
		})
	}
	return cmd
}

func newSerialResetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset <rule-id> <segment-index>",
		Short: "Reset the counter of one serial segment for the current window",
		Args:  cobra.ExactArgs(2),
	}
	policy := policyFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ruleID, idx, p, err := target(args, *policy)
		if err != nil {
			return err
		}
		return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out io.Writer) error {
			return a.svc.ResetSerial(ctx, ruleID, idx, p)
		})
	}
	return cmd
}

func printRemoved(rootOpts *RootOptions, out io.Writer, n int) error {
	return emit(rootOpts, out, map[string]int{"removed": n}, func() error {
		_, err := fmt.Fprintf(out, "removed %d counter(s)\n", n)
		return err
	})
}

func newSerialResetAllCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-all <rule-id>",
		Short: "Reset every counter of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out io.Writer) error {
				n, err := a.svc.ResetAllSerials(ctx, args[0])
				if err != nil {
					return err
				}
				return printRemoved(rootOpts, out, n)
			})
		},
	}
}

func newSerialResetPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset-preview",
		Short: "Reset the shared preview counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out io.Writer) error {
				n, err := a.svc.ResetPreviewSerials(ctx)
				if err != nil {
					return err
				}
				return printRemoved(rootOpts, out, n)
			})
		},
	}
}

func newSerialGetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <rule-id> <segment-index>",
		Short: "Print the last value handed out in the current window",
		Args:  cobra.ExactArgs(2),
	}
	policy := policyFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ruleID, idx, p, err := target(args, *policy)
		if err != nil {
			return err
		}
		return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out io.Writer) error {
			value, err := a.svc.GetSerialValue(ctx, ruleID, idx, p)
			if err != nil {
				return err
			}
			return printValue(rootOpts, out, value)
		})
	}
	return cmd
}

func newSerialSetCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <rule-id> <segment-index> <value>",
		Short: "Overwrite a counter; the next allocation returns value+1",
		Args:  cobra.ExactArgs(3),
	}
	policy := policyFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ruleID, idx, p, err := target(args, *policy)
		if err != nil {
			return err
		}
		value, err := cast.ToInt64E(args[2])
		if err != nil {
			return fmt.Errorf("invalid value %q", args[2])
		}
		return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out io.Writer) error {
			return a.svc.SetSerialValue(ctx, ruleID, idx, p, value)
		})
	}
	return cmd
}

func newSerialStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status <rule-id>",
		Short: "List the live counters of a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app, out io.Writer) error {
				status, err := a.svc.SerialStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return emit(rootOpts, out, status, func() error {
					for _, s := range status {
						fmt.Fprintf(out, "%s\t%d\t%s\n", s.Key, s.CurrentValue, s.Policy)
					}
					return nil
				})
			})
		},
	}
}
