package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/getpup/codegen/metrics"
	"github.com/spf13/cobra"
)

// NewServeMetricsCommand creates the serve-metrics command.
func NewServeMetricsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve-metrics",
		Short: "Expose /metrics and /healthz and run housekeeping until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serveMetrics(ctx, cmd, rootOpts)
		},
	}

	cmd.Flags().String("addr", ":9090", "listen address")
	_ = rootOpts.v.BindPFlag(keyMetricsAddr, cmd.Flags().Lookup("addr"))
	return cmd
}

func serveMetrics(ctx context.Context, cmd *cobra.Command, rootOpts *RootOptions) error {
	a, err := openApp(ctx, rootOpts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	server := metrics.NewServer(rootOpts.v.GetString(keyMetricsAddr), a.health)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "serving metrics on %s (backend: %s)\n", server.Addr(), a.backend)

	housekeeping := make(chan error, 1)
	go func() {
		housekeeping <- a.svc.Start(ctx)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-housekeeping:
	case runErr = <-serverFailed(ctx, server):
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return runErr
}

// serverFailed delivers the first serving error of server.
func serverFailed(ctx context.Context, server *metrics.Server) <-chan error {
	failed := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := server.Err(); err != nil {
					failed <- err
					return
				}
			}
		}
	}()
	return failed
}
