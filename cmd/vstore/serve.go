package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vstore/internal/errors"
	"github.com/vango-dev/vstore/pkg/metrics"
	"github.com/vango-dev/vstore/pkg/server"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo stores over HTTP and WebSocket",
		Long: `Serve the demo stores.

Every store is streamed at /ws/{store} and listed at /api/stores. Actions
are plain JSON endpoints under /api.

Examples:
  vstore serve
  vstore serve --addr=:9090 --backend=file --watch
  VSTORE_SERVER_REVALIDATE_TOKEN=secret vstore serve --metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.runServe(ctx)
		},
	}

	cmd.Flags().StringP("addr", "a", ":8080", "Listen address")
	cmd.Flags().String("revalidate-token", "", "Token required by /api/revalidate")
	cmd.Flags().Bool("metrics", false, "Serve Prometheus metrics at /metrics")
	c.bind(cmd, map[string]string{
		"server.address":          "addr",
		"server.revalidate_token": "revalidate-token",
		"server.metrics":          "metrics",
	}, false)

	return cmd
}

func (c *cli) runServe(ctx context.Context) error {
	cfg, err := c.config()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Log, c.stderr)

	var collector *metrics.Collector
	if cfg.Server.Metrics {
		collector = metrics.New()
	}

	inst, err := openInstance(ctx, cfg, logger, collector)
	if err != nil {
		return err
	}
	defer func() {
		if err := inst.Close(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	opts := []server.Option{server.WithLogger(logger)}
	if collector != nil {
		opts = append(opts, server.WithMetrics(collector))
	}
	srv := server.New(inst.app, &server.Config{
		Address:         cfg.Server.Address,
		RevalidateToken: cfg.Server.RevalidateToken,
	}, opts...)

	logger.Info("vstore ready",
		"address", cfg.Server.Address,
		"backend", cfg.Storage.Backend,
		"stores", inst.app.StoreNames(),
	)
	if err := srv.Run(ctx); err != nil {
		return errors.FromError(err, "E301").WithSubject(cfg.Server.Address)
	}
	return nil
}
