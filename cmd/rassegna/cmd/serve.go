package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/balkanpress/rassegna/internal/search"
	"github.com/balkanpress/rassegna/internal/server"
	"github.com/balkanpress/rassegna/internal/telemetry"
)

// metricsFlushInterval is how often query telemetry is persisted to the
// article database.
const metricsFlushInterval = time.Minute

func newServeCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the HTTP API server exposing search, article management
and stats endpoints.

Example:
  rassegna serve --port 8791`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), port)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (0 = configured default)")
	return cmd
}

func runServe(ctx context.Context, port int) error {
	stack, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = stack.Close() }()

	// Query telemetry shares the article database file.
	var metrics *telemetry.SearchMetrics
	if metricsStore, err := telemetry.NewSQLiteMetricsStore(stack.Articles.DB()); err == nil {
		metrics = telemetry.NewSearchMetrics(metricsStore, metricsFlushInterval)
	} else {
		slog.Warn("metrics_store_unavailable", slog.String("error", err.Error()))
		metrics = telemetry.NewSearchMetrics(nil, 0)
	}
	defer func() { _ = metrics.Close() }()

	search.WithMetrics(metrics)(stack.Engine)

	cfg := stack.Config
	if port > 0 {
		cfg.Server.Port = port
	}

	srv := server.NewServer(stack.Engine, stack.Articles, metrics, cfg.Server, cfg.Search)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case sig := <-sigCh:
		slog.Info("server_shutdown", slog.String("signal", sig.String()))
	case <-ctx.Done():
		slog.Info("server_shutdown", slog.String("signal", "context"))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	_ = metrics.Flush()
	return nil
}
