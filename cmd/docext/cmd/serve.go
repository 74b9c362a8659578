package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docext/internal/server"
)

func (c *cli) newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP server for the extraction API",
		Long: `Start an HTTP server that exposes document extraction.

The server provides the following endpoints:
  POST /v1/extract  - Extract an uploaded document (multipart field "file")
  GET  /v1/info     - Pipeline configuration
  GET  /ws/extract  - WebSocket extraction with page progress
  GET  /health      - Health check endpoint
  GET  /metrics     - Prometheus metrics

Examples:
  docext serve
  docext serve --port 8080
  docext serve --host 0.0.0.0 --port 3000 --cache redis`,
		Args: cobra.NoArgs,
		RunE: c.runServe,
	}

	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 120, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	c.bind(serveCmd, "server.host", "host")
	c.bind(serveCmd, "server.port", "port")
	c.bind(serveCmd, "server.cors_origin", "cors-origin")
	c.bind(serveCmd, "server.max_upload_mb", "max-upload-size")
	c.bind(serveCmd, "server.timeout_sec", "timeout")
	c.bind(serveCmd, "server.shutdown_timeout", "shutdown-timeout")
	c.addExtractionFlags(serveCmd)

	return serveCmd
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := c.effectiveConfig(cmd)
	if err != nil {
		return err
	}
	defaults, err := cfg.ToOptions()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	p, cleanup, err := buildPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.NewServer(server.Config{
		CORSOrigin:  cfg.Server.CORSOrigin,
		MaxUploadMB: int64(cfg.Server.MaxUploadMB),
		TimeoutSec:  cfg.Server.TimeoutSec,
		Defaults:    defaults,
	}, p)

	timeout := time.Duration(cfg.Server.TimeoutSec) * time.Second
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       timeout,
		// extraction runs inside the write window
		WriteTimeout: timeout + 5*time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Starting extraction server", "host", cfg.Server.Host, "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		slog.Info("Received shutdown signal")
	}

	shutdownTimeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
		return err
	}
	slog.Info("Graceful shutdown completed")
	return nil
}
