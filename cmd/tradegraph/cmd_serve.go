package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tradegraph/core/cmd/tradegraph/middleware"
	"github.com/tradegraph/core/internal/config"
	"github.com/tradegraph/core/internal/handlers"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the health and reconcile endpoints",
	Long: `Starts an HTTP server with:

  GET  /health     service status
  POST /reconcile  reconcile JSON encoded tables into a graph and both tables`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func newRouter(cfg *config.Config, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HealthHandler(cfg.Store.Backend, cfg.Analytics.GraphName, logger))
	mux.HandleFunc("/reconcile", handlers.ReconcileHandler(logger))
	return middleware.Cors(cfg.Server.AllowedOrigin, middleware.Logging(logger, mux))
}

func runServe(cmd *cobra.Command, args []string) error {
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		logger.Info("Starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
