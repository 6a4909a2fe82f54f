package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammEngine/internal/api"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the pool engine over HTTP",
		RunE:  withBackend(true, runServe),
	}
	cmd.Flags().String("listen", ":8080", "HTTP listen address")
	cmd.Flags().Duration("save-interval", 30*time.Second, "local state save interval (file backend only)")
	return cmd
}

func runServe(cmd *cobra.Command, b *backend, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              b.cfg.Listen,
		Handler:           api.NewRouter(b.svc, b.registry, b.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	backendName := "file"
	if b.pg != nil {
		backendName = "postgres"
	}
	b.logger.Info("server start",
		zap.String("listen", b.cfg.Listen),
		zap.String("backend", backendName),
		zap.String("clock", b.cfg.Clock),
		zap.String("journal", b.cfg.Journal),
	)

	interval, _ := cmd.Flags().GetDuration("save-interval")
	var tick <-chan time.Time
	if b.snapshots != nil && interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-tick:
			if err := b.Save(); err != nil {
				b.logger.Warn("save state failed", zap.Error(err))
			}
		case <-ctx.Done():
			b.logger.Info("server shutdown")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		}
	}
}
