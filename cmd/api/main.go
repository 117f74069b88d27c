package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iammrherb/authensi-smart-sub008/internal/bootstrap"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/config"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/server"
	"github.com/iammrherb/authensi-smart-sub008/internal/shared/telemetry"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		telemetry.Error("startup.failed", map[string]any{"error": err})
		os.Exit(1)
	}
	defer app.Close()

	// A missing catalog is not fatal: the service answers 503 until a reload succeeds.
	if _, err := app.Reloader.ReloadNow(ctx); err != nil {
		telemetry.Warn("startup.catalog_unavailable", map[string]any{"error": err})
	}
	go app.Reloader.Run(ctx)

	addr := server.Addr(cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		telemetry.Info("server.start", map[string]any{"addr": addr, "env": cfg.Env})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			telemetry.Error("server.failed", map[string]any{"error": err})
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		telemetry.Error("server.shutdown_failed", map[string]any{"error": err})
	}
	telemetry.Info("server.stopped", nil)
}
