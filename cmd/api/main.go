// Command api serves the at-bat game over HTTP.
//
// Startup is all-or-nothing: configuration, the scenario table, the
// classifier and the session store must all load before the listener opens.
// SIGINT or SIGTERM drains in-flight requests, stops the background jobs and
// closes the store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"atbat/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "atbat-api: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logger := newLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting",
		"environment", cfg.Environment,
		"build", cfg.Build.String(),
		"session_store", cfg.Session.Store,
		"remote_model", cfg.Model.Remote(),
	)

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return serve(ctx, a, cfg, logger)
}

// serve runs the listener and background jobs in one errgroup. The group
// unwinds when ctx is cancelled or the listener fails; server resources are
// released after every goroutine has returned.
func serve(ctx context.Context, a *app, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           a.server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, job := range a.background {
		g.Go(func() error {
			job(gctx)
			return nil
		})
	}
	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("draining connections", "timeout", cfg.Server.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("connection drain incomplete", "error", err)
		}
		return nil
	})

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(closeCtx); err != nil {
		logger.Error("releasing resources failed", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if runErr == nil {
		logger.Info("stopped")
	}
	return runErr
}

// newLogger returns the JSON logger for the service. Unknown levels fall
// back to info.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})).
		With("service", "atbat-api")
}
