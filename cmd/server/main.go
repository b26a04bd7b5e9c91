package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"glossary-review/internal/bootstrap"
	"glossary-review/internal/config"
	"glossary-review/internal/transport/rest"
)

func main() {
	rt, err := config.LoadRuntime()
	if err != nil {
		log.Fatalf("load runtime config: %v", err)
	}
	logger := bootstrap.NewLogger(rt.Log)

	if err := run(rt, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(rt *config.Runtime, logger *slog.Logger) error {
	app, err := bootstrap.New(*rt, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              rt.Server.Addr,
		Handler:           rest.NewRouter(app, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", rt.Server.Addr, "version", bootstrap.Version)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.Server.ShutdownTimeout)
	defer cancel()

	app.Jobs.Stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := app.Jobs.Wait(shutdownCtx); err != nil {
		logger.Warn("job did not finish before shutdown deadline", "error", err)
	}
	return nil
}
