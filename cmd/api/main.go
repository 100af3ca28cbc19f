package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/PratikDhanave/attendance-sync-service/internal/bootstrap"
	"github.com/PratikDhanave/attendance-sync-service/internal/config"
	"github.com/PratikDhanave/attendance-sync-service/internal/httpserver"
	"github.com/PratikDhanave/attendance-sync-service/internal/logging"
)

// main boots the service: config → logger → sink (+ schema) → HTTP server.
func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connects to the sink and applies migrations when sink.auto_migrate is set.
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialise", zap.Error(err))
	}

	router := httpserver.NewRouter(httpserver.Deps{
		APIKeys:  cfg.APIKeys,
		Sink:     app.Sink,
		Runner:   app.Runner,
		Reporter: app.Reporter,
		Purge:    app.Purge,
		Gatherer: app.Registry,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server started", zap.String("addr", srv.Addr), zap.String("sink_backend", cfg.Sink.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	// Cancels an in-flight migration; a rerun picks up where it stopped.
	app.Close(shutdownCtx)

	logger.Info("Server stopped")
}
