package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rpggio/reverie/internal/config"
	"github.com/rpggio/reverie/internal/gateway"
	"github.com/rpggio/reverie/internal/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	}))

	var backend gateway.Backend = gateway.DemoBackend{}
	if cfg.Gateway.APIKey != "" {
		gemini, err := gateway.NewGeminiBackend(context.Background(), cfg.Gateway.APIKey, cfg.Gateway.TextModel, cfg.Gateway.ImageModel)
		if err != nil {
			logger.Error("failed to create gemini backend", "error", err)
			os.Exit(1)
		}
		backend = gemini
	} else {
		logger.Warn("no API key configured, serving demo responses")
	}

	var metricsHandler http.Handler
	var recorder gateway.Recorder
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics.Namespace)
		metricsHandler = collector.Handler()
		recorder = collector
	}

	srv := gateway.NewServer(backend, gateway.Config{
		CacheTTL: cfg.Gateway.CacheTTL,
		Timeout:  cfg.Gateway.Timeout,
	}, logger, recorder)

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(metricsHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("gateway listening", "addr", addr, "backend", backend.Name())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
