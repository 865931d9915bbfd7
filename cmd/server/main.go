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

	_ "github.com/joho/godotenv/autoload"

	"github.com/voxsense/voxsense/internal/api"
	"github.com/voxsense/voxsense/internal/config"
	"github.com/voxsense/voxsense/internal/logger"
	"github.com/voxsense/voxsense/internal/metrics"
	"github.com/voxsense/voxsense/internal/middleware"
	"github.com/voxsense/voxsense/internal/pipeline"
	"github.com/voxsense/voxsense/internal/sentry"
	"github.com/voxsense/voxsense/internal/telemetry"
)

func main() {
	defer sentry.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize telemetry
	shutdown, err := telemetry.InitTelemetry(ctx, cfg.ServiceName, cfg.ServiceVersion, cfg.Env, cfg.OtelExporterOTLPEndpoint, cfg.OTLPHeaders())
	if err != nil {
		slog.Warn("Failed to init telemetry", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				slog.Warn("Telemetry shutdown failed", "error", err)
			}
		}()
	}

	// Initialize Sentry
	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName, cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	} else if cfg.SentryDSN != "" {
		defer sentry.Flush(2 * time.Second)
	}

	// Initialize business metrics
	if err := metrics.Init(); err != nil {
		slog.Warn("Failed to init business metrics", "error", err)
	}

	// Initialize logger with OTel support
	slog.SetDefault(logger.New(cfg.Env))

	// The server starts even without a classifier; /analyze reports it.
	analyzer, err := pipeline.Build(ctx, cfg)
	if err != nil {
		slog.Warn("Classifier unavailable, /analyze will answer 500 until restart", "error", err)
	}

	routerCfg := api.RouterConfig{
		ServiceName:    cfg.ServiceName,
		AllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if cfg.AuthEnabled() {
		routerCfg.Auth = &middleware.AuthConfig{Secret: cfg.AuthJWTSecret, Issuer: cfg.AuthIssuer}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(api.NewServer(analyzer), routerCfg),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.PipelineTimeout + 30*time.Second,
	}

	go func() {
		slog.Info("Starting server",
			"port", cfg.Port,
			"env", cfg.Env,
			"cors_origins", cfg.CORSAllowedOrigins,
			"auth", cfg.AuthEnabled(),
			"model_loaded", analyzer.Loaded())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.PipelineTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
