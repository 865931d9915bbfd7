package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/voxsense/voxsense/internal/api"
	"github.com/voxsense/voxsense/internal/config"
	"github.com/voxsense/voxsense/internal/logger"
	"github.com/voxsense/voxsense/internal/pipeline"
	"github.com/voxsense/voxsense/internal/sentry"
)

func main() {
	os.Exit(run())
}

func run() int {
	defer sentry.Recover()

	timeout := flag.Duration("timeout", 0, "override PIPELINE_TIMEOUT for this run")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: analyze [-timeout 2m] <video-url>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return 2
	}
	url := flag.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *timeout > 0 {
		cfg.PipelineTimeout = *timeout
	}

	// Logs go to stderr so stdout carries only the result.
	slog.SetDefault(logger.NewWithWriter(cfg.Env, os.Stderr))

	if err := sentry.Init(cfg.SentryDSN, cfg.Env, cfg.ServiceName+"-cli", cfg.ServiceVersion); err != nil {
		slog.Warn("Failed to init Sentry", "error", err)
	} else if cfg.SentryDSN != "" {
		defer sentry.Flush(2 * time.Second)
	}

	p, err := pipeline.Build(ctx, cfg)
	if err != nil {
		slog.Warn("Classifier unavailable", "error", err)
	}

	res, err := p.Run(ctx, url)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	if err != nil {
		stage, _ := pipeline.FailedStage(err)
		sentry.CaptureError(ctx, err, map[string]string{"stage": string(stage)})
		_ = enc.Encode(api.ErrorResponse{Error: err.Error()})
		return 1
	}

	_ = enc.Encode(api.AnalyzeResponse{
		Gender: res.Prediction.Gender,
		Probabilities: api.Probabilities{
			Male:   res.Prediction.Male,
			Female: res.Prediction.Female,
		},
	})
	return 0
}
