package pipeline

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/voxsense/voxsense/internal/logger"
	"github.com/voxsense/voxsense/internal/metrics"
	"github.com/voxsense/voxsense/internal/telemetry"
)

const tracerName = "pipeline"

// runStage wraps one pipeline step in a span, times it and tags any error
// with the stage it came from.
func runStage(ctx context.Context, stage Stage, fn func(ctx context.Context) error) error {
	tracer := telemetry.Tracer(tracerName)

	ctx, span := tracer.Start(ctx, "stage:"+string(stage), trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("pipeline.stage", string(stage)))

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	metrics.RecordStage(ctx, string(stage), elapsed.Seconds(), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.ErrorContext(ctx, "Pipeline stage failed",
			"stage", stage,
			"duration", elapsed,
			"error", err,
			logger.WithTraceContext(ctx))
		return &StageError{Stage: stage, Err: err}
	}

	slog.InfoContext(ctx, "Pipeline stage finished",
		"stage", stage,
		"duration", elapsed,
		logger.WithTraceContext(ctx))
	return nil
}
