package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var (
	meter = otel.Meter("voxsense/business")

	// Analysis metrics
	AnalyzeRequestsTotal metric.Int64Counter     = noop.Int64Counter{}
	AnalyzeDuration      metric.Float64Histogram = noop.Float64Histogram{}

	// Pipeline stage metrics
	StageDuration metric.Float64Histogram = noop.Float64Histogram{}

	// Downloader selection metrics
	DownloaderSelectedTotal metric.Int64Counter = noop.Int64Counter{}
	DownloaderFallbackTotal metric.Int64Counter = noop.Int64Counter{}

	// Classifier metrics
	PredictionsTotal metric.Int64Counter = noop.Int64Counter{}
)

// Init registers the instruments against the global meter provider. Before
// Init runs every instrument is a no-op, so recording is always safe.
func Init() error {
	meter = otel.Meter("voxsense/business")

	var err error

	AnalyzeRequestsTotal, err = meter.Int64Counter(
		"analyze.requests.total",
		metric.WithDescription("Total number of analyze requests by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	AnalyzeDuration, err = meter.Float64Histogram(
		"analyze.duration",
		metric.WithDescription("Duration of the full analyze pipeline"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return err
	}

	StageDuration, err = meter.Float64Histogram(
		"pipeline.stage.duration",
		metric.WithDescription("Duration of a single pipeline stage"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return err
	}

	DownloaderSelectedTotal, err = meter.Int64Counter(
		"downloader.selected.total",
		metric.WithDescription("Total number of downloads by selected tool"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	DownloaderFallbackTotal, err = meter.Int64Counter(
		"downloader.fallback.total",
		metric.WithDescription("Total number of times the primary downloader was unavailable"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	PredictionsTotal, err = meter.Int64Counter(
		"classifier.predictions.total",
		metric.WithDescription("Total number of predictions by label"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	return nil
}

// RecordAnalyze records one finished analyze request.
func RecordAnalyze(ctx context.Context, outcome string, seconds float64) {
	AnalyzeRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	AnalyzeDuration.Record(ctx, seconds, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordStage records the duration of one pipeline stage.
func RecordStage(ctx context.Context, stage string, seconds float64, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	StageDuration.Record(ctx, seconds, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("status", status),
	))
}
