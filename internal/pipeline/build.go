package pipeline

import (
	"context"
	"log/slog"

	"github.com/voxsense/voxsense/internal/config"
	"github.com/voxsense/voxsense/internal/deps"
	"github.com/voxsense/voxsense/internal/services/audio"
	"github.com/voxsense/voxsense/internal/services/classifier"
	"github.com/voxsense/voxsense/internal/services/download"
)

// Build assembles the production pipeline from cfg. It reports missing
// binaries and loads the classifier. A classifier that fails to load is
// logged and returned as the error, but the pipeline is still returned so
// callers can serve "model not loaded" responses.
func Build(ctx context.Context, cfg *config.Config) (*Pipeline, error) {
	fetcher := download.NewFetcher(cfg.Download.Primary, cfg.Download.Secondary,
		download.WithSectionSeconds(cfg.Download.SectionSeconds),
	)
	var downloaders []string
	for _, strategy := range fetcher.Strategies() {
		downloaders = append(downloaders, strategy.Binary)
	}
	deps.Report(slog.Default(), deps.CheckBinaries(
		deps.Requirements(cfg.Segment.FFmpeg, cfg.Segment.FFprobe, downloaders...),
	))

	extractor := audio.NewSegmentExtractor(audio.WithFFmpegPath(cfg.Segment.FFmpeg))
	prober := audio.NewProber(cfg.Segment.FFprobe, nil)

	// Keep the interface nil on failure; a typed nil would look loaded.
	var gateway classifier.Gateway
	gw, loadErr := classifier.Load(ctx, cfg.ClassifierURL, cfg.ClassifierAPIKey, cfg.ClassifierTimeout)
	if loadErr != nil {
		slog.Error("Error loading model", "url", cfg.ClassifierURL, "error", loadErr)
	} else {
		gateway = gw
	}

	p := New(fetcher, extractor, gateway,
		WithProber(prober),
		WithWindow(Window{Start: cfg.Segment.StartTime, Duration: cfg.Segment.Duration}),
		WithTimeout(cfg.PipelineTimeout),
	)
	return p, loadErr
}
