package pipeline

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/voxsense/voxsense/internal/errors"
	"github.com/voxsense/voxsense/internal/services/audio"
	"github.com/voxsense/voxsense/internal/services/classifier"
	"github.com/voxsense/voxsense/internal/services/download"
	"github.com/voxsense/voxsense/internal/services/video"
	"github.com/voxsense/voxsense/internal/telemetry"
)

// Stage names one step of the analysis.
type Stage string

const (
	StageDownload Stage = "download"
	StageExtract  Stage = "extract"
	StageClassify Stage = "classify"
)

// StageError records which step failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage returns the stage that produced err, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if stderrors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// ErrModelNotLoaded is returned by Run when no classifier is attached.
var ErrModelNotLoaded = errors.NewInferenceError("Model not loaded. Please check server logs.", "MODEL_NOT_LOADED", nil)

// Fetcher obtains the audio track of a video as a local WAV file.
type Fetcher interface {
	Download(ctx context.Context, url string) (*download.Result, error)
}

// Extractor cuts [start, start+duration) seconds out of a local audio file.
type Extractor interface {
	Extract(ctx context.Context, src string, start, duration float64) (string, error)
}

// Prober reports metadata about an audio file.
type Prober interface {
	Probe(ctx context.Context, path string) (audio.ProbeResult, error)
}

// Window is the slice of audio handed to the classifier, in seconds.
type Window struct {
	Start    float64
	Duration float64
}

// DefaultWindow is the first ten seconds of the track.
var DefaultWindow = Window{Start: 0, Duration: 10}

// Result is the outcome of one successful analysis.
type Result struct {
	Prediction classifier.Prediction
	VideoID    string
	Tool       download.Tool
	// SegmentSeconds is the probed segment length, 0 when no prober is set.
	SegmentSeconds float64
}

// Pipeline runs download, segment extraction and classification for one URL.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	fetcher    Fetcher
	extractor  Extractor
	classifier classifier.Gateway
	prober     Prober
	window     Window
	timeout    time.Duration
}

// Option is a functional option for configuring Pipeline
type Option func(*Pipeline)

// WithProber logs segment metadata after extraction.
func WithProber(p Prober) Option {
	return func(pl *Pipeline) {
		pl.prober = p
	}
}

// WithWindow overrides the analysed segment.
func WithWindow(w Window) Option {
	return func(pl *Pipeline) {
		pl.window = w
	}
}

// WithTimeout bounds a whole run. Zero means only the caller's context applies.
func WithTimeout(d time.Duration) Option {
	return func(pl *Pipeline) {
		pl.timeout = d
	}
}

// New builds a Pipeline. gateway may be nil when the classifier failed to
// load; Run then fails with ErrModelNotLoaded.
func New(fetcher Fetcher, extractor Extractor, gateway classifier.Gateway, opts ...Option) *Pipeline {
	p := &Pipeline{
		fetcher:    fetcher,
		extractor:  extractor,
		classifier: gateway,
		window:     DefaultWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Loaded reports whether a classifier is attached.
func (p *Pipeline) Loaded() bool {
	return p != nil && p.classifier != nil
}

// Run analyses url. The downloaded track and the extracted segment are both
// removed before Run returns, whatever the outcome.
func (p *Pipeline) Run(ctx context.Context, url string) (*Result, error) {
	if !p.Loaded() {
		return nil, ErrModelNotLoaded
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	ctx, span := telemetry.Tracer(tracerName).Start(ctx, "pipeline.analyze")
	defer span.End()

	videoID, ok := video.ExtractID(url)
	recognized := video.IsYouTubeURL(url)
	span.SetAttributes(
		attribute.String("video.url", url),
		attribute.String("video.id", videoID),
		attribute.Bool("video.id_found", ok),
		attribute.Bool("video.recognized_host", recognized),
	)
	log := slog.With("url", url, "video_id", videoID)
	log.InfoContext(ctx, "Analyzing video")
	if !recognized {
		// Downloaders support many sites; only the id lookup is YouTube specific.
		log.DebugContext(ctx, "URL is not a recognised YouTube link, continuing without a video id")
	}

	res, err := p.run(ctx, log, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	res.VideoID = videoID
	span.SetAttributes(attribute.String("prediction.gender", res.Prediction.Gender))
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, log *slog.Logger, url string) (*Result, error) {
	var track *download.Result
	err := runStage(ctx, StageDownload, func(ctx context.Context) error {
		var err error
		track, err = p.fetcher.Download(ctx, url)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := track.Cleanup(); err != nil {
			log.Warn("Failed to clean up downloaded audio", "path", track.Path, "error", err)
		}
	}()
	log.InfoContext(ctx, "Audio downloaded", "path", track.Path, "tool", track.Tool.String(), "binary", track.Binary)

	var segment string
	err = runStage(ctx, StageExtract, func(ctx context.Context) error {
		var err error
		segment, err = p.extractor.Extract(ctx, track.Path, p.window.Start, p.window.Duration)
		return err
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(segment); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to remove audio segment", "path", segment, "error", err)
		}
	}()

	res := &Result{Tool: track.Tool}
	if p.prober != nil {
		if info, err := p.prober.Probe(ctx, segment); err != nil {
			log.WarnContext(ctx, "Failed to probe audio segment", "path", segment, "error", err)
		} else {
			res.SegmentSeconds = info.DurationSeconds()
			log.InfoContext(ctx, "Audio segment extracted",
				"path", segment,
				"seconds", res.SegmentSeconds,
				"sample_rate", info.SampleRate())
		}
	}

	err = runStage(ctx, StageClassify, func(ctx context.Context) error {
		var err error
		res.Prediction, err = p.classifier.Predict(ctx, segment)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.InfoContext(ctx, "Prediction complete",
		"gender", res.Prediction.Gender,
		"male", res.Prediction.Male,
		"female", res.Prediction.Female)
	return res, nil
}
