package download

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxsense/voxsense/internal/errors"
	"github.com/voxsense/voxsense/internal/metrics"
)

// Tool identifies which downloader produced an audio file.
type Tool int

const (
	ToolPrimary Tool = iota
	ToolSecondary
)

func (t Tool) String() string {
	switch t {
	case ToolPrimary:
		return "primary"
	case ToolSecondary:
		return "secondary"
	default:
		return "unknown"
	}
}

const (
	outputBase     = "audio"
	outputTemplate = outputBase + ".%(ext)s"
	maxDiagnostic  = 2000
)

// Strategy is one downloader candidate. Strategies are probed in order and
// the first one whose binary answers --version is used.
type Strategy struct {
	Tool   Tool
	Binary string
	// Sections marks binaries that understand --download-sections, letting
	// the fetch stop after the leading window instead of pulling the whole track.
	Sections bool
}

// Result is a downloaded audio track. The caller owns Dir and must call Cleanup.
type Result struct {
	Path   string
	Dir    string
	Tool   Tool
	Binary string
}

// Cleanup removes the temporary directory holding the track, or the track
// itself when no directory was recorded.
func (r *Result) Cleanup() error {
	if r == nil {
		return nil
	}
	if r.Dir != "" {
		return os.RemoveAll(r.Dir)
	}
	if r.Path != "" {
		if err := os.Remove(r.Path); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Fetcher downloads the audio track of a remote video with an external downloader.
type Fetcher struct {
	strategies     []Strategy
	runner         CommandRunner
	sectionSeconds float64
	tempRoot       string
}

// Option is a functional option for configuring Fetcher
type Option func(*Fetcher)

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner CommandRunner) Option {
	return func(f *Fetcher) {
		f.runner = runner
	}
}

// WithSectionSeconds limits section-capable downloaders to [0, seconds).
func WithSectionSeconds(seconds float64) Option {
	return func(f *Fetcher) {
		f.sectionSeconds = seconds
	}
}

// WithTempRoot sets the parent directory for per-download temp dirs.
func WithTempRoot(dir string) Option {
	return func(f *Fetcher) {
		f.tempRoot = dir
	}
}

// NewFetcher creates a Fetcher that tries primary (yt-dlp compatible, section
// aware) and then secondary (youtube-dl compatible).
func NewFetcher(primary, secondary string, opts ...Option) *Fetcher {
	f := &Fetcher{
		strategies: []Strategy{
			{Tool: ToolPrimary, Binary: primary, Sections: true},
			{Tool: ToolSecondary, Binary: secondary},
		},
		runner:         &ExecCommandRunner{},
		sectionSeconds: 10,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Strategies returns the candidates in probe order.
func (f *Fetcher) Strategies() []Strategy {
	return append([]Strategy(nil), f.strategies...)
}

// Download fetches the audio of url as a WAV file inside a fresh temp dir.
// On any error the temp dir is removed before returning.
func (f *Fetcher) Download(ctx context.Context, url string) (res *Result, err error) {
	dir, err := os.MkdirTemp(f.tempRoot, "voxsense-audio-*")
	if err != nil {
		return nil, errors.NewInternalError("failed to create temp directory", "TEMP_DIR_ERROR", err)
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				slog.Warn("Failed to remove download directory", "dir", dir, "error", rmErr)
			}
		}
	}()

	strategy, err := f.selectStrategy(ctx)
	if err != nil {
		return nil, err
	}

	args := f.args(strategy, dir, url)
	slog.Info("Downloading audio", "tool", strategy.Tool.String(), "binary", strategy.Binary, "url", url)

	stdout, stderr, runErr := f.runner.Run(ctx, strategy.Binary, args...)
	if runErr != nil {
		return nil, errors.NewDownloadError(
			fmt.Sprintf("%s failed: %s", filepath.Base(strategy.Binary), diagnostic(stdout, stderr)),
			"DOWNLOAD_FAILED",
			runErr,
		)
	}

	path, err := resolveOutput(dir)
	if err != nil {
		return nil, err
	}

	metrics.DownloaderSelectedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", strategy.Tool.String())))

	return &Result{Path: path, Dir: dir, Tool: strategy.Tool, Binary: strategy.Binary}, nil
}

// selectStrategy probes each candidate with --version and returns the first
// that answers.
func (f *Fetcher) selectStrategy(ctx context.Context) (Strategy, error) {
	var probeErrs []error
	for i, s := range f.strategies {
		if _, stderr, err := f.runner.Run(ctx, s.Binary, "--version"); err != nil {
			slog.Debug("Downloader probe failed", "binary", s.Binary, "error", err, "stderr", strings.TrimSpace(string(stderr)))
			probeErrs = append(probeErrs, fmt.Errorf("%s: %w", s.Binary, err))
			continue
		}
		if i > 0 {
			slog.Info("Primary downloader unavailable, falling back",
				"selected", s.Binary,
				"probe_errors", stderrors.Join(probeErrs...).Error())
			metrics.DownloaderFallbackTotal.Add(ctx, 1)
		}
		return s, nil
	}
	return Strategy{}, errors.NewDownloadToolUnavailableError("no downloader available", stderrors.Join(probeErrs...))
}

func (f *Fetcher) args(s Strategy, dir, url string) []string {
	args := []string{
		"-x",
		"--audio-format", "wav",
		"--audio-quality", "0",
		"--no-playlist",
		"-o", filepath.Join(dir, outputTemplate),
	}
	if s.Sections && f.sectionSeconds > 0 {
		args = append(args, "--download-sections", "*0-"+strconv.FormatFloat(f.sectionSeconds, 'f', -1, 64))
	}
	return append(args, url)
}

// resolveOutput finds the produced WAV: audio.wav first, else any *.wav.
func resolveOutput(dir string) (string, error) {
	expected := filepath.Join(dir, outputBase+".wav")
	if info, err := os.Stat(expected); err == nil && !info.IsDir() {
		return expected, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.NewDownloadError("failed to read download directory", "DOWNLOAD_DIR_ERROR", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".wav") {
			return filepath.Join(dir, entry.Name()), nil
		}
	}

	return "", errors.NewDownloadError("no output produced", "NO_OUTPUT", nil)
}

func diagnostic(stdout, stderr []byte) string {
	msg := strings.TrimSpace(string(stderr))
	if msg == "" {
		msg = strings.TrimSpace(string(stdout))
	}
	if msg == "" {
		return "no diagnostic output"
	}
	if len(msg) > maxDiagnostic {
		start := len(msg) - maxDiagnostic
		for start < len(msg) && !utf8.RuneStart(msg[start]) {
			start++
		}
		msg = msg[start:]
	}
	return msg
}
