package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/voxsense/voxsense/internal/errors"
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecCommandRunner is the production implementation using os/exec
type ExecCommandRunner struct{}

func (r *ExecCommandRunner) CombinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// SegmentExtractor cuts a time window out of a local audio file with ffmpeg.
type SegmentExtractor struct {
	ffmpegPath string
	runner     CommandRunner
	tempDir    string
}

// ExtractorOption is a functional option for configuring SegmentExtractor
type ExtractorOption func(*SegmentExtractor)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) ExtractorOption {
	return func(e *SegmentExtractor) {
		if path != "" {
			e.ffmpegPath = path
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner CommandRunner) ExtractorOption {
	return func(e *SegmentExtractor) {
		e.runner = runner
	}
}

// WithTempDir sets the directory segments are written to.
func WithTempDir(dir string) ExtractorOption {
	return func(e *SegmentExtractor) {
		e.tempDir = dir
	}
}

// NewSegmentExtractor creates a new FFmpeg-based segment extractor
func NewSegmentExtractor(opts ...ExtractorOption) *SegmentExtractor {
	e := &SegmentExtractor{
		ffmpegPath: "ffmpeg",
		runner:     &ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Extract decodes [start, start+duration) seconds of src at its native
// sample rate and writes them to a new uniquely named WAV file. A source
// shorter than the window yields whatever audio it has, without padding.
// The caller owns the returned file.
func (e *SegmentExtractor) Extract(ctx context.Context, src string, start, duration float64) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewFileNotFoundError(src, err)
		}
		return "", errors.NewDecodeError("failed to stat source audio", "SOURCE_STAT_ERROR", err)
	}
	if info.IsDir() {
		return "", errors.NewDecodeError(fmt.Sprintf("%s is a directory", src), "SOURCE_IS_DIR", nil)
	}
	if start < 0 || duration <= 0 {
		return "", errors.NewValidationError(
			fmt.Sprintf("invalid segment window start=%v duration=%v", start, duration),
			"INVALID_SEGMENT_WINDOW",
			"Use a non-negative start and a positive duration.",
		)
	}

	out, err := os.CreateTemp(e.tempDir, "voxsense-segment-*.wav")
	if err != nil {
		return "", errors.NewInternalError("failed to create segment file", "TEMP_FILE_ERROR", err)
	}
	outPath := out.Name()
	out.Close()

	// No -ar: the segment keeps the source's sample rate. -ac 1 downmixes to
	// mono, which is what the classifier's feature extraction expects.
	args := []string{
		"-hide_banner",
		"-v", "error",
		"-y",
		"-ss", formatSeconds(start),
		"-t", formatSeconds(duration),
		"-i", src,
		"-vn",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		outPath,
	}

	if output, err := e.runner.CombinedOutput(ctx, e.ffmpegPath, args...); err != nil {
		if rmErr := os.Remove(outPath); rmErr != nil && !os.IsNotExist(rmErr) {
			slog.Warn("Failed to remove partial segment", "path", outPath, "error", rmErr)
		}
		diag := strings.TrimSpace(string(output))
		if diag == "" {
			diag = err.Error()
		}
		return "", errors.NewDecodeError(fmt.Sprintf("failed to decode %s: %s", src, diag), "DECODE_FAILED", err)
	}

	return outPath, nil
}

func formatSeconds(sec float64) string {
	return strconv.FormatFloat(sec, 'f', 3, 64)
}
