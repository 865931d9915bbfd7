package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ProbeResult is the subset of ffprobe output the pipeline logs about a clip.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeStream describes a single stream in the container.
type ProbeStream struct {
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Duration   string `json:"duration"`
}

// ProbeFormat captures container-level metadata.
type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
}

// Prober inspects audio files with ffprobe.
type Prober struct {
	ffprobePath string
	runner      CommandRunner
}

// NewProber returns a Prober for the given binary ("ffprobe" when empty).
func NewProber(ffprobePath string, runner CommandRunner) *Prober {
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if runner == nil {
		runner = &ExecCommandRunner{}
	}
	return &Prober{ffprobePath: ffprobePath, runner: runner}
}

// Probe runs ffprobe against path and decodes its JSON report.
func (p *Prober) Probe(ctx context.Context, path string) (ProbeResult, error) {
	output, err := p.runner.CombinedOutput(ctx, p.ffprobePath,
		"-v", "error",
		"-hide_banner",
		"-show_format",
		"-show_streams",
		"-of", "json",
		"--", path,
	)
	if err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// DurationSeconds returns the container duration, or 0 when unavailable.
func (r ProbeResult) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SampleRate returns the sample rate of the first audio stream, or 0.
func (r ProbeResult) SampleRate() int {
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, "audio") {
			rate, err := strconv.Atoi(strings.TrimSpace(s.SampleRate))
			if err != nil {
				return 0
			}
			return rate
		}
	}
	return 0
}

func parseFloat(value string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
