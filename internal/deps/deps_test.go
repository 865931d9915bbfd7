package deps

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeStub(t *testing.T, dir, name string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
	return path
}

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := writeStub(t, binDir, "present")

	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	require.Len(t, results, len(reqs))

	assert.True(t, results[0].Available)
	assert.Equal(t, present, results[0].Path)
	assert.Empty(t, results[0].Detail)

	assert.False(t, results[1].Available)
	assert.Equal(t, "clearly-not-present-binary", results[1].Command)
	assert.Contains(t, results[1].Detail, "not found")

	assert.False(t, results[2].Available)
	assert.Equal(t, "command not configured", results[2].Detail)
}

func TestCheckBinaries_ResolvesFromPath(t *testing.T) {
	binDir := t.TempDir()
	ffmpeg := writeStub(t, binDir, "ffmpeg")
	t.Setenv("PATH", binDir)

	results := CheckBinaries(Requirements("ffmpeg", "ffprobe", "yt-dlp", "youtube-dl"))
	require.Len(t, results, 4)

	assert.True(t, results[0].Available)
	assert.Equal(t, ffmpeg, results[0].Path)
	for _, s := range results[1:] {
		assert.False(t, s.Available, s.Name)
	}
}

func TestRequirements_DownloadersFormOneGroup(t *testing.T) {
	reqs := Requirements("ffmpeg", "ffprobe", "yt-dlp", "youtube-dl", "yt-dlp-nightly")
	require.Len(t, reqs, 5)

	assert.Equal(t, "Primary downloader", reqs[2].Name)
	assert.Equal(t, "Secondary downloader", reqs[3].Name)
	assert.Equal(t, "Downloader 3", reqs[4].Name)
	for _, r := range reqs[2:] {
		assert.Equal(t, "downloader", r.Group)
		assert.False(t, r.Optional)
	}

	assert.Len(t, Requirements("ffmpeg", "ffprobe"), 2)
}

func TestMissing(t *testing.T) {
	statuses := []Status{
		{Requirement: Requirement{Name: "FFmpeg"}, Available: true},
		{Requirement: Requirement{Name: "FFprobe", Optional: true}},
		{Requirement: Requirement{Name: "Primary downloader", Group: "downloader"}},
		{Requirement: Requirement{Name: "Secondary downloader", Group: "downloader"}, Available: true},
	}
	assert.Empty(t, Missing(statuses), "one downloader is enough and ffprobe is optional")

	statuses[0].Available = false
	statuses[3].Available = false
	assert.Equal(t, []string{"FFmpeg", "downloader"}, Missing(statuses))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	Report(logger, []Status{
		{Requirement: Requirement{Name: "FFmpeg", Command: "ffmpeg"}, Path: "/usr/bin/ffmpeg", Available: true},
		{Requirement: Requirement{Name: "Primary downloader", Command: "yt-dlp", Group: "downloader"}, Detail: `binary "yt-dlp" not found`},
	})

	out := buf.String()
	assert.Contains(t, out, "Dependency available")
	assert.Contains(t, out, "Dependency unavailable")
	assert.Contains(t, out, "missing=downloader")
}
