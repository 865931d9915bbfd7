package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxsense/voxsense/internal/config"
)

func testConfig(classifierURL string) *config.Config {
	cfg := &config.Config{
		ClassifierURL:     classifierURL,
		ClassifierTimeout: time.Second,
		PipelineTimeout:   time.Minute,
	}
	cfg.SetDownloadDefaults()
	cfg.SetSegmentDefaults()
	return cfg
}

func TestBuild_ClassifierLoaded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Segment.StartTime = 2
	cfg.Segment.Duration = 4

	p, err := Build(context.Background(), cfg)
	require.NoError(t, err)
	assert.True(t, p.Loaded())
	assert.Equal(t, Window{Start: 2, Duration: 4}, p.window)
	assert.Equal(t, time.Minute, p.timeout)
	assert.NotNil(t, p.prober)
}

func TestBuild_ClassifierMissing(t *testing.T) {
	p, err := Build(context.Background(), testConfig(""))
	require.Error(t, err)
	require.NotNil(t, p)
	assert.False(t, p.Loaded(), "a failed load must not look like a loaded model")
}
