package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBeforeInit(t *testing.T) {
	assert.NotPanics(t, func() {
		RecordAnalyze(context.Background(), "success", 1.2)
		RecordStage(context.Background(), "download", 0.4, nil)
	})
}

func TestInit(t *testing.T) {
	require.NoError(t, Init())

	assert.NotNil(t, AnalyzeRequestsTotal)
	assert.NotNil(t, StageDuration)
	assert.NotNil(t, DownloaderFallbackTotal)
	assert.NotPanics(t, func() {
		RecordStage(context.Background(), "extract", 0.1, errors.New("decode failed"))
		DownloaderSelectedTotal.Add(context.Background(), 1)
		PredictionsTotal.Add(context.Background(), 1)
	})
}
