package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/voxsense/voxsense/internal/errors"
)

func writeSegment(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segment.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF....WAVEfmt "), 0644))
	return path
}

// sidecar serves /health and answers /predict with the given JSON body.
func sidecar(t *testing.T, predictStatus int, predictBody string) (*httptest.Server, *[]byte, *http.Header) {
	t.Helper()
	var uploaded []byte
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/predict":
			headers = r.Header.Clone()
			file, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			uploaded, _ = io.ReadAll(file)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(predictStatus)
			_, _ = w.Write([]byte(predictBody))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &uploaded, &headers
}

func TestPredict_Logits(t *testing.T) {
	srv, uploaded, headers := sidecar(t, http.StatusOK, `{"logits":[-1.0, 1.0]}`)
	g := NewHTTPGateway(srv.URL+"/", "secret", 5*time.Second)

	segment := writeSegment(t)
	pred, err := g.Predict(context.Background(), segment)
	require.NoError(t, err)

	assert.Equal(t, LabelFemale, pred.Gender)
	assert.InDelta(t, 0.1192, pred.Male, 0.0001)
	assert.InDelta(t, 0.8808, pred.Female, 0.0001)
	assert.InDelta(t, 1.0, pred.Male+pred.Female, 1e-9)

	assert.Equal(t, "RIFF....WAVEfmt ", string(*uploaded))
	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
}

func TestPredict_Probabilities(t *testing.T) {
	srv, _, headers := sidecar(t, http.StatusOK, `{"probabilities":{"male":0.7,"female":0.3}}`)
	g := NewHTTPGateway(srv.URL, "", 5*time.Second)

	pred, err := g.Predict(context.Background(), writeSegment(t))
	require.NoError(t, err)

	assert.Equal(t, Prediction{Gender: LabelMale, Male: 0.7, Female: 0.3}, pred)
	assert.Empty(t, headers.Get("Authorization"))
}

func TestPredict_LabelFromSidecar(t *testing.T) {
	srv, _, _ := sidecar(t, http.StatusOK, `{"probabilities":{"male":0.5,"female":0.5},"label":"Female"}`)
	g := NewHTTPGateway(srv.URL, "", 5*time.Second)

	pred, err := g.Predict(context.Background(), writeSegment(t))
	require.NoError(t, err)
	assert.Equal(t, LabelFemale, pred.Gender)
}

func TestPredict_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"server error", http.StatusInternalServerError, `model crashed`, "classifier returned 500: model crashed"},
		{"not json", http.StatusOK, `<html>`, "failed to decode classifier response"},
		{"empty", http.StatusOK, `{}`, "neither logits nor probabilities"},
		{"wrong logit count", http.StatusOK, `{"logits":[1,2,3]}`, "expected 2 logits, got 3"},
		{"bad label", http.StatusOK, `{"logits":[1,2],"label":"robot"}`, `unknown label "robot"`},
		{"bad probability", http.StatusOK, `{"probabilities":{"male":1.5,"female":-0.5}}`, "within [0, 1]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := sidecar(t, tt.status, tt.body)
			g := NewHTTPGateway(srv.URL, "", 5*time.Second)

			_, err := g.Predict(context.Background(), writeSegment(t))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInference), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestPredict_MissingSegment(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	g := NewHTTPGateway(srv.URL, "", time.Second)
	_, err := g.Predict(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeFileNotFound))
	assert.Zero(t, calls)
}

func TestLoad(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv, _, _ := sidecar(t, http.StatusOK, `{}`)
		g, err := Load(context.Background(), srv.URL, "", time.Second)
		require.NoError(t, err)
		assert.NotNil(t, g)
	})

	t.Run("unhealthy", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "weights missing"})
		}))
		defer srv.Close()

		g, err := Load(context.Background(), srv.URL, "", time.Second)
		require.Error(t, err)
		assert.Nil(t, g)
		assert.Contains(t, err.Error(), "503")
		assert.Contains(t, err.Error(), "weights missing")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := Load(context.Background(), url, "", time.Second)
		require.Error(t, err)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "CLASSIFIER_UNREACHABLE", appErr.Code())
	})

	t.Run("not configured", func(t *testing.T) {
		_, err := Load(context.Background(), "  ", "", time.Second)
		require.Error(t, err)
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, "CLASSIFIER_NOT_CONFIGURED", appErr.Code())
	})
}
