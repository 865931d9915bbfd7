package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/voxsense/voxsense/internal/errors"
	"github.com/voxsense/voxsense/internal/httpclient"
	"github.com/voxsense/voxsense/internal/metrics"
)

const (
	peerName        = "classifier"
	maxErrorBody    = 512
	maxResponseBody = 1 << 20
)

// Gateway predicts the speaker gender of a WAV segment.
type Gateway interface {
	Predict(ctx context.Context, path string) (Prediction, error)
}

// HTTPGateway talks to a model-serving sidecar over HTTP.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewHTTPGateway creates a gateway for the sidecar at baseURL.
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpclient.New(timeout),
	}
}

// Load builds the gateway and confirms the model is being served. It is
// called once at startup; the caller decides what a failure means.
func Load(ctx context.Context, baseURL, apiKey string, timeout time.Duration) (*HTTPGateway, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.NewInferenceError("CLASSIFIER_URL is not set", "CLASSIFIER_NOT_CONFIGURED", nil)
	}
	g := NewHTTPGateway(baseURL, apiKey, timeout)
	if err := g.Health(ctx); err != nil {
		return nil, err
	}
	slog.Info("Classifier loaded", "url", g.baseURL)
	return g, nil
}

// Health checks that the sidecar has its model loaded.
func (g *HTTPGateway) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(httpclient.WithPeer(ctx, peerName), http.MethodGet, g.baseURL+"/health", nil)
	if err != nil {
		return errors.NewInferenceError("failed to create health request", "CLASSIFIER_REQUEST_ERROR", err)
	}
	g.authorize(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return errors.NewInferenceError("classifier is unreachable", "CLASSIFIER_UNREACHABLE", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.NewInferenceError(
			fmt.Sprintf("classifier health check returned %d: %s", resp.StatusCode, readSnippet(resp.Body)),
			"CLASSIFIER_UNHEALTHY",
			nil,
		)
	}
	return nil
}

type predictResponse struct {
	Logits        []float64 `json:"logits"`
	Probabilities *struct {
		Male   float64 `json:"male"`
		Female float64 `json:"female"`
	} `json:"probabilities"`
	Label string `json:"label"`
}

// Predict uploads the segment at path and returns the classifier's verdict.
func (g *HTTPGateway) Predict(ctx context.Context, path string) (Prediction, error) {
	audioFile, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Prediction{}, errors.NewFileNotFoundError(path, err)
		}
		return Prediction{}, errors.NewInferenceError("failed to open segment", "SEGMENT_OPEN_ERROR", err)
	}
	defer audioFile.Close()

	// Stream the multipart body instead of buffering the segment.
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, audioFile); err != nil {
			pw.CloseWithError(err)
			return
		}
		pw.CloseWithError(writer.Close())
	}()

	req, err := http.NewRequestWithContext(httpclient.WithPeer(ctx, peerName), http.MethodPost, g.baseURL+"/predict", pr)
	if err != nil {
		pr.Close()
		return Prediction{}, errors.NewInferenceError("failed to create predict request", "CLASSIFIER_REQUEST_ERROR", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	g.authorize(req)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return Prediction{}, errors.NewInferenceError("failed to call classifier", "CLASSIFIER_UNREACHABLE", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Prediction{}, errors.NewInferenceError(
			fmt.Sprintf("classifier returned %d: %s", resp.StatusCode, readSnippet(resp.Body)),
			"CLASSIFIER_API_ERROR",
			nil,
		)
	}

	var body predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&body); err != nil {
		return Prediction{}, errors.NewInferenceError("failed to decode classifier response", "CLASSIFIER_BAD_RESPONSE", err)
	}

	pred, err := body.prediction()
	if err != nil {
		return Prediction{}, errors.NewInferenceError(err.Error(), "CLASSIFIER_BAD_RESPONSE", nil)
	}

	metrics.PredictionsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("gender", pred.Gender)))
	return pred, nil
}

func (r predictResponse) prediction() (Prediction, error) {
	var (
		pred Prediction
		err  error
	)
	switch {
	case len(r.Logits) > 0:
		pred, err = FromLogits(r.Logits)
	case r.Probabilities != nil:
		pred, err = FromProbabilities(r.Probabilities.Male, r.Probabilities.Female)
	default:
		return Prediction{}, fmt.Errorf("classifier response has neither logits nor probabilities")
	}
	if err != nil {
		return Prediction{}, err
	}

	switch label := strings.ToLower(strings.TrimSpace(r.Label)); label {
	case "":
	case LabelMale, LabelFemale:
		pred.Gender = label
	default:
		return Prediction{}, fmt.Errorf("unknown label %q", r.Label)
	}
	return pred, nil
}

func (g *HTTPGateway) authorize(req *http.Request) {
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
}

func readSnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	return strings.TrimSpace(string(b))
}
