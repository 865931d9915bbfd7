package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/voxsense/voxsense/internal/errors"
	"github.com/voxsense/voxsense/internal/logger"
	"github.com/voxsense/voxsense/internal/metrics"
	"github.com/voxsense/voxsense/internal/pipeline"
	"github.com/voxsense/voxsense/internal/sentry"
)

const (
	msgNoURL          = "No URL provided"
	msgModelNotLoaded = "Model not loaded. Please check server logs."
	prefixAudio       = "Audio processing error: "
	prefixPrediction  = "Model prediction error: "
)

// Analyzer runs the analysis pipeline for one URL.
type Analyzer interface {
	Loaded() bool
	Run(ctx context.Context, url string) (*pipeline.Result, error)
}

type Server struct {
	analyzer Analyzer
}

func NewServer(analyzer Analyzer) *Server {
	return &Server{analyzer: analyzer}
}

type AnalyzeRequest struct {
	URL string `json:"url"`
}

type Probabilities struct {
	Male   float64 `json:"male"`
	Female float64 `json:"female"`
}

type AnalyzeResponse struct {
	Gender        string        `json:"gender"`
	Probabilities Probabilities `json:"probabilities"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	requestID := requestIDFrom(ctx)
	log := slog.With("request_id", requestID)

	if s.analyzer == nil || !s.analyzer.Loaded() {
		log.ErrorContext(ctx, "Analyze called without a loaded classifier")
		metrics.RecordAnalyze(ctx, "model_not_loaded", time.Since(start).Seconds())
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: msgModelNotLoaded})
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		metrics.RecordAnalyze(ctx, "bad_request", time.Since(start).Seconds())
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgNoURL})
		return
	}
	url := strings.TrimSpace(req.URL)

	log.InfoContext(ctx, "Analyze request received", "url", url, logger.WithTraceContext(ctx))

	// Run returns only after both temp artifacts are gone.
	res, err := s.analyzer.Run(ctx, url)
	if err != nil {
		status, body, outcome := classifyError(err)
		log.ErrorContext(ctx, "Analyze failed", "url", url, "outcome", outcome, "error", err)
		sentry.CaptureError(ctx, err, map[string]string{
			"request_id": requestID,
			"outcome":    outcome,
		})
		metrics.RecordAnalyze(ctx, outcome, time.Since(start).Seconds())
		writeJSON(w, status, body)
		return
	}

	log.InfoContext(ctx, "Analyze succeeded",
		"url", url,
		"video_id", res.VideoID,
		"gender", res.Prediction.Gender,
		"duration", time.Since(start))
	metrics.RecordAnalyze(ctx, "ok", time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		Gender: res.Prediction.Gender,
		Probabilities: Probabilities{
			Male:   res.Prediction.Male,
			Female: res.Prediction.Female,
		},
	})
}

func (s *Server) HandleHealthcheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// classifyError maps a pipeline error to its HTTP status, body and metric outcome.
func classifyError(err error) (int, ErrorResponse, string) {
	if err == pipeline.ErrModelNotLoaded {
		return http.StatusInternalServerError, ErrorResponse{Error: msgModelNotLoaded}, "model_not_loaded"
	}

	stage, ok := pipeline.FailedStage(err)
	switch {
	case ok && stage == pipeline.StageClassify:
		return http.StatusInternalServerError, ErrorResponse{Error: prefixPrediction + err.Error()}, "prediction_error"
	case ok:
		return http.StatusInternalServerError, ErrorResponse{Error: prefixAudio + err.Error()}, "audio_error"
	}

	if appErr, ok := errors.As(err); ok && appErr.Type == errors.ErrorTypeInference {
		return http.StatusInternalServerError, ErrorResponse{Error: prefixPrediction + err.Error()}, "prediction_error"
	}
	return http.StatusInternalServerError, ErrorResponse{Error: prefixAudio + err.Error()}, "audio_error"
}

// requestIDFrom returns the id chi's RequestID middleware assigned, or a fresh
// uuid when the handler runs outside the router.
func requestIDFrom(ctx context.Context) string {
	if id := chimiddleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
