package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/riandyrn/otelchi"
	otelchimetric "github.com/riandyrn/otelchi/metric"
	"go.opentelemetry.io/otel"

	"github.com/voxsense/voxsense/internal/middleware"
	"github.com/voxsense/voxsense/internal/sentry"
)

// RouterConfig controls the cross-cutting middleware around the handlers.
type RouterConfig struct {
	ServiceName    string
	AllowedOrigins []string
	// Auth protects /analyze when non-nil.
	Auth *middleware.AuthConfig
}

// NewRouter wires the HTTP surface: GET /healthcheck and POST /analyze.
func NewRouter(s *Server, cfg RouterConfig) http.Handler {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "voxsense-api"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(sentry.HTTPMiddleware)

	r.Use(otelchi.Middleware(cfg.ServiceName,
		otelchi.WithChiRoutes(r),
		otelchi.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/healthcheck"
		}),
	))

	// HTTP metrics
	metricCfg := otelchimetric.NewBaseConfig(cfg.ServiceName, otelchimetric.WithMeterProvider(otel.GetMeterProvider()))
	r.Use(otelchimetric.NewRequestDurationMillis(metricCfg))
	r.Use(otelchimetric.NewRequestInFlight(metricCfg))
	r.Use(otelchimetric.NewResponseSizeBytes(metricCfg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))

	r.Get("/healthcheck", s.HandleHealthcheck)

	r.Group(func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(middleware.AuthMiddleware(*cfg.Auth))
		}
		r.Post("/analyze", s.HandleAnalyze)
	})

	return r
}
