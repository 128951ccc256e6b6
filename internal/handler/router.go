// Package handler exposes the gateway's HTTP surface: generation endpoints,
// operational endpoints, and the middleware stack.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/config"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/observability"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/service"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(
	disp *service.Dispatcher,
	validator *service.ParameterValidator,
	monitor *service.HealthMonitor,
	metrics *observability.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-API-Key"},
		MaxAge:         300,
	}))
	r.Use(RateLimitMiddleware(cfg.RateLimitRPS, logger))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(monitor, cfg.BackendURL))
	r.Get("/readyz", readyzHandler(monitor))
	r.Get("/docs", docsHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(APIKeyMiddleware(cfg.APIKey, logger))

		// =============================================
		// 1. Generation
		// POST /v1/generate, GET /v1/ask
		// =============================================
		r.Post("/generate", generateHandler(disp, validator, logger))
		r.Get("/ask", askHandler(disp, validator, logger))

		// =============================================
		// 2. Batch & comparison
		// POST /v1/batch, POST /v1/compare
		// =============================================
		r.Post("/batch", batchHandler(disp, validator, logger))
		r.Post("/compare", compareHandler(disp, validator, logger))

		// =============================================
		// 3. Sample
		// GET /v1/sample
		// =============================================
		r.Get("/sample", sampleHandler(disp, logger))

		// =============================================
		// 4. Metrics snapshot
		// GET /v1/metrics/gateway
		// =============================================
		r.Get("/metrics/gateway", gatewayMetricsHandler(metrics))
	})

	return r
}
