package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/observability"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/service"
)

// ============================================================
// 1. Generation — POST /v1/generate
// ============================================================

func generateHandler(disp *service.Dispatcher, validator *service.ParameterValidator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/generate")
		defer span.End()

		var raw domain.RawGenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, &domain.ErrValidation{
				Code:    "invalid_body",
				Message: "invalid request body",
			})
			return
		}

		req, err := validator.Validate(raw)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.Int("params.max_length", req.Params.MaxLength))

		outcome := disp.Single(ctx, req)
		if !outcome.Succeeded() {
			writeJSON(w, statusForError(outcome.Failure.Err), domain.NewGenerateEnvelope(outcome))
			return
		}
		writeJSON(w, http.StatusOK, domain.NewGenerateEnvelope(outcome))
	}
}

// ============================================================
// 2. Quick ask — GET /v1/ask?question=...
// ============================================================

// askHandler is the query-parameter variant of generate. Parameters arrive
// as strings and go through the same validation and clamping.
func askHandler(disp *service.Dispatcher, validator *service.ParameterValidator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/ask")
		defer span.End()

		q := r.URL.Query()
		raw := domain.RawGenerationRequest{
			Question:    q.Get("question"),
			UserInput:   q.Get("user_input"),
			MaxLength:   q.Get("max_length"),
			Temperature: q.Get("temperature"),
			TopP:        q.Get("top_p"),
		}

		req, err := validator.Validate(raw)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		outcome := disp.Single(ctx, req)
		if !outcome.Succeeded() {
			writeJSON(w, statusForError(outcome.Failure.Err), domain.NewGenerateEnvelope(outcome))
			return
		}
		writeJSON(w, http.StatusOK, domain.NewGenerateEnvelope(outcome))
	}
}

// ============================================================
// 3. Batch — POST /v1/batch
// ============================================================

type batchRequest struct {
	Questions   []string `json:"questions"`
	Delay       any      `json:"delay"`
	MaxLength   any      `json:"max_length"`
	Temperature any      `json:"temperature"`
	TopP        any      `json:"top_p"`
}

func batchHandler(disp *service.Dispatcher, validator *service.ParameterValidator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/batch")
		defer span.End()

		var body batchRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, &domain.ErrValidation{
				Code:    "invalid_body",
				Message: "invalid request body",
			})
			return
		}
		span.SetAttributes(attribute.Int("batch.size", len(body.Questions)))

		params, err := validator.Params(domain.RawGenerationRequest{
			MaxLength:   body.MaxLength,
			Temperature: body.Temperature,
			TopP:        body.TopP,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		delay, err := validator.Delay(body.Delay, 0)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		outcomes, err := disp.Batch(ctx, body.Questions, delay, params)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.NewBatchEnvelope(outcomes, params))
	}
}

// ============================================================
// 4. Compare — POST /v1/compare
// ============================================================

func compareHandler(disp *service.Dispatcher, validator *service.ParameterValidator, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/compare")
		defer span.End()

		var raw domain.RawGenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			writeError(w, http.StatusBadRequest, &domain.ErrValidation{
				Code:    "invalid_body",
				Message: "invalid request body",
			})
			return
		}

		req, err := validator.Validate(raw)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		outcomes, err := disp.Compare(ctx, req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.NewCompareEnvelope(req.Question, req.Params, outcomes))
	}
}

// ============================================================
// 5. Sample — GET /v1/sample
// ============================================================

func sampleHandler(disp *service.Dispatcher, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/sample")
		defer span.End()

		pair, err := disp.Sample(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.NewSampleEnvelope(pair))
	}
}

// ============================================================
// 6. Gateway metrics snapshot — GET /v1/metrics/gateway
// ============================================================

func gatewayMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetGatewaySnapshot())
	}
}

// ============================================================
// Operational endpoints
// ============================================================

// healthzHandler probes the backend on demand and reports the result.
func healthzHandler(monitor *service.HealthMonitor, backendURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /healthz")
		defer span.End()

		status := monitor.Check(ctx)
		code := http.StatusOK
		if !status.Healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, domain.NewHealthEnvelope(status, backendURL))
	}
}

// readyzHandler reports readiness from the stored status without probing.
func readyzHandler(monitor *service.HealthMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := monitor.Current()
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// docsHandler returns a machine-readable description of the API surface.
func docsHandler() http.HandlerFunc {
	type endpoint struct {
		Method      string `json:"method"`
		Path        string `json:"path"`
		Description string `json:"description"`
	}
	type apiDocs struct {
		Service   string     `json:"service"`
		Endpoints []endpoint `json:"endpoints"`
		Timestamp string     `json:"timestamp"`
	}
	docs := apiDocs{
		Service: "qa-gateway",
		Endpoints: []endpoint{
			{"POST", "/v1/generate", "Generate an answer for a single question"},
			{"GET", "/v1/ask", "Generate an answer using query parameters"},
			{"POST", "/v1/batch", "Process up to the configured maximum of questions sequentially"},
			{"POST", "/v1/compare", "Send one question to every configured endpoint"},
			{"GET", "/v1/sample", "Fetch a canned question/answer pair"},
			{"GET", "/v1/metrics/gateway", "Gateway metrics snapshot"},
			{"GET", "/healthz", "Probe backend health"},
			{"GET", "/readyz", "Readiness from the last known health state"},
			{"GET", "/metrics", "Prometheus metrics"},
		},
	}
	return func(w http.ResponseWriter, r *http.Request) {
		d := docs
		d.Timestamp = time.Now().Format(time.RFC3339)
		writeJSON(w, http.StatusOK, d)
	}
}
