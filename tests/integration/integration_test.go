package integration_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/config"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/handler"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/client"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/observability"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/resilience"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/service"
)

// newBackend spins up a fake inference service speaking the Gradio-style
// protocol: POST /api/<route> with a positional data array, GET /config for
// liveness.
func newBackend(t *testing.T, flakyFirstCall *atomic.Bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/config" {
			w.Write([]byte(`{}`))
			return
		}

		var body struct {
			Data []any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		switch r.URL.Path {
		case "/api/generate_response":
			if flakyFirstCall != nil && flakyFirstCall.CompareAndSwap(true, false) {
				// Simulate one transient failure; the gateway retries.
				if hj, ok := w.(http.Hijacker); ok {
					conn, _, _ := hj.Hijack()
					conn.Close()
				}
				return
			}
			question, _ := body.Data[0].(string)
			json.NewEncoder(w).Encode(map[string]any{"data": []string{"primary: " + question}})
		case "/api/generate_response_1":
			question, _ := body.Data[0].(string)
			json.NewEncoder(w).Encode(map[string]any{"data": []string{"secondary: " + question}})
		case "/api/lambda":
			json.NewEncoder(w).Encode(map[string]any{"data": []string{"what is a monad?", "a monoid in the category of endofunctors"}})
		default:
			http.NotFound(w, r)
		}
	}))
}

func newGateway(t *testing.T, backendURL string) http.Handler {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	cfg := &config.Config{
		BackendURL:    backendURL,
		GenerateRoute: "generate_response",
		CompareRoutes: map[string]string{"primary": "generate_response", "secondary": "generate_response_1"},
		SampleRoute:   "lambda",

		DefaultMaxLength:   512,
		DefaultTemperature: 0.7,
		DefaultTopP:        0.9,

		RequestTimeout: 5 * time.Second,
		RetryAttempts:  1,
		RetryBackoff:   time.Millisecond,
		MaxConcurrency: 8,

		BatchDefaultDelay: time.Millisecond,
		BatchMinDelay:     time.Millisecond,
		BatchMaxQuestions: 10,

		RateLimitRPS: 1000,
	}

	cb := resilience.NewCircuitBreaker("integration")
	backend := client.NewGradioClient(&http.Client{}, backendURL, cfg.RequestTimeout, cb, logger)

	validator := service.NewParameterValidator(domain.Parameters{
		MaxLength:   cfg.DefaultMaxLength,
		Temperature: cfg.DefaultTemperature,
		TopP:        cfg.DefaultTopP,
	})
	monitor := service.NewHealthMonitor(backend, metrics, logger)

	disp := service.NewDispatcher(service.DispatcherConfig{
		DefaultRoute:      cfg.GenerateRoute,
		CompareRoutes:     cfg.CompareRoutes,
		SampleRoute:       cfg.SampleRoute,
		RetryAttempts:     cfg.RetryAttempts,
		RetryBackoff:      cfg.RetryBackoff,
		MaxConcurrency:    cfg.MaxConcurrency,
		BatchDefaultDelay: cfg.BatchDefaultDelay,
		BatchMinDelay:     cfg.BatchMinDelay,
		BatchMaxQuestions: cfg.BatchMaxQuestions,
	}, backend, backend, nil, nil, metrics, logger)

	return handler.NewRouter(disp, validator, monitor, metrics, cfg, logger)
}

// TestIntegration_FullFlow exercises the gateway against a fake backend:
// single generation, batch ordering, comparison fan-out, sample, and health.
func TestIntegration_FullFlow(t *testing.T) {
	backend := newBackend(t, nil)
	defer backend.Close()

	gateway := newGateway(t, backend.URL)

	t.Run("generate", func(t *testing.T) {
		body := bytes.NewBufferString(`{"question": "what is Go?", "max_length": 100}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", body)
		rec := httptest.NewRecorder()
		gateway.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var env domain.GenerateEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		if env.Response != "primary: what is Go?" {
			t.Errorf("unexpected response %q", env.Response)
		}
		if env.Attempts != 1 {
			t.Errorf("expected 1 attempt, got %d", env.Attempts)
		}
	})

	t.Run("ask", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/ask?question=hi", nil)
		rec := httptest.NewRecorder()
		gateway.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("batch preserves order", func(t *testing.T) {
		body := bytes.NewBufferString(`{"questions": ["one", "two", "three"], "delay": 0.001}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/batch", body)
		rec := httptest.NewRecorder()
		gateway.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var env domain.BatchEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		if env.Status != domain.StatusCompleted {
			t.Errorf("expected completed, got %q", env.Status)
		}
		want := []string{"primary: one", "primary: two", "primary: three"}
		for i, entry := range env.Results {
			if entry.Response != want[i] {
				t.Errorf("result %d: expected %q, got %q", i, want[i], entry.Response)
			}
		}
	})

	t.Run("compare hits both endpoints", func(t *testing.T) {
		body := bytes.NewBufferString(`{"question": "pick one"}`)
		req := httptest.NewRequest(http.MethodPost, "/v1/compare", body)
		rec := httptest.NewRecorder()
		gateway.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var env domain.CompareEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		if env.Responses["primary"].Response != "primary: pick one" {
			t.Errorf("unexpected primary response %+v", env.Responses["primary"])
		}
		if env.Responses["secondary"].Response != "secondary: pick one" {
			t.Errorf("unexpected secondary response %+v", env.Responses["secondary"])
		}
	})

	t.Run("sample", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/sample", nil)
		rec := httptest.NewRecorder()
		gateway.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var env domain.SampleEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		if !strings.Contains(env.SampleResponse, "monoid") {
			t.Errorf("unexpected sample response %q", env.SampleResponse)
		}
	})

	t.Run("healthz", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		gateway.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var env domain.HealthEnvelope
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("invalid response: %v", err)
		}
		if env.Status != "healthy" {
			t.Errorf("expected healthy, got %q", env.Status)
		}
	})

	t.Run("readyz after healthz probe", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		gateway.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 after a successful probe, got %d", rec.Code)
		}
	})
}

// TestIntegration_RetryOnTransientFailure drops the first connection and
// expects the gateway to recover with its single retry.
func TestIntegration_RetryOnTransientFailure(t *testing.T) {
	var flaky atomic.Bool
	flaky.Store(true)

	backend := newBackend(t, &flaky)
	defer backend.Close()

	gateway := newGateway(t, backend.URL)

	body := bytes.NewBufferString(`{"question": "retry me"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", body)
	rec := httptest.NewRecorder()
	gateway.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after retry, got %d: %s", rec.Code, rec.Body.String())
	}
	var env domain.GenerateEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if env.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", env.Attempts)
	}
	if env.Response != "primary: retry me" {
		t.Errorf("unexpected response %q", env.Response)
	}
}

// TestIntegration_BackendDown verifies the error envelope when the backend
// is unreachable.
func TestIntegration_BackendDown(t *testing.T) {
	backend := newBackend(t, nil)
	backend.Close() // unreachable from the start

	gateway := newGateway(t, backend.URL)

	body := bytes.NewBufferString(`{"question": "anyone there?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", body)
	rec := httptest.NewRecorder()
	gateway.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var env domain.GenerateEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid response: %v", err)
	}
	if env.ErrorKind != "connection_error" {
		t.Errorf("expected connection_error, got %q", env.ErrorKind)
	}
}
