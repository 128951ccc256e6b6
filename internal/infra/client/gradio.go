// Package client implements the HTTP client for the remote inference
// backend. The backend speaks the Gradio-style REST protocol: a named route
// is invoked with POST /api/<route> and a positional "data" array, and
// answers come back in a "data" array.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
)

var tracer = otel.Tracer("infra/client")

// GradioClient calls the remote inference service. It owns the transport
// handle; each call is independent and no per-call state is kept between
// invocations. Retry policy lives in the dispatcher, not here.
type GradioClient struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewGradioClient creates a new GradioClient. The timeout bounds each
// individual backend call.
func NewGradioClient(httpClient *http.Client, baseURL string, timeout time.Duration, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *GradioClient {
	return &GradioClient{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		timeout:    timeout,
		cb:         cb,
		logger:     logger,
	}
}

type predictRequest struct {
	Data []any `json:"data"`
}

type predictResponse struct {
	Data  []json.RawMessage `json:"data"`
	Error string            `json:"error"`
}

// Invoke sends one generation request to the named backend route and
// returns the answer text. An empty or blank answer is an upstream error,
// never a success.
func (c *GradioClient) Invoke(ctx context.Context, route string, req domain.GenerationRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "GradioClient.Invoke")
	defer span.End()
	span.SetAttributes(attribute.String("backend.route", route))

	data, err := c.predict(ctx, route, []any{
		req.Question,
		req.Params.MaxLength,
		req.Params.Temperature,
		req.Params.TopP,
	})
	if err != nil {
		return "", err
	}

	if len(data) == 0 {
		return "", &domain.ErrUpstream{Message: "empty_response"}
	}
	var answer string
	if err := json.Unmarshal(data[0], &answer); err != nil {
		return "", &domain.ErrUpstream{Message: fmt.Sprintf("unexpected answer payload: %v", err)}
	}
	if strings.TrimSpace(answer) == "" {
		return "", &domain.ErrUpstream{Message: "empty_response"}
	}
	return answer, nil
}

// Sample fetches a canned question/answer pair from the backend.
func (c *GradioClient) Sample(ctx context.Context, route string) (domain.SamplePair, error) {
	ctx, span := tracer.Start(ctx, "GradioClient.Sample")
	defer span.End()

	data, err := c.predict(ctx, route, []any{})
	if err != nil {
		return domain.SamplePair{}, err
	}
	if len(data) < 2 {
		return domain.SamplePair{}, &domain.ErrUpstream{Message: "empty_response"}
	}

	var pair domain.SamplePair
	if err := json.Unmarshal(data[0], &pair.Question); err != nil {
		return domain.SamplePair{}, &domain.ErrUpstream{Message: fmt.Sprintf("unexpected sample payload: %v", err)}
	}
	if err := json.Unmarshal(data[1], &pair.Answer); err != nil {
		return domain.SamplePair{}, &domain.ErrUpstream{Message: fmt.Sprintf("unexpected sample payload: %v", err)}
	}
	return pair, nil
}

// Ping performs the lightweight liveness handshake the backend exposes at
// GET /config. Used by the health monitor only.
func (c *GradioClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/config", nil)
	if err != nil {
		return &domain.ErrConnection{Err: err}
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransportError("config", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &domain.ErrUpstream{Message: fmt.Sprintf("backend returned status %d on /config", resp.StatusCode)}
	}
	return nil
}

// predict performs one POST /api/<route> call through the circuit breaker
// and returns the raw data array.
func (c *GradioClient) predict(ctx context.Context, route string, data []any) ([]json.RawMessage, error) {
	result, err := c.cb.Execute(func() (any, error) {
		return c.doPredict(ctx, route, data)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("backend call rejected by circuit breaker", zap.String("route", route))
			return nil, &domain.ErrCircuitOpen{Service: "gradio"}
		}
		return nil, err
	}
	return result.([]json.RawMessage), nil
}

func (c *GradioClient) doPredict(ctx context.Context, route string, data []any) ([]json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(predictRequest{Data: data})
	if err != nil {
		return nil, &domain.ErrConnection{Err: err}
	}

	url := fmt.Sprintf("%s/api/%s", c.baseURL, strings.TrimPrefix(route, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ErrConnection{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(route, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &domain.ErrUpstream{Message: fmt.Sprintf("backend returned status %d", resp.StatusCode)}
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &domain.ErrUpstream{Message: fmt.Sprintf("invalid backend payload: %v", err)}
	}
	if out.Error != "" {
		return nil, &domain.ErrUpstream{Message: out.Error}
	}
	return out.Data, nil
}

// classifyTransportError maps raw transport failures into the domain
// taxonomy: deadline overruns become timeouts, everything else a
// connection error.
func classifyTransportError(route string, err error) error {
	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &nerr) && nerr.Timeout()) {
		return &domain.ErrTimeout{Operation: route}
	}
	return &domain.ErrConnection{Err: err}
}
