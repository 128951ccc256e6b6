// Package service contains the application core: parameter validation,
// request dispatch with retry/pacing policy, and backend health tracking.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/observability"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/resilience"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/port"
)

var tracer = otel.Tracer("service")

const answerCacheName = "answers"

// DispatcherConfig carries the routing and policy knobs for the dispatcher.
type DispatcherConfig struct {
	DefaultRoute      string
	CompareRoutes     map[string]string
	SampleRoute       string
	RetryAttempts     int
	RetryBackoff      time.Duration
	MaxConcurrency    int
	BatchDefaultDelay time.Duration
	BatchMinDelay     time.Duration
	BatchMaxQuestions int
}

// Dispatcher orchestrates calls to the inference backend: retry on transient
// failures, bulkhead-bounded concurrency, optional answer caching, sequential
// pacing for batches and fan-out for comparisons. All failure handling is
// value-based: a failed question yields an Outcome carrying the typed error,
// and only input-shape problems surface as returned errors.
type Dispatcher struct {
	backend  port.Invoker
	sampler  port.SampleFetcher
	cache    port.Cache[string]
	sleeper  port.Sleeper
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger
	cfg      DispatcherConfig
}

// NewDispatcher creates a dispatcher. The cache may be nil (caching
// disabled); a nil sleeper falls back to wall-clock sleeping.
func NewDispatcher(
	cfg DispatcherConfig,
	backend port.Invoker,
	sampler port.SampleFetcher,
	answerCache port.Cache[string],
	sleeper port.Sleeper,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if sleeper == nil {
		sleeper = stdSleeper{}
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Dispatcher{
		backend:  backend,
		sampler:  sampler,
		cache:    answerCache,
		sleeper:  sleeper,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics:  metrics,
		logger:   logger,
		cfg:      cfg,
	}
}

// Single dispatches one validated request against the default route.
func (d *Dispatcher) Single(ctx context.Context, req domain.GenerationRequest) domain.Outcome {
	return d.dispatch(ctx, "single", d.cfg.DefaultRoute, req)
}

// SingleOn dispatches one validated request against a named route.
func (d *Dispatcher) SingleOn(ctx context.Context, route string, req domain.GenerationRequest) domain.Outcome {
	return d.dispatch(ctx, "single", route, req)
}

// Batch processes questions strictly sequentially, preserving input order.
// One outcome is produced per question; a failed question never aborts the
// rest. The pacing delay is applied between consecutive items, not after the
// last one. An oversized batch is rejected before any backend call.
func (d *Dispatcher) Batch(ctx context.Context, questions []string, delay time.Duration, params domain.Parameters) (domain.BatchOutcome, error) {
	ctx, span := tracer.Start(ctx, "Dispatcher.Batch")
	defer span.End()
	span.SetAttributes(attribute.Int("batch.size", len(questions)))

	if len(questions) == 0 {
		return domain.BatchOutcome{}, nil
	}
	if d.cfg.BatchMaxQuestions > 0 && len(questions) > d.cfg.BatchMaxQuestions {
		return nil, &domain.ErrValidation{
			Code:    "too_many_questions",
			Message: fmt.Sprintf("maximum %d questions allowed per batch", d.cfg.BatchMaxQuestions),
		}
	}

	if delay <= 0 {
		delay = d.cfg.BatchDefaultDelay
	}
	if delay < d.cfg.BatchMinDelay {
		delay = d.cfg.BatchMinDelay
	}

	outcomes := make(domain.BatchOutcome, 0, len(questions))
	for i, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" {
			outcomes = append(outcomes, failureOutcome("", &domain.ErrValidation{
				Code:    "missing_input",
				Message: "question is empty",
			}))
		} else {
			outcomes = append(outcomes, d.dispatch(ctx, "batch", d.cfg.DefaultRoute, domain.GenerationRequest{
				Question: q,
				Params:   params,
			}))
		}

		if i < len(questions)-1 {
			if err := d.sleeper.Sleep(ctx, delay); err != nil {
				d.logger.Warn("batch pacing interrupted", zap.Error(err))
			}
		}
	}
	return outcomes, nil
}

// Compare fans the same request out to every configured compare endpoint
// concurrently. Each endpoint's failure is isolated in its own outcome.
func (d *Dispatcher) Compare(ctx context.Context, req domain.GenerationRequest) (domain.ComparisonOutcome, error) {
	ctx, span := tracer.Start(ctx, "Dispatcher.Compare")
	defer span.End()

	if len(d.cfg.CompareRoutes) == 0 {
		return nil, &domain.ErrValidation{
			Code:    "no_endpoints",
			Message: "no compare endpoints configured",
		}
	}

	outcomes := make(domain.ComparisonOutcome, len(d.cfg.CompareRoutes))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for id, route := range d.cfg.CompareRoutes {
		id, route := id, route
		g.Go(func() error {
			// Failures land in the outcome map; never short-circuit
			// the other endpoints.
			o := d.dispatch(gctx, "compare", route, req)
			mu.Lock()
			outcomes[id] = o
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return outcomes, nil
}

// Sample fetches a canned question/answer pair from the backend.
func (d *Dispatcher) Sample(ctx context.Context) (domain.SamplePair, error) {
	ctx, span := tracer.Start(ctx, "Dispatcher.Sample")
	defer span.End()

	if d.sampler == nil || d.cfg.SampleRoute == "" {
		return domain.SamplePair{}, &domain.ErrConfiguration{Message: "no sample route configured"}
	}

	pair, err := d.sampler.Sample(ctx, d.cfg.SampleRoute)
	if err != nil {
		d.metrics.IncrBackendError(domain.ErrorKind(err))
		return domain.SamplePair{}, err
	}
	return pair, nil
}

// dispatch runs one request against one route: cache lookup, bulkhead
// admission, the backend call with at most cfg.RetryAttempts transient
// retries, and metrics for every outcome.
func (d *Dispatcher) dispatch(ctx context.Context, operation, route string, req domain.GenerationRequest) domain.Outcome {
	ctx, span := tracer.Start(ctx, "Dispatcher.dispatch")
	defer span.End()
	span.SetAttributes(
		attribute.String("dispatch.operation", operation),
		attribute.String("backend.route", route),
	)

	if d.backend == nil {
		d.metrics.IncrRequest("error")
		return failureOutcome(req.Question, &domain.ErrConfiguration{Message: "no backend configured"})
	}

	start := time.Now()
	defer func() {
		d.metrics.RecordRequestDuration(operation, time.Since(start))
	}()

	cacheKey := answerCacheKey(route, req)
	if d.cache != nil {
		if answer, ok := d.cache.Get(cacheKey); ok {
			d.metrics.IncrCacheHit(answerCacheName)
			d.metrics.IncrRequest("success")
			return domain.Outcome{Result: &domain.GenerationResult{
				ID:        uuid.New().String(),
				Question:  req.Question,
				Answer:    answer,
				Params:    req.Params,
				Timestamp: time.Now().UTC(),
				ElapsedMs: time.Since(start).Milliseconds(),
			}}
		}
		d.metrics.IncrCacheMiss(answerCacheName)
	}

	var answer string
	retryCfg := resilience.Config{
		MaxRetries:     d.cfg.RetryAttempts,
		InitialBackoff: d.cfg.RetryBackoff,
	}
	attempts, err := resilience.RetryWithBackoff(ctx, retryCfg, domain.IsTransient, func() error {
		if err := d.bulkhead.Acquire(ctx); err != nil {
			return err
		}
		defer d.bulkhead.Release()

		d.metrics.IncrBackendCall(route)
		got, callErr := d.backend.Invoke(ctx, route, req)
		if callErr != nil {
			return callErr
		}
		answer = got
		return nil
	})
	d.metrics.IncrRetries(attempts - 1)

	if err != nil {
		d.metrics.IncrBackendError(domain.ErrorKind(err))
		d.metrics.IncrRequest("error")
		d.logger.Warn("dispatch failed",
			zap.String("operation", operation),
			zap.String("route", route),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return failureOutcome(req.Question, err)
	}

	if d.cache != nil {
		d.cache.Set(cacheKey, answer)
	}
	d.metrics.IncrRequest("success")

	return domain.Outcome{Result: &domain.GenerationResult{
		ID:        uuid.New().String(),
		Question:  req.Question,
		Answer:    answer,
		Params:    req.Params,
		Attempts:  attempts,
		Timestamp: time.Now().UTC(),
		ElapsedMs: time.Since(start).Milliseconds(),
	}}
}

func answerCacheKey(route string, req domain.GenerationRequest) string {
	return fmt.Sprintf("%s|%d|%.3f|%.3f|%s",
		route, req.Params.MaxLength, req.Params.Temperature, req.Params.TopP, req.Question)
}

func failureOutcome(question string, err error) domain.Outcome {
	return domain.Outcome{Failure: &domain.GenerationFailure{
		Question:  question,
		Message:   err.Error(),
		Err:       err,
		Timestamp: time.Now().UTC(),
	}}
}

// stdSleeper paces with the wall clock but aborts on context cancellation.
type stdSleeper struct{}

func (stdSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
