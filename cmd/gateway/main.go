package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/config"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/handler"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/cache"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/client"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/observability"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/resilience"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/port"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/service"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend_url", cfg.BackendURL),
		zap.String("generate_route", cfg.GenerateRoute),
		zap.Strings("compare_endpoints", cfg.CompareRouteIDs()),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Int("retry_attempts", cfg.RetryAttempts),
		zap.Duration("retry_backoff", cfg.RetryBackoff),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Bool("api_key_enabled", cfg.APIKey != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "qa-gateway")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	var answerCache port.Cache[string]
	if cfg.CacheTTL > 0 {
		answerCache = cache.New[string](cfg.CacheTTL)
		logger.Info("answer cache enabled", zap.Duration("ttl", cfg.CacheTTL))
	}

	// --- Backend client ---
	cb := resilience.NewCircuitBreaker("gradio")
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	backend := client.NewGradioClient(httpClient, cfg.BackendURL, cfg.RequestTimeout, cb, logger)

	// --- Services ---
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
	}, backend, backend, answerCache, nil, metrics, logger)

	// --- Background health probing ---
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	go monitor.Run(monitorCtx, cfg.HealthInterval)

	// --- Router ---
	router := handler.NewRouter(disp, validator, monitor, metrics, cfg, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		// No write timeout: a paced batch legitimately runs for minutes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
