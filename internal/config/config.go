package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// Values are loaded from environment variables with sensible defaults.
type Config struct {
	// Server
	Port     int
	LogLevel string

	// Backend (Gradio-style inference service)
	BackendURL    string
	GenerateRoute string
	SampleRoute   string
	// CompareRoutes maps an endpoint identifier to a backend route,
	// e.g. primary=generate_response,secondary=generate_response_1.
	CompareRoutes map[string]string

	// Default generation parameters (process-wide, not per request)
	DefaultMaxLength   int
	DefaultTemperature float64
	DefaultTopP        float64

	// Dispatch / resilience
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryBackoff   time.Duration
	MaxConcurrency int

	// Batch pacing
	BatchDefaultDelay time.Duration
	BatchMinDelay     time.Duration
	BatchMaxQuestions int

	// HTTP surface
	APIKey       string
	RateLimitRPS float64

	// Cache (0 disables the answer cache)
	CacheTTL time.Duration

	// Health
	HealthInterval time.Duration

	// Observability
	OTLPEndpoint string
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return &Config{
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:    getEnv("GRADIO_API_URL", ""),
		GenerateRoute: getEnv("GENERATE_ROUTE", "generate_response"),
		SampleRoute:   getEnv("SAMPLE_ROUTE", "lambda"),
		CompareRoutes: parseRoutes(getEnv("COMPARE_ROUTES", "primary=generate_response,secondary=generate_response_1")),

		DefaultMaxLength:   getEnvInt("DEFAULT_MAX_LENGTH", 512),
		DefaultTemperature: getEnvFloat("DEFAULT_TEMPERATURE", 0.7),
		DefaultTopP:        getEnvFloat("DEFAULT_TOP_P", 0.9),

		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		RetryAttempts:  getEnvInt("RETRY_ATTEMPTS", 1),
		RetryBackoff:   getEnvDuration("RETRY_BACKOFF", 1*time.Second),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		BatchDefaultDelay: getEnvDuration("BATCH_DEFAULT_DELAY", 1*time.Second),
		BatchMinDelay:     getEnvDuration("BATCH_MIN_DELAY", 100*time.Millisecond),
		BatchMaxQuestions: getEnvInt("BATCH_MAX_QUESTIONS", 10),

		APIKey:       getEnv("API_KEY", ""),
		RateLimitRPS: getEnvFloat("RATE_LIMIT_RPS", 25),

		CacheTTL: getEnvDuration("CACHE_TTL", 0),

		HealthInterval: getEnvDuration("HEALTH_INTERVAL", 60*time.Second),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
	}
}

// Validate reports configuration problems that make the gateway unusable.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("GRADIO_API_URL is required")
	}
	if c.GenerateRoute == "" {
		return fmt.Errorf("GENERATE_ROUTE must not be empty")
	}
	return nil
}

// CompareRouteIDs returns the configured endpoint identifiers, sorted for
// stable logging.
func (c *Config) CompareRouteIDs() []string {
	ids := make([]string, 0, len(c.CompareRoutes))
	for id := range c.CompareRoutes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// parseRoutes parses "id=route,id=route" pairs. Malformed pairs are skipped.
func parseRoutes(s string) map[string]string {
	routes := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		id := strings.TrimSpace(parts[0])
		route := strings.TrimSpace(parts[1])
		if id == "" || route == "" {
			continue
		}
		routes[id] = route
	}
	return routes
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
