package handler

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
)

// APIKeyMiddleware rejects requests whose X-API-Key header (or api_key query
// parameter) does not match the configured key. An empty configured key
// disables the check entirely.
func APIKeyMiddleware(apiKey string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			provided := r.Header.Get("X-API-Key")
			if provided == "" {
				provided = r.URL.Query().Get("api_key")
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
				logger.Warn("auth: invalid api key",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, &domain.ErrValidation{
					Code:    "invalid_api_key",
					Message: "invalid or missing API key",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware applies a process-wide token-bucket limit. A
// non-positive rps disables limiting.
func RateLimitMiddleware(rps float64, logger *zap.Logger) func(http.Handler) http.Handler {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow() {
				logger.Warn("rate limit exceeded", zap.String("remote_addr", r.RemoteAddr))
				writeError(w, http.StatusTooManyRequests, &domain.ErrValidation{
					Code:    "rate_limited",
					Message: "too many requests",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
