package domain

import "time"

// ============================================================
// Health & metrics snapshots
// ============================================================

// HealthStatus is the last-known view of the backend, overwritten on each
// check. Single process-wide instance owned by the health monitor.
type HealthStatus struct {
	Healthy       bool      `json:"is_healthy"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	LastError     string    `json:"last_error,omitempty"`
}

// HealthEnvelope is returned by GET /healthz.
type HealthEnvelope struct {
	Status        string `json:"status"` // healthy, unhealthy
	Message       string `json:"message,omitempty"`
	BackendURL    string `json:"backend_url,omitempty"`
	LastCheckedAt string `json:"last_checked_at,omitempty"`
	Timestamp     string `json:"timestamp"`
}

// NewHealthEnvelope maps a health status into the wire shape.
func NewHealthEnvelope(s HealthStatus, backendURL string) HealthEnvelope {
	env := HealthEnvelope{
		Status:     "healthy",
		BackendURL: backendURL,
		Timestamp:  time.Now().Format(time.RFC3339),
	}
	if !s.Healthy {
		env.Status = "unhealthy"
		env.Message = s.LastError
	}
	if !s.LastCheckedAt.IsZero() {
		env.LastCheckedAt = s.LastCheckedAt.Format(time.RFC3339)
	}
	return env
}

// GatewayMetrics is returned by GET /v1/metrics/gateway.
type GatewayMetrics struct {
	TotalRequests int64   `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	RetriesTotal  int64   `json:"retriesTotal"`
	CacheHitRate  float64 `json:"cacheHitRate"`
	BackendErrors int64   `json:"backendErrors"`
	Period        string  `json:"period"`
}
