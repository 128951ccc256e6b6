package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/observability"
	"github.com/sakibahmedshuva/qa-gateway-go/internal/port"
)

// HealthMonitor tracks last-known backend liveness. Until the first probe
// completes the backend is reported unhealthy, so a gateway that has never
// reached its backend never claims readiness.
type HealthMonitor struct {
	prober  port.Prober
	metrics *observability.Metrics
	logger  *zap.Logger

	mu     sync.RWMutex
	status domain.HealthStatus
}

// NewHealthMonitor creates a monitor in the initial unhealthy state.
func NewHealthMonitor(prober port.Prober, metrics *observability.Metrics, logger *zap.Logger) *HealthMonitor {
	return &HealthMonitor{
		prober:  prober,
		metrics: metrics,
		logger:  logger,
		status: domain.HealthStatus{
			Healthy:   false,
			LastError: "not checked yet",
		},
	}
}

// Check probes the backend once and updates the stored status. The probe
// runs outside the lock so Current readers are never blocked on a slow
// backend.
func (m *HealthMonitor) Check(ctx context.Context) domain.HealthStatus {
	err := m.prober.Ping(ctx)
	now := time.Now().UTC()

	status := domain.HealthStatus{Healthy: err == nil, LastCheckedAt: now}
	if err != nil {
		status.LastError = err.Error()
	}

	m.mu.Lock()
	prev := m.status.Healthy
	m.status = status
	m.mu.Unlock()

	m.metrics.SetBackendHealthy(status.Healthy)
	if prev != status.Healthy {
		if status.Healthy {
			m.metrics.IncrHealthTransition("healthy")
			m.logger.Info("backend transitioned to healthy")
		} else {
			m.metrics.IncrHealthTransition("unhealthy")
			m.logger.Warn("backend transitioned to unhealthy", zap.String("error", status.LastError))
		}
	}
	return status
}

// Current returns the stored status without probing.
func (m *HealthMonitor) Current() domain.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Run probes immediately and then on every tick until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}
