package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/infra/observability"
)

type mockProber struct {
	mu  sync.Mutex
	err error
}

func (m *mockProber) Ping(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *mockProber) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func TestHealthMonitor_InitiallyUnhealthy(t *testing.T) {
	m := NewHealthMonitor(&mockProber{}, observability.NewMetrics(), zap.NewNop())

	status := m.Current()
	if status.Healthy {
		t.Error("expected unhealthy before first probe")
	}
	if status.LastError != "not checked yet" {
		t.Errorf("unexpected last error %q", status.LastError)
	}
	if !status.LastCheckedAt.IsZero() {
		t.Error("expected zero LastCheckedAt before first probe")
	}
}

func TestHealthMonitor_CheckUpdatesStatus(t *testing.T) {
	prober := &mockProber{}
	m := NewHealthMonitor(prober, observability.NewMetrics(), zap.NewNop())

	status := m.Check(context.Background())
	if !status.Healthy {
		t.Fatal("expected healthy after successful probe")
	}
	if status.LastCheckedAt.IsZero() {
		t.Error("expected LastCheckedAt to be set")
	}
	if got := m.Current(); got != status {
		t.Errorf("Current() = %+v, want %+v", got, status)
	}

	// A second check must strictly advance the probe timestamp.
	time.Sleep(5 * time.Millisecond)
	second := m.Check(context.Background())
	if !second.LastCheckedAt.After(status.LastCheckedAt) {
		t.Errorf("expected LastCheckedAt to advance: first %v, second %v",
			status.LastCheckedAt, second.LastCheckedAt)
	}
}

func TestHealthMonitor_Transitions(t *testing.T) {
	prober := &mockProber{}
	m := NewHealthMonitor(prober, observability.NewMetrics(), zap.NewNop())

	if s := m.Check(context.Background()); !s.Healthy {
		t.Fatal("expected healthy")
	}

	prober.setErr(errors.New("connection refused"))
	s := m.Check(context.Background())
	if s.Healthy {
		t.Fatal("expected unhealthy after probe failure")
	}
	if s.LastError != "connection refused" {
		t.Errorf("unexpected last error %q", s.LastError)
	}

	prober.setErr(nil)
	s = m.Check(context.Background())
	if !s.Healthy {
		t.Fatal("expected recovery to healthy")
	}
	if s.LastError != "" {
		t.Errorf("expected last error cleared, got %q", s.LastError)
	}
}

func TestHealthMonitor_CurrentDoesNotProbe(t *testing.T) {
	prober := &mockProber{err: errors.New("down")}
	m := NewHealthMonitor(prober, observability.NewMetrics(), zap.NewNop())

	m.Check(context.Background())
	prober.setErr(nil)

	// Current must return the stored snapshot, not re-probe.
	if s := m.Current(); s.Healthy {
		t.Error("expected stale unhealthy status until the next Check")
	}
}
