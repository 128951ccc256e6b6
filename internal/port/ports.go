// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/sakibahmedshuva/qa-gateway-go/internal/domain"
)

// Invoker performs a single synchronous call against a backend inference
// route. Implementations classify failures into the domain error taxonomy
// and never retry on their own.
type Invoker interface {
	Invoke(ctx context.Context, route string, req domain.GenerationRequest) (string, error)
}

// SampleFetcher retrieves a canned question/answer pair from the backend.
type SampleFetcher interface {
	Sample(ctx context.Context, route string) (domain.SamplePair, error)
}

// Prober checks backend liveness with a lightweight request.
type Prober interface {
	Ping(ctx context.Context) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Sleeper abstracts pacing delays so tests can run batches without
// wall-clock waits.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
