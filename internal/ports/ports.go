// Package ports declares the interfaces the pipeline depends on.
// Implementations live under infrastructure and internal/store so the
// engine stays agnostic of providers and storage backends.
package ports

import (
	"context"
	"time"

	"github.com/fintora/counsel/internal/domain"
)

// ChatClient is the single contract every answer-generating backend must
// satisfy. Implementations handle provider-specific wire formats,
// authentication, and response parsing; callers never see those details.
//
// Failure modes (network, auth, timeout, malformed response) must surface
// as a single error value, never as a partial success.
type ChatClient interface {
	// Generate sends an ordered conversation to the backend and returns a
	// single completion. The options map carries per-call settings:
	//   - "temperature": float64
	//   - "max_tokens":  int
	//   - "model":       string (override the configured model)
	//   - "system":      string (extra system instructions)
	Generate(ctx context.Context, messages []domain.Message, options map[string]any) (*domain.Completion, error)

	// EstimateTokens approximates the token count of text. Used for context
	// budgeting when no real tokenizer is available.
	EstimateTokens(text string) (int, error)

	// GetModel returns the model identifier the client is configured with.
	GetModel() string
}

// ClientRegistry resolves provider/model references to backend clients.
// The ref format is "provider/model"; a bare provider name resolves to the
// provider's default model.
type ClientRegistry interface {
	GetClient(ref string) (ChatClient, error)
}

// MetricsCollector records operational metrics for backend calls and
// pipeline stages. Implementations integrate with Prometheus or similar.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordHistogram records an observation in a named histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)
}
