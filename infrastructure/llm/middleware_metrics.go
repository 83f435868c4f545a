package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/ports"
)

// metricsLLM records latency, request counts, and token usage per provider
// call for operational monitoring.
type metricsLLM struct {
	next      CoreLLM
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware records request metrics through the given collector.
// A nil collector disables recording without changing request behavior.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, provider: provider, collector: collector}
	}
}

func (m *metricsLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	start := time.Now()
	resp, err := m.next.DoRequest(ctx, messages, opts)

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"status":   statusLabel(ctx, err),
	}

	if m.collector != nil {
		m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("llm_requests_total", 1, labels)

		if err == nil {
			labels["token_type"] = "input"
			m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensIn), labels)

			labels["token_type"] = "output"
			m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensOut), labels)
		}
	}

	return resp, err
}

func statusLabel(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return "timeout"
	default:
		return "error"
	}
}

func (m *metricsLLM) GetModel() string  { return m.next.GetModel() }
func (m *metricsLLM) SetModel(s string) { m.next.SetModel(s) }

// ProviderFromModel guesses a provider label from a model name for metrics
// emitted outside the middleware chain.
func ProviderFromModel(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "claude"):
		return "anthropic"
	case strings.Contains(lower, "gpt"):
		return "openai"
	case strings.Contains(lower, "gemini"):
		return "google"
	default:
		return "unknown"
	}
}
