package llm

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fintora/counsel/internal/domain"
)

// tracerName identifies this instrumentation library in exported spans.
const tracerName = "counsel/llm"

// tracingLLM wraps each provider request in an OpenTelemetry span.
type tracingLLM struct {
	next     CoreLLM
	provider string
	tracer   trace.Tracer
}

// TracingMiddleware creates spans around provider requests, recording the
// provider, model, message count, and token usage as attributes.
func TracingMiddleware(provider string) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &tracingLLM{
			next:     next,
			provider: provider,
			tracer:   otel.Tracer(tracerName),
		}
	}
}

func (t *tracingLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	ctx, span := t.tracer.Start(ctx, "llm.request",
		trace.WithAttributes(
			attribute.String("llm.provider", t.provider),
			attribute.String("llm.model", t.next.GetModel()),
			attribute.Int("llm.message_count", len(messages)),
		))
	defer span.End()

	resp, err := t.next.DoRequest(ctx, messages, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("llm.tokens_in", resp.TokensIn),
		attribute.Int("llm.tokens_out", resp.TokensOut),
		attribute.String("llm.finish_reason", resp.FinishReason),
	)
	span.SetStatus(codes.Ok, "")
	return resp, nil
}

func (t *tracingLLM) GetModel() string  { return t.next.GetModel() }
func (t *tracingLLM) SetModel(m string) { t.next.SetModel(m) }
