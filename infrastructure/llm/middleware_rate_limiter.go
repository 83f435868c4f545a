package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/fintora/counsel/internal/domain"
)

// rateLimitedLLM paces requests with a token bucket so concurrent fan-out
// rounds stay inside provider rate limits.
type rateLimitedLLM struct {
	next    CoreLLM
	limiter *rate.Limiter
}

// RateLimitMiddleware enforces a sustained requests-per-second limit with a
// burst allowance. The limiter is shared by every request through the
// wrapped client.
func RateLimitMiddleware(limit rate.Limit, burst int) Middleware {
	limiter := rate.NewLimiter(limit, burst)
	return func(next CoreLLM) CoreLLM {
		return &rateLimitedLLM{next: next, limiter: limiter}
	}
}

func (r *rateLimitedLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.next.DoRequest(ctx, messages, opts)
}

func (r *rateLimitedLLM) GetModel() string  { return r.next.GetModel() }
func (r *rateLimitedLLM) SetModel(m string) { r.next.SetModel(m) }
