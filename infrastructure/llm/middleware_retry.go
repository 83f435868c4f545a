package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fintora/counsel/internal/domain"
)

// retryLLM retries transient failures with exponential backoff. The fan-out
// orchestrator never retries; resilience, when wanted, is layered here
// around an individual client.
type retryLLM struct {
	next       CoreLLM
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// RetryMiddleware retries a failed request up to maxRetries times with
// exponential backoff and jitter. Non-retryable failures (authentication,
// bad request) fail immediately.
func RetryMiddleware(maxRetries int, baseDelay, maxDelay time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &retryLLM{
			next:       next,
			maxRetries: maxRetries,
			baseDelay:  baseDelay,
			maxDelay:   maxDelay,
		}
	}
}

func (r *retryLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := r.next.DoRequest(ctx, messages, opts)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) || attempt == r.maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.backoff(attempt)):
		}
	}

	return nil, fmt.Errorf("request failed after %d attempt(s): %w", r.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.IsRetryable()
	}
	// Unclassified errors are assumed transient.
	return true
}

func (r *retryLLM) backoff(attempt int) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	delay := time.Duration(float64(r.baseDelay) * float64(int64(1)<<uint(attempt)))

	// Jitter of roughly ±25%.
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.5) // #nosec G404
	delay = delay + jitter - delay/4

	if delay > r.maxDelay {
		delay = r.maxDelay
	}
	return delay
}

func (r *retryLLM) GetModel() string  { return r.next.GetModel() }
func (r *retryLLM) SetModel(m string) { r.next.SetModel(m) }
