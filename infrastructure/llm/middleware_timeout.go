package llm

import (
	"context"
	"time"

	"github.com/fintora/counsel/internal/domain"
)

// timeoutLLM bounds every request with a deadline so a slow backend counts
// as a failure instead of hanging its fan-out job.
type timeoutLLM struct {
	next    CoreLLM
	timeout time.Duration
}

// TimeoutMiddleware enforces a per-request deadline. A request exceeding it
// fails with context.DeadlineExceeded, which the pipeline treats like any
// other backend failure.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &timeoutLLM{next: next, timeout: timeout}
	}
}

func (t *timeoutLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.DoRequest(ctx, messages, opts)
}

func (t *timeoutLLM) GetModel() string  { return t.next.GetModel() }
func (t *timeoutLLM) SetModel(m string) { t.next.SetModel(m) }
