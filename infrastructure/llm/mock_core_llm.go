package llm

import (
	"context"
	"sync"
	"time"

	"github.com/fintora/counsel/internal/domain"
)

// MockCoreLLM is a configurable CoreLLM implementation for testing
// middleware and pipeline behavior without real providers.
type MockCoreLLM struct {
	mu sync.Mutex

	// Response configuration.
	Response      *ProviderResponse
	Err           error
	Model         string
	ResponseDelay time.Duration

	// FailUntilAttempt makes the first N calls fail, then succeed.
	FailUntilAttempt int

	// Call tracking.
	CallCount      int
	LastMessages   []domain.Message
	LastOpts       map[string]any
	CallTimestamps []time.Time
}

// NewMockCoreLLM returns a mock that succeeds with a canned response.
func NewMockCoreLLM() *MockCoreLLM {
	return &MockCoreLLM{
		Response: &ProviderResponse{
			Text:         "test response",
			FinishReason: "stop",
			TokensIn:     10,
			TokensOut:    20,
		},
		Model: "test-model",
	}
}

func (m *MockCoreLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastMessages = messages
	m.LastOpts = opts
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailUntilAttempt > 0 && call <= m.FailUntilAttempt {
		if m.Err != nil {
			return nil, m.Err
		}
		return nil, NewProviderError("mock", ErrorTypeServerError, 500, "simulated failure", nil)
	}

	if m.Err != nil {
		return nil, m.Err
	}
	return m.Response, nil
}

func (m *MockCoreLLM) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Model
}

func (m *MockCoreLLM) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Model = model
}

// GetCallCount returns how many times DoRequest was invoked.
func (m *MockCoreLLM) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
