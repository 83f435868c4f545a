package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintora/counsel/internal/domain"
)

func retryMessages() []domain.Message {
	return []domain.Message{{Role: domain.RoleUser, Content: "hello"}}
}

func TestRetryMiddleware_SucceedsFirstAttempt(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(mock)

	resp, err := wrapped.DoRequest(context.Background(), retryMessages(), nil)

	require.NoError(t, err)
	assert.Equal(t, "test response", resp.Text)
	assert.Equal(t, 1, mock.GetCallCount())
}

func TestRetryMiddleware_RecoversAfterTransientFailures(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.FailUntilAttempt = 2

	wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(mock)

	resp, err := wrapped.DoRequest(context.Background(), retryMessages(), nil)

	require.NoError(t, err)
	assert.Equal(t, "test response", resp.Text)
	assert.Equal(t, 3, mock.GetCallCount())
}

func TestRetryMiddleware_ExhaustsRetries(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.FailUntilAttempt = 10

	wrapped := RetryMiddleware(2, time.Millisecond, 10*time.Millisecond)(mock)

	_, err := wrapped.DoRequest(context.Background(), retryMessages(), nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempt(s)")
	assert.Equal(t, 3, mock.GetCallCount())
}

func TestRetryMiddleware_DoesNotRetryAuthErrors(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Err = NewProviderError("mock", ErrorTypeAuthentication, 401, "invalid key", nil)

	wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(mock)

	_, err := wrapped.DoRequest(context.Background(), retryMessages(), nil)

	require.Error(t, err)
	assert.Equal(t, 1, mock.GetCallCount())
}

func TestRetryMiddleware_RetriesRateLimitErrors(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.Err = NewProviderError("mock", ErrorTypeRateLimit, 429, "slow down", nil)

	wrapped := RetryMiddleware(3, time.Millisecond, 10*time.Millisecond)(mock)

	_, err := wrapped.DoRequest(context.Background(), retryMessages(), nil)

	require.Error(t, err)
	assert.Equal(t, 4, mock.GetCallCount())
}

func TestRetryMiddleware_StopsOnCancelledContext(t *testing.T) {
	mock := NewMockCoreLLM()
	mock.FailUntilAttempt = 10

	wrapped := RetryMiddleware(5, 50*time.Millisecond, time.Second)(mock)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := wrapped.DoRequest(ctx, retryMessages(), nil)

	require.Error(t, err)
	assert.LessOrEqual(t, mock.GetCallCount(), 2)
}
