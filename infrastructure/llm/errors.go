package llm

import (
	"context"
	"errors"
	"fmt"
)

// Common errors returned by the client and providers.
var (
	// ErrEmptyAPIKey indicates that an API key was required but not provided.
	ErrEmptyAPIKey = errors.New("API key cannot be empty")
	// ErrEmptyResponse indicates that the provider returned an empty body.
	ErrEmptyResponse = errors.New("empty response from API")
	// ErrNoResponseChoice indicates a response with no usable choices.
	ErrNoResponseChoice = errors.New("no response choices returned")
	// ErrNoMessages indicates that a request carried no messages.
	ErrNoMessages = errors.New("at least one message is required")
)

// ErrorType classifies provider failures for standardized handling,
// such as deciding retryability.
type ErrorType int

const (
	// ErrorTypeUnknown is an error of undetermined category.
	ErrorTypeUnknown ErrorType = iota
	// ErrorTypeAuthentication covers invalid or missing credentials.
	ErrorTypeAuthentication
	// ErrorTypeRateLimit covers provider rate limiting (HTTP 429).
	ErrorTypeRateLimit
	// ErrorTypeBadRequest covers malformed requests or invalid parameters.
	ErrorTypeBadRequest
	// ErrorTypeNotFound covers missing resources such as unknown models.
	ErrorTypeNotFound
	// ErrorTypeServerError covers provider-side failures (HTTP 5xx).
	ErrorTypeServerError
	// ErrorTypeNetwork covers client-side network problems.
	ErrorTypeNetwork
	// ErrorTypeTimeout covers requests that exceeded their deadline.
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeServerError:
		return "server_error"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProviderError normalizes provider-specific failures into a common shape
// with a classified type and the original error preserved for unwrapping.
type ProviderError struct {
	Type       ErrorType
	Provider   string
	StatusCode int
	Message    string
	Wrapped    error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	base := fmt.Sprintf("%s error [%s]", e.Provider, e.Type)
	if e.StatusCode > 0 {
		base = fmt.Sprintf("%s error (HTTP %d) [%s]", e.Provider, e.StatusCode, e.Type)
	}
	if e.Message != "" {
		base += ": " + e.Message
	}
	if e.Wrapped != nil {
		base += fmt.Sprintf(": %v", e.Wrapped)
	}
	return base
}

// Unwrap exposes the underlying error to errors.Is and errors.As.
func (e *ProviderError) Unwrap() error { return e.Wrapped }

// IsRetryable reports whether the failure is transient enough that a caller
// wrapping a single call may reasonably retry it. The fan-out orchestrator
// itself never retries.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewProviderError builds a classified ProviderError.
func NewProviderError(provider string, errType ErrorType, statusCode int, message string, wrapped error) *ProviderError {
	return &ProviderError{
		Type:       errType,
		Provider:   provider,
		StatusCode: statusCode,
		Message:    message,
		Wrapped:    wrapped,
	}
}

// ErrorClassifier turns raw provider errors into ProviderError values using
// HTTP status codes and context state.
type ErrorClassifier struct {
	// Provider names the backend this classifier works for.
	Provider string
}

// ClassifyHTTPError maps an HTTP status code to an ErrorType.
func (ec *ErrorClassifier) ClassifyHTTPError(statusCode int, message string, err error) *ProviderError {
	var errType ErrorType
	switch {
	case statusCode == 401 || statusCode == 403:
		errType = ErrorTypeAuthentication
	case statusCode == 429:
		errType = ErrorTypeRateLimit
	case statusCode == 404:
		errType = ErrorTypeNotFound
	case statusCode >= 400 && statusCode < 500:
		errType = ErrorTypeBadRequest
	case statusCode >= 500:
		errType = ErrorTypeServerError
	default:
		errType = ErrorTypeUnknown
	}
	return NewProviderError(ec.Provider, errType, statusCode, message, err)
}

// ClassifyContextError maps context cancellation and deadline errors.
func (ec *ErrorClassifier) ClassifyContextError(err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(ec.Provider, ErrorTypeTimeout, 0, "request deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(ec.Provider, ErrorTypeNetwork, 0, "request canceled", err)
	default:
		return NewProviderError(ec.Provider, ErrorTypeUnknown, 0, "", err)
	}
}
