package llm

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/fintora/counsel/internal/domain"
)

// Parameter bounds shared across providers.
const (
	// DefaultMaxTokens bounds a reply when the caller does not set one.
	DefaultMaxTokens = 1024
	// MinTemperature and MaxTemperature bound the sampling temperature.
	// The upper bound accommodates providers that allow up to 2.0.
	MinTemperature = 0.0
	MaxTemperature = 2.0
)

// RequestOptions is the standardized set of per-call parameters extracted
// from the options map callers pass through ports.ChatClient.
type RequestOptions struct {
	// MaxTokens caps the length of the generated reply.
	MaxTokens int
	// Model overrides the client's configured model when non-empty.
	Model string
	// Temperature controls sampling randomness; nil means provider default.
	Temperature *float64
	// System carries extra system instructions supplied per call, merged
	// with any system-role messages in the conversation.
	System string
}

// ParseRequestOptions extracts standardized parameters from an options map,
// falling back to defaults for missing or invalid entries.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, "max_tokens", DefaultMaxTokens, func(v int) bool { return v > 0 }),
		Model:     extractString(opts, "model", defaultModel, func(v string) bool { return v != "" }),
		System:    extractString(opts, "system", "", nil),
	}

	if temp := extractFloat64(opts, "temperature", -1, isValidTemperature); temp != -1 {
		options.Temperature = &temp
	}

	return options
}

func isValidTemperature(v float64) bool {
	return v >= MinTemperature && v <= MaxTemperature
}

func extractInt(opts map[string]any, key string, def int, valid func(int) bool) int {
	if raw, ok := opts[key]; ok {
		switch v := raw.(type) {
		case int:
			if valid == nil || valid(v) {
				return v
			}
		case float64:
			if n := int(v); valid == nil || valid(n) {
				return n
			}
		}
	}
	return def
}

func extractString(opts map[string]any, key string, def string, valid func(string) bool) string {
	if raw, ok := opts[key]; ok {
		if v, ok := raw.(string); ok && (valid == nil || valid(v)) {
			return v
		}
	}
	return def
}

func extractFloat64(opts map[string]any, key string, def float64, valid func(float64) bool) float64 {
	if raw, ok := opts[key]; ok {
		switch v := raw.(type) {
		case float64:
			if valid == nil || valid(v) {
				return v
			}
		case int:
			if f := float64(v); valid == nil || valid(f) {
				return f
			}
		}
	}
	return def
}

// ClampFloat64 bounds val to [min, max].
func ClampFloat64(val, min, max float64) float64 {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// ValidateBaseURL checks that an endpoint override is an absolute http(s)
// URL. An empty string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, got: %q", parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return parsed.String(), nil
}

// SplitSystem separates system-role messages from the rest of the
// conversation. System contents are joined with blank lines, and any
// per-call system option is appended last. Relative order of the remaining
// messages is preserved.
func SplitSystem(messages []domain.Message, options RequestOptions) (system string, rest []domain.Message) {
	var parts []string
	rest = make([]domain.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			parts = append(parts, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	if options.System != "" {
		parts = append(parts, options.System)
	}
	return strings.Join(parts, "\n\n"), rest
}

// BaseProvider provides common, thread-safe model-name handling for
// providers.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel returns the configured model. Safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel updates the model name. Safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// TokenCounter estimates token counts for providers that omit usage
// metadata from their responses.
type TokenCounter struct {
	// CharactersPerToken approximates how many characters map to one token.
	CharactersPerToken int
}

// NewTokenCounter returns a counter using the common 4-characters-per-token
// approximation for English text.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{CharactersPerToken: 4}
}

// EstimateTokens returns ceil(len(text)/CharactersPerToken).
func (tc *TokenCounter) EstimateTokens(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + tc.CharactersPerToken - 1) / tc.CharactersPerToken
}

// GetTokenCount prefers the provider-reported count and falls back to an
// estimate from the text.
func (tc *TokenCounter) GetTokenCount(actual int, text string) int {
	if actual > 0 {
		return actual
	}
	return tc.EstimateTokens(text)
}

// estimateConversationTokens sums per-message estimates for a conversation.
func estimateConversationTokens(tc *TokenCounter, messages []domain.Message) int {
	var total int
	for _, m := range messages {
		total += tc.EstimateTokens(m.Content)
	}
	return total
}
