// Package llm provides a uniform interface for sending conversations to
// multiple LLM providers (Anthropic, OpenAI, Google) with pluggable
// middleware for timeouts, rate limiting, retries, metrics, and tracing.
//
// Concrete providers differ only in wire format, authentication, and
// response parsing; they all implement the CoreLLM interface so the
// consolidation pipeline stays backend-agnostic. Cross-cutting concerns are
// layered through the Middleware chain rather than baked into providers.
//
// Basic usage:
//
//	client, err := llm.NewClient("anthropic", llm.ClientConfig{
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Model:  "claude-3-5-sonnet-20241022",
//	    Middleware: []llm.Middleware{
//	        llm.TimeoutMiddleware(30 * time.Second),
//	    },
//	})
//	completion, err := client.Generate(ctx, messages, nil)
package llm

import (
	"context"
	"fmt"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/ports"
)

// ProviderResponse is the raw result a provider hands back before it is
// shaped into a domain.Completion.
type ProviderResponse struct {
	// Text is the generated reply. Never empty on success.
	Text string
	// FinishReason reports why generation stopped, in the provider's own
	// vocabulary ("end_turn", "stop", ...). May be empty.
	FinishReason string
	// TokensIn and TokensOut are provider-reported token counts, or
	// estimates when the provider omits usage metadata.
	TokensIn  int
	TokensOut int
}

// CoreLLM is the minimal interface a provider must implement. Middleware
// wraps any conforming implementation, so providers stay free of
// cross-cutting concerns.
type CoreLLM interface {
	// DoRequest sends an ordered conversation to the provider and returns
	// the raw response. Any failure (network, auth, timeout, malformed
	// response) must surface as an error, never a partial success.
	DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error)

	// GetModel returns the currently configured model name.
	GetModel() string

	// SetModel switches the model used for subsequent requests.
	SetModel(model string)
}

// TokenEstimator approximates token counts when no real tokenizer is
// available for a model.
type TokenEstimator interface {
	EstimateTokens(text string) int
}

// Middleware wraps a CoreLLM to add cross-cutting behavior. Middleware is
// applied in reverse order so the first entry is the outermost layer.
type Middleware func(CoreLLM) CoreLLM

// ClientConfig holds everything needed to construct a provider client.
type ClientConfig struct {
	// APIKey authenticates requests. For the Google provider this may
	// instead be a path to a service-account credentials file.
	APIKey string

	// Model selects the provider model. Empty picks the provider default.
	Model string

	// BaseURL overrides the provider's default endpoint when set.
	BaseURL string

	// TokenEstimator supplies custom token counting. Nil selects the
	// character-based default.
	TokenEstimator TokenEstimator

	// Middleware is applied in order, first entry outermost.
	Middleware []Middleware
}

// Client implements ports.ChatClient on top of a middleware-wrapped CoreLLM.
type Client struct {
	core      CoreLLM
	estimator TokenEstimator
}

var _ ports.ChatClient = (*Client)(nil)

// NewClient assembles a provider client with its middleware chain.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", providerType, err)
	}

	// Reverse application keeps the first middleware outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	estimator := config.TokenEstimator
	if estimator == nil {
		estimator = &SimpleTokenEstimator{}
	}

	return &Client{core: core, estimator: estimator}, nil
}

// Generate sends the conversation to the provider and returns a completion.
func (c *Client) Generate(ctx context.Context, messages []domain.Message, options map[string]any) (*domain.Completion, error) {
	if len(messages) == 0 {
		return nil, ErrNoMessages
	}

	resp, err := c.core.DoRequest(ctx, messages, options)
	if err != nil {
		return nil, err
	}

	return &domain.Completion{
		Text:         resp.Text,
		Model:        c.core.GetModel(),
		FinishReason: resp.FinishReason,
		Usage: domain.Usage{
			TokensIn:  resp.TokensIn,
			TokensOut: resp.TokensOut,
		},
	}, nil
}

// EstimateTokens approximates the token count of text using the configured
// estimator.
func (c *Client) EstimateTokens(text string) (int, error) {
	return c.estimator.EstimateTokens(text), nil
}

// GetModel returns the model name of the underlying provider.
func (c *Client) GetModel() string { return c.core.GetModel() }

// SimpleTokenEstimator approximates tokens as ceil(len/4), a reasonable
// heuristic for English text when no tokenizer is available.
type SimpleTokenEstimator struct{}

// EstimateTokens returns ceil(len(text)/4).
func (e *SimpleTokenEstimator) EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// ProviderFactory builds a CoreLLM from configuration.
type ProviderFactory func(ClientConfig) (CoreLLM, error)

var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory registers a provider under a name, making it
// available to NewClient and the Registry. Called from provider init()
// functions; custom providers may register at startup.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
