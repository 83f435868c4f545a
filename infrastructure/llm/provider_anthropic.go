package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/fintora/counsel/internal/domain"
)

// AnthropicDefaultModel is used when no model is configured for the
// Anthropic provider.
const AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements CoreLLM for Anthropic's Messages API.
type anthropicProvider struct {
	BaseProvider
	client          anthropic.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newAnthropicProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		validated, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts, option.WithBaseURL(validated))
	}

	return &anthropicProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          anthropic.NewClient(opts...),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "anthropic"},
	}, nil
}

// DoRequest sends the conversation to the Messages API. System-role
// messages become the request's system blocks; the rest map to Anthropic
// message params in order.
func (p *anthropicProvider) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	options := ParseRequestOptions(opts, p.GetModel())
	system, rest := SplitSystem(messages, options)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(options.Model),
		MaxTokens: int64(options.MaxTokens),
		Messages:  buildAnthropicMessages(rest),
	}
	if options.Temperature != nil {
		// Anthropic supports 0.0 to 1.0.
		params.Temperature = anthropic.Float(ClampFloat64(*options.Temperature, 0.0, 1.0))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, p.handleError(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(content.Text)
		}
	}
	reply := text.String()
	if reply == "" {
		return nil, ErrEmptyResponse
	}

	tokensIn := int(message.Usage.InputTokens)
	if tokensIn <= 0 {
		tokensIn = estimateConversationTokens(p.tokenCounter, messages)
	}

	return &ProviderResponse{
		Text:         reply,
		FinishReason: string(message.StopReason),
		TokensIn:     tokensIn,
		TokensOut:    p.tokenCounter.GetTokenCount(int(message.Usage.OutputTokens), reply),
	}, nil
}

func buildAnthropicMessages(messages []domain.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case domain.RoleAssistant:
			params = append(params, anthropic.NewAssistantMessage(block))
		default:
			params = append(params, anthropic.NewUserMessage(block))
		}
	}
	return params
}

func (p *anthropicProvider) handleError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return p.errorClassifier.ClassifyHTTPError(apiErr.StatusCode, "", err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}
	return NewProviderError("anthropic", ErrorTypeUnknown, 0, "request failed", err)
}
