package llm

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/fintora/counsel/internal/domain"
)

// OpenAIDefaultModel is used when no model is configured for the OpenAI
// provider.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements CoreLLM for OpenAI's chat completion API.
type openAIProvider struct {
	BaseProvider
	client          *openai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newOpenAIProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		validated, err := ValidateBaseURL(config.BaseURL)
		if err != nil {
			return nil, err
		}
		clientConfig.BaseURL = validated
	}

	return &openAIProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          openai.NewClientWithConfig(clientConfig),
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "openai"},
	}, nil
}

// DoRequest sends the conversation to the chat completions endpoint.
// Roles map directly onto OpenAI's system/user/assistant vocabulary.
func (p *openAIProvider) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	options := ParseRequestOptions(opts, p.GetModel())
	system, rest := SplitSystem(messages, options)

	req := openai.ChatCompletionRequest{
		Model:    options.Model,
		Messages: buildOpenAIMessages(system, rest),
	}
	if options.Temperature != nil {
		// OpenAI supports 0.0 to 2.0.
		req.Temperature = float32(ClampFloat64(*options.Temperature, 0.0, 2.0))
	}
	if options.MaxTokens > 0 {
		req.MaxTokens = options.MaxTokens
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, p.handleError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoResponseChoice
	}

	choice := resp.Choices[0]
	tokensIn := resp.Usage.PromptTokens
	if tokensIn <= 0 {
		tokensIn = estimateConversationTokens(p.tokenCounter, messages)
	}

	return &ProviderResponse{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		TokensIn:     tokensIn,
		TokensOut:    p.tokenCounter.GetTokenCount(resp.Usage.CompletionTokens, choice.Message.Content),
	}, nil
}

func buildOpenAIMessages(system string, messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == domain.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}

func (p *openAIProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" {
			message = "unknown error"
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.HTTPStatusCode, message, err)
	}

	return NewProviderError("openai", ErrorTypeUnknown, 0, "request failed", err)
}
