package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"

	"github.com/fintora/counsel/internal/domain"
)

// GoogleDefaultModel is used when no model is configured for the Google
// provider.
const GoogleDefaultModel = "gemini-2.0-flash-exp"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements CoreLLM for Google's Gemini API.
type googleProvider struct {
	BaseProvider
	client          *genai.Client
	tokenCounter    *TokenCounter
	errorClassifier *ErrorClassifier
}

func newGoogleProvider(config ClientConfig) (CoreLLM, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	authConfig, err := buildGoogleAuthConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to configure authentication: %w", err)
	}

	client, err := genai.NewClient(context.Background(), authConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{
		BaseProvider:    BaseProvider{model: model},
		client:          client,
		tokenCounter:    NewTokenCounter(),
		errorClassifier: &ErrorClassifier{Provider: "google"},
	}, nil
}

// DoRequest sends the conversation to the Gemini API. User and assistant
// messages map to Gemini's user/model roles; system text travels in the
// generation config's system instruction.
func (p *googleProvider) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	options := ParseRequestOptions(opts, p.GetModel())
	system, rest := SplitSystem(messages, options)

	contents := buildGoogleContents(rest)
	config := p.buildGenerationConfig(system, options)

	resp, err := p.client.Models.GenerateContent(ctx, options.Model, contents, config)
	if err != nil {
		return nil, p.handleError(err)
	}

	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}

	var finishReason string
	if len(resp.Candidates) > 0 {
		finishReason = string(resp.Candidates[0].FinishReason)
	}

	return &ProviderResponse{
		Text:         text,
		FinishReason: finishReason,
		TokensIn:     p.inputTokens(resp.UsageMetadata, messages),
		TokensOut:    p.outputTokens(resp.UsageMetadata, text),
	}, nil
}

func buildGoogleContents(messages []domain.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

func (p *googleProvider) buildGenerationConfig(system string, options RequestOptions) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if options.Temperature != nil {
		// Gemini supports 0.0 to 2.0.
		temp := ClampFloat64(*options.Temperature, 0.0, 2.0)
		config.Temperature = genai.Ptr(float32(temp))
	}
	if options.MaxTokens > 0 {
		if options.MaxTokens > math.MaxInt32 {
			config.MaxOutputTokens = math.MaxInt32
		} else {
			config.MaxOutputTokens = int32(options.MaxTokens)
		}
	}

	return config
}

func (p *googleProvider) inputTokens(usage *genai.GenerateContentResponseUsageMetadata, messages []domain.Message) int {
	if usage != nil && usage.PromptTokenCount > 0 {
		return int(usage.PromptTokenCount)
	}
	return estimateConversationTokens(p.tokenCounter, messages)
}

func (p *googleProvider) outputTokens(usage *genai.GenerateContentResponseUsageMetadata, text string) int {
	if usage != nil && usage.CandidatesTokenCount > 0 {
		return int(usage.CandidatesTokenCount)
	}
	return p.tokenCounter.EstimateTokens(text)
}

func (p *googleProvider) handleError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return p.errorClassifier.ClassifyContextError(err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		message := apiErr.Message
		if message == "" && len(apiErr.Errors) > 0 {
			message = apiErr.Errors[0].Message
		}
		return p.errorClassifier.ClassifyHTTPError(apiErr.Code, message, err)
	}

	return NewProviderError("google", ErrorTypeUnknown, 0, "request failed", err)
}

// buildGoogleAuthConfig selects API-key authentication. Service-account
// credential files are rejected with guidance toward the standard
// GOOGLE_APPLICATION_CREDENTIALS flow.
func buildGoogleAuthConfig(config ClientConfig) (*genai.ClientConfig, error) {
	if looksLikeFilePath(config.APIKey) {
		if _, err := os.Stat(config.APIKey); err != nil {
			return nil, fmt.Errorf("credentials file not found: %s", config.APIKey)
		}
		return nil, fmt.Errorf("service account authentication is not supported; " +
			"use an API key or set GOOGLE_APPLICATION_CREDENTIALS")
	}

	return &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}, nil
}

func looksLikeFilePath(s string) bool {
	if filepath.IsAbs(s) || strings.ContainsAny(s, `/\`) {
		return true
	}
	lower := strings.ToLower(s)
	return strings.HasSuffix(lower, ".json") ||
		strings.HasSuffix(lower, ".p12") ||
		strings.HasSuffix(lower, ".pem")
}
