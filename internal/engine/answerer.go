package engine

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/ports"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AnswererConfig configures the answer round.
type AnswererConfig struct {
	// Targets are the provider/model pairs the question is fanned out to.
	Targets []domain.Target `validate:"required,min=1,dive"`

	// SystemPrompt frames every answer request. Optional.
	SystemPrompt string

	// Temperature and MaxTokens are passed through to each backend.
	Temperature float64 `validate:"gte=0,lte=2"`
	MaxTokens   int     `validate:"gt=0"`

	// Timeout bounds each individual backend call.
	Timeout time.Duration `validate:"gt=0"`

	// TokenBudget bounds the conversation size sent to any backend.
	TokenBudget int `validate:"gt=0"`

	// MaxConcurrency caps in-flight answer calls. Zero means unbounded.
	MaxConcurrency int `validate:"gte=0"`
}

// AnswerResult is one backend's successful reply to the question.
type AnswerResult struct {
	Target  domain.Target
	Text    string
	Latency time.Duration
	Usage   domain.Usage
}

// Answerer fans one question out to every configured target concurrently
// and collects the settled results in target order.
type Answerer struct {
	registry ports.ClientRegistry
	config   AnswererConfig
}

// NewAnswerer validates the configuration and builds an answer round.
func NewAnswerer(registry ports.ClientRegistry, config AnswererConfig) (*Answerer, error) {
	if registry == nil {
		return nil, eris.New("client registry is required")
	}
	if err := validate.Struct(config); err != nil {
		return nil, eris.Wrap(err, "invalid answerer config")
	}
	return &Answerer{registry: registry, config: config}, nil
}

// Targets returns the configured provider/model pairs in fan-out order.
func (a *Answerer) Targets() []domain.Target { return a.config.Targets }

// AnswerAll sends the question to every target and waits for all calls to
// settle. One failing backend never cancels the others; results line up with
// Targets() by index.
func (a *Answerer) AnswerAll(ctx context.Context, question string) []Result[AnswerResult] {
	messages := TruncateMessages(a.buildMessages(question), a.config.TokenBudget)

	jobs := make([]func(context.Context) (AnswerResult, error), len(a.config.Targets))
	for i, target := range a.config.Targets {
		jobs[i] = func(ctx context.Context) (AnswerResult, error) {
			return a.answerOne(ctx, target, messages)
		}
	}

	return FanOut(ctx, a.config.MaxConcurrency, jobs)
}

func (a *Answerer) buildMessages(question string) []domain.Message {
	var messages []domain.Message
	if a.config.SystemPrompt != "" {
		messages = append(messages, domain.Message{
			Role:    domain.RoleSystem,
			Content: a.config.SystemPrompt,
		})
	}
	return append(messages, domain.Message{
		Role:    domain.RoleUser,
		Content: question,
	})
}

func (a *Answerer) answerOne(ctx context.Context, target domain.Target, messages []domain.Message) (AnswerResult, error) {
	client, err := a.registry.GetClient(target.Ref())
	if err != nil {
		return AnswerResult{}, eris.Wrapf(err, "no client for %s", target.Ref())
	}

	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()

	start := time.Now()
	completion, err := client.Generate(ctx, messages, map[string]any{
		"temperature": a.config.Temperature,
		"max_tokens":  a.config.MaxTokens,
	})
	if err != nil {
		return AnswerResult{}, eris.Wrapf(err, "answer call to %s failed", target.Ref())
	}

	return AnswerResult{
		Target:  target,
		Text:    completion.Text,
		Latency: time.Since(start),
		Usage:   completion.Usage,
	}, nil
}
