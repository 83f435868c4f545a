package engine

import (
	"context"
	"strings"
	"text/template"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/ports"
)

// DefaultConsolidationTemplate is the synthesis prompt sent to the judge.
// It enumerates every successful answer labeled by its provider/model pair.
const DefaultConsolidationTemplate = `You are reviewing answers from several independent assistants to the same question.

Question:
{{.Question}}

{{range .Answers}}--- Answer from {{.Label}} ---
{{.Text}}

{{end}}Synthesize the answers above into a single, comprehensive, accurate response. Resolve contradictions in favor of the most widely supported claim, keep concrete figures when the answers agree on them, and do not mention the individual assistants.`

// ConsolidatorConfig configures the consolidation stage.
type ConsolidatorConfig struct {
	// Judge is the backend that synthesizes the consolidated answer.
	Judge domain.Target `validate:"required"`

	// PromptTemplate overrides DefaultConsolidationTemplate when set. It is
	// a text/template body with .Question and .Answers bindings.
	PromptTemplate string

	Temperature float64       `validate:"gte=0,lte=2"`
	MaxTokens   int           `validate:"gt=0"`
	Timeout     time.Duration `validate:"gt=0"`
}

// Consolidator builds a synthesis prompt from the successful answers and
// sends it to the judge once. Sequential by design; there is exactly one
// consolidation target.
type Consolidator struct {
	registry ports.ClientRegistry
	config   ConsolidatorConfig
	tmpl     *template.Template
}

type promptAnswer struct {
	Label string
	Text  string
}

// NewConsolidator validates the configuration and parses the prompt
// template.
func NewConsolidator(registry ports.ClientRegistry, config ConsolidatorConfig) (*Consolidator, error) {
	if registry == nil {
		return nil, eris.New("client registry is required")
	}
	if err := validate.Struct(config); err != nil {
		return nil, eris.Wrap(err, "invalid consolidator config")
	}

	body := config.PromptTemplate
	if body == "" {
		body = DefaultConsolidationTemplate
	}
	tmpl, err := template.New("consolidation").Parse(body)
	if err != nil {
		return nil, eris.Wrap(err, "invalid consolidation template")
	}

	return &Consolidator{registry: registry, config: config, tmpl: tmpl}, nil
}

// BuildPrompt renders the synthesis prompt. Exposed separately so the prompt
// format is testable without any backend call.
func (c *Consolidator) BuildPrompt(question string, answers []AnswerResult) (string, error) {
	labeled := make([]promptAnswer, len(answers))
	for i, a := range answers {
		labeled[i] = promptAnswer{Label: a.Target.Ref(), Text: a.Text}
	}

	var sb strings.Builder
	err := c.tmpl.Execute(&sb, struct {
		Question string
		Answers  []promptAnswer
	}{Question: question, Answers: labeled})
	if err != nil {
		return "", eris.Wrap(err, "failed to render consolidation prompt")
	}
	return sb.String(), nil
}

// Consolidate synthesizes one answer from the successful answer-round
// results. It must not be called with zero answers; that case is a hard
// pipeline failure upstream.
func (c *Consolidator) Consolidate(ctx context.Context, question string, answers []AnswerResult) (string, error) {
	if len(answers) == 0 {
		return "", domain.ErrNoAnswers
	}

	prompt, err := c.BuildPrompt(question, answers)
	if err != nil {
		return "", err
	}

	client, err := c.registry.GetClient(c.config.Judge.Ref())
	if err != nil {
		return "", eris.Wrapf(err, "no client for judge %s", c.config.Judge.Ref())
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	completion, err := client.Generate(ctx, []domain.Message{
		{Role: domain.RoleUser, Content: prompt},
	}, map[string]any{
		"temperature": c.config.Temperature,
		"max_tokens":  c.config.MaxTokens,
	})
	if err != nil {
		return "", eris.Wrap(err, "consolidation call failed")
	}

	return completion.Text, nil
}
