package engine

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/ports"
)

// Rating score bounds and fallbacks for unparseable judge output.
const (
	MinRatingScore = 0
	MaxRatingScore = 100

	// DefaultRatingScore is used when the judge's reply carries no SCORE line.
	DefaultRatingScore = 50
	// DefaultJustification is used when the judge's reply carries no
	// JUSTIFICATION line.
	DefaultJustification = "No justification provided"
)

// DefaultRatingTemplate asks the judge to score one answer in a fixed
// textual layout the parser can extract.
const DefaultRatingTemplate = `You are grading an assistant's answer to a user question.

Question:
{{.Question}}

Answer from {{.Label}}:
{{.Answer}}

Rate the answer's accuracy, completeness, and clarity. Respond in exactly this format:
SCORE: <integer from 0 to 100>
JUSTIFICATION: <one or two sentences>`

var (
	scoreRe         = regexp.MustCompile(`(?i)SCORE:\s*(-?\d+)`)
	justificationRe = regexp.MustCompile(`(?is)JUSTIFICATION:\s*(.+)`)
)

// Rating is a parsed judge verdict for one answer.
type Rating struct {
	Score         int
	Justification string
}

// ParseRating extracts a score and justification from free-text judge
// output. The first integer after SCORE: is used and clamped to [0, 100];
// a missing SCORE line degrades to the default score rather than an error.
// Pure and deterministic.
func ParseRating(text string) Rating {
	rating := Rating{
		Score:         DefaultRatingScore,
		Justification: DefaultJustification,
	}

	if m := scoreRe.FindStringSubmatch(text); m != nil {
		if score, err := strconv.Atoi(m[1]); err == nil {
			rating.Score = clampScore(score)
		}
	}
	if m := justificationRe.FindStringSubmatch(text); m != nil {
		if j := strings.TrimSpace(m[1]); j != "" {
			rating.Justification = j
		}
	}

	return rating
}

func clampScore(score int) int {
	if score < MinRatingScore {
		return MinRatingScore
	}
	if score > MaxRatingScore {
		return MaxRatingScore
	}
	return score
}

// RaterConfig configures the rating round.
type RaterConfig struct {
	// Judge is the backend that scores each answer.
	Judge domain.Target `validate:"required"`

	// PromptTemplate overrides DefaultRatingTemplate when set.
	PromptTemplate string

	Temperature float64 `validate:"gte=0,lte=2"`
	MaxTokens   int     `validate:"gt=0"`

	// Timeout bounds each rating call. Rating calls typically get a shorter
	// budget than answer calls.
	Timeout time.Duration `validate:"gt=0"`

	// MaxConcurrency caps in-flight rating calls. Zero means unbounded.
	MaxConcurrency int `validate:"gte=0"`
}

// RatedAnswer pairs a parsed rating with the answer it grades.
type RatedAnswer struct {
	Target domain.Target
	Rating Rating
}

// Rater fans a rating request out per successful answer, one judge call
// each, and parses the fixed SCORE/JUSTIFICATION layout from the replies.
type Rater struct {
	registry ports.ClientRegistry
	config   RaterConfig
	tmpl     *template.Template
}

// NewRater validates the configuration and parses the rating template.
func NewRater(registry ports.ClientRegistry, config RaterConfig) (*Rater, error) {
	if registry == nil {
		return nil, eris.New("client registry is required")
	}
	if err := validate.Struct(config); err != nil {
		return nil, eris.Wrap(err, "invalid rater config")
	}

	body := config.PromptTemplate
	if body == "" {
		body = DefaultRatingTemplate
	}
	tmpl, err := template.New("rating").Parse(body)
	if err != nil {
		return nil, eris.Wrap(err, "invalid rating template")
	}

	return &Rater{registry: registry, config: config, tmpl: tmpl}, nil
}

// BuildPrompt renders the rating prompt for one answer.
func (r *Rater) BuildPrompt(question string, answer AnswerResult) (string, error) {
	var sb strings.Builder
	err := r.tmpl.Execute(&sb, struct {
		Question string
		Label    string
		Answer   string
	}{Question: question, Label: answer.Target.Ref(), Answer: answer.Text})
	if err != nil {
		return "", eris.Wrap(err, "failed to render rating prompt")
	}
	return sb.String(), nil
}

// RateAll scores every answer concurrently through the judge. Results line
// up with the input answers by index; a failed judge call yields a failure
// result for that answer only, never an error for the batch.
func (r *Rater) RateAll(ctx context.Context, question string, answers []AnswerResult) []Result[RatedAnswer] {
	jobs := make([]func(context.Context) (RatedAnswer, error), len(answers))
	for i, answer := range answers {
		jobs[i] = func(ctx context.Context) (RatedAnswer, error) {
			return r.rateOne(ctx, question, answer)
		}
	}

	return FanOut(ctx, r.config.MaxConcurrency, jobs)
}

func (r *Rater) rateOne(ctx context.Context, question string, answer AnswerResult) (RatedAnswer, error) {
	prompt, err := r.BuildPrompt(question, answer)
	if err != nil {
		return RatedAnswer{}, err
	}

	client, err := r.registry.GetClient(r.config.Judge.Ref())
	if err != nil {
		return RatedAnswer{}, eris.Wrapf(err, "no client for judge %s", r.config.Judge.Ref())
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	completion, err := client.Generate(ctx, []domain.Message{
		{Role: domain.RoleUser, Content: prompt},
	}, map[string]any{
		"temperature": r.config.Temperature,
		"max_tokens":  r.config.MaxTokens,
	})
	if err != nil {
		return RatedAnswer{}, eris.Wrapf(err, "rating call for %s failed", answer.Target.Ref())
	}

	return RatedAnswer{
		Target: answer.Target,
		Rating: ParseRating(completion.Text),
	}, nil
}
