package engine

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/ports"
	"github.com/fintora/counsel/internal/store"
)

// Pipeline runs the full consolidation flow for one question: topic guard,
// inquiry persistence, concurrent answer round, consolidation by the judge,
// rating round, and audit-trail persistence.
//
// Pipelines hold no per-inquiry state; one Pipeline may serve concurrent
// Submit calls.
type Pipeline struct {
	guard        *ScopeGuard
	answerer     *Answerer
	consolidator *Consolidator
	rater        *Rater
	store        store.Store
	metrics      ports.MetricsCollector
}

// NewPipeline assembles a pipeline from its stages. metrics may be nil.
func NewPipeline(
	guard *ScopeGuard,
	answerer *Answerer,
	consolidator *Consolidator,
	rater *Rater,
	st store.Store,
	metrics ports.MetricsCollector,
) (*Pipeline, error) {
	if guard == nil || answerer == nil || consolidator == nil || rater == nil || st == nil {
		return nil, eris.New("all pipeline stages and the store are required")
	}
	return &Pipeline{
		guard:        guard,
		answerer:     answerer,
		consolidator: consolidator,
		rater:        rater,
		store:        st,
		metrics:      metrics,
	}, nil
}

// ProviderResult summarizes one successful backend answer for the caller.
type ProviderResult struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	LatencyMs int64  `json:"latency_ms"`
}

// SubmitResult is the caller-facing outcome of one processed question.
type SubmitResult struct {
	InquiryID          string           `json:"inquiry_id"`
	ThreadID           string           `json:"thread_id"`
	Question           string           `json:"question"`
	ConsolidatedAnswer string           `json:"consolidated_answer"`
	ProviderResults    []ProviderResult `json:"provider_results"`
	CreatedAt          time.Time        `json:"created_at"`
}

// Submit processes one question end to end. An empty threadID starts a new
// thread. Questions outside the configured domain fail with
// domain.ErrOutOfScope before anything is persisted; an answer round where
// every backend failed surfaces domain.ErrAllProvidersFailed. Partial
// backend failure and all rating or persistence failures degrade the audit
// trail without failing the call.
func (p *Pipeline) Submit(ctx context.Context, threadID, question string) (*SubmitResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}
	if !p.guard.IsInScope(question) {
		return nil, domain.ErrOutOfScope
	}

	if threadID == "" {
		threadID = uuid.New().String()
	}

	start := time.Now()

	inquiry, err := p.store.CreateInquiry(ctx, threadID, question)
	if err != nil {
		return nil, eris.Wrap(err, "failed to persist inquiry")
	}

	logger := zap.L().With(
		zap.String("inquiry_id", inquiry.ID),
		zap.String("thread_id", threadID),
	)

	answers := p.answerRound(ctx, logger, inquiry, question)
	if len(answers) == 0 {
		logger.Error("every answer backend failed",
			zap.Int("targets", len(p.answerer.Targets())))
		return nil, domain.ErrAllProvidersFailed
	}

	consolidated, err := p.consolidator.Consolidate(ctx, question, answers)
	if err != nil {
		return nil, eris.Wrap(err, "consolidation failed")
	}
	if _, err := p.store.CreateConsolidatedAnswer(ctx, inquiry.ID, consolidated); err != nil {
		logger.Warn("failed to persist consolidated answer", zap.Error(err))
	}

	p.ratingRound(ctx, logger, inquiry, question, answers)

	p.recordMetrics(start, len(answers))

	results := make([]ProviderResult, len(answers))
	for i, a := range answers {
		results[i] = ProviderResult{
			Provider:  a.Target.Provider,
			Model:     a.Target.Model,
			LatencyMs: a.Latency.Milliseconds(),
		}
	}

	logger.Info("inquiry processed",
		zap.Int("answers", len(answers)),
		zap.Duration("elapsed", time.Since(start)))

	return &SubmitResult{
		InquiryID:          inquiry.ID,
		ThreadID:           threadID,
		Question:           question,
		ConsolidatedAnswer: consolidated,
		ProviderResults:    results,
		CreatedAt:          inquiry.CreatedAt,
	}, nil
}

// answerRound fans the question out and persists every successful answer.
// Failed backends are logged and contribute nothing to the trail.
func (p *Pipeline) answerRound(ctx context.Context, logger *zap.Logger, inquiry *domain.Inquiry, question string) []AnswerResult {
	settled := p.answerer.AnswerAll(ctx, question)
	targets := p.answerer.Targets()

	var answers []AnswerResult
	for i, result := range settled {
		if !result.Ok() {
			logger.Warn("answer backend failed",
				zap.String("target", targets[i].Ref()),
				zap.Error(result.Err))
			continue
		}

		answer := result.Value
		answers = append(answers, answer)

		_, err := p.store.CreateProviderAnswer(ctx, inquiry.ID,
			answer.Target.Provider, answer.Target.Model,
			answer.Text, answer.Latency.Milliseconds())
		if err != nil {
			logger.Warn("failed to persist provider answer",
				zap.String("target", answer.Target.Ref()),
				zap.Error(err))
		}
	}
	return answers
}

// ratingRound scores every successful answer and persists the ratings.
// Failures are logged and skipped; the round never fails the inquiry.
func (p *Pipeline) ratingRound(ctx context.Context, logger *zap.Logger, inquiry *domain.Inquiry, question string, answers []AnswerResult) {
	for i, result := range p.rater.RateAll(ctx, question, answers) {
		if !result.Ok() {
			logger.Warn("rating call failed",
				zap.String("target", answers[i].Target.Ref()),
				zap.Error(result.Err))
			continue
		}

		rated := result.Value
		_, err := p.store.CreateProviderRating(ctx, inquiry.ID,
			rated.Target.Provider, rated.Target.Model,
			rated.Rating.Score, rated.Rating.Justification)
		if err != nil {
			logger.Warn("failed to persist provider rating",
				zap.String("target", rated.Target.Ref()),
				zap.Error(err))
		}
	}
}

func (p *Pipeline) recordMetrics(start time.Time, answers int) {
	if p.metrics == nil {
		return
	}
	p.metrics.RecordCounter("pipeline_inquiries_total", 1, nil)
	p.metrics.RecordGauge("pipeline_last_answer_count", float64(answers), nil)
	p.metrics.RecordLatency("pipeline_submit", time.Since(start), map[string]string{
		"provider": "pipeline",
		"model":    "submit",
	})
}

// Trail reconstructs the full audit trail for a thread.
func (p *Pipeline) Trail(ctx context.Context, threadID string) (*domain.ThreadTrail, error) {
	if strings.TrimSpace(threadID) == "" {
		return nil, eris.New("thread id is required")
	}
	return p.store.ThreadTrail(ctx, threadID)
}
