package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/ports"
)

const scopedQuestion = "What's a good savings account interest rate?"

var pipelineTargets = []domain.Target{
	{Provider: "alpha", Model: "a1"},
	{Provider: "beta", Model: "b1"},
	{Provider: "gamma", Model: "g1"},
}

// judgeResponder answers consolidation prompts with a synthesis and rating
// prompts with a per-provider score.
func judgeResponder(messages []domain.Message) string {
	prompt := messages[len(messages)-1].Content
	if !strings.Contains(prompt, "SCORE:") {
		return "Consolidated: aim for 4-5% APY in a high-yield savings account."
	}
	switch {
	case strings.Contains(prompt, "alpha/a1"):
		return "SCORE: 90\nJUSTIFICATION: thorough"
	case strings.Contains(prompt, "beta/b1"):
		return "SCORE: 70\nJUSTIFICATION: adequate"
	default:
		return "SCORE: 80\nJUSTIFICATION: good"
	}
}

type pipelineFixture struct {
	pipeline *Pipeline
	store    *memStore
	clients  map[string]*fakeClient
	judge    *fakeClient
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()

	clients := map[string]*fakeClient{
		"alpha/a1": newFakeClient("a1", "Look for 4% APY or better."),
		"beta/b1":  newFakeClient("b1", "High-yield accounts pay 4-5%."),
		"gamma/g1": newFakeClient("g1", "Anything above inflation is decent."),
	}
	judge := &fakeClient{model: "judge-xl", respond: judgeResponder}

	registryClients := map[string]ports.ChatClient{"judge/judge-xl": judge}
	for ref, c := range clients {
		registryClients[ref] = c
	}
	registry := &fakeRegistry{clients: registryClients}

	judgeTarget := domain.Target{Provider: "judge", Model: "judge-xl"}

	answerer, err := NewAnswerer(registry, AnswererConfig{
		Targets:      pipelineTargets,
		SystemPrompt: "You are a personal finance assistant.",
		Temperature:  0.3,
		MaxTokens:    1024,
		Timeout:      5 * time.Second,
		TokenBudget:  4096,
	})
	require.NoError(t, err)

	consolidator, err := NewConsolidator(registry, ConsolidatorConfig{
		Judge:       judgeTarget,
		Temperature: 0.3,
		MaxTokens:   1024,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	rater, err := NewRater(registry, RaterConfig{
		Judge:       judgeTarget,
		Temperature: 0.3,
		MaxTokens:   256,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)

	st := newMemStore()
	guard := NewScopeGuard([]string{"savings", "interest", "rate"})

	pipeline, err := NewPipeline(guard, answerer, consolidator, rater, st, nil)
	require.NoError(t, err)

	return &pipelineFixture{pipeline: pipeline, store: st, clients: clients, judge: judge}
}

func TestPipeline_AllBackendsSucceed(t *testing.T) {
	f := newPipelineFixture(t)

	result, err := f.pipeline.Submit(context.Background(), "", scopedQuestion)

	require.NoError(t, err)
	assert.NotEmpty(t, result.InquiryID)
	assert.NotEmpty(t, result.ThreadID)
	assert.Contains(t, result.ConsolidatedAnswer, "Consolidated")
	assert.Len(t, result.ProviderResults, 3)

	require.Len(t, f.store.inquiries, 1)
	assert.Len(t, f.store.answers, 3)
	assert.Len(t, f.store.consolidated, 1)
	assert.Len(t, f.store.ratings, 3)
}

func TestPipeline_OutOfScopeQuestionPersistsNothing(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.Submit(context.Background(), "", "What's the weather today?")

	require.ErrorIs(t, err, domain.ErrOutOfScope)
	assert.Empty(t, f.store.inquiries)
	assert.Equal(t, 0, f.clients["alpha/a1"].callCount())
	assert.Equal(t, 0, f.judge.callCount())
}

func TestPipeline_EmptyQuestionRejected(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.Submit(context.Background(), "", "   ")

	require.ErrorIs(t, err, domain.ErrEmptyQuestion)
	assert.Empty(t, f.store.inquiries)
}

func TestPipeline_AllBackendsFail(t *testing.T) {
	f := newPipelineFixture(t)
	for _, c := range f.clients {
		c.err = eris.New("backend down")
	}

	_, err := f.pipeline.Submit(context.Background(), "", scopedQuestion)

	require.ErrorIs(t, err, domain.ErrAllProvidersFailed)
	assert.Empty(t, f.store.answers)
	assert.Empty(t, f.store.consolidated)
	assert.Empty(t, f.store.ratings)
	// The inquiry itself was persisted before the answer round.
	assert.Len(t, f.store.inquiries, 1)
	// No rating was attempted with nothing to rate.
	assert.Equal(t, 0, f.judge.callCount())
}

func TestPipeline_PartialBackendFailure(t *testing.T) {
	f := newPipelineFixture(t)
	f.clients["beta/b1"].err = eris.New("backend down")

	result, err := f.pipeline.Submit(context.Background(), "", scopedQuestion)

	require.NoError(t, err)
	assert.Len(t, result.ProviderResults, 2)
	assert.Len(t, f.store.answers, 2)
	assert.Len(t, f.store.consolidated, 1)
	assert.Len(t, f.store.ratings, 2)

	providers := []string{result.ProviderResults[0].Provider, result.ProviderResults[1].Provider}
	assert.ElementsMatch(t, []string{"alpha", "gamma"}, providers)
}

func TestPipeline_RatingFailureDoesNotFailInquiry(t *testing.T) {
	f := newPipelineFixture(t)
	f.judge.respond = func(messages []domain.Message) string {
		prompt := messages[len(messages)-1].Content
		if !strings.Contains(prompt, "SCORE:") {
			return "Consolidated answer."
		}
		if strings.Contains(prompt, "alpha/a1") {
			// Malformed output degrades to the default rating.
			return "I refuse to produce a score."
		}
		return "SCORE: 75\nJUSTIFICATION: fine"
	}

	result, err := f.pipeline.Submit(context.Background(), "", scopedQuestion)

	require.NoError(t, err)
	assert.Len(t, result.ProviderResults, 3)
	require.Len(t, f.store.ratings, 3)

	scores := map[int]int{}
	for _, r := range f.store.ratings {
		scores[r.Score]++
	}
	assert.Equal(t, 1, scores[DefaultRatingScore])
	assert.Equal(t, 2, scores[75])
}

func TestPipeline_PersistenceFailureDegradesTrail(t *testing.T) {
	f := newPipelineFixture(t)
	f.store.failAnswers = true

	result, err := f.pipeline.Submit(context.Background(), "", scopedQuestion)

	// Answer persistence failures are logged and skipped, never fatal.
	require.NoError(t, err)
	assert.Len(t, result.ProviderResults, 3)
	assert.Empty(t, f.store.answers)
	assert.Len(t, f.store.consolidated, 1)
}

func TestPipeline_TrailReconstruction(t *testing.T) {
	f := newPipelineFixture(t)

	result, err := f.pipeline.Submit(context.Background(), "thread-1", scopedQuestion)
	require.NoError(t, err)
	assert.Equal(t, "thread-1", result.ThreadID)

	trail, err := f.pipeline.Trail(context.Background(), "thread-1")
	require.NoError(t, err)

	assert.Equal(t, "thread-1", trail.ThreadID)
	assert.Equal(t, 1, trail.Count)
	require.Len(t, trail.Inquiries, 1)

	inquiry := trail.Inquiries[0]
	assert.Equal(t, scopedQuestion, inquiry.Question)
	require.NotNil(t, inquiry.ConsolidatedAnswer)
	assert.Len(t, inquiry.ProviderAnswers, 3)

	require.Len(t, inquiry.ProviderRatings, 3)
	for i := 1; i < len(inquiry.ProviderRatings); i++ {
		assert.GreaterOrEqual(t,
			inquiry.ProviderRatings[i-1].Score,
			inquiry.ProviderRatings[i].Score)
	}
}

func TestPipeline_TrailRequiresThreadID(t *testing.T) {
	f := newPipelineFixture(t)

	_, err := f.pipeline.Trail(context.Background(), "  ")

	require.Error(t, err)
}

func TestPipeline_GeneratesThreadIDWhenEmpty(t *testing.T) {
	f := newPipelineFixture(t)

	first, err := f.pipeline.Submit(context.Background(), "", scopedQuestion)
	require.NoError(t, err)

	second, err := f.pipeline.Submit(context.Background(), "", scopedQuestion)
	require.NoError(t, err)

	assert.NotEmpty(t, first.ThreadID)
	assert.NotEmpty(t, second.ThreadID)
	assert.NotEqual(t, first.ThreadID, second.ThreadID)
}
