package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/ports"
)

func testConsolidator(t *testing.T, judge *fakeClient) *Consolidator {
	t.Helper()
	registry := &fakeRegistry{clients: map[string]ports.ChatClient{
		"judge/judge-xl": judge,
	}}
	c, err := NewConsolidator(registry, ConsolidatorConfig{
		Judge:       domain.Target{Provider: "judge", Model: "judge-xl"},
		Temperature: 0.3,
		MaxTokens:   1024,
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)
	return c
}

func sampleAnswers() []AnswerResult {
	return []AnswerResult{
		{Target: domain.Target{Provider: "alpha", Model: "a1"}, Text: "Put it in a high-yield account."},
		{Target: domain.Target{Provider: "beta", Model: "b1"}, Text: "Around 4-5% APY is typical."},
	}
}

func TestConsolidator_BuildPromptEnumeratesAnswers(t *testing.T) {
	c := testConsolidator(t, newFakeClient("judge-xl", "combined"))

	prompt, err := c.BuildPrompt("What's a good savings rate?", sampleAnswers())

	require.NoError(t, err)
	assert.Contains(t, prompt, "What's a good savings rate?")
	assert.Contains(t, prompt, "alpha/a1")
	assert.Contains(t, prompt, "beta/b1")
	assert.Contains(t, prompt, "Put it in a high-yield account.")
	assert.Contains(t, prompt, "Around 4-5% APY is typical.")
}

func TestConsolidator_ConsolidateReturnsJudgeText(t *testing.T) {
	judge := newFakeClient("judge-xl", "A good savings rate is 4-5% APY in a high-yield account.")
	c := testConsolidator(t, judge)

	text, err := c.Consolidate(context.Background(), "What's a good savings rate?", sampleAnswers())

	require.NoError(t, err)
	assert.Equal(t, "A good savings rate is 4-5% APY in a high-yield account.", text)
	assert.Equal(t, 1, judge.callCount())
}

func TestConsolidator_RejectsEmptyAnswerList(t *testing.T) {
	judge := newFakeClient("judge-xl", "never called")
	c := testConsolidator(t, judge)

	_, err := c.Consolidate(context.Background(), "question", nil)

	require.ErrorIs(t, err, domain.ErrNoAnswers)
	assert.Equal(t, 0, judge.callCount())
}

func TestConsolidator_PropagatesJudgeFailure(t *testing.T) {
	judge := newFakeClient("judge-xl", "")
	judge.err = context.DeadlineExceeded
	c := testConsolidator(t, judge)

	_, err := c.Consolidate(context.Background(), "question", sampleAnswers())

	require.Error(t, err)
}

func TestConsolidator_CustomTemplate(t *testing.T) {
	registry := &fakeRegistry{clients: map[string]ports.ChatClient{
		"judge/judge-xl": newFakeClient("judge-xl", "ok"),
	}}
	c, err := NewConsolidator(registry, ConsolidatorConfig{
		Judge:          domain.Target{Provider: "judge", Model: "judge-xl"},
		PromptTemplate: "Q={{.Question}} N={{len .Answers}}",
		Temperature:    0.3,
		MaxTokens:      512,
		Timeout:        time.Second,
	})
	require.NoError(t, err)

	prompt, err := c.BuildPrompt("hello", sampleAnswers())
	require.NoError(t, err)
	assert.Equal(t, "Q=hello N=2", prompt)
}

func TestNewConsolidator_RejectsBadTemplate(t *testing.T) {
	registry := &fakeRegistry{clients: map[string]ports.ChatClient{}}
	_, err := NewConsolidator(registry, ConsolidatorConfig{
		Judge:          domain.Target{Provider: "judge", Model: "judge-xl"},
		PromptTemplate: "{{.Unclosed",
		Temperature:    0.3,
		MaxTokens:      512,
		Timeout:        time.Second,
	})
	require.Error(t, err)
}
