package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScopeGuard_MatchesKeywordsCaseInsensitively(t *testing.T) {
	guard := NewScopeGuard([]string{"savings", "interest", "rate"})

	assert.True(t, guard.IsInScope("What's a good savings account interest rate?"))
	assert.True(t, guard.IsInScope("WHAT IS THE INTEREST RATE"))
	assert.True(t, guard.IsInScope("My SaViNgS are shrinking"))
}

func TestScopeGuard_RejectsOffTopicText(t *testing.T) {
	guard := NewScopeGuard([]string{"savings", "interest", "rate"})

	assert.False(t, guard.IsInScope("What's the weather today?"))
	assert.False(t, guard.IsInScope(""))
}

func TestScopeGuard_MatchesSubstrings(t *testing.T) {
	// Substring matching is deliberate: "rates" contains "rate".
	guard := NewScopeGuard([]string{"rate"})

	assert.True(t, guard.IsInScope("comparing mortgage rates"))
	assert.True(t, guard.IsInScope("the pirate ship")) // imprecision is accepted
}

func TestScopeGuard_Deterministic(t *testing.T) {
	guard := NewScopeGuard([]string{"budget"})

	text := "How do I budget for a vacation?"
	first := guard.IsInScope(text)
	for range 10 {
		assert.Equal(t, first, guard.IsInScope(text))
	}
}

func TestScopeGuard_EmptyVocabularyAcceptsEverything(t *testing.T) {
	guard := NewScopeGuard(nil)

	assert.True(t, guard.IsInScope("anything at all"))
}

func TestScopeGuard_IgnoresBlankKeywords(t *testing.T) {
	guard := NewScopeGuard([]string{"", "  ", "loan"})

	assert.True(t, guard.IsInScope("car loan terms"))
	assert.False(t, guard.IsInScope("unrelated text"))
}
