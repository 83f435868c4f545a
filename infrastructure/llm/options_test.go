package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintora/counsel/internal/domain"
)

func TestParseRequestOptions_Defaults(t *testing.T) {
	options := ParseRequestOptions(nil, "default-model")

	assert.Equal(t, DefaultMaxTokens, options.MaxTokens)
	assert.Equal(t, "default-model", options.Model)
	assert.Nil(t, options.Temperature)
	assert.Empty(t, options.System)
}

func TestParseRequestOptions_Overrides(t *testing.T) {
	options := ParseRequestOptions(map[string]any{
		"max_tokens":  256,
		"model":       "other-model",
		"temperature": 0.7,
		"system":      "be brief",
	}, "default-model")

	assert.Equal(t, 256, options.MaxTokens)
	assert.Equal(t, "other-model", options.Model)
	require.NotNil(t, options.Temperature)
	assert.InDelta(t, 0.7, *options.Temperature, 0.001)
	assert.Equal(t, "be brief", options.System)
}

func TestParseRequestOptions_IgnoresWrongTypes(t *testing.T) {
	options := ParseRequestOptions(map[string]any{
		"max_tokens":  "not a number",
		"temperature": "hot",
	}, "default-model")

	assert.Equal(t, DefaultMaxTokens, options.MaxTokens)
	assert.Nil(t, options.Temperature)
}

func TestSplitSystem(t *testing.T) {
	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: "you are a financial advisor"},
		{Role: domain.RoleUser, Content: "what is an index fund?"},
		{Role: domain.RoleAssistant, Content: "a pooled investment"},
		{Role: domain.RoleSystem, Content: "answer concisely"},
	}

	system, rest := SplitSystem(messages, RequestOptions{})

	assert.Equal(t, "you are a financial advisor\n\nanswer concisely", system)
	require.Len(t, rest, 2)
	assert.Equal(t, domain.RoleUser, rest[0].Role)
	assert.Equal(t, domain.RoleAssistant, rest[1].Role)
}

func TestSplitSystem_AppendsOptionSystem(t *testing.T) {
	messages := []domain.Message{
		{Role: domain.RoleSystem, Content: "from messages"},
		{Role: domain.RoleUser, Content: "hi"},
	}

	system, rest := SplitSystem(messages, RequestOptions{System: "from options"})

	assert.Equal(t, "from messages\n\nfrom options", system)
	assert.Len(t, rest, 1)
}

func TestSplitSystem_NoSystemMessages(t *testing.T) {
	messages := []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
	}

	system, rest := SplitSystem(messages, RequestOptions{})

	assert.Empty(t, system)
	assert.Len(t, rest, 1)
}

func TestTokenCounter_EstimateTokens(t *testing.T) {
	tc := NewTokenCounter()

	assert.Equal(t, 0, tc.EstimateTokens(""))
	assert.Equal(t, 1, tc.EstimateTokens("hi"))
	assert.Equal(t, 1, tc.EstimateTokens("abcd"))
	assert.Equal(t, 2, tc.EstimateTokens("abcde"))
}

func TestTokenCounter_GetTokenCount(t *testing.T) {
	tc := NewTokenCounter()

	assert.Equal(t, 42, tc.GetTokenCount(42, "ignored"))
	assert.Equal(t, 2, tc.GetTokenCount(0, "abcdefgh"))
}

func TestClampFloat64(t *testing.T) {
	assert.Equal(t, 0.0, ClampFloat64(-1.0, 0.0, 1.0))
	assert.Equal(t, 1.0, ClampFloat64(2.0, 0.0, 1.0))
	assert.Equal(t, 0.5, ClampFloat64(0.5, 0.0, 1.0))
}

func TestValidateBaseURL(t *testing.T) {
	empty, err := ValidateBaseURL("")
	require.NoError(t, err)
	assert.Empty(t, empty)

	parsed, err := ValidateBaseURL("https://api.example.com/v1")
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/v1", parsed)

	_, err = ValidateBaseURL("not a url")
	assert.Error(t, err)

	_, err = ValidateBaseURL("ftp://example.com")
	assert.Error(t, err)
}
