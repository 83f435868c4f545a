package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fintora/counsel/internal/domain"
)

func TestClient_GenerateShapesCompletion(t *testing.T) {
	mock := NewMockCoreLLM()
	client := &Client{core: mock, estimator: &SimpleTokenEstimator{}}

	completion, err := client.Generate(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "what is compound interest?"},
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "test response", completion.Text)
	assert.Equal(t, "test-model", completion.Model)
	assert.Equal(t, "stop", completion.FinishReason)
	assert.Equal(t, 10, completion.Usage.TokensIn)
	assert.Equal(t, 20, completion.Usage.TokensOut)
}

func TestClient_GenerateRejectsEmptyConversation(t *testing.T) {
	client := &Client{core: NewMockCoreLLM(), estimator: &SimpleTokenEstimator{}}

	_, err := client.Generate(context.Background(), nil, nil)

	require.ErrorIs(t, err, ErrNoMessages)
}

func TestClient_EstimateTokens(t *testing.T) {
	client := &Client{core: NewMockCoreLLM(), estimator: &SimpleTokenEstimator{}}

	n, err := client.EstimateTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = client.EstimateTokens("")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient("anthropic", ClientConfig{})

	require.ErrorIs(t, err, ErrEmptyAPIKey)
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient("nonexistent", ClientConfig{APIKey: "key"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNewClient_AppliesMiddlewareFirstOutermost(t *testing.T) {
	var order []string
	record := func(name string) Middleware {
		return func(next CoreLLM) CoreLLM {
			return &recordingLLM{next: next, name: name, order: &order}
		}
	}

	mock := NewMockCoreLLM()
	RegisterProviderFactory("mock-order", func(ClientConfig) (CoreLLM, error) {
		return mock, nil
	})

	client, err := NewClient("mock-order", ClientConfig{
		APIKey:     "key",
		Middleware: []Middleware{record("outer"), record("inner")},
	})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"outer", "inner"}, order)
}

type recordingLLM struct {
	next  CoreLLM
	name  string
	order *[]string
}

func (r *recordingLLM) DoRequest(ctx context.Context, messages []domain.Message, opts map[string]any) (*ProviderResponse, error) {
	*r.order = append(*r.order, r.name)
	return r.next.DoRequest(ctx, messages, opts)
}

func (r *recordingLLM) GetModel() string  { return r.next.GetModel() }
func (r *recordingLLM) SetModel(m string) { r.next.SetModel(m) }

func TestSimpleTokenEstimator(t *testing.T) {
	e := &SimpleTokenEstimator{}

	assert.Equal(t, 0, e.EstimateTokens(""))
	assert.Equal(t, 1, e.EstimateTokens("abc"))
	assert.Equal(t, 1, e.EstimateTokens("abcd"))
	assert.Equal(t, 2, e.EstimateTokens("abcde"))
}
