package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/fintora/counsel/internal/domain"
	"github.com/fintora/counsel/internal/ports"
)

// fakeClient is a scripted ports.ChatClient for engine tests.
type fakeClient struct {
	mu      sync.Mutex
	model   string
	err     error
	delay   time.Duration
	respond func(messages []domain.Message) string
	calls   [][]domain.Message
}

func newFakeClient(model, response string) *fakeClient {
	return &fakeClient{
		model:   model,
		respond: func([]domain.Message) string { return response },
	}
}

func (f *fakeClient) Generate(ctx context.Context, messages []domain.Message, _ map[string]any) (*domain.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, messages)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}

	return &domain.Completion{
		Text:  f.respond(messages),
		Model: f.model,
		Usage: domain.Usage{TokensIn: 10, TokensOut: 20},
	}, nil
}

func (f *fakeClient) EstimateTokens(text string) (int, error) {
	return (len(text) + 3) / 4, nil
}

func (f *fakeClient) GetModel() string { return f.model }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeRegistry resolves clients from a fixed map of provider/model refs.
type fakeRegistry struct {
	clients map[string]ports.ChatClient
}

func (r *fakeRegistry) GetClient(ref string) (ports.ChatClient, error) {
	client, ok := r.clients[ref]
	if !ok {
		return nil, eris.Errorf("unknown client %q", ref)
	}
	return client, nil
}

// memStore is an in-memory store.Store for pipeline tests.
type memStore struct {
	mu sync.Mutex

	inquiries    []domain.Inquiry
	answers      []domain.ProviderAnswer
	consolidated []domain.ConsolidatedAnswer
	ratings      []domain.ProviderRating

	failAnswers bool
}

func newMemStore() *memStore { return &memStore{} }

func (m *memStore) CreateInquiry(_ context.Context, threadID, question string) (*domain.Inquiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inq := domain.Inquiry{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		Question:  question,
		CreatedAt: time.Now().UTC(),
	}
	m.inquiries = append(m.inquiries, inq)
	return &inq, nil
}

func (m *memStore) CreateProviderAnswer(_ context.Context, inquiryID, provider, model, answer string, latencyMs int64) (*domain.ProviderAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAnswers {
		return nil, eris.New("simulated write failure")
	}
	pa := domain.ProviderAnswer{
		ID:        uuid.New().String(),
		InquiryID: inquiryID,
		Provider:  provider,
		Model:     model,
		Answer:    answer,
		LatencyMs: latencyMs,
		CreatedAt: time.Now().UTC(),
	}
	m.answers = append(m.answers, pa)
	return &pa, nil
}

func (m *memStore) CreateConsolidatedAnswer(_ context.Context, inquiryID, answer string) (*domain.ConsolidatedAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ca := domain.ConsolidatedAnswer{
		ID:        uuid.New().String(),
		InquiryID: inquiryID,
		Answer:    answer,
		CreatedAt: time.Now().UTC(),
	}
	m.consolidated = append(m.consolidated, ca)
	return &ca, nil
}

func (m *memStore) CreateProviderRating(_ context.Context, inquiryID, provider, model string, score int, justification string) (*domain.ProviderRating, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pr := domain.ProviderRating{
		ID:            uuid.New().String(),
		InquiryID:     inquiryID,
		Provider:      provider,
		Model:         model,
		Score:         score,
		Justification: justification,
		CreatedAt:     time.Now().UTC(),
	}
	m.ratings = append(m.ratings, pr)
	return &pr, nil
}

func (m *memStore) ThreadTrail(_ context.Context, threadID string) (*domain.ThreadTrail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	trail := &domain.ThreadTrail{ThreadID: threadID, Inquiries: []domain.InquiryTrail{}}
	for _, inq := range m.inquiries {
		if inq.ThreadID != threadID {
			continue
		}
		it := domain.InquiryTrail{
			Inquiry:         inq,
			ProviderAnswers: []domain.ProviderAnswer{},
			ProviderRatings: []domain.ProviderRating{},
		}
		for _, ca := range m.consolidated {
			if ca.InquiryID == inq.ID {
				c := ca
				it.ConsolidatedAnswer = &c
			}
		}
		for _, pa := range m.answers {
			if pa.InquiryID == inq.ID {
				it.ProviderAnswers = append(it.ProviderAnswers, pa)
			}
		}
		for _, pr := range m.ratings {
			if pr.InquiryID == inq.ID {
				it.ProviderRatings = append(it.ProviderRatings, pr)
			}
		}
		sort.Slice(it.ProviderRatings, func(a, b int) bool {
			return it.ProviderRatings[a].Score > it.ProviderRatings[b].Score
		})
		trail.Inquiries = append(trail.Inquiries, it)
	}
	sort.Slice(trail.Inquiries, func(a, b int) bool {
		return trail.Inquiries[a].CreatedAt.Before(trail.Inquiries[b].CreatedAt)
	})
	trail.Count = len(trail.Inquiries)
	return trail, nil
}

func (m *memStore) Migrate(context.Context) error { return nil }
func (m *memStore) Close() error                  { return nil }
