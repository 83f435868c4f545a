package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fintora/counsel/internal/domain"
)

// Pool is the subset of pgxpool.Pool the store uses. Declared as an
// interface so tests can substitute a mock pool.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS inquiries (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL,
	question   TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_answers (
	id         TEXT PRIMARY KEY,
	inquiry_id TEXT NOT NULL REFERENCES inquiries(id),
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL,
	answer     TEXT NOT NULL,
	latency_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS consolidated_answers (
	id         TEXT PRIMARY KEY,
	inquiry_id TEXT NOT NULL UNIQUE REFERENCES inquiries(id),
	answer     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS provider_ratings (
	id            TEXT PRIMARY KEY,
	inquiry_id    TEXT NOT NULL REFERENCES inquiries(id),
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	score         INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	justification TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_inquiries_thread_id ON inquiries(thread_id, created_at);
CREATE INDEX IF NOT EXISTS idx_provider_answers_inquiry_id ON provider_answers(inquiry_id);
CREATE INDEX IF NOT EXISTS idx_consolidated_answers_inquiry_id ON consolidated_answers(inquiry_id);
CREATE INDEX IF NOT EXISTS idx_provider_ratings_inquiry_id ON provider_ratings(inquiry_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateInquiry(ctx context.Context, threadID, question string) (*domain.Inquiry, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO inquiries (id, thread_id, question, created_at) VALUES ($1, $2, $3, $4)`,
		id, threadID, question, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert inquiry")
	}

	return &domain.Inquiry{
		ID:        id,
		ThreadID:  threadID,
		Question:  question,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) CreateProviderAnswer(ctx context.Context, inquiryID, provider, model, answer string, latencyMs int64) (*domain.ProviderAnswer, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_answers (id, inquiry_id, provider, model, answer, latency_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, inquiryID, provider, model, answer, latencyMs, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert provider answer for inquiry %s", inquiryID)
	}

	return &domain.ProviderAnswer{
		ID:        id,
		InquiryID: inquiryID,
		Provider:  provider,
		Model:     model,
		Answer:    answer,
		LatencyMs: latencyMs,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) CreateConsolidatedAnswer(ctx context.Context, inquiryID, answer string) (*domain.ConsolidatedAnswer, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO consolidated_answers (id, inquiry_id, answer, created_at) VALUES ($1, $2, $3, $4)`,
		id, inquiryID, answer, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert consolidated answer for inquiry %s", inquiryID)
	}

	return &domain.ConsolidatedAnswer{
		ID:        id,
		InquiryID: inquiryID,
		Answer:    answer,
		CreatedAt: now,
	}, nil
}

func (s *PostgresStore) CreateProviderRating(ctx context.Context, inquiryID, provider, model string, score int, justification string) (*domain.ProviderRating, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO provider_ratings (id, inquiry_id, provider, model, score, justification, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, inquiryID, provider, model, score, justification, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert provider rating for inquiry %s", inquiryID)
	}

	return &domain.ProviderRating{
		ID:            id,
		InquiryID:     inquiryID,
		Provider:      provider,
		Model:         model,
		Score:         score,
		Justification: justification,
		CreatedAt:     now,
	}, nil
}

func (s *PostgresStore) ThreadTrail(ctx context.Context, threadID string) (*domain.ThreadTrail, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, thread_id, question, created_at FROM inquiries
		 WHERE thread_id = $1 ORDER BY created_at ASC, id ASC`,
		threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list inquiries")
	}

	trail := &domain.ThreadTrail{ThreadID: threadID, Inquiries: []domain.InquiryTrail{}}
	for rows.Next() {
		var inq domain.Inquiry
		if err := rows.Scan(&inq.ID, &inq.ThreadID, &inq.Question, &inq.CreatedAt); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan inquiry")
		}
		trail.Inquiries = append(trail.Inquiries, domain.InquiryTrail{Inquiry: inq})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate inquiries")
	}

	for i := range trail.Inquiries {
		if err := s.fillTrail(ctx, &trail.Inquiries[i]); err != nil {
			return nil, err
		}
	}

	trail.Count = len(trail.Inquiries)
	return trail, nil
}

func (s *PostgresStore) fillTrail(ctx context.Context, trail *domain.InquiryTrail) error {
	consolidated, err := s.consolidatedAnswer(ctx, trail.ID)
	if err != nil {
		return err
	}
	trail.ConsolidatedAnswer = consolidated

	trail.ProviderAnswers, err = s.providerAnswers(ctx, trail.ID)
	if err != nil {
		return err
	}

	trail.ProviderRatings, err = s.providerRatings(ctx, trail.ID)
	return err
}

func (s *PostgresStore) consolidatedAnswer(ctx context.Context, inquiryID string) (*domain.ConsolidatedAnswer, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, inquiry_id, answer, created_at FROM consolidated_answers WHERE inquiry_id = $1`,
		inquiryID,
	)

	var ca domain.ConsolidatedAnswer
	err := row.Scan(&ca.ID, &ca.InquiryID, &ca.Answer, &ca.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan consolidated answer")
	}
	return &ca, nil
}

func (s *PostgresStore) providerAnswers(ctx context.Context, inquiryID string) ([]domain.ProviderAnswer, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, inquiry_id, provider, model, answer, latency_ms, created_at
		 FROM provider_answers WHERE inquiry_id = $1 ORDER BY created_at ASC, id ASC`,
		inquiryID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list provider answers")
	}
	defer rows.Close()

	answers := []domain.ProviderAnswer{}
	for rows.Next() {
		var pa domain.ProviderAnswer
		if err := rows.Scan(&pa.ID, &pa.InquiryID, &pa.Provider, &pa.Model, &pa.Answer, &pa.LatencyMs, &pa.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider answer")
		}
		answers = append(answers, pa)
	}
	return answers, eris.Wrap(rows.Err(), "postgres: iterate provider answers")
}

func (s *PostgresStore) providerRatings(ctx context.Context, inquiryID string) ([]domain.ProviderRating, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, inquiry_id, provider, model, score, justification, created_at
		 FROM provider_ratings WHERE inquiry_id = $1 ORDER BY score DESC, provider ASC`,
		inquiryID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list provider ratings")
	}
	defer rows.Close()

	ratings := []domain.ProviderRating{}
	for rows.Next() {
		var pr domain.ProviderRating
		if err := rows.Scan(&pr.ID, &pr.InquiryID, &pr.Provider, &pr.Model, &pr.Score, &pr.Justification, &pr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provider rating")
		}
		ratings = append(ratings, pr)
	}
	return ratings, eris.Wrap(rows.Err(), "postgres: iterate provider ratings")
}
