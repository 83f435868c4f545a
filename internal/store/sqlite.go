package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fintora/counsel/internal/domain"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS inquiries (
	id         TEXT PRIMARY KEY,
	thread_id  TEXT NOT NULL,
	question   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS provider_answers (
	id         TEXT PRIMARY KEY,
	inquiry_id TEXT NOT NULL REFERENCES inquiries(id),
	provider   TEXT NOT NULL,
	model      TEXT NOT NULL,
	answer     TEXT NOT NULL,
	latency_ms INTEGER NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS consolidated_answers (
	id         TEXT PRIMARY KEY,
	inquiry_id TEXT NOT NULL UNIQUE REFERENCES inquiries(id),
	answer     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS provider_ratings (
	id            TEXT PRIMARY KEY,
	inquiry_id    TEXT NOT NULL REFERENCES inquiries(id),
	provider      TEXT NOT NULL,
	model         TEXT NOT NULL,
	score         INTEGER NOT NULL CHECK (score BETWEEN 0 AND 100),
	justification TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_inquiries_thread_id ON inquiries(thread_id, created_at);
CREATE INDEX IF NOT EXISTS idx_provider_answers_inquiry_id ON provider_answers(inquiry_id);
CREATE INDEX IF NOT EXISTS idx_consolidated_answers_inquiry_id ON consolidated_answers(inquiry_id);
CREATE INDEX IF NOT EXISTS idx_provider_ratings_inquiry_id ON provider_ratings(inquiry_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateInquiry(ctx context.Context, threadID, question string) (*domain.Inquiry, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO inquiries (id, thread_id, question, created_at) VALUES (?, ?, ?, ?)`,
		id, threadID, question, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert inquiry")
	}

	return &domain.Inquiry{
		ID:        id,
		ThreadID:  threadID,
		Question:  question,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) CreateProviderAnswer(ctx context.Context, inquiryID, provider, model, answer string, latencyMs int64) (*domain.ProviderAnswer, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_answers (id, inquiry_id, provider, model, answer, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, inquiryID, provider, model, answer, latencyMs, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert provider answer for inquiry %s", inquiryID)
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

func (s *SQLiteStore) CreateConsolidatedAnswer(ctx context.Context, inquiryID, answer string) (*domain.ConsolidatedAnswer, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO consolidated_answers (id, inquiry_id, answer, created_at) VALUES (?, ?, ?, ?)`,
		id, inquiryID, answer, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert consolidated answer for inquiry %s", inquiryID)
	}

	return &domain.ConsolidatedAnswer{
		ID:        id,
		InquiryID: inquiryID,
		Answer:    answer,
		CreatedAt: now,
	}, nil
}

func (s *SQLiteStore) CreateProviderRating(ctx context.Context, inquiryID, provider, model string, score int, justification string) (*domain.ProviderRating, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_ratings (id, inquiry_id, provider, model, score, justification, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, inquiryID, provider, model, score, justification, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert provider rating for inquiry %s", inquiryID)
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

func (s *SQLiteStore) ThreadTrail(ctx context.Context, threadID string) (*domain.ThreadTrail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, question, created_at FROM inquiries
		 WHERE thread_id = ? ORDER BY created_at ASC, id ASC`,
		threadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list inquiries")
	}
	defer rows.Close()

	trail := &domain.ThreadTrail{ThreadID: threadID, Inquiries: []domain.InquiryTrail{}}
	for rows.Next() {
		var inq domain.Inquiry
		if err := rows.Scan(&inq.ID, &inq.ThreadID, &inq.Question, &inq.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan inquiry")
		}
		trail.Inquiries = append(trail.Inquiries, domain.InquiryTrail{Inquiry: inq})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate inquiries")
	}

	for i := range trail.Inquiries {
		if err := s.fillTrail(ctx, &trail.Inquiries[i]); err != nil {
			return nil, err
		}
	}

	trail.Count = len(trail.Inquiries)
	return trail, nil
}

func (s *SQLiteStore) fillTrail(ctx context.Context, trail *domain.InquiryTrail) error {
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

func (s *SQLiteStore) consolidatedAnswer(ctx context.Context, inquiryID string) (*domain.ConsolidatedAnswer, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, inquiry_id, answer, created_at FROM consolidated_answers WHERE inquiry_id = ?`,
		inquiryID,
	)

	var ca domain.ConsolidatedAnswer
	err := row.Scan(&ca.ID, &ca.InquiryID, &ca.Answer, &ca.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan consolidated answer")
	}
	return &ca, nil
}

func (s *SQLiteStore) providerAnswers(ctx context.Context, inquiryID string) ([]domain.ProviderAnswer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, inquiry_id, provider, model, answer, latency_ms, created_at
		 FROM provider_answers WHERE inquiry_id = ? ORDER BY created_at ASC, id ASC`,
		inquiryID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list provider answers")
	}
	defer rows.Close()

	answers := []domain.ProviderAnswer{}
	for rows.Next() {
		var pa domain.ProviderAnswer
		if err := rows.Scan(&pa.ID, &pa.InquiryID, &pa.Provider, &pa.Model, &pa.Answer, &pa.LatencyMs, &pa.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider answer")
		}
		answers = append(answers, pa)
	}
	return answers, eris.Wrap(rows.Err(), "sqlite: iterate provider answers")
}

func (s *SQLiteStore) providerRatings(ctx context.Context, inquiryID string) ([]domain.ProviderRating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, inquiry_id, provider, model, score, justification, created_at
		 FROM provider_ratings WHERE inquiry_id = ? ORDER BY score DESC, provider ASC`,
		inquiryID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list provider ratings")
	}
	defer rows.Close()

	ratings := []domain.ProviderRating{}
	for rows.Next() {
		var pr domain.ProviderRating
		if err := rows.Scan(&pr.ID, &pr.InquiryID, &pr.Provider, &pr.Model, &pr.Score, &pr.Justification, &pr.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provider rating")
		}
		ratings = append(ratings, pr)
	}
	return ratings, eris.Wrap(rows.Err(), "sqlite: iterate provider ratings")
}
