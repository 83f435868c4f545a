// Package store persists the pipeline's audit trail. Every record type is
// write-once and append-only; there is no update or delete path.
package store

import (
	"context"

	"github.com/fintora/counsel/internal/domain"
)

// Store defines the persistence interface for the consolidation pipeline.
// Identifiers and timestamps are generated inside the store, so callers pass
// only domain data. Implementations must tolerate concurrent independent
// writes; distinct records never contend.
type Store interface {
	// Write path. Each record is immutable once written; a failed write
	// leaves that record absent from the trail without affecting others.
	CreateInquiry(ctx context.Context, threadID, question string) (*domain.Inquiry, error)
	CreateProviderAnswer(ctx context.Context, inquiryID, provider, model, answer string, latencyMs int64) (*domain.ProviderAnswer, error)
	CreateConsolidatedAnswer(ctx context.Context, inquiryID, answer string) (*domain.ConsolidatedAnswer, error)
	CreateProviderRating(ctx context.Context, inquiryID, provider, model string, score int, justification string) (*domain.ProviderRating, error)

	// Read path. ThreadTrail reconstructs every inquiry for a thread in
	// chronological order, with ratings sorted by descending score.
	ThreadTrail(ctx context.Context, threadID string) (*domain.ThreadTrail, error)

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close() error
}
