// Package domain defines the core records of the answer consolidation
// pipeline. Every type here is write-once: the pipeline creates records and
// never mutates or deletes them.
package domain

import (
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleSystem marks instructions that steer backend behavior.
	RoleSystem Role = "system"
	// RoleUser marks content supplied by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks content previously produced by a backend.
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged entry in a conversation sent to a backend.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Usage reports token consumption for a single backend call.
// Counts are provider-reported when available and estimated otherwise.
type Usage struct {
	TokensIn  int `json:"tokens_in"`
	TokensOut int `json:"tokens_out"`
}

// Completion is the uniform result of one backend call, independent of the
// provider that produced it.
type Completion struct {
	Text         string `json:"text"`
	Model        string `json:"model"`
	FinishReason string `json:"finish_reason,omitempty"`
	Usage        Usage  `json:"usage"`
}

// Target names one provider/model pair eligible to answer questions.
// The set of targets is configuration, not part of the algorithm.
type Target struct {
	Provider string `yaml:"provider" json:"provider" mapstructure:"provider" validate:"required"`
	Model    string `yaml:"model" json:"model" mapstructure:"model" validate:"required"`
}

// Ref returns the registry key for this target in provider/model form.
func (t Target) Ref() string { return t.Provider + "/" + t.Model }

// Inquiry is the immutable record of one user question. It is created once
// the question passes the topic guard and is never updated afterwards.
type Inquiry struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	Question  string    `json:"question"`
	CreatedAt time.Time `json:"created_at"`
}

// ProviderAnswer is one backend's raw response to an Inquiry. A failed
// backend call simply has no ProviderAnswer row.
type ProviderAnswer struct {
	ID        string    `json:"id"`
	InquiryID string    `json:"inquiry_id"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model"`
	Answer    string    `json:"answer"`
	LatencyMs int64     `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

// ConsolidatedAnswer is the single synthesized answer for an Inquiry.
// It exists only when at least one ProviderAnswer succeeded.
type ConsolidatedAnswer struct {
	ID        string    `json:"id"`
	InquiryID string    `json:"inquiry_id"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// ProviderRating is a judge's score for one ProviderAnswer. Scores are
// always integers in [0,100]; out-of-range judge output is clamped upstream,
// never rejected.
type ProviderRating struct {
	ID            string    `json:"id"`
	InquiryID     string    `json:"inquiry_id"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	Score         int       `json:"score"`
	Justification string    `json:"justification"`
	CreatedAt     time.Time `json:"created_at"`
}

// InquiryTrail joins an Inquiry with everything the pipeline recorded for it.
type InquiryTrail struct {
	Inquiry
	ConsolidatedAnswer *ConsolidatedAnswer `json:"consolidated_answer,omitempty"`
	ProviderAnswers    []ProviderAnswer    `json:"provider_answers"`
	// ProviderRatings is ordered by descending score.
	ProviderRatings []ProviderRating `json:"provider_ratings"`
}

// ThreadTrail is the reconstructed audit trail for one conversation thread,
// with inquiries in chronological order.
type ThreadTrail struct {
	ThreadID  string         `json:"thread_id"`
	Inquiries []InquiryTrail `json:"inquiries"`
	Count     int            `json:"count"`
}
