package domain

import (
	"errors"
)

// Common domain errors surfaced by the consolidation pipeline.
var (
	// ErrOutOfScope indicates that a question failed the topic guard.
	// It is surfaced before any record is persisted.
	ErrOutOfScope = errors.New("question is outside the supported domain")

	// ErrAllProvidersFailed indicates that every backend in the answer round
	// failed. This is the only condition the pipeline reports as a hard error.
	ErrAllProvidersFailed = errors.New("all providers failed to answer")

	// ErrNoAnswers indicates that consolidation was invoked without any
	// successful provider answers. Callers must not reach this state.
	ErrNoAnswers = errors.New("no provider answers to consolidate")

	// ErrEmptyQuestion indicates a blank question was submitted.
	ErrEmptyQuestion = errors.New("question cannot be empty")
)
