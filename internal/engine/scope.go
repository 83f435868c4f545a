// Package engine implements the answer consolidation pipeline: a question is
// screened for topic fit, fanned out to a configured set of LLM backends,
// synthesized into one consolidated answer by a judge model, and each
// original answer is scored against that consolidation. Every stage's output
// is persisted as an append-only audit trail keyed by conversation thread.
package engine

import (
	"strings"

	"golang.org/x/text/cases"
)

// ScopeGuard is a cheap keyword pre-filter that rejects questions outside
// the configured domain before any backend call is spent on them. It is
// deliberately imprecise; false positives and negatives are acceptable.
type ScopeGuard struct {
	keywords []string
}

// NewScopeGuard builds a guard from a keyword vocabulary. Keywords are
// case-folded once at construction; empty entries are dropped.
func NewScopeGuard(keywords []string) *ScopeGuard {
	folder := cases.Fold()
	folded := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		folded = append(folded, folder.String(kw))
	}
	return &ScopeGuard{keywords: folded}
}

// IsInScope reports whether any configured keyword appears in text,
// case-insensitively. Pure and deterministic; a guard with no keywords
// accepts everything.
func (g *ScopeGuard) IsInScope(text string) bool {
	if len(g.keywords) == 0 {
		return true
	}
	// cases.Fold caser is not safe for concurrent use, so fold per call.
	folded := cases.Fold().String(text)
	for _, kw := range g.keywords {
		if strings.Contains(folded, kw) {
			return true
		}
	}
	return false
}
