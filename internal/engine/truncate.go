package engine

import "github.com/fintora/counsel/internal/domain"

// ApproxTokens estimates the token count of text as ceil(len/4), matching
// the estimator used by the provider clients. No tokenizer dependency.
func ApproxTokens(text string) int {
	return (len(text) + 3) / 4
}

// TruncateMessages bounds a conversation to roughly budget tokens. System
// messages are always kept in full and placed first; the remaining messages
// are kept as a contiguous suffix of the most recent ones that fits the
// remaining budget, in original relative order. The newest non-system
// message is kept even when it alone exceeds the budget, so the result is
// never silently empty.
func TruncateMessages(messages []domain.Message, budget int) []domain.Message {
	var system, rest []domain.Message
	used := 0
	for _, m := range messages {
		if m.Role == domain.RoleSystem {
			system = append(system, m)
			used += ApproxTokens(m.Content)
			continue
		}
		rest = append(rest, m)
	}

	start := len(rest)
	for i := len(rest) - 1; i >= 0; i-- {
		cost := ApproxTokens(rest[i].Content)
		if start < len(rest) && used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	out := make([]domain.Message, 0, len(system)+len(rest)-start)
	out = append(out, system...)
	out = append(out, rest[start:]...)
	return out
}
