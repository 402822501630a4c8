package stream

import "github.com/racksdue/voice-application/pkg/provider/asr"

// tokenHistory accumulates decoding tokens across windows and prunes them to
// a bound at context refresh points. Oldest tokens are discarded first so the
// carried context keeps a recency bias. Not safe for concurrent use; only
// the driving goroutine touches it.
type tokenHistory struct {
	tokens []asr.Token
	limit  int
}

func newTokenHistory(limit int) *tokenHistory {
	return &tokenHistory{limit: limit}
}

// add appends every token of every segment, in order.
func (h *tokenHistory) add(segments []asr.Segment) {
	for _, seg := range segments {
		h.tokens = append(h.tokens, seg.Tokens...)
	}
}

// prune discards the oldest tokens beyond the limit. Pruning a sequence
// already at or below the limit is a no-op; the remainder is never
// reordered.
func (h *tokenHistory) prune() {
	if excess := len(h.tokens) - h.limit; excess > 0 {
		h.tokens = h.tokens[excess:]
	}
}

// current returns the carried tokens. The returned slice must not be
// modified by the caller.
func (h *tokenHistory) current() []asr.Token { return h.tokens }

func (h *tokenHistory) len() int { return len(h.tokens) }

func (h *tokenHistory) clear() { h.tokens = nil }
