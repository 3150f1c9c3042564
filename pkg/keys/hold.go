package keys

import (
	"sort"
	"time"
)

// HoldTracker synthesizes key releases for input sources that only report
// key presses, such as terminals. A token counts as held while it keeps
// auto-repeating; it is released once no repeat arrived for the release
// window.
type HoldTracker struct {
	after time.Duration
	seen  map[Token]time.Time
}

// NewHoldTracker creates a tracker with the given release window. The window
// must exceed the keyboard's initial auto-repeat delay.
func NewHoldTracker(after time.Duration) *HoldTracker {
	return &HoldTracker{
		after: after,
		seen:  make(map[Token]time.Time),
	}
}

// Observe records a press of tok at now. It returns true for the first press
// of a hold and false for auto-repeats.
func (h *HoldTracker) Observe(tok Token, now time.Time) bool {
	_, held := h.seen[tok]
	h.seen[tok] = now
	return !held
}

// Expired removes and returns, in sorted order, every token that has not
// been observed within the release window.
func (h *HoldTracker) Expired(now time.Time) []Token {
	var out []Token
	for tok, last := range h.seen {
		if now.Sub(last) >= h.after {
			out = append(out, tok)
		}
	}
	for _, tok := range out {
		delete(h.seen, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Held returns the number of tokens currently considered held.
func (h *HoldTracker) Held() int {
	return len(h.seen)
}

// Reset forgets every held token without reporting releases.
func (h *HoldTracker) Reset() {
	clear(h.seen)
}
