package teleop

import (
	"sort"
	"time"

	"github.com/gwillem/armpilot/pkg/keys"
)

// Keystate tracks held tokens and when each was last sent. An entry exists
// exactly while its token is held.
type Keystate struct {
	lastSent map[keys.Token]time.Time
}

// NewKeystate returns an empty table.
func NewKeystate() *Keystate {
	return &Keystate{lastSent: make(map[keys.Token]time.Time)}
}

// Insert adds tok with its send time. It returns false if tok is already
// held.
func (k *Keystate) Insert(tok keys.Token, sentAt time.Time) bool {
	if _, ok := k.lastSent[tok]; ok {
		return false
	}
	k.lastSent[tok] = sentAt
	return true
}

// Touch records a repeat send of a held token.
func (k *Keystate) Touch(tok keys.Token, sentAt time.Time) {
	if _, ok := k.lastSent[tok]; ok {
		k.lastSent[tok] = sentAt
	}
}

// Remove deletes tok. It returns false if tok was not held.
func (k *Keystate) Remove(tok keys.Token) bool {
	if _, ok := k.lastSent[tok]; !ok {
		return false
	}
	delete(k.lastSent, tok)
	return true
}

// LastSent returns when tok was last sent.
func (k *Keystate) LastSent(tok keys.Token) (time.Time, bool) {
	t, ok := k.lastSent[tok]
	return t, ok
}

// Held returns the held tokens in sorted order.
func (k *Keystate) Held() []keys.Token {
	out := make([]keys.Token, 0, len(k.lastSent))
	for tok := range k.lastSent {
		out = append(out, tok)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clear removes every entry and returns the tokens that were held.
func (k *Keystate) Clear() []keys.Token {
	held := k.Held()
	clear(k.lastSent)
	return held
}

func (k *Keystate) Len() int {
	return len(k.lastSent)
}
