// Package keys turns raw key events into canonical control tokens.
//
// Physical key codes are preferred over the produced character so that the
// mapping survives keyboard layout and input method changes. Characters are
// only used when no physical mapping exists.
package keys

import "strings"

// Token is a canonical control input, independent of keyboard layout.
type Token string

// Control tokens understood by the arm server.
const (
	ModeSwitch Token = "m"
	EStop      Token = " "
	SpeedUp    Token = "+"
	SpeedDown  Token = "-"
	Gripper    Token = "c"
)

// Event is a single key-down or key-up as delivered by the input layer.
type Event struct {
	// Code is the physical key identifier ("KeyI", "Digit7", "Space").
	Code string
	// Key is the produced character or key name, used as a fallback.
	Key string
	// Composing is set while an input method composition is in progress.
	Composing bool
}

var codeToToken = map[string]Token{
	"KeyI": "i", "KeyK": "k", "KeyJ": "j", "KeyL": "l",
	"KeyU": "u", "KeyO": "o", "KeyY": "y", "KeyH": "h",
	"KeyW": "w", "KeyS": "s", "KeyA": "a", "KeyD": "d",
	"KeyQ": "q", "KeyE": "e", "KeyR": "r", "KeyF": "f",
	"KeyT": "t", "KeyG": "g", "KeyZ": "z", "KeyX": "x",
	"KeyC": "c", "KeyM": "m",
	"Digit7": "7", "Digit8": "8", "Digit9": "9", "Digit0": "0",
	"Space": EStop,
	"Equal": SpeedUp, "Minus": SpeedDown,
}

var ignored = map[string]bool{
	"meta": true, "control": true, "ctrl": true, "alt": true, "shift": true,
	"capslock": true, "tab": true, "escape": true, "esc": true,
	"f1": true, "f2": true, "f3": true, "f4": true, "f5": true, "f6": true,
	"f7": true, "f8": true, "f9": true, "f10": true, "f11": true, "f12": true,
	"insert": true, "delete": true, "home": true, "end": true,
	"pageup": true, "pagedown": true, "pgup": true, "pgdown": true,
	"arrowup": true, "arrowdown": true, "arrowleft": true, "arrowright": true,
	"up": true, "down": true, "left": true, "right": true,
	"backspace": true, "enter": true, "numlock": true, "scrolllock": true,
	// "a" has no binding in any mode.
	"a": true,
}

// Normalize maps an event to a control token. The second result is false
// when the event must be ignored.
func Normalize(ev Event) (Token, bool) {
	if ev.Composing {
		return "", false
	}

	var key string
	if tok, ok := codeToToken[ev.Code]; ok {
		key = string(tok)
	} else {
		key = strings.ToLower(ev.Key)
		switch ev.Key {
		case "+", "=":
			key = "+"
		case "-", "_":
			key = "-"
		}
	}

	// Modifier chords such as "ctrl+c" or "alt+i".
	if len(key) > 1 && strings.Contains(key, "+") {
		return "", false
	}
	if key == "" || ignored[key] || isHangul(key) {
		return "", false
	}
	return Token(key), true
}

// IsExempt reports whether tok controls the session itself and may be sent
// while teleoperation is stopped.
func IsExempt(tok Token) bool {
	return tok == ModeSwitch || tok == EStop
}

// isHangul reports whether s is a single Hangul jamo or syllable.
func isHangul(s string) bool {
	r := []rune(s)
	if len(r) != 1 {
		return false
	}
	c := r[0]
	return (c >= 0x1100 && c <= 0x11FF) ||
		(c >= 0x3130 && c <= 0x318F) ||
		(c >= 0xAC00 && c <= 0xD7AF)
}

// Label returns a display label for a token.
func Label(tok Token) string {
	if tok == EStop {
		return "SPACE"
	}
	return strings.ToUpper(string(tok))
}
