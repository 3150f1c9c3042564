package main

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/armpilot/pkg/keys"
	"github.com/gwillem/armpilot/pkg/logs"
	"github.com/gwillem/armpilot/pkg/robot"
	"github.com/gwillem/armpilot/pkg/sched"
	"github.com/gwillem/armpilot/pkg/teleop"
	"github.com/gwillem/armpilot/pkg/transport"
)

// recordingEvents is an always-connected event channel that records keys.
type recordingEvents struct {
	keys []transport.KeyCommand
}

func (r *recordingEvents) Connected() bool { return true }

func (r *recordingEvents) SendKey(cmd transport.KeyCommand) error {
	r.keys = append(r.keys, cmd)
	return nil
}

func (r *recordingEvents) SendSlider(transport.SliderCommand) error { return nil }

func (r *recordingEvents) Inbound() <-chan transport.Inbound { return nil }

func (r *recordingEvents) keydowns(key string) int {
	n := 0
	for _, k := range r.keys {
		if k.Key == key && k.EventType == transport.KeyDown {
			n++
		}
	}
	return n
}

func TestConsoleHeldKeyStartsWithControl(t *testing.T) {
	clock := sched.NewFake(time.Unix(1000, 0))
	events := &recordingEvents{}
	ctrl := teleop.NewController(context.Background(), clock, nil, events, logs.New(20), teleop.Config{})
	m := newConsoleModel(ctrl, keys.NewHoldTracker(600*time.Millisecond), nil, "")
	press := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'i'}}

	m.handleKey(press)
	if got := events.keydowns("i"); got != 0 {
		t.Fatalf("%d keydowns before control started, want 0", got)
	}

	ctrl.Deliver(transport.StateUpdate{Status: "Connected"})
	ctrl.Deliver(transport.ControlResponse{Action: transport.ActionControlStarted})

	// Auto-repeats of the key held since before control started.
	m.handleKey(press)
	m.handleKey(press)
	if got := events.keydowns("i"); got != 1 {
		t.Errorf("%d keydowns after control started, want 1", got)
	}
}

func TestKeyEvent(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
		want keys.Event
		ok   bool
	}{
		{"letter", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'i'}}, keys.Event{Key: "i"}, true},
		{"space", tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}, keys.Event{Code: "Space", Key: " "}, true},
		{"alt", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'i'}, Alt: true}, keys.Event{}, false},
		{"paste", tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("ik")}, keys.Event{}, false},
		{"arrow", tea.KeyMsg{Type: tea.KeyUp}, keys.Event{}, false},
	}
	for _, tt := range tests {
		got, ok := keyEvent(tt.msg)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: keyEvent() = (%+v, %v), want (%+v, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSliderBar(t *testing.T) {
	lim := robot.JointLimit{Min: -100, Max: 100}
	tests := []struct {
		value float64
		pos   int
	}{
		{-100, 0},
		{0, 5},
		{100, 10},
		{500, 10},
	}
	for _, tt := range tests {
		bar := []rune(sliderBar(tt.value, lim, 11))
		if len(bar) != 11 {
			t.Fatalf("sliderBar(%v) width = %d, want 11", tt.value, len(bar))
		}
		if got := strings.IndexRune(string(bar), '●'); got < 0 || len(string(bar[:tt.pos])) != got {
			t.Errorf("sliderBar(%v) = %q, want knob at %d", tt.value, string(bar), tt.pos)
		}
	}
}

func TestExtremum(t *testing.T) {
	v := 12.345
	if got := extremum(&v); got != "12.3" {
		t.Errorf("extremum(12.345) = %q, want 12.3", got)
	}
	if got := extremum(nil); got != "-" {
		t.Errorf("extremum(nil) = %q, want -", got)
	}
}
