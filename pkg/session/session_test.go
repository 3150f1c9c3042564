package session

import (
	"testing"

	"github.com/gwillem/armpilot/pkg/keys"
)

func TestSession_Defaults(t *testing.T) {
	s := New()
	if s.Connected() || s.ControlRunning() || s.WizardActive() {
		t.Errorf("new session should be closed: %+v", s)
	}
	if s.Mode() != Joint {
		t.Errorf("Mode() = %s, want joint", s.Mode())
	}
	if s.Speed() != 1.0 {
		t.Errorf("Speed() = %v, want 1.0", s.Speed())
	}
}

func TestSession_Gate(t *testing.T) {
	tests := []struct {
		name                       string
		connected, running, wizard bool
		tok                        keys.Token
		want                       bool
	}{
		{"open", true, true, false, "i", true},
		{"not running", true, false, false, "i", false},
		{"not connected", false, true, false, "i", false},
		{"wizard active", true, true, true, "i", false},
		{"mode switch while stopped", true, false, false, keys.ModeSwitch, true},
		{"estop while disconnected", false, false, false, keys.EStop, true},
		{"estop during wizard", true, true, true, keys.EStop, true},
	}

	for _, tt := range tests {
		s := New()
		s.SetConnected(tt.connected, Connection{})
		s.SetControlRunning(tt.running)
		s.SetWizardActive(tt.wizard)
		if got := s.CanEmit(tt.tok); got != tt.want {
			t.Errorf("%s: CanEmit(%q) = %v, want %v", tt.name, tt.tok, got, tt.want)
		}
	}
}

func TestSession_CanStartWizard(t *testing.T) {
	s := New()
	if s.CanStartWizard() {
		t.Error("CanStartWizard() = true while disconnected")
	}
	s.SetConnected(true, Connection{Port: "/dev/ttyACM0", Baudrate: "1000000"})
	if !s.CanStartWizard() {
		t.Error("CanStartWizard() = false while connected")
	}
}

func TestSession_ApplyStatus(t *testing.T) {
	s := New()
	s.ApplyStatus("Connected", &Connection{Port: "/dev/ttyUSB0", Baudrate: "115200"})
	if !s.Connected() {
		t.Fatal("Connected() = false after status Connected")
	}
	if got := s.Connection().String(); got != "/dev/ttyUSB0 @ 115200" {
		t.Errorf("Connection() = %q", got)
	}

	s.ApplyStatus("Disconnected", nil)
	if s.Connected() {
		t.Error("Connected() = true after status Disconnected")
	}
	if got := s.Connection().String(); got != "- @ -" {
		t.Errorf("Connection() = %q after disconnect", got)
	}
}

func TestSession_SetSpeedClamps(t *testing.T) {
	s := New()
	s.SetSpeed(5)
	if s.Speed() != MaxSpeed {
		t.Errorf("Speed() = %v, want %v", s.Speed(), MaxSpeed)
	}
	s.SetSpeed(0.01)
	if s.Speed() != MinSpeed {
		t.Errorf("Speed() = %v, want %v", s.Speed(), MinSpeed)
	}
}

func TestMode_Title(t *testing.T) {
	if Cartesian.Title() != "Cartesian" {
		t.Errorf("Title() = %q", Cartesian.Title())
	}
	if Mode("custom").Title() != "custom" {
		t.Errorf("Title() of unknown mode = %q", Mode("custom").Title())
	}
}
