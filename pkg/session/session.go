// Package session holds the control session state shared by teleoperation
// and the calibration wizard, and the gate that decides whether commands may
// be emitted.
//
// The gate follows server acknowledgements and server-pushed status only.
// Socket connectivity is a transport fact and never opens it.
package session

import (
	"fmt"

	"github.com/gwillem/armpilot/pkg/keys"
)

// Mode is the server-side teleoperation mode.
type Mode string

const (
	Joint     Mode = "joint"
	Cartesian Mode = "cartesian"
	Gripper   Mode = "gripper"
)

// Title returns the display name of the mode.
func (m Mode) Title() string {
	switch m {
	case Joint:
		return "Joint"
	case Cartesian:
		return "Cartesian"
	case Gripper:
		return "Gripper"
	}
	return string(m)
}

// Speed multiplier bounds enforced by the server.
const (
	MinSpeed = 0.1
	MaxSpeed = 2.0
)

// Connection describes where the server reached the robot.
type Connection struct {
	Port     string
	Baudrate string
}

// String formats the connection for the status bar.
func (c Connection) String() string {
	port, baud := c.Port, c.Baudrate
	if port == "" {
		port = "-"
	}
	if baud == "" {
		baud = "-"
	}
	return fmt.Sprintf("%s @ %s", port, baud)
}

// Session is the client's view of the control session. It is owned by the
// scheduler goroutine.
type Session struct {
	connected      bool
	controlRunning bool
	wizardActive   bool
	mode           Mode
	speed          float64
	conn           Connection
	status         string
}

// New returns a disconnected session in joint mode at 1.0x speed.
func New() *Session {
	return &Session{mode: Joint, speed: 1.0, status: "Disconnected"}
}

func (s *Session) Connected() bool        { return s.connected }
func (s *Session) ControlRunning() bool   { return s.controlRunning }
func (s *Session) WizardActive() bool     { return s.wizardActive }
func (s *Session) Mode() Mode             { return s.mode }
func (s *Session) Speed() float64         { return s.speed }
func (s *Session) Connection() Connection { return s.conn }
func (s *Session) Status() string         { return s.status }

// SetConnected records a connect/disconnect acknowledgement.
func (s *Session) SetConnected(connected bool, conn Connection) {
	s.connected = connected
	if connected {
		s.status = "Connected"
		s.conn = conn
	} else {
		s.status = "Disconnected"
		s.conn = Connection{}
	}
}

// ApplyStatus records a status string pushed by the server. Only the exact
// status "Connected" counts as connected.
func (s *Session) ApplyStatus(status string, conn *Connection) {
	s.status = status
	s.connected = status == "Connected"
	if conn != nil {
		s.conn = *conn
	} else if !s.connected {
		s.conn = Connection{}
	}
}

// SetControlRunning records a control start/stop acknowledgement.
func (s *Session) SetControlRunning(running bool) {
	s.controlRunning = running
}

// SetWizardActive marks the calibration wizard as holding the arm.
func (s *Session) SetWizardActive(active bool) {
	s.wizardActive = active
}

// SetMode records a mode change acknowledged by the server.
func (s *Session) SetMode(m Mode) {
	if m != "" {
		s.mode = m
	}
}

// SetSpeed records a speed change acknowledged by the server.
func (s *Session) SetSpeed(v float64) {
	s.speed = max(MinSpeed, min(MaxSpeed, v))
}

// TeleopOpen reports whether non-exempt teleop commands may be emitted.
// While the wizard is active the arm is under manual calibration and teleop
// commands are held back.
func (s *Session) TeleopOpen() bool {
	return s.connected && s.controlRunning && !s.wizardActive
}

// CanEmit reports whether a command for tok may be emitted. Mode switch and
// emergency stop are always allowed.
func (s *Session) CanEmit(tok keys.Token) bool {
	if keys.IsExempt(tok) {
		return true
	}
	return s.TeleopOpen()
}

// CanStartWizard reports whether the calibration wizard may start.
func (s *Session) CanStartWizard() bool {
	return s.connected
}
