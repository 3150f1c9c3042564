// Package transport talks to the arm server: a Socket.IO event channel for
// teleop commands and state snapshots, and a JSON REST API for everything
// that needs a reply.
//
// Server payloads are decoded into explicit types here so the rest of the
// console never sees raw JSON.
package transport

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gwillem/armpilot/pkg/robot"
)

// Event names on the Socket.IO channel.
const (
	EventControlKey      = "control:key"
	EventControlSlider   = "control:slider"
	EventStateUpdate     = "state:update"
	EventControlResponse = "control:response"
	EventRobotError      = "robot:error"
	EventCalibrationLog  = "calibration:log"
	EventServerHello     = "server:hello"
	EventAutoConnected   = "robot:auto_connected"
)

// Key event types.
const (
	KeyDown = "keydown"
	KeyUp   = "keyup"
)

// KeyCommand is the payload of control:key.
type KeyCommand struct {
	Key       string `json:"key"`
	EventType string `json:"event_type"`
	Timestamp int64  `json:"timestamp"`
}

// SliderCommand is the payload of control:slider.
type SliderCommand struct {
	JointIndex     int     `json:"joint_index"`
	TargetPosition float64 `json:"target_position"`
}

// Inbound is any decoded server-pushed event.
type Inbound interface {
	inbound()
}

// Baud accepts a baud rate sent either as a number or a string.
type Baud string

func (b *Baud) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" {
		*b = ""
		return nil
	}
	*b = Baud(s)
	return nil
}

// MarshalJSON emits numeric baud rates as numbers.
func (b Baud) MarshalJSON() ([]byte, error) {
	if b == "" {
		return []byte("null"), nil
	}
	if _, err := strconv.Atoi(string(b)); err == nil {
		return []byte(b), nil
	}
	return json.Marshal(string(b))
}

// ConnectionInfo describes the server's link to the robot.
type ConnectionInfo struct {
	Port     string `json:"port"`
	Host     string `json:"host"`
	Baudrate Baud   `json:"baudrate"`
}

// Endpoint returns the port, or the host for TCP connections.
func (c ConnectionInfo) Endpoint() string {
	if c.Port != "" {
		return c.Port
	}
	return c.Host
}

// LimitTuples holds the [min, max] pairs of joint_limits. Decoding is
// lenient: an entry that is not a pair of numbers becomes nil and falls back
// to the default limit, and a joint_limits value that is not an array is
// dropped, so a bad limit never costs the rest of the snapshot.
type LimitTuples [][]float64

func (t *LimitTuples) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*t = nil
		return nil
	}
	out := make(LimitTuples, len(raw))
	for i, r := range raw {
		var pair []*float64
		if json.Unmarshal(r, &pair) != nil || len(pair) != 2 || pair[0] == nil || pair[1] == nil {
			continue
		}
		out[i] = []float64{*pair[0], *pair[1]}
	}
	*t = out
	return nil
}

// StateUpdate is the payload of state:update. Every field is optional.
type StateUpdate struct {
	JointPositions []float64       `json:"joint_positions,omitempty"`
	JointLimits    LimitTuples     `json:"joint_limits,omitempty"`
	Status         string          `json:"status,omitempty"`
	Connection     *ConnectionInfo `json:"connection,omitempty"`
}

// Positions returns the reported joint positions. The second result is false
// when the snapshot carries none.
func (s StateUpdate) Positions() (robot.Positions, bool) {
	var p robot.Positions
	if len(s.JointPositions) == 0 {
		return p, false
	}
	copy(p[:], s.JointPositions)
	return p, true
}

// Limits returns the normalized joint limits. The second result is false
// when the snapshot carries none.
func (s StateUpdate) Limits() (robot.Limits, bool) {
	if len(s.JointLimits) == 0 {
		return robot.DefaultLimits(), false
	}
	return robot.ParseLimits(s.JointLimits), true
}

// Control response actions.
const (
	ActionModeChange     = "mode_change"
	ActionSpeedChange    = "speed_change"
	ActionEStop          = "estop"
	ActionControlStarted = "control_started"
	ActionControlStopped = "control_stopped"
	ActionJointMove      = "joint_move"
	ActionCartesianMove  = "cartesian_move"
	ActionGripperToggle  = "gripper_toggle"
	ActionIgnored        = "ignored"
	ActionError          = "error"
)

// ControlStatus is the server's keyboard controller status.
type ControlStatus struct {
	Mode            string  `json:"mode"`
	EStopActive     bool    `json:"estop_active"`
	SpeedMultiplier float64 `json:"speed_multiplier"`
	StepSize        float64 `json:"step_size"`
	Running         bool    `json:"running"`
}

// ControlResponse is the payload of control:response.
type ControlResponse struct {
	Action     string          `json:"action"`
	Mode       string          `json:"mode,omitempty"`
	Multiplier float64         `json:"multiplier,omitempty"`
	Active     bool            `json:"active,omitempty"`
	Message    string          `json:"message,omitempty"`
	Joint      int             `json:"joint,omitempty"`
	Axis       int             `json:"axis,omitempty"`
	Delta      json.RawMessage `json:"delta,omitempty"`
	Success    bool            `json:"success,omitempty"`
	Status     *ControlStatus  `json:"status,omitempty"`
}

// JointDelta returns the scalar delta of a joint_move response.
func (r ControlResponse) JointDelta() float64 {
	var d float64
	if len(r.Delta) > 0 {
		_ = json.Unmarshal(r.Delta, &d)
	}
	return d
}

// ServerMessage is the payload of robot:error, calibration:log and
// server:hello.
type ServerMessage struct {
	Event   string `json:"-"`
	Message string `json:"message"`
	Level   string `json:"level,omitempty"`
}

// AutoConnected is the payload of robot:auto_connected.
type AutoConnected struct {
	Port     string `json:"port"`
	Baudrate Baud   `json:"baudrate"`
}

// SocketState reports transport connectivity changes. It says nothing about
// whether the robot itself is connected.
type SocketState struct {
	Connected bool
	Attempt   int
	Err       error
}

func (StateUpdate) inbound()     {}
func (ControlResponse) inbound() {}
func (ServerMessage) inbound()   {}
func (AutoConnected) inbound()   {}
func (SocketState) inbound()     {}

// decodeInbound decodes a named event payload. Unknown events return nil.
func decodeInbound(name string, payload json.RawMessage) (Inbound, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	switch name {
	case EventStateUpdate:
		var v StateUpdate
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EventControlResponse:
		var v ControlResponse
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		return v, nil
	case EventRobotError, EventCalibrationLog, EventServerHello:
		var v ServerMessage
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		v.Event = name
		return v, nil
	case EventAutoConnected:
		var v AutoConnected
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, err
		}
		return v, nil
	}
	return nil, nil
}
