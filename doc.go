// Package armpilot is a terminal operator console for a remote SO-100/SO-101
// arm server.
//
// It teleoperates the arm from the keyboard, sets absolute joint targets with
// sliders, and walks the operator through the server-driven joint calibration
// wizard.
//
// # Installation
//
//	go install github.com/gwillem/armpilot/cmd/armpilot@latest
//
// # Usage
//
// Connect the server to the robot, then open the console:
//
//	armpilot connect
//	armpilot console
//
// # Packages
//
//   - cmd/armpilot: CLI with console, connect, calibration and port commands
//   - pkg/teleop: key dispatch loop, sliders and the controller
//   - pkg/wizard: calibration wizard state machine
//   - pkg/session: connection and control session gate
//   - pkg/transport: Socket.IO event channel and REST client
//   - pkg/keys: key normalization and hold tracking
//   - pkg/sched: cooperative scheduler with a fake clock for tests
//   - pkg/robot: joint model, limits and calibration files
//   - pkg/config: configuration loading
//   - pkg/logs: operator log
package armpilot
