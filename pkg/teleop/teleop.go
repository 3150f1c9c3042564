// Package teleop provides keyboard and slider teleoperation of a remote arm.
package teleop

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gwillem/armpilot/pkg/keys"
	"github.com/gwillem/armpilot/pkg/logs"
	"github.com/gwillem/armpilot/pkg/robot"
	"github.com/gwillem/armpilot/pkg/sched"
	"github.com/gwillem/armpilot/pkg/session"
	"github.com/gwillem/armpilot/pkg/transport"
	"github.com/gwillem/armpilot/pkg/wizard"
)

// State is a snapshot of everything the console renders.
type State struct {
	Connected      bool
	ControlRunning bool
	SocketUp       bool
	Status         string
	Connection     session.Connection
	Mode           session.Mode
	Speed          float64
	EStop          bool

	Positions   robot.Positions
	HasPosition bool
	Sliders     robot.Positions
	Limits      robot.Limits
	Held        []keys.Token
	Wizard      wizard.Snapshot
	Timestamp   time.Time
}

// API is the REST surface the controller uses.
type API interface {
	wizard.API
	Connect(ctx context.Context, req transport.ConnectRequest) (transport.ConnectDetails, error)
	Disconnect(ctx context.Context) error
	Home(ctx context.Context) (transport.CalibrationResult, error)
	Zero(ctx context.Context) (transport.CalibrationResult, error)
	RunCalibration(ctx context.Context) (transport.CalibrationResult, error)
	StartControl(ctx context.Context) (transport.ControlAck, error)
	StopControl(ctx context.Context) (transport.ControlAck, error)
	ControlStatus(ctx context.Context) (transport.ControlStatus, error)
}

// Events is the Socket.IO channel.
type Events interface {
	Sender
	Inbound() <-chan transport.Inbound
}

// Config holds configuration for the controller.
type Config struct {
	Dispatch        DispatchConfig
	SliderSettle    time.Duration
	Wizard          wizard.Config
	CalibrationFile string
	Server          string
	// Limits seeds the slider limits until a snapshot reports its own.
	Limits *robot.Limits
}

// Controller owns the session and routes operator input and server events.
// Its exported methods may be called from any goroutine; the work runs on the
// scheduler.
type Controller struct {
	ctx    context.Context
	sched  sched.Scheduler
	api    API
	events Events
	log    *logs.Log
	cfg    Config

	sess     *session.Session
	dispatch *Dispatcher
	slider   *Slider
	wizard   *wizard.Wizard

	positions   robot.Positions
	hasPosition bool
	estop       bool
	socketUp    bool

	stateCh chan State
}

// NewController creates a controller. Requests use ctx.
func NewController(ctx context.Context, s sched.Scheduler, api API, events Events, log *logs.Log, cfg Config) *Controller {
	sess := session.New()
	c := &Controller{
		ctx:      ctx,
		sched:    s,
		api:      api,
		events:   events,
		log:      log,
		cfg:      cfg,
		sess:     sess,
		dispatch: NewDispatcher(s, events, sess, log, cfg.Dispatch),
		slider:   NewSlider(s, events, sess, log, cfg.SliderSettle),
		wizard:   wizard.New(ctx, s, api, sess, log, cfg.Wizard),
		stateCh:  make(chan State, 1),
	}
	if cfg.Limits != nil {
		c.slider.limits = *cfg.Limits
	}
	c.dispatch.OnFeedback(func(keys.Token, bool) { c.publish() })
	c.wizard.OnChange(func(wizard.Snapshot) { c.publish() })
	c.wizard.OnComplete(c.exportCalibration)
	return c
}

// States returns a channel that receives state updates.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// Logs returns a channel that receives log entries.
func (c *Controller) Logs() <-chan logs.Entry {
	return c.log.Entries()
}

// Run forwards server events to the scheduler until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	c.sched.Post(c.publish)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-c.events.Inbound():
			c.Deliver(msg)
		}
	}
}

// Deliver handles one server event on the scheduler.
func (c *Controller) Deliver(msg transport.Inbound) {
	c.sched.Post(func() {
		c.handle(msg)
		c.publish()
	})
}

func (c *Controller) handle(msg transport.Inbound) {
	switch m := msg.(type) {
	case transport.SocketState:
		c.handleSocket(m)
	case transport.StateUpdate:
		c.handleState(m)
	case transport.ControlResponse:
		c.handleResponse(m)
	case transport.ServerMessage:
		c.handleMessage(m)
	case transport.AutoConnected:
		c.sess.SetConnected(true, session.Connection{Port: m.Port, Baudrate: string(m.Baudrate)})
		c.log.Successf("Robot auto-connected on %s", m.Port)
	}
}

func (c *Controller) handleSocket(m transport.SocketState) {
	switch {
	case m.Connected:
		c.socketUp = true
		c.log.Reset(socketLogKey)
		c.log.Successf("Server socket connected")
		c.syncControl()
	case c.socketUp:
		c.socketUp = false
		c.log.Warnf("Server socket disconnected, reconnecting")
	case m.Err != nil:
		c.log.Once(socketLogKey, logs.Error, "Cannot reach server: %v", m.Err)
	}
}

func (c *Controller) handleState(su transport.StateUpdate) {
	if p, ok := su.Positions(); ok {
		c.positions = p
		c.hasPosition = true
	}
	if c.slider.ApplySnapshot(su) {
		c.log.Infof("Joint limits updated")
	}
	if su.Status == "" {
		return
	}

	var conn *session.Connection
	if su.Connection != nil {
		conn = &session.Connection{Port: su.Connection.Endpoint(), Baudrate: string(su.Connection.Baudrate)}
	}
	was := c.sess.Connected()
	c.sess.ApplyStatus(su.Status, conn)
	if was && !c.sess.Connected() {
		c.sess.SetControlRunning(false)
		c.dispatch.Stop()
		c.log.Warnf("Robot disconnected")
	}
}

func (c *Controller) handleResponse(r transport.ControlResponse) {
	if r.Status != nil {
		c.applyControlStatus(*r.Status)
	}

	switch r.Action {
	case transport.ActionModeChange:
		c.sess.SetMode(session.Mode(r.Mode))
		c.log.Infof("Mode: %s", c.sess.Mode().Title())
	case transport.ActionSpeedChange:
		c.sess.SetSpeed(r.Multiplier)
		c.log.Infof("Speed: %.1fx", c.sess.Speed())
	case transport.ActionEStop:
		c.estop = r.Active
		if r.Active {
			c.log.Errorf("EMERGENCY STOP activated")
		} else {
			c.log.Successf("Emergency stop released")
		}
	case transport.ActionControlStarted:
		c.sess.SetControlRunning(true)
		c.dispatch.Start()
	case transport.ActionControlStopped:
		c.sess.SetControlRunning(false)
		c.dispatch.Stop()
	case transport.ActionIgnored:
		if strings.Contains(r.Message, "Control not started") {
			c.log.Warnf("%s", r.Message)
		}
	case transport.ActionError:
		c.log.Errorf("Control error: %s", r.Message)
	}
}

// syncControl picks up a control session started before this client
// connected.
func (c *Controller) syncControl() {
	c.sched.Go(func() func() {
		st, err := c.api.ControlStatus(c.ctx)
		if err != nil {
			return nil
		}
		return func() {
			c.applyControlStatus(st)
			if st.Running && c.sess.Connected() {
				c.sess.SetControlRunning(true)
				c.dispatch.Start()
			}
			c.publish()
		}
	})
}

func (c *Controller) applyControlStatus(st transport.ControlStatus) {
	c.sess.SetMode(session.Mode(st.Mode))
	if st.SpeedMultiplier > 0 {
		c.sess.SetSpeed(st.SpeedMultiplier)
	}
	c.estop = st.EStopActive
}

func (c *Controller) handleMessage(m transport.ServerMessage) {
	switch m.Event {
	case transport.EventRobotError:
		c.log.Errorf("Robot error: %s", m.Message)
	case transport.EventCalibrationLog:
		c.log.Logf(logs.Level(m.Level), "%s", m.Message)
	case transport.EventServerHello:
		c.log.Infof("%s", m.Message)
	}
}

// Press dispatches a token press.
func (c *Controller) Press(tok keys.Token) {
	c.sched.Post(func() {
		c.dispatch.Press(tok)
		c.publish()
	})
}

// Release dispatches a token release.
func (c *Controller) Release(tok keys.Token) {
	c.sched.Post(func() {
		c.dispatch.Release(tok)
		c.publish()
	})
}

// EStop sends an emergency stop press and release.
func (c *Controller) EStop() {
	c.sched.Post(func() {
		if err := c.dispatch.Press(keys.EStop); err == nil {
			c.dispatch.Release(keys.EStop)
		}
	})
}

// SliderNudge moves a joint slider by delta without sending.
func (c *Controller) SliderNudge(joint int, delta float64) {
	c.sched.Post(func() {
		if err := c.slider.Nudge(joint, delta); err != nil {
			c.log.Warnf("%v", err)
		}
		c.publish()
	})
}

// SliderRelease sends the joint's slider target.
func (c *Controller) SliderRelease(joint int) {
	c.sched.Post(func() {
		c.slider.DragEnd(joint)
		c.publish()
	})
}

// Connect asks the server to connect to the robot.
func (c *Controller) Connect(req transport.ConnectRequest) {
	c.sched.Post(func() {
		c.log.Infof("Connecting to robot...")
		c.sched.Go(func() func() {
			d, err := c.api.Connect(c.ctx, req)
			return func() {
				if err != nil {
					c.log.Errorf("Connection failed: %s", transport.Detail(err))
					if ports := transport.AvailablePorts(err); len(ports) > 0 {
						c.log.Infof("Available ports: %s", portList(ports))
					}
					return
				}
				c.sess.SetConnected(true, session.Connection{Port: d.Endpoint(), Baudrate: string(d.Baudrate)})
				c.log.Successf("Connected to %s", c.sess.Connection())
				c.publish()
			}
		})
	})
}

// Disconnect asks the server to disconnect from the robot. Teleop and the
// wizard stop first; the teleop loop restarts if the server rejects the
// request.
func (c *Controller) Disconnect() {
	c.sched.Post(func() {
		c.dispatch.Stop()
		c.wizard.Cancel()
		c.sched.Go(func() func() {
			err := c.api.Disconnect(c.ctx)
			return func() {
				if err != nil {
					c.log.Errorf("Disconnect failed: %s", transport.Detail(err))
					c.resumeDispatch()
					return
				}
				c.sess.SetControlRunning(false)
				c.sess.SetConnected(false, session.Connection{})
				c.log.Infof("Disconnected")
				c.publish()
			}
		})
	})
}

// StartControl starts keyboard control on the server and, once
// acknowledged, the local dispatch loop.
func (c *Controller) StartControl() {
	c.sched.Post(func() {
		if !c.sess.Connected() {
			c.log.Errorf("Cannot start control: robot not connected")
			return
		}
		c.sched.Go(func() func() {
			ack, err := c.api.StartControl(c.ctx)
			return func() {
				if err != nil {
					c.log.Errorf("Failed to start control: %s", transport.Detail(err))
					return
				}
				c.applyControlStatus(ack.Status)
				c.sess.SetControlRunning(true)
				c.dispatch.Start()
				c.log.Successf("%s", orDefault(ack.Message, "Keyboard control started"))
				c.publish()
			}
		})
	})
}

// StopControl stops keyboard control. The local loop stops immediately so no
// repeat is sent while the request is in flight, and restarts if the server
// rejects the request.
func (c *Controller) StopControl() {
	c.sched.Post(func() {
		c.dispatch.Stop()
		c.sched.Go(func() func() {
			ack, err := c.api.StopControl(c.ctx)
			return func() {
				if err != nil {
					c.log.Errorf("Failed to stop control: %s", transport.Detail(err))
					c.resumeDispatch()
					return
				}
				c.sess.SetControlRunning(false)
				c.log.Infof("%s", orDefault(ack.Message, "Keyboard control stopped"))
				c.publish()
			}
		})
	})
}

// resumeDispatch restarts the loop stopped ahead of a request the server
// rejected, if the session still has control running.
func (c *Controller) resumeDispatch() {
	if c.sess.ControlRunning() {
		c.dispatch.Start()
	}
	c.publish()
}

// Home moves the arm to its home position.
func (c *Controller) Home() {
	c.calibrationAction("Home", c.api.Home)
}

// Zero sets the current position as zero.
func (c *Controller) Zero() {
	c.calibrationAction("Zero", c.api.Zero)
}

// RunCalibration runs the server's quick calibration.
func (c *Controller) RunCalibration() {
	c.calibrationAction("Calibration", c.api.RunCalibration)
}

func (c *Controller) calibrationAction(name string, call func(context.Context) (transport.CalibrationResult, error)) {
	c.sched.Post(func() {
		if !c.sess.Connected() {
			c.log.Errorf("%s: robot not connected", name)
			return
		}
		c.sched.Go(func() func() {
			res, err := call(c.ctx)
			return func() {
				if err != nil {
					c.log.Errorf("%s failed: %s", name, transport.Detail(err))
					return
				}
				c.log.Successf("%s", orDefault(res.Message, name+" done"))
			}
		})
	})
}

// WizardStart starts the calibration wizard.
func (c *Controller) WizardStart() { c.wizardOp(c.wizard.Start) }

// WizardAdvance requests the next wizard step.
func (c *Controller) WizardAdvance() { c.wizardOp(c.wizard.Advance) }

// WizardRecordMin records the current joint's minimum.
func (c *Controller) WizardRecordMin() { c.wizardOp(c.wizard.RecordMin) }

// WizardRecordMax records the current joint's maximum.
func (c *Controller) WizardRecordMax() { c.wizardOp(c.wizard.RecordMax) }

// WizardAutoRecord records the tracked extrema of the current joint.
func (c *Controller) WizardAutoRecord() { c.wizardOp(c.wizard.AutoRecord) }

// WizardNextJoint skips the current joint.
func (c *Controller) WizardNextJoint() { c.wizardOp(c.wizard.NextJoint) }

// WizardCancel cancels the calibration wizard.
func (c *Controller) WizardCancel() {
	c.sched.Post(func() {
		c.wizard.Cancel()
		c.publish()
	})
}

func (c *Controller) wizardOp(op func() error) {
	c.sched.Post(func() {
		if err := op(); err != nil && !errors.Is(err, wizard.ErrNotConnected) {
			c.log.Warnf("%v", err)
		}
		c.publish()
	})
}

// exportCalibration saves the recorded ranges off the scheduler.
func (c *Controller) exportCalibration(cal robot.Calibration) {
	if c.cfg.CalibrationFile == "" {
		return
	}
	f := &robot.CalibrationFile{SavedAt: c.sched.Now(), Server: c.cfg.Server, Joints: cal}
	path := c.cfg.CalibrationFile
	c.sched.Go(func() func() {
		err := f.SaveTo(path)
		return func() {
			if err != nil {
				c.log.Errorf("Failed to save calibration: %v", err)
				return
			}
			c.log.Successf("Calibration saved to %s (%d/%d joints measured)", path, cal.Measured(), robot.NumJoints)
		}
	})
}

func (c *Controller) snapshot() State {
	return State{
		Connected:      c.sess.Connected(),
		ControlRunning: c.sess.ControlRunning(),
		SocketUp:       c.socketUp,
		Status:         c.sess.Status(),
		Connection:     c.sess.Connection(),
		Mode:           c.sess.Mode(),
		Speed:          c.sess.Speed(),
		EStop:          c.estop,
		Positions:      c.positions,
		HasPosition:    c.hasPosition,
		Sliders:        c.slider.Values(),
		Limits:         c.slider.Limits(),
		Held:           c.dispatch.Held(),
		Wizard:         c.wizard.Snapshot(),
		Timestamp:      c.sched.Now(),
	}
}

func (c *Controller) publish() {
	s := c.snapshot()
	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		select {
		case c.stateCh <- s:
		default:
		}
	}
}

// Shutdown stops teleop and cancels an active wizard run, waiting up to
// timeout for the server-side wizard reset. Call it while the scheduler is
// still running.
func (c *Controller) Shutdown(timeout time.Duration) {
	reset := make(chan (<-chan struct{}), 1)
	c.sched.Post(func() {
		c.dispatch.Stop()
		reset <- c.wizard.Cancel()
		c.log.Infof("Teleoperation stopped")
	})

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case done := <-reset:
		select {
		case <-done:
		case <-timer.C:
		}
	case <-timer.C:
	}
}

func portList(ports []transport.PortInfo) string {
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.Port
	}
	return strings.Join(names, ", ")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
