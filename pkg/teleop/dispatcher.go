package teleop

import (
	"errors"
	"time"

	"github.com/gwillem/armpilot/pkg/keys"
	"github.com/gwillem/armpilot/pkg/logs"
	"github.com/gwillem/armpilot/pkg/sched"
	"github.com/gwillem/armpilot/pkg/session"
	"github.com/gwillem/armpilot/pkg/transport"
)

// ErrNotConnected is returned when a command is held back by the session
// gate.
var ErrNotConnected = errors.New("teleop: control not running")

// socketLogKey guards the once-per-outage transport message.
const socketLogKey = "teleop-socket"

// Sender is the outbound half of the event channel.
type Sender interface {
	Connected() bool
	SendKey(cmd transport.KeyCommand) error
	SendSlider(cmd transport.SliderCommand) error
}

// DispatchConfig tunes the dispatch loop.
type DispatchConfig struct {
	TickInterval  time.Duration
	DebounceFloor time.Duration
}

// Dispatcher sends an immediate keydown on press, repeats held tokens from a
// periodic loop, and sends one keyup on release.
type Dispatcher struct {
	sched sched.Scheduler
	send  Sender
	sess  *session.Session
	log   *logs.Log
	cfg   DispatchConfig

	keys     *Keystate
	loop     sched.Handle
	feedback func(tok keys.Token, held bool)
}

// NewDispatcher creates a stopped dispatcher.
func NewDispatcher(s sched.Scheduler, send Sender, sess *session.Session, log *logs.Log, cfg DispatchConfig) *Dispatcher {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 50 * time.Millisecond
	}
	if cfg.DebounceFloor <= 0 {
		cfg.DebounceFloor = 40 * time.Millisecond
	}
	return &Dispatcher{
		sched: s,
		send:  send,
		sess:  sess,
		log:   log,
		cfg:   cfg,
		keys:  NewKeystate(),
	}
}

// OnFeedback registers a callback for held/released visual feedback.
func (d *Dispatcher) OnFeedback(fn func(tok keys.Token, held bool)) {
	d.feedback = fn
}

// Running reports whether the loop is live.
func (d *Dispatcher) Running() bool {
	return d.loop != nil
}

// Held returns the held tokens in sorted order.
func (d *Dispatcher) Held() []keys.Token {
	return d.keys.Held()
}

// Start starts the repeat loop. Starting a running loop is a no-op.
func (d *Dispatcher) Start() {
	if d.loop != nil {
		return
	}
	d.loop = d.sched.Every(d.cfg.TickInterval, d.tick)
	d.log.Infof("Control loop started")
}

// Stop stops the loop and forgets every held token. It is safe to call when
// already stopped.
func (d *Dispatcher) Stop() {
	if d.loop != nil {
		d.loop.Stop()
		d.loop = nil
		d.log.Infof("Control loop stopped")
	}
	for _, tok := range d.keys.Clear() {
		d.notify(tok, false)
	}
}

// Press handles a key press. The first press of a hold is sent at once;
// repeats of a held token are left to the loop.
func (d *Dispatcher) Press(tok keys.Token) error {
	if _, held := d.keys.LastSent(tok); held {
		return nil
	}
	if !d.sess.CanEmit(tok) {
		return ErrNotConnected
	}
	if !d.send.Connected() {
		d.log.Once(socketLogKey, logs.Error, "Socket not connected. Cannot send key: %s", keys.Label(tok))
		return transport.ErrClosed
	}

	now := d.sched.Now()
	if err := d.sendKey(tok, transport.KeyDown, now); err != nil {
		return err
	}
	d.log.Reset(socketLogKey)
	d.keys.Insert(tok, now)
	d.notify(tok, true)
	d.log.Infof("Key pressed: %s", keys.Label(tok))
	return nil
}

// Release handles a key release. The entry is always removed; a keyup is
// sent only when the gate allows it.
func (d *Dispatcher) Release(tok keys.Token) error {
	if !d.keys.Remove(tok) {
		return nil
	}
	d.notify(tok, false)
	if !d.sess.CanEmit(tok) || !d.send.Connected() {
		return nil
	}
	return d.sendKey(tok, transport.KeyUp, d.sched.Now())
}

func (d *Dispatcher) tick() {
	if !d.sess.TeleopOpen() || d.keys.Len() == 0 {
		return
	}
	if !d.send.Connected() {
		d.log.Once(socketLogKey, logs.Error, "Socket not connected. Control loop paused")
		return
	}
	d.log.Reset(socketLogKey)

	now := d.sched.Now()
	for _, tok := range d.keys.Held() {
		last, _ := d.keys.LastSent(tok)
		if now.Sub(last) < d.cfg.DebounceFloor {
			continue
		}
		if err := d.sendKey(tok, transport.KeyDown, now); err != nil {
			continue
		}
		d.keys.Touch(tok, now)
	}
}

func (d *Dispatcher) sendKey(tok keys.Token, eventType string, at time.Time) error {
	return d.send.SendKey(transport.KeyCommand{
		Key:       string(tok),
		EventType: eventType,
		Timestamp: at.UnixMilli(),
	})
}

func (d *Dispatcher) notify(tok keys.Token, held bool) {
	if d.feedback != nil {
		d.feedback(tok, held)
	}
}
