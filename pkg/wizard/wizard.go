// Package wizard drives the server-side joint calibration wizard.
//
// The server owns the step sequence; the wizard mirrors it, polls realtime
// positions while the range-recording step is showing, and exports the
// recorded ranges once the server reports success. All methods must be
// called on the scheduler.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gwillem/armpilot/pkg/logs"
	"github.com/gwillem/armpilot/pkg/robot"
	"github.com/gwillem/armpilot/pkg/sched"
	"github.com/gwillem/armpilot/pkg/session"
	"github.com/gwillem/armpilot/pkg/transport"
)

var (
	ErrNotConnected = errors.New("wizard: robot not connected")
	ErrNotActive    = errors.New("wizard: not active")
	ErrNotRecording = errors.New("wizard: not at the range recording step")
	ErrBusy         = errors.New("wizard: request in flight")
)

// Phase is the wizard lifecycle state.
type Phase int

const (
	Idle Phase = iota
	Active
	Completed
	Errored
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// DefaultMaxSteps is assumed until the server reports max_steps.
const DefaultMaxSteps = 3

// resetTimeout bounds the best-effort reset issued by Cancel.
const resetTimeout = 2 * time.Second

// pollLogKey guards the once-per-streak realtime failure message.
const pollLogKey = "wizard-realtime"

// API is the part of the REST client the wizard uses.
type API interface {
	WizardStep(ctx context.Context) (transport.WizardStep, error)
	WizardReset(ctx context.Context) error
	WizardRecordMin(ctx context.Context) (transport.WizardStatus, error)
	WizardRecordMax(ctx context.Context) (transport.WizardStatus, error)
	WizardAutoRecord(ctx context.Context) (transport.WizardStatus, error)
	WizardNextJoint(ctx context.Context) (transport.WizardStatus, error)
	WizardRealtime(ctx context.Context) (transport.Realtime, error)
}

// Config tunes the wizard.
type Config struct {
	PollInterval time.Duration
	RangeStep    int
}

// Snapshot is a copy of the wizard state for rendering.
type Snapshot struct {
	Phase       Phase
	Step        int
	MaxSteps    int
	Message     string
	Progress    float64
	Recording   bool
	Polling     bool
	JointIndex  int
	Positions   []float64
	LiveMin     transport.Extrema
	LiveMax     transport.Extrema
	RecordedMin transport.Extrema
	RecordedMax transport.Extrema
}

// Wizard is the calibration wizard state machine.
type Wizard struct {
	ctx   context.Context
	sched sched.Scheduler
	api   API
	sess  *session.Session
	log   *logs.Log
	cfg   Config

	phase    Phase
	step     int
	maxSteps int
	message  string

	jointIndex  int
	positions   []float64
	liveMin     transport.Extrema
	liveMax     transport.Extrema
	recordedMin transport.Extrema
	recordedMax transport.Extrema

	// epoch increments on every start and cancel; replies tagged with an
	// older epoch are discarded.
	epoch       int
	stepBusy    bool
	recordBusy  bool
	poll        sched.Handle
	pollPending bool

	onChange   func(Snapshot)
	onComplete func(robot.Calibration)
}

// New creates an idle wizard. Requests use ctx.
func New(ctx context.Context, s sched.Scheduler, api API, sess *session.Session, log *logs.Log, cfg Config) *Wizard {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.RangeStep <= 0 {
		cfg.RangeStep = 2
	}
	return &Wizard{
		ctx:      ctx,
		sched:    s,
		api:      api,
		sess:     sess,
		log:      log,
		cfg:      cfg,
		maxSteps: DefaultMaxSteps,
	}
}

// OnChange registers a callback run after every state change.
func (w *Wizard) OnChange(fn func(Snapshot)) {
	w.onChange = fn
}

// OnComplete registers a callback that receives the recorded ranges when the
// server reports success.
func (w *Wizard) OnComplete(fn func(robot.Calibration)) {
	w.onComplete = fn
}

func (w *Wizard) Phase() Phase { return w.phase }

// Polling reports whether the realtime poll is running.
func (w *Wizard) Polling() bool { return w.poll != nil }

// Progress returns step / max_steps as a percentage.
func (w *Wizard) Progress() float64 {
	if w.maxSteps <= 0 {
		return 0
	}
	return float64(w.step) / float64(w.maxSteps) * 100
}

// Recording reports whether the range-recording step is showing.
func (w *Wizard) Recording() bool {
	return w.phase == Active && w.step == w.cfg.RangeStep
}

// Snapshot returns a copy of the current state.
func (w *Wizard) Snapshot() Snapshot {
	return Snapshot{
		Phase:       w.phase,
		Step:        w.step,
		MaxSteps:    w.maxSteps,
		Message:     w.message,
		Progress:    w.Progress(),
		Recording:   w.Recording(),
		Polling:     w.Polling(),
		JointIndex:  w.jointIndex,
		Positions:   append([]float64(nil), w.positions...),
		LiveMin:     w.liveMin,
		LiveMax:     w.liveMax,
		RecordedMin: w.recordedMin,
		RecordedMax: w.recordedMax,
	}
}

// Start begins a new calibration run and requests the first step. It is
// rejected without any request when the robot is not connected, and is a
// no-op while a run is already active.
func (w *Wizard) Start() error {
	if !w.sess.CanStartWizard() {
		w.log.Errorf("Cannot start calibration: robot not connected")
		return ErrNotConnected
	}
	if w.phase == Active {
		return nil
	}

	w.stopPoll()
	w.reset()
	w.epoch++
	w.phase = Active
	w.sess.SetWizardActive(true)
	w.log.Infof("Calibration wizard started")
	w.changed()
	return w.Advance()
}

// Advance requests the next step from the server.
func (w *Wizard) Advance() error {
	if w.phase != Active {
		return ErrNotActive
	}
	if w.stepBusy {
		return ErrBusy
	}
	w.stepBusy = true
	epoch := w.epoch
	w.sched.Go(func() func() {
		res, err := w.api.WizardStep(w.ctx)
		return func() {
			if epoch != w.epoch {
				return
			}
			w.stepBusy = false
			w.applyStep(res, err)
		}
	})
	return nil
}

func (w *Wizard) applyStep(res transport.WizardStep, err error) {
	if err != nil {
		w.fail("Calibration step failed: %s", transport.Detail(err))
		return
	}

	w.step = res.Step
	if res.MaxSteps > 0 {
		w.maxSteps = res.MaxSteps
	}
	w.message = res.Message

	switch res.Status {
	case transport.StepSuccess:
		w.complete()
	case transport.StepError:
		w.fail("Calibration error: %s", res.Message)
	default:
		w.syncPoll()
		w.changed()
	}
}

// RecordMin records the current joint's minimum position.
func (w *Wizard) RecordMin() error {
	return w.record("record min", w.api.WizardRecordMin)
}

// RecordMax records the current joint's maximum position.
func (w *Wizard) RecordMax() error {
	return w.record("record max", w.api.WizardRecordMax)
}

// AutoRecord records the extrema tracked since the joint became current.
func (w *Wizard) AutoRecord() error {
	return w.record("auto record", w.api.WizardAutoRecord)
}

// NextJoint skips the current joint.
func (w *Wizard) NextJoint() error {
	return w.record("next joint", w.api.WizardNextJoint)
}

func (w *Wizard) record(op string, call func(context.Context) (transport.WizardStatus, error)) error {
	if !w.Recording() {
		return ErrNotRecording
	}
	if w.recordBusy {
		return ErrBusy
	}
	w.recordBusy = true
	epoch := w.epoch
	w.sched.Go(func() func() {
		st, err := call(w.ctx)
		return func() {
			if epoch != w.epoch {
				return
			}
			w.recordBusy = false
			if err != nil {
				w.fail("Calibration %s failed: %s", op, transport.Detail(err))
				return
			}
			w.applyStatus(op, st)
		}
	})
	return nil
}

func (w *Wizard) applyStatus(op string, st transport.WizardStatus) {
	prev := w.jointIndex
	w.jointIndex = st.CurrentJointIndex
	w.recordedMin = st.RecordedMin
	w.recordedMax = st.RecordedMax
	w.liveMin = st.RealtimeMin
	w.liveMax = st.RealtimeMax
	if len(st.RealtimePositions) > 0 {
		w.positions = st.RealtimePositions
	}
	if st.MaxSteps > 0 {
		w.maxSteps = st.MaxSteps
	}

	if prev < robot.NumJoints {
		w.log.Infof("Calibration %s: %s", op, robot.JointName(prev))
	}
	w.changed()
	w.checkJointsDone()
}

// checkJointsDone leaves the recording step once every joint is done.
func (w *Wizard) checkJointsDone() {
	if w.Recording() && w.jointIndex >= robot.NumJoints {
		w.stopPoll()
		w.Advance()
	}
}

// Cancel abandons the run. The realtime poll stops before the best-effort
// server reset is issued. Cancelling a finished run just returns to Idle.
// The returned channel is closed once the reset request has finished, or
// at once when none was needed.
//
// The reset outlives cancellation of the wizard's context, so it still
// reaches the server when the console quits mid-run.
func (w *Wizard) Cancel() <-chan struct{} {
	done := make(chan struct{})
	if w.phase == Idle {
		close(done)
		return done
	}
	wasActive := w.phase == Active

	w.stopPoll()
	w.epoch++
	w.phase = Idle
	w.reset()
	w.sess.SetWizardActive(false)

	if !wasActive {
		close(done)
		w.changed()
		return done
	}

	w.log.Infof("Calibration wizard cancelled")
	ctx, cancel := context.WithTimeout(context.WithoutCancel(w.ctx), resetTimeout)
	w.sched.Go(func() func() {
		defer close(done)
		defer cancel()
		err := w.api.WizardReset(ctx)
		if err == nil {
			return nil
		}
		return func() {
			w.log.Warnf("Failed to reset wizard: %s", transport.Detail(err))
		}
	})
	w.changed()
	return done
}

func (w *Wizard) complete() {
	w.stopPoll()
	w.phase = Completed
	w.sess.SetWizardActive(false)
	w.log.Successf("Calibration completed successfully!")
	if w.onComplete != nil {
		w.onComplete(robot.CalibrationFromRecorded(w.recordedMin, w.recordedMax))
	}
	w.changed()
}

func (w *Wizard) fail(format string, args ...any) {
	w.stopPoll()
	w.phase = Errored
	w.stepBusy = false
	w.recordBusy = false
	w.sess.SetWizardActive(false)
	w.log.Errorf(format, args...)
	w.changed()
}

// syncPoll runs the realtime poll exactly while the recording step shows.
func (w *Wizard) syncPoll() {
	if w.Recording() {
		w.startPoll()
	} else {
		w.stopPoll()
	}
}

func (w *Wizard) startPoll() {
	if w.poll != nil {
		return
	}
	w.log.Reset(pollLogKey)
	w.poll = w.sched.Every(w.cfg.PollInterval, w.pollOnce)
}

func (w *Wizard) stopPoll() {
	if w.poll == nil {
		return
	}
	w.poll.Stop()
	w.poll = nil
	w.pollPending = false
}

func (w *Wizard) pollOnce() {
	if w.pollPending {
		return
	}
	w.pollPending = true
	epoch, h := w.epoch, w.poll
	w.sched.Go(func() func() {
		rt, err := w.api.WizardRealtime(w.ctx)
		return func() {
			if epoch != w.epoch || h != w.poll {
				return
			}
			w.pollPending = false
			if err != nil {
				w.log.Once(pollLogKey, logs.Warning, "Realtime positions unavailable: %s", transport.Detail(err))
				return
			}
			w.log.Reset(pollLogKey)
			w.applyRealtime(rt)
		}
	})
}

func (w *Wizard) applyRealtime(rt transport.Realtime) {
	w.jointIndex = rt.CurrentJointIndex
	w.positions = rt.CurrentPositions
	w.liveMin = rt.MinPositions
	w.liveMax = rt.MaxPositions
	if rt.RecordedMin != nil {
		w.recordedMin = *rt.RecordedMin
	}
	if rt.RecordedMax != nil {
		w.recordedMax = *rt.RecordedMax
	}
	w.changed()
	w.checkJointsDone()
}

func (w *Wizard) reset() {
	w.step = 0
	w.maxSteps = DefaultMaxSteps
	w.message = ""
	w.jointIndex = 0
	w.positions = nil
	w.liveMin = transport.Extrema{}
	w.liveMax = transport.Extrema{}
	w.recordedMin = transport.Extrema{}
	w.recordedMax = transport.Extrema{}
	w.stepBusy = false
	w.recordBusy = false
}

func (w *Wizard) changed() {
	if w.onChange != nil {
		w.onChange(w.Snapshot())
	}
}
