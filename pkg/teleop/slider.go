package teleop

import (
	"fmt"
	"time"

	"github.com/gwillem/armpilot/pkg/logs"
	"github.com/gwillem/armpilot/pkg/robot"
	"github.com/gwillem/armpilot/pkg/sched"
	"github.com/gwillem/armpilot/pkg/session"
	"github.com/gwillem/armpilot/pkg/transport"
)

// Slider holds one absolute target per joint. Drag moves only change the
// local value; the target is sent once when the drag ends. Snapshot
// positions are ignored for a joint while it is dragged and for the settle
// window after.
type Slider struct {
	sched  sched.Scheduler
	send   Sender
	sess   *session.Session
	log    *logs.Log
	settle time.Duration

	values   robot.Positions
	limits   robot.Limits
	dragging [robot.NumJoints]bool
	released [robot.NumJoints]time.Time
}

// NewSlider creates sliders at zero with the default limits.
func NewSlider(s sched.Scheduler, send Sender, sess *session.Session, log *logs.Log, settle time.Duration) *Slider {
	if settle <= 0 {
		settle = 300 * time.Millisecond
	}
	return &Slider{
		sched:  s,
		send:   send,
		sess:   sess,
		log:    log,
		settle: settle,
		limits: robot.DefaultLimits(),
	}
}

func (s *Slider) Values() robot.Positions { return s.values }
func (s *Slider) Limits() robot.Limits    { return s.limits }

// Dragging reports whether joint is being dragged.
func (s *Slider) Dragging(joint int) bool {
	return validJoint(joint) && s.dragging[joint]
}

// DragMove sets the local value of joint, clamped to its limits.
func (s *Slider) DragMove(joint int, value float64) error {
	if !validJoint(joint) {
		return fmt.Errorf("joint index %d out of range", joint)
	}
	s.dragging[joint] = true
	s.values[joint] = s.limits[joint].Clamp(value)
	return nil
}

// Nudge moves joint by delta from its current value.
func (s *Slider) Nudge(joint int, delta float64) error {
	if !validJoint(joint) {
		return fmt.Errorf("joint index %d out of range", joint)
	}
	return s.DragMove(joint, s.values[joint]+delta)
}

// DragEnd ends a drag and sends the joint's target once.
func (s *Slider) DragEnd(joint int) error {
	if !validJoint(joint) {
		return fmt.Errorf("joint index %d out of range", joint)
	}
	if !s.dragging[joint] {
		return nil
	}
	s.dragging[joint] = false
	s.released[joint] = s.sched.Now()

	if !s.sess.TeleopOpen() {
		s.log.Warnf("Cannot move %s: control not started", robot.JointName(joint))
		return ErrNotConnected
	}
	err := s.send.SendSlider(transport.SliderCommand{
		JointIndex:     joint,
		TargetPosition: s.values[joint],
	})
	if err != nil {
		s.log.Errorf("Failed to move %s: %v", robot.JointName(joint), err)
		return err
	}
	return nil
}

// ApplySnapshot syncs slider values and limits from a state snapshot. It
// reports whether the limits changed.
func (s *Slider) ApplySnapshot(su transport.StateUpdate) bool {
	changed := false
	if lim, ok := su.Limits(); ok && lim != s.limits {
		s.limits = lim
		changed = true
	}

	now := s.sched.Now()
	for j, pos := range su.JointPositions {
		if j >= robot.NumJoints {
			break
		}
		if s.dragging[j] || now.Sub(s.released[j]) < s.settle {
			continue
		}
		s.values[j] = pos
	}
	return changed
}

func validJoint(j int) bool {
	return j >= 0 && j < robot.NumJoints
}
