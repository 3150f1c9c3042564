// Package robot describes the six-joint arm as the console sees it: joint
// names, joint limits and recorded calibration ranges.
package robot

import "fmt"

// MotorName identifies a motor in the arm.
type MotorName string

// Motor names for the SO-100/SO-101 arm.
const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// NumJoints is the number of joints reported by the server. Joint index i
// corresponds to AllMotors()[i].
const NumJoints = 6

// AllMotors returns all motor names in joint index order.
func AllMotors() []MotorName {
	return []MotorName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// JointName returns the motor name for a joint index, or "joint_N" when the
// index is out of range.
func JointName(index int) MotorName {
	if index < 0 || index >= NumJoints {
		return MotorName(fmt.Sprintf("joint_%d", index+1))
	}
	return AllMotors()[index]
}

// Positions holds one value in degrees per joint.
type Positions [NumJoints]float64
