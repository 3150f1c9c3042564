package robot

import "testing"

func TestNormalizeLimit(t *testing.T) {
	tests := []struct {
		a, b float64
		want JointLimit
	}{
		{10, -10, JointLimit{Min: -10, Max: 10}},
		{-10, 10, JointLimit{Min: -10, Max: 10}},
		{0, 0, JointLimit{Min: 0, Max: 0}},
	}

	for _, tt := range tests {
		if got := NormalizeLimit(tt.a, tt.b); got != tt.want {
			t.Errorf("NormalizeLimit(%v, %v) = %+v, want %+v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestParseLimits(t *testing.T) {
	got := ParseLimits([][]float64{
		{10, -10},
		{-90, 90},
		{1}, // malformed
	})

	if got[0] != (JointLimit{Min: -10, Max: 10}) {
		t.Errorf("joint 0 = %+v", got[0])
	}
	if got[1] != (JointLimit{Min: -90, Max: 90}) {
		t.Errorf("joint 1 = %+v", got[1])
	}
	for i := 2; i < NumJoints; i++ {
		if got[i] != DefaultLimit {
			t.Errorf("joint %d = %+v, want default", i, got[i])
		}
	}
}

func TestParseLimits_Empty(t *testing.T) {
	if got := ParseLimits(nil); got != DefaultLimits() {
		t.Errorf("ParseLimits(nil) = %+v, want defaults", got)
	}
}

func TestJointLimit_Clamp(t *testing.T) {
	l := JointLimit{Min: -20, Max: 30}
	tests := []struct{ in, want float64 }{
		{-50, -20},
		{0, 0},
		{45, 30},
	}
	for _, tt := range tests {
		if got := l.Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJointName(t *testing.T) {
	if got := JointName(0); got != ShoulderPan {
		t.Errorf("JointName(0) = %s, want shoulder_pan", got)
	}
	if got := JointName(5); got != Gripper {
		t.Errorf("JointName(5) = %s, want gripper", got)
	}
	if got := JointName(6); got != "joint_7" {
		t.Errorf("JointName(6) = %s, want joint_7", got)
	}
}
