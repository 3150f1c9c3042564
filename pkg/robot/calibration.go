package robot

// JointRange holds the recorded range of motion for a single joint, in
// degrees.
type JointRange struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Middle float64 `json:"middle"`
	// Measured is false when the range fell back to DefaultLimit.
	Measured bool `json:"measured"`
}

// Calibration holds recorded ranges for all joints, keyed by motor name.
type Calibration map[MotorName]JointRange

// Normalize converts a position in degrees to a value in the range [-100, 100].
func (r JointRange) Normalize(deg float64) float64 {
	rangeSize := r.Max - r.Min
	if rangeSize == 0 {
		return 0
	}
	return ((deg-r.Min)/rangeSize)*200 - 100
}

// CalibrationFromRecorded builds a Calibration from the per-joint extrema the
// wizard recorded. Joints without both values use DefaultLimit.
func CalibrationFromRecorded(min, max [NumJoints]*float64) Calibration {
	cal := make(Calibration, NumJoints)
	for i, name := range AllMotors() {
		r := JointRange{Min: DefaultLimit.Min, Max: DefaultLimit.Max}
		if min[i] != nil && max[i] != nil {
			l := NormalizeLimit(*min[i], *max[i])
			r = JointRange{Min: l.Min, Max: l.Max, Measured: true}
		}
		r.Middle = (r.Min + r.Max) / 2
		cal[name] = r
	}
	return cal
}

// Limits returns the calibration as joint limits in index order. Joints
// missing from the calibration use DefaultLimit.
func (c Calibration) Limits() Limits {
	l := DefaultLimits()
	for i, name := range AllMotors() {
		if r, ok := c[name]; ok {
			l[i] = NormalizeLimit(r.Min, r.Max)
		}
	}
	return l
}

// Measured returns the number of joints with a measured range.
func (c Calibration) Measured() int {
	n := 0
	for _, r := range c {
		if r.Measured {
			n++
		}
	}
	return n
}
