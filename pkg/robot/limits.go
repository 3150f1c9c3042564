package robot

// DefaultLimit is the symmetric range used when the server reports no limit
// for a joint.
var DefaultLimit = JointLimit{Min: -180, Max: 180}

// JointLimit is an inclusive joint range in degrees.
type JointLimit struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// NormalizeLimit builds a JointLimit from a [min, max] tuple as the server
// sends it. Reversed tuples are swapped.
func NormalizeLimit(a, b float64) JointLimit {
	if a > b {
		a, b = b, a
	}
	return JointLimit{Min: a, Max: b}
}

// Clamp limits v to the range.
func (l JointLimit) Clamp(v float64) float64 {
	if v < l.Min {
		return l.Min
	}
	if v > l.Max {
		return l.Max
	}
	return v
}

// Limits holds one JointLimit per joint.
type Limits [NumJoints]JointLimit

// DefaultLimits returns DefaultLimit for every joint.
func DefaultLimits() Limits {
	var l Limits
	for i := range l {
		l[i] = DefaultLimit
	}
	return l
}

// ParseLimits converts the server's limit tuples into Limits. Missing joints
// and malformed tuples fall back to DefaultLimit.
func ParseLimits(raw [][]float64) Limits {
	l := DefaultLimits()
	for i := 0; i < len(raw) && i < NumJoints; i++ {
		if len(raw[i]) != 2 {
			continue
		}
		l[i] = NormalizeLimit(raw[i][0], raw[i][1])
	}
	return l
}
