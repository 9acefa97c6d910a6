package rover_nav

import "math"

// DefaultAngleLimit is the steering deflection limit, in radians, of the
// stock steering servo.
const DefaultAngleLimit = 1.0

// Angle is a validated steering deflection in radians. Positive values steer
// counter-clockwise. The zero value is straight ahead.
type Angle struct {
	rad float64
}

// NewAngle validates rad against the symmetric actuator limit.
func NewAngle(rad, limit float64) (Angle, error) {
	if math.IsNaN(rad) || math.Abs(rad) > limit {
		return Angle{}, &AngleOutOfRangeError{Value: rad, Limit: limit}
	}
	return Angle{rad: rad}, nil
}

// Straight returns the zero-deflection sentinel.
func Straight() Angle {
	return Angle{}
}

// Radians returns the deflection.
func (a Angle) Radians() float64 {
	return a.rad
}

// IsStraight reports whether the angle is the zero-deflection sentinel.
func (a Angle) IsStraight() bool {
	return a.rad == 0
}
