package rover_nav

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Position is a point in camera-frame coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Vec returns the position as a displacement from the frame origin.
func (p Position) Vec() r2.Vec {
	return r2.Vec{X: p.X, Y: p.Y}
}

// Vector is a 2-D displacement between two positions.
type Vector = r2.Vec

// VectorFrom returns the displacement pointing from tail to head (head - tail).
func VectorFrom(tail, head Position) Vector {
	return r2.Sub(head.Vec(), tail.Vec())
}

// AngleBetween returns the signed angle, in radians, that a must be rotated by
// to align with b. Counter-clockwise is positive; the result lies in (-π, π].
//
// Zero vectors have no direction and yield a meaningless result.
func AngleBetween(a, b Vector) float64 {
	angle := math.Atan2(r2.Cross(a, b), r2.Dot(a, b))
	if angle == -math.Pi {
		return math.Pi
	}
	return angle
}

// Distance returns the Euclidean distance between two positions.
func Distance(a, b Position) float64 {
	return r2.Norm(VectorFrom(a, b))
}
