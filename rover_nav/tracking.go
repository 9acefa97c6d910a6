package rover_nav

import (
	"math"
	"time"
)

// DistanceTracker smooths a noisy vehicle-to-target distance and estimates
// its rate of change.
type DistanceTracker struct {
	alpha float64

	lastT   *time.Time
	lastRaw float64
	value   float64
	rate    float64
}

// NewDistanceTracker constructs a tracker. alpha in [0, 1) weights the
// previous estimate; zero disables smoothing.
func NewDistanceTracker(alpha float64) *DistanceTracker {
	return &DistanceTracker{alpha: math.Min(math.Max(alpha, 0), 0.99)}
}

// Update ingests a raw distance measured at t and returns the smoothed value.
func (tr *DistanceTracker) Update(raw float64, t time.Time) float64 {
	if tr.lastT == nil {
		tr.lastT = &t
		tr.lastRaw = raw
		tr.value = raw
		return tr.value
	}

	dt := math.Max(1e-3, t.Sub(*tr.lastT).Seconds())
	tr.rate = (raw - tr.lastRaw) / dt
	tr.lastRaw = raw
	*tr.lastT = t

	a := tr.alpha
	tr.value = a*tr.value + (1-a)*raw
	return tr.value
}

// Value returns the current smoothed distance.
func (tr *DistanceTracker) Value() float64 {
	return tr.value
}

// Rate returns the last raw rate of change in distance units per second.
func (tr *DistanceTracker) Rate() float64 {
	return tr.rate
}
