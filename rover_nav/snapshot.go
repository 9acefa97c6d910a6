package rover_nav

import (
	"context"
	"errors"
	"time"
)

// Snapshot pairs the vehicle and target positions from one detector call.
type Snapshot struct {
	Vehicle Position
	Target  Position
	At      time.Time
}

// CaptureSnapshot invokes the detector once and maps both regions to their
// centers. Detector failures come back as *PerceptionError.
func CaptureSnapshot(ctx context.Context, det Detector, colors Colors) (Snapshot, error) {
	vehicle, target, err := det.Locate(ctx, colors.Vehicle, colors.Target)
	if err != nil {
		var pe *PerceptionError
		if errors.As(err, &pe) {
			return Snapshot{}, err
		}
		return Snapshot{}, &PerceptionError{Err: err}
	}
	return Snapshot{
		Vehicle: vehicle.Center(),
		Target:  target.Center(),
		At:      time.Now(),
	}, nil
}

// VehicleToTarget returns the vector from the vehicle to the target.
func (s Snapshot) VehicleToTarget() Vector {
	return VectorFrom(s.Vehicle, s.Target)
}

// Separation returns the vehicle-to-target distance.
func (s Snapshot) Separation() float64 {
	return Distance(s.Vehicle, s.Target)
}
