package rover_nav

import (
	"context"
	"fmt"
	"time"
)

// Color identifies a colored marker the detector can find in a frame.
type Color string

// Colors assigns marker colors to the vehicle and the target.
type Colors struct {
	Vehicle Color `json:"vehicle"`
	Target  Color `json:"target"`
}

// Region is an axis-aligned bounding box in camera-frame coordinates.
// X and Y are the top-left corner.
type Region struct {
	X float64
	Y float64
	W float64
	H float64
}

// Center returns the midpoint of the region.
func (r Region) Center() Position {
	return Position{X: r.X + r.W/2, Y: r.Y + r.H/2}
}

// Detector locates two colored markers in the latest camera frame.
//
// Both regions must come from the same frame. Implementations fail when
// either color is not visible.
type Detector interface {
	Locate(ctx context.Context, a, b Color) (Region, Region, error)
}

// Direction is the sign of a drive command.
type Direction int

const (
	Forward Direction = iota + 1
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "FORWARD"
	case Backward:
		return "BACKWARD"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// DriveActuator commands constant-velocity translation. DriveFor blocks until
// the motion has completed.
type DriveActuator interface {
	DriveFor(ctx context.Context, dir Direction, d time.Duration) error
}

// SteerActuator sets the steering deflection.
type SteerActuator interface {
	SetAngle(ctx context.Context, a Angle) error
}

// Hardware bundles the three handles owned by the control loop.
type Hardware struct {
	Detector Detector
	Drive    DriveActuator
	Steer    SteerActuator
}

// Hint tells the controller why the approach routine returned.
type Hint int

const (
	HintTargetWasHit Hint = iota + 1
	HintOrientationIsOff
)

func (h Hint) String() string {
	switch h {
	case HintTargetWasHit:
		return "TARGET_WAS_HIT"
	case HintOrientationIsOff:
		return "ORIENTATION_IS_OFF"
	default:
		return fmt.Sprintf("Hint(%d)", int(h))
	}
}

// Approacher moves the vehicle toward the target in small increments until it
// either reaches it or loses its heading.
type Approacher interface {
	Approach(ctx context.Context, colors Colors, hw Hardware) (Hint, error)
}

// Idler holds position and returns once the target has moved away.
type Idler interface {
	Idle(ctx context.Context, colors Colors, hw Hardware) error
}

// ApproachFunc adapts a function to Approacher.
type ApproachFunc func(ctx context.Context, colors Colors, hw Hardware) (Hint, error)

func (f ApproachFunc) Approach(ctx context.Context, colors Colors, hw Hardware) (Hint, error) {
	return f(ctx, colors, hw)
}

// IdleFunc adapts a function to Idler.
type IdleFunc func(ctx context.Context, colors Colors, hw Hardware) error

func (f IdleFunc) Idle(ctx context.Context, colors Colors, hw Hardware) error {
	return f(ctx, colors, hw)
}

// Mode selects which behavior the next step runs.
type Mode int

const (
	ModeTurning Mode = iota + 1
	ModeApproaching
	ModeIdle
)

func (m Mode) String() string {
	switch m {
	case ModeTurning:
		return "TURNING"
	case ModeApproaching:
		return "APPROACHING"
	case ModeIdle:
		return "IDLE"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Event is the outcome kind of one step.
type Event int

const (
	// EventAligned: heading correction fell under the threshold.
	EventAligned Event = iota + 1
	// EventCorrected: a damped steering correction was applied.
	EventCorrected
	// EventTargetHit: the approach routine reached the target.
	EventTargetHit
	// EventOrientationOff: the approach routine lost its heading.
	EventOrientationOff
	// EventTargetMoved: the idle routine saw the target leave.
	EventTargetMoved
)

func (e Event) String() string {
	switch e {
	case EventAligned:
		return "ALIGNED"
	case EventCorrected:
		return "CORRECTED"
	case EventTargetHit:
		return "TARGET_HIT"
	case EventOrientationOff:
		return "ORIENTATION_OFF"
	case EventTargetMoved:
		return "TARGET_MOVED"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// StepOutcome describes what a successful step did.
type StepOutcome struct {
	Mode  Mode
	Next  Mode
	Event Event

	// Turning only.
	Correction float64
	Steer      Angle
	Snapshot   Snapshot
}

// StepRecord is handed to listeners after every step, failed or not.
type StepRecord struct {
	Seq      uint64
	Start    time.Time
	Duration time.Duration
	Outcome  StepOutcome
	Err      error
}

// StepListener observes completed steps.
type StepListener func(rec StepRecord)
