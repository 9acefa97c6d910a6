package rover_nav

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPerception matches any *PerceptionError.
	ErrPerception = errors.New("perception failed")
	// ErrAngleOutOfRange matches any *AngleOutOfRangeError.
	ErrAngleOutOfRange = errors.New("steering angle out of range")
	// ErrActuation matches any *ActuationError.
	ErrActuation = errors.New("actuation failed")
	// ErrCollaborator matches any *CollaboratorError.
	ErrCollaborator = errors.New("collaborator routine failed")
	// ErrDegenerateHeading is returned when the probe displacement is too small
	// to define an orientation.
	ErrDegenerateHeading = errors.New("degenerate heading estimate")
)

// PerceptionError reports that the detector could not locate a required color.
type PerceptionError struct {
	Missing []Color
	Err     error
}

func (e *PerceptionError) Error() string {
	var b strings.Builder
	b.WriteString("perception")
	if len(e.Missing) > 0 {
		names := make([]string, len(e.Missing))
		for i, c := range e.Missing {
			names[i] = string(c)
		}
		fmt.Fprintf(&b, ": missing %s", strings.Join(names, ", "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PerceptionError) Unwrap() error { return e.Err }

func (e *PerceptionError) Is(target error) bool { return target == ErrPerception }

// AngleOutOfRangeError reports a steering value outside the actuator range.
type AngleOutOfRangeError struct {
	Value float64
	Limit float64
}

func (e *AngleOutOfRangeError) Error() string {
	return fmt.Sprintf("steering angle %.4f rad outside [-%.4f, %.4f]", e.Value, e.Limit, e.Limit)
}

func (e *AngleOutOfRangeError) Is(target error) bool { return target == ErrAngleOutOfRange }

// ActuationError reports a failed drive or steer command.
type ActuationError struct {
	Op  string
	Err error
}

func (e *ActuationError) Error() string {
	return fmt.Sprintf("actuation %s: %v", e.Op, e.Err)
}

func (e *ActuationError) Unwrap() error { return e.Err }

func (e *ActuationError) Is(target error) bool { return target == ErrActuation }

// CollaboratorError reports a failure inside the approach or idle routine.
type CollaboratorError struct {
	Routine string
	Err     error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s routine: %v", e.Routine, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

func (e *CollaboratorError) Is(target error) bool { return target == ErrCollaborator }

// actuationErr wraps err unless an adapter already classified it.
func actuationErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *ActuationError
	if errors.As(err, &ae) {
		return err
	}
	return &ActuationError{Op: op, Err: err}
}
