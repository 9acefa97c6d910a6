package rover_nav

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// SimConfig describes the simulated vehicle and arena.
type SimConfig struct {
	Enabled bool `json:"enabled"`

	Speed      float64 `json:"speed"`
	Wheelbase  float64 `json:"wheelbase"`
	MarkerSize float64 `json:"marker_size"`
	// RealTime makes DriveFor block for the commanded duration.
	RealTime bool `json:"real_time"`

	Vehicle Position `json:"vehicle"`
	Heading float64  `json:"heading"`
	Target  Position `json:"target"`
}

// SimRover is a kinematic bicycle model that stands in for the camera, the
// drive motor and the steering servo.
type SimRover struct {
	mu sync.Mutex

	cfg     SimConfig
	colors  Colors
	pos     Position
	heading float64
	steer   float64
	target  Position
}

// NewSimRover places the vehicle and target as configured.
func NewSimRover(cfg SimConfig, colors Colors) *SimRover {
	if cfg.Speed <= 0 {
		cfg.Speed = 40
	}
	if cfg.Wheelbase <= 0 {
		cfg.Wheelbase = 20
	}
	if cfg.MarkerSize <= 0 {
		cfg.MarkerSize = 10
	}
	return &SimRover{
		cfg:     cfg,
		colors:  colors,
		pos:     cfg.Vehicle,
		heading: cfg.Heading,
		target:  cfg.Target,
	}
}

// Locate implements Detector.
func (s *SimRover) Locate(ctx context.Context, a, b Color) (Region, Region, error) {
	if err := ctx.Err(); err != nil {
		return Region{}, Region{}, &PerceptionError{Err: err}
	}
	s.mu.Lock()
	f := Frame{Detections: map[Color]Region{
		s.colors.Vehicle: s.marker(s.pos),
		s.colors.Target:  s.marker(s.target),
	}}
	s.mu.Unlock()
	return regionsFor(f, a, b)
}

func (s *SimRover) marker(p Position) Region {
	half := s.cfg.MarkerSize / 2
	return Region{X: p.X - half, Y: p.Y - half, W: s.cfg.MarkerSize, H: s.cfg.MarkerSize}
}

// DriveFor implements DriveActuator.
func (s *SimRover) DriveFor(ctx context.Context, dir Direction, d time.Duration) error {
	sign := 1.0
	switch dir {
	case Forward:
	case Backward:
		sign = -1
	default:
		return &ActuationError{Op: "drive", Err: fmt.Errorf("invalid direction %v", dir)}
	}

	if s.cfg.RealTime {
		select {
		case <-ctx.Done():
			return &ActuationError{Op: "drive", Err: ctx.Err()}
		case <-time.After(d):
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.advance(sign * s.cfg.Speed * d.Seconds())
	return nil
}

// advance moves the vehicle dist units along its current arc.
func (s *SimRover) advance(dist float64) {
	if s.steer == 0 {
		s.pos.X += dist * math.Cos(s.heading)
		s.pos.Y += dist * math.Sin(s.heading)
		return
	}
	radius := s.cfg.Wheelbase / math.Tan(s.steer)
	dTheta := dist / radius
	next := s.heading + dTheta
	s.pos.X += radius * (math.Sin(next) - math.Sin(s.heading))
	s.pos.Y -= radius * (math.Cos(next) - math.Cos(s.heading))
	s.heading = math.Remainder(next, 2*math.Pi)
}

// SetAngle implements SteerActuator.
func (s *SimRover) SetAngle(ctx context.Context, a Angle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steer = a.Radians()
	return nil
}

// MoveTarget relocates the target marker.
func (s *SimRover) MoveTarget(p Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = p
}

// Pose returns the vehicle position and heading in radians.
func (s *SimRover) Pose() (Position, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos, s.heading
}

// Steering returns the current steering deflection.
func (s *SimRover) Steering() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steer
}
