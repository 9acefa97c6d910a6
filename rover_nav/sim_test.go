package rover_nav

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimRoverStraightDrive(t *testing.T) {
	sim, _ := newTestSim(Position{X: 0, Y: 0}, math.Pi/2, Position{X: 50, Y: 50})
	ctx := context.Background()

	require.NoError(t, sim.DriveFor(ctx, Forward, 2*time.Second))
	pos, heading := sim.Pose()
	assert.InDelta(t, 0, pos.X, 1e-9)
	assert.InDelta(t, 20, pos.Y, 1e-9)
	assert.InDelta(t, math.Pi/2, heading, 1e-12)

	require.NoError(t, sim.DriveFor(ctx, Backward, time.Second))
	pos, _ = sim.Pose()
	assert.InDelta(t, 10, pos.Y, 1e-9)
}

func TestSimRoverSteeredDriveTurns(t *testing.T) {
	sim, _ := newTestSim(Position{X: 0, Y: 0}, 0, Position{X: 50, Y: 50})
	ctx := context.Background()

	left, err := NewAngle(0.3, DefaultAngleLimit)
	require.NoError(t, err)
	require.NoError(t, sim.SetAngle(ctx, left))
	require.NoError(t, sim.DriveFor(ctx, Forward, 100*time.Millisecond))

	pos, heading := sim.Pose()
	assert.Greater(t, heading, 0.0)
	assert.Greater(t, pos.Y, 0.0)
	// Arc length is 1 unit, so the chord is at most that long.
	assert.LessOrEqual(t, Distance(Position{}, pos), 1.0+1e-9)
}

func TestSimRoverLocate(t *testing.T) {
	sim, _ := newTestSim(Position{X: 3, Y: 4}, 0, Position{X: 30, Y: 40})

	snap, err := CaptureSnapshot(context.Background(), sim, testColors)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 3, Y: 4}, snap.Vehicle)
	assert.Equal(t, Position{X: 30, Y: 40}, snap.Target)

	_, _, err = sim.Locate(context.Background(), ColorRed, ColorGreen)
	var pe *PerceptionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []Color{ColorRed}, pe.Missing)
}

func TestSimRoverRealTimeDriveHonorsContext(t *testing.T) {
	sim := NewSimRover(SimConfig{RealTime: true}, testColors)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sim.DriveFor(ctx, Forward, time.Minute)
	assert.ErrorIs(t, err, ErrActuation)
	pos, _ := sim.Pose()
	assert.Equal(t, Position{}, pos)
}

func TestControllerAgainstSimulatorFullCycle(t *testing.T) {
	sim, hw := newTestSim(Position{X: 0, Y: 0}, 0, Position{X: 100, Y: 0})
	routines := Routines{
		Approach: IncrementalApproach{Cfg: ApproachConfig{StepSeconds: 1, HitDistance: 5, MinProgress: 1}},
		Idle:     WatchIdle{Cfg: IdleConfig{PollSeconds: 0.001, MoveThreshold: 50}},
	}
	cfg := ControllerConfig{Heading: HeadingConfig{Invert: true}}
	rc := NewRoverController(cfg, testColors, hw, routines, nil)
	ctx := context.Background()

	out, err := rc.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventAligned, out.Event)
	assert.Equal(t, ModeApproaching, rc.Mode())

	out, err = rc.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventTargetHit, out.Event)
	assert.Equal(t, ModeIdle, rc.Mode())

	sim.MoveTarget(Position{X: 0, Y: 200})
	out, err = rc.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventTargetMoved, out.Event)
	assert.Equal(t, ModeTurning, rc.Mode())
}

func TestControllerAgainstSimulatorSteersTowardTarget(t *testing.T) {
	sim, hw := newTestSim(Position{X: 0, Y: 0}, math.Pi/2, Position{X: 100, Y: 0})
	cfg := ControllerConfig{Heading: HeadingConfig{Invert: true}}
	rc := NewRoverController(cfg, testColors, hw, Routines{}, nil)

	out, err := rc.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventCorrected, out.Event)
	assert.Less(t, out.Correction, 0.0)
	assert.Less(t, out.Steer.Radians(), 0.0)

	_, heading := sim.Pose()
	assert.Less(t, heading, math.Pi/2)
	assert.Equal(t, 0.0, sim.Steering())
}

func TestDefaultControllerAlignedWhenFacingTarget(t *testing.T) {
	_, hw := newTestSim(Position{X: 0, Y: 0}, 0, Position{X: 100, Y: 0})
	rc := NewRoverController(DefaultConfig().Controller, testColors, hw, Routines{}, nil)

	out, err := rc.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventAligned, out.Event)
	assert.InDelta(t, 0, out.Correction, 1e-9)
	assert.Equal(t, ModeApproaching, rc.Mode())
}

func TestDefaultControllerReachesTargetInSimulator(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sim.RealTime = false
	sim := NewSimRover(cfg.Sim, cfg.Colors)
	hw := Hardware{Detector: sim, Drive: sim, Steer: sim}
	routines := Routines{Approach: IncrementalApproach{Cfg: cfg.Approach}}
	rc := NewRoverController(cfg.Controller, cfg.Colors, hw, routines, nil)

	for i := 0; i < 200 && rc.Mode() != ModeIdle; i++ {
		_, err := rc.Step(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, ModeIdle, rc.Mode())
	pos, _ := sim.Pose()
	assert.LessOrEqual(t, Distance(pos, cfg.Sim.Target), cfg.Approach.HitDistance)
}
