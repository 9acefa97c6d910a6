package rover_nav

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSim(vehicle Position, heading float64, target Position) (*SimRover, Hardware) {
	sim := NewSimRover(SimConfig{
		Speed:      10,
		Wheelbase:  2,
		MarkerSize: 2,
		Vehicle:    vehicle,
		Heading:    heading,
		Target:     target,
	}, testColors)
	return sim, Hardware{Detector: sim, Drive: sim, Steer: sim}
}

func TestIncrementalApproachHitsTarget(t *testing.T) {
	sim, hw := newTestSim(Position{X: 0, Y: 0}, 0, Position{X: 20, Y: 0})
	a := IncrementalApproach{Cfg: ApproachConfig{StepSeconds: 0.5, HitDistance: 3, MinProgress: 1}}

	hint, err := a.Approach(context.Background(), testColors, hw)
	require.NoError(t, err)
	assert.Equal(t, HintTargetWasHit, hint)

	pos, _ := sim.Pose()
	assert.InDelta(t, 20, pos.X, 1e-9)
}

func TestIncrementalApproachDetectsWrongHeading(t *testing.T) {
	_, hw := newTestSim(Position{X: 0, Y: 0}, 3.14159, Position{X: 20, Y: 0})
	a := IncrementalApproach{Cfg: ApproachConfig{StepSeconds: 0.5, HitDistance: 3, MinProgress: 1}}

	hint, err := a.Approach(context.Background(), testColors, hw)
	require.NoError(t, err)
	assert.Equal(t, HintOrientationIsOff, hint)
}

func TestIncrementalApproachAlreadyThere(t *testing.T) {
	r := newRig(frame{vehicle: Position{X: 1, Y: 1}, target: Position{X: 2, Y: 1}})
	a := IncrementalApproach{Cfg: ApproachConfig{StepSeconds: 0.5, HitDistance: 3}}

	hint, err := a.Approach(context.Background(), testColors, r.hw)
	require.NoError(t, err)
	assert.Equal(t, HintTargetWasHit, hint)
	assert.Empty(t, r.drive.calls)
}

func TestIncrementalApproachStepBudget(t *testing.T) {
	_, hw := newTestSim(Position{X: 0, Y: 0}, 0, Position{X: 1000, Y: 0})
	a := IncrementalApproach{Cfg: ApproachConfig{StepSeconds: 0.5, HitDistance: 3, MinProgress: 1, MaxSteps: 3}}

	hint, err := a.Approach(context.Background(), testColors, hw)
	require.NoError(t, err)
	assert.Equal(t, HintOrientationIsOff, hint)
}

func TestIncrementalApproachPropagatesFailures(t *testing.T) {
	r := newRig(frame{vehicle: Position{X: 0, Y: 0}, target: Position{X: 50, Y: 0}})
	r.drive.err = errors.New("brownout")
	a := IncrementalApproach{Cfg: ApproachConfig{StepSeconds: 0.5, HitDistance: 3}}

	_, err := a.Approach(context.Background(), testColors, r.hw)
	assert.ErrorIs(t, err, ErrActuation)

	_, err = a.Approach(context.Background(), testColors, newRig().hw)
	assert.ErrorIs(t, err, ErrPerception)
}

func TestWatchIdleReturnsWhenTargetLeaves(t *testing.T) {
	near := frame{vehicle: Position{X: 0, Y: 0}, target: Position{X: 5, Y: 0}}
	far := frame{vehicle: Position{X: 0, Y: 0}, target: Position{X: 200, Y: 0}}
	r := newRig(near, near, near, far)
	w := WatchIdle{Cfg: IdleConfig{PollSeconds: 0.001, MoveThreshold: 50}}

	err := w.Idle(context.Background(), testColors, r.hw)
	require.NoError(t, err)
	assert.Equal(t, 4, r.det.calls)
	assert.Equal(t, []float64{0}, r.steer.angles)
	assert.Empty(t, r.drive.calls)
}

func TestWatchIdleSmoothingIgnoresSingleGlitch(t *testing.T) {
	near := frame{vehicle: Position{X: 0, Y: 0}, target: Position{X: 5, Y: 0}}
	glitch := frame{vehicle: Position{X: 0, Y: 0}, target: Position{X: 60, Y: 0}}
	far := frame{vehicle: Position{X: 0, Y: 0}, target: Position{X: 200, Y: 0}}
	r := newRig(near, glitch, near, far)
	w := WatchIdle{Cfg: IdleConfig{PollSeconds: 0.001, MoveThreshold: 50, Alpha: 0.5}}

	require.NoError(t, w.Idle(context.Background(), testColors, r.hw))
	// 5 -> 32.5 -> 18.75 -> 109.375: only the last sample crosses 50.
	assert.Equal(t, 4, r.det.calls)
}

func TestWatchIdleHonorsContext(t *testing.T) {
	near := frame{vehicle: Position{X: 0, Y: 0}, target: Position{X: 5, Y: 0}}
	r := newRig(near, near, near, near, near, near, near, near)
	w := WatchIdle{Cfg: IdleConfig{PollSeconds: 10, MoveThreshold: 50}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.Idle(ctx, testColors, r.hw)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWatchIdleWithSimulator(t *testing.T) {
	sim, hw := newTestSim(Position{X: 0, Y: 0}, 0, Position{X: 1, Y: 0})
	sim.MoveTarget(Position{X: 300, Y: 300})
	w := WatchIdle{Cfg: IdleConfig{PollSeconds: 0.001, MoveThreshold: 50}}

	assert.NoError(t, w.Idle(context.Background(), testColors, hw))
}
