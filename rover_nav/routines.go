package rover_nav

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// ApproachConfig tunes IncrementalApproach.
type ApproachConfig struct {
	StepSeconds float64 `json:"step_seconds"`
	HitDistance float64 `json:"hit_distance"`
	// MinProgress is the distance each step must close; anything less means
	// the heading has drifted.
	MinProgress float64 `json:"min_progress"`
	// MaxSteps bounds one approach call. Zero means unbounded.
	MaxSteps int `json:"max_steps"`
}

// IncrementalApproach drives forward in short bursts, re-measuring the distance
// to the target after each one.
type IncrementalApproach struct {
	Cfg    ApproachConfig
	Logger *slog.Logger
}

// Approach implements Approacher.
func (a IncrementalApproach) Approach(ctx context.Context, colors Colors, hw Hardware) (Hint, error) {
	logger := orDiscard(a.Logger)

	snap, err := CaptureSnapshot(ctx, hw.Detector, colors)
	if err != nil {
		return 0, err
	}
	dist := snap.Separation()

	for steps := 0; ; steps++ {
		if dist <= a.Cfg.HitDistance {
			logger.Debug("approach reached target", "distance", dist, "steps", steps)
			return HintTargetWasHit, nil
		}
		if a.Cfg.MaxSteps > 0 && steps >= a.Cfg.MaxSteps {
			logger.Debug("approach step budget exhausted", "distance", dist, "steps", steps)
			return HintOrientationIsOff, nil
		}

		if err := hw.Drive.DriveFor(ctx, Forward, seconds(a.Cfg.StepSeconds)); err != nil {
			return 0, actuationErr("approach", err)
		}
		snap, err = CaptureSnapshot(ctx, hw.Detector, colors)
		if err != nil {
			return 0, err
		}
		next := snap.Separation()
		logger.Debug("approach step", "step", steps+1, "distance", next, "closed", dist-next)

		if next > a.Cfg.HitDistance && dist-next < a.Cfg.MinProgress {
			return HintOrientationIsOff, nil
		}
		dist = next
	}
}

// IdleConfig tunes WatchIdle.
type IdleConfig struct {
	PollSeconds   float64 `json:"poll_seconds"`
	MoveThreshold float64 `json:"move_threshold"`
	Alpha         float64 `json:"alpha"`
}

// WatchIdle holds the vehicle still and polls the detector until the target
// is farther than MoveThreshold from the vehicle.
type WatchIdle struct {
	Cfg    IdleConfig
	Logger *slog.Logger
}

// Idle implements Idler.
func (w WatchIdle) Idle(ctx context.Context, colors Colors, hw Hardware) error {
	logger := orDiscard(w.Logger)

	if err := hw.Steer.SetAngle(ctx, Straight()); err != nil {
		return actuationErr("idle", err)
	}

	tracker := NewDistanceTracker(w.Cfg.Alpha)
	poll := seconds(w.Cfg.PollSeconds)
	for {
		snap, err := CaptureSnapshot(ctx, hw.Detector, colors)
		if err != nil {
			return err
		}
		d := tracker.Update(snap.Separation(), snap.At)
		if d > w.Cfg.MoveThreshold {
			logger.Debug("target moved away", "distance", d, "threshold", w.Cfg.MoveThreshold)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("idle: %w", ctx.Err())
		case <-time.After(poll):
		}
	}
}

func orDiscard(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
