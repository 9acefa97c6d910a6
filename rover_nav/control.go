package rover_nav

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// ControllerConfig bundles the turning policy constants.
type ControllerConfig struct {
	InitialMode Mode `json:"initial_mode"`

	// ProbeSeconds is the duration of the reverse drive used to measure heading.
	ProbeSeconds float64 `json:"probe_seconds"`
	// CorrectSeconds is the duration of the forward drive with steering applied.
	CorrectSeconds float64 `json:"correct_seconds"`

	AlignThreshold float64 `json:"align_threshold"`
	Damping        float64 `json:"damping"`
	AngleLimit     float64 `json:"angle_limit"`

	Heading HeadingConfig `json:"heading"`
}

// DefaultControllerConfig returns the stock turning policy.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		InitialMode:    ModeTurning,
		ProbeSeconds:   1,
		CorrectSeconds: 1,
		AlignThreshold: 0.01,
		Damping:        5,
		AngleLimit:     DefaultAngleLimit,
		// The probe drives backward, so forward is the reversed displacement.
		Heading: HeadingConfig{Invert: true},
	}
}

// withDefaults fills unset fields from DefaultControllerConfig.
func (c ControllerConfig) withDefaults() ControllerConfig {
	def := DefaultControllerConfig()
	if c.InitialMode == 0 {
		c.InitialMode = def.InitialMode
	}
	if c.ProbeSeconds <= 0 {
		c.ProbeSeconds = def.ProbeSeconds
	}
	if c.CorrectSeconds <= 0 {
		c.CorrectSeconds = def.CorrectSeconds
	}
	if c.AlignThreshold <= 0 {
		c.AlignThreshold = def.AlignThreshold
	}
	if c.Damping <= 0 {
		c.Damping = def.Damping
	}
	if c.AngleLimit <= 0 {
		c.AngleLimit = def.AngleLimit
	}
	return c
}

// Routines holds the external approach and idle behaviors.
type Routines struct {
	Approach Approacher
	Idle     Idler
}

// RoverController implements the Turning/Approaching/Idle state machine.
type RoverController struct {
	Cfg ControllerConfig

	colors    Colors
	hw        Hardware
	routines  Routines
	heading   HeadingEstimator
	logger    *slog.Logger
	listeners []StepListener

	mode Mode
	seq  uint64
}

// NewRoverController constructs a controller in cfg.InitialMode.
func NewRoverController(cfg ControllerConfig, colors Colors, hw Hardware, routines Routines, logger *slog.Logger) *RoverController {
	cfg = cfg.withDefaults()
	return &RoverController{
		Cfg:      cfg,
		colors:   colors,
		hw:       hw,
		routines: routines,
		heading:  HeadingEstimator{Cfg: cfg.Heading},
		logger:   orDiscard(logger),
		mode:     cfg.InitialMode,
	}
}

// Mode returns the mode the next step will run.
func (rc *RoverController) Mode() Mode {
	return rc.mode
}

// AddListener registers fn to be called after every step.
func (rc *RoverController) AddListener(fn StepListener) {
	rc.listeners = append(rc.listeners, fn)
}

// Step runs one iteration of the current mode. The mode only changes when the
// step succeeds.
func (rc *RoverController) Step(ctx context.Context) (StepOutcome, error) {
	rc.seq++
	start := time.Now()
	mode := rc.mode

	var out StepOutcome
	var err error
	switch mode {
	case ModeTurning:
		out, err = rc.stepTurning(ctx)
	case ModeApproaching:
		out, err = rc.stepApproaching(ctx)
	case ModeIdle:
		out, err = rc.stepIdle(ctx)
	default:
		err = fmt.Errorf("unknown mode %v", mode)
	}

	out.Mode = mode
	if err != nil {
		out.Next = mode
		err = fmt.Errorf("step %d (%s): %w", rc.seq, mode, err)
	} else {
		out.Next = Transition(mode, out)
		rc.mode = out.Next
	}

	rec := StepRecord{Seq: rc.seq, Start: start, Duration: time.Since(start), Outcome: out, Err: err}
	rc.logStep(rec)
	for _, l := range rc.listeners {
		l(rec)
	}
	return out, err
}

// stepTurning measures the heading with a reverse probe and applies a damped
// steering correction when it is off.
func (rc *RoverController) stepTurning(ctx context.Context) (StepOutcome, error) {
	var out StepOutcome

	before, err := CaptureSnapshot(ctx, rc.hw.Detector, rc.colors)
	if err != nil {
		return out, fmt.Errorf("capture before probe: %w", err)
	}
	if err := rc.hw.Drive.DriveFor(ctx, Backward, seconds(rc.Cfg.ProbeSeconds)); err != nil {
		return out, actuationErr("probe", err)
	}
	after, err := CaptureSnapshot(ctx, rc.hw.Detector, rc.colors)
	if err != nil {
		return out, fmt.Errorf("capture after probe: %w", err)
	}
	out.Snapshot = after

	orientation, err := rc.heading.Estimate(before, after)
	if err != nil {
		return out, err
	}
	correction := AngleBetween(orientation, after.VehicleToTarget())
	out.Correction = correction

	if math.Abs(correction) <= rc.Cfg.AlignThreshold {
		out.Event = EventAligned
		return out, nil
	}

	steer, err := NewAngle(correction/rc.Cfg.Damping, rc.Cfg.AngleLimit)
	if err != nil {
		return out, err
	}
	out.Steer = steer

	if err := rc.hw.Steer.SetAngle(ctx, steer); err != nil {
		return out, actuationErr("steer", err)
	}
	if err := rc.hw.Drive.DriveFor(ctx, Forward, seconds(rc.Cfg.CorrectSeconds)); err != nil {
		return out, actuationErr("correct", err)
	}
	if err := rc.hw.Steer.SetAngle(ctx, Straight()); err != nil {
		return out, actuationErr("straighten", err)
	}
	out.Event = EventCorrected
	return out, nil
}

// stepApproaching delegates to the approach routine.
func (rc *RoverController) stepApproaching(ctx context.Context) (StepOutcome, error) {
	var out StepOutcome
	hint, err := rc.routines.Approach.Approach(ctx, rc.colors, rc.hw)
	if err != nil {
		return out, &CollaboratorError{Routine: "approach", Err: err}
	}
	switch hint {
	case HintTargetWasHit:
		out.Event = EventTargetHit
	case HintOrientationIsOff:
		out.Event = EventOrientationOff
	default:
		return out, &CollaboratorError{Routine: "approach", Err: fmt.Errorf("unknown hint %v", hint)}
	}
	return out, nil
}

// stepIdle blocks in the idle routine until the target moves.
func (rc *RoverController) stepIdle(ctx context.Context) (StepOutcome, error) {
	var out StepOutcome
	if err := rc.routines.Idle.Idle(ctx, rc.colors, rc.hw); err != nil {
		return out, &CollaboratorError{Routine: "idle", Err: err}
	}
	out.Event = EventTargetMoved
	return out, nil
}

// Transition maps a mode and the outcome of its step to the next mode. Events
// that do not belong to the mode leave it unchanged.
func Transition(mode Mode, outcome StepOutcome) Mode {
	switch mode {
	case ModeTurning:
		switch outcome.Event {
		case EventAligned:
			return ModeApproaching
		case EventCorrected:
			return ModeTurning
		}
	case ModeApproaching:
		switch outcome.Event {
		case EventTargetHit:
			return ModeIdle
		case EventOrientationOff:
			return ModeTurning
		}
	case ModeIdle:
		if outcome.Event == EventTargetMoved {
			return ModeTurning
		}
	}
	return mode
}

func (rc *RoverController) logStep(rec StepRecord) {
	out := rec.Outcome
	if rec.Err != nil {
		rc.logger.Error("step failed", "seq", rec.Seq, "mode", out.Mode.String(), "err", rec.Err)
		return
	}
	attrs := []any{
		"seq", rec.Seq,
		"mode", out.Mode.String(),
		"event", out.Event.String(),
		"next", out.Next.String(),
		"elapsed", rec.Duration,
	}
	if out.Mode == ModeTurning {
		attrs = append(attrs, "correction", out.Correction, "steer", out.Steer.Radians())
	}
	if out.Next != out.Mode {
		rc.logger.Info("mode transition", attrs...)
		return
	}
	rc.logger.Debug("step", attrs...)
}

// seconds converts a config value in seconds to a duration.
func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
