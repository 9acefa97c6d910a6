package rover_nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// RunLive wires the configured hardware, telemetry and metrics around a
// RoverController and runs it until the first error.
func RunLive(ctx context.Context, cfg AppConfig, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger = orDiscard(logger)

	hw, closeHW, err := openHardware(cfg, logger)
	if err != nil {
		return err
	}
	defer closeHW()

	var listeners []StepListener

	if cfg.Telemetry.Enabled {
		store, err := OpenTelemetry(cfg.Telemetry.Path)
		if err != nil {
			return err
		}
		defer func() {
			_ = store.Close()
		}()
		runID, err := store.StartRun(cfg.Colors, cfg)
		if err != nil {
			return err
		}
		logger = logger.With("run_id", runID)
		listeners = append(listeners, store.Listener(runID, logger))
	}

	metrics, err := StartMetrics(cfg.Metrics, logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = metrics.Close()
	}()
	if metrics != nil {
		listeners = append(listeners, metrics.Observe)
	}

	routines := Routines{
		Approach: IncrementalApproach{Cfg: cfg.Approach, Logger: logger},
		Idle:     WatchIdle{Cfg: cfg.Idle, Logger: logger},
	}
	controller := NewRoverController(cfg.Controller, cfg.Colors, hw, routines, logger)
	for _, l := range listeners {
		controller.AddListener(l)
	}

	logger.Info("controller started",
		"vehicle", string(cfg.Colors.Vehicle),
		"target", string(cfg.Colors.Target),
		"mode", controller.Mode().String(),
		"sim", cfg.Sim.Enabled,
	)
	return Run(ctx, controller)
}

// Run steps the controller until a step fails or ctx is done.
func Run(ctx context.Context, rc *RoverController) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := rc.Step(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
				return ctxErr
			}
			return err
		}
	}
}

// openHardware returns either the simulator or the UDP detector plus serial
// link, and a function releasing them.
func openHardware(cfg AppConfig, logger *slog.Logger) (Hardware, func(), error) {
	if cfg.Sim.Enabled {
		sim := NewSimRover(cfg.Sim, cfg.Colors)
		return Hardware{Detector: sim, Drive: sim, Steer: sim}, func() {}, nil
	}

	det, err := NewUDPDetector(cfg.Detector, logger)
	if err != nil {
		return Hardware{}, nil, err
	}
	link, err := OpenSerialLink(cfg.Actuator, logger)
	if err != nil {
		_ = det.Close()
		return Hardware{}, nil, err
	}
	closeAll := func() {
		_ = link.Close()
		_ = det.Close()
	}
	return Hardware{Detector: det, Drive: link, Steer: link}, closeAll, nil
}
