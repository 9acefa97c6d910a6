package rover_nav

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// LogConfig controls console logging.
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// AppConfig aggregates all configuration sections.
type AppConfig struct {
	Colors     Colors           `json:"colors"`
	Controller ControllerConfig `json:"controller"`
	Approach   ApproachConfig   `json:"approach"`
	Idle       IdleConfig       `json:"idle"`
	Detector   DetectorConfig   `json:"detector"`
	Actuator   ActuatorConfig   `json:"actuator"`
	Sim        SimConfig        `json:"sim"`
	Telemetry  TelemetryConfig  `json:"telemetry"`
	Metrics    MetricsConfig    `json:"metrics"`
	Log        LogConfig        `json:"log"`
}

// DefaultConfig returns an AppConfig populated with standard defaults.
func DefaultConfig() AppConfig {
	return AppConfig{
		Colors:     Colors{Vehicle: ColorBlue, Target: ColorGreen},
		Controller: DefaultControllerConfig(),
		Approach: ApproachConfig{
			StepSeconds: 0.5,
			HitDistance: 40,
			MinProgress: 2,
			MaxSteps:    40,
		},
		Idle: IdleConfig{
			PollSeconds:   0.5,
			MoveThreshold: 80,
			Alpha:         0.5,
		},
		Detector: DetectorConfig{
			UDPAddr:             "127.0.0.1:9460",
			ReadBuffer:          2048,
			FrameTimeoutSeconds: 5,
		},
		Actuator: ActuatorConfig{
			SerialPath: "/dev/ttyUSB0",
			Port:       PortOptions{BaudRate: 115200, DataBits: 8, StopBits: 1, Parity: "N"},
		},
		Sim: SimConfig{
			Speed:      40,
			Wheelbase:  20,
			MarkerSize: 10,
			RealTime:   true,
			Vehicle:    Position{X: 100, Y: 100},
			Heading:    0,
			Target:     Position{X: 500, Y: 300},
		},
		Telemetry: TelemetryConfig{Path: "rover-telemetry.db"},
		Metrics:   MetricsConfig{Addr: "127.0.0.1:9470"},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// LoadConfig reads the JSON config from disk on top of DefaultConfig. A
// missing file yields the defaults.
func LoadConfig(path string) (AppConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Colors.Vehicle == "" || c.Colors.Target == "" {
		errs = append(errs, errors.New("colors.vehicle and colors.target must be set"))
	} else if c.Colors.Vehicle == c.Colors.Target {
		errs = append(errs, fmt.Errorf("vehicle and target share color %q", c.Colors.Vehicle))
	}
	if c.Controller.Damping <= 0 {
		errs = append(errs, errors.New("controller.damping must be > 0"))
	}
	if c.Controller.AngleLimit <= 0 {
		errs = append(errs, errors.New("controller.angle_limit must be > 0"))
	}
	if c.Approach.StepSeconds <= 0 {
		errs = append(errs, errors.New("approach.step_seconds must be > 0"))
	}
	if c.Idle.MoveThreshold <= c.Approach.HitDistance {
		errs = append(errs, fmt.Errorf("idle.move_threshold (%.1f) must exceed approach.hit_distance (%.1f)",
			c.Idle.MoveThreshold, c.Approach.HitDistance))
	}
	if !c.Sim.Enabled {
		if c.Detector.UDPAddr == "" {
			errs = append(errs, errors.New("detector.udp_addr must be set"))
		}
		if c.Actuator.SerialPath == "" {
			errs = append(errs, errors.New("actuator.serial_path must be set"))
		}
		if _, err := c.Actuator.Port.Normalize(); err != nil {
			errs = append(errs, fmt.Errorf("actuator.port: %w", err))
		}
	}
	if c.Telemetry.Enabled && c.Telemetry.Path == "" {
		errs = append(errs, errors.New("telemetry.path must be set when telemetry is enabled"))
	}
	return errors.Join(errs...)
}

// ApplyEnv overrides deployment-specific fields from environment variables.
func (c *AppConfig) ApplyEnv(getenv func(string) string) error {
	if v := getenv("ROVER_SERIAL_PATH"); v != "" {
		c.Actuator.SerialPath = v
	}
	if v := getenv("ROVER_DETECTOR_ADDR"); v != "" {
		c.Detector.UDPAddr = v
	}
	if v := getenv("ROVER_TELEMETRY_PATH"); v != "" {
		c.Telemetry.Path = v
		c.Telemetry.Enabled = true
	}
	if v := getenv("ROVER_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
		c.Metrics.Enabled = true
	}
	if v := getenv("ROVER_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := getenv("ROVER_SIM"); v != "" {
		on, err := parseBoolLoose(v)
		if err != nil {
			return fmt.Errorf("ROVER_SIM: %w", err)
		}
		c.Sim.Enabled = on
	}
	return nil
}

// Marker colors understood by the detector.
const (
	ColorRed    Color = "red"
	ColorGreen  Color = "green"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
)

// ParseColor converts a color name into a Color.
func ParseColor(value string) (Color, error) {
	switch c := Color(strings.ToLower(strings.TrimSpace(value))); c {
	case ColorRed, ColorGreen, ColorBlue, ColorYellow:
		return c, nil
	default:
		return "", fmt.Errorf("unknown color %q", value)
	}
}

// UnmarshalJSON accepts color names in any case.
func (c *Color) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	parsed, err := ParseColor(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseMode converts a mode name into a Mode enum.
func ParseMode(value string) (Mode, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	switch normalized {
	case "TURNING":
		return ModeTurning, nil
	case "APPROACHING":
		return ModeApproaching, nil
	case "IDLE":
		return ModeIdle, nil
	default:
		return ModeTurning, fmt.Errorf("unknown mode %q", value)
	}
}

// MarshalJSON writes the mode name.
func (m Mode) MarshalJSON() ([]byte, error) {
	if m == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}

// UnmarshalJSON allows modes to be loaded from JSON strings.
func (m *Mode) UnmarshalJSON(b []byte) error {
	var raw *string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == nil {
		return nil
	}
	parsed, err := ParseMode(*raw)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
