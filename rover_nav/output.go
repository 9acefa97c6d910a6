package rover_nav

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

// ActuatorConfig controls the serial link to the motor controller.
type ActuatorConfig struct {
	SerialPath string      `json:"serial_path"`
	Port       PortOptions `json:"port"`
}

// PortOptions describes the serial connection parameters.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies defaults for unset values.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o
	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}
	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}
	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	return mode, nil
}

// SerialLink drives and steers the vehicle over a line-oriented serial
// protocol. Each command is answered with "OK" or "ERR <reason>"; drive
// commands are answered once the motion has completed.
type SerialLink struct {
	mu     sync.Mutex
	port   io.ReadWriteCloser
	r      *bufio.Reader
	logger *slog.Logger
}

// OpenSerialLink opens the configured serial port.
func OpenSerialLink(cfg ActuatorConfig, logger *slog.Logger) (*SerialLink, error) {
	if cfg.SerialPath == "" {
		return nil, fmt.Errorf("actuator.serial_path must be set")
	}
	mode, err := cfg.Port.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(cfg.SerialPath, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.SerialPath, err)
	}
	return NewSerialLink(port, logger), nil
}

// NewSerialLink wraps an already open port.
func NewSerialLink(port io.ReadWriteCloser, logger *slog.Logger) *SerialLink {
	return &SerialLink{port: port, r: bufio.NewReader(port), logger: orDiscard(logger)}
}

// DriveFor implements DriveActuator.
func (l *SerialLink) DriveFor(ctx context.Context, dir Direction, d time.Duration) error {
	var code string
	switch dir {
	case Forward:
		code = "F"
	case Backward:
		code = "B"
	default:
		return &ActuationError{Op: "drive", Err: fmt.Errorf("invalid direction %v", dir)}
	}
	return l.command(ctx, "drive", fmt.Sprintf("DRIVE %s %d", code, d.Milliseconds()))
}

// SetAngle implements SteerActuator.
func (l *SerialLink) SetAngle(ctx context.Context, a Angle) error {
	return l.command(ctx, "steer", fmt.Sprintf("STEER %.4f", a.Radians()))
}

// Close releases the serial port.
func (l *SerialLink) Close() error {
	if l == nil || l.port == nil {
		return nil
	}
	return l.port.Close()
}

func (l *SerialLink) command(ctx context.Context, op, line string) error {
	if err := ctx.Err(); err != nil {
		return &ActuationError{Op: op, Err: err}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := io.WriteString(l.port, line+"\n"); err != nil {
		return &ActuationError{Op: op, Err: fmt.Errorf("write: %w", err)}
	}
	reply, err := l.r.ReadString('\n')
	if err != nil {
		return &ActuationError{Op: op, Err: fmt.Errorf("read reply: %w", err)}
	}
	reply = strings.TrimSpace(reply)
	l.logger.Debug("serial command", "cmd", line, "reply", reply)

	switch {
	case reply == "OK":
		return nil
	case strings.HasPrefix(reply, "ERR"):
		reason := strings.TrimSpace(strings.TrimPrefix(reply, "ERR"))
		if reason == "" {
			reason = "unspecified"
		}
		return &ActuationError{Op: op, Err: errors.New(reason)}
	default:
		return &ActuationError{Op: op, Err: fmt.Errorf("unexpected reply %q", reply)}
	}
}
