package rover_nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DetectorConfig controls the UDP detection feed.
type DetectorConfig struct {
	UDPAddr    string `json:"udp_addr"`
	ReadBuffer int    `json:"read_buffer"`
	// FrameTimeoutSeconds bounds the wait for a fresh frame. Zero waits forever.
	FrameTimeoutSeconds float64 `json:"frame_timeout_seconds"`
}

// Frame is one camera frame worth of color detections.
type Frame struct {
	T          float64
	Detections map[Color]Region
}

// frameStore keeps the most recent frame and wakes waiters on every update.
type frameStore struct {
	mu      sync.Mutex
	last    Frame
	seq     uint64
	updated chan struct{}
}

func newFrameStore() *frameStore {
	return &frameStore{updated: make(chan struct{})}
}

// Update stores the latest frame and advances the sequence counter.
func (s *frameStore) Update(f Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = f
	s.seq++
	close(s.updated)
	s.updated = make(chan struct{})
}

// Snapshot returns the most recent frame, its sequence number and a channel
// closed on the next update.
func (s *frameStore) Snapshot() (Frame, uint64, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.seq, s.updated
}

// WaitNewer blocks until a frame with a sequence number above after arrives.
func (s *frameStore) WaitNewer(ctx context.Context, after uint64) (Frame, error) {
	for {
		f, seq, ch := s.Snapshot()
		if seq > after {
			return f, nil
		}
		select {
		case <-ctx.Done():
			return Frame{}, ctx.Err()
		case <-ch:
		}
	}
}

// UDPDetector implements Detector on top of frames pushed by an external
// vision process over UDP.
type UDPDetector struct {
	store   *frameStore
	conn    *net.UDPConn
	timeout time.Duration
	logger  *slog.Logger
}

// NewUDPDetector starts listening for detection frames on cfg.UDPAddr.
func NewUDPDetector(cfg DetectorConfig, logger *slog.Logger) (*UDPDetector, error) {
	if cfg.UDPAddr == "" {
		return nil, fmt.Errorf("detector.udp_addr must be set")
	}
	addr, err := net.ResolveUDPAddr("udp", cfg.UDPAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve detector addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen detector: %w", err)
	}

	d := &UDPDetector{
		store:   newFrameStore(),
		conn:    conn,
		timeout: seconds(cfg.FrameTimeoutSeconds),
		logger:  orDiscard(logger),
	}

	bufSize := cfg.ReadBuffer
	if bufSize <= 0 {
		bufSize = 2048
	}
	go d.listen(bufSize)
	return d, nil
}

// Addr returns the bound listen address.
func (d *UDPDetector) Addr() net.Addr {
	return d.conn.LocalAddr()
}

func (d *UDPDetector) listen(bufSize int) {
	buf := make([]byte, bufSize)
	for {
		n, _, err := d.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		f, err := parseFrame(buf[:n])
		if err != nil {
			d.logger.Debug("dropping detection packet", "err", err)
			continue
		}
		d.store.Update(f)
	}
}

// Locate waits for a frame newer than the one current at call time and
// returns the regions for a and b from that single frame.
func (d *UDPDetector) Locate(ctx context.Context, a, b Color) (Region, Region, error) {
	_, seq, _ := d.store.Snapshot()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	f, err := d.store.WaitNewer(ctx, seq)
	if err != nil {
		return Region{}, Region{}, &PerceptionError{Err: fmt.Errorf("waiting for frame: %w", err)}
	}
	return regionsFor(f, a, b)
}

// Close stops the listener.
func (d *UDPDetector) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

func regionsFor(f Frame, a, b Color) (Region, Region, error) {
	ra, okA := f.Detections[a]
	rb, okB := f.Detections[b]
	if okA && okB {
		return ra, rb, nil
	}
	var missing []Color
	if !okA {
		missing = append(missing, a)
	}
	if !okB {
		missing = append(missing, b)
	}
	return Region{}, Region{}, &PerceptionError{Missing: missing}
}

// parseFrame parses "t,color,detected,x,y,w,h[,color,detected,x,y,w,h...]".
func parseFrame(b []byte) (Frame, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return Frame{}, errors.New("empty payload")
	}

	parts := strings.Split(s, ",")
	if len(parts) < 7 || (len(parts)-1)%6 != 0 {
		return Frame{}, fmt.Errorf("expected 1+6n fields, got %d", len(parts))
	}

	t, err := parseF64(parts[0])
	if err != nil {
		return Frame{}, err
	}
	f := Frame{T: t, Detections: make(map[Color]Region)}

	for i := 1; i < len(parts); i += 6 {
		color, err := ParseColor(parts[i])
		if err != nil {
			return Frame{}, err
		}
		detected, err := parseBoolLoose(parts[i+1])
		if err != nil {
			return Frame{}, err
		}
		var vals [4]float64
		for j := range vals {
			vals[j], err = parseF64(parts[i+2+j])
			if err != nil {
				return Frame{}, err
			}
		}
		if detected {
			f.Detections[color] = Region{X: vals[0], Y: vals[1], W: vals[2], H: vals[3]}
		}
	}
	return f, nil
}

// parseF64 parses a float from a CSV field.
func parseF64(field string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
	if err != nil {
		return 0, fmt.Errorf("field %q: %w", field, err)
	}
	return v, nil
}

// parseBoolLoose accepts strconv booleans, yes/no, and numbers (non-zero is
// true).
func parseBoolLoose(field string) (bool, error) {
	v := strings.TrimSpace(field)
	switch strings.ToLower(v) {
	case "yes", "y", "on":
		return true, nil
	case "no", "n", "off":
		return false, nil
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return false, fmt.Errorf("field %q is not a boolean", field)
	}
	return f != 0, nil
}
