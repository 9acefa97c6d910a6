package rover_nav

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrame(t *testing.T) {
	f, err := parseFrame([]byte("12.5,blue,1,10,20,4,4,GREEN,yes,100,50,8,8\n"))
	require.NoError(t, err)

	assert.Equal(t, 12.5, f.T)
	assert.Equal(t, map[Color]Region{
		ColorBlue:  {X: 10, Y: 20, W: 4, H: 4},
		ColorGreen: {X: 100, Y: 50, W: 8, H: 8},
	}, f.Detections)
}

func TestParseFrameSkipsUndetected(t *testing.T) {
	f, err := parseFrame([]byte("0,blue,0,0,0,0,0,green,1,1,1,1,1"))
	require.NoError(t, err)
	assert.NotContains(t, f.Detections, ColorBlue)
	assert.Contains(t, f.Detections, ColorGreen)
}

func TestParseFrameErrors(t *testing.T) {
	for _, payload := range []string{
		"",
		"1.0",
		"1.0,blue,1,2,3",
		"x,blue,1,0,0,1,1",
		"1,purple,1,0,0,1,1",
		"1,blue,maybe,0,0,1,1",
		"1,blue,1,0,zero,1,1",
	} {
		_, err := parseFrame([]byte(payload))
		assert.Error(t, err, "payload=%q", payload)
	}
}

func TestParseBoolLoose(t *testing.T) {
	for in, want := range map[string]bool{"1": true, "TRUE": true, " y ": true, "0": false, "no": false, "0.0": false, "2.5": true} {
		got, err := parseBoolLoose(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "maybe", "1e"} {
		_, err := parseBoolLoose(in)
		assert.Error(t, err, in)
	}
}

func TestFrameStoreWaitNewer(t *testing.T) {
	s := newFrameStore()
	_, seq, _ := s.Snapshot()
	assert.Equal(t, uint64(0), seq)

	done := make(chan Frame, 1)
	go func() {
		f, err := s.WaitNewer(context.Background(), seq)
		if err == nil {
			done <- f
		}
	}()

	s.Update(Frame{T: 3})
	select {
	case f := <-done:
		assert.Equal(t, 3.0, f.T)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitNewer did not wake up")
	}
}

func TestFrameStoreWaitNewerHonorsContext(t *testing.T) {
	s := newFrameStore()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.WaitNewer(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// pushFrames sends payload to addr until stop is closed.
func pushFrames(t *testing.T, addr net.Addr, payload string, stop <-chan struct{}) {
	t.Helper()
	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	go func() {
		defer conn.Close()
		ticker := time.NewTicker(5 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = conn.Write([]byte(payload))
			}
		}
	}()
}

func TestUDPDetectorLocate(t *testing.T) {
	det, err := NewUDPDetector(DetectorConfig{UDPAddr: "127.0.0.1:0", FrameTimeoutSeconds: 2}, nil)
	require.NoError(t, err)
	defer det.Close()

	stop := make(chan struct{})
	defer close(stop)
	pushFrames(t, det.Addr(), "1,blue,1,10,10,2,2,green,1,40,10,2,2", stop)

	snap, err := CaptureSnapshot(context.Background(), det, testColors)
	require.NoError(t, err)
	assert.Equal(t, Position{X: 11, Y: 11}, snap.Vehicle)
	assert.Equal(t, Position{X: 41, Y: 11}, snap.Target)
}

func TestUDPDetectorMissingColor(t *testing.T) {
	det, err := NewUDPDetector(DetectorConfig{UDPAddr: "127.0.0.1:0", FrameTimeoutSeconds: 2}, nil)
	require.NoError(t, err)
	defer det.Close()

	stop := make(chan struct{})
	defer close(stop)
	pushFrames(t, det.Addr(), "1,blue,1,10,10,2,2,green,0,0,0,0,0", stop)

	_, _, err = det.Locate(context.Background(), ColorBlue, ColorGreen)
	var pe *PerceptionError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, []Color{ColorGreen}, pe.Missing)
}

func TestUDPDetectorFrameTimeout(t *testing.T) {
	det, err := NewUDPDetector(DetectorConfig{UDPAddr: "127.0.0.1:0", FrameTimeoutSeconds: 0.05}, nil)
	require.NoError(t, err)
	defer det.Close()

	_, _, err = det.Locate(context.Background(), ColorBlue, ColorGreen)
	assert.ErrorIs(t, err, ErrPerception)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewUDPDetectorRequiresAddr(t *testing.T) {
	_, err := NewUDPDetector(DetectorConfig{}, nil)
	assert.Error(t, err)
}
