package capture

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/types"
)

// newHardwareDevice opens the default input device or skips the test when the
// host has no audio subsystem (headless CI).
func newHardwareDevice(t *testing.T) *PortAudioDevice {
	t.Helper()
	dev, err := NewPortAudio(WithFramesPerBuffer(256))
	if errors.Is(err, ErrDeviceUnavailable) {
		t.Skipf("no audio input device: %v", err)
	}
	if err != nil {
		t.Fatalf("NewPortAudio: %v", err)
	}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func TestPortAudio_StopWaitsForInFlightFrame(t *testing.T) {
	dev := newHardwareDevice(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	if err := dev.Start(func(types.AudioFrame) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame delivered within 2s")
	}

	stopDone := make(chan error, 1)
	go func() { stopDone <- dev.Stop() }()

	select {
	case <-stopDone:
		t.Fatal("Stop returned while a frame delivery was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(release)
	if err := <-stopDone; err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestPortAudio_NoFramesAfterStop(t *testing.T) {
	dev := newHardwareDevice(t)

	var stopped atomic.Bool
	var afterStop atomic.Bool
	if err := dev.Start(func(types.AudioFrame) {
		if stopped.Load() {
			afterStop.Store(true)
		}
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if err := dev.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	stopped.Store(true)

	time.Sleep(100 * time.Millisecond)
	if afterStop.Load() {
		t.Fatal("frame delivered after Stop returned")
	}
	if dev.Recording() {
		t.Error("Recording should report false after Stop")
	}
}
