// Package mock provides a test double for the capture package interfaces.
//
// Use Device to verify start/stop sequencing and to push synthetic frames
// through the pipeline:
//
//	dev := &mock.Device{}
//	_ = dev.Start(onFrame)
//	dev.EmitFrame(frame) // delivered synchronously to onFrame
package mock

import (
	"sync"

	"github.com/voxloop/voxloop/pkg/audio/capture"
	"github.com/voxloop/voxloop/pkg/types"
)

// Compile-time assertion that Device satisfies capture.Device.
var _ capture.Device = (*Device)(nil)

// Device is a mock implementation of capture.Device. The zero value is ready
// to use.
type Device struct {
	mu sync.Mutex

	// StartErr, if non-nil, is returned by Start.
	StartErr error

	// StopErr, if non-nil, is returned by Stop.
	StopErr error

	// StartCalls counts Start invocations.
	StartCalls int

	// StopCalls counts Stop invocations, including redundant ones.
	StopCalls int

	onFrame capture.FrameFunc
	running bool
}

// Start records the call and retains onFrame for EmitFrame.
func (d *Device) Start(onFrame capture.FrameFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StartCalls++
	if d.StartErr != nil {
		return d.StartErr
	}
	d.onFrame = onFrame
	d.running = true
	return nil
}

// Stop records the call and drops the frame callback.
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.StopCalls++
	if d.StopErr != nil {
		return d.StopErr
	}
	d.running = false
	d.onFrame = nil
	return nil
}

// Recording reports whether Start has been called without a subsequent Stop.
func (d *Device) Recording() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// EmitFrame delivers frame synchronously to the callback passed to Start.
// Frames emitted while the device is stopped are silently dropped, matching
// the real device's no-frames-after-Stop guarantee.
func (d *Device) EmitFrame(frame types.AudioFrame) {
	d.mu.Lock()
	fn := d.onFrame
	running := d.running
	d.mu.Unlock()
	if running && fn != nil {
		fn(frame)
	}
}
