// Package capture defines the Device interface for microphone input backends.
//
// A capture device delivers raw PCM frames through a caller-supplied callback
// running on the device's delivery goroutine. The callback is the audio hot
// path: it must not block and must do only O(frame size) work — loudness
// measurement and handing the frame to the transcriber. All control-flow
// bookkeeping belongs on the event-delivery path, not in the callback.
//
// Implementations must make Stop safe to call redundantly and guarantee that
// no frame is delivered after Stop returns.
package capture

import (
	"errors"

	"github.com/voxloop/voxloop/pkg/types"
)

// ErrDeviceUnavailable is returned by Start when no usable input device
// exists or the microphone cannot be opened. The session controller treats
// this as a hard precondition failure.
var ErrDeviceUnavailable = errors.New("capture: input device unavailable")

// FrameFunc receives one captured audio frame. The frame's Data slice is
// only valid for the duration of the call; implementations may reuse the
// underlying buffer, so callers that need to retain audio must copy it.
type FrameFunc func(frame types.AudioFrame)

// Device is the abstraction over a microphone input stream.
//
// A Device is reset to a known-clean state by Stop and may be restarted with
// Start any number of times. Methods are safe for concurrent use.
type Device interface {
	// Start opens the input stream and begins delivering frames to onFrame.
	// Returns ErrDeviceUnavailable if the microphone cannot be opened, or an
	// error if the device is already running.
	Start(onFrame FrameFunc) error

	// Stop closes the input stream. Idempotent; after Stop returns, onFrame
	// is not invoked again until the next Start.
	Stop() error

	// Recording reports whether the device is currently delivering frames.
	Recording() bool
}
