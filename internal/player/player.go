// Package player plays reference audio clips for shadowing practice.
//
// The Player contract is event-driven: Play returns once playback has been
// handed to the output device, and the session controller learns about
// lifecycle changes on the Events channel. Every accepted Play emits
// EventStarted followed by exactly one terminal event — EventFinished when
// the clip ran to its end, EventFailed when decoding or the device broke, or
// EventStopped when Stop cut it short. Pause holds the clip at its current
// position without a terminal event.
package player

import (
	"context"
	"errors"

	"github.com/voxloop/voxloop/internal/lesson"
)

// ErrNoAudio indicates a sentence has neither a recorded clip nor text to
// synthesize from.
var ErrNoAudio = errors.New("player: sentence has no audio source")

// EventKind identifies a playback lifecycle change.
type EventKind int

const (
	// EventStarted is emitted when the first samples reach the device.
	EventStarted EventKind = iota
	// EventFinished is emitted when the clip played to its end.
	EventFinished
	// EventFailed is emitted when playback broke; Err carries the cause.
	EventFailed
	// EventStopped is emitted when Stop or Close interrupted the clip.
	EventStopped
)

// String returns the event name for logs and test failures.
func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventFinished:
		return "finished"
	case EventFailed:
		return "failed"
	case EventStopped:
		return "stopped"
	}
	return "unknown"
}

// Event is one playback lifecycle notification.
type Event struct {
	Kind EventKind
	// Position is the lesson position of the sentence being played.
	Position int
	// Err is set for EventFailed.
	Err error
}

// Player is the reference audio playback contract consumed by the session
// controller. Implementations must be safe for concurrent use.
type Player interface {
	// Play resolves the sentence's audio and starts playback. It returns an
	// error only when playback cannot begin at all (no audio source, device
	// unavailable); errors after that arrive as EventFailed. A Play while a
	// clip is active stops the active clip first.
	Play(ctx context.Context, s lesson.Sentence) error

	// Pause holds playback at the current position. No-op when nothing is
	// playing.
	Pause() error

	// Resume continues a paused clip. No-op when nothing is paused.
	Resume() error

	// Stop ends the active clip, emitting EventStopped. Idempotent: stopping
	// an idle player is a no-op.
	Stop() error

	// Events returns the buffered lifecycle channel. The consumer must drain
	// it promptly.
	Events() <-chan Event

	// Close stops playback and releases the output device.
	Close() error
}
