// Package session orchestrates the shadowing loop for a single lesson:
// play a reference sentence, record the learner repeating it, detect when
// they finish, then advance to the next sentence.
//
// The Controller owns all mutable session state on a single goroutine.
// Playback, capture, detection and transcription all report back through
// one inbound event channel, so phase transitions are serialised and async
// completions that outlive the sentence they belong to are discarded.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/internal/lesson"
)

// Phase identifies where the controller is in the shadowing loop.
type Phase int

const (
	// PhaseIdle means no session is active. The current index is retained
	// so a later Play resumes where the learner left off.
	PhaseIdle Phase = iota

	// PhaseSpeaking means the reference audio for the current sentence is
	// playing. Recording and transcription already run so the learner may
	// shadow simultaneously, but the end-of-speech detector is disabled.
	PhaseSpeaking

	// PhaseAwaitingUser is the instant between reference playback finishing
	// and listening starting. The detector is re-enabled here.
	PhaseAwaitingUser

	// PhaseListening means the controller is waiting for the learner to
	// finish repeating the sentence.
	PhaseListening

	// PhaseTransitioning means the learner finished and the controller is
	// committing the transcript and moving to the next sentence.
	PhaseTransitioning
)

// String returns the phase name for logging.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseSpeaking:
		return "speaking"
	case PhaseAwaitingUser:
		return "awaiting_user"
	case PhaseListening:
		return "listening"
	case PhaseTransitioning:
		return "transitioning"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

var (
	// ErrPermissionDenied is returned by Play when the learner refused
	// microphone access. The refusal is remembered; Play is not retried.
	ErrPermissionDenied = errors.New("session: microphone permission denied")

	// ErrResourceUnavailable is returned when an audio device cannot be
	// acquired, for example because another application holds it.
	ErrResourceUnavailable = errors.New("session: audio resource unavailable")

	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("session: controller is closed")
)

// Authorizer requests access to a protected capability such as the
// microphone or on-device speech recognition. Request blocks until the
// user responded and reports whether access was granted. Implementations
// should cache the answer so repeated calls are cheap.
type Authorizer interface {
	Request(ctx context.Context) (granted bool, err error)
}

// GrantAll is an Authorizer that always grants. Useful on platforms
// without a permission prompt and in tests.
type GrantAll struct{}

// Request grants unconditionally.
func (GrantAll) Request(ctx context.Context) (bool, error) { return true, ctx.Err() }

// ProgressStore persists per-lesson progress across sessions.
type ProgressStore interface {
	// LoadProgress returns the stored progress for a lesson. A lesson
	// that was never played returns a zero Progress and no error.
	LoadProgress(ctx context.Context, lessonID uuid.UUID) (lesson.Progress, error)

	// SaveProgress stores the given progress, replacing any previous
	// record for the same lesson.
	SaveProgress(ctx context.Context, p lesson.Progress) error
}
