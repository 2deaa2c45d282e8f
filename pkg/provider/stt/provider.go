// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (a local whisper.cpp build, a
// whisper-server instance, or a hosted API) and exposes a uniform streaming
// interface. The central abstraction is SessionHandle: once opened, a session
// accepts raw PCM audio frames and emits Transcript updates on a single
// channel. Each update carries the full utterance recognised so far, so the
// consumer can always display the latest value without assembling fragments;
// the final update of a session has IsFinal set.
//
// Implementations must be safe for concurrent use. One session is opened per
// sentence the learner shadows and closed when the sentence advances.
package stt

import (
	"context"
	"errors"

	"github.com/voxloop/voxloop/pkg/types"
)

// ErrUnavailable indicates the transcription backend cannot be reached or has
// no loaded model. A practice session keeps running without live transcripts
// when it sees this error; detection strategies that need transcription
// timing degrade to their configured fallback.
var ErrUnavailable = errors.New("stt: transcription backend unavailable")

// StreamConfig describes the audio format and recognition hints for a new
// transcription session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz. The capture layer records at
	// 16000 Hz, which is also what whisper models are trained on.
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// engines). Implementations may downmix stereo internally.
	Channels int

	// Language is the recognition language code (e.g. "en", "fr"). An empty
	// string lets the engine auto-detect, if supported.
	Language string
}

// SessionHandle represents an open transcription session for one sentence.
//
// Callers must call Close when the session is no longer needed. Failing to do
// so may leak goroutines inside the provider implementation. All methods must
// be safe for concurrent use: SendAudio is called from the capture path while
// Updates is drained by the session controller.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw 16-bit little-endian signed PCM audio
	// for transcription. The chunk must match the SampleRate and Channels
	// agreed in StreamConfig. Calling SendAudio after Close returns an error.
	SendAudio(chunk []byte) error

	// Updates returns a read-only channel of Transcript values. Every value
	// carries the full utterance recognised so far; later values supersede
	// earlier ones. The channel is closed when the session ends, after the
	// final update (IsFinal true) when any speech was recognised.
	Updates() <-chan types.Transcript

	// Close terminates the session, flushes any pending audio through the
	// engine, and releases all associated resources. After Close returns the
	// Updates channel is closed. Calling Close more than once is safe and
	// returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend. Implementations must be
// safe for concurrent use; sessions for consecutive sentences may overlap
// briefly while one drains and the next starts.
type Provider interface {
	// StartStream opens a new transcription session with the given audio
	// format. The returned SessionHandle is ready to accept audio
	// immediately. Returns an error if the session cannot be established,
	// wrapping ErrUnavailable when the backend is unreachable.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
