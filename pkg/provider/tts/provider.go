// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider renders one sentence of reference text as encoded audio.
// Sentences in a practice lesson usually ship with pre-recorded audio; TTS is
// the fallback for text-only sentences and for lessons authored without
// recordings. Synthesis happens ahead of playback (the result is cached), so
// the interface is a simple batch call rather than a stream.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"

	"github.com/voxloop/voxloop/pkg/types"
)

// ErrUnavailable indicates the synthesis backend cannot be reached. Sentences
// without pre-recorded audio are skipped for playback when synthesis fails
// this way; the session itself keeps running.
var ErrUnavailable = errors.New("tts: synthesis backend unavailable")

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as encoded audio (MP3 unless the
	// implementation documents otherwise). voice selects the speaking voice;
	// zero-value fields fall back to provider defaults. Empty text is an
	// error.
	Synthesize(ctx context.Context, text string, voice types.VoiceProfile) ([]byte, error)

	// Voices returns the voice profiles this provider can synthesize with.
	// The list is a curated subset for UI pickers, not an exhaustive
	// catalogue.
	Voices(ctx context.Context) ([]types.VoiceProfile, error)
}
