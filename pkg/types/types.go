// Package types defines the shared types used across all voxloop packages.
//
// These types form the lingua franca between the audio capture layer, the
// silence detector, the speech-to-text providers, and the session controller.
// They are intentionally minimal — each package defines its own domain types,
// but cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// AudioFrame represents a single frame of audio data flowing through the
// pipeline. Frames are the atomic unit of audio transport — captured from the
// microphone, measured by the level analyzer, and fed to the transcriber.
type AudioFrame struct {
	// PCM audio data, 16-bit signed little-endian.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT input, 48000 for Bluetooth input).
	SampleRate int

	// Channels: 1 for mono mic capture.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame, or zero when the
// format fields are not populated.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (interim) and final transcripts use this type. The Text field
// always carries the provider's best-effort text for the whole utterance so
// far, not an incremental delta.
type Transcript struct {
	// Text is the transcribed speech content for the utterance so far.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// ReceivedAt is the wall-clock arrival time of this update. The
	// transcription-timeout silence strategy keys off this value, so
	// providers must stamp it when the update is emitted.
	ReceivedAt time.Time
}

// VoiceProfile describes a TTS voice configuration used when a sentence has
// no recorded reference clip and its audio must be synthesized.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier
	// (e.g., "en-US-AriaNeural" for Edge TTS).
	ID string

	// Language is the BCP-47 language tag of the voice.
	Language string

	// SpeedFactor adjusts speaking rate (0.5–2.0, 1.0 = default).
	SpeedFactor float64
}
