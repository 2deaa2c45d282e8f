// Package detect implements end-of-speech detection for shadowing practice.
//
// A detector consumes a live view of the learner's audio — per-frame loudness
// levels, transcription arrivals, or both — and emits discrete events when
// voice activity starts and when the learner has finished talking. The session
// controller only consumes the events; which strategy produced them is a
// configuration choice:
//
//   - [Energy] watches raw frame loudness against an adaptive threshold
//     calibrated from ambient noise at session start. Low latency, works
//     without a transcriber, but sensitive to environmental noise and
//     Bluetooth codec artifacts.
//   - [Timeout] watches the time since the last non-empty transcription
//     update. Robust to background noise because it reacts only to recognised
//     speech, but depends on transcriber latency and availability.
//
// Neither strategy is strictly superior, so both live behind the same
// interface and the choice ships as a config option.
package detect

import (
	"fmt"

	"github.com/voxloop/voxloop/pkg/types"
)

// Event is a discrete detection signal delivered on the Events channel.
type Event int

const (
	// EventVoiceActive indicates the current frame (or transcription update)
	// contains learner speech. Emitted repeatedly while voice continues; used
	// for UI feedback only, never for control decisions, and may be dropped
	// under load.
	EventVoiceActive Event = iota

	// EventEndOfSpeech indicates the learner has finished the utterance.
	// Fires at most once per enable window.
	EventEndOfSpeech
)

// String returns the event name for logs and test failures.
func (e Event) String() string {
	switch e {
	case EventVoiceActive:
		return "voice-active"
	case EventEndOfSpeech:
		return "end-of-speech"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// Detector is the strategy-independent end-of-speech detector consumed by the
// session controller.
//
// ProcessLevel is called from the real-time capture path and must stay
// allocation-free and non-blocking; all other methods are called from the
// controller's event loop. Implementations must be safe for concurrent use
// across those two goroutines.
type Detector interface {
	// ProcessLevel consumes one frame's loudness in dBFS. Strategies that do
	// not use raw energy ignore it.
	ProcessLevel(db float64)

	// ObserveTranscript consumes a transcription update. Strategies that do
	// not use transcription timing ignore it. Empty-text updates carry no
	// evidence of speech and are discarded.
	ObserveTranscript(t types.Transcript)

	// SetEnabled gates end-of-speech accumulation. Disabled while the
	// reference audio is playing so that reference bleed into the mic is not
	// misread as learner silence or voice; enabled once playback finishes.
	// Disabling freezes counters rather than clearing them.
	SetEnabled(enabled bool)

	// Reset returns the detector to its initial state: calibration, counters,
	// and voice-seen tracking are cleared. Called at the top of every
	// sentence so state never leaks across iterations.
	Reset()

	// VoiceActive reports whether the learner is currently speaking, with a
	// small hysteresis so brief pauses do not flicker the indicator. UI
	// feedback only.
	VoiceActive() bool

	// Events returns the buffered channel of detection signals. The consumer
	// must drain it promptly; EventVoiceActive values may be dropped when the
	// buffer is full.
	Events() <-chan Event

	// Close releases any background resources (poll goroutines). After Close
	// the detector must not be reused.
	Close() error
}

// Strategy names accepted by New.
const (
	StrategyEnergy  = "energy"
	StrategyTimeout = "timeout"
)

// Config selects and tunes a detection strategy.
type Config struct {
	// Strategy is "energy" or "timeout".
	Strategy string

	// Energy holds tuning for the energy strategy; zero values select
	// defaults.
	Energy EnergyConfig

	// Timeout holds tuning for the timeout strategy; zero values select
	// defaults.
	Timeout TimeoutConfig
}

// New constructs the detector named by cfg.Strategy.
func New(cfg Config) (Detector, error) {
	switch cfg.Strategy {
	case StrategyEnergy, "":
		return NewEnergy(cfg.Energy), nil
	case StrategyTimeout:
		return NewTimeout(cfg.Timeout), nil
	}
	return nil, fmt.Errorf("detect: unknown strategy %q; valid values: energy, timeout", cfg.Strategy)
}
