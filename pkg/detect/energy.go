package detect

import (
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/types"
)

// Defaults for the energy strategy. Frame duration assumes the capture
// layer's 1024-sample buffers at 16 kHz.
const (
	defaultSilenceWindow     = 1500 * time.Millisecond
	defaultFrameDuration     = 64 * time.Millisecond
	defaultThresholdOffsetDB = 15.0
	defaultMinThresholdDB    = -50.0
	defaultMaxThresholdDB    = -30.0
	defaultInitialBaselineDB = -60.0

	// calibrationFrames is how many leading silent frames may lower the
	// noise-floor baseline before calibration locks.
	calibrationFrames = 10

	// voiceHysteresisFrames keeps VoiceActive true across short gaps.
	voiceHysteresisFrames = 5

	eventBuffer = 32
)

// EnergyConfig tunes the energy strategy. Zero values select defaults.
type EnergyConfig struct {
	// SilenceWindow is the continuous-silence duration that ends an
	// utterance. Default 1.5 s.
	SilenceWindow time.Duration

	// FrameDuration is the expected duration of one capture frame, used to
	// convert SilenceWindow into a frame count. Default 64 ms.
	FrameDuration time.Duration

	// ThresholdOffsetDB is added to the calibrated noise floor to form the
	// voice threshold. Default 15 dB.
	ThresholdOffsetDB float64

	// MinThresholdDB and MaxThresholdDB clamp the adaptive threshold so a
	// pathological calibration cannot drift it to unusable extremes.
	// Defaults -50 dB and -30 dB.
	MinThresholdDB float64
	MaxThresholdDB float64
}

func (c *EnergyConfig) applyDefaults() {
	if c.SilenceWindow <= 0 {
		c.SilenceWindow = defaultSilenceWindow
	}
	if c.FrameDuration <= 0 {
		c.FrameDuration = defaultFrameDuration
	}
	if c.ThresholdOffsetDB == 0 {
		c.ThresholdOffsetDB = defaultThresholdOffsetDB
	}
	if c.MinThresholdDB == 0 {
		c.MinThresholdDB = defaultMinThresholdDB
	}
	if c.MaxThresholdDB == 0 {
		c.MaxThresholdDB = defaultMaxThresholdDB
	}
}

// Compile-time assertion that Energy satisfies Detector.
var _ Detector = (*Energy)(nil)

// Energy detects end of speech from raw frame loudness. During the first few
// frames of a sentence — before any voice has been heard — it calibrates a
// noise-floor baseline from the quietest observed frame and derives an
// adaptive voice threshold a fixed offset above it. A frame louder than the
// threshold counts as voice and resets the silence run; once the run reaches
// the configured window while the detector is enabled, end of speech fires
// and all counters reset.
type Energy struct {
	cfg                  EnergyConfig
	requiredSilentFrames int

	mu                      sync.Mutex
	enabled                 bool
	voiceSeen               bool
	consecutiveSilentFrames int
	baselineDB              float64
	thresholdDB             float64

	events chan Event
}

// NewEnergy creates an energy detector with the given tuning. The detector
// starts disabled; call SetEnabled(true) once the reference audio finishes.
func NewEnergy(cfg EnergyConfig) *Energy {
	cfg.applyDefaults()
	n := int(cfg.SilenceWindow / cfg.FrameDuration)
	if n < 1 {
		n = 1
	}
	e := &Energy{
		cfg:                  cfg,
		requiredSilentFrames: n,
		events:               make(chan Event, eventBuffer),
	}
	e.resetLocked()
	return e
}

// ProcessLevel consumes one frame's loudness in dBFS. Safe to call from the
// capture goroutine: the lock is held only for counter updates and the event
// send never blocks.
func (e *Energy) ProcessLevel(db float64) {
	var ev Event
	fire := false

	e.mu.Lock()
	// Calibrate the noise floor from leading silence, before voice has been
	// detected. Readings at or below the silence floor are sensor glitches
	// and empty frames, not ambience.
	if !e.voiceSeen && e.consecutiveSilentFrames < calibrationFrames && db > audio.SilenceFloorDB {
		if db < e.baselineDB {
			e.baselineDB = db
			e.thresholdDB = clampDB(e.baselineDB+e.cfg.ThresholdOffsetDB, e.cfg.MinThresholdDB, e.cfg.MaxThresholdDB)
		}
	}

	if db > e.thresholdDB {
		e.voiceSeen = true
		e.consecutiveSilentFrames = 0
		ev, fire = EventVoiceActive, true
	} else if e.enabled {
		e.consecutiveSilentFrames++
		if e.consecutiveSilentFrames >= e.requiredSilentFrames {
			e.resetLocked()
			ev, fire = EventEndOfSpeech, true
		}
	}
	e.mu.Unlock()

	if fire {
		select {
		case e.events <- ev:
		default:
			// Buffer full. Voice-active events are advisory; a pending
			// end-of-speech already queued will advance the session anyway.
		}
	}
}

// ObserveTranscript is a no-op: the energy strategy ignores transcription.
func (e *Energy) ObserveTranscript(types.Transcript) {}

// SetEnabled gates silence accumulation. Disabling freezes the counter so a
// re-enable resumes the run where it left off, provided no voice arrived in
// between.
func (e *Energy) SetEnabled(enabled bool) {
	e.mu.Lock()
	e.enabled = enabled
	e.mu.Unlock()
}

// Reset clears calibration, counters, and voice tracking. The enabled flag
// is left as-is; the controller sequences enable/disable separately.
func (e *Energy) Reset() {
	e.mu.Lock()
	e.resetLocked()
	e.mu.Unlock()
}

func (e *Energy) resetLocked() {
	e.voiceSeen = false
	e.consecutiveSilentFrames = 0
	e.baselineDB = defaultInitialBaselineDB
	e.thresholdDB = clampDB(defaultInitialBaselineDB+e.cfg.ThresholdOffsetDB, e.cfg.MinThresholdDB, e.cfg.MaxThresholdDB)
}

// VoiceActive reports whether voice has been seen this sentence and the
// current silence run is shorter than the hysteresis bound.
func (e *Energy) VoiceActive() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.voiceSeen && e.consecutiveSilentFrames < voiceHysteresisFrames
}

// Events returns the detection signal channel.
func (e *Energy) Events() <-chan Event {
	return e.events
}

// Close is a no-op; the energy strategy has no background resources.
func (e *Energy) Close() error { return nil }

// RequiredSilentFrames exposes the derived frame count for logging and tests.
func (e *Energy) RequiredSilentFrames() int { return e.requiredSilentFrames }

func clampDB(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
