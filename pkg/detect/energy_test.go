package detect

import (
	"testing"
	"time"
)

// testEnergy returns a detector that needs exactly 5 silent frames to fire.
func testEnergy() *Energy {
	return NewEnergy(EnergyConfig{
		SilenceWindow: 50 * time.Millisecond,
		FrameDuration: 10 * time.Millisecond,
	})
}

// drainEvents empties the events channel and returns everything found.
func drainEvents(d Detector) []Event {
	var events []Event
	for {
		select {
		case e := <-d.Events():
			events = append(events, e)
		default:
			return events
		}
	}
}

func countEvents(events []Event, kind Event) int {
	n := 0
	for _, e := range events {
		if e == kind {
			n++
		}
	}
	return n
}

const (
	loudDB  = -10.0
	quietDB = -55.0
)

func TestEnergy_EndOfSpeechFiresOnce(t *testing.T) {
	d := testEnergy()
	d.SetEnabled(true)

	d.ProcessLevel(loudDB)
	for i := 0; i < 5; i++ {
		d.ProcessLevel(quietDB)
	}

	events := drainEvents(d)
	if got := countEvents(events, EventEndOfSpeech); got != 1 {
		t.Fatalf("expected exactly 1 end-of-speech, got %d", got)
	}

	// Counters reset immediately after firing: the very next silent frames
	// must accumulate a full window again.
	for i := 0; i < 4; i++ {
		d.ProcessLevel(quietDB)
	}
	if got := countEvents(drainEvents(d), EventEndOfSpeech); got != 0 {
		t.Errorf("fired again after only 4 silent frames, counters did not reset")
	}
	d.ProcessLevel(quietDB)
	if got := countEvents(drainEvents(d), EventEndOfSpeech); got != 1 {
		t.Errorf("expected second end-of-speech after a fresh full window")
	}
}

func TestEnergy_VoiceResetsSilenceRun(t *testing.T) {
	d := testEnergy()
	d.SetEnabled(true)

	d.ProcessLevel(loudDB)
	for i := 0; i < 4; i++ {
		d.ProcessLevel(quietDB)
	}
	// A voiced frame at any point resets the run and never fires on that
	// frame, regardless of the prior count.
	d.ProcessLevel(loudDB)
	if got := countEvents(drainEvents(d), EventEndOfSpeech); got != 0 {
		t.Fatalf("end-of-speech fired on a voiced frame")
	}

	for i := 0; i < 4; i++ {
		d.ProcessLevel(quietDB)
	}
	if got := countEvents(drainEvents(d), EventEndOfSpeech); got != 0 {
		t.Errorf("fired after %d silent frames; voiced frame did not reset the run", 4)
	}
}

func TestEnergy_VoicedFrameEmitsVoiceActive(t *testing.T) {
	d := testEnergy()
	d.ProcessLevel(loudDB)
	if got := countEvents(drainEvents(d), EventVoiceActive); got != 1 {
		t.Errorf("expected 1 voice-active event, got %d", got)
	}
	if !d.VoiceActive() {
		t.Error("VoiceActive should be true right after a voiced frame")
	}
}

func TestEnergy_DisableFreezesCounter(t *testing.T) {
	d := testEnergy()
	d.SetEnabled(true)

	d.ProcessLevel(loudDB)
	for i := 0; i < 3; i++ {
		d.ProcessLevel(quietDB)
	}

	// While disabled, silent frames do not advance the counter.
	d.SetEnabled(false)
	for i := 0; i < 10; i++ {
		d.ProcessLevel(quietDB)
	}
	if got := countEvents(drainEvents(d), EventEndOfSpeech); got != 0 {
		t.Fatalf("end-of-speech fired while disabled")
	}

	// Re-enabling resumes from where the run left off: 2 more frames
	// complete the 5-frame window.
	d.SetEnabled(true)
	d.ProcessLevel(quietDB)
	if got := countEvents(drainEvents(d), EventEndOfSpeech); got != 0 {
		t.Fatalf("fired one frame early after re-enable")
	}
	d.ProcessLevel(quietDB)
	if got := countEvents(drainEvents(d), EventEndOfSpeech); got != 1 {
		t.Errorf("expected end-of-speech one window after re-enable")
	}
}

func TestEnergy_SilenceBeforeVoiceStillTimesOut(t *testing.T) {
	// A learner who never speaks should still advance via silence alone.
	d := testEnergy()
	d.SetEnabled(true)
	for i := 0; i < 5; i++ {
		d.ProcessLevel(quietDB)
	}
	if got := countEvents(drainEvents(d), EventEndOfSpeech); got != 1 {
		t.Errorf("expected end-of-speech with zero voiced frames, got %d events", got)
	}
}

func TestEnergy_AdaptiveThreshold(t *testing.T) {
	t.Run("calibrates down from quiet ambience", func(t *testing.T) {
		d := testEnergy()
		// Very quiet room: floor −70 dB → threshold clamps to −50 dB
		// (floor+15 = −55 is below the minimum bound).
		for i := 0; i < 3; i++ {
			d.ProcessLevel(-70)
		}
		drainEvents(d)

		// −48 dB would be silence against the default −45 dB threshold but
		// is voice against the calibrated one.
		d.ProcessLevel(-48)
		if got := countEvents(drainEvents(d), EventVoiceActive); got != 1 {
			t.Errorf("frame above calibrated threshold not classified as voice")
		}
	})

	t.Run("rejects glitch readings", func(t *testing.T) {
		d := testEnergy()
		// Readings at or below the silence floor must not drag the
		// baseline down.
		d.ProcessLevel(-200)
		d.ProcessLevel(-80)
		drainEvents(d)

		// Threshold still at its initial value (−60+15 = −45 dB): −48 dB is
		// below it and counts as silence, not voice.
		d.ProcessLevel(-48)
		if got := countEvents(drainEvents(d), EventVoiceActive); got != 0 {
			t.Errorf("glitch readings lowered the threshold")
		}
	})

	t.Run("threshold never exceeds upper bound", func(t *testing.T) {
		d := NewEnergy(EnergyConfig{
			SilenceWindow:     50 * time.Millisecond,
			FrameDuration:     10 * time.Millisecond,
			ThresholdOffsetDB: 40, // would push the threshold to −20 dB
		})
		// No calibration frames: initial threshold = clamp(−60+40) = −30 dB.
		d.ProcessLevel(-29)
		if got := countEvents(drainEvents(d), EventVoiceActive); got != 1 {
			t.Errorf("frame above the clamped maximum threshold not voice")
		}
	})
}

func TestEnergy_ResetClearsSessionState(t *testing.T) {
	d := testEnergy()
	d.SetEnabled(true)

	d.ProcessLevel(loudDB)
	for i := 0; i < 4; i++ {
		d.ProcessLevel(quietDB)
	}
	d.Reset()
	drainEvents(d)

	if d.VoiceActive() {
		t.Error("VoiceActive should be false after Reset")
	}
	// The partial silence run must not leak into the next sentence.
	d.ProcessLevel(quietDB)
	if got := countEvents(drainEvents(d), EventEndOfSpeech); got != 0 {
		t.Errorf("silent-frame count leaked across Reset")
	}
}

func TestEnergy_VoiceActiveHysteresis(t *testing.T) {
	// 10-frame window so the hysteresis bound (5 frames) is reachable
	// before end of speech fires.
	d := NewEnergy(EnergyConfig{
		SilenceWindow: 100 * time.Millisecond,
		FrameDuration: 10 * time.Millisecond,
	})

	// Detector disabled (reference still playing): the counter is frozen,
	// so VoiceActive stays true through a long quiet stretch.
	d.ProcessLevel(loudDB)
	for i := 0; i < 20; i++ {
		d.ProcessLevel(quietDB)
	}
	if !d.VoiceActive() {
		t.Error("VoiceActive flipped while the detector was disabled")
	}

	d.SetEnabled(true)
	for i := 0; i < 4; i++ {
		d.ProcessLevel(quietDB)
	}
	if !d.VoiceActive() {
		t.Error("VoiceActive dropped before the hysteresis bound")
	}
	d.ProcessLevel(quietDB)
	if d.VoiceActive() {
		t.Error("VoiceActive should drop once the silence run reaches the hysteresis bound")
	}
}

func TestEnergy_RequiredSilentFramesDerivation(t *testing.T) {
	tests := []struct {
		name   string
		window time.Duration
		frame  time.Duration
		want   int
	}{
		{"default-ish", 1500 * time.Millisecond, 64 * time.Millisecond, 23},
		{"bluetooth 21ms frames", 1500 * time.Millisecond, 21 * time.Millisecond, 71},
		{"window shorter than frame", 5 * time.Millisecond, 10 * time.Millisecond, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewEnergy(EnergyConfig{SilenceWindow: tt.window, FrameDuration: tt.frame})
			if got := d.RequiredSilentFrames(); got != tt.want {
				t.Errorf("expected %d frames, got %d", tt.want, got)
			}
		})
	}
}
