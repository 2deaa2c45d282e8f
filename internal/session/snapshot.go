package session

import (
	"maps"

	"github.com/voxloop/voxloop/internal/lesson"
	"github.com/voxloop/voxloop/internal/score"
)

// Snapshot is an immutable view of the controller for UIs and tests.
// The contained maps are fresh copies; callers may hold a Snapshot for as
// long as they like without racing the event loop.
type Snapshot struct {
	// Phase is the current position in the shadowing loop.
	Phase Phase

	// CurrentIndex is the zero-based index of the current sentence. It is
	// retained across pauses and after session completion.
	CurrentIndex int

	// SentenceCount is the number of sentences in the lesson.
	SentenceCount int

	// Active reports whether a session is running. Paused and completed
	// sessions are not active.
	Active bool

	// IsPlaying reports whether reference audio is playing right now.
	IsPlaying bool

	// IsRecording reports whether the microphone is capturing.
	IsRecording bool

	// Interrupted reports that the last pause was forced by a system
	// audio interruption. Cleared when the learner plays again.
	Interrupted bool

	// VoiceActive reports whether the detector currently hears the
	// learner speaking.
	VoiceActive bool

	// LiveTranscript is the in-progress transcript of the current
	// sentence, updated as recognition results stream in.
	LiveTranscript string

	// Transcripts holds the committed transcript of every completed
	// sentence, keyed by sentence index.
	Transcripts map[int]string

	// Scores holds pronunciation comparison results for completed
	// sentences that produced a transcript.
	Scores map[int]score.Result

	// Progress is the persistent completion state for the lesson.
	Progress lesson.Progress

	// CanGoNext and CanGoPrevious report whether manual navigation in
	// that direction is possible. Navigation clamps at the lesson edges.
	CanGoNext     bool
	CanGoPrevious bool

	// Completed reports that every sentence in the lesson has been
	// practiced at least once.
	Completed bool

	// Err is the most recent user-visible failure, or nil. Cleared when
	// the learner plays again.
	Err error
}

// Snapshot returns the controller's current state.
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// publish rebuilds the snapshot from loop-owned state. Called by the run
// goroutine after every handled event.
func (c *Controller) publish() {
	n := len(c.cfg.Lesson.Sentences)
	s := Snapshot{
		Phase:          c.phase,
		CurrentIndex:   c.currentIndex,
		SentenceCount:  n,
		Active:         c.active,
		IsPlaying:      c.active && c.phase == PhaseSpeaking,
		IsRecording:    c.active,
		Interrupted:    c.interrupted,
		VoiceActive:    c.cfg.Detector != nil && c.cfg.Detector.VoiceActive(),
		LiveTranscript: c.liveTranscript,
		Transcripts:    maps.Clone(c.transcripts),
		Scores:         maps.Clone(c.scores),
		Progress:       c.progress,
		CanGoNext:      c.currentIndex < n-1,
		CanGoPrevious:  c.currentIndex > 0,
		Completed:      c.progress.IsCompleted(n),
		Err:            c.lastErr,
	}
	c.snapMu.Lock()
	c.snap = s
	c.snapMu.Unlock()
}
