package detect

import (
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/types"
)

const (
	defaultSpeechTimeout = 2 * time.Second
	defaultPollInterval  = 100 * time.Millisecond
)

// TimeoutConfig tunes the timeout strategy. Zero values select defaults.
type TimeoutConfig struct {
	// SpeechTimeout is how long after the last recognised speech (or after
	// listening began, when nothing was recognised) end of speech fires.
	// Default 2 s.
	SpeechTimeout time.Duration

	// PollInterval is how often the deadline is checked. Default 100 ms.
	PollInterval time.Duration
}

func (c *TimeoutConfig) applyDefaults() {
	if c.SpeechTimeout <= 0 {
		c.SpeechTimeout = defaultSpeechTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
}

// Compile-time assertion that Timeout satisfies Detector.
var _ Detector = (*Timeout)(nil)

// Timeout detects end of speech from transcription timing rather than raw
// energy. While enabled, a background poll compares the current time against
// a reference point: the arrival of the last non-empty transcription update
// if the learner has spoken this sentence, otherwise the moment listening
// began. When the gap reaches SpeechTimeout, end of speech fires once and the
// detector disarms until the next SetEnabled(true).
//
// Because only recognised speech moves the reference point, environmental
// noise cannot delay or trigger the advance.
type Timeout struct {
	cfg TimeoutConfig

	// now is injectable for tests with a simulated clock.
	now func() time.Time

	mu               sync.Mutex
	enabled          bool
	listeningStarted time.Time
	lastTranscript   time.Time

	events chan Event
	stop   chan struct{}
	done   chan struct{}
}

// TimeoutOption is a functional option for NewTimeout.
type TimeoutOption func(*Timeout)

// WithNowFunc replaces the wall clock. Tests use this to step time
// deterministically.
func WithNowFunc(now func() time.Time) TimeoutOption {
	return func(t *Timeout) { t.now = now }
}

// NewTimeout creates a timeout detector and starts its poll goroutine. The
// detector starts disarmed; call SetEnabled(true) once the reference audio
// finishes. Callers must Close the detector to stop the poll goroutine.
func NewTimeout(cfg TimeoutConfig, opts ...TimeoutOption) *Timeout {
	cfg.applyDefaults()
	t := &Timeout{
		cfg:    cfg,
		now:    time.Now,
		events: make(chan Event, eventBuffer),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(t)
	}
	go t.pollLoop()
	return t
}

// pollLoop is the single timer for this detector. Keeping one long-lived
// ticker instead of re-arming timers per sentence rules out duplicate
// concurrent timers by construction.
func (t *Timeout) pollLoop() {
	defer close(t.done)
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.check()
		}
	}
}

// check fires end of speech when the deadline has passed. Called from the
// poll goroutine and from tests via the same path.
func (t *Timeout) check() {
	t.mu.Lock()
	if !t.enabled {
		t.mu.Unlock()
		return
	}

	// Reference time: last recognised speech if any, else listening start.
	ref := t.listeningStarted
	if !t.lastTranscript.IsZero() {
		ref = t.lastTranscript
	}
	if ref.IsZero() || t.now().Sub(ref) < t.cfg.SpeechTimeout {
		t.mu.Unlock()
		return
	}

	// Disarm so the event fires exactly once per listening window.
	t.enabled = false
	t.mu.Unlock()

	select {
	case t.events <- EventEndOfSpeech:
	default:
	}
}

// ProcessLevel is a no-op: the timeout strategy ignores raw energy.
func (t *Timeout) ProcessLevel(float64) {}

// ObserveTranscript records the arrival of recognised speech. Empty updates
// are ignored so transcriber keep-alives cannot postpone the deadline.
func (t *Timeout) ObserveTranscript(tr types.Transcript) {
	if tr.Text == "" {
		return
	}
	at := tr.ReceivedAt
	if at.IsZero() {
		at = t.now()
	}

	t.mu.Lock()
	t.lastTranscript = at
	t.mu.Unlock()

	select {
	case t.events <- EventVoiceActive:
	default:
	}
}

// SetEnabled arms or disarms the deadline. Arming records the listening
// start used when no speech has been recognised yet.
func (t *Timeout) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if enabled && !t.enabled {
		t.listeningStarted = t.now()
	}
	t.enabled = enabled
}

// Reset clears both reference timestamps for a fresh sentence.
func (t *Timeout) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeningStarted = time.Time{}
	t.lastTranscript = time.Time{}
}

// VoiceActive reports whether recognised speech arrived within the timeout
// window. UI feedback only.
func (t *Timeout) VoiceActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.lastTranscript.IsZero() && t.now().Sub(t.lastTranscript) < t.cfg.SpeechTimeout
}

// Events returns the detection signal channel.
func (t *Timeout) Events() <-chan Event {
	return t.events
}

// Close stops the poll goroutine. Safe to call more than once.
func (t *Timeout) Close() error {
	t.mu.Lock()
	select {
	case <-t.stop:
		t.mu.Unlock()
		return nil
	default:
		close(t.stop)
	}
	t.mu.Unlock()
	<-t.done
	return nil
}
