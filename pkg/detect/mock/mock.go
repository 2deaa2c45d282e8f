// Package mock provides a test double for the detect package interface.
//
// Use Detector to drive the session controller from a test: push events into
// EventsCh and inspect the recorded SetEnabled/Reset call history.
package mock

import (
	"sync"

	"github.com/voxloop/voxloop/pkg/detect"
	"github.com/voxloop/voxloop/pkg/types"
)

// Compile-time assertion that Detector satisfies detect.Detector.
var _ detect.Detector = (*Detector)(nil)

// Detector is a mock implementation of detect.Detector. Construct with New
// so the events channel exists before the consumer subscribes.
type Detector struct {
	mu sync.Mutex

	// EventsCh is the channel returned by Events). Tests send detect.Event
	// values here to simulate detection signals.
	EventsCh chan detect.Event

	// Levels records every ProcessLevel call.
	Levels []float64

	// Transcripts records every ObserveTranscript call.
	Transcripts []types.Transcript

	// EnabledCalls records the argument of every SetEnabled call, in order.
	EnabledCalls []bool

	// ResetCalls counts Reset invocations.
	ResetCalls int

	// CloseCalls counts Close invocations.
	CloseCalls int

	// Active is returned by VoiceActive.
	Active bool

	enabled bool
}

// New returns a mock detector with a buffered events channel.
func New() *Detector {
	return &Detector{EventsCh: make(chan detect.Event, 16)}
}

// ProcessLevel records the level.
func (d *Detector) ProcessLevel(db float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Levels = append(d.Levels, db)
}

// ObserveTranscript records the transcript.
func (d *Detector) ObserveTranscript(t types.Transcript) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Transcripts = append(d.Transcripts, t)
}

// SetEnabled records the call.
func (d *Detector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.EnabledCalls = append(d.EnabledCalls, enabled)
	d.enabled = enabled
}

// Enabled reports the most recent SetEnabled argument.
func (d *Detector) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled
}

// Reset records the call.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCalls++
}

// VoiceActive returns the Active field.
func (d *Detector) VoiceActive() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Active
}

// Events returns EventsCh.
func (d *Detector) Events() <-chan detect.Event {
	return d.EventsCh
}

// Close records the call.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCalls++
	return nil
}
