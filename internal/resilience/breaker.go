// Package resilience provides failover primitives for speech backends.
//
// Remote transcription and synthesis servers come and go: a whisper-server
// on the LAN gets rebooted, a hosted TTS API rate-limits. [Breaker] is a
// three-state circuit breaker (closed → open → half-open) that stops
// hammering a backend once it is clearly down. [Chain] composes several
// providers of the same kind with one breaker each, so a failing primary is
// bypassed in favour of a healthy fallback without the practice session
// noticing.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by [Breaker.Do] while the breaker is open and the
// cool-off period has not elapsed.
var ErrOpen = errors.New("resilience: circuit open")

// State is the operating mode of a [Breaker].
type State int

const (
	// Closed forwards every call.
	Closed State = iota

	// Open rejects every call with [ErrOpen] until the cool-off elapses.
	Open

	// HalfOpen lets a limited number of probe calls through. Probes that
	// succeed close the breaker; a single probe failure re-opens it.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a [Breaker]. Zero-value fields get defaults.
type BreakerConfig struct {
	// Name labels the breaker in log output.
	Name string

	// Trip is the number of consecutive failures that opens the breaker.
	// Default 5.
	Trip int

	// CoolOff is how long the breaker stays open before probing again.
	// Default 30s.
	CoolOff time.Duration

	// Probes is how many half-open calls must succeed before the breaker
	// closes again. Default 3.
	Probes int
}

// Breaker is a consecutive-failure circuit breaker.
type Breaker struct {
	name    string
	trip    int
	coolOff time.Duration
	probes  int

	mu        sync.Mutex
	state     State
	failures  int
	openedAt  time.Time
	probeRuns int
	probeOK   int
}

// NewBreaker creates a closed [Breaker] from cfg.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Trip <= 0 {
		cfg.Trip = 5
	}
	if cfg.CoolOff <= 0 {
		cfg.CoolOff = 30 * time.Second
	}
	if cfg.Probes <= 0 {
		cfg.Probes = 3
	}
	return &Breaker{
		name:    cfg.Name,
		trip:    cfg.Trip,
		coolOff: cfg.CoolOff,
		probes:  cfg.Probes,
	}
}

// Do runs fn unless the breaker rejects the call. fn's error is passed
// through unchanged; a rejected call returns [ErrOpen] without invoking fn.
func (b *Breaker) Do(fn func() error) error {
	probing, err := b.admit()
	if err != nil {
		return err
	}

	callErr := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if callErr != nil {
		b.onFailure(probing)
	} else {
		b.onSuccess(probing)
	}
	return callErr
}

// admit decides whether a call may proceed and whether it counts as a
// half-open probe.
func (b *Breaker) admit() (probing bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case Open:
		if time.Since(b.openedAt) < b.coolOff {
			return false, ErrOpen
		}
		b.state = HalfOpen
		b.probeRuns = 0
		b.probeOK = 0
		slog.Info("circuit half-open, probing backend", "name", b.name)

	case HalfOpen:
		if b.probeRuns >= b.probes {
			return false, ErrOpen
		}
	}

	if b.state == HalfOpen {
		b.probeRuns++
		return true, nil
	}
	return false, nil
}

// onFailure must be called with b.mu held.
func (b *Breaker) onFailure(probing bool) {
	b.openedAt = time.Now()

	if probing {
		b.state = Open
		b.failures = b.trip
		slog.Warn("circuit re-opened, probe failed", "name", b.name)
		return
	}

	b.failures++
	if b.failures >= b.trip {
		b.state = Open
		slog.Warn("circuit opened",
			"name", b.name,
			"consecutive_failures", b.failures)
	}
}

// onSuccess must be called with b.mu held.
func (b *Breaker) onSuccess(probing bool) {
	if probing {
		b.probeOK++
		if b.probeOK >= b.probes {
			b.state = Closed
			b.failures = 0
			b.probeRuns = 0
			b.probeOK = 0
			slog.Info("circuit closed, backend recovered", "name", b.name)
		}
		return
	}
	b.failures = 0
}

// State reports the breaker's mode. An open breaker whose cool-off has
// elapsed reports [HalfOpen]; the actual transition happens on the next Do.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && time.Since(b.openedAt) >= b.coolOff {
		return HalfOpen
	}
	return b.state
}

// Reset forces the breaker back to [Closed] and clears all counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = Closed
	b.failures = 0
	b.probeRuns = 0
	b.probeOK = 0
}
