// Package mock provides a mock player.Player for controller tests. Playback
// lifecycle is fully scripted: tests call Finish or Fail to deliver the
// terminal event a real device would produce.
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/internal/lesson"
	"github.com/voxloop/voxloop/internal/player"
)

// Compile-time assertion that Player satisfies player.Player.
var _ player.Player = (*Player)(nil)

// Player is a mock player.Player.
type Player struct {
	mu sync.Mutex

	// PlayErr, when non-nil, is returned by Play.
	PlayErr error

	// AutoStart controls whether Play immediately emits EventStarted.
	// Defaults to true in New.
	AutoStart bool

	// PlayCalls records every sentence passed to Play.
	PlayCalls []lesson.Sentence

	// PauseCalls, ResumeCalls, and StopCalls count the respective calls.
	PauseCalls  int
	ResumeCalls int
	StopCalls   int

	events  chan player.Event
	playing bool
	current int
}

// New creates a mock player with auto-start enabled.
func New() *Player {
	return &Player{
		AutoStart: true,
		events:    make(chan player.Event, 16),
	}
}

// Play records the sentence and, with AutoStart, emits EventStarted.
func (p *Player) Play(ctx context.Context, s lesson.Sentence) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.PlayCalls = append(p.PlayCalls, s)
	if p.PlayErr != nil {
		return p.PlayErr
	}
	p.playing = true
	p.current = s.Position
	if p.AutoStart {
		p.events <- player.Event{Kind: player.EventStarted, Position: s.Position}
	}
	return nil
}

// Pause records the call.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.PauseCalls++
	return nil
}

// Resume records the call.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ResumeCalls++
	return nil
}

// Stop records the call and emits EventStopped when a clip was active.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StopCalls++
	if p.playing {
		p.playing = false
		p.events <- player.Event{Kind: player.EventStopped, Position: p.current}
	}
	return nil
}

// Events returns the scripted event channel.
func (p *Player) Events() <-chan player.Event { return p.events }

// Close is a no-op.
func (p *Player) Close() error { return nil }

// Finish delivers EventFinished for the active clip, as if it played to its
// end.
func (p *Player) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.events <- player.Event{Kind: player.EventFinished, Position: p.current}
}

// Fail delivers EventFailed with the given cause.
func (p *Player) Fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.events <- player.Event{Kind: player.EventFailed, Position: p.current, Err: err}
}

// Playing reports whether a clip is active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}
