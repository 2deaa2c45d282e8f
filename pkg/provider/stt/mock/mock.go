// Package mock provides a mock stt.Provider for testing. It records every
// call and lets tests script transcript updates without a live engine.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/types"
)

// Compile-time assertions.
var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
)

// Provider is a mock stt.Provider. Configure StartErr to make StartStream
// fail; otherwise every call opens a fresh Session that is appended to
// Sessions.
type Provider struct {
	mu sync.Mutex

	// StartErr, when non-nil, is returned by StartStream.
	StartErr error

	// StartCalls records the StreamConfig of every StartStream call.
	StartCalls []stt.StreamConfig

	// Sessions holds every session handed out, in order.
	Sessions []*Session
}

// New creates a mock provider.
func New() *Provider {
	return &Provider{}
}

// StartStream records the call and returns a new scripted session.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartCalls = append(p.StartCalls, cfg)
	if p.StartErr != nil {
		return nil, p.StartErr
	}

	s := &Session{
		updates: make(chan types.Transcript, 16),
	}
	p.Sessions = append(p.Sessions, s)
	return s, nil
}

// LastSession returns the most recently opened session, or nil.
func (p *Provider) LastSession() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Sessions) == 0 {
		return nil
	}
	return p.Sessions[len(p.Sessions)-1]
}

// Session is a mock stt.SessionHandle.
type Session struct {
	mu sync.Mutex

	// SendErr, when non-nil, is returned by SendAudio.
	SendErr error

	// SentChunks records every chunk passed to SendAudio.
	SentChunks [][]byte

	updates chan types.Transcript
	closed  bool
}

// SendAudio records the chunk.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("mock: session is closed")
	}
	if s.SendErr != nil {
		return s.SendErr
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	s.SentChunks = append(s.SentChunks, c)
	return nil
}

// Updates returns the scripted transcript channel.
func (s *Session) Updates() <-chan types.Transcript { return s.updates }

// PushUpdate delivers a transcript to the Updates channel. Updates pushed
// after Close are dropped.
func (s *Session) PushUpdate(t types.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.updates <- t
}

// Close closes the Updates channel. Safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.updates)
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
