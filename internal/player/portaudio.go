package player

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gordonklaus/portaudio"
	"github.com/hajimehoshi/go-mp3"

	"github.com/voxloop/voxloop/internal/lesson"
)

const (
	// mp3Channels is fixed: go-mp3 always decodes to 16-bit stereo.
	mp3Channels = 2

	defaultFramesPerBuffer = 1024
	eventBuffer            = 16
)

// Compile-time assertion that PortAudioPlayer satisfies Player.
var _ Player = (*PortAudioPlayer)(nil)

// PortAudioOption is a functional option for NewPortAudio.
type PortAudioOption func(*PortAudioPlayer)

// WithFramesPerBuffer sets the output buffer size in frames. Default 1024.
func WithFramesPerBuffer(n int) PortAudioOption {
	return func(p *PortAudioPlayer) { p.framesPerBuffer = n }
}

// PortAudioPlayer plays MP3 reference clips through the default output
// device. Sentences are resolved to local files through a Resolver, decoded
// with go-mp3, and streamed buffer by buffer so Pause and Stop take effect
// within one buffer. At most one clip plays at a time.
type PortAudioPlayer struct {
	resolver        *Resolver
	framesPerBuffer int
	events          chan Event

	mu      sync.Mutex
	current *playback
}

// NewPortAudio creates a player and initialises the PortAudio host API.
// Callers must Close the player to release it.
func NewPortAudio(resolver *Resolver, opts ...PortAudioOption) (*PortAudioPlayer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("player: initialize portaudio: %w", err)
	}
	p := &PortAudioPlayer{
		resolver:        resolver,
		framesPerBuffer: defaultFramesPerBuffer,
		events:          make(chan Event, eventBuffer),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// playback is one in-flight clip. Pause state is guarded by its own cond so
// the streaming goroutine can block cheaply while paused.
type playback struct {
	position int

	mu      sync.Mutex
	cond    *sync.Cond
	paused  bool
	stopped bool

	done chan struct{}
}

func newPlayback(position int) *playback {
	pb := &playback{position: position, done: make(chan struct{})}
	pb.cond = sync.NewCond(&pb.mu)
	return pb
}

// waitIfPaused blocks while the clip is paused. Returns false when the clip
// was stopped.
func (pb *playback) waitIfPaused() bool {
	pb.mu.Lock()
	defer pb.mu.Unlock()
	for pb.paused && !pb.stopped {
		pb.cond.Wait()
	}
	return !pb.stopped
}

func (pb *playback) setPaused(paused bool) {
	pb.mu.Lock()
	pb.paused = paused
	pb.mu.Unlock()
	pb.cond.Broadcast()
}

func (pb *playback) stop() {
	pb.mu.Lock()
	if pb.stopped {
		pb.mu.Unlock()
		return
	}
	pb.stopped = true
	pb.mu.Unlock()
	pb.cond.Broadcast()
	<-pb.done
}

// Play resolves the sentence's audio and starts streaming it. An active clip
// is stopped first.
func (p *PortAudioPlayer) Play(ctx context.Context, s lesson.Sentence) error {
	path, err := p.resolver.Resolve(ctx, s)
	if err != nil {
		return err
	}

	p.mu.Lock()
	if p.current != nil {
		cur := p.current
		p.current = nil
		p.mu.Unlock()
		cur.stop() // the streaming goroutine emits EventStopped
		p.mu.Lock()
	}
	pb := newPlayback(s.Position)
	p.current = pb
	p.mu.Unlock()

	go p.stream(pb, path)
	return nil
}

// stream decodes and plays one clip, emitting Started and exactly one
// terminal event.
func (p *PortAudioPlayer) stream(pb *playback, path string) {
	defer close(pb.done)

	terminal := func(kind EventKind, err error) {
		p.mu.Lock()
		if p.current == pb {
			p.current = nil
		}
		p.mu.Unlock()
		p.emit(Event{Kind: kind, Position: pb.position, Err: err})
	}

	f, err := os.Open(path)
	if err != nil {
		terminal(EventFailed, fmt.Errorf("player: open clip: %w", err))
		return
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		terminal(EventFailed, fmt.Errorf("player: decode clip: %w", err))
		return
	}

	samples := make([]int16, p.framesPerBuffer*mp3Channels)
	raw := make([]byte, len(samples)*2)

	stream, err := portaudio.OpenDefaultStream(0, mp3Channels, float64(dec.SampleRate()), p.framesPerBuffer, samples)
	if err != nil {
		terminal(EventFailed, fmt.Errorf("player: open output stream: %w", err))
		return
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		terminal(EventFailed, fmt.Errorf("player: start output stream: %w", err))
		return
	}
	defer stream.Stop()

	p.emit(Event{Kind: EventStarted, Position: pb.position})

	for {
		if !pb.waitIfPaused() {
			terminal(EventStopped, nil)
			return
		}

		n, err := io.ReadFull(dec, raw)
		if n == 0 {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				terminal(EventFinished, nil)
			} else {
				terminal(EventFailed, fmt.Errorf("player: read samples: %w", err))
			}
			return
		}

		// Zero-pad a short final buffer so the stream write stays aligned.
		for i := n; i < len(raw); i++ {
			raw[i] = 0
		}
		for i := range samples {
			samples[i] = int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		}
		if werr := stream.Write(); werr != nil {
			terminal(EventFailed, fmt.Errorf("player: write to device: %w", werr))
			return
		}

		if err == io.EOF || err == io.ErrUnexpectedEOF {
			terminal(EventFinished, nil)
			return
		}
		if err != nil {
			terminal(EventFailed, fmt.Errorf("player: read samples: %w", err))
			return
		}
	}
}

// Pause holds the active clip.
func (p *PortAudioPlayer) Pause() error {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()
	if pb != nil {
		pb.setPaused(true)
	}
	return nil
}

// Resume continues a paused clip.
func (p *PortAudioPlayer) Resume() error {
	p.mu.Lock()
	pb := p.current
	p.mu.Unlock()
	if pb != nil {
		pb.setPaused(false)
	}
	return nil
}

// Stop ends the active clip. Idempotent.
func (p *PortAudioPlayer) Stop() error {
	p.mu.Lock()
	pb := p.current
	p.current = nil
	p.mu.Unlock()
	if pb != nil {
		pb.stop()
	}
	return nil
}

// Events returns the lifecycle channel. Events may be dropped if the
// consumer stops draining; the buffer covers a whole session's worth of
// transitions.
func (p *PortAudioPlayer) Events() <-chan Event { return p.events }

// Close stops playback and releases the PortAudio host API.
func (p *PortAudioPlayer) Close() error {
	_ = p.Stop()
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("player: terminate portaudio: %w", err)
	}
	return nil
}

func (p *PortAudioPlayer) emit(e Event) {
	select {
	case p.events <- e:
	default:
	}
}
