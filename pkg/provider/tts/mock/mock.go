// Package mock provides a mock tts.Provider for testing.
package mock

import (
	"context"
	"sync"

	"github.com/voxloop/voxloop/pkg/provider/tts"
	"github.com/voxloop/voxloop/pkg/types"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records one Synthesize invocation.
type SynthesizeCall struct {
	Text  string
	Voice types.VoiceProfile
}

// Provider is a mock tts.Provider. Configure Audio and Err to script
// Synthesize results; every call is recorded in Calls.
type Provider struct {
	mu sync.Mutex

	// Audio is returned by Synthesize when Err is nil. When empty, a small
	// placeholder payload is returned instead so callers always get bytes.
	Audio []byte

	// Err, when non-nil, is returned by Synthesize.
	Err error

	// VoiceList is returned by Voices.
	VoiceList []types.VoiceProfile

	// Calls records every Synthesize invocation.
	Calls []SynthesizeCall
}

// New creates a mock provider.
func New() *Provider {
	return &Provider{}
}

// Synthesize records the call and returns the scripted result.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, SynthesizeCall{Text: text, Voice: voice})
	if p.Err != nil {
		return nil, p.Err
	}
	if len(p.Audio) == 0 {
		return []byte("mock-audio:" + text), nil
	}
	out := make([]byte, len(p.Audio))
	copy(out, p.Audio)
	return out, nil
}

// Voices returns the scripted voice list.
func (p *Provider) Voices(context.Context) ([]types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.VoiceList, nil
}

// CallCount returns how many times Synthesize was invoked.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}
