package resilience

import (
	"context"

	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/provider/tts"
	"github.com/voxloop/voxloop/pkg/types"
)

// STTFallback implements [stt.Provider] with failover across multiple
// transcription backends. Each backend has its own breaker, so a tripped
// primary is skipped until its cool-off ends.
type STTFallback struct {
	chain *Chain[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend. Register further backends with [STTFallback.Add].
func NewSTTFallback(primaryName string, primary stt.Provider, breaker BreakerConfig) *STTFallback {
	return &STTFallback{chain: NewChain(primaryName, primary, breaker)}
}

// Add registers a fallback transcription backend.
func (f *STTFallback) Add(name string, p stt.Provider) {
	f.chain.Add(name, p)
}

// StartStream opens a transcription session against the first healthy
// backend. Only session setup is covered by failover; once a session is
// open, mid-stream errors stay with that backend.
func (f *STTFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return First(f.chain, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}

// TTSFallback implements [tts.Provider] with failover across multiple
// synthesis backends.
type TTSFallback struct {
	chain *Chain[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primaryName string, primary tts.Provider, breaker BreakerConfig) *TTSFallback {
	return &TTSFallback{chain: NewChain(primaryName, primary, breaker)}
}

// Add registers a fallback synthesis backend.
func (f *TTSFallback) Add(name string, p tts.Provider) {
	f.chain.Add(name, p)
}

// Synthesize renders text with the first healthy backend.
func (f *TTSFallback) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) ([]byte, error) {
	return First(f.chain, func(p tts.Provider) ([]byte, error) {
		return p.Synthesize(ctx, text, voice)
	})
}

// Voices lists voices from the first healthy backend. Different backends
// offer different catalogues, so after a failover the available voices may
// change; the audio cache keys on the resolved voice, not the backend.
func (f *TTSFallback) Voices(ctx context.Context) ([]types.VoiceProfile, error) {
	return First(f.chain, func(p tts.Provider) ([]types.VoiceProfile, error) {
		return p.Voices(ctx)
	})
}
