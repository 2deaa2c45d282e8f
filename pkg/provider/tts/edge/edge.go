// Package edge provides a tts.Provider backed by the Microsoft Edge neural
// voices, accessed through the edge-tts-go client. No API key is required,
// which makes it the default synthesis backend for text-only sentences.
package edge

import (
	"context"
	"errors"
	"fmt"

	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"github.com/voxloop/voxloop/pkg/provider/tts"
	"github.com/voxloop/voxloop/pkg/types"
)

const defaultVoice = "en-US-AriaNeural"

// voicesByLanguage maps a lesson language code to a sensible default voice.
// A sentence's VoiceProfile.ID overrides this lookup entirely.
var voicesByLanguage = map[string]string{
	"en": "en-US-AriaNeural",
	"fr": "fr-FR-DeniseNeural",
	"de": "de-DE-KatjaNeural",
	"es": "es-ES-ElviraNeural",
	"it": "it-IT-ElsaNeural",
	"ja": "ja-JP-NanamiNeural",
	"zh": "zh-CN-XiaoxiaoNeural",
}

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithDefaultVoice sets the voice used when neither the VoiceProfile nor the
// language map selects one. Defaults to "en-US-AriaNeural".
func WithDefaultVoice(voice string) Option {
	return func(p *Provider) { p.defaultVoice = voice }
}

// WithLanguageVoice overrides the default voice for one language code.
func WithLanguageVoice(language, voice string) Option {
	return func(p *Provider) { p.languageVoices[language] = voice }
}

// Provider implements tts.Provider using Edge neural voices. The zero cost
// and lack of credentials come with a caveat: the service is rate-limited and
// synthesized audio should always be cached by the caller.
type Provider struct {
	defaultVoice   string
	languageVoices map[string]string
}

// New creates an Edge TTS provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		defaultVoice:   defaultVoice,
		languageVoices: make(map[string]string, len(voicesByLanguage)),
	}
	for lang, voice := range voicesByLanguage {
		p.languageVoices[lang] = voice
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Synthesize renders text as MP3 audio using the voice selected by profile.
func (p *Provider) Synthesize(ctx context.Context, text string, voice types.VoiceProfile) ([]byte, error) {
	if text == "" {
		return nil, errors.New("edge: text must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("edge: context already cancelled: %w", err)
	}

	c, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(p.voiceFor(voice)))
	if err != nil {
		return nil, fmt.Errorf("edge: %w: %w", tts.ErrUnavailable, err)
	}

	data, err := c.Stream()
	if err != nil {
		return nil, fmt.Errorf("edge: synthesize: %w", err)
	}
	return data, nil
}

// Voices returns the curated per-language voice list.
func (p *Provider) Voices(_ context.Context) ([]types.VoiceProfile, error) {
	out := make([]types.VoiceProfile, 0, len(p.languageVoices))
	for lang, voice := range p.languageVoices {
		out = append(out, types.VoiceProfile{ID: voice, Language: lang, SpeedFactor: 1.0})
	}
	return out, nil
}

// voiceFor resolves the concrete Edge voice name for a profile: explicit ID,
// then the language map, then the provider default.
func (p *Provider) voiceFor(voice types.VoiceProfile) string {
	if voice.ID != "" {
		return voice.ID
	}
	if v, ok := p.languageVoices[voice.Language]; ok {
		return v
	}
	return p.defaultVoice
}
