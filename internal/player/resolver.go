package player

import (
	"context"
	"fmt"
	"time"

	"github.com/voxloop/voxloop/internal/audiocache"
	"github.com/voxloop/voxloop/internal/lesson"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/pkg/provider/tts"
)

// Resolver turns a sentence into a playable local audio file. Recorded clips
// go through the cache (downloading on miss); text-only sentences are
// synthesized once and cached under a locator derived from voice and text,
// so repeating a sentence never re-synthesizes it.
type Resolver struct {
	cache   *audiocache.Cache
	tts     tts.Provider
	metrics *observe.Metrics
}

// ResolverOption is a functional option for NewResolver.
type ResolverOption func(*Resolver)

// WithResolverMetrics wires the synthesis duration histogram. Nil disables
// recording.
func WithResolverMetrics(m *observe.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

// NewResolver creates a resolver. tts may be nil when synthesis is not
// available; text-only sentences then fail with ErrNoAudio.
func NewResolver(cache *audiocache.Cache, synth tts.Provider, opts ...ResolverOption) *Resolver {
	r := &Resolver{cache: cache, tts: synth}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns a local file path with the sentence's reference audio.
func (r *Resolver) Resolve(ctx context.Context, s lesson.Sentence) (string, error) {
	if s.AudioLocator != "" {
		path, err := r.cache.Fetch(ctx, s.AudioLocator)
		if err != nil {
			return "", fmt.Errorf("player: fetch clip: %w", err)
		}
		return path, nil
	}

	if s.Text == "" {
		return "", ErrNoAudio
	}
	if r.tts == nil {
		return "", fmt.Errorf("player: %w: no synthesis backend configured", ErrNoAudio)
	}

	locator := synthLocator(s)
	if r.cache.Has(locator) {
		return r.cache.Fetch(ctx, locator)
	}

	start := time.Now()
	data, err := r.tts.Synthesize(ctx, s.Text, s.Voice)
	if err != nil {
		r.metrics.RecordProviderError(ctx, "tts")
		return "", fmt.Errorf("player: synthesize sentence: %w", err)
	}
	r.metrics.RecordSynthesisDuration(ctx, time.Since(start))
	path, err := r.cache.Put(locator, data)
	if err != nil {
		return "", fmt.Errorf("player: cache synthesized clip: %w", err)
	}
	return path, nil
}

// synthLocator is the cache key for synthesized audio. Voice identity is
// part of the key so changing voices re-synthesizes.
func synthLocator(s lesson.Sentence) string {
	return fmt.Sprintf("tts:%s:%s:%s", s.Voice.Language, s.Voice.ID, s.Text)
}
