package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/provider/tts"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// factories is a concurrency-safe name → constructor map for one provider
// kind.
type factories[T any] struct {
	kind string

	mu sync.RWMutex
	m  map[string]func(ProviderEntry) (T, error)
}

func newFactories[T any](kind string) *factories[T] {
	return &factories[T]{
		kind: kind,
		m:    make(map[string]func(ProviderEntry) (T, error)),
	}
}

func (f *factories[T]) register(name string, fn func(ProviderEntry) (T, error)) {
	f.mu.Lock()
	f.m[name] = fn
	f.mu.Unlock()
}

func (f *factories[T]) create(entry ProviderEntry) (T, error) {
	f.mu.RLock()
	fn, ok := f.m[entry.Name]
	f.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s/%q", ErrProviderNotRegistered, f.kind, entry.Name)
	}
	return fn(entry)
}

// Registry maps provider names to their constructor functions for each
// provider kind. main.go registers the built-in backends here and config
// entries select them by name.
type Registry struct {
	stt *factories[stt.Provider]
	tts *factories[tts.Provider]
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt: newFactories[stt.Provider]("stt"),
		tts: newFactories[tts.Provider]("tts"),
	}
}

// RegisterSTT registers an STT provider factory under name. Registering the
// same name twice overwrites the earlier factory.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.stt.register(name, factory)
}

// RegisterTTS registers a TTS provider factory under name.
func (r *Registry) RegisterTTS(name string, factory func(ProviderEntry) (tts.Provider, error)) {
	r.tts.register(name, factory)
}

// CreateSTT instantiates the STT provider selected by entry.Name. Returns
// [ErrProviderNotRegistered] for unknown names.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	return r.stt.create(entry)
}

// CreateTTS instantiates the TTS provider selected by entry.Name.
func (r *Registry) CreateTTS(entry ProviderEntry) (tts.Provider, error) {
	return r.tts.create(entry)
}
