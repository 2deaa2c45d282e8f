// Package config provides the configuration schema, loader, and provider
// registry for the Voxloop shadowing trainer.
package config

import (
	"time"

	"github.com/voxloop/voxloop/pkg/detect"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for Voxloop.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	App       AppConfig       `yaml:"app"`
	Audio     AudioConfig     `yaml:"audio"`
	Detector  DetectorConfig  `yaml:"detector"`
	Session   SessionConfig   `yaml:"session"`
	Providers ProvidersConfig `yaml:"providers"`
	Cache     CacheConfig     `yaml:"cache"`
	Store     StoreConfig     `yaml:"store"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// AppConfig holds application-wide settings.
type AppConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig describes the microphone capture format.
type AudioConfig struct {
	// SampleRate in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`

	// Channels is the capture channel count. Default 1.
	Channels int `yaml:"channels"`

	// FrameDurationMs is the duration of one capture frame in
	// milliseconds. Default 64.
	FrameDurationMs int `yaml:"frame_duration_ms"`
}

// DetectorConfig tunes end-of-speech detection.
type DetectorConfig struct {
	// Strategy selects the detection strategy: "energy" or "timeout".
	// Empty selects energy.
	Strategy string `yaml:"strategy"`

	// SilenceWindowMs is the continuous-silence duration, in milliseconds,
	// that ends an utterance under the energy strategy.
	SilenceWindowMs int `yaml:"silence_window_ms"`

	// ThresholdOffsetDB is added to the calibrated noise floor to form the
	// energy strategy's voice threshold.
	ThresholdOffsetDB float64 `yaml:"threshold_offset_db"`

	// SpeechTimeoutMs is the quiet period, in milliseconds, after the last
	// recognised speech that ends an utterance under the timeout strategy.
	SpeechTimeoutMs int `yaml:"speech_timeout_ms"`
}

// DetectConfig converts the YAML tuning into the detect package's config,
// deriving the frame duration from the audio section.
func (d DetectorConfig) DetectConfig(audio AudioConfig) detect.Config {
	return detect.Config{
		Strategy: d.Strategy,
		Energy: detect.EnergyConfig{
			SilenceWindow:     time.Duration(d.SilenceWindowMs) * time.Millisecond,
			FrameDuration:     time.Duration(audio.FrameDurationMs) * time.Millisecond,
			ThresholdOffsetDB: d.ThresholdOffsetDB,
		},
		Timeout: detect.TimeoutConfig{
			SpeechTimeout: time.Duration(d.SpeechTimeoutMs) * time.Millisecond,
		},
	}
}

// SessionConfig tunes the shadowing loop.
type SessionConfig struct {
	// PacingDelayMs is the breathing room between sentences in
	// milliseconds. Default 500.
	PacingDelayMs int `yaml:"pacing_delay_ms"`
}

// PacingDelay returns the configured delay as a duration, or zero when
// unset so the session applies its own default.
func (s SessionConfig) PacingDelay() time.Duration {
	return time.Duration(s.PacingDelayMs) * time.Millisecond
}

// ProvidersConfig declares which provider implementation to use for each
// pipeline stage. Each entry selects a named provider registered in the
// [Registry].
type ProvidersConfig struct {
	STT ProviderEntry `yaml:"stt"`
	TTS ProviderEntry `yaml:"tts"`

	// STTFallbacks are tried in order when the primary STT provider fails
	// or its circuit breaker is open. Requires a primary stt entry.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`

	// TTSFallbacks are tried in order when the primary TTS provider fails.
	// Requires a primary tts entry.
	TTSFallbacks []ProviderEntry `yaml:"tts_fallbacks"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "whisper", "edge").
	Name string `yaml:"name"`

	// BaseURL overrides the provider's default endpoint. For the HTTP
	// whisper provider this is the whisper.cpp server address.
	BaseURL string `yaml:"base_url"`

	// Model selects a model within the provider, e.g. a whisper model
	// file path for the native provider.
	Model string `yaml:"model"`

	// Voice is the default synthesis voice for TTS providers.
	Voice string `yaml:"voice"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// CacheConfig locates the reference audio cache.
type CacheConfig struct {
	// Dir is the cache directory. Default: a "voxloop" subdirectory of
	// the user cache dir.
	Dir string `yaml:"dir"`
}

// StoreConfig locates the persistent lesson store.
type StoreConfig struct {
	// Path is the SQLite database file. Default "voxloop.db".
	Path string `yaml:"path"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics HTTP endpoint on.
	Enabled bool `yaml:"enabled"`

	// ListenAddr is the TCP address the metrics server listens on
	// (e.g., ":9090"). Required when Enabled is true.
	ListenAddr string `yaml:"listen_addr"`
}
