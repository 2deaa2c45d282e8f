package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/voxloop/voxloop/pkg/detect"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"stt": {"whisper", "whisper-native"},
	"tts": {"edge"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.App.LogLevel != "" && !cfg.App.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("app.log_level %q is invalid; valid values: debug, info, warn, error", cfg.App.LogLevel))
	}

	// Audio capture format
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is negative", cfg.Audio.SampleRate))
	} else if cfg.Audio.SampleRate != 0 && (cfg.Audio.SampleRate < 8000 || cfg.Audio.SampleRate > 48000) {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d is out of range [8000, 48000]", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels != 0 && cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}
	if cfg.Audio.FrameDurationMs < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_duration_ms %d is negative", cfg.Audio.FrameDurationMs))
	}

	// Detector
	switch cfg.Detector.Strategy {
	case "", detect.StrategyEnergy, detect.StrategyTimeout:
	default:
		errs = append(errs, fmt.Errorf("detector.strategy %q is invalid; valid values: energy, timeout", cfg.Detector.Strategy))
	}
	if cfg.Detector.SilenceWindowMs < 0 {
		errs = append(errs, fmt.Errorf("detector.silence_window_ms %d is negative", cfg.Detector.SilenceWindowMs))
	}
	if cfg.Detector.SpeechTimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("detector.speech_timeout_ms %d is negative", cfg.Detector.SpeechTimeoutMs))
	}
	if cfg.Detector.Strategy == detect.StrategyTimeout && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("detector.strategy \"timeout\" requires a configured providers.stt, since it keys off transcription updates"))
	}

	// Session
	if cfg.Session.PacingDelayMs < 0 {
		errs = append(errs, fmt.Errorf("session.pacing_delay_ms %d is negative", cfg.Session.PacingDelayMs))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	for i, entry := range cfg.Providers.STTFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.stt_fallbacks[%d].name is empty", i))
			continue
		}
		validateProviderName("stt", entry.Name)
	}
	for i, entry := range cfg.Providers.TTSFallbacks {
		if entry.Name == "" {
			errs = append(errs, fmt.Errorf("providers.tts_fallbacks[%d].name is empty", i))
			continue
		}
		validateProviderName("tts", entry.Name)
	}
	if len(cfg.Providers.STTFallbacks) > 0 && cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt_fallbacks requires a primary providers.stt entry"))
	}
	if len(cfg.Providers.TTSFallbacks) > 0 && cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts_fallbacks requires a primary providers.tts entry"))
	}
	if cfg.Providers.STT.Name == "" {
		slog.Warn("providers.stt is empty; sentences will complete without transcripts or scores")
	}
	if cfg.Providers.TTS.Name == "" {
		slog.Warn("providers.tts is empty; lessons without recorded audio cannot be played")
	}

	// Metrics
	if cfg.Metrics.Enabled && cfg.Metrics.ListenAddr == "" {
		errs = append(errs, errors.New("metrics.listen_addr is required when metrics.enabled is true"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
