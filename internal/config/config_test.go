package config

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/detect"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	sttmock "github.com/voxloop/voxloop/pkg/provider/stt/mock"
	"github.com/voxloop/voxloop/pkg/provider/tts"
	ttsmock "github.com/voxloop/voxloop/pkg/provider/tts/mock"
)

const fullConfig = `
app:
  log_level: debug
audio:
  sample_rate: 16000
  channels: 1
  frame_duration_ms: 64
detector:
  strategy: energy
  silence_window_ms: 1500
  threshold_offset_db: 15
session:
  pacing_delay_ms: 500
providers:
  stt:
    name: whisper
    base_url: http://localhost:8080
  tts:
    name: edge
    voice: en-US-AriaNeural
cache:
  dir: /tmp/voxloop-cache
store:
  path: /tmp/voxloop.db
metrics:
  enabled: true
  listen_addr: ":9090"
`

func TestLoadFromReader_FullConfig(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(fullConfig))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.App.LogLevel != LogDebug {
		t.Errorf("log level = %q, want debug", cfg.App.LogLevel)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Errorf("audio = %+v", cfg.Audio)
	}
	if cfg.Detector.Strategy != detect.StrategyEnergy {
		t.Errorf("strategy = %q", cfg.Detector.Strategy)
	}
	if cfg.Providers.STT.Name != "whisper" || cfg.Providers.STT.BaseURL != "http://localhost:8080" {
		t.Errorf("stt entry = %+v", cfg.Providers.STT)
	}
	if cfg.Providers.TTS.Voice != "en-US-AriaNeural" {
		t.Errorf("tts voice = %q", cfg.Providers.TTS.Voice)
	}
	if got := cfg.Session.PacingDelay(); got != 500*time.Millisecond {
		t.Errorf("pacing delay = %v", got)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("app:\n  log_levle: debug\n"))
	if err == nil {
		t.Fatal("expected error for misspelled field")
	}
}

func TestLoadFromReader_InvalidYAML(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("app: ["))
	if err == nil {
		t.Fatal("expected error for malformed yaml")
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	cfg := &Config{
		App:      AppConfig{LogLevel: "loud"},
		Audio:    AudioConfig{SampleRate: 100, Channels: 5},
		Detector: DetectorConfig{Strategy: "psychic", SilenceWindowMs: -1},
		Session:  SessionConfig{PacingDelayMs: -5},
		Metrics:  MetricsConfig{Enabled: true},
	}

	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{
		"app.log_level",
		"audio.sample_rate",
		"audio.channels",
		"detector.strategy",
		"detector.silence_window_ms",
		"session.pacing_delay_ms",
		"metrics.listen_addr",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error is missing %q: %v", want, err)
		}
	}
}

func TestValidate_TimeoutStrategyRequiresSTT(t *testing.T) {
	cfg := &Config{Detector: DetectorConfig{Strategy: detect.StrategyTimeout}}
	if err := Validate(cfg); err == nil {
		t.Fatal("timeout strategy without stt must be invalid")
	}

	cfg.Providers.STT.Name = "whisper"
	if err := Validate(cfg); err != nil {
		t.Fatalf("timeout strategy with stt should validate, got %v", err)
	}
}

func TestValidate_FallbacksRequirePrimary(t *testing.T) {
	cfg := &Config{
		Providers: ProvidersConfig{
			STTFallbacks: []ProviderEntry{{Name: "whisper-native"}},
		},
	}
	if err := Validate(cfg); err == nil {
		t.Fatal("stt fallbacks without a primary must be invalid")
	}

	cfg.Providers.STT.Name = "whisper"
	if err := Validate(cfg); err != nil {
		t.Fatalf("fallbacks with a primary should validate, got %v", err)
	}
}

func TestValidate_FallbackEntriesNeedNames(t *testing.T) {
	cfg := &Config{
		Providers: ProvidersConfig{
			TTS:          ProviderEntry{Name: "edge"},
			TTSFallbacks: []ProviderEntry{{Voice: "en-US-AriaNeural"}},
		},
	}
	err := Validate(cfg)
	if err == nil {
		t.Fatal("unnamed fallback entry must be invalid")
	}
	if !strings.Contains(err.Error(), "tts_fallbacks[0]") {
		t.Fatalf("error should name the offending entry, got %v", err)
	}
}

func TestValidate_ZeroConfigIsValid(t *testing.T) {
	if err := Validate(&Config{}); err != nil {
		t.Errorf("zero config should validate (defaults apply later), got %v", err)
	}
}

func TestDetectorConfig_DetectConfig(t *testing.T) {
	d := DetectorConfig{
		Strategy:          detect.StrategyEnergy,
		SilenceWindowMs:   1200,
		ThresholdOffsetDB: 12,
		SpeechTimeoutMs:   2500,
	}
	got := d.DetectConfig(AudioConfig{FrameDurationMs: 32})

	if got.Strategy != detect.StrategyEnergy {
		t.Errorf("strategy = %q", got.Strategy)
	}
	if got.Energy.SilenceWindow != 1200*time.Millisecond {
		t.Errorf("silence window = %v", got.Energy.SilenceWindow)
	}
	if got.Energy.FrameDuration != 32*time.Millisecond {
		t.Errorf("frame duration = %v", got.Energy.FrameDuration)
	}
	if got.Energy.ThresholdOffsetDB != 12 {
		t.Errorf("threshold offset = %v", got.Energy.ThresholdOffsetDB)
	}
	if got.Timeout.SpeechTimeout != 2500*time.Millisecond {
		t.Errorf("speech timeout = %v", got.Timeout.SpeechTimeout)
	}
}

func TestRegistry_CreateByName(t *testing.T) {
	r := NewRegistry()
	r.RegisterSTT("mock", func(ProviderEntry) (stt.Provider, error) {
		return sttmock.New(), nil
	})
	r.RegisterTTS("mock", func(ProviderEntry) (tts.Provider, error) {
		return &ttsmock.Provider{}, nil
	})

	if _, err := r.CreateSTT(ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateSTT: %v", err)
	}
	if _, err := r.CreateTTS(ProviderEntry{Name: "mock"}); err != nil {
		t.Errorf("CreateTTS: %v", err)
	}
}

func TestRegistry_UnregisteredName(t *testing.T) {
	r := NewRegistry()
	if _, err := r.CreateSTT(ProviderEntry{Name: "ghost"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateSTT error = %v, want ErrProviderNotRegistered", err)
	}
	if _, err := r.CreateTTS(ProviderEntry{Name: "ghost"}); !errors.Is(err, ErrProviderNotRegistered) {
		t.Errorf("CreateTTS error = %v, want ErrProviderNotRegistered", err)
	}
}

func TestRegistry_FactoryReceivesEntry(t *testing.T) {
	r := NewRegistry()
	var got ProviderEntry
	r.RegisterSTT("whisper", func(e ProviderEntry) (stt.Provider, error) {
		got = e
		return sttmock.New(), nil
	})

	entry := ProviderEntry{Name: "whisper", BaseURL: "http://localhost:1"}
	if _, err := r.CreateSTT(entry); err != nil {
		t.Fatalf("CreateSTT: %v", err)
	}
	if got.BaseURL != entry.BaseURL {
		t.Errorf("factory entry = %+v, want %+v", got, entry)
	}
}
