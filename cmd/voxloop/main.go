// Command voxloop is a headless shadowing trainer: it plays a lesson's
// reference sentences, records the learner repeating them, and advances
// when they stop speaking.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/voxloop/voxloop/internal/app"
	"github.com/voxloop/voxloop/internal/config"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/resilience"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/provider/stt/whisper"
	"github.com/voxloop/voxloop/pkg/provider/tts"
	"github.com/voxloop/voxloop/pkg/provider/tts/edge"
)

func main() {
	os.Exit(run())
}

// logLevel is shared with the config watcher so hot reloads can adjust
// verbosity without restarting.
var logLevel = new(slog.LevelVar)

func run() int {
	// ── CLI flags ─────────────────────────────────────────────────────────
	configPath := flag.String("config", "voxloop.yaml", "path to the YAML configuration file")
	lessonID := flag.String("lesson", "", "UUID of the lesson to practice; empty lists the library")
	flag.Parse()

	// ── Configuration (watched for hot reloads) ───────────────────────────
	var application *app.App
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			logLevel.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if application != nil {
			application.ApplyConfigChange(d, new)
		}
	})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voxloop: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voxloop: %v\n", err)
		}
		return 1
	}
	defer watcher.Stop()
	cfg := watcher.Current()

	// ── Logger ────────────────────────────────────────────────────────────
	logLevel.Set(slogLevel(cfg.App.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	slog.Info("voxloop starting",
		"config", *configPath,
		"log_level", cfg.App.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────
	if cfg.Metrics.Enabled {
		shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{})
		if err != nil {
			slog.Error("failed to initialise telemetry", "err", err)
			return 1
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdownTelemetry(flushCtx); err != nil {
				slog.Warn("telemetry shutdown error", "err", err)
			}
		}()
	}

	// ── Providers ─────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Application ───────────────────────────────────────────────────────
	application, err = app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	if *lessonID == "" {
		printLibrary(ctx, application)
		return 0
	}

	id, err := uuid.Parse(*lessonID)
	if err != nil {
		slog.Error("invalid lesson id", "lesson", *lessonID, "err", err)
		return 1
	}
	ctrl, err := application.OpenLesson(ctx, id)
	if err != nil {
		slog.Error("failed to open lesson", "lesson", id, "err", err)
		return 1
	}
	if err := ctrl.Play(ctx); err != nil {
		slog.Error("failed to start practicing", "err", err)
		return 1
	}

	slog.Info("practicing — press Ctrl+C to stop")

	if err := application.Run(ctx); err != nil {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the
// appropriate provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── STT ───────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		p, err := whisper.New(entry.BaseURL, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		p, err := whisper.NewNative(modelPath, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// ── TTS ───────────────────────────────────────────────────────────────

	reg.RegisterTTS("edge", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []edge.Option
		if entry.Voice != "" {
			opts = append(opts, edge.WithDefaultVoice(entry.Voice))
		}
		return edge.New(opts...), nil
	})
}

// buildProviders instantiates every provider named in cfg. Empty entries
// stay nil: the session runs without transcription, and lessons without
// recorded audio cannot be synthesised. Configured fallback entries wrap
// the primary in a failover chain with per-backend circuit breakers.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	p := &app.Providers{}

	if cfg.Providers.STT.Name != "" {
		primary, err := reg.CreateSTT(cfg.Providers.STT)
		if err != nil {
			return nil, fmt.Errorf("stt provider: %w", err)
		}
		p.STT = primary

		if len(cfg.Providers.STTFallbacks) > 0 {
			chain := resilience.NewSTTFallback(cfg.Providers.STT.Name, primary, resilience.BreakerConfig{})
			for _, entry := range cfg.Providers.STTFallbacks {
				fb, err := reg.CreateSTT(entry)
				if err != nil {
					return nil, fmt.Errorf("stt fallback provider: %w", err)
				}
				chain.Add(entry.Name, fb)
			}
			p.STT = chain
		}
	}

	if cfg.Providers.TTS.Name != "" {
		primary, err := reg.CreateTTS(cfg.Providers.TTS)
		if err != nil {
			return nil, fmt.Errorf("tts provider: %w", err)
		}
		p.TTS = primary

		if len(cfg.Providers.TTSFallbacks) > 0 {
			chain := resilience.NewTTSFallback(cfg.Providers.TTS.Name, primary, resilience.BreakerConfig{})
			for _, entry := range cfg.Providers.TTSFallbacks {
				fb, err := reg.CreateTTS(entry)
				if err != nil {
					return nil, fmt.Errorf("tts fallback provider: %w", err)
				}
				chain.Add(entry.Name, fb)
			}
			p.TTS = chain
		}
	}

	return p, nil
}

// printLibrary writes the channel and lesson listing to stdout.
func printLibrary(ctx context.Context, application *app.App) {
	st := application.Store()
	channels, err := st.Channels(ctx)
	if err != nil {
		slog.Error("failed to list channels", "err", err)
		return
	}
	if len(channels) == 0 {
		fmt.Println("library is empty — import lessons first")
		return
	}
	for _, ch := range channels {
		fmt.Printf("%s (%s)\n", ch.Title, ch.Language)
		lessons, err := st.LessonsByChannel(ctx, ch.ID)
		if err != nil {
			slog.Error("failed to list lessons", "channel", ch.Title, "err", err)
			continue
		}
		for _, l := range lessons {
			fmt.Printf("  %s  %s  (%d sentences, ~%s)\n",
				l.ID, l.Title, len(l.Sentences), l.EstimatedDuration().Round(time.Second))
		}
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map.
// Returns "" if the map is nil, the key is absent, or the value is not a
// string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
