// Package app wires all Voxloop subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the metrics endpoint until the context is
// cancelled, and Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithPlayer, WithRecorder, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/voxloop/voxloop/internal/audiocache"
	"github.com/voxloop/voxloop/internal/config"
	"github.com/voxloop/voxloop/internal/health"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/player"
	"github.com/voxloop/voxloop/internal/score"
	"github.com/voxloop/voxloop/internal/session"
	"github.com/voxloop/voxloop/internal/store"
	"github.com/voxloop/voxloop/pkg/audio/capture"
	"github.com/voxloop/voxloop/pkg/detect"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/provider/tts"
)

const defaultStorePath = "voxloop.db"

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	STT stt.Provider
	TTS tts.Provider
}

// App owns all subsystem lifetimes for the shadowing trainer.
type App struct {
	cfg       *config.Config
	providers *Providers
	log       *slog.Logger

	store    *store.Store
	cache    *audiocache.Cache
	player   player.Player
	recorder capture.Device
	detector detect.Detector
	metrics  *observe.Metrics
	scorer   *score.Scorer

	mu     sync.Mutex
	active *session.Controller

	// closers are called in reverse order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
	stopErr  error
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a lesson store instead of opening the configured
// SQLite file.
func WithStore(s *store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithCache injects an audio cache instead of creating one from config.
func WithCache(c *audiocache.Cache) Option {
	return func(a *App) { a.cache = c }
}

// WithPlayer injects a player instead of opening the default audio output.
func WithPlayer(p player.Player) Option {
	return func(a *App) { a.player = p }
}

// WithRecorder injects a capture device instead of opening the default
// microphone.
func WithRecorder(d capture.Device) Option {
	return func(a *App) { a.recorder = d }
}

// WithDetector injects an end-of-speech detector instead of building one
// from config.
func WithDetector(d detect.Detector) Option {
	return func(a *App) { a.detector = d }
}

// WithMetrics injects a metrics instance instead of the global default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers
// struct comes from main.go (populated via the config registry). Use
// Option functions to inject test doubles for any subsystem.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		log:       slog.Default().With("component", "app"),
		scorer:    score.New(),
	}
	for _, o := range opts {
		o(a)
	}

	if a.store == nil {
		path := cfg.Store.Path
		if path == "" {
			path = defaultStorePath
		}
		st, err := store.New(ctx, path)
		if err != nil {
			return nil, err
		}
		a.store = st
		a.closers = append(a.closers, st.Close)
	}

	if a.metrics == nil && cfg.Metrics.Enabled {
		a.metrics = observe.DefaultMetrics()
	}

	if a.cache == nil {
		dir := cfg.Cache.Dir
		if dir == "" {
			base, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("app: resolve cache dir: %w", err)
			}
			dir = filepath.Join(base, "voxloop")
		}
		cache, err := audiocache.New(dir, audiocache.WithMetrics(a.metrics))
		if err != nil {
			return nil, err
		}
		a.cache = cache
	}

	if a.player == nil {
		resolver := player.NewResolver(a.cache, providers.TTS,
			player.WithResolverMetrics(a.metrics))
		p, err := player.NewPortAudio(resolver)
		if err != nil {
			return nil, err
		}
		a.player = p
		a.closers = append(a.closers, p.Close)
	}

	if a.recorder == nil {
		var captureOpts []capture.PortAudioOption
		if cfg.Audio.SampleRate > 0 {
			captureOpts = append(captureOpts, capture.WithSampleRate(cfg.Audio.SampleRate))
		}
		if cfg.Audio.SampleRate > 0 && cfg.Audio.FrameDurationMs > 0 {
			frames := cfg.Audio.SampleRate * cfg.Audio.FrameDurationMs / 1000
			captureOpts = append(captureOpts, capture.WithFramesPerBuffer(frames))
		}
		dev, err := capture.NewPortAudio(captureOpts...)
		if err != nil {
			return nil, err
		}
		a.recorder = dev
	}

	if a.detector == nil {
		det, err := detect.New(cfg.Detector.DetectConfig(cfg.Audio))
		if err != nil {
			return nil, err
		}
		a.detector = det
		a.closers = append(a.closers, det.Close)
	}

	return a, nil
}

// Store exposes the lesson library for import tooling and UIs.
func (a *App) Store() *store.Store { return a.store }

// OpenLesson loads the lesson with the given id and builds a session
// controller for it, closing any previously open one. The controller is
// idle; call its Play method to begin practicing.
func (a *App) OpenLesson(ctx context.Context, id uuid.UUID) (*session.Controller, error) {
	lsn, err := a.store.Lesson(ctx, id)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.active != nil {
		if err := a.active.Close(); err != nil {
			a.log.Warn("close previous session", "error", err)
		}
		a.active = nil
	}

	ctrl, err := session.New(session.Config{
		Lesson:      lsn,
		Player:      a.player,
		Recorder:    a.recorder,
		Detector:    a.detector,
		Transcriber: a.providers.STT,
		Scorer:      a.scorer,
		Store:       a.store,
		PacingDelay: a.cfg.Session.PacingDelay(),
		SampleRate:  a.cfg.Audio.SampleRate,
		Channels:    a.cfg.Audio.Channels,
		Metrics:     a.metrics,
	})
	if err != nil {
		return nil, err
	}
	a.active = ctrl
	a.log.Info("lesson opened", "lesson_id", id, "title", lsn.Title, "sentences", len(lsn.Sentences))
	return ctrl, nil
}

// Controller returns the currently open session controller, or nil.
func (a *App) Controller() *session.Controller {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Run serves the metrics endpoint (when enabled) until ctx is cancelled.
// It returns nil on a clean context cancellation.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		health.New(
			health.Check{Name: "store", Probe: a.store.Ping},
		).Register(mux)
		srv := &http.Server{
			Addr:              a.cfg.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			a.log.Info("metrics endpoint listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	} else {
		g.Go(func() error {
			<-gctx.Done()
			return nil
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown closes the active session and all owned subsystems in reverse
// creation order. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	a.stopOnce.Do(func() {
		a.mu.Lock()
		if a.active != nil {
			if err := a.active.Close(); err != nil {
				a.stopErr = errors.Join(a.stopErr, err)
			}
			a.active = nil
		}
		a.mu.Unlock()

		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				a.stopErr = errors.Join(a.stopErr, err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return a.stopErr
}

// ApplyConfigChange reacts to a hot-reloaded configuration. Detector and
// pacing changes take effect the next time a lesson is opened; only the
// change is logged here.
func (a *App) ApplyConfigChange(d config.ConfigDiff, cfg *config.Config) {
	if d.Empty() {
		return
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	if d.DetectorChanged {
		a.log.Info("detector tuning changed; applies to the next opened lesson")
	}
	if d.PacingChanged {
		a.log.Info("pacing delay changed; applies to the next opened lesson",
			"pacing_delay", cfg.Session.PacingDelay())
	}
}
