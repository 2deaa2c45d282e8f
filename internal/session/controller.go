package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxloop/voxloop/internal/lesson"
	"github.com/voxloop/voxloop/internal/observe"
	"github.com/voxloop/voxloop/internal/player"
	"github.com/voxloop/voxloop/internal/score"
	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/audio/capture"
	"github.com/voxloop/voxloop/pkg/detect"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/types"
)

const (
	defaultPacingDelay = 500 * time.Millisecond
	defaultSampleRate  = 16000
	defaultChannels    = 1

	eventBufferSize = 64
	saveTimeout     = 2 * time.Second
)

// Config holds the dependencies and tuning for a Controller.
type Config struct {
	// Lesson is the sentence sequence to shadow. Required, must validate.
	Lesson lesson.Lesson

	// Player plays reference audio. Required.
	Player player.Player

	// Recorder captures microphone audio. Required.
	Recorder capture.Device

	// Detector signals when the learner finished speaking. Required.
	Detector detect.Detector

	// Transcriber streams the learner's speech to text. Optional; without
	// it sentences complete with an empty transcript and no score.
	Transcriber stt.Provider

	// Scorer compares the learner's transcript against the reference
	// text. Optional.
	Scorer *score.Scorer

	// Store persists lesson progress. Optional.
	Store ProgressStore

	// MicAuth gates microphone access. Defaults to GrantAll.
	MicAuth Authorizer

	// SpeechAuth gates speech recognition. A denial is not fatal: the
	// session runs without transcription. Defaults to GrantAll.
	SpeechAuth Authorizer

	// PacingDelay is the breathing room between finishing one sentence
	// and playing the next. Defaults to 500ms.
	PacingDelay time.Duration

	// SampleRate and Channels describe the capture format handed to the
	// transcriber. Default to 16000 and 1.
	SampleRate int
	Channels   int

	// Logger receives structured logs. Defaults to slog.Default().
	Logger *slog.Logger

	// Metrics records session telemetry. Optional.
	Metrics *observe.Metrics

	// NowFunc overrides the clock in tests.
	NowFunc func() time.Time
}

// sttBox wraps the active transcription handle so the capture callback can
// swap it atomically between sentences.
type sttBox struct {
	h        stt.SessionHandle
	openedAt time.Time
}

type eventKind int

const (
	evCommand eventKind = iota
	evPlayer
	evDetect
	evTranscript
	evPacing
)

type command int

const (
	cmdPlay command = iota
	cmdPause
	cmdNext
	cmdPrevious
	cmdRestart
	cmdInterruptBegan
	cmdInterruptEnded
	cmdRouteChanged
)

type event struct {
	kind  eventKind
	epoch uint64

	cmd   command
	ctx   context.Context
	reply chan error

	player     player.Event
	detect     detect.Event
	transcript types.Transcript
}

// Controller runs the shadowing loop for one lesson. All state transitions
// happen on a single internal goroutine fed by one event channel; commands
// block until that goroutine has applied them.
type Controller struct {
	cfg Config
	log *slog.Logger
	now func() time.Time

	runCtx context.Context
	cancel context.CancelFunc

	events    chan event
	closed    chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	stt atomic.Pointer[sttBox]

	// epoch invalidates async events from earlier sentences. Written only by
	// the run goroutine; the player pump loads it to stamp incoming events.
	epoch atomic.Uint64

	// Everything below is owned by the run goroutine.
	phase          Phase
	currentIndex   int
	active         bool
	interrupted    bool
	liveTranscript string
	transcripts    map[int]string
	scores         map[int]score.Result
	lastErr        error
	progress       lesson.Progress
	progressLoaded bool
	micAsked       bool
	micDenied      bool
	speechAsked    bool
	speechDenied   bool
	activeSince    time.Time
	listeningSince time.Time
	pacingTimer    *time.Timer

	snapMu sync.RWMutex
	snap   Snapshot
}

// New validates cfg, applies defaults and starts the controller's event
// loop. The returned Controller is idle; call Play to begin.
func New(cfg Config) (*Controller, error) {
	var errs []error
	if err := cfg.Lesson.Validate(); err != nil {
		errs = append(errs, err)
	}
	if cfg.Player == nil {
		errs = append(errs, errors.New("player is required"))
	}
	if cfg.Recorder == nil {
		errs = append(errs, errors.New("recorder is required"))
	}
	if cfg.Detector == nil {
		errs = append(errs, errors.New("detector is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("session: invalid config: %w", err)
	}

	if cfg.MicAuth == nil {
		cfg.MicAuth = GrantAll{}
	}
	if cfg.SpeechAuth == nil {
		cfg.SpeechAuth = GrantAll{}
	}
	if cfg.PacingDelay <= 0 {
		cfg.PacingDelay = defaultPacingDelay
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = defaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = defaultChannels
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NowFunc == nil {
		cfg.NowFunc = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		cfg:         cfg,
		log:         cfg.Logger.With("component", "session", "lesson_id", cfg.Lesson.ID),
		now:         cfg.NowFunc,
		runCtx:      ctx,
		cancel:      cancel,
		events:      make(chan event, eventBufferSize),
		closed:      make(chan struct{}),
		transcripts: make(map[int]string),
		scores:      make(map[int]score.Result),
		progress:    lesson.Progress{LessonID: cfg.Lesson.ID},
	}
	c.publish()

	c.wg.Add(3)
	go c.run()
	go c.pumpPlayer()
	go c.pumpDetector()
	return c, nil
}

// Play starts or resumes the session at the current sentence. The first
// call requests microphone and speech recognition permission; a microphone
// denial returns ErrPermissionDenied and is remembered, so later calls fail
// without prompting again. A speech recognition denial only disables
// transcription.
func (c *Controller) Play(ctx context.Context) error { return c.command(ctx, cmdPlay) }

// Pause stops playback, recording and transcription while keeping the
// current index and all committed transcripts. Play resumes from the same
// sentence. Pausing an inactive session is a no-op.
func (c *Controller) Pause(ctx context.Context) error { return c.command(ctx, cmdPause) }

// Next abandons the current sentence and moves forward one sentence. At
// the last sentence it is a no-op. If the session is active the new
// sentence plays immediately.
func (c *Controller) Next(ctx context.Context) error { return c.command(ctx, cmdNext) }

// Previous abandons the current sentence and moves back one sentence. At
// the first sentence it is a no-op.
func (c *Controller) Previous(ctx context.Context) error { return c.command(ctx, cmdPrevious) }

// Restart moves to the first sentence, clears all transcripts and scores,
// resets completion progress and starts playing.
func (c *Controller) Restart(ctx context.Context) error { return c.command(ctx, cmdRestart) }

// InterruptionBegan reports that the system interrupted audio, for example
// an incoming phone call. An active session pauses and stays paused until
// the learner explicitly resumes.
func (c *Controller) InterruptionBegan(ctx context.Context) error {
	return c.command(ctx, cmdInterruptBegan)
}

// InterruptionEnded reports that the interruption is over. The session does
// not auto-resume.
func (c *Controller) InterruptionEnded(ctx context.Context) error {
	return c.command(ctx, cmdInterruptEnded)
}

// RouteChanged reports that the audio route changed, for example headphones
// were unplugged. An active session pauses.
func (c *Controller) RouteChanged(ctx context.Context) error {
	return c.command(ctx, cmdRouteChanged)
}

// Close stops all activity, saves progress and shuts the event loop down.
// Injected dependencies are not closed; their owner retains that
// responsibility.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.cancel()
		c.wg.Wait()
	})
	return nil
}

func (c *Controller) command(ctx context.Context, cmd command) error {
	reply := make(chan error, 1)
	select {
	case c.events <- event{kind: evCommand, cmd: cmd, ctx: ctx, reply: reply}:
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-c.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) post(ev event) {
	select {
	case c.events <- ev:
	case <-c.closed:
	}
}

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.closed:
			c.shutdown()
			return
		}
	}
}

func (c *Controller) pumpPlayer() {
	defer c.wg.Done()
	for {
		select {
		case ev, ok := <-c.cfg.Player.Events():
			if !ok {
				return
			}
			c.post(event{kind: evPlayer, epoch: c.epoch.Load(), player: ev})
		case <-c.closed:
			return
		}
	}
}

func (c *Controller) pumpDetector() {
	defer c.wg.Done()
	for {
		select {
		case ev, ok := <-c.cfg.Detector.Events():
			if !ok {
				return
			}
			c.post(event{kind: evDetect, detect: ev})
		case <-c.closed:
			return
		}
	}
}

func (c *Controller) pumpTranscripts(epoch uint64, h stt.SessionHandle) {
	defer c.wg.Done()
	for {
		select {
		case t, ok := <-h.Updates():
			if !ok {
				return
			}
			c.post(event{kind: evTranscript, epoch: epoch, transcript: t})
		case <-c.closed:
			return
		}
	}
}

// onFrame runs on the capture device's goroutine for every audio frame.
// Level computation and detector feeding stay allocation free; only the
// transcriber gets a copy, since the device reuses the frame buffer.
func (c *Controller) onFrame(f types.AudioFrame) {
	if len(f.Data) == 0 {
		return
	}
	c.cfg.Detector.ProcessLevel(audio.LevelDBPCM16(f.Data))
	if box := c.stt.Load(); box != nil {
		buf := make([]byte, len(f.Data))
		copy(buf, f.Data)
		_ = box.h.SendAudio(buf)
	}
}

func (c *Controller) handle(ev event) {
	switch ev.kind {
	case evCommand:
		ev.reply <- c.handleCommand(ev)
	case evPlayer:
		c.handlePlayerEvent(ev)
	case evDetect:
		c.handleDetectEvent(ev.detect)
	case evTranscript:
		c.handleTranscript(ev)
	case evPacing:
		c.handlePacing(ev)
	}
	c.publish()
}

func (c *Controller) handleCommand(ev event) error {
	switch ev.cmd {
	case cmdPlay:
		if c.active {
			return nil
		}
		if err := c.ensureActive(ev.ctx); err != nil {
			return err
		}
		if err := c.enterSpeaking(); err != nil {
			c.lastErr = err
			c.forcePause()
			return err
		}
		return nil

	case cmdPause:
		if !c.active {
			return nil
		}
		c.forcePause()
		return nil

	case cmdNext:
		if c.currentIndex >= len(c.cfg.Lesson.Sentences)-1 {
			return nil
		}
		c.stopSentenceActivity()
		c.currentIndex++
		return c.reenterIfActive()

	case cmdPrevious:
		if c.currentIndex <= 0 {
			return nil
		}
		c.stopSentenceActivity()
		c.currentIndex--
		return c.reenterIfActive()

	case cmdRestart:
		c.stopSentenceActivity()
		c.currentIndex = 0
		c.liveTranscript = ""
		clear(c.transcripts)
		clear(c.scores)
		c.progress = c.progress.Reset()
		c.saveProgress()
		c.lastErr = nil
		if !c.active {
			if err := c.ensureActive(ev.ctx); err != nil {
				return err
			}
		}
		if err := c.enterSpeaking(); err != nil {
			c.lastErr = err
			c.forcePause()
			return err
		}
		return nil

	case cmdInterruptBegan:
		if c.active {
			c.forcePause()
			c.interrupted = true
			c.log.Info("session paused by audio interruption")
		}
		return nil

	case cmdInterruptEnded:
		// Resuming is the learner's call, never automatic.
		return nil

	case cmdRouteChanged:
		if c.active {
			c.forcePause()
			c.log.Info("session paused by audio route change")
		}
		return nil

	default:
		return fmt.Errorf("session: unknown command %d", ev.cmd)
	}
}

// ensureActive acquires permissions, loads stored progress on the first
// run and starts the microphone. It leaves the controller active but does
// not enter a phase.
func (c *Controller) ensureActive(ctx context.Context) error {
	if c.micDenied {
		return ErrPermissionDenied
	}
	if !c.micAsked {
		granted, err := c.cfg.MicAuth.Request(ctx)
		if err != nil {
			return fmt.Errorf("session: microphone permission: %w", err)
		}
		c.micAsked = true
		if !granted {
			c.micDenied = true
			return ErrPermissionDenied
		}
	}
	if !c.speechAsked && c.cfg.Transcriber != nil {
		granted, err := c.cfg.SpeechAuth.Request(ctx)
		c.speechAsked = true
		if err != nil || !granted {
			c.speechDenied = true
			c.log.Warn("speech recognition unavailable, continuing without transcription",
				"granted", granted, "error", err)
		}
	}
	if !c.progressLoaded {
		c.loadProgress(ctx)
	}

	if err := c.cfg.Recorder.Start(c.onFrame); err != nil {
		return fmt.Errorf("session: start recorder: %w: %w", ErrResourceUnavailable, err)
	}
	c.active = true
	c.interrupted = false
	c.lastErr = nil
	c.activeSince = c.now()
	c.cfg.Metrics.AddActiveSessions(c.runCtx, 1)
	return nil
}

// enterSpeaking begins the current sentence: transcription and recording
// run from the first instant of reference playback so the learner may
// shadow simultaneously, while the end-of-speech detector stays disabled
// until playback ends.
func (c *Controller) enterSpeaking() error {
	c.epoch.Add(1)
	c.phase = PhaseSpeaking
	c.liveTranscript = ""
	c.cfg.Detector.Reset()
	c.cfg.Detector.SetEnabled(false)
	c.startTranscription()

	sentence, ok := c.cfg.Lesson.SentenceAt(c.currentIndex)
	if !ok {
		return fmt.Errorf("session: no sentence at index %d", c.currentIndex)
	}
	if err := c.cfg.Player.Play(c.runCtx, sentence); err != nil {
		c.cfg.Metrics.RecordProviderError(c.runCtx, "player")
		return fmt.Errorf("session: play sentence %d: %w: %w", c.currentIndex, ErrResourceUnavailable, err)
	}
	c.log.Debug("speaking", "index", c.currentIndex, "phase", c.phase)
	return nil
}

func (c *Controller) startTranscription() {
	c.detachTranscription()
	if c.cfg.Transcriber == nil || c.speechDenied {
		return
	}
	h, err := c.cfg.Transcriber.StartStream(c.runCtx, stt.StreamConfig{
		SampleRate: c.cfg.SampleRate,
		Channels:   c.cfg.Channels,
		Language:   c.cfg.Lesson.Language,
	})
	if err != nil {
		// Transcription failures never abort a sentence; it simply
		// completes with an empty transcript.
		c.cfg.Metrics.RecordProviderError(c.runCtx, "stt")
		c.log.Warn("transcription unavailable for sentence", "index", c.currentIndex, "error", err)
		return
	}
	c.stt.Store(&sttBox{h: h, openedAt: c.now()})
	c.wg.Add(1)
	go c.pumpTranscripts(c.epoch.Load(), h)
}

// detachTranscription swaps the live handle out so the capture callback
// stops feeding it, then closes it off the event loop because closing may
// block on a final inference flush.
func (c *Controller) detachTranscription() {
	box := c.stt.Swap(nil)
	if box == nil {
		return
	}
	c.cfg.Metrics.RecordTranscriptionDuration(c.runCtx, c.now().Sub(box.openedAt))
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := box.h.Close(); err != nil {
			c.log.Debug("close transcription stream", "error", err)
		}
	}()
}

// stopSentenceActivity tears down everything tied to the current sentence
// and invalidates outstanding async events for it.
func (c *Controller) stopSentenceActivity() {
	c.epoch.Add(1)
	c.stopPacing()
	_ = c.cfg.Player.Stop()
	c.detachTranscription()
	c.cfg.Detector.SetEnabled(false)
	c.cfg.Detector.Reset()
	c.liveTranscript = ""
}

func (c *Controller) reenterIfActive() error {
	if !c.active {
		c.phase = PhaseIdle
		return nil
	}
	if err := c.enterSpeaking(); err != nil {
		c.lastErr = err
		c.forcePause()
		return err
	}
	return nil
}

// forcePause is the single path into the paused state: every failure and
// every manual pause lands here so the session is always left clean.
func (c *Controller) forcePause() {
	c.stopSentenceActivity()
	if err := c.cfg.Recorder.Stop(); err != nil {
		c.log.Warn("stop recorder", "error", err)
	}
	if c.active {
		c.progress = c.progress.AddPracticeTime(c.now().Sub(c.activeSince))
		c.saveProgress()
		c.cfg.Metrics.AddActiveSessions(c.runCtx, -1)
	}
	c.active = false
	c.phase = PhaseIdle
}

func (c *Controller) handlePlayerEvent(ev event) {
	pe := ev.player
	// The epoch check rejects events from a clip that was stopped before
	// this one started, even when both play the same sentence index.
	if ev.epoch != c.epoch.Load() || pe.Position != c.currentIndex {
		return
	}
	switch pe.Kind {
	case player.EventFinished:
		if !c.active || c.phase != PhaseSpeaking {
			return
		}
		// AwaitingUser exists so enabling the detector is its own
		// observable step; listening follows immediately.
		c.phase = PhaseAwaitingUser
		c.cfg.Detector.SetEnabled(true)
		c.publish()
		c.phase = PhaseListening
		c.listeningSince = c.now()
		c.log.Debug("listening", "index", c.currentIndex)

	case player.EventFailed:
		if !c.active || c.phase != PhaseSpeaking {
			return
		}
		c.cfg.Metrics.RecordProviderError(c.runCtx, "player")
		c.lastErr = fmt.Errorf("session: playback of sentence %d: %w", c.currentIndex, pe.Err)
		c.log.Error("playback failed", "index", c.currentIndex, "error", pe.Err)
		c.forcePause()
	}
}

func (c *Controller) handleDetectEvent(de detect.Event) {
	if de != detect.EventEndOfSpeech {
		return
	}
	if !c.active || c.phase != PhaseListening {
		return
	}
	c.completeSentence()
}

// completeSentence commits the transcript for the current sentence, marks
// it complete and either finishes the session or schedules the next
// sentence after the pacing delay.
func (c *Controller) completeSentence() {
	c.phase = PhaseTransitioning
	c.transcripts[c.currentIndex] = c.liveTranscript
	if c.cfg.Scorer != nil && c.liveTranscript != "" {
		if sentence, ok := c.cfg.Lesson.SentenceAt(c.currentIndex); ok {
			c.scores[c.currentIndex] = c.cfg.Scorer.Compare(sentence.Text, c.liveTranscript)
		}
	}
	c.detachTranscription()
	c.cfg.Detector.SetEnabled(false)

	c.progress = c.progress.Advance(c.currentIndex, c.now())
	c.saveProgress()
	c.cfg.Metrics.RecordSentenceCompleted(c.runCtx)
	if !c.listeningSince.IsZero() {
		c.cfg.Metrics.RecordListeningDuration(c.runCtx, c.now().Sub(c.listeningSince))
	}
	c.log.Info("sentence complete", "index", c.currentIndex, "transcript_len", len(c.liveTranscript))

	if c.currentIndex >= len(c.cfg.Lesson.Sentences)-1 {
		c.finishSession()
		return
	}

	c.currentIndex++
	c.epoch.Add(1)
	c.liveTranscript = ""
	ep := c.epoch.Load()
	c.stopPacing()
	c.pacingTimer = time.AfterFunc(c.cfg.PacingDelay, func() {
		c.post(event{kind: evPacing, epoch: ep})
	})
}

// finishSession ends the session after the last sentence, keeping the
// index on that sentence.
func (c *Controller) finishSession() {
	c.stopSentenceActivity()
	if err := c.cfg.Recorder.Stop(); err != nil {
		c.log.Warn("stop recorder", "error", err)
	}
	c.progress = c.progress.AddPracticeTime(c.now().Sub(c.activeSince))
	c.saveProgress()
	c.cfg.Metrics.AddActiveSessions(c.runCtx, -1)
	c.active = false
	c.phase = PhaseIdle
	c.log.Info("session complete",
		"sentences", len(c.cfg.Lesson.Sentences),
		"practice_time", c.progress.PracticeTime)
}

func (c *Controller) handlePacing(ev event) {
	if ev.epoch != c.epoch.Load() || !c.active || c.phase != PhaseTransitioning {
		return
	}
	if err := c.enterSpeaking(); err != nil {
		c.lastErr = err
		c.forcePause()
	}
}

func (c *Controller) handleTranscript(ev event) {
	if ev.epoch != c.epoch.Load() {
		return
	}
	switch c.phase {
	case PhaseSpeaking, PhaseAwaitingUser, PhaseListening:
	default:
		return
	}
	c.liveTranscript = ev.transcript.Text
	c.cfg.Detector.ObserveTranscript(ev.transcript)
}

func (c *Controller) stopPacing() {
	if c.pacingTimer != nil {
		c.pacingTimer.Stop()
		c.pacingTimer = nil
	}
}

func (c *Controller) loadProgress(ctx context.Context) {
	c.progressLoaded = true
	if c.cfg.Store == nil {
		return
	}
	p, err := c.cfg.Store.LoadProgress(ctx, c.cfg.Lesson.ID)
	if err != nil {
		c.log.Warn("load progress", "error", err)
		return
	}
	if p.LessonID != c.cfg.Lesson.ID {
		p.LessonID = c.cfg.Lesson.ID
	}
	c.progress = p
	if n := len(c.cfg.Lesson.Sentences); p.LastIndex >= 0 && p.LastIndex < n {
		c.currentIndex = p.LastIndex
	}
}

func (c *Controller) saveProgress() {
	if c.cfg.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := c.cfg.Store.SaveProgress(ctx, c.progress); err != nil {
		c.log.Warn("save progress", "error", err)
	}
}

func (c *Controller) shutdown() {
	c.stopSentenceActivity()
	if err := c.cfg.Recorder.Stop(); err != nil {
		c.log.Warn("stop recorder", "error", err)
	}
	if c.active {
		c.progress = c.progress.AddPracticeTime(c.now().Sub(c.activeSince))
		c.saveProgress()
		c.cfg.Metrics.AddActiveSessions(c.runCtx, -1)
		c.active = false
	}
	c.phase = PhaseIdle
	c.publish()
}
