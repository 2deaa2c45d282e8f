// Package whisper provides whisper.cpp-backed STT providers.
//
// Two implementations share the same segmentation front end:
//
//   - [Provider] talks to a running whisper-server binary over its REST API
//     (POST /inference). No CGO required.
//   - [NativeProvider] links whisper.cpp directly through its Go bindings,
//     loading the model once and inferring in-process.
//
// whisper.cpp is a batch engine, so neither can emit true low-latency
// partials. Instead each session buffers incoming PCM, segments utterances on
// energy dips, and submits each completed segment as one inference. Every
// recognised segment extends the utterance text, and each Updates value
// carries the full text so far; the session's closing update has IsFinal set.
//
// Usage:
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithLanguage("fr"))
//	handle, err := p.StartStream(ctx, cfg)
//	handle.SendAudio(pcmChunk)
//	tr := <-handle.Updates()
//	handle.Close()
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/voxloop/voxloop/pkg/audio"
	"github.com/voxloop/voxloop/pkg/provider/stt"
	"github.com/voxloop/voxloop/pkg/types"
)

const (
	// bitsPerSample is fixed at 16 for the signed little-endian PCM audio
	// that whisper.cpp expects.
	bitsPerSample = 16

	// defaultSegmentSilenceDB is the loudness below which a chunk counts as
	// silent for utterance segmentation. This is a coarser, faster gate than
	// the session-level end-of-speech detector; it only decides when a
	// segment is worth submitting for inference.
	defaultSegmentSilenceDB = -40.0

	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 500
	defaultMaxBufferDurationMs = 10_000
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the whisper-server (e.g.
// "base", "small"). When empty the server uses whichever model it was started
// with — this is the default.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the language code sent to the whisper-server (e.g. "en",
// "de", "fr"). Defaults to "en". A per-stream Language in StreamConfig takes
// precedence.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the default audio sample rate in Hz, used when a
// StreamConfig does not specify one. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (in
// milliseconds) that closes a segment and submits it for inference. Shorter
// values transcribe more responsively at the cost of splitting utterances.
// Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(p *Provider) { p.silenceThresholdMs = ms }
}

// WithMaxBufferDurationMs sets the maximum duration of audio (in
// milliseconds) that may accumulate before a segment is submitted regardless
// of silence. Bounds memory during continuous speech. Defaults to 10 000 ms.
func WithMaxBufferDurationMs(ms int) Option {
	return func(p *Provider) { p.maxBufferDurationMs = ms }
}

// Provider implements stt.Provider backed by a whisper-server HTTP endpoint.
// Multiple sessions may be open simultaneously; each session maintains its
// own buffer and goroutine.
type Provider struct {
	serverURL           string
	model               string
	language            string
	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
	httpClient          *http.Client
}

// New creates a Provider that connects to the whisper-server at serverURL
// (e.g. "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:           serverURL,
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
		httpClient:          &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// StartStream opens a new transcription session. The returned SessionHandle
// is ready to accept audio immediately; no network connection is established
// until the first segment is submitted.
func (p *Provider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}

	s := newSession(sessionConfig{
		language:            firstNonEmpty(cfg.Language, p.language),
		sampleRate:          firstPositive(cfg.SampleRate, p.sampleRate),
		channels:            firstPositive(cfg.Channels, 1),
		silenceThresholdMs:  p.silenceThresholdMs,
		maxBufferDurationMs: p.maxBufferDurationMs,
	}, p.infer)

	s.wg.Add(1)
	go s.processLoop(ctx)

	return s, nil
}

// infer encodes pcm as a WAV file and POSTs it to the whisper-server
// /inference endpoint as multipart/form-data.
func (p *Provider) infer(ctx context.Context, pcm []byte, sampleRate, channels int, language string) (string, error) {
	wav := encodeWAV(pcm, sampleRate, channels)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return "", fmt.Errorf("whisper: write wav data: %w", err)
	}
	if language != "" {
		if err := mw.WriteField("language", language); err != nil {
			return "", fmt.Errorf("whisper: write language field: %w", err)
		}
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("whisper: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper: %w: %w", stt.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("whisper: server returned HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("whisper: read response body: %w", err)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", fmt.Errorf("whisper: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Text), nil
}

// ---- session ----------------------------------------------------------------

// inferFunc runs one batch inference over a completed PCM segment. Both the
// HTTP and native providers plug in here; everything else about a session is
// shared.
type inferFunc func(ctx context.Context, pcm []byte, sampleRate, channels int, language string) (string, error)

type sessionConfig struct {
	language            string
	sampleRate          int
	channels            int
	silenceThresholdMs  int
	maxBufferDurationMs int
}

// session is a live whisper transcription session. It implements
// stt.SessionHandle. All mutable state that drives segmentation, buffering,
// and utterance accumulation is confined to the processLoop goroutine.
type session struct {
	cfg   sessionConfig
	infer inferFunc

	audioCh chan []byte
	updates chan types.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ stt.SessionHandle = (*session)(nil)

func newSession(cfg sessionConfig, infer inferFunc) *session {
	return &session{
		cfg:     cfg,
		infer:   infer,
		audioCh: make(chan []byte, 256),
		updates: make(chan types.Transcript, 64),
		done:    make(chan struct{}),
	}
}

// SendAudio queues a chunk of raw 16-bit little-endian signed PCM audio for
// segmentation. Calling SendAudio after Close returns an error.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return errors.New("whisper: session is closed")
	default:
	}
	select {
	case s.audioCh <- chunk:
		return nil
	case <-s.done:
		return errors.New("whisper: session is closed")
	}
}

// Updates returns the transcript channel. Each value carries the full
// utterance recognised so far; the channel is closed when the session ends.
func (s *session) Updates() <-chan types.Transcript { return s.updates }

// Close terminates the session, submits any pending speech audio for a last
// inference, emits the final cumulative transcript, and closes the Updates
// channel. Calling Close more than once is safe and returns nil.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

// processLoop is the single goroutine responsible for segmentation, audio
// buffering, inference dispatch, and utterance accumulation. Confining all
// mutable state here avoids the need for additional synchronisation.
func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.updates)

	var (
		buffer    []byte   // accumulated PCM for the current segment
		hadSpeech bool     // true once any high-energy chunk has been buffered
		silenceMs int      // consecutive silence accumulated after speech (ms)
		parts     []string // recognised segment texts for this utterance
	)

	bytesPerMs := s.cfg.sampleRate * s.cfg.channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		bytesPerMs = 32 // 16 kHz mono 16-bit
	}
	maxBufferBytes := s.cfg.maxBufferDurationMs * bytesPerMs

	// doFlush submits the current segment for inference and, when text comes
	// back, extends the utterance and emits a cumulative update. It resets
	// the segment state regardless of outcome.
	doFlush := func(flushCtx context.Context) {
		pcm := buffer
		ok := hadSpeech && len(pcm) > 0
		buffer = nil
		hadSpeech = false
		silenceMs = 0
		if !ok {
			return
		}

		text, err := s.infer(flushCtx, pcm, s.cfg.sampleRate, s.cfg.channels, s.cfg.language)
		if err != nil || text == "" {
			return
		}
		parts = append(parts, text)

		select {
		case s.updates <- types.Transcript{
			Text:       strings.Join(parts, " "),
			ReceivedAt: time.Now(),
		}:
		default:
			// Buffer full; a newer cumulative update will follow.
		}
	}

	// finish flushes the last segment under a fresh context (the caller's may
	// already be cancelled) and emits the final cumulative transcript.
	finish := func() {
		fc, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		doFlush(fc)

		if len(parts) == 0 {
			return
		}
		select {
		case s.updates <- types.Transcript{
			Text:       strings.Join(parts, " "),
			IsFinal:    true,
			ReceivedAt: time.Now(),
		}:
		default:
		}
	}

	for {
		select {
		case <-ctx.Done():
			finish()
			return

		case <-s.done:
			finish()
			return

		case chunk, ok := <-s.audioCh:
			if !ok {
				finish()
				return
			}

			chunkMs := chunkDurationMs(chunk, s.cfg.sampleRate, s.cfg.channels)

			if audio.LevelDBPCM16(chunk) < defaultSegmentSilenceDB {
				// Silent chunk: only relevant once speech has started.
				// Leading silence before any speech is discarded.
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, chunk...)
					if silenceMs >= s.cfg.silenceThresholdMs {
						doFlush(ctx)
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, chunk...)
				if maxBufferBytes > 0 && len(buffer) >= maxBufferBytes {
					doFlush(ctx)
				}
			}
		}
	}
}

// ---- helpers ----------------------------------------------------------------

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container suitable for direct inclusion in a multipart upload.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}

// chunkDurationMs returns the duration of a PCM audio chunk in milliseconds.
// Returns 0 for invalid inputs.
func chunkDurationMs(chunk []byte, sampleRate, channels int) int {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	bytesPerSec := sampleRate * channels * (bitsPerSample / 8)
	return len(chunk) * 1000 / bytesPerSec
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstPositive(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
