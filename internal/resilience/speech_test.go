package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voxloop/voxloop/pkg/provider/stt"
	sttmock "github.com/voxloop/voxloop/pkg/provider/stt/mock"
	ttsmock "github.com/voxloop/voxloop/pkg/provider/tts/mock"
	"github.com/voxloop/voxloop/pkg/types"
)

func TestSTTFallback_PrimaryHealthy(t *testing.T) {
	primary := sttmock.New()
	fallback := sttmock.New()

	f := NewSTTFallback("primary", primary, BreakerConfig{})
	f.Add("fallback", fallback)

	h, err := f.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer h.Close()

	if len(primary.StartCalls) != 1 {
		t.Fatalf("primary StartCalls = %d, want 1", len(primary.StartCalls))
	}
	if len(fallback.StartCalls) != 0 {
		t.Fatalf("fallback StartCalls = %d, want 0", len(fallback.StartCalls))
	}
}

func TestSTTFallback_FailsOverOnStartError(t *testing.T) {
	primary := sttmock.New()
	primary.StartErr = stt.ErrUnavailable
	fallback := sttmock.New()

	f := NewSTTFallback("primary", primary, BreakerConfig{})
	f.Add("fallback", fallback)

	h, err := f.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer h.Close()

	if len(fallback.StartCalls) != 1 {
		t.Fatalf("fallback StartCalls = %d, want 1", len(fallback.StartCalls))
	}
	if fallback.LastSession() == nil {
		t.Fatal("session did not come from the fallback backend")
	}
}

func TestSTTFallback_AllDown(t *testing.T) {
	primary := sttmock.New()
	primary.StartErr = stt.ErrUnavailable
	fallback := sttmock.New()
	fallback.StartErr = stt.ErrUnavailable

	f := NewSTTFallback("primary", primary, BreakerConfig{})
	f.Add("fallback", fallback)

	_, err := f.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
}

func TestSTTFallback_TrippedPrimaryIsSkipped(t *testing.T) {
	primary := sttmock.New()
	primary.StartErr = stt.ErrUnavailable
	fallback := sttmock.New()

	f := NewSTTFallback("primary", primary, BreakerConfig{Trip: 2, CoolOff: time.Hour})
	f.Add("fallback", fallback)

	for range 4 {
		h, err := f.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
		if err != nil {
			t.Fatalf("StartStream: %v", err)
		}
		h.Close()
	}

	if len(primary.StartCalls) != 2 {
		t.Fatalf("primary StartCalls = %d, want 2 (breaker should trip)", len(primary.StartCalls))
	}
	if len(fallback.StartCalls) != 4 {
		t.Fatalf("fallback StartCalls = %d, want 4", len(fallback.StartCalls))
	}
}

func TestTTSFallback_FailsOverOnSynthesisError(t *testing.T) {
	primary := ttsmock.New()
	primary.Err = errors.New("rate limited")
	fallback := ttsmock.New()
	fallback.Audio = []byte("fallback-audio")

	f := NewTTSFallback("primary", primary, BreakerConfig{})
	f.Add("fallback", fallback)

	audio, err := f.Synthesize(context.Background(), "bonjour", types.VoiceProfile{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio) != "fallback-audio" {
		t.Fatalf("audio = %q, want fallback-audio", audio)
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary calls = %d, want 1", primary.CallCount())
	}
}

func TestTTSFallback_VoicesFromHealthyBackend(t *testing.T) {
	primary := ttsmock.New()
	primary.VoiceList = []types.VoiceProfile{{ID: "en-US-AriaNeural", Language: "en"}}

	f := NewTTSFallback("primary", primary, BreakerConfig{})

	voices, err := f.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices: %v", err)
	}
	if len(voices) != 1 || voices[0].ID != "en-US-AriaNeural" {
		t.Fatalf("voices = %v", voices)
	}
}
