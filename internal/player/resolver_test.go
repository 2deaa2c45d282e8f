package player

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/voxloop/voxloop/internal/audiocache"
	"github.com/voxloop/voxloop/internal/lesson"
	ttsmock "github.com/voxloop/voxloop/pkg/provider/tts/mock"
	"github.com/voxloop/voxloop/pkg/types"
)

func newTestResolver(t *testing.T, synth *ttsmock.Provider) (*Resolver, *audiocache.Cache) {
	t.Helper()
	cache, err := audiocache.New(t.TempDir())
	if err != nil {
		t.Fatalf("audiocache.New: %v", err)
	}
	return NewResolver(cache, synth), cache
}

func TestResolve_RecordedClipGoesThroughCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("clip"))
	}))
	defer srv.Close()

	synth := ttsmock.New()
	r, _ := newTestResolver(t, synth)

	s := lesson.Sentence{Position: 0, Text: "hello", AudioLocator: srv.URL + "/clip.mp3"}
	path, err := r.Resolve(context.Background(), s)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "clip" {
		t.Fatalf("resolved file = %q, err %v", data, err)
	}
	if synth.CallCount() != 0 {
		t.Error("synthesis invoked for a sentence with a recorded clip")
	}
}

func TestResolve_TextOnlySynthesizesOnce(t *testing.T) {
	synth := ttsmock.New()
	synth.Audio = []byte("synthesized")
	r, _ := newTestResolver(t, synth)

	s := lesson.Sentence{
		Position: 2,
		Text:     "je voudrais un café",
		Voice:    types.VoiceProfile{Language: "fr"},
	}

	path1, err := r.Resolve(context.Background(), s)
	if err != nil {
		t.Fatalf("first Resolve: %v", err)
	}
	data, _ := os.ReadFile(path1)
	if string(data) != "synthesized" {
		t.Errorf("cached synth content = %q", data)
	}

	path2, err := r.Resolve(context.Background(), s)
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if path1 != path2 {
		t.Errorf("paths differ: %q vs %q", path1, path2)
	}
	if n := synth.CallCount(); n != 1 {
		t.Errorf("Synthesize called %d times; want 1", n)
	}
}

func TestResolve_DistinctVoicesCacheSeparately(t *testing.T) {
	synth := ttsmock.New()
	r, _ := newTestResolver(t, synth)

	base := lesson.Sentence{Position: 0, Text: "hola"}
	a := base
	a.Voice = types.VoiceProfile{ID: "es-ES-ElviraNeural"}
	b := base
	b.Voice = types.VoiceProfile{ID: "es-MX-DaliaNeural"}

	pa, err := r.Resolve(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	pb, err := r.Resolve(context.Background(), b)
	if err != nil {
		t.Fatal(err)
	}
	if pa == pb {
		t.Error("different voices resolved to the same cached clip")
	}
	if n := synth.CallCount(); n != 2 {
		t.Errorf("Synthesize called %d times; want 2", n)
	}
}

func TestResolve_SynthesisFailurePropagates(t *testing.T) {
	synth := ttsmock.New()
	synth.Err = errors.New("edge down")
	r, _ := newTestResolver(t, synth)

	_, err := r.Resolve(context.Background(), lesson.Sentence{Text: "hi"})
	if err == nil {
		t.Fatal("expected synthesis error")
	}
}

func TestResolve_NoAudioSource(t *testing.T) {
	r, _ := newTestResolver(t, ttsmock.New())
	_, err := r.Resolve(context.Background(), lesson.Sentence{})
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("err = %v; want ErrNoAudio", err)
	}
}

func TestResolve_NilSynthBackend(t *testing.T) {
	cache, err := audiocache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	r := NewResolver(cache, nil)

	_, err = r.Resolve(context.Background(), lesson.Sentence{Text: "hello"})
	if !errors.Is(err, ErrNoAudio) {
		t.Fatalf("err = %v; want ErrNoAudio", err)
	}
}
