package audiocache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

func newTestCache(t *testing.T, opts ...Option) *Cache {
	t.Helper()
	c, err := New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_EmptyDir_ReturnsError(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestFetch_DownloadsOnceAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	c := newTestCache(t)
	url := srv.URL + "/clips/sentence1.mp3"

	if c.Has(url) {
		t.Error("Has reported true before first fetch")
	}

	path1, err := c.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	data, err := os.ReadFile(path1)
	if err != nil || string(data) != "mp3-bytes" {
		t.Fatalf("cached file content = %q, err %v", data, err)
	}
	if filepath.Ext(path1) != ".mp3" {
		t.Errorf("cached file extension = %q; want .mp3", filepath.Ext(path1))
	}

	path2, err := c.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if path1 != path2 {
		t.Errorf("paths differ across fetches: %q vs %q", path1, path2)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hit %d times; want 1", n)
	}
	if !c.Has(url) {
		t.Error("Has reported false after fetch")
	}
}

func TestFetch_Non2xx_ReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	c := newTestCache(t)
	if _, err := c.Fetch(context.Background(), srv.URL+"/missing.mp3"); err == nil {
		t.Fatal("expected error for 404 response")
	}
	if c.Has(srv.URL + "/missing.mp3") {
		t.Error("failed download left a cache entry")
	}
}

func TestFetch_LocalPathPassesThrough(t *testing.T) {
	c := newTestCache(t)

	local := filepath.Join(t.TempDir(), "clip.mp3")
	if err := os.WriteFile(local, []byte("local"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := c.Fetch(context.Background(), local)
	if err != nil {
		t.Fatalf("Fetch local: %v", err)
	}
	if got != local {
		t.Errorf("Fetch returned %q; want the local path unchanged", got)
	}

	if _, err := c.Fetch(context.Background(), filepath.Join(t.TempDir(), "absent.mp3")); err == nil {
		t.Error("expected error for missing local file")
	}
}

func TestFetch_EmptyLocator_ReturnsError(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Fetch(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty locator")
	}
}

func TestPut_StoresSynthesizedAudio(t *testing.T) {
	c := newTestCache(t)

	path, err := c.Put("tts:fr:bonjour tout le monde", []byte("synth"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "synth" {
		t.Fatalf("stored content = %q, err %v", data, err)
	}
	if !c.Has("tts:fr:bonjour tout le monde") {
		t.Error("Has reported false after Put")
	}

	// Same locator resolves without any network.
	got, err := c.Fetch(context.Background(), "tts:fr:bonjour tout le monde")
	if err != nil || got != path {
		t.Errorf("Fetch after Put = %q, err %v; want %q", got, err, path)
	}
}

func TestSizeAndClear(t *testing.T) {
	c := newTestCache(t)

	if _, err := c.Put("a", []byte("12345")); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Put("b", []byte("123")); err != nil {
		t.Fatal(err)
	}

	size, err := c.Size()
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 8 {
		t.Errorf("Size = %d; want 8", size)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	size, err = c.Size()
	if err != nil {
		t.Fatalf("Size after Clear: %v", err)
	}
	if size != 0 {
		t.Errorf("Size after Clear = %d; want 0", size)
	}
	if c.Has("a") {
		t.Error("entry survived Clear")
	}
}

func TestPathFor_DistinctLocators(t *testing.T) {
	c := newTestCache(t)
	if c.pathFor("http://x/a.mp3") == c.pathFor("http://x/b.mp3") {
		t.Error("distinct locators mapped to the same cache file")
	}
	if filepath.Ext(c.pathFor("http://x/clip.wav")) != ".wav" {
		t.Error("locator extension not preserved")
	}
}
