package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxloop.yaml")
	writeConfigFile(t, path, "app:\n  log_level: info\n")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().App.LogLevel; got != LogInfo {
		t.Errorf("initial log level = %q, want info", got)
	}
}

func TestWatcher_InitialLoadFailsOnInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxloop.yaml")
	writeConfigFile(t, path, "app:\n  log_level: loud\n")

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxloop.yaml")
	writeConfigFile(t, path, "app:\n  log_level: info\n")

	var mu sync.Mutex
	var gotNew *Config
	onChange := func(old, new *Config) {
		mu.Lock()
		gotNew = new
		mu.Unlock()
	}

	w, err := NewWatcher(path, onChange, WithInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Backdated mtimes can round to the same value on coarse filesystems;
	// set it explicitly to a distinct time.
	writeConfigFile(t, path, "app:\n  log_level: debug\n")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := gotNew != nil
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotNew == nil {
		t.Fatal("onChange was never called")
	}
	if gotNew.App.LogLevel != LogDebug {
		t.Errorf("new log level = %q, want debug", gotNew.App.LogLevel)
	}
	if w.Current().App.LogLevel != LogDebug {
		t.Errorf("Current() not updated")
	}
}

func TestWatcher_KeepsOldConfigOnInvalidEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxloop.yaml")
	writeConfigFile(t, path, "app:\n  log_level: info\n")

	called := false
	w, err := NewWatcher(path, func(old, new *Config) { called = true },
		WithInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	writeConfigFile(t, path, "app:\n  log_level: loud\n")
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	if called {
		t.Error("onChange must not fire for an invalid config")
	}
	if got := w.Current().App.LogLevel; got != LogInfo {
		t.Errorf("Current() = %q, want the old config to survive", got)
	}
}
