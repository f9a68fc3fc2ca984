package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path, target string) {
	t.Helper()
	yaml := `
languages:
  spoken: en
  target: ` + target + `
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxlate.yaml")
	writeConfig(t, path, "de")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Languages.Target; got != "de" {
		t.Errorf("target = %q, want de", got)
	}
}

func TestWatcherInitialLoadFailsOnInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxlate.yaml")
	if err := os.WriteFile(path, []byte("languages: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("invalid initial config accepted")
	}
}

func TestWatcherDetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxlate.yaml")
	writeConfig(t, path, "de")

	var (
		mu     sync.Mutex
		oldTgt string
		newTgt string
	)
	onChange := func(old, new *Config) {
		mu.Lock()
		defer mu.Unlock()
		oldTgt = old.Languages.Target
		newTgt = new.Languages.Target
	}

	w, err := NewWatcher(path, onChange, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Ensure the mtime moves even on coarse filesystem clocks.
	writeConfig(t, path, "fr")
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := newTgt == "fr"
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if oldTgt != "de" || newTgt != "fr" {
		t.Errorf("onChange saw %q -> %q, want de -> fr", oldTgt, newTgt)
	}
	if got := w.Current().Languages.Target; got != "fr" {
		t.Errorf("Current target = %q, want fr", got)
	}
}

func TestWatcherKeepsOldConfigOnInvalidReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxlate.yaml")
	writeConfig(t, path, "de")

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte("languages: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	time.Sleep(100 * time.Millisecond)

	if got := w.Current().Languages.Target; got != "de" {
		t.Errorf("target = %q after invalid reload, want de", got)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxlate.yaml")
	writeConfig(t, path, "de")

	w, err := NewWatcher(path, nil)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	w.Stop()
	w.Stop()
}
