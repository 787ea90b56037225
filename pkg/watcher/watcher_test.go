package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/wouteroostervld/atlas/pkg/filter"
)

func TestNew(t *testing.T) {
	w, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer w.Close()

	if w.debounce != 2*time.Second {
		t.Errorf("debounce = %v, want 2s", w.debounce)
	}
}

func TestWatchRegistersSubdirectories(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"src/pkg", "docs", "node_modules/dep"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatal(err)
		}
	}

	w, err := New(&Config{Filter: filter.New(filter.Rules{Exclude: []string{"node_modules"}})})
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(root); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	// root, src, src/pkg, docs
	if got := w.WatchedDirs(); got != 4 {
		t.Errorf("watched dirs = %d, want 4", got)
	}

	if err := w.Watch(root); err != nil {
		t.Errorf("second Watch failed: %v", err)
	}
	if len(w.Watched()) != 1 {
		t.Error("watching the same tree twice should not duplicate")
	}
}

func TestWatchRejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(f, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	w, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(f); err == nil {
		t.Error("expected error watching a regular file")
	}
}

func TestUnwatch(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	w, err := New(nil)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}
	if err := w.Unwatch(root); err != nil {
		t.Errorf("Unwatch failed: %v", err)
	}
	if len(w.Watched()) != 0 || w.WatchedDirs() != 0 {
		t.Errorf("expected nothing watched, got %v / %d dirs", w.Watched(), w.WatchedDirs())
	}
}

func startWatcher(t *testing.T, root string, cfg *Config) chan string {
	t.Helper()
	changes := make(chan string, 10)
	cfg.OnChange = func(r string) { changes <- r }

	w, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { w.Close() })

	if err := w.Watch(root); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	go w.Start(ctx)
	return changes
}

func TestChangeReportsRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src"), 0755); err != nil {
		t.Fatal(err)
	}
	changes := startWatcher(t, root, &Config{DebounceDelay: 50 * time.Millisecond})

	if err := os.WriteFile(filepath.Join(root, "src", "main.py"), []byte("print(1)"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-changes:
		if got != root {
			t.Errorf("got change for %s, want %s", got, root)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for change")
	}
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	changes := startWatcher(t, root, &Config{DebounceDelay: 50 * time.Millisecond})

	if err := os.Mkdir(filepath.Join(root, "lib"), 0755); err != nil {
		t.Fatal(err)
	}
	select {
	case <-changes:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for directory creation")
	}

	if err := os.WriteFile(filepath.Join(root, "lib", "x.py"), []byte("x = 1"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-changes:
		if got != root {
			t.Errorf("got %s, want %s", got, root)
		}
	case <-time.After(2 * time.Second):
		t.Error("write inside new directory was not observed")
	}
}

func TestFilteredFilesIgnored(t *testing.T) {
	root := t.TempDir()
	changes := startWatcher(t, root, &Config{
		DebounceDelay: 50 * time.Millisecond,
		Filter:        filter.New(filter.Rules{Extensions: []string{".py"}}),
	})

	if err := os.WriteFile(filepath.Join(root, "notes.bin"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-changes:
		t.Errorf("unexpected change for %s", got)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDebounce(t *testing.T) {
	root := t.TempDir()
	changes := startWatcher(t, root, &Config{DebounceDelay: 100 * time.Millisecond})

	for i := range 5 {
		os.WriteFile(filepath.Join(root, "test.txt"), []byte(string(rune('a'+i))), 0600)
		time.Sleep(20 * time.Millisecond)
	}

	eventCount := 0
	timeout := time.After(500 * time.Millisecond)
loop:
	for {
		select {
		case <-changes:
			eventCount++
		case <-timeout:
			break loop
		}
	}

	if eventCount != 1 {
		t.Errorf("expected 1 debounced event, got %d", eventCount)
	}
}
