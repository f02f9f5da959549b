package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDeliversPlanChanges(t *testing.T) {
	dir := t.TempDir()
	seen := make(chan string, 8)
	w, err := New(dir, func(path string) { seen <- path }, WithDebounce(20*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	target := filepath.Join(dir, "plan.json")
	if err := os.WriteFile(target, []byte("[]"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-seen:
		if got != target {
			t.Fatalf("unexpected path %s", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for plan event")
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestNewMissingDir(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing"), func(string) {}); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}

func TestIsPlanFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a.json": true, "b.YAML": true, "c.yml": true, "d.go": false, "e": false,
	} {
		if IsPlanFile(name) != want {
			t.Fatalf("IsPlanFile(%q) != %v", name, want)
		}
	}
}
