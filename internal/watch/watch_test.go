package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jmhodges/clock"

	"github.com/starford/almanac/internal/models"
	"github.com/starford/almanac/internal/reminder"
	"github.com/starford/almanac/internal/state"
	"github.com/starford/almanac/internal/storage"
	"github.com/starford/almanac/internal/testutil"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

type watcherEnv struct {
	dir   string
	store storage.Provider
	db    *state.DB
	reg   *reminder.Registry

	mu     sync.Mutex
	events []string
}

func newWatcherEnv(t *testing.T) *watcherEnv {
	t.Helper()
	dir, store := testutil.TestVault(t)
	db := testutil.TestState(t)
	clk := clock.NewFake()
	clk.Set(time.Date(2024, time.March, 17, 12, 0, 0, 0, time.UTC))
	return &watcherEnv{
		dir:   dir,
		store: store,
		db:    db,
		reg:   reminder.NewRegistry(db, clk, models.ReminderInfo{}),
	}
}

func (e *watcherEnv) watcher() *Watcher {
	return New(e.dir, e.store, e.reg, e.db, testutil.Logger(), func(kind, path string) {
		e.mu.Lock()
		e.events = append(e.events, kind+":"+path)
		e.mu.Unlock()
	})
}

func (e *watcherEnv) saw(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range e.events {
		if ev == event {
			return true
		}
	}
	return false
}

func (e *watcherEnv) generated(t *testing.T, rel string) {
	t.Helper()
	abs := filepath.Join(e.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte("# note\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := e.db.SetFingerprint(ctx, rel, "sum"); err != nil {
		t.Fatal(err)
	}
	err := e.reg.Add(ctx, models.Reminder{
		ID:           "r-" + rel,
		Name:         "Daily Note",
		Type:         models.ReminderDaily,
		DateActiveOn: "2024-03-17T21:00:00Z",
		NotePath:     rel,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (e *watcherEnv) forgotten(rel string) bool {
	sum, _ := e.db.Fingerprint(context.Background(), rel)
	_, err := e.reg.Get("r-" + rel)
	return sum == "" && err != nil
}

func TestWatcher_NewFileReported(t *testing.T) {
	e := newWatcherEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go e.watcher().Run(ctx)
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(e.dir, "new.md"), []byte("# New"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return e.saw("created:new.md")
	}, "expected created:new.md callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	e := newWatcherEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go e.watcher().Run(ctx)
	time.Sleep(100 * time.Millisecond)

	subDir := filepath.Join(e.dir, "Year - 24")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(subDir, "deep.md"), []byte("# Deep"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return e.saw("created:Year - 24/deep.md")
	}, "file in new subdir not reported")
}

func TestWatcher_DeleteForgetsNote(t *testing.T) {
	e := newWatcherEnv(t)
	e.generated(t, "Days/17.md")
	e.generated(t, "Days/18.md")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.watcher().Run(ctx)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(e.dir, "Days", "17.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return e.forgotten("Days/17.md")
	}, "deleted note still has a reminder or fingerprint")
	if e.forgotten("Days/18.md") {
		t.Error("untouched note was forgotten")
	}
	if !e.saw("deleted:Days/17.md") {
		t.Error("expected deleted:Days/17.md callback")
	}
	if e.reg.Count() != 1 {
		t.Errorf("reminder count = %d, want 1", e.reg.Count())
	}
}

func TestWatcher_RenameForgetsOldPath(t *testing.T) {
	e := newWatcherEnv(t)
	e.generated(t, "old.md")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.watcher().Run(ctx)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(e.dir, "old.md"), filepath.Join(e.dir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return e.forgotten("old.md") && e.saw("created:renamed.md")
	}, "rename not reconciled")
}

func TestWatcher_SafeSaveKeepsNote(t *testing.T) {
	e := newWatcherEnv(t)
	e.generated(t, "Days/17.md")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go e.watcher().Run(ctx)
	time.Sleep(100 * time.Millisecond)

	// Editors that save through a backup move the note away and write it back.
	abs := filepath.Join(e.dir, "Days", "17.md")
	if err := os.Rename(abs, abs+"~"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(abs, []byte("# note\nedited\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_ = os.Remove(abs + "~")

	time.Sleep(3 * reconcileDelay)
	if e.forgotten("Days/17.md") {
		t.Fatal("note saved in place lost its reminder or fingerprint")
	}
	if _, err := e.reg.Get("r-Days/17.md"); err != nil {
		t.Errorf("reminder: %v", err)
	}
	if sum, _ := e.db.Fingerprint(context.Background(), "Days/17.md"); sum == "" {
		t.Error("fingerprint dropped")
	}
	if e.saw("deleted:Days/17.md") {
		t.Error("safe save reported as a deletion")
	}
}

func TestReconcile(t *testing.T) {
	e := newWatcherEnv(t)
	e.generated(t, "kept.md")
	e.generated(t, "gone.md")
	if err := os.Remove(filepath.Join(e.dir, "gone.md")); err != nil {
		t.Fatal(err)
	}

	e.watcher().Reconcile(context.Background())

	if !e.forgotten("gone.md") {
		t.Error("missing note not forgotten")
	}
	if e.forgotten("kept.md") {
		t.Error("present note forgotten")
	}
	paths, err := e.db.GeneratedPaths(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 1 || paths[0] != "kept.md" {
		t.Errorf("generated paths = %v", paths)
	}
}
