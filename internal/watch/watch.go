// Package watch follows changes in the vault so reminders and note
// fingerprints never outlive the notes they belong to.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/almanac/internal/storage"
)

// EventCallback is called for every note change the watcher observes.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// Reminders drops reminders attached to a note.
type Reminders interface {
	ForgetNote(ctx context.Context, path string) ([]string, error)
}

// Fingerprints tracks generated notes.
type Fingerprints interface {
	ForgetFingerprint(ctx context.Context, path string) error
	GeneratedPaths(ctx context.Context) ([]string, error)
}

const reconcileDelay = 200 * time.Millisecond

// Watcher watches the vault root with fsnotify.
type Watcher struct {
	root      string
	store     storage.Provider
	reminders Reminders
	prints    Fingerprints
	logger    *slog.Logger
	cb        EventCallback
}

// New creates a Watcher. reminders, prints and cb may be nil.
func New(root string, store storage.Provider, reminders Reminders, prints Fingerprints, logger *slog.Logger, cb EventCallback) *Watcher {
	return &Watcher{
		root:      root,
		store:     store,
		reminders: reminders,
		prints:    prints,
		logger:    logger,
		cb:        cb,
	}
}

// Run processes file events until ctx is cancelled.
//
// New directories created at runtime are added to the watch list. Remove
// and Rename events only mark the path; a debounced pass then forgets the
// marked paths that are still missing, so an editor that saves by renaming
// the note away and writing it back keeps its reminders. The same pass
// reconciles every generated note against the disk.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := addDirsRecursive(fw, w.root); err != nil {
		return err
	}

	w.logger.Info("watcher: started", slog.String("root", w.root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time
	pending := make(map[string]struct{})

	scheduleReconcile := func() {
		if reconcileTimer == nil {
			reconcileTimer = time.NewTimer(reconcileDelay)
			reconcileCh = reconcileTimer.C
		} else {
			reconcileTimer.Reset(reconcileDelay)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if reconcileTimer != nil {
				reconcileTimer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-reconcileCh:
			w.settle(ctx, pending)
			pending = make(map[string]struct{})
			w.Reconcile(ctx)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(fw, ev, func(rel string) {
				pending[rel] = struct{}{}
				scheduleReconcile()
			})

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, ev fsnotify.Event, gone func(rel string)) {
	absPath := ev.Name

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
			if addErr := addDirsRecursive(fw, absPath); addErr != nil {
				w.logger.Warn("watcher: add new dir failed",
					slog.String("path", absPath),
					slog.String("error", addErr.Error()))
			} else {
				w.logger.Debug("watcher: watching new dir", slog.String("path", absPath))
			}
			w.announceDir(absPath)
			return
		}
	}

	if !strings.HasSuffix(absPath, ".md") {
		return
	}
	rel, ok := w.rel(absPath)
	if !ok {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		w.emit("created", rel)
	case ev.Op&fsnotify.Write != 0:
		w.emit("updated", rel)
	case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// fsnotify reports Rename on the old path only; the new path
		// arrives as a separate Create when it stays inside the vault.
		gone(rel)
	}
}

// settle forgets the marked paths that did not come back.
func (w *Watcher) settle(ctx context.Context, pending map[string]struct{}) {
	for rel := range pending {
		exists, err := w.store.Exists(rel)
		if err != nil {
			w.logger.Warn("watcher: stat removed note failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		if exists {
			w.logger.Debug("watcher: note came back", slog.String("path", rel))
			continue
		}
		w.emit("deleted", rel)
		w.forget(ctx, rel)
	}
}

// Reconcile forgets every generated note that is no longer on disk.
func (w *Watcher) Reconcile(ctx context.Context) {
	if w.prints == nil {
		return
	}
	generated, err := w.prints.GeneratedPaths(ctx)
	if err != nil {
		w.logger.Warn("reconcile: generated paths failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.store.List("")
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}
	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
	}
	for _, p := range generated {
		if _, ok := disk[p]; ok {
			continue
		}
		w.forget(ctx, p)
		w.logger.Debug("reconcile: forgot missing note", slog.String("path", p))
	}
}

func (w *Watcher) forget(ctx context.Context, rel string) {
	if w.reminders != nil {
		ids, err := w.reminders.ForgetNote(ctx, rel)
		if err != nil {
			w.logger.Warn("watcher: forget reminders failed", slog.String("path", rel), slog.String("error", err.Error()))
		} else if len(ids) > 0 {
			w.logger.Info("watcher: dropped reminders of removed note",
				slog.String("path", rel), slog.Int("count", len(ids)))
		}
	}
	if w.prints != nil {
		if err := w.prints.ForgetFingerprint(ctx, rel); err != nil {
			w.logger.Warn("watcher: forget fingerprint failed", slog.String("path", rel), slog.String("error", err.Error()))
		}
	}
}

// announceDir reports the notes already present in a new directory.
func (w *Watcher) announceDir(dirPath string) {
	_ = filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		if rel, ok := w.rel(path); ok {
			w.emit("created", rel)
		}
		return nil
	})
}

func (w *Watcher) rel(absPath string) (string, bool) {
	rel, err := filepath.Rel(w.root, absPath)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func (w *Watcher) emit(kind, rel string) {
	w.logger.Debug("watcher: note event", slog.String("path", rel), slog.String("op", kind))
	if w.cb != nil {
		w.cb(kind, rel)
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
}
