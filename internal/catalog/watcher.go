package catalog

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reconcileDelay = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the catalogue root and processes file
// change events until ctx is cancelled. It calls cb (if non-nil) after each
// successful change.
//
// New directories created at runtime are added to the watch list. Rename
// events trigger a debounced full Sync.
func (c *Catalog) Watch(ctx context.Context, cb EventCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, c.root); err != nil {
		return err
	}

	c.logger.Info("catalog watcher: started", slog.String("root", c.root))

	var reconcileTimer *time.Timer
	var reconcileCh <-chan time.Time

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
			c.logger.Info("catalog watcher: stopped")
			return nil

		case <-reconcileCh:
			if err := c.Sync(ctx, cb); err != nil {
				c.logger.Warn("catalog watcher: reconcile failed", slog.String("error", err.Error()))
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						c.logger.Warn("catalog watcher: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
					scheduleReconcile()
					continue
				}
			}

			if !strings.HasSuffix(ev.Name, ".md") {
				continue
			}
			rel, relErr := filepath.Rel(c.root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				data, readErr := os.ReadFile(ev.Name)
				if readErr != nil {
					c.logger.Warn("catalog watcher: read failed", slog.String("path", rel), slog.String("error", readErr.Error()))
					continue
				}
				kind, idxErr := c.indexFile(ctx, rel, data)
				if idxErr != nil {
					c.logger.Warn("catalog watcher: index failed", slog.String("path", rel), slog.String("error", idxErr.Error()))
					continue
				}
				c.logger.Debug("catalog watcher: indexed", slog.String("path", rel), slog.String("op", kind))
				notify(cb, kind, IDFor(rel))

			case ev.Op&fsnotify.Remove != 0:
				c.removeFile(ctx, rel, cb)

			case ev.Op&fsnotify.Rename != 0:
				// Rename arrives for the old path only; the new name shows
				// up as a Create if it stays inside a watched directory.
				c.removeFile(ctx, rel, cb)
				scheduleReconcile()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("catalog watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
