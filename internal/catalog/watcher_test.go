package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
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

func exists(db *docstore.DB, id string) bool {
	_, err := docstore.NewCollection[models.Category](db, docstore.Categories).Get(context.Background(), id)
	return err == nil
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	dir, c, db := catalogEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var events []string
	go c.Watch(ctx, func(kind, id string) {
		mu.Lock()
		events = append(events, kind+":"+id)
		mu.Unlock()
	})
	time.Sleep(100 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(dir, "frenos.md"), []byte(brakesMD), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return exists(db, "frenos")
	}, "new file not indexed by watcher")

	eventually(t, 2*time.Second, 50*time.Millisecond, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, e := range events {
			if e == "created:frenos" {
				return true
			}
		}
		return false
	}, "expected created:frenos callback")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	dir, c, db := catalogEnv(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	sub := filepath.Join(dir, "motor")
	_ = os.MkdirAll(sub, 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.WriteFile(filepath.Join(sub, "aceite.md"), []byte("# Aceite\n- Filtro\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return exists(db, "motor-aceite")
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesCategory(t *testing.T) {
	dir, c, db := catalogEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "del.md"), []byte("# Borrar\n"), 0o644)
	if err := c.Sync(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if !exists(db, "del") {
		t.Fatal("precondition: category should exist")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(dir, "del.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !exists(db, "del")
	}, "deleted file still in categories")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	dir, c, db := catalogEnv(t)
	_ = os.WriteFile(filepath.Join(dir, "old.md"), []byte("# Renombrar\n"), 0o644)
	if err := c.Sync(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Watch(ctx, nil)
	time.Sleep(100 * time.Millisecond)

	_ = os.Rename(filepath.Join(dir, "old.md"), filepath.Join(dir, "renamed.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !exists(db, "old") && exists(db, "renamed")
	}, "rename reconciliation failed")
}
