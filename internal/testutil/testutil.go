// Package testutil provides shared test helpers for databases, photo
// storage and loggers.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/objstore"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *docstore.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "mechi-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := docstore.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestPhotoDir creates a temporary directory-backed photo store.
func TestPhotoDir(t *testing.T) (string, *objstore.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := objstore.NewFS(dir, "http://localhost/files")
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MemStore is an in-memory objstore.Store. PutErr and DeleteErr force
// failures.
type MemStore struct {
	mu        sync.Mutex
	PutErr    error
	DeleteErr error
	Objects   map[string][]byte
	Deleted   []string
}

var _ objstore.Store = (*MemStore)(nil)

const memURL = "https://pub-test.r2.dev/"

// Put implements objstore.Store.
func (m *MemStore) Put(_ context.Context, data []byte, key, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutErr != nil {
		return "", m.PutErr
	}
	if m.Objects == nil {
		m.Objects = map[string][]byte{}
	}
	m.Objects[key] = data
	return memURL + key, nil
}

// Delete implements objstore.Store.
func (m *MemStore) Delete(_ context.Context, rawURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, rawURL)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.Objects, strings.TrimPrefix(rawURL, memURL))
	return nil
}

// PublicURL implements objstore.PublicPrefixer.
func (m *MemStore) PublicURL() string { return strings.TrimSuffix(memURL, "/") }

// SignedURL implements objstore.Store.
func (m *MemStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return memURL + key + "?signed", nil
}

// Len returns the number of stored objects.
func (m *MemStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Objects)
}
