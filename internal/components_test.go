package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/objstore"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func clearR2Env(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		objstore.EnvAccountID, objstore.EnvAccessKeyID, objstore.EnvSecretAccessKey,
		objstore.EnvBucket, objstore.EnvPublicURL,
	} {
		t.Setenv(k, "")
	}
}

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := NewDefaultConfig()
	cfg.SQLite.Path = filepath.Join(dir, "test.db")
	cfg.Storage.Local.Path = filepath.Join(dir, "uploads")
	cfg.Catalog.Path = filepath.Join(dir, "categories")
	return cfg
}

func TestOpenObjectStore_Local(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = StorageLocal

	store, files, err := openObjectStore(cfg, discardLogger())
	if err != nil {
		t.Fatalf("openObjectStore: %v", err)
	}
	if files == nil || store != objstore.Store(files) {
		t.Fatal("local backend should return the filesystem store")
	}
	url, err := store.Put(context.Background(), []byte("x"), "AB123/1-a.jpg", "image/jpeg")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "http://localhost:8080/files/") {
		t.Errorf("url = %q", url)
	}
}

func TestOpenObjectStore_None(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = StorageNone

	store, files, err := openObjectStore(cfg, discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if files != nil {
		t.Error("no filesystem store expected")
	}
	if _, err := store.Put(context.Background(), nil, "k", ""); !errors.Is(err, apperr.ErrNotConfigured) {
		t.Errorf("Put err = %v, want ErrNotConfigured", err)
	}
}

func TestOpenObjectStore_R2WithoutCredentials(t *testing.T) {
	clearR2Env(t)
	cfg := testConfig(t)
	cfg.Storage.Backend = StorageR2
	cfg.Storage.CredentialsFile = filepath.Join(t.TempDir(), "missing.json")

	store, _, err := openObjectStore(cfg, discardLogger())
	if err != nil {
		t.Fatalf("missing credentials must not be fatal: %v", err)
	}
	if _, ok := store.(objstore.Unconfigured); !ok {
		t.Errorf("store = %T, want objstore.Unconfigured", store)
	}
}

func TestOpenObjectStore_R2FromEnv(t *testing.T) {
	clearR2Env(t)
	t.Setenv(objstore.EnvAccountID, "acct")
	t.Setenv(objstore.EnvAccessKeyID, "key")
	t.Setenv(objstore.EnvSecretAccessKey, "secret")
	t.Setenv(objstore.EnvBucket, "photos")
	t.Setenv(objstore.EnvPublicURL, "https://pub.example.r2.dev")

	store, _, err := openObjectStore(testConfig(t), discardLogger())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := store.(*objstore.R2); !ok {
		t.Errorf("store = %T, want *objstore.R2", store)
	}
}

func TestPrintNextNumber(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = StorageNone

	var out bytes.Buffer
	if err := PrintNextNumber(context.Background(), &out, WithConfig(cfg), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("PrintNextNumber: %v", err)
	}
	if !strings.HasPrefix(out.String(), "OT-") || !strings.HasSuffix(out.String(), "-001\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestPrintOrphans_Empty(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = StorageNone

	var out bytes.Buffer
	if err := PrintOrphans(context.Background(), &out, WithConfig(cfg), WithLogOutput(io.Discard)); err != nil {
		t.Fatalf("PrintOrphans: %v", err)
	}
	var reports []any
	if err := json.Unmarshal(out.Bytes(), &reports); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, out.String())
	}
	if len(reports) != 0 {
		t.Errorf("reports = %v", reports)
	}
}

func TestBuild_RequiresConfig(t *testing.T) {
	if _, err := build(nil); err == nil {
		t.Error("expected error without config")
	}
}

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := ensureDir(dir); err != nil {
		t.Fatal(err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Errorf("dir not created: %v", err)
	}
}
