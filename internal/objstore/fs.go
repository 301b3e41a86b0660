package objstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
)

// FS stores objects in a local directory and serves them under publicURL.
type FS struct {
	root      string // absolute path to the storage directory
	publicURL string
}

var _ Store = (*FS)(nil)

// NewFS creates the directory if needed and returns a store rooted at it.
func NewFS(root, publicURL string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("objstore: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("objstore: create root: %w", err)
	}
	return &FS{root: abs, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// PublicURL returns the prefix objects are served under.
func (f *FS) PublicURL() string { return f.publicURL }

// Root returns the absolute storage directory.
func (f *FS) Root() string { return f.root }

// safePath resolves key under root and rejects traversal.
func (f *FS) safePath(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("objstore: invalid key: %q", key)
	}
	abs := filepath.Join(f.root, cleaned)
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("objstore: key escapes root: %s", key)
	}
	return abs, nil
}

// Put writes data atomically: tmp file, fsync, rename.
func (f *FS) Put(_ context.Context, data []byte, key, _ string) (string, error) {
	abs, err := f.safePath(key)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("objstore: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mechi-tmp-*")
	if err != nil {
		return "", fmt.Errorf("objstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return "", fmt.Errorf("objstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return "", fmt.Errorf("objstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("objstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return "", fmt.Errorf("objstore: rename: %w", err)
	}
	success = true
	return f.URL(key), nil
}

// Delete removes the object behind rawURL.
func (f *FS) Delete(_ context.Context, rawURL string) error {
	key, ok := f.KeyFromURL(rawURL)
	if !ok {
		return fmt.Errorf("%w: url not served by this store: %s", apperr.ErrInvalid, rawURL)
	}
	abs, err := f.safePath(key)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("objstore: delete %s: %w: %w", key, apperr.ErrNotFound, err)
		}
		return fmt.Errorf("objstore: delete %s: %w", key, err)
	}
	return nil
}

// SignedURL returns the public URL with an expiry hint. Local files carry
// no access control.
func (f *FS) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := f.safePath(key); err != nil {
		return "", err
	}
	exp := time.Now().Add(ttl).Unix()
	return f.URL(key) + "?expires=" + strconv.FormatInt(exp, 10), nil
}

// URL returns the public URL of key.
func (f *FS) URL(key string) string {
	return f.publicURL + "/" + key
}

// KeyFromURL strips the public prefix from rawURL.
func (f *FS) KeyFromURL(rawURL string) (string, bool) {
	prefix := f.publicURL + "/"
	if !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	key := strings.TrimPrefix(rawURL, prefix)
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}
	return key, key != ""
}
