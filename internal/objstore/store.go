// Package objstore uploads photos to object storage and classifies the
// URLs it hands out.
package objstore

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
)

// DefaultPrefix is the folder used when no vehicle plate is known.
const DefaultPrefix = "photos"

// Store is the object-storage collaborator.
type Store interface {
	// Put stores data under key and returns its public URL.
	Put(ctx context.Context, data []byte, key, contentType string) (string, error)
	// Delete removes the object a previously returned URL points at.
	Delete(ctx context.Context, rawURL string) error
	// SignedURL returns a temporary URL for a private object.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var (
	nonAlnumRe   = regexp.MustCompile(`[^A-Z0-9]`)
	unsafeNameRe = regexp.MustCompile(`[^a-zA-Z0-9._-]`)
)

// NormalizePrefix turns a vehicle plate into a storage folder name. An empty
// result falls back to DefaultPrefix.
func NormalizePrefix(plate string) string {
	p := nonAlnumRe.ReplaceAllString(strings.ToUpper(plate), "")
	if p == "" {
		return DefaultPrefix
	}
	return p
}

// Key builds the object key {prefix}/{unixMillis}-{filename}.
func Key(prefix, filename string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	name := unsafeNameRe.ReplaceAllString(filenameBase(filename), "_")
	if name == "" {
		name = "image"
	}
	return fmt.Sprintf("%s/%d-%s", prefix, now.UnixMilli(), name)
}

func filenameBase(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

// IsRemoteURL reports whether rawURL points into object storage: either an
// R2 domain or the configured public prefix. Such images are already
// optimized and should be served as is.
func IsRemoteURL(rawURL, publicPrefix string) bool {
	if rawURL == "" || strings.HasPrefix(rawURL, "data:") {
		return false
	}
	if publicPrefix != "" && strings.HasPrefix(rawURL, strings.TrimRight(publicPrefix, "/")+"/") {
		return true
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return strings.HasSuffix(host, ".r2.dev") || strings.HasSuffix(host, ".r2.cloudflarestorage.com")
}

// PublicPrefixer is implemented by stores that serve every object under a
// fixed URL prefix.
type PublicPrefixer interface {
	PublicURL() string
}

// Unconfigured is installed when no storage credentials were found. Every
// call fails with ErrNotConfigured.
type Unconfigured struct{}

var _ Store = Unconfigured{}

// Put implements Store.
func (Unconfigured) Put(context.Context, []byte, string, string) (string, error) {
	return "", apperr.ErrNotConfigured
}

// Delete implements Store.
func (Unconfigured) Delete(context.Context, string) error {
	return apperr.ErrNotConfigured
}

// SignedURL implements Store.
func (Unconfigured) SignedURL(context.Context, string, time.Duration) (string, error) {
	return "", apperr.ErrNotConfigured
}
