// Package catalog keeps the categories collection in sync with a directory
// of Markdown category files.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/erikfacundo/mechiv2-sub000/internal/apperr"
	"github.com/erikfacundo/mechiv2-sub000/internal/docstore"
	"github.com/erikfacundo/mechiv2-sub000/internal/models"
	"github.com/erikfacundo/mechiv2-sub000/internal/parser"
)

// EventCallback is called after a category change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind, id string)

// Catalog maps Markdown files under root to category documents.
type Catalog struct {
	root       string
	categories *docstore.Collection[models.Category]
	logger     *slog.Logger
}

// New creates a Catalog reading from root.
func New(store docstore.Store, root string, logger *slog.Logger) *Catalog {
	return &Catalog{
		root:       root,
		categories: docstore.NewCollection[models.Category](store, docstore.Categories),
		logger:     logger,
	}
}

// Root returns the catalogue directory.
func (c *Catalog) Root() string { return c.root }

// IDFor derives the category id from a path relative to root.
func IDFor(rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".md")
	return strings.ToLower(strings.ReplaceAll(rel, "/", "-"))
}

// Sync walks the catalogue and brings the collection up to date:
//   - new/changed files are parsed and upserted
//   - categories whose file is gone are deleted
//
// Categories created through the API (no source file) are left alone.
func (c *Catalog) Sync(ctx context.Context, cb EventCallback) error {
	disk, err := c.scan()
	if err != nil {
		return err
	}
	stored, err := c.stored(ctx)
	if err != nil {
		return err
	}

	for rel, data := range disk {
		if cat, ok := stored[rel]; ok && cat.Checksum == contentSum(data) {
			continue
		}
		kind, err := c.indexFile(ctx, rel, data)
		if err != nil {
			c.logger.Warn("catalog: index failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		c.logger.Debug("catalog: indexed", slog.String("path", rel), slog.String("op", kind))
		notify(cb, kind, IDFor(rel))
	}

	for rel, cat := range stored {
		if _, ok := disk[rel]; ok {
			continue
		}
		if err := c.categories.Delete(ctx, cat.ID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
			c.logger.Warn("catalog: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
			continue
		}
		c.logger.Debug("catalog: removed stale", slog.String("path", rel))
		notify(cb, "deleted", cat.ID)
	}
	return nil
}

// scan reads every .md file under root keyed by relative path.
func (c *Catalog) scan() (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}
		rel, err := filepath.Rel(c.root, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: scan %s: %w", c.root, err)
	}
	return out, nil
}

// stored returns the file-backed categories keyed by source path.
func (c *Catalog) stored(ctx context.Context) (map[string]models.Category, error) {
	cats, err := c.categories.List(ctx, docstore.Filter{})
	if err != nil {
		return nil, err
	}
	out := make(map[string]models.Category, len(cats))
	for _, cat := range cats {
		if cat.Source != "" {
			out[cat.Source] = cat
		}
	}
	return out, nil
}

// indexFile parses data and upserts the category. It returns "created" or
// "updated".
func (c *Catalog) indexFile(ctx context.Context, rel string, data []byte) (string, error) {
	res, err := parser.Parse(data)
	if err != nil {
		return "", err
	}
	name := res.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(rel), ".md")
	}
	id := IDFor(rel)
	cat := models.Category{
		ID:          id,
		Name:        name,
		Description: res.Description,
		SubItems:    res.Items,
		Source:      filepath.ToSlash(rel),
		Checksum:    contentSum(data),
	}
	if cat.SubItems == nil {
		cat.SubItems = []string{}
	}

	_, err = c.categories.Update(ctx, id, map[string]any{
		"name":        cat.Name,
		"description": cat.Description,
		"subItems":    cat.SubItems,
		"source":      cat.Source,
		"checksum":    cat.Checksum,
	})
	if err == nil {
		return "updated", nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return "", err
	}
	if _, err := c.categories.Create(ctx, &cat); err != nil {
		return "", err
	}
	return "created", nil
}

func (c *Catalog) removeFile(ctx context.Context, rel string, cb EventCallback) {
	id := IDFor(rel)
	err := c.categories.Delete(ctx, id)
	switch {
	case errors.Is(err, apperr.ErrNotFound):
	case err != nil:
		c.logger.Warn("catalog: delete failed", slog.String("path", rel), slog.String("error", err.Error()))
	default:
		c.logger.Debug("catalog: deleted", slog.String("path", rel))
		notify(cb, "deleted", id)
	}
}

func notify(cb EventCallback, kind, id string) {
	if cb != nil {
		cb(kind, id)
	}
}

// contentSum returns the hex-encoded SHA-256 digest of a catalogue file.
func contentSum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
