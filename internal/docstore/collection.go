package docstore

import (
	"context"
	"fmt"
)

// Collection is a typed view over one collection of a Store.
type Collection[T any] struct {
	store Store
	name  string
}

// NewCollection returns a typed view of name.
func NewCollection[T any](store Store, name string) *Collection[T] {
	return &Collection[T]{store: store, name: name}
}

// Name returns the collection name.
func (c *Collection[T]) Name() string { return c.name }

// Create stores v and returns it as persisted, with id and timestamps set.
func (c *Collection[T]) Create(ctx context.Context, v *T) (*T, error) {
	id, err := c.store.Create(ctx, c.name, v)
	if err != nil {
		return nil, err
	}
	return c.Get(ctx, id)
}

// Get loads and decodes one document.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	doc, err := c.store.Get(ctx, c.name, id)
	if err != nil {
		return nil, err
	}
	var v T
	if err := doc.Decode(&v); err != nil {
		return nil, fmt.Errorf("docstore: decode %s/%s: %w", c.name, id, err)
	}
	return &v, nil
}

// List decodes every document matching f.
func (c *Collection[T]) List(ctx context.Context, f Filter) ([]T, error) {
	docs, err := c.store.List(ctx, c.name, f)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.Decode(&v); err != nil {
			return nil, fmt.Errorf("docstore: decode %s/%s: %w", c.name, d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Update merges patch into the document and returns the result.
func (c *Collection[T]) Update(ctx context.Context, id string, patch any) (*T, error) {
	if err := c.store.Update(ctx, c.name, id, patch); err != nil {
		return nil, err
	}
	return c.Get(ctx, id)
}

// Delete removes one document.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, c.name, id)
}
