package typed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kedaikopi/kopi/lib/store"
)

// --------------------------------------------------------------------------
// Collection
// --------------------------------------------------------------------------

// Collection is a family of JSON documents of type T stored under "<family>:<id>".
type Collection[T any] struct {
	s      store.IStore
	family string
}

// NewCollection returns the collection for family on s.
func NewCollection[T any](s store.IStore, family string) *Collection[T] {
	return &Collection[T]{s: s, family: family}
}

// Key returns the store key of id.
func (c *Collection[T]) Key(id string) string {
	return c.family + store.ScopeSeparator + id
}

func (c *Collection[T]) keys(ids []string) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = c.Key(id)
	}
	return keys
}

// Put stores v under id, replacing any previous document.
func (c *Collection[T]) Put(ctx context.Context, id string, v T) error {
	if id == "" {
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("%s: id must not be empty", c.family))
	}
	raw, err := encode(v)
	if err != nil {
		return err
	}
	return c.s.Set(ctx, c.Key(id), raw)
}

// Get loads the document with id. The boolean reports whether it exists.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var v T
	raw, found, err := c.s.Get(ctx, c.Key(id))
	if err != nil || !found {
		return v, false, err
	}
	if err := decode(raw, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Delete removes the document with id. Missing documents are ignored.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.s.Delete(ctx, c.Key(id))
}

// PutMany stores all documents of docs in one request.
func (c *Collection[T]) PutMany(ctx context.Context, docs map[string]T) error {
	ids := make([]string, 0, len(docs))
	values := make([]json.RawMessage, 0, len(docs))
	for id, v := range docs {
		if id == "" {
			return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("%s: id must not be empty", c.family))
		}
		raw, err := encode(v)
		if err != nil {
			return err
		}
		ids = append(ids, id)
		values = append(values, raw)
	}
	return c.s.MSet(ctx, c.keys(ids), values)
}

// GetMany loads the documents with the given ids. Missing ids are absent from the result.
func (c *Collection[T]) GetMany(ctx context.Context, ids []string) (map[string]T, error) {
	raws, found, err := c.s.MGet(ctx, c.keys(ids))
	if err != nil {
		return nil, err
	}

	docs := make(map[string]T, len(ids))
	for i, id := range ids {
		if !found[i] {
			continue
		}
		var v T
		if err := decode(raws[i], &v); err != nil {
			return nil, err
		}
		docs[id] = v
	}
	return docs, nil
}

// DeleteMany removes the documents with the given ids in one request.
func (c *Collection[T]) DeleteMany(ctx context.Context, ids []string) error {
	return c.s.MDelete(ctx, c.keys(ids))
}

// List returns every document of the family in unspecified order.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	raws, err := c.s.GetByPrefix(ctx, c.family+store.ScopeSeparator)
	if err != nil {
		return nil, err
	}

	docs := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := decode(raw, &v); err != nil {
			return nil, err
		}
		docs = append(docs, v)
	}
	return docs, nil
}

// --------------------------------------------------------------------------
// Document
// --------------------------------------------------------------------------

// Document is a single JSON document of type T stored under a fixed key.
type Document[T any] struct {
	s   store.IStore
	key string
}

// NewDocument returns the document stored under key on s.
func NewDocument[T any](s store.IStore, key string) *Document[T] {
	return &Document[T]{s: s, key: key}
}

// Get loads the document. The boolean reports whether it exists.
func (d *Document[T]) Get(ctx context.Context) (T, bool, error) {
	var v T
	raw, found, err := d.s.Get(ctx, d.key)
	if err != nil || !found {
		return v, false, err
	}
	if err := decode(raw, &v); err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Put replaces the document.
func (d *Document[T]) Put(ctx context.Context, v T) error {
	raw, err := encode(v)
	if err != nil {
		return err
	}
	return d.s.Set(ctx, d.key, raw)
}

// Delete removes the document.
func (d *Document[T]) Delete(ctx context.Context) error {
	return d.s.Delete(ctx, d.key)
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func encode(v interface{}) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, store.WrapError(store.RetCInvalidOperation, "could not encode value", err)
	}
	return raw, nil
}

func decode(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return store.WrapError(store.RetCInvalidOperation, "could not decode value", err)
	}
	return nil
}
