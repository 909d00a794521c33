package store

import (
	"context"
	"encoding/json"

	"github.com/kedaikopi/kopi/lib/db"
)

// ScopeSeparator joins a scope and a key.
const ScopeSeparator = ":"

// BuildKey returns the key under which key is stored in scope.
// The empty scope leaves the key unchanged.
func BuildKey(scope, key string) string {
	if scope == "" {
		return key
	}
	return scope + ScopeSeparator + key
}

// WithScope returns a store that transparently prefixes every key and every
// prefix with scope. Scopes nest: WithScope(WithScope(s, "a"), "b") stores
// key "k" as "a:b:k". Callers pass logical keys and must not repeat the scope.
func WithScope(s IStore, scope string) IStore {
	if scope == "" {
		return s
	}
	return &scopedStore{inner: s, scope: scope}
}

type scopedStore struct {
	inner IStore
	scope string
}

func (s *scopedStore) keys(keys []string) []string {
	scoped := make([]string, len(keys))
	for i, k := range keys {
		scoped[i] = BuildKey(s.scope, k)
	}
	return scoped
}

func (s *scopedStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	if key == "" {
		return NewError(RetCInvalidOperation, "key must not be empty")
	}
	return s.inner.Set(ctx, BuildKey(s.scope, key), value)
}

func (s *scopedStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	return s.inner.Get(ctx, BuildKey(s.scope, key))
}

func (s *scopedStore) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, BuildKey(s.scope, key))
}

func (s *scopedStore) MSet(ctx context.Context, keys []string, values []json.RawMessage) error {
	for _, k := range keys {
		if k == "" {
			return NewError(RetCInvalidOperation, "key must not be empty")
		}
	}
	return s.inner.MSet(ctx, s.keys(keys), values)
}

func (s *scopedStore) MGet(ctx context.Context, keys []string) ([]json.RawMessage, []bool, error) {
	return s.inner.MGet(ctx, s.keys(keys))
}

func (s *scopedStore) MDelete(ctx context.Context, keys []string) error {
	return s.inner.MDelete(ctx, s.keys(keys))
}

// GetByPrefix only ever sees keys inside the scope, the empty prefix lists the whole scope.
func (s *scopedStore) GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error) {
	return s.inner.GetByPrefix(ctx, s.scope+ScopeSeparator+prefix)
}

func (s *scopedStore) GetDBInfo(ctx context.Context) (db.DatabaseInfo, error) {
	return s.inner.GetDBInfo(ctx)
}
