// Package store provides the key-value interface the rest of kopi is built on.
// Keys are strings, values are JSON documents, and every store is backed by a
// single two column table (see the db package).
//
// The package focuses on:
//   - A unified interface (IStore) with single and multi key operations and
//     prefix scans
//   - A structured error model (Error, RetCode) shared by every implementation
//   - Key namespacing through scopes (BuildKey, WithScope)
//
// Key Components:
//
//   - IStore Interface: Set, Get, Delete, their batched forms MSet, MGet and
//     MDelete, and GetByPrefix. A missing key is not an error, Get and MGet
//     report it through found flags. Values are validated as JSON on write.
//
//   - Error System: every method returns a *Error carrying a RetCode. Backend
//     failures are reported as RetCBackendError and wrap the original error, so
//     errors.Is and errors.As reach both the code sentinels (ErrBackend, ...)
//     and the backend error itself.
//
//   - Scopes: WithScope wraps a store so that all keys and prefixes are
//     stored as "<scope>:<key>". Scopes nest, and a scoped prefix scan never
//     leaves its scope.
//
//   - TableFactory: abstracts the creation of the underlying db.Table and lets
//     callers choose the engine.
//
// Implementations:
//
//	- Table Store (tstore): the store on top of a db.Table with an optional
//	  read cache (see the cache package).
//	  Available in the "github.com/kedaikopi/kopi/lib/store/tstore" package.
//
//	- RPC Store: a client for a remote store served by "kopi serve".
//	  Available in the "github.com/kedaikopi/kopi/rpc/client" package.
//
// The typed package builds typed collections of JSON documents on top of any IStore.
package store
