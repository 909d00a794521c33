// Package typed adds static types to the JSON documents of a store.
//
// A Collection[T] groups the documents of one key family ("coffees",
// "orders", ...) under "<family>:<id>" and encodes them with encoding/json.
// A Document[T] is a single document under a fixed key, such as a user
// profile. Both work on any store.IStore, including scoped stores.
package typed
