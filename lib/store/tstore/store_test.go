package tstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/kedaikopi/kopi/lib/db"
	"github.com/kedaikopi/kopi/lib/db/engines/maple"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/lib/store/cache"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// spyTable counts backend calls and can be told to fail
type spyTable struct {
	db.Table
	calls    atomic.Int64
	fail     atomic.Bool
	features db.Feature
}

var errBackend = errors.New("backend unavailable")

func (s *spyTable) call() error {
	s.calls.Add(1)
	if s.fail.Load() {
		return errBackend
	}
	return nil
}

func (s *spyTable) Upsert(ctx context.Context, rows []db.Row) error {
	if err := s.call(); err != nil {
		return err
	}
	return s.Table.Upsert(ctx, rows)
}

func (s *spyTable) Delete(ctx context.Context, keys []string) error {
	if err := s.call(); err != nil {
		return err
	}
	return s.Table.Delete(ctx, keys)
}

func (s *spyTable) Select(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := s.call(); err != nil {
		return nil, false, err
	}
	return s.Table.Select(ctx, key)
}

func (s *spyTable) SelectIn(ctx context.Context, keys []string) ([]db.Row, error) {
	if err := s.call(); err != nil {
		return nil, err
	}
	return s.Table.SelectIn(ctx, keys)
}

func (s *spyTable) SelectPrefix(ctx context.Context, prefix string) ([]db.Row, error) {
	if err := s.call(); err != nil {
		return nil, err
	}
	return s.Table.SelectPrefix(ctx, prefix)
}

func (s *spyTable) SupportsFeature(f db.Feature) bool {
	if s.features != 0 {
		return s.features&f == f
	}
	return s.Table.SupportsFeature(f)
}

// newStore returns a store over a spied maple table, with or without a cache
func newStore(t *testing.T, cached bool) (store.IStore, *spyTable) {
	t.Helper()
	spy := &spyTable{Table: maple.NewMapleDB(nil)}
	opts := &Options{Name: t.Name()}
	if cached {
		opts.Cache = cache.New(t.Name())
	}
	s, err := NewTableStore(func() (db.Table, error) { return spy, nil }, opts)
	if err != nil {
		t.Fatalf("NewTableStore failed: %v", err)
	}
	t.Cleanup(func() { _ = spy.Close() })
	return s, spy
}

// forEachVariant runs f against a cached and an uncached store
func forEachVariant(t *testing.T, f func(t *testing.T, s store.IStore, spy *spyTable)) {
	for _, cached := range []bool{false, true} {
		name := "NoCache"
		if cached {
			name = "Cache"
		}
		t.Run(name, func(t *testing.T) {
			s, spy := newStore(t, cached)
			f(t, s, spy)
		})
	}
}

func decode(t *testing.T, raw json.RawMessage) interface{} {
	t.Helper()
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("invalid JSON %s: %v", raw, err)
	}
	return v
}

func decodeAll(t *testing.T, raws []json.RawMessage) []interface{} {
	out := make([]interface{}, len(raws))
	for i, r := range raws {
		out[i] = decode(t, r)
	}
	return out
}

func sortJSON(a, b interface{}) bool {
	x, _ := json.Marshal(a)
	y, _ := json.Marshal(b)
	return string(x) < string(y)
}

func expectCode(t *testing.T, err error, code store.RetCode) {
	t.Helper()
	var serr *store.Error
	if !errors.As(err, &serr) {
		t.Fatalf("Expected *store.Error with code %s, got %v", code, err)
	}
	if serr.Code != code {
		t.Errorf("Expected code %s, got %s (%v)", code, serr.Code, err)
	}
}

// --------------------------------------------------------------------------
// Properties
// --------------------------------------------------------------------------

func TestUpsertIdempotence(t *testing.T) {
	forEachVariant(t, func(t *testing.T, s store.IStore, spy *spyTable) {
		ctx := context.Background()
		v := json.RawMessage(`{"name":"Espresso","price":25000}`)

		for i := 0; i < 2; i++ {
			if err := s.Set(ctx, "coffees:c1", v); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
		}

		values, err := s.GetByPrefix(ctx, "coffees:")
		if err != nil {
			t.Fatalf("GetByPrefix failed: %v", err)
		}
		if len(values) != 1 {
			t.Errorf("Expected one value after repeated Set, got %d", len(values))
		}
	})
}

func TestRoundTrip(t *testing.T) {
	values := []string{
		`{"name":"Espresso","price":25000}`,
		`[1,"two",{"three":3}]`,
		`"kopi"`,
		`0`,
		`true`,
		`null`,
		`{"nested":{"deep":[null,false]}}`,
	}

	forEachVariant(t, func(t *testing.T, s store.IStore, spy *spyTable) {
		ctx := context.Background()
		for i, v := range values {
			key := fmt.Sprintf("rt:%d", i)
			if err := s.Set(ctx, key, json.RawMessage(v)); err != nil {
				t.Fatalf("Set(%s) failed: %v", key, err)
			}
			got, found, err := s.Get(ctx, key)
			if err != nil || !found {
				t.Fatalf("Get(%s) = found %v, err %v", key, found, err)
			}
			if diff := cmp.Diff(decode(t, json.RawMessage(v)), decode(t, got)); diff != "" {
				t.Errorf("Round trip of %s changed value (-want +got):\n%s", v, diff)
			}
		}
	})
}

func TestStoredNullIsNotMissing(t *testing.T) {
	forEachVariant(t, func(t *testing.T, s store.IStore, spy *spyTable) {
		ctx := context.Background()
		if err := s.Set(ctx, "profile", json.RawMessage(`null`)); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		v, found, err := s.Get(ctx, "profile")
		if err != nil || !found || string(v) != "null" {
			t.Errorf("Expected stored null to be found, got %v / %s / %v", found, v, err)
		}

		v, found, err = s.Get(ctx, "nothing")
		if err != nil || found || v != nil {
			t.Errorf("Expected not found for missing key, got %v / %s / %v", found, v, err)
		}
	})
}

func TestDeleteThenGet(t *testing.T) {
	forEachVariant(t, func(t *testing.T, s store.IStore, spy *spyTable) {
		ctx := context.Background()
		_ = s.Set(ctx, "cart:c1", json.RawMessage(`{"quantity":1}`))
		// warm the cache
		_, _, _ = s.Get(ctx, "cart:c1")

		if err := s.Delete(ctx, "cart:c1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, found, _ := s.Get(ctx, "cart:c1"); found {
			t.Errorf("Expected not found after Delete")
		}

		// deleting again is fine
		if err := s.Delete(ctx, "cart:c1"); err != nil {
			t.Errorf("Expected Delete of missing key to succeed, got %v", err)
		}
	})
}

func TestBatchAlignment(t *testing.T) {
	forEachVariant(t, func(t *testing.T, s store.IStore, spy *spyTable) {
		ctx := context.Background()
		keys := []string{"b:3", "b:1", "b:2"}
		values := []json.RawMessage{json.RawMessage(`3`), json.RawMessage(`"one"`), json.RawMessage(`{"two":2}`)}

		if err := s.MSet(ctx, keys, values); err != nil {
			t.Fatalf("MSet failed: %v", err)
		}

		got, found, err := s.MGet(ctx, append(keys, "b:missing", "b:1"))
		if err != nil {
			t.Fatalf("MGet failed: %v", err)
		}
		want := append(decodeAll(t, values), nil, decode(t, values[1]))
		gotDecoded := make([]interface{}, len(got))
		for i, g := range got {
			if g != nil {
				gotDecoded[i] = decode(t, g)
			}
		}
		if diff := cmp.Diff(want, gotDecoded); diff != "" {
			t.Errorf("MGet misaligned (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]bool{true, true, true, false, true}, found); diff != "" {
			t.Errorf("MGet found flags (-want +got):\n%s", diff)
		}
	})
}

func TestPrefixCompleteness(t *testing.T) {
	forEachVariant(t, func(t *testing.T, s store.IStore, spy *spyTable) {
		ctx := context.Background()
		written := map[string]string{
			"orders:3": `{"id":"3"}`,
			"orders:1": `{"id":"1"}`,
			"orders:2": `{"id":"2"}`,
		}
		for k, v := range written {
			_ = s.Set(ctx, k, json.RawMessage(v))
		}
		_ = s.Set(ctx, "ordersx", json.RawMessage(`"x"`))
		_ = s.Set(ctx, "cart:1", json.RawMessage(`"c"`))

		got, err := s.GetByPrefix(ctx, "orders:")
		if err != nil {
			t.Fatalf("GetByPrefix failed: %v", err)
		}
		var want []interface{}
		for _, v := range written {
			want = append(want, decode(t, json.RawMessage(v)))
		}
		if diff := cmp.Diff(want, decodeAll(t, got), cmpopts.SortSlices(sortJSON)); diff != "" {
			t.Errorf("GetByPrefix mismatch (-want +got):\n%s", diff)
		}

		all, _ := s.GetByPrefix(ctx, "")
		if len(all) != 5 {
			t.Errorf("Expected empty prefix to return all 5 values, got %d", len(all))
		}
	})
}

func TestPrefixScanIgnoresCache(t *testing.T) {
	s, spy := newStore(t, true)
	ctx := context.Background()

	_ = s.Set(ctx, "a:1", json.RawMessage(`"one"`))
	if _, found, _ := s.Get(ctx, "a:1"); !found {
		t.Fatalf("Expected a:1 to be readable")
	}

	// another process deletes the row behind our back
	if err := spy.Table.Delete(ctx, []string{"a:1"}); err != nil {
		t.Fatalf("direct delete failed: %v", err)
	}

	// the cache is stale for Get, which is the documented best effort behaviour
	if _, found, _ := s.Get(ctx, "a:1"); !found {
		t.Errorf("Expected Get to still be served by the cache")
	}

	values, err := s.GetByPrefix(ctx, "a:")
	if err != nil {
		t.Fatalf("GetByPrefix failed: %v", err)
	}
	if len(values) != 0 {
		t.Errorf("GetByPrefix must not return values only known to the cache, got %s", values)
	}
}

func TestCoffeeScenario(t *testing.T) {
	forEachVariant(t, func(t *testing.T, s store.IStore, spy *spyTable) {
		ctx := context.Background()
		espresso := json.RawMessage(`{"name":"Espresso","price":25000}`)
		latte := json.RawMessage(`{"name":"Latte","price":38000}`)

		_ = s.Set(ctx, "coffees:c1", espresso)
		_ = s.Set(ctx, "coffees:c2", latte)

		got, err := s.GetByPrefix(ctx, "coffees:")
		if err != nil {
			t.Fatalf("GetByPrefix failed: %v", err)
		}
		want := []interface{}{decode(t, espresso), decode(t, latte)}
		if diff := cmp.Diff(want, decodeAll(t, got), cmpopts.SortSlices(sortJSON)); diff != "" {
			t.Errorf("GetByPrefix mismatch (-want +got):\n%s", diff)
		}

		if err := s.Delete(ctx, "coffees:c1"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}

		got, _ = s.GetByPrefix(ctx, "coffees:")
		if diff := cmp.Diff([]interface{}{decode(t, latte)}, decodeAll(t, got)); diff != "" {
			t.Errorf("GetByPrefix after delete mismatch (-want +got):\n%s", diff)
		}

		if _, found, _ := s.Get(ctx, "coffees:c1"); found {
			t.Errorf("Expected coffees:c1 to be gone")
		}
	})
}

func TestScopedCartScenario(t *testing.T) {
	forEachVariant(t, func(t *testing.T, s store.IStore, spy *spyTable) {
		ctx := context.Background()
		user1 := store.WithScope(s, "user1")

		_ = user1.Set(ctx, "cart:c1", json.RawMessage(`{"quantity":1}`))
		_ = user1.Set(ctx, "cart:c1", json.RawMessage(`{"quantity":3}`))

		v, found, err := user1.Get(ctx, "cart:c1")
		if err != nil || !found {
			t.Fatalf("Get failed: found %v, err %v", found, err)
		}
		if diff := cmp.Diff(decode(t, json.RawMessage(`{"quantity":3}`)), decode(t, v)); diff != "" {
			t.Errorf("Expected last write to win (-want +got):\n%s", diff)
		}

		// stored under the full key, exactly once
		raw, found, _ := s.Get(ctx, "user1:cart:c1")
		if !found || string(raw) != `{"quantity":3}` {
			t.Errorf("Expected value under user1:cart:c1, got %v / %s", found, raw)
		}
		if all, _ := s.GetByPrefix(ctx, ""); len(all) != 1 {
			t.Errorf("Expected exactly one stored record, got %d", len(all))
		}
	})
}

// --------------------------------------------------------------------------
// Cache policy
// --------------------------------------------------------------------------

func TestMGetShortCircuit(t *testing.T) {
	s, spy := newStore(t, true)
	ctx := context.Background()

	_ = s.MSet(ctx, []string{"k1", "k2"}, []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`2`)})
	before := spy.calls.Load()

	values, found, err := s.MGet(ctx, []string{"k2", "k1"})
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	if spy.calls.Load() != before {
		t.Errorf("Expected MGet of cached keys to skip the backend")
	}
	if string(values[0]) != "2" || string(values[1]) != "1" || !found[0] || !found[1] {
		t.Errorf("Unexpected cached MGet result %s / %v", values, found)
	}

	// one uncached key forces a single backend request for all keys
	_, _, _ = s.MGet(ctx, []string{"k1", "k3"})
	if got := spy.calls.Load() - before; got != 1 {
		t.Errorf("Expected exactly one backend call, got %d", got)
	}
}

func TestMGetEvictsVanishedKeys(t *testing.T) {
	s, spy := newStore(t, true)
	ctx := context.Background()

	_ = s.MSet(ctx, []string{"k1", "k2"}, []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`2`)})
	_ = spy.Table.Delete(ctx, []string{"k1"})

	// k3 is uncached, so the backend answers for all keys
	values, found, err := s.MGet(ctx, []string{"k1", "k2", "k3"})
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	if found[0] || values[0] != nil {
		t.Errorf("Expected k1 to be reported missing, got %s", values[0])
	}
	if !found[1] || found[2] {
		t.Errorf("Unexpected found flags %v", found)
	}

	// and the stale entry is gone from the cache
	if _, found, _ := s.Get(ctx, "k1"); found {
		t.Errorf("Expected k1 to be evicted from the cache")
	}
}

func TestGetPopulatesCache(t *testing.T) {
	s, spy := newStore(t, true)
	ctx := context.Background()

	_ = spy.Table.Upsert(ctx, []db.Row{{Key: "k", Value: json.RawMessage(`"v"`)}})

	_, _, _ = s.Get(ctx, "k")
	before := spy.calls.Load()
	v, found, _ := s.Get(ctx, "k")
	if spy.calls.Load() != before {
		t.Errorf("Expected second Get to be served from the cache")
	}
	if !found || string(v) != `"v"` {
		t.Errorf("Unexpected value %v / %s", found, v)
	}
}

func TestFailedWriteIsNotCached(t *testing.T) {
	s, spy := newStore(t, true)
	ctx := context.Background()

	_ = s.Set(ctx, "k", json.RawMessage(`"old"`))

	spy.fail.Store(true)
	err := s.Set(ctx, "k", json.RawMessage(`"new"`))
	expectCode(t, err, store.RetCBackendError)
	if !errors.Is(err, errBackend) {
		t.Errorf("Expected backend error to be wrapped, got %v", err)
	}
	if !errors.Is(err, store.ErrBackend) {
		t.Errorf("Expected errors.Is(err, store.ErrBackend)")
	}
	spy.fail.Store(false)

	v, _, _ := s.Get(ctx, "k")
	if string(v) != `"old"` {
		t.Errorf("Failed write leaked into the cache: %s", v)
	}
}

func TestFailedDeleteEvicts(t *testing.T) {
	s, spy := newStore(t, true)
	ctx := context.Background()

	_ = s.Set(ctx, "k", json.RawMessage(`1`))
	spy.fail.Store(true)
	expectCode(t, s.Delete(ctx, "k"), store.RetCBackendError)
	spy.fail.Store(false)

	before := spy.calls.Load()
	v, found, _ := s.Get(ctx, "k")
	if spy.calls.Load() == before {
		t.Errorf("Expected Get after failed Delete to go to the backend")
	}
	if !found || string(v) != "1" {
		t.Errorf("Expected backend value after failed Delete, got %v / %s", found, v)
	}
}

// gateTable holds Delete calls, or Select calls after the row was read,
// until release is closed. entered receives once per held call.
type gateTable struct {
	db.Table
	holdDelete bool
	holdSelect bool
	entered    chan struct{}
	release    chan struct{}
}

func newGateTable(holdDelete, holdSelect bool) *gateTable {
	return &gateTable{
		Table:      maple.NewMapleDB(nil),
		holdDelete: holdDelete,
		holdSelect: holdSelect,
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
}

func (g *gateTable) Delete(ctx context.Context, keys []string) error {
	if g.holdDelete {
		g.entered <- struct{}{}
		<-g.release
	}
	return g.Table.Delete(ctx, keys)
}

func (g *gateTable) Select(ctx context.Context, key string) (json.RawMessage, bool, error) {
	value, found, err := g.Table.Select(ctx, key)
	if g.holdSelect {
		g.entered <- struct{}{}
		<-g.release
	}
	return value, found, err
}

func newGatedStore(t *testing.T, gate *gateTable) store.IStore {
	t.Helper()
	s, err := NewTableStore(func() (db.Table, error) { return gate, nil },
		&Options{Name: t.Name(), Cache: cache.New(t.Name())})
	if err != nil {
		t.Fatalf("NewTableStore failed: %v", err)
	}
	t.Cleanup(func() { _ = gate.Close() })
	return s
}

// expectDeleted checks that neither a point read nor a prefix scan sees coffees:c1
func expectDeleted(t *testing.T, s store.IStore) {
	t.Helper()
	ctx := context.Background()
	if v, found, err := s.Get(ctx, "coffees:c1"); err != nil || found {
		t.Errorf("Expected coffees:c1 to be gone, got found=%v value=%s err=%v", found, v, err)
	}
	if values, err := s.GetByPrefix(ctx, "coffees:"); err != nil || len(values) != 0 {
		t.Errorf("Expected no coffees, got %s (err=%v)", values, err)
	}
	if v, found, err := s.Get(ctx, "coffees:c1"); err != nil || found {
		t.Errorf("Expected coffees:c1 to stay gone after the prefix scan, got %s", v)
	}
}

func TestReadDuringDeleteIsNotCached(t *testing.T) {
	deletes := map[string]func(ctx context.Context, s store.IStore) error{
		"Delete": func(ctx context.Context, s store.IStore) error {
			return s.Delete(ctx, "coffees:c1")
		},
		"MDelete": func(ctx context.Context, s store.IStore) error {
			return s.MDelete(ctx, []string{"coffees:c1"})
		},
	}
	reads := map[string]func(ctx context.Context, s store.IStore) error{
		"Get": func(ctx context.Context, s store.IStore) error {
			_, _, err := s.Get(ctx, "coffees:c1")
			return err
		},
		"MGet": func(ctx context.Context, s store.IStore) error {
			_, _, err := s.MGet(ctx, []string{"coffees:c1"})
			return err
		},
		"GetByPrefix": func(ctx context.Context, s store.IStore) error {
			_, err := s.GetByPrefix(ctx, "coffees:")
			return err
		},
	}

	for deleteName, del := range deletes {
		for readName, read := range reads {
			t.Run(deleteName+"/"+readName, func(t *testing.T) {
				gate := newGateTable(true, false)
				s := newGatedStore(t, gate)
				ctx := context.Background()

				if err := s.Set(ctx, "coffees:c1", json.RawMessage(`{"name":"Espresso"}`)); err != nil {
					t.Fatalf("Set failed: %v", err)
				}

				done := make(chan error, 1)
				go func() { done <- del(ctx, s) }()
				<-gate.entered

				// the backend still has the row while the delete is held
				if err := read(ctx, s); err != nil {
					t.Fatalf("read during delete failed: %v", err)
				}

				close(gate.release)
				if err := <-done; err != nil {
					t.Fatalf("delete failed: %v", err)
				}
				expectDeleted(t, s)
			})
		}
	}
}

func TestReadInFlightDuringDeleteIsNotCached(t *testing.T) {
	gate := newGateTable(false, true)
	s := newGatedStore(t, gate)
	ctx := context.Background()

	// written behind the store, so the cache does not know the row yet
	if err := gate.Table.Upsert(ctx, []db.Row{{Key: "coffees:c1", Value: json.RawMessage(`{"name":"Espresso"}`)}}); err != nil {
		t.Fatalf("direct upsert failed: %v", err)
	}

	// the Get reads the row, then the delete completes before it returns
	done := make(chan error, 1)
	go func() {
		_, _, err := s.Get(ctx, "coffees:c1")
		done <- err
	}()
	<-gate.entered

	gate.holdSelect = false
	if err := s.Delete(ctx, "coffees:c1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	close(gate.release)
	if err := <-done; err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	expectDeleted(t, s)
}

func TestPartialMGetCountsOneMiss(t *testing.T) {
	c := cache.New(t.Name())
	s, err := NewTableStore(func() (db.Table, error) { return maple.NewMapleDB(nil), nil },
		&Options{Name: t.Name(), Cache: c})
	if err != nil {
		t.Fatalf("NewTableStore failed: %v", err)
	}
	ctx := context.Background()

	_ = s.MSet(ctx, []string{"k1", "k2"}, []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`2`)})
	hits, misses := c.Stats()

	if _, _, err := s.MGet(ctx, []string{"k1", "k2", "k3"}); err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	h, m := c.Stats()
	if h != hits || m != misses+1 {
		t.Errorf("Expected 0 hits and 1 miss for a partly cached MGet, got %d and %d", h-hits, m-misses)
	}

	if _, _, err := s.MGet(ctx, []string{"k1", "k2"}); err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	h2, m2 := c.Stats()
	if h2 != h+2 || m2 != m {
		t.Errorf("Expected 2 hits and no miss for a cached MGet, got %d and %d", h2-h, m2-m)
	}
}

// --------------------------------------------------------------------------
// Errors and validation
// --------------------------------------------------------------------------

func TestValidation(t *testing.T) {
	s, spy := newStore(t, false)
	ctx := context.Background()

	expectCode(t, s.Set(ctx, "", json.RawMessage(`1`)), store.RetCInvalidOperation)
	expectCode(t, s.Set(ctx, "k", json.RawMessage(`{broken`)), store.RetCInvalidOperation)
	expectCode(t, s.Set(ctx, "k", nil), store.RetCInvalidOperation)
	expectCode(t, s.MSet(ctx, []string{"a", "b"}, []json.RawMessage{json.RawMessage(`1`)}), store.RetCInvalidOperation)
	expectCode(t, s.MSet(ctx, []string{"a", "b"}, []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`nope`)}), store.RetCInvalidOperation)

	if spy.calls.Load() != 0 {
		t.Errorf("Invalid requests must not reach the backend")
	}

	if _, found, _ := s.Get(ctx, "a"); found {
		t.Errorf("A rejected MSet must not write anything")
	}
}

func TestEmptyBatches(t *testing.T) {
	s, spy := newStore(t, true)
	ctx := context.Background()

	if err := s.MSet(ctx, nil, nil); err != nil {
		t.Errorf("Empty MSet failed: %v", err)
	}
	if err := s.MDelete(ctx, nil); err != nil {
		t.Errorf("Empty MDelete failed: %v", err)
	}
	values, found, err := s.MGet(ctx, nil)
	if err != nil || len(values) != 0 || len(found) != 0 {
		t.Errorf("Empty MGet = %v, %v, %v", values, found, err)
	}
	if spy.calls.Load() != 0 {
		t.Errorf("Empty batches must not reach the backend")
	}
}

func TestBackendErrorsPropagate(t *testing.T) {
	s, spy := newStore(t, false)
	ctx := context.Background()
	spy.fail.Store(true)

	_, _, err := s.Get(ctx, "k")
	expectCode(t, err, store.RetCBackendError)
	_, _, err = s.MGet(ctx, []string{"k"})
	expectCode(t, err, store.RetCBackendError)
	_, err = s.GetByPrefix(ctx, "")
	expectCode(t, err, store.RetCBackendError)
	expectCode(t, s.MDelete(ctx, []string{"k"}), store.RetCBackendError)
	expectCode(t, s.MSet(ctx, []string{"k"}, []json.RawMessage{json.RawMessage(`1`)}), store.RetCBackendError)
}

func TestUnsupportedOperation(t *testing.T) {
	spy := &spyTable{Table: maple.NewMapleDB(nil), features: db.FeatureUpsert | db.FeatureSelect}
	defer spy.Close()

	s, err := NewTableStore(func() (db.Table, error) { return spy, nil }, nil)
	if err != nil {
		t.Fatalf("NewTableStore failed: %v", err)
	}
	ctx := context.Background()

	if err := s.Set(ctx, "k", json.RawMessage(`1`)); err != nil {
		t.Errorf("Set should be supported: %v", err)
	}
	_, err = s.GetByPrefix(ctx, "")
	expectCode(t, err, store.RetCUnsupportedOperation)
	expectCode(t, s.MDelete(ctx, []string{"k"}), store.RetCUnsupportedOperation)
	if !errors.Is(s.Delete(ctx, "k"), store.ErrUnsupportedOperation) {
		t.Errorf("Expected errors.Is(err, store.ErrUnsupportedOperation)")
	}
}

func TestFactoryError(t *testing.T) {
	_, err := NewTableStore(func() (db.Table, error) { return nil, errBackend }, nil)
	expectCode(t, err, store.RetCBackendError)
}

func TestGetDBInfo(t *testing.T) {
	s, _ := newStore(t, true)
	ctx := context.Background()
	_ = s.Set(ctx, "k", json.RawMessage(`1`))

	info, err := s.GetDBInfo(ctx)
	if err != nil {
		t.Fatalf("GetDBInfo failed: %v", err)
	}
	if info.DbType != db.ImplMaple || info.RowCount != 1 {
		t.Errorf("Unexpected info %+v", info)
	}
}
