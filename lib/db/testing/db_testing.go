package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/kedaikopi/kopi/lib/db"
)

// TableFactory creates a new, empty table for one test.
// Factories may use tb for temporary directories or cleanup hooks.
type TableFactory func(tb testing.TB) db.Table

// RunTableTests runs the conformance suite for a db.Table implementation.
func RunTableTests(t *testing.T, name string, factory TableFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Upsert&Select", func(t *testing.T) {
			testUpsertSelect(t, factory(t))
		})

		t.Run("UpsertIdempotent", func(t *testing.T) {
			testUpsertIdempotent(t, factory(t))
		})

		t.Run("BatchUpsert", func(t *testing.T) {
			testBatchUpsert(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("SelectIn", func(t *testing.T) {
			testSelectIn(t, factory(t))
		})

		t.Run("SelectPrefix", func(t *testing.T) {
			testSelectPrefix(t, factory(t))
		})

		t.Run("PrefixLiterals", func(t *testing.T) {
			testPrefixLiterals(t, factory(t))
		})

		t.Run("JSONValues", func(t *testing.T) {
			testJSONValues(t, factory(t))
		})

		t.Run("EmptyBatches", func(t *testing.T) {
			testEmptyBatches(t, factory(t))
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, factory(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the table supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, table db.Table, feature db.Feature) {
	if !table.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustUpsert(t testing.TB, table db.Table, rows ...db.Row) {
	t.Helper()
	if err := table.Upsert(context.Background(), rows); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
}

func row(key, value string) db.Row {
	return db.Row{Key: key, Value: json.RawMessage(value)}
}

// rowsByKey makes row slices comparable regardless of their order
var rowsByKey = cmpopts.SortSlices(func(a, b db.Row) bool { return a.Key < b.Key })

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testUpsertSelect(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureSelect)
	ctx := context.Background()

	mustUpsert(t, table, row("coffees:1", `{"name":"Kopi Susu","price":18000}`))

	value, found, err := table.Select(ctx, "coffees:1")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !found {
		t.Errorf("Expected key coffees:1 to exist after Upsert")
	}
	if string(value) != `{"name":"Kopi Susu","price":18000}` {
		t.Errorf("Unexpected value %s", value)
	}

	// overwrite
	mustUpsert(t, table, row("coffees:1", `{"name":"Kopi Susu","price":20000}`))
	value, _, _ = table.Select(ctx, "coffees:1")
	if string(value) != `{"name":"Kopi Susu","price":20000}` {
		t.Errorf("Expected overwritten value, got %s", value)
	}

	// not found
	missing, found, err := table.Select(ctx, "coffees:404")
	if err != nil {
		t.Errorf("Expected no error for missing key, got %v", err)
	}
	if found || missing != nil {
		t.Errorf("Expected missing key to return found=false and no value, got %v / %s", found, missing)
	}

	// returned values are copies
	value[0] = 'X'
	again, _, _ := table.Select(ctx, "coffees:1")
	if bytes.Equal(value, again) {
		t.Errorf("Select should return a copy, not a reference to the stored value")
	}

	// the caller's buffer is copied on the way in
	buf := []byte(`"original"`)
	mustUpsert(t, table, db.Row{Key: "buf", Value: buf})
	buf[1] = 'X'
	stored, _, _ := table.Select(ctx, "buf")
	if string(stored) != `"original"` {
		t.Errorf("Upsert should copy the value, got %s", stored)
	}
}

func testUpsertIdempotent(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureSelectPrefix)

	for i := 0; i < 3; i++ {
		mustUpsert(t, table, row("idem:k", `{"v":1}`))
	}

	rows, err := table.SelectPrefix(context.Background(), "idem:")
	if err != nil {
		t.Fatalf("SelectPrefix failed: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Expected exactly one row after repeated Upsert, got %d", len(rows))
	}

	// the same key twice within one batch keeps the last value
	mustUpsert(t, table, row("idem:b", `1`), row("idem:b", `2`))
	value, _, _ := table.Select(context.Background(), "idem:b")
	if string(value) != `2` {
		t.Errorf("Expected last value of batch to win, got %s", value)
	}
}

func testBatchUpsert(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureSelect)
	ctx := context.Background()

	var rows []db.Row
	for i := 0; i < 50; i++ {
		rows = append(rows, row(fmt.Sprintf("batch:%02d", i), fmt.Sprintf(`{"n":%d}`, i)))
	}
	mustUpsert(t, table, rows...)

	for _, r := range rows {
		value, found, err := table.Select(ctx, r.Key)
		if err != nil || !found {
			t.Errorf("Expected %s to exist (found=%v, err=%v)", r.Key, found, err)
			continue
		}
		if !bytes.Equal(value, r.Value) {
			t.Errorf("Expected %s for %s, got %s", r.Value, r.Key, value)
		}
	}
}

func testDelete(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureDelete|db.FeatureSelect)
	ctx := context.Background()

	mustUpsert(t, table, row("a", `1`), row("b", `2`), row("c", `3`))

	if err := table.Delete(ctx, []string{"a"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, found, _ := table.Select(ctx, "a"); found {
		t.Errorf("Expected key a to be deleted")
	}

	// missing keys are ignored
	if err := table.Delete(ctx, []string{"a", "missing", "b"}); err != nil {
		t.Fatalf("Delete with missing keys failed: %v", err)
	}
	if _, found, _ := table.Select(ctx, "b"); found {
		t.Errorf("Expected key b to be deleted")
	}
	if _, found, _ := table.Select(ctx, "c"); !found {
		t.Errorf("Expected key c to survive")
	}

	// delete then re-insert
	mustUpsert(t, table, row("a", `4`))
	value, found, _ := table.Select(ctx, "a")
	if !found || string(value) != `4` {
		t.Errorf("Expected re-inserted key a with value 4, got %v / %s", found, value)
	}
}

func testSelectIn(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureSelectIn)
	ctx := context.Background()

	mustUpsert(t, table, row("k1", `"one"`), row("k2", `"two"`), row("k3", `"three"`))

	rows, err := table.SelectIn(ctx, []string{"k3", "missing", "k1", "k1"})
	if err != nil {
		t.Fatalf("SelectIn failed: %v", err)
	}
	want := []db.Row{row("k1", `"one"`), row("k3", `"three"`)}
	if diff := cmp.Diff(want, rows, rowsByKey); diff != "" {
		t.Errorf("SelectIn mismatch (-want +got):\n%s", diff)
	}

	rows, err = table.SelectIn(ctx, []string{"nope"})
	if err != nil {
		t.Fatalf("SelectIn failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows for unknown keys, got %d", len(rows))
	}
}

func testSelectPrefix(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureSelectPrefix)
	ctx := context.Background()

	mustUpsert(t, table,
		row("coffees:1", `{"id":"1"}`),
		row("coffees:2", `{"id":"2"}`),
		row("coffees:3", `{"id":"3"}`),
		row("coffee", `{"id":"x"}`),
		row("branches:1", `{"id":"b1"}`),
	)

	rows, err := table.SelectPrefix(ctx, "coffees:")
	if err != nil {
		t.Fatalf("SelectPrefix failed: %v", err)
	}
	want := []db.Row{
		row("coffees:1", `{"id":"1"}`),
		row("coffees:2", `{"id":"2"}`),
		row("coffees:3", `{"id":"3"}`),
	}
	if diff := cmp.Diff(want, rows, rowsByKey); diff != "" {
		t.Errorf("SelectPrefix mismatch (-want +got):\n%s", diff)
	}

	// the empty prefix matches every row
	rows, err = table.SelectPrefix(ctx, "")
	if err != nil {
		t.Fatalf("SelectPrefix failed: %v", err)
	}
	if len(rows) != 5 {
		t.Errorf("Expected 5 rows for empty prefix, got %d", len(rows))
	}

	rows, err = table.SelectPrefix(ctx, "orders:")
	if err != nil {
		t.Fatalf("SelectPrefix failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows for unknown prefix, got %d", len(rows))
	}

	// a prefix equal to a full key matches that key
	rows, _ = table.SelectPrefix(ctx, "coffee")
	if len(rows) != 4 {
		t.Errorf("Expected 4 rows for prefix coffee, got %d", len(rows))
	}
}

// testPrefixLiterals makes sure characters with a special meaning in LIKE or
// glob patterns are matched literally.
func testPrefixLiterals(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureSelectPrefix)
	ctx := context.Background()

	mustUpsert(t, table,
		row("50%:a", `1`),
		row("50x:a", `2`),
		row("a_b:1", `3`),
		row("axb:1", `4`),
		row("s*[1]:1", `5`),
		row("s?[1]:1", `6`),
	)

	cases := map[string]string{
		"50%":   "50%:a",
		"a_b":   "a_b:1",
		"s*[1]": "s*[1]:1",
	}
	for prefix, key := range cases {
		rows, err := table.SelectPrefix(ctx, prefix)
		if err != nil {
			t.Errorf("SelectPrefix(%q) failed: %v", prefix, err)
			continue
		}
		if len(rows) != 1 || rows[0].Key != key {
			t.Errorf("SelectPrefix(%q): expected only %s, got %v", prefix, key, rows)
		}
	}
}

func testJSONValues(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureSelect|db.FeatureSelectIn)
	ctx := context.Background()

	values := map[string]string{
		"null":   `null`,
		"number": `42`,
		"string": `"kopi"`,
		"array":  `[1,2,3]`,
		"object": `{"nested":{"ok":true}}`,
		"bool":   `false`,
	}
	var rows []db.Row
	var keys []string
	for k, v := range values {
		rows = append(rows, row(k, v))
		keys = append(keys, k)
	}
	mustUpsert(t, table, rows...)

	// a stored JSON null is found
	value, found, err := table.Select(ctx, "null")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !found || string(value) != `null` {
		t.Errorf("Expected stored null to be found, got %v / %s", found, value)
	}

	got, err := table.SelectIn(ctx, keys)
	if err != nil {
		t.Fatalf("SelectIn failed: %v", err)
	}
	if diff := cmp.Diff(rows, got, rowsByKey); diff != "" {
		t.Errorf("JSON values changed (-want +got):\n%s", diff)
	}
}

func testEmptyBatches(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureDelete|db.FeatureSelectIn)
	ctx := context.Background()

	if err := table.Upsert(ctx, nil); err != nil {
		t.Errorf("Expected empty Upsert to succeed, got %v", err)
	}
	if err := table.Delete(ctx, nil); err != nil {
		t.Errorf("Expected empty Delete to succeed, got %v", err)
	}
	rows, err := table.SelectIn(ctx, nil)
	if err != nil {
		t.Errorf("Expected empty SelectIn to succeed, got %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("Expected no rows for empty SelectIn, got %d", len(rows))
	}
}

func testConcurrency(t *testing.T, table db.Table) {
	defer table.Close()
	requireFeature(t, table, db.FeatureUpsert|db.FeatureSelectPrefix)
	ctx := context.Background()

	const (
		workers = 8
		perWork = 25
	)

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWork; i++ {
				key := fmt.Sprintf("conc:%d:%d", w, i)
				if err := table.Upsert(ctx, []db.Row{row(key, fmt.Sprintf("%d", i))}); err != nil {
					errs <- err
					return
				}
				if _, _, err := table.Select(ctx, key); err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent operation failed: %v", err)
	}

	rows, err := table.SelectPrefix(ctx, "conc:")
	if err != nil {
		t.Fatalf("SelectPrefix failed: %v", err)
	}
	if len(rows) != workers*perWork {
		t.Errorf("Expected %d rows, got %d", workers*perWork, len(rows))
	}
}

func testInfo(t *testing.T, table db.Table) {
	defer table.Close()

	if !table.SupportsFeature(db.FeatureCRUD) {
		t.Errorf("Expected table to support all CRUD features")
	}

	mustUpsert(t, table, row("info:1", `{"a":1}`))
	info := table.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected DbType to be set")
	}
	if info.Table == "" {
		t.Errorf("Expected Table to be set")
	}

	var all db.Feature
	for _, f := range info.SupportedFeatures {
		all |= f
		if !table.SupportsFeature(f) {
			t.Errorf("GetInfo reports feature %s that SupportsFeature denies", f)
		}
	}
	if all&db.FeatureCRUD != db.FeatureCRUD {
		t.Errorf("Expected GetInfo to report all CRUD features, got %s", all)
	}
}
