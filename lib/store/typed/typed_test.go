package typed

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/kedaikopi/kopi/lib/db"
	"github.com/kedaikopi/kopi/lib/db/engines/maple"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/lib/store/cache"
	"github.com/kedaikopi/kopi/lib/store/tstore"
)

type coffee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price int    `json:"price"`
}

func newStore(t *testing.T) store.IStore {
	t.Helper()
	table := maple.NewMapleDB(nil)
	t.Cleanup(func() { _ = table.Close() })
	s, err := tstore.NewTableStore(func() (db.Table, error) { return table, nil }, &tstore.Options{Cache: cache.New(t.Name())})
	if err != nil {
		t.Fatalf("NewTableStore failed: %v", err)
	}
	return s
}

func TestCollection(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	coffees := NewCollection[coffee](s, "coffees")

	espresso := coffee{ID: "c1", Name: "Espresso", Price: 25000}
	latte := coffee{ID: "c2", Name: "Latte", Price: 38000}

	if err := coffees.Put(ctx, espresso.ID, espresso); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := coffees.PutMany(ctx, map[string]coffee{latte.ID: latte}); err != nil {
		t.Fatalf("PutMany failed: %v", err)
	}

	got, found, err := coffees.Get(ctx, "c1")
	if err != nil || !found {
		t.Fatalf("Get failed: found %v, err %v", found, err)
	}
	if diff := cmp.Diff(espresso, got); diff != "" {
		t.Errorf("Get (-want +got):\n%s", diff)
	}

	many, err := coffees.GetMany(ctx, []string{"c1", "c2", "c9"})
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if diff := cmp.Diff(map[string]coffee{"c1": espresso, "c2": latte}, many); diff != "" {
		t.Errorf("GetMany (-want +got):\n%s", diff)
	}

	list, err := coffees.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	byID := cmpopts.SortSlices(func(a, b coffee) bool { return a.ID < b.ID })
	if diff := cmp.Diff([]coffee{espresso, latte}, list, byID); diff != "" {
		t.Errorf("List (-want +got):\n%s", diff)
	}

	if err := coffees.DeleteMany(ctx, []string{"c1"}); err != nil {
		t.Fatalf("DeleteMany failed: %v", err)
	}
	if err := coffees.Delete(ctx, "c2"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if list, _ := coffees.List(ctx); len(list) != 0 {
		t.Errorf("Expected empty collection, got %v", list)
	}
}

func TestCollectionKeys(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	orders := NewCollection[coffee](store.WithScope(s, "user1"), "orders")

	if got := orders.Key("o1"); got != "orders:o1" {
		t.Errorf("Key = %q", got)
	}
	_ = orders.Put(ctx, "o1", coffee{ID: "o1"})
	if _, found, _ := s.Get(ctx, "user1:orders:o1"); !found {
		t.Errorf("Expected document under user1:orders:o1")
	}

	// families sharing a name prefix stay apart
	_ = NewCollection[coffee](store.WithScope(s, "user1"), "ordersArchive").Put(ctx, "o2", coffee{ID: "o2"})
	if list, _ := orders.List(ctx); len(list) != 1 {
		t.Errorf("Expected one order, got %v", list)
	}
}

func TestDecodeError(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_ = s.Set(ctx, "coffees:bad", json.RawMessage(`"not an object"`))

	_, _, err := NewCollection[coffee](s, "coffees").Get(ctx, "bad")
	if !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("Expected invalid operation for undecodable document, got %v", err)
	}
}

func TestEmptyID(t *testing.T) {
	c := NewCollection[coffee](newStore(t), "coffees")
	if err := c.Put(context.Background(), "", coffee{}); !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("Expected invalid operation for empty id, got %v", err)
	}
}

func TestDocument(t *testing.T) {
	ctx := context.Background()
	profile := NewDocument[map[string]string](store.WithScope(newStore(t), "user1"), "profile")

	if _, found, err := profile.Get(ctx); found || err != nil {
		t.Errorf("Expected missing profile, got found %v, err %v", found, err)
	}

	want := map[string]string{"name": "Sari", "branch": "b1"}
	if err := profile.Put(ctx, want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, found, err := profile.Get(ctx)
	if err != nil || !found {
		t.Fatalf("Get failed: found %v, err %v", found, err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Document (-want +got):\n%s", diff)
	}

	_ = profile.Delete(ctx)
	if _, found, _ := profile.Get(ctx); found {
		t.Errorf("Expected profile to be deleted")
	}
}
