package shop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/kedaikopi/kopi/lib/db"
	"github.com/kedaikopi/kopi/lib/db/engines/maple"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/lib/store/cache"
	"github.com/kedaikopi/kopi/lib/store/tstore"
)

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

// newCustomer returns a customer with a clock that advances one second per call
func newCustomer(t *testing.T, s store.IStore, userID string) *Customer {
	t.Helper()
	c, err := NewCustomer(s, userID)
	if err != nil {
		t.Fatalf("NewCustomer failed: %v", err)
	}
	clock := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return c
}

func TestCatalogSeedDefaults(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newStore(t))

	seeded, err := catalog.SeedDefaults(ctx)
	if err != nil || !seeded {
		t.Fatalf("SeedDefaults = %v, %v", seeded, err)
	}
	seeded, err = catalog.SeedDefaults(ctx)
	if err != nil || seeded {
		t.Errorf("Expected second SeedDefaults to do nothing, got %v, %v", seeded, err)
	}

	coffees, err := catalog.Coffees(ctx)
	if err != nil {
		t.Fatalf("Coffees failed: %v", err)
	}
	byID := cmpopts.SortSlices(func(a, b Coffee) bool { return a.ID < b.ID })
	if diff := cmp.Diff(DefaultCoffees, coffees, byID); diff != "" {
		t.Errorf("Coffees (-want +got):\n%s", diff)
	}
	for i := 1; i < len(coffees); i++ {
		if coffees[i-1].Name > coffees[i].Name {
			t.Errorf("Coffees not sorted by name: %s before %s", coffees[i-1].Name, coffees[i].Name)
		}
	}

	branches, _ := catalog.Branches(ctx)
	if len(branches) != len(DefaultBranches) {
		t.Errorf("Expected %d branches, got %d", len(DefaultBranches), len(branches))
	}
}

func TestCatalogCRUD(t *testing.T) {
	ctx := context.Background()
	catalog := NewCatalog(newStore(t))

	added, err := catalog.PutCoffee(ctx, Coffee{Name: "Kopi Jahe", Price: 22000, Category: "hot"})
	if err != nil {
		t.Fatalf("PutCoffee failed: %v", err)
	}
	if added.ID == "" {
		t.Errorf("Expected a generated id")
	}

	added.Price = 24000
	if _, err := catalog.PutCoffee(ctx, added); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	got, found, _ := catalog.Coffee(ctx, added.ID)
	if !found || got.Price != 24000 {
		t.Errorf("Expected updated price, got %+v", got)
	}

	if _, err := catalog.PutCoffee(ctx, Coffee{Price: 1}); !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("Expected invalid operation for nameless coffee, got %v", err)
	}

	if err := catalog.DeleteCoffee(ctx, added.ID); err != nil {
		t.Fatalf("DeleteCoffee failed: %v", err)
	}
	if _, found, _ := catalog.Coffee(ctx, added.ID); found {
		t.Errorf("Expected coffee to be deleted")
	}

	branch, err := catalog.PutBranch(ctx, Branch{Name: "Kedai Kopi Braga", Address: "Jl. Braga No. 1, Bandung"})
	if err != nil {
		t.Fatalf("PutBranch failed: %v", err)
	}
	if got, found, _ := catalog.Branch(ctx, branch.ID); !found || got != branch {
		t.Errorf("Branch = %+v, %v", got, found)
	}
	_ = catalog.DeleteBranch(ctx, branch.ID)
	if list, _ := catalog.Branches(ctx); len(list) != 0 {
		t.Errorf("Expected no branches, got %v", list)
	}
}

func TestCartAccumulatesAndIsScoped(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	alice := newCustomer(t, s, "alice")
	bob := newCustomer(t, s, "bob")

	_, _ = alice.AddToCart(ctx, "coffee1", 1)
	item, err := alice.AddToCart(ctx, "coffee1", 2)
	if err != nil {
		t.Fatalf("AddToCart failed: %v", err)
	}
	if item.Quantity != 3 {
		t.Errorf("Expected quantity 3, got %d", item.Quantity)
	}
	_, _ = alice.AddToCart(ctx, "coffee2", 1)
	_, _ = bob.AddToCart(ctx, "coffee1", 5)

	cart, _ := alice.Cart(ctx)
	if len(cart) != 2 || cart[0].CoffeeID != "coffee1" || cart[1].CoffeeID != "coffee2" {
		t.Errorf("Unexpected cart %+v", cart)
	}

	// the user id is part of the key exactly once
	if _, found, _ := s.Get(ctx, "alice:cart:coffee1"); !found {
		t.Errorf("Expected cart line under alice:cart:coffee1")
	}

	if _, err := alice.AddToCart(ctx, "coffee1", 0); !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("Expected invalid operation for zero quantity, got %v", err)
	}

	item, _ = alice.SetCartQuantity(ctx, "coffee1", 7)
	if item.Quantity != 7 {
		t.Errorf("Expected quantity 7, got %d", item.Quantity)
	}
	_, _ = alice.SetCartQuantity(ctx, "coffee2", 0)
	cart, _ = alice.Cart(ctx)
	if len(cart) != 1 {
		t.Errorf("Expected quantity 0 to remove the line, got %+v", cart)
	}

	bobs, _ := bob.Cart(ctx)
	if len(bobs) != 1 || bobs[0].Quantity != 5 {
		t.Errorf("bob's cart changed: %+v", bobs)
	}
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	c := newCustomer(t, newStore(t), "user1")

	first, _ := c.AddFavorite(ctx, "coffee3")
	again, _ := c.AddFavorite(ctx, "coffee3")
	if first.ID != again.ID {
		t.Errorf("Expected adding a favorite twice to keep the first entry")
	}
	_, _ = c.AddFavorite(ctx, "coffee1")

	favs, err := c.Favorites(ctx)
	if err != nil {
		t.Fatalf("Favorites failed: %v", err)
	}
	if len(favs) != 2 || favs[0].CoffeeID != "coffee3" {
		t.Errorf("Unexpected favorites %+v", favs)
	}

	_ = c.RemoveFavorite(ctx, "coffee3")
	favs, _ = c.Favorites(ctx)
	if len(favs) != 1 || favs[0].CoffeeID != "coffee1" {
		t.Errorf("Unexpected favorites after remove %+v", favs)
	}
}

func TestProfile(t *testing.T) {
	ctx := context.Background()
	c := newCustomer(t, newStore(t), "user1")

	if _, err := c.UpdateProfile(ctx, ProfileUpdate{Name: "x"}); !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("Expected error when updating a missing profile, got %v", err)
	}

	created, err := c.CreateProfile(ctx, "sari@example.com", "Sari", "")
	if err != nil {
		t.Fatalf("CreateProfile failed: %v", err)
	}
	if created.Role != RoleCustomer || created.ID != "user1" {
		t.Errorf("Unexpected profile %+v", created)
	}

	updated, err := c.UpdateProfile(ctx, ProfileUpdate{Phone: "08123", Branch: "branch2"})
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if updated.Name != "Sari" || updated.Phone != "08123" || updated.Branch != "branch2" {
		t.Errorf("Unexpected updated profile %+v", updated)
	}

	got, found, _ := c.Profile(ctx)
	if diff := cmp.Diff(updated, got); !found || diff != "" {
		t.Errorf("Profile (-want +got):\n%s", diff)
	}
}

func TestPlaceOrderClearsCart(t *testing.T) {
	ctx := context.Background()
	c := newCustomer(t, newStore(t), "user1")

	_, _ = c.AddToCart(ctx, "coffee1", 2)
	_, _ = c.AddToCart(ctx, "coffee4", 1)

	order, err := c.PlaceOrder(ctx, Order{
		Items: []OrderItem{
			{CoffeeID: "coffee1", Name: "Espresso", Price: 25000, Quantity: 2},
			{CoffeeID: "coffee4", Name: "Kopi Susu Gula Aren", Price: 28000, Quantity: 1},
		},
		Total:       78000,
		PaymentName: "Sari",
		BranchID:    "branch1",
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if order.ID == "" || order.Status != OrderPending || order.UserID != "user1" {
		t.Errorf("Unexpected order %+v", order)
	}

	if cart, _ := c.Cart(ctx); len(cart) != 0 {
		t.Errorf("Expected empty cart after order, got %+v", cart)
	}

	second, _ := c.PlaceOrder(ctx, Order{Items: []OrderItem{{CoffeeID: "coffee2", Quantity: 1}}, BranchID: "branch2"})
	orders, err := c.Orders(ctx)
	if err != nil {
		t.Fatalf("Orders failed: %v", err)
	}
	if len(orders) != 2 || orders[0].ID != second.ID {
		t.Errorf("Expected newest order first, got %+v", orders)
	}
	if diff := cmp.Diff(order, orders[1]); diff != "" {
		t.Errorf("Stored order (-want +got):\n%s", diff)
	}

	if _, err := c.PlaceOrder(ctx, Order{BranchID: "branch1"}); !errors.Is(err, store.ErrInvalidOperation) {
		t.Errorf("Expected invalid operation for empty order, got %v", err)
	}
}

func TestNewCustomerNeedsID(t *testing.T) {
	if _, err := NewCustomer(newStore(t), ""); err == nil {
		t.Errorf("Expected error for empty user id")
	}
}
