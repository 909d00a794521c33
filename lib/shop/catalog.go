package shop

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/lib/store/typed"
)

const (
	familyCoffees  = "coffees"
	familyBranches = "branches"
)

// Catalog manages the menu and the branches. Both live in the global key space.
type Catalog struct {
	coffees  *typed.Collection[Coffee]
	branches *typed.Collection[Branch]
}

// NewCatalog returns the catalog stored in s.
func NewCatalog(s store.IStore) *Catalog {
	return &Catalog{
		coffees:  typed.NewCollection[Coffee](s, familyCoffees),
		branches: typed.NewCollection[Branch](s, familyBranches),
	}
}

// Coffees returns the whole menu sorted by name.
func (c *Catalog) Coffees(ctx context.Context) ([]Coffee, error) {
	coffees, err := c.coffees.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(coffees, func(i, j int) bool { return coffees[i].Name < coffees[j].Name })
	return coffees, nil
}

func (c *Catalog) Coffee(ctx context.Context, id string) (Coffee, bool, error) {
	return c.coffees.Get(ctx, id)
}

// PutCoffee adds or replaces a coffee. A coffee without id gets a new one.
func (c *Catalog) PutCoffee(ctx context.Context, coffee Coffee) (Coffee, error) {
	if coffee.Name == "" {
		return coffee, store.NewError(store.RetCInvalidOperation, "coffee needs a name")
	}
	if coffee.Price < 0 {
		return coffee, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("invalid price %d", coffee.Price))
	}
	if coffee.ID == "" {
		coffee.ID = uuid.NewString()
	}
	return coffee, c.coffees.Put(ctx, coffee.ID, coffee)
}

func (c *Catalog) DeleteCoffee(ctx context.Context, id string) error {
	return c.coffees.Delete(ctx, id)
}

// Branches returns all branches sorted by name.
func (c *Catalog) Branches(ctx context.Context) ([]Branch, error) {
	branches, err := c.branches.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].Name < branches[j].Name })
	return branches, nil
}

func (c *Catalog) Branch(ctx context.Context, id string) (Branch, bool, error) {
	return c.branches.Get(ctx, id)
}

// PutBranch adds or replaces a branch. A branch without id gets a new one.
func (c *Catalog) PutBranch(ctx context.Context, branch Branch) (Branch, error) {
	if branch.Name == "" {
		return branch, store.NewError(store.RetCInvalidOperation, "branch needs a name")
	}
	if branch.ID == "" {
		branch.ID = uuid.NewString()
	}
	return branch, c.branches.Put(ctx, branch.ID, branch)
}

func (c *Catalog) DeleteBranch(ctx context.Context, id string) error {
	return c.branches.Delete(ctx, id)
}

// SeedDefaults writes the default menu and branches if the menu is empty.
// It reports whether anything was written.
func (c *Catalog) SeedDefaults(ctx context.Context) (bool, error) {
	existing, err := c.coffees.List(ctx)
	if err != nil {
		return false, err
	}
	if len(existing) > 0 {
		return false, nil
	}

	coffees := make(map[string]Coffee, len(DefaultCoffees))
	for _, coffee := range DefaultCoffees {
		coffees[coffee.ID] = coffee
	}
	if err := c.coffees.PutMany(ctx, coffees); err != nil {
		return false, err
	}

	branches := make(map[string]Branch, len(DefaultBranches))
	for _, branch := range DefaultBranches {
		branches[branch.ID] = branch
	}
	return true, c.branches.PutMany(ctx, branches)
}

// DefaultCoffees is the menu written by SeedDefaults.
var DefaultCoffees = []Coffee{
	{ID: "coffee1", Name: "Espresso", Price: 25000, Category: "hot", Description: "Single shot espresso dari biji arabika pilihan"},
	{ID: "coffee2", Name: "Cappuccino", Price: 35000, Category: "hot", Description: "Espresso dengan susu steamed dan foam tebal"},
	{ID: "coffee3", Name: "Caffe Latte", Price: 38000, Category: "hot", Description: "Espresso dengan susu steamed yang lembut"},
	{ID: "coffee4", Name: "Kopi Susu Gula Aren", Price: 28000, Category: "iced", Description: "Es kopi susu dengan gula aren asli"},
	{ID: "coffee5", Name: "Americano", Price: 30000, Category: "iced", Description: "Espresso dengan air dingin dan es batu"},
	{ID: "coffee6", Name: "Kopi Tubruk", Price: 20000, Category: "hot", Description: "Kopi tradisional diseduh bersama ampasnya"},
}

// DefaultBranches are the branches written by SeedDefaults.
var DefaultBranches = []Branch{
	{ID: "branch1", Name: "Kedai Kopi Kemang", Address: "Jl. Kemang Raya No. 10, Jakarta Selatan"},
	{ID: "branch2", Name: "Kedai Kopi Senopati", Address: "Jl. Senopati No. 45, Jakarta Selatan"},
	{ID: "branch3", Name: "Kedai Kopi Dago", Address: "Jl. Ir. H. Juanda No. 120, Bandung"},
}
