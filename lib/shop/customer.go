package shop

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/lib/store/typed"
)

const (
	familyFavorites = "favorites"
	familyCart      = "cart"
	familyOrders    = "orders"
	keyProfile      = "profile"
)

// Customer gives access to the data of one user. All keys live in the
// scope of the user id, e.g. "<user>:cart:<coffeeId>".
type Customer struct {
	userID    string
	favorites *typed.Collection[Favorite]
	cart      *typed.Collection[CartItem]
	orders    *typed.Collection[Order]
	profile   *typed.Document[User]
	now       func() time.Time
}

// NewCustomer returns the customer view for userID on s. s must be unscoped.
func NewCustomer(s store.IStore, userID string) (*Customer, error) {
	if userID == "" {
		return nil, store.NewError(store.RetCInvalidOperation, "user id must not be empty")
	}
	scoped := store.WithScope(s, userID)
	return &Customer{
		userID:    userID,
		favorites: typed.NewCollection[Favorite](scoped, familyFavorites),
		cart:      typed.NewCollection[CartItem](scoped, familyCart),
		orders:    typed.NewCollection[Order](scoped, familyOrders),
		profile:   typed.NewDocument[User](scoped, keyProfile),
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (c *Customer) UserID() string {
	return c.userID
}

// --------------------------------------------------------------------------
// Favorites
// --------------------------------------------------------------------------

// AddFavorite marks coffeeID as favorite. Adding it twice keeps the first entry.
func (c *Customer) AddFavorite(ctx context.Context, coffeeID string) (Favorite, error) {
	if fav, found, err := c.favorites.Get(ctx, coffeeID); err != nil || found {
		return fav, err
	}
	fav := Favorite{
		ID:        uuid.NewString(),
		UserID:    c.userID,
		CoffeeID:  coffeeID,
		CreatedAt: c.now(),
	}
	return fav, c.favorites.Put(ctx, coffeeID, fav)
}

func (c *Customer) RemoveFavorite(ctx context.Context, coffeeID string) error {
	return c.favorites.Delete(ctx, coffeeID)
}

// Favorites returns the favorites, oldest first.
func (c *Customer) Favorites(ctx context.Context) ([]Favorite, error) {
	favs, err := c.favorites.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(favs, func(i, j int) bool { return favs[i].CreatedAt.Before(favs[j].CreatedAt) })
	return favs, nil
}

// --------------------------------------------------------------------------
// Cart
// --------------------------------------------------------------------------

// AddToCart adds quantity pieces of coffeeID. An existing line is increased.
func (c *Customer) AddToCart(ctx context.Context, coffeeID string, quantity int) (CartItem, error) {
	if quantity <= 0 {
		return CartItem{}, store.NewError(store.RetCInvalidOperation, "quantity must be positive")
	}

	item, found, err := c.cart.Get(ctx, coffeeID)
	if err != nil {
		return item, err
	}
	if found {
		item.Quantity += quantity
	} else {
		item = CartItem{
			ID:        uuid.NewString(),
			UserID:    c.userID,
			CoffeeID:  coffeeID,
			Quantity:  quantity,
			CreatedAt: c.now(),
		}
	}
	return item, c.cart.Put(ctx, coffeeID, item)
}

// SetCartQuantity overwrites the quantity of a line. A quantity of zero removes it.
func (c *Customer) SetCartQuantity(ctx context.Context, coffeeID string, quantity int) (CartItem, error) {
	if quantity < 0 {
		return CartItem{}, store.NewError(store.RetCInvalidOperation, "quantity must not be negative")
	}
	if quantity == 0 {
		return CartItem{}, c.RemoveFromCart(ctx, coffeeID)
	}

	item, found, err := c.cart.Get(ctx, coffeeID)
	if err != nil {
		return item, err
	}
	if !found {
		item = CartItem{ID: uuid.NewString(), UserID: c.userID, CoffeeID: coffeeID, CreatedAt: c.now()}
	}
	item.Quantity = quantity
	return item, c.cart.Put(ctx, coffeeID, item)
}

func (c *Customer) RemoveFromCart(ctx context.Context, coffeeID string) error {
	return c.cart.Delete(ctx, coffeeID)
}

// Cart returns the cart lines, oldest first.
func (c *Customer) Cart(ctx context.Context) ([]CartItem, error) {
	items, err := c.cart.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

// --------------------------------------------------------------------------
// Profile
// --------------------------------------------------------------------------

func (c *Customer) Profile(ctx context.Context) (User, bool, error) {
	return c.profile.Get(ctx)
}

// ProfileUpdate holds the fields a user may change. Empty fields are kept.
type ProfileUpdate struct {
	Name     string
	Phone    string
	Branch   string
	PhotoURL string
}

// CreateProfile stores the profile of a new user. An existing profile is kept.
func (c *Customer) CreateProfile(ctx context.Context, email, name string, role Role) (User, error) {
	if user, found, err := c.profile.Get(ctx); err != nil || found {
		return user, err
	}
	if role == "" {
		role = RoleCustomer
	}
	user := User{
		ID:        c.userID,
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: c.now(),
	}
	return user, c.profile.Put(ctx, user)
}

// UpdateProfile applies update to the stored profile.
func (c *Customer) UpdateProfile(ctx context.Context, update ProfileUpdate) (User, error) {
	user, found, err := c.profile.Get(ctx)
	if err != nil {
		return user, err
	}
	if !found {
		return user, store.NewError(store.RetCInvalidOperation, "profile does not exist")
	}

	if update.Name != "" {
		user.Name = update.Name
	}
	if update.Phone != "" {
		user.Phone = update.Phone
	}
	if update.Branch != "" {
		user.Branch = update.Branch
	}
	if update.PhotoURL != "" {
		user.PhotoURL = update.PhotoURL
	}
	return user, c.profile.Put(ctx, user)
}

// --------------------------------------------------------------------------
// Orders
// --------------------------------------------------------------------------

// PlaceOrder stores the order and empties the cart with one MDelete.
// The total is taken as given.
func (c *Customer) PlaceOrder(ctx context.Context, order Order) (Order, error) {
	if len(order.Items) == 0 {
		return order, store.NewError(store.RetCInvalidOperation, "order has no items")
	}
	if order.BranchID == "" {
		return order, store.NewError(store.RetCInvalidOperation, "order needs a branch")
	}

	order.ID = uuid.NewString()
	order.UserID = c.userID
	order.Status = OrderPending
	order.CreatedAt = c.now()
	if err := c.orders.Put(ctx, order.ID, order); err != nil {
		return order, err
	}

	items, err := c.cart.List(ctx)
	if err != nil {
		return order, err
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.CoffeeID
	}
	return order, c.cart.DeleteMany(ctx, ids)
}

// Orders returns the orders, newest first.
func (c *Customer) Orders(ctx context.Context) ([]Order, error) {
	orders, err := c.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}
