package shop

import "time"

// Coffee is one item of the menu. Stored under "coffees:<id>".
type Coffee struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int    `json:"price"` // Rupiah
	Description string `json:"description,omitempty"`
	Image       string `json:"image,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Branch is a pick-up location. Stored under "branches:<id>".
type Branch struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Favorite marks a coffee as favorite of a user. Stored under "<user>:favorites:<coffeeId>".
type Favorite struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CoffeeID  string    `json:"coffeeId"`
	CreatedAt time.Time `json:"createdAt"`
}

// CartItem is one line of a user's cart. Stored under "<user>:cart:<coffeeId>".
type CartItem struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CoffeeID  string    `json:"coffeeId"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User is the profile of a user. Stored under "<user>:profile".
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Branch    string    `json:"branch,omitempty"`
	Role      Role      `json:"role"`
	PhotoURL  string    `json:"photoUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrderItem is a snapshot of a coffee at the time it was ordered.
type OrderItem struct {
	CoffeeID string `json:"coffeeId"`
	Name     string `json:"name"`
	Price    int    `json:"price"`
	Quantity int    `json:"quantity"`
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
)

// Order is a placed order. Stored under "<user>:orders:<id>".
type Order struct {
	ID          string      `json:"id"`
	UserID      string      `json:"userId"`
	Items       []OrderItem `json:"items"`
	Total       int         `json:"total"`
	PaymentName string      `json:"paymentName"`
	Notes       string      `json:"notes,omitempty"`
	BranchID    string      `json:"branchId"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"createdAt"`
}
