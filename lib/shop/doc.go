// Package shop holds the data of the kedai kopi storefront on top of a
// store.IStore.
//
// Key layout:
//
//	coffees:<id>                  Coffee     (global)
//	branches:<id>                 Branch     (global)
//	<user>:favorites:<coffeeId>   Favorite
//	<user>:cart:<coffeeId>        CartItem
//	<user>:profile                User
//	<user>:orders:<orderId>       Order
//
// The user id is applied once, as the scope of the store (see
// store.WithScope). Logical keys never repeat it.
//
// Catalog covers the global families, Customer everything that belongs to a
// single user.
package shop
