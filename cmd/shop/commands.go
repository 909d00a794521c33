package shop

import (
	"fmt"
	"strconv"

	"github.com/kedaikopi/kopi/lib/shop"
	"github.com/spf13/cobra"
)

var (
	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Writes the default menu and branches if the menu is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seeded, err := catalog.SeedDefaults(cmd.Context())
			if err != nil {
				return err
			}
			if seeded {
				fmt.Printf("seeded %d coffees and %d branches\n", len(shop.DefaultCoffees), len(shop.DefaultBranches))
			} else {
				fmt.Println("menu is not empty, nothing seeded")
			}
			return nil
		},
	}

	menuCmd = &cobra.Command{
		Use:   "menu [coffeeId]",
		Short: "Lists the menu or shows one coffee",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				coffee, found, err := catalog.Coffee(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("coffee %s not found", args[0])
				}
				return printJSON(coffee)
			}

			coffees, err := catalog.Coffees(cmd.Context())
			if err != nil {
				return err
			}
			for _, coffee := range coffees {
				fmt.Printf("%-10s %-24s %8d  %s\n", coffee.ID, coffee.Name, coffee.Price, coffee.Category)
			}
			return nil
		},
	}

	branchesCmd = &cobra.Command{
		Use:   "branches",
		Short: "Lists the branches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			branches, err := catalog.Branches(cmd.Context())
			if err != nil {
				return err
			}
			for _, branch := range branches {
				fmt.Printf("%-10s %-24s %s\n", branch.ID, branch.Name, branch.Address)
			}
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Favorites
// --------------------------------------------------------------------------

var (
	favoritesCmd = &cobra.Command{
		Use:   "favorites",
		Short: "Lists the favorites of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			favorites, err := c.Favorites(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(favorites)
		},
	}
	favoritesAddCmd = &cobra.Command{
		Use:   "add [coffeeId]",
		Short: "Marks a coffee as favorite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			if _, found, err := catalog.Coffee(cmd.Context(), args[0]); err != nil {
				return err
			} else if !found {
				return fmt.Errorf("coffee %s not found", args[0])
			}
			favorite, err := c.AddFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(favorite)
		},
	}
	favoritesRemoveCmd = &cobra.Command{
		Use:   "rm [coffeeId]",
		Short: "Removes a coffee from the favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			if err := c.RemoveFavorite(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Cart
// --------------------------------------------------------------------------

var (
	cartCmd = &cobra.Command{
		Use:   "cart",
		Short: "Lists the cart of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			items, err := c.Cart(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(items)
		},
	}
	cartAddCmd = &cobra.Command{
		Use:   "add [coffeeId] [quantity]",
		Short: "Adds a coffee to the cart (quantity defaults to 1)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity := 1
			if len(args) == 2 {
				var err error
				if quantity, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("quantity must be a number: %w", err)
				}
			}
			c, err := customer()
			if err != nil {
				return err
			}
			if _, found, err := catalog.Coffee(cmd.Context(), args[0]); err != nil {
				return err
			} else if !found {
				return fmt.Errorf("coffee %s not found", args[0])
			}
			item, err := c.AddToCart(cmd.Context(), args[0], quantity)
			if err != nil {
				return err
			}
			return printJSON(item)
		},
	}
	cartSetCmd = &cobra.Command{
		Use:   "set [coffeeId] [quantity]",
		Short: "Sets the quantity of a coffee in the cart",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %w", err)
			}
			c, err := customer()
			if err != nil {
				return err
			}
			item, err := c.SetCartQuantity(cmd.Context(), args[0], quantity)
			if err != nil {
				return err
			}
			return printJSON(item)
		},
	}
	cartRemoveCmd = &cobra.Command{
		Use:   "rm [coffeeId]",
		Short: "Removes a coffee from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			if err := c.RemoveFromCart(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("removed successfully")
			return nil
		},
	}
)

// --------------------------------------------------------------------------
// Profile
// --------------------------------------------------------------------------

var (
	profileCmd = &cobra.Command{
		Use:   "profile",
		Short: "Shows the profile of the user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			user, found, err := c.Profile(cmd.Context())
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("user %s has no profile", c.UserID())
			}
			return printJSON(user)
		},
	}
	profileCreateCmd = &cobra.Command{
		Use:   "create [email] [name]",
		Short: "Creates the profile of the user, an existing profile is kept",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			role, _ := cmd.Flags().GetString("role")
			user, err := c.CreateProfile(cmd.Context(), args[0], args[1], shop.Role(role))
			if err != nil {
				return err
			}
			return printJSON(user)
		},
	}
	profileUpdateCmd = &cobra.Command{
		Use:   "update",
		Short: "Updates the profile of the user, empty flags keep the stored value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			var update shop.ProfileUpdate
			update.Name, _ = cmd.Flags().GetString("name")
			update.Phone, _ = cmd.Flags().GetString("phone")
			update.Branch, _ = cmd.Flags().GetString("branch")
			update.PhotoURL, _ = cmd.Flags().GetString("photo-url")

			user, err := c.UpdateProfile(cmd.Context(), update)
			if err != nil {
				return err
			}
			return printJSON(user)
		},
	}
)

// --------------------------------------------------------------------------
// Orders
// --------------------------------------------------------------------------

var (
	ordersCmd = &cobra.Command{
		Use:   "orders",
		Short: "Lists the orders of the user, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			orders, err := c.Orders(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(orders)
		},
	}
	ordersPlaceCmd = &cobra.Command{
		Use:   "place",
		Short: "Places an order with the content of the cart and empties the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := customer()
			if err != nil {
				return err
			}
			items, err := c.Cart(cmd.Context())
			if err != nil {
				return err
			}

			order := shop.Order{}
			order.BranchID, _ = cmd.Flags().GetString("branch")
			order.PaymentName, _ = cmd.Flags().GetString("payment")
			order.Notes, _ = cmd.Flags().GetString("notes")

			for _, item := range items {
				coffee, found, err := catalog.Coffee(cmd.Context(), item.CoffeeID)
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("coffee %s in the cart is no longer on the menu", item.CoffeeID)
				}
				order.Items = append(order.Items, shop.OrderItem{
					CoffeeID: coffee.ID,
					Name:     coffee.Name,
					Price:    coffee.Price,
					Quantity: item.Quantity,
				})
				order.Total += coffee.Price * item.Quantity
			}

			placed, err := c.PlaceOrder(cmd.Context(), order)
			if err != nil {
				return err
			}
			return printJSON(placed)
		},
	}
)

func init() {
	favoritesCmd.AddCommand(favoritesAddCmd, favoritesRemoveCmd)
	cartCmd.AddCommand(cartAddCmd, cartSetCmd, cartRemoveCmd)
	profileCmd.AddCommand(profileCreateCmd, profileUpdateCmd)
	ordersCmd.AddCommand(ordersPlaceCmd)

	profileCreateCmd.Flags().String("role", string(shop.RoleCustomer), "Role of the user (customer, admin)")

	profileUpdateCmd.Flags().String("name", "", "New name")
	profileUpdateCmd.Flags().String("phone", "", "New phone number")
	profileUpdateCmd.Flags().String("branch", "", "New preferred branch")
	profileUpdateCmd.Flags().String("photo-url", "", "New photo URL")

	ordersPlaceCmd.Flags().String("branch", "", "ID of the branch to pick the order up at")
	ordersPlaceCmd.Flags().String("payment", "", "Name of the payment method")
	ordersPlaceCmd.Flags().String("notes", "", "Notes for the barista")
}
