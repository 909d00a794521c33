package shop

import (
	"encoding/json"
	"fmt"

	"github.com/kedaikopi/kopi/cmd/util"
	"github.com/kedaikopi/kopi/lib/shop"
	"github.com/kedaikopi/kopi/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	rpcStore client.RPCStore
	catalog  *shop.Catalog

	// ShopCommands represents the storefront command group
	ShopCommands = &cobra.Command{
		Use:   "shop",
		Short: "Work with the coffee shop data of a kopi server",
		Long: `Work with the coffee shop data stored on one shard of a kopi server.
The menu and the branches are global, favorites, cart, profile and orders
belong to the user selected with --user.`,
		PersistentPreRunE:  setupShopClient,
		PersistentPostRunE: closeShopClient,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	util.SetupRPCClientFlags(ShopCommands)
	ShopCommands.PersistentFlags().String("user", "", util.WrapString("ID of the user for favorites, cart, profile and orders"))

	ShopCommands.AddCommand(seedCmd)
	ShopCommands.AddCommand(menuCmd)
	ShopCommands.AddCommand(branchesCmd)
	ShopCommands.AddCommand(favoritesCmd)
	ShopCommands.AddCommand(cartCmd)
	ShopCommands.AddCommand(profileCmd)
	ShopCommands.AddCommand(ordersCmd)
}

func setupShopClient(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	if rpcStore, err = util.NewStore(); err != nil {
		return err
	}
	catalog = shop.NewCatalog(rpcStore)
	return nil
}

func closeShopClient(*cobra.Command, []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}

// customer returns the repository of the user given with --user
func customer() (*shop.Customer, error) {
	userID := viper.GetString("user")
	if userID == "" {
		return nil, fmt.Errorf("--user is required")
	}
	return shop.NewCustomer(rpcStore, userID)
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
