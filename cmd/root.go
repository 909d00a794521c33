package cmd

import (
	"fmt"
	"os"

	"github.com/kedaikopi/kopi/cmd/kv"
	"github.com/kedaikopi/kopi/cmd/serve"
	"github.com/kedaikopi/kopi/cmd/shop"
	"github.com/kedaikopi/kopi/cmd/util"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "kopi",
		Short: "key-value store of the kedai kopi storefront",
		Long: fmt.Sprintf(`kopi (v%s)

A key-value store for JSON documents on top of a table backend
(in-memory, bbolt, goleveldb, redis or s3), served over http, tcp
or unix sockets.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of kopi",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("kopi v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(shop.ShopCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "http", util.WrapString("transport to use (http, tcp, unix)"))
	_ = viper.BindPFlags(RootCmd.PersistentFlags())
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
