package kv

import (
	"github.com/kedaikopi/kopi/cmd/util"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/rpc/client"
	"github.com/spf13/cobra"
)

var (
	// rpcStore is the connection to the configured shard
	rpcStore client.RPCStore
	// kvStore is rpcStore wrapped with --scope
	kvStore store.IStore

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:   "kv",
		Short: "Perform key-value store operations",
		Long: `Perform key-value store operations on one shard of a kopi server.
Values are JSON documents. With --scope all keys are prefixed with "<scope>:".`,
		PersistentPreRunE:  setupKVClient,
		PersistentPostRunE: closeKVClient,
	}
)

func init() {
	// Initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add common RPC flags to the KV command
	util.SetupRPCClientFlags(KeyValueCommands)

	KeyValueCommands.PersistentFlags().String("scope", "", util.WrapString("Scope of all keys, e.g. a user id"))

	// Add subcommands
	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(msetCmd)
	KeyValueCommands.AddCommand(mgetCmd)
	KeyValueCommands.AddCommand(mdelCmd)
	KeyValueCommands.AddCommand(prefixCmd)
	KeyValueCommands.AddCommand(infoCmd)
	KeyValueCommands.AddCommand(perfTestCmd)
}

// setupKVClient initializes the RPC store client
func setupKVClient(cmd *cobra.Command, _ []string) error {
	// Bind command flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	var err error
	if rpcStore, err = util.NewStore(); err != nil {
		return err
	}
	kvStore = util.Scoped(rpcStore)
	return nil
}

func closeKVClient(*cobra.Command, []string) error {
	if rpcStore == nil {
		return nil
	}
	return rpcStore.Close()
}
