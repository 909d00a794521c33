package kv

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:     "set [key] [value]",
		Short:   "Sets the JSON value for a key",
		Example: `  kopi kv set coffees:coffee1 '{"name":"Espresso","price":18000}'`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Set(cmd.Context(), args[0], json.RawMessage(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, found, err := kvStore.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", args[0], found, value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	msetCmd = &cobra.Command{
		Use:     "mset [key=value]...",
		Short:   "Sets several key value pairs at once",
		Example: `  kopi kv mset --scope alice 'cart:coffee1={"quantity":2}' 'cart:coffee2={"quantity":1}'`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, values, err := parsePairs(args)
			if err != nil {
				return err
			}
			if err := kvStore.MSet(cmd.Context(), keys, values); err != nil {
				return err
			}
			fmt.Printf("set %d keys successfully\n", len(keys))
			return nil
		},
	}
	mgetCmd = &cobra.Command{
		Use:   "mget [key]...",
		Short: "Reads the values of several keys at once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, found, err := kvStore.MGet(cmd.Context(), args)
			if err != nil {
				return err
			}
			for i, key := range args {
				fmt.Printf("key=%s, found=%v, value=%s\n", key, found[i], values[i])
			}
			return nil
		},
	}
	mdelCmd = &cobra.Command{
		Use:   "mdel [key]...",
		Short: "Deletes several keys at once",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kvStore.MDelete(cmd.Context(), args); err != nil {
				return err
			}
			fmt.Printf("deleted %d keys successfully\n", len(args))
			return nil
		},
	}
	prefixCmd = &cobra.Command{
		Use:   "prefix [prefix]",
		Short: "Lists all values whose key starts with prefix",
		Long:  "Lists all values whose key starts with prefix. Without a prefix all values (of the scope) are listed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			values, err := kvStore.GetByPrefix(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			for _, value := range values {
				fmt.Println(string(value))
			}
			fmt.Printf("%d values\n", len(values))
			return nil
		},
	}
	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Prints the table behind the shard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info, err := rpcStore.GetDBInfo(cmd.Context())
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
)

// parsePairs splits key=value arguments. The value is everything after the first '='.
func parsePairs(args []string) ([]string, []json.RawMessage, error) {
	keys := make([]string, len(args))
	values := make([]json.RawMessage, len(args))
	for i, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, nil, fmt.Errorf("invalid pair %q (expected key=value)", arg)
		}
		keys[i] = key
		values[i] = json.RawMessage(value)
	}
	return keys, values, nil
}
