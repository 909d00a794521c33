// Package cmd implements the command-line interface of kopi. It provides a
// hierarchical command structure with operations for running the server and
// interacting with it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the server and configures its shards
//   - kv: Commands for key-value store operations (get, set, mget, prefix, perf, ...)
//   - shop: Commands for the storefront data (menu, branches, cart, favorites, orders)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set as environment variable KOPI_<FLAG> (dashes become
// underscores), or in a .env or .env.local file in the working directory.
//
// See kopi -help for a list of all commands.
package cmd
