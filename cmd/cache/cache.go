// Package cache implements cache maintenance commands against the
// local store, without going through the HTTP API.
package cache

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/capmatch/marketdata/internal/conf"
	"github.com/capmatch/marketdata/internal/datastore"
	"github.com/capmatch/marketdata/internal/errors"
	"github.com/capmatch/marketdata/internal/logging"
	"github.com/capmatch/marketdata/internal/market"
)

// Command creates the cache command with its subcommands.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the address cache",
	}

	cmd.AddCommand(
		listCommand(settings),
		deleteCommand(settings),
	)

	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached addresses, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(settings, func(store datastore.Interface) error {
				keys, err := store.List()
				if err != nil {
					return err
				}
				if len(keys) == 0 {
					fmt.Println("cache is empty")
					return nil
				}
				for _, key := range keys {
					fmt.Println(key)
				}
				return nil
			})
		},
	}
}

func deleteCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <address>",
		Short: "Delete one cached address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(settings, func(store datastore.Interface) error {
				key := market.NormalizeAddress(args[0])
				if err := store.Delete(key); err != nil {
					if errors.IsNotFound(err) {
						fmt.Printf("no cache entry for %q\n", key)
						return nil
					}
					return err
				}
				fmt.Printf("deleted %q\n", key)
				return nil
			})
		},
	}
}

func withStore(settings *conf.Settings, fn func(datastore.Interface) error) error {
	store := datastore.New(settings, logging.ForService("datastore"))
	if store == nil {
		return errors.Newf("no cache store backend enabled").
			Category(errors.CategoryConfiguration).
			Component("cache").
			Build()
	}
	if err := store.Open(); err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck
	return fn(store)
}
