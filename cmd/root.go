// Package cmd assembles the marketdata CLI.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/capmatch/marketdata/cmd/cache"
	"github.com/capmatch/marketdata/cmd/server"
	"github.com/capmatch/marketdata/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "marketdata",
		Short: "Market data aggregation service CLI",
	}

	setupFlags(rootCmd, settings)

	rootCmd.AddCommand(
		server.Command(settings),
		cache.Command(settings),
	)

	return rootCmd
}

// setupFlags configures the global flags for the root command.
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		fmt.Printf("error binding flags: %v\n", err)
	}
}
