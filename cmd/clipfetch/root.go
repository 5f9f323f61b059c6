package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ManuGH/clipfetch/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "clipfetch",
		Short:         "Download and trim remote media over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		"Configuration file path (defaults to $"+config.EnvConfigPath+")")

	configPath := func() string {
		if p := strings.TrimSpace(configFlag); p != "" {
			return p
		}
		return strings.TrimSpace(os.Getenv(config.EnvConfigPath))
	}

	rootCmd.AddCommand(newServeCommand(configPath))
	rootCmd.AddCommand(newConfigCommand(configPath))
	rootCmd.AddCommand(newHealthcheckCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}
