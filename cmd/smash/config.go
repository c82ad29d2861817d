package main

import (
	"fmt"

	"smash/internal/config"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(cmdConfig)
}

var cmdConfig = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Long:  `The config command loads the config file and environment overrides the same way the shell does and prints the result.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(fs, configPath)
		if err != nil {
			return err
		}
		out, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), string(out))
		return nil
	},
}
