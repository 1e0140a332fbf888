package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/redlinehq/redline/internal/config"
)

var initConfigPath string

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a default config file",
	Long: `Write a config.yaml populated with defaults to the given path.

Edit the file to point at your extraction service and set API keys via
${ENV_VAR} references.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteDefault(initConfigPath); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", initConfigPath)
		return nil
	},
}

func init() {
	initConfigCmd.Flags().StringVar(&initConfigPath, "path", "config.yaml", "Where to write the config file")

	rootCmd.AddCommand(initConfigCmd)
}
