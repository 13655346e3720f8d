package main

import (
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the billing-code catalog in prompt order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadUnvalidatedConfig()
		if err != nil {
			return err
		}
		codes, err := cfg.LoadCatalog()
		if err != nil {
			return err
		}
		return writeCatalog(cmd.OutOrStdout(), codes)
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd)
}
