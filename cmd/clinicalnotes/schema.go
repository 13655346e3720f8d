package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Nephrolytics-ai/clinical-notes/pkg/notes"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of generate --json output",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := notes.ResultSchema()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
		return err
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
