package main

import (
	"github.com/spf13/cobra"
)

func newScalesCmd(tablePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "scales",
		Short: "Print the active scale table as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := loadEngine(*tablePath)
			if err != nil {
				return err
			}
			data, err := engine.Table().YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
