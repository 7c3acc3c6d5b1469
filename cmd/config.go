package cmd

import (
	"github.com/spf13/cobra"

	"github.com/maastricht-university/interview-coach/config"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, v, err := config.Load(o.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return config.Dump(cmd.OutOrStdout(), v)
		},
	}
}
