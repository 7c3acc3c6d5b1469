// Package cmd wires the coach command line.
package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configFile string
}

func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:          "coach",
		Short:        "Real-time interview coaching from webcam and transcript signals",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&o.configFile, "config", "", "config file (default ./config.yaml or config/$CONFIG_ENV/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level (overrides log.level)")

	root.AddCommand(newServeCmd(o), newProbeCmd(o), newConfigCmd(o))
	return root
}

func Execute() {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
