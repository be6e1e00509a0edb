package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// version is overridden at release build time with -ldflags.
var version = ""

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tonguelab version",
		RunE: func(cmd *cobra.Command, args []string) error {
			value := version
			if value == "" {
				value = "dev"
				if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
					value = info.Main.Version
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		},
	}
}
