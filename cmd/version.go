package cmd

import (
	"fmt"

	"github.com/smazurov/usbdisplay/internal/version"
	"github.com/spf13/cobra"
)

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info := version.Get()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "usbdisplay %s\n", version.Long())
			fmt.Fprintf(out, "  go:       %s (%s)\n", info.GoVersion, info.Compiler)
			fmt.Fprintf(out, "  platform: %s\n", info.Platform)
			fmt.Fprintf(out, "  build:    %s\n", info.BuildID)
		},
	}
}
