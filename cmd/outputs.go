package cmd

import (
	"fmt"
	"io"

	"github.com/smazurov/usbdisplay/internal/capture"
	"github.com/spf13/cobra"
)

// CreateOutputsCmd creates the outputs command.
func CreateOutputsCmd() *cobra.Command {
	var display string
	var extendedName string

	cmd := &cobra.Command{
		Use:   "outputs",
		Short: "Print the X RandR outputs and the capture selection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv, err := capture.OpenX11(display)
			if err != nil {
				return err
			}
			defer srv.Close()

			topo, err := srv.Outputs()
			if err != nil {
				return fmt.Errorf("query outputs: %w", err)
			}
			printTopology(cmd.OutOrStdout(), topo, extendedName)
			return nil
		},
	}

	cmd.Flags().StringVar(&display, "display", "", "X display (empty uses $DISPLAY)")
	cmd.Flags().StringVar(&extendedName, "extended-output", capture.DefaultExtendedOutput, "RandR name of the extended output")
	return cmd
}

func printTopology(w io.Writer, topo capture.Topology, extendedName string) {
	if len(topo.Outputs) == 0 {
		fmt.Fprintln(w, "No outputs reported")
	}
	for _, o := range topo.Outputs {
		fmt.Fprintf(w, "  %s\n", o)
	}

	if o, ok := topo.Primary(extendedName); ok {
		fmt.Fprintf(w, "Primary:  %s\n", o.Name)
	} else {
		fmt.Fprintln(w, "Primary:  none")
	}
	if o, ok := topo.Extended(extendedName); ok {
		fmt.Fprintf(w, "Extended: %s\n", o.Name)
	} else {
		fmt.Fprintf(w, "Extended: none (%s not usable, primary is captured instead)\n", extendedName)
	}
}
