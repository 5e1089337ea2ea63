package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/smazurov/usbdisplay/internal/sink"
	"github.com/spf13/cobra"
)

// CreateDumpInfoCmd creates the dump-info command.
func CreateDumpInfoCmd() *cobra.Command {
	var verify bool

	cmd := &cobra.Command{
		Use:   "dump-info [file]",
		Short: "Print the records of a dump sink file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := sink.ReadDumpFile(args[0])
			if err != nil && len(records) == 0 {
				return err
			}
			if printErr := printDump(cmd.OutOrStdout(), records, verify); printErr != nil {
				return printErr
			}
			// A truncated tail still lists the complete records first.
			return err
		},
	}

	cmd.Flags().BoolVar(&verify, "verify", false, "Decompress every frame and check its size")
	return cmd
}

func printDump(w io.Writer, records []sink.Record, verify bool) error {
	var frames int
	var first, last int64
	for i, rec := range records {
		if i == 0 {
			first = rec.TimeNS
		}
		last = rec.TimeNS

		switch rec.Kind {
		case sink.RecordResolution:
			fmt.Fprintf(w, "%6d  resolution %dx%d\n", rec.Seq, rec.Width, rec.Height)
		case sink.RecordFrame:
			frames++
			fmt.Fprintf(w, "%6d  frame %dx%d pitch %d, %d bytes as %d (%s)\n",
				rec.Seq, rec.Width, rec.Height, rec.Pitch, rec.Size, len(rec.Data), rec.Codec)
			if verify {
				pix, err := rec.Pixels()
				if err != nil {
					return fmt.Errorf("record %d: %w", rec.Seq, err)
				}
				if len(pix) != rec.Pitch*rec.Height {
					return fmt.Errorf("record %d: %d pixel bytes, want %d", rec.Seq, len(pix), rec.Pitch*rec.Height)
				}
			}
		default:
			fmt.Fprintf(w, "%6d  unknown record %q\n", rec.Seq, rec.Kind)
		}
	}

	span := time.Duration(last - first)
	fmt.Fprintf(w, "%d records, %d frames over %s\n", len(records), frames, span.Round(time.Millisecond))
	return nil
}
