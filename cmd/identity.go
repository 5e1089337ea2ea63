package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/smazurov/usbdisplay/internal/adapter"
	"github.com/smazurov/usbdisplay/internal/identity"
	"github.com/smazurov/usbdisplay/internal/logging"
	"github.com/spf13/cobra"
)

// CreateIdentityCmd creates the identity command.
func CreateIdentityCmd() *cobra.Command {
	var outFile string
	var synthesize string
	var matchMode string
	var timeoutMs int

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Read the identity block of the attached adapter",
		Long: `Reads the 256-byte identity block from the first matching display adapter on the bus ` +
			`and prints its fingerprint and preferred mode. With --out the block is written to a file ` +
			`usable as an identity override. --synthesize builds a block for WxH@Hz instead of reading hardware.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logging.Initialize(logging.Config{Level: "warn", Format: "text"})

			var block identity.Block
			var err error
			if synthesize != "" {
				var w, h, hz int
				if _, scanErr := fmt.Sscanf(synthesize, "%dx%d@%d", &w, &h, &hz); scanErr != nil {
					return fmt.Errorf("--synthesize wants WxH@Hz, got %q", synthesize)
				}
				block, err = identity.Synthetic(w, h, hz)
			} else {
				mode, parseErr := adapter.ParseMatchMode(matchMode)
				if parseErr != nil {
					return parseErr
				}
				block, err = readAttached(adapter.NewMatcher(mode), time.Duration(timeoutMs)*time.Millisecond)
			}
			if err != nil {
				return err
			}

			printIdentity(cmd.OutOrStdout(), block)
			if outFile != "" {
				if err := block.Save(outFile); err != nil {
					return fmt.Errorf("write %s: %w", outFile, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d bytes to %s\n", block.Len(), outFile)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "Write the block to this file")
	cmd.Flags().StringVar(&synthesize, "synthesize", "", "Build a block for WxH@Hz instead of reading the adapter")
	cmd.Flags().StringVar(&matchMode, "match-mode", string(adapter.MatchBand), "Product id matching (band, whitelist)")
	cmd.Flags().IntVar(&timeoutMs, "control-timeout-ms", 500, "Control transfer timeout in milliseconds")
	return cmd
}

var errNoAdapter = errors.New("no display adapter connected")

func readAttached(matcher adapter.Matcher, timeout time.Duration) (identity.Block, error) {
	bus, err := adapter.NewUSBBus(timeout)
	if err != nil {
		return identity.Block{}, err
	}
	defer bus.Close()
	return readFirstMatching(bus, matcher)
}

// readFirstMatching reads the identity of the first device on bus accepted
// by matcher.
func readFirstMatching(bus adapter.Bus, matcher adapter.Matcher) (identity.Block, error) {
	devs, err := bus.Scan()
	if err != nil {
		return identity.Block{}, err
	}
	for _, dev := range devs {
		if !matcher.Match(dev.Vendor, dev.Product) {
			continue
		}
		block, err := adapter.NewIdentityReader(bus).Read(dev.Ref)
		if err != nil {
			return identity.Block{}, fmt.Errorf("read identity from %s: %w", dev, err)
		}
		return block, nil
	}
	return identity.Block{}, errNoAdapter
}

func printIdentity(w io.Writer, block identity.Block) {
	fmt.Fprintf(w, "Fingerprint: %s\n", block.Fingerprint())
	fmt.Fprintf(w, "Size:        %d bytes\n", block.Len())
	fmt.Fprintf(w, "Header:      %t\n", block.HasHeader())
	fmt.Fprintf(w, "Checksum:    %t\n", block.ChecksumOK())
	if vendor := block.Vendor(); vendor != "" {
		fmt.Fprintf(w, "Vendor:      %s\n", vendor)
	}
	if mode, err := block.PreferredMode(); err == nil {
		fmt.Fprintf(w, "Preferred:   %s (%d kHz)\n", mode, mode.PixelClockK)
	} else {
		fmt.Fprintf(w, "Preferred:   none (%v)\n", err)
	}
}
